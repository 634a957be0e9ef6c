// Package setup renders the participant-facing terminal session: it walks
// the sequencer's states, shows each stage and collects the responses.
package setup

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/stagerun/internal"
	"github.com/vadiminshakov/stagerun/internal/domain"
	"github.com/vadiminshakov/stagerun/internal/services/progress"
	"github.com/vadiminshakov/stagerun/internal/services/scenario"
	"github.com/vadiminshakov/stagerun/internal/services/survey"
	"github.com/vadiminshakov/stagerun/internal/services/timer"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#BF4343", Dark: "#F57373"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stageStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1)

	bodyStyle = lipgloss.NewStyle().
			MarginTop(1).
			MarginBottom(1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(warning).
			MarginTop(1)

	gainStyle = lipgloss.NewStyle().Foreground(special)
	lossStyle = lipgloss.NewStyle().Foreground(warning)
)

// UI drives one participant session in the terminal.
type UI struct {
	seq       *internal.Sequencer
	scenarios *scenario.Runner
	logger    *zap.Logger
}

// NewUI creates the terminal front end.
func NewUI(seq *internal.Sequencer, scenarios *scenario.Runner, logger *zap.Logger) *UI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UI{seq: seq, scenarios: scenarios, logger: logger}
}

// Run walks the session until the experiment finishes, the participant
// exits, or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	if err := u.seq.Load(ctx); err != nil {
		// fall through, the error state offers a manual retry
		u.logger.Warn("initial load failed", zap.Error(err))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch u.seq.State() {
		case internal.StateWelcome:
			proceed, err := u.showWelcome()
			if err != nil {
				return err
			}
			if !proceed {
				return nil
			}
			if err := u.seq.Begin(ctx); err != nil {
				return err
			}

		case internal.StateRunning:
			if err := u.runStage(ctx); err != nil {
				return err
			}

		case internal.StateFinished:
			u.showFinished()
			return nil

		case internal.StateError:
			retry, err := u.showLoadError()
			if err != nil {
				return err
			}
			if !retry {
				return u.seq.LoadError()
			}
			if err := u.seq.Load(ctx); err != nil {
				u.logger.Warn("retry failed", zap.Error(err))
			}

		default:
			return errors.Errorf("unexpected state %q", u.seq.State())
		}
	}
}

func (u *UI) showWelcome() (bool, error) {
	exp := u.seq.Experiment()
	clearScreen()
	fmt.Println(headerStyle.Render(exp.Name))
	if exp.Description != "" {
		fmt.Println(bodyStyle.Render(exp.Description))
	}
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(
		fmt.Sprintf("%d stages ahead. Your progress is saved as you go.", len(exp.Stages))))

	var begin bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Ready to begin?").
				Affirmative("Begin").
				Negative("Exit").
				Value(&begin),
		),
	).Run()
	return begin, err
}

func (u *UI) showLoadError() (bool, error) {
	clearScreen()
	fmt.Println(noticeStyle.Render("Could not load the experiment:"))
	if err := u.seq.LoadError(); err != nil {
		fmt.Println(bodyStyle.Render(err.Error()))
	}

	var retry bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Try again?").
				Affirmative("Retry").
				Negative("Exit").
				Value(&retry),
		),
	).Run()
	return retry, err
}

func (u *UI) showFinished() {
	exp := u.seq.Experiment()
	clearScreen()
	fmt.Println(headerStyle.Render("Thank you!"))
	fmt.Println(bodyStyle.Render(fmt.Sprintf("You have completed %q. You may close this window.", exp.Name)))
}

func (u *UI) runStage(ctx context.Context) error {
	stage, index, ok := u.seq.CurrentStage()
	if !ok {
		return errors.New("running state without an active stage")
	}

	total := len(u.seq.Experiment().Stages)
	header := fmt.Sprintf("Stage %d of %d — %s", index+1, total, stage.Meta().Title)

	var (
		response *domain.StageResponse
		err      error
	)

	switch s := stage.(type) {
	case *domain.InstructionsStage:
		err = u.showInstructions(header, s)
	case *domain.BreakStage:
		err = u.showBreak(ctx, header, s)
	case *domain.ScenarioStage:
		response, err = u.runScenario(ctx, header, s)
	case *domain.SurveyStage:
		response, err = u.runSurvey(header, s)
	default:
		return errors.Errorf("unknown stage type %q", stage.Type())
	}
	if err != nil {
		return err
	}

	result, err := u.seq.CompleteCurrent(ctx, response)
	if err != nil {
		if errors.Is(err, progress.ErrDeferred) {
			fmt.Println(noticeStyle.Render(
				"Saving your progress failed; it will be retried automatically. You can keep going."))
			return nil
		}
		return err
	}
	if result != nil && !result.OK {
		return u.showValidationFailures(result)
	}
	return nil
}

func (u *UI) showInstructions(header string, stage *domain.InstructionsStage) error {
	clearScreen()
	fmt.Println(stageStyle.Render(header))
	fmt.Println(bodyStyle.Render(stage.Content))

	return confirmContinue()
}

func (u *UI) showBreak(ctx context.Context, header string, stage *domain.BreakStage) error {
	clearScreen()
	fmt.Println(stageStyle.Render(header))
	if stage.Message != "" {
		fmt.Println(bodyStyle.Render(stage.Message))
	}

	if stage.Duration() > 0 {
		done := make(chan struct{})
		countdown := timer.Start(stage.Duration(),
			func(remaining int) {
				fmt.Printf("%s\r", lipgloss.NewStyle().Foreground(subtle).
					Render(fmt.Sprintf("break ends in %ds ", remaining)))
			},
			func() { close(done) },
		)
		select {
		case <-ctx.Done():
			countdown.Stop()
			return ctx.Err()
		case <-done:
		}
		fmt.Println()
	}

	return confirmContinue()
}

// confirmContinue blocks until the participant explicitly moves on.
func confirmContinue() error {
	for {
		var done bool
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().Title("Continue?").Affirmative("Continue").Negative("Not yet").Value(&done),
			),
		).Run()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (u *UI) runScenario(ctx context.Context, header string, stage *domain.ScenarioStage) (*domain.StageResponse, error) {
	result, err := u.scenarios.Run(ctx, stage,
		func(ev scenario.RoundEvent) { u.renderRound(header, ev) },
		func() bool { return u.offerSkip(header) },
	)
	if err != nil {
		return nil, err
	}
	return domain.NewScenarioResponse(stage.ID, result), nil
}

// offerSkip is shown when the scenario data could not be loaded: the
// participant may skip the stage instead of waiting out rounds with no
// valuations.
func (u *UI) offerSkip(header string) bool {
	clearScreen()
	fmt.Println(stageStyle.Render(header))
	fmt.Println(noticeStyle.Render("Market data for this scenario is unavailable."))

	var skip bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Skip this scenario?").
				Affirmative("Skip").
				Negative("Play without data").
				Value(&skip),
		),
	).Run()
	if err != nil {
		return false
	}
	return skip
}

func (u *UI) renderRound(header string, ev scenario.RoundEvent) {
	clearScreen()
	fmt.Println(stageStyle.Render(header))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(
		fmt.Sprintf("round %d/%d — %ds remaining", ev.Round, ev.Rounds, ev.Remaining)))

	if ev.Valuation == nil {
		fmt.Println(noticeStyle.Render("Market data is unavailable; the scenario continues without valuations."))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n%-8s %12s %14s %16s %18s\n", "ASSET", "AMOUNT", "PRICE", "VALUE", "CHANGE")
	for _, av := range ev.Valuation.Assets {
		change := "—"
		if av.HasChange {
			change = fmt.Sprintf("%s (%s%%)", av.Change.StringFixed(2), av.ChangePercent.StringFixed(2))
			if av.Change.IsNegative() {
				change = lossStyle.Render(change)
			} else {
				change = gainStyle.Render(change)
			}
		}
		fmt.Fprintf(&b, "%-8s %12s %14s %16s %18s\n",
			av.Symbol, av.Amount.String(), av.CurrentPrice.StringFixed(2), av.USDValue.StringFixed(2), change)
	}
	for _, asset := range ev.Valuation.Unpriced {
		fmt.Fprintf(&b, "%-8s %12s %14s %16s %18s\n", asset.Symbol, asset.Amount.String(), "—", "no price data", "")
	}

	total := fmt.Sprintf("total %s", ev.Valuation.TotalUSDValue.StringFixed(2))
	if ev.Valuation.HasChange {
		total += fmt.Sprintf("  %s (%s%%)",
			ev.Valuation.TotalChange.StringFixed(2), ev.Valuation.TotalChangePercent.StringFixed(2))
	}
	fmt.Println(b.String())
	fmt.Println(lipgloss.NewStyle().Bold(true).Render(total))
}

func (u *UI) runSurvey(header string, stage *domain.SurveyStage) (*domain.StageResponse, error) {
	clearScreen()
	fmt.Println(stageStyle.Render(header))
	if stage.StageMeta.Description != "" {
		fmt.Println(bodyStyle.Render(stage.StageMeta.Description))
	}

	answers := make(map[string]any, len(stage.Questions))
	for i := range stage.Questions {
		q := stage.Questions[i]
		value, err := u.askQuestion(q)
		if err != nil {
			return nil, err
		}
		answers[q.ID] = value
	}

	return domain.NewSurveyResponse(stage.ID, answers), nil
}

func (u *UI) askQuestion(q domain.Question) (any, error) {
	title := q.Text
	if q.Required {
		title += " *"
	}

	switch q.Type {
	case domain.QuestionText:
		var answer string
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title(title).Value(&answer),
		)).Run()
		return answer, err

	case domain.QuestionTextarea:
		var answer string
		err := huh.NewForm(huh.NewGroup(
			huh.NewText().Title(title).Value(&answer),
		)).Run()
		return answer, err

	case domain.QuestionMultipleChoice:
		var answer string
		err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().Title(title).Options(huh.NewOptions(q.Options...)...).Value(&answer),
		)).Run()
		return answer, err

	case domain.QuestionCheckboxes:
		var answer []string
		err := huh.NewForm(huh.NewGroup(
			huh.NewMultiSelect[string]().Title(title).Options(huh.NewOptions(q.Options...)...).Value(&answer),
		)).Run()
		return answer, err

	case domain.QuestionScale:
		var answer int
		err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[int]().Title(title).Options(intOptions(q.MinValue, q.MaxValue)...).Value(&answer),
		)).Run()
		return answer, err

	case domain.QuestionRating:
		var answer int
		err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[int]().Title(title).Options(intOptions(1, q.MaxRating)...).Value(&answer),
		)).Run()
		return answer, err

	default:
		return nil, errors.Errorf("unknown question type %q", q.Type)
	}
}

// showValidationFailures lists what the validator rejected and blocks until
// the participant agrees to revise; revising is the only way forward since
// the stage cannot complete with invalid answers.
func (u *UI) showValidationFailures(result *survey.ValidationResult) error {
	fmt.Println(noticeStyle.Render("Some answers need attention:"))
	for _, failure := range result.Failures {
		fmt.Println(bodyStyle.Render(fmt.Sprintf("  %s: %s", failure.QuestionID, failure.Reason)))
	}

	for {
		var revise bool
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().Title("Revise your answers?").Affirmative("Revise").Negative("Not yet").Value(&revise),
			),
		).Run()
		if err != nil {
			return err
		}
		if revise {
			return nil
		}
	}
}

func intOptions(from, to int) []huh.Option[int] {
	if to < from {
		to = from
	}
	options := make([]huh.Option[int], 0, to-from+1)
	for v := from; v <= to; v++ {
		options = append(options, huh.NewOption(strconv.Itoa(v), v))
	}
	return options
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}
