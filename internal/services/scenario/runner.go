// Package scenario drives the round loop of a scenario stage: it resolves
// the snapshot and wallet, re-arms the countdown for every round, and values
// the portfolio on each tick. The timer stays round-agnostic, the runner is
// the one deciding advance-vs-finish on every completion.
package scenario

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/stagerun/internal/domain"
	"github.com/vadiminshakov/stagerun/internal/services/timer"
	"github.com/vadiminshakov/stagerun/internal/services/valuation"
)

// SnapshotLoader resolves scenario data by reference.
type SnapshotLoader interface {
	Scenario(ctx context.Context, scenarioID string) (*domain.ScenarioSnapshot, error)
	WalletAssets(ctx context.Context, walletID string) ([]domain.WalletAsset, error)
}

// RoundEvent is emitted once per tick of the active round.
type RoundEvent struct {
	Round     int
	Rounds    int
	Remaining int
	// Valuation is nil in degraded mode (snapshot or wallet unavailable).
	Valuation *valuation.Result
	// Trade submits a simulated buy/sell for this round and returns a fresh
	// valuation of the portfolio. nil in degraded mode.
	Trade func(action, assetID string) valuation.Result
}

// Runner executes scenario stages.
type Runner struct {
	loader SnapshotLoader
	logger *zap.Logger
	// tick is one round-second; tests compress it.
	tick time.Duration
}

// NewRunner creates a scenario runner.
func NewRunner(loader SnapshotLoader, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{loader: loader, logger: logger, tick: time.Second}
}

// run state for one scenario execution.
type session struct {
	rounds        int
	roundDuration int
	assets        []domain.WalletAsset
	prices        []domain.AssetPriceSeries
	degraded      bool
}

// Run plays the scenario to the end or until ctx is cancelled. Both the
// snapshot and wallet fetches complete before the first round's timer starts.
// On a load failure the run degrades to the stage-authored rounds and
// duration with no valuations, instead of blocking the whole experiment;
// onDegraded is consulted once in that case and may skip the remaining
// rounds instead of waiting out empty timers.
// The returned result reports how many rounds actually finished.
func (r *Runner) Run(ctx context.Context, stage *domain.ScenarioStage, onEvent func(RoundEvent), onDegraded func() bool) (domain.ScenarioResult, error) {
	sess := r.resolve(ctx, stage)
	if err := ctx.Err(); err != nil {
		return domain.ScenarioResult{ScenarioID: stage.ScenarioID}, err
	}

	result := domain.ScenarioResult{ScenarioID: stage.ScenarioID}

	if sess.degraded && onDegraded != nil && onDegraded() {
		r.logger.Info("degraded scenario skipped", zap.String("scenario", stage.ScenarioID))
		result.Skipped = true
		return result, nil
	}

	for round := 1; round <= sess.rounds; round++ {
		if err := r.playRound(ctx, sess, round, onEvent); err != nil {
			return result, err
		}
		result.CompletedRounds = round
	}

	return result, nil
}

// SimulateTrade accepts a buy/sell action from the UI. Trading is simulated
// by contract: holdings never change, the action is only logged.
func (r *Runner) SimulateTrade(action, assetID string, round int) {
	r.logger.Info("simulated trade action",
		zap.String("action", action),
		zap.String("asset", assetID),
		zap.Int("round", round))
}

func (r *Runner) resolve(ctx context.Context, stage *domain.ScenarioStage) *session {
	sess := &session{rounds: stage.Rounds, roundDuration: stage.RoundDuration}

	snap, err := r.loader.Scenario(ctx, stage.ScenarioID)
	if err != nil {
		r.logger.Warn("scenario snapshot unavailable, running degraded",
			zap.String("scenario", stage.ScenarioID), zap.Error(err))
		sess.degraded = true
		return sess
	}

	if snap.Rounds > 0 {
		sess.rounds = snap.Rounds
	}
	if snap.RoundDuration > 0 {
		sess.roundDuration = snap.RoundDuration
	}
	sess.prices = snap.AssetPrices

	// rounds shown to the participant never exceed the available price data
	maxPriced := 0
	for _, series := range snap.AssetPrices {
		if len(series.Prices) > maxPriced {
			maxPriced = len(series.Prices)
		}
	}
	if maxPriced > 0 && sess.rounds > maxPriced {
		sess.rounds = maxPriced
	}

	assets, err := r.loader.WalletAssets(ctx, snap.WalletID)
	if err != nil {
		r.logger.Warn("wallet unavailable, running degraded",
			zap.String("wallet", snap.WalletID), zap.Error(err))
		sess.degraded = true
		return sess
	}
	sess.assets = assets

	return sess
}

func (r *Runner) playRound(ctx context.Context, sess *session, round int, onEvent func(RoundEvent)) error {
	done := make(chan struct{})

	countdown := timer.StartEvery(r.tick, sess.roundDuration,
		func(remaining int) {
			if onEvent == nil {
				return
			}
			event := RoundEvent{Round: round, Rounds: sess.rounds, Remaining: remaining}
			if !sess.degraded {
				v := valuation.Compute(sess.assets, sess.prices, round)
				event.Valuation = &v
				event.Trade = func(action, assetID string) valuation.Result {
					r.SimulateTrade(action, assetID, round)
					return r.Valuate(sess.assets, sess.prices, round)
				}
			}
			onEvent(event)
		},
		func() { close(done) },
	)

	select {
	case <-ctx.Done():
		countdown.Stop()
		return errors.Wrap(ctx.Err(), "scenario cancelled")
	case <-done:
		return nil
	}
}

// Valuate computes the portfolio view on demand, outside the tick cadence
// (trade actions ask for it through RoundEvent.Trade).
func (r *Runner) Valuate(assets []domain.WalletAsset, prices []domain.AssetPriceSeries, round int) valuation.Result {
	return valuation.Compute(assets, prices, round)
}
