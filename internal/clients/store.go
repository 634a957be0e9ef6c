// Package clients holds the HTTP client for the remote experiment platform:
// the read-only definition endpoints and the progress-write endpoint.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/stagerun/internal/domain"
)

// ErrNotFound is returned when no progress record exists for the participant.
var ErrNotFound = errors.New("progress record not found")

const defaultRequestTimeout = 5 * time.Second

// StoreClient talks JSON over HTTP to the experiment platform. Every request
// carries its own timeout so a hung call can never block the run.
type StoreClient struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration
}

// NewStoreClient creates a client for the given base URL. A non-positive
// timeout falls back to the default.
func NewStoreClient(baseURL string, timeout time.Duration) *StoreClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &StoreClient{
		baseURL: baseURL,
		httpc:   &http.Client{},
		timeout: timeout,
	}
}

// Experiment fetches the full experiment definition with its stage list.
func (c *StoreClient) Experiment(ctx context.Context, experimentID string) (*domain.Experiment, error) {
	var exp domain.Experiment
	path := fmt.Sprintf("/api/experiments/%s", url.PathEscape(experimentID))
	if err := c.getJSON(ctx, path, &exp); err != nil {
		return nil, errors.Wrap(err, "fetch experiment definition")
	}
	return &exp, nil
}

// Scenario fetches the resolved scenario snapshot referenced by a stage.
func (c *StoreClient) Scenario(ctx context.Context, scenarioID string) (*domain.ScenarioSnapshot, error) {
	var snap domain.ScenarioSnapshot
	path := fmt.Sprintf("/api/scenarios/%s", url.PathEscape(scenarioID))
	if err := c.getJSON(ctx, path, &snap); err != nil {
		return nil, errors.Wrap(err, "fetch scenario snapshot")
	}
	return &snap, nil
}

// WalletAssets fetches the static holdings for a scenario run.
func (c *StoreClient) WalletAssets(ctx context.Context, walletID string) ([]domain.WalletAsset, error) {
	var assets []domain.WalletAsset
	path := fmt.Sprintf("/api/wallets/%s/assets", url.PathEscape(walletID))
	if err := c.getJSON(ctx, path, &assets); err != nil {
		return nil, errors.Wrap(err, "fetch wallet assets")
	}
	return assets, nil
}

// Progress fetches the participant's progress record, ErrNotFound when the
// store has none.
func (c *StoreClient) Progress(ctx context.Context, experimentID, participantID string) (*domain.ParticipantProgress, error) {
	var progress domain.ParticipantProgress
	path := fmt.Sprintf("/api/experiments/%s/progress/%s",
		url.PathEscape(experimentID), url.PathEscape(participantID))
	if err := c.getJSON(ctx, path, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

type progressWrite struct {
	Status          domain.ProgressStatus `json:"status"`
	CurrentStageID  string                `json:"currentStageId,omitempty"`
	StageCompletion *domain.StageResponse `json:"stageCompletion,omitempty"`
	StartedAt       *time.Time            `json:"startedAt,omitempty"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty"`
}

// SaveProgress writes the participant's current progress, optionally carrying
// the stage completion payload that caused the write.
func (c *StoreClient) SaveProgress(ctx context.Context, p *domain.ParticipantProgress, completion *domain.StageResponse) error {
	body := progressWrite{
		Status:          p.Status,
		CurrentStageID:  p.CurrentStageID,
		StageCompletion: completion,
		StartedAt:       p.StartedAt,
		CompletedAt:     p.CompletedAt,
	}
	path := fmt.Sprintf("/api/experiments/%s/progress/%s",
		url.PathEscape(p.ExperimentID), url.PathEscape(p.ParticipantID))
	return c.putJSON(ctx, path, body)
}

func (c *StoreClient) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("store returned %s for GET %s", resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *StoreClient) putJSON(ctx context.Context, path string, body any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("store returned %s for PUT %s", resp.Status, path)
	}
	return nil
}
