package scenario

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/stagerun/internal/domain"
)

type fakeLoader struct {
	snapshot    *domain.ScenarioSnapshot
	snapshotErr error
	assets      []domain.WalletAsset
	assetsErr   error
}

func (f *fakeLoader) Scenario(ctx context.Context, scenarioID string) (*domain.ScenarioSnapshot, error) {
	return f.snapshot, f.snapshotErr
}

func (f *fakeLoader) WalletAssets(ctx context.Context, walletID string) ([]domain.WalletAsset, error) {
	return f.assets, f.assetsErr
}

func prices(symbol string, values ...int64) domain.AssetPriceSeries {
	s := domain.AssetPriceSeries{Symbol: symbol}
	for _, v := range values {
		s.Prices = append(s.Prices, decimal.NewFromInt(v))
	}
	return s
}

func fastRunner(loader SnapshotLoader) *Runner {
	r := NewRunner(loader, nil)
	r.tick = time.Millisecond
	return r
}

func TestRunner_PlaysEveryRound(t *testing.T) {
	loader := &fakeLoader{
		snapshot: &domain.ScenarioSnapshot{
			Rounds:        3,
			RoundDuration: 2,
			WalletID:      "w-1",
			AssetPrices:   []domain.AssetPriceSeries{prices("X", 100, 110, 90)},
		},
		assets: []domain.WalletAsset{{ID: "a", Symbol: "X", Amount: decimal.NewFromInt(10)}},
	}

	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 3, RoundDuration: 2}
	r := fastRunner(loader)

	var mu sync.Mutex
	var rounds []int
	var lastValue decimal.Decimal

	result, err := r.Run(context.Background(), stage, func(ev RoundEvent) {
		mu.Lock()
		defer mu.Unlock()
		rounds = append(rounds, ev.Round)
		if ev.Valuation != nil {
			lastValue = ev.Valuation.TotalUSDValue
		}
	}, func() bool {
		t.Error("skip prompt on a healthy run")
		return false
	})
	require.NoError(t, err)

	assert.Equal(t, "sc-1", result.ScenarioID)
	assert.Equal(t, 3, result.CompletedRounds)

	mu.Lock()
	defer mu.Unlock()
	// two ticks per round, three rounds
	assert.Equal(t, []int{1, 1, 2, 2, 3, 3}, rounds)
	assert.True(t, lastValue.Equal(decimal.NewFromInt(900)), "final round valuation, got %s", lastValue)
}

func TestRunner_RoundsClampedToPriceData(t *testing.T) {
	loader := &fakeLoader{
		snapshot: &domain.ScenarioSnapshot{
			Rounds:        10,
			RoundDuration: 1,
			WalletID:      "w-1",
			AssetPrices:   []domain.AssetPriceSeries{prices("X", 100, 110)},
		},
		assets: []domain.WalletAsset{{Symbol: "X", Amount: decimal.NewFromInt(1)}},
	}

	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 10, RoundDuration: 1}
	result, err := fastRunner(loader).Run(context.Background(), stage, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.CompletedRounds, "participant never sees rounds past the price data")
}

func TestRunner_DegradesOnSnapshotFailure(t *testing.T) {
	loader := &fakeLoader{snapshotErr: errors.New("store down")}
	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 2, RoundDuration: 1}

	var mu sync.Mutex
	sawValuation := false

	result, err := fastRunner(loader).Run(context.Background(), stage, func(ev RoundEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Valuation != nil {
			sawValuation = true
		}
	}, nil)
	require.NoError(t, err)

	// stage-authored rounds drive the degraded run
	assert.Equal(t, 2, result.CompletedRounds)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, sawValuation, "no valuations without a snapshot")
}

func TestRunner_DegradesOnWalletFailure(t *testing.T) {
	loader := &fakeLoader{
		snapshot: &domain.ScenarioSnapshot{
			Rounds:        1,
			RoundDuration: 1,
			WalletID:      "w-1",
			AssetPrices:   []domain.AssetPriceSeries{prices("X", 100)},
		},
		assetsErr: errors.New("wallet fetch failed"),
	}
	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 1, RoundDuration: 1}

	result, err := fastRunner(loader).Run(context.Background(), stage, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CompletedRounds)
}

func TestRunner_CancellationStopsMidScenario(t *testing.T) {
	loader := &fakeLoader{
		snapshot: &domain.ScenarioSnapshot{Rounds: 5, RoundDuration: 1000, WalletID: "w-1"},
		assets:   []domain.WalletAsset{},
	}
	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 5, RoundDuration: 1000}

	ctx, cancel := context.WithCancel(context.Background())
	r := fastRunner(loader)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result, err := r.Run(ctx, stage, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.CompletedRounds)
}

func TestRunner_DegradedScenarioCanBeSkipped(t *testing.T) {
	loader := &fakeLoader{snapshotErr: errors.New("store down")}
	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 3, RoundDuration: 1}

	t.Run("participant skips", func(t *testing.T) {
		var mu sync.Mutex
		events := 0
		result, err := fastRunner(loader).Run(context.Background(), stage,
			func(RoundEvent) {
				mu.Lock()
				defer mu.Unlock()
				events++
			},
			func() bool { return true },
		)
		require.NoError(t, err)

		assert.True(t, result.Skipped)
		assert.Equal(t, 0, result.CompletedRounds)
		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, events, "no round runs after a skip")
	})

	t.Run("participant plays on", func(t *testing.T) {
		var mu sync.Mutex
		sawTrade := false
		result, err := fastRunner(loader).Run(context.Background(), stage,
			func(ev RoundEvent) {
				mu.Lock()
				defer mu.Unlock()
				if ev.Trade != nil {
					sawTrade = true
				}
			},
			func() bool { return false },
		)
		require.NoError(t, err)

		assert.False(t, result.Skipped)
		assert.Equal(t, 3, result.CompletedRounds)
		mu.Lock()
		defer mu.Unlock()
		assert.False(t, sawTrade, "no trade actions without scenario data")
	})
}

func TestRunner_TradeActionsAreSimulatedOnly(t *testing.T) {
	loader := &fakeLoader{
		snapshot: &domain.ScenarioSnapshot{
			Rounds:        2,
			RoundDuration: 1,
			WalletID:      "w-1",
			AssetPrices:   []domain.AssetPriceSeries{prices("X", 100, 110)},
		},
		assets: []domain.WalletAsset{{ID: "a", Symbol: "X", Amount: decimal.NewFromInt(10)}},
	}
	stage := &domain.ScenarioStage{ScenarioID: "sc-1", Rounds: 2, RoundDuration: 1}

	var mu sync.Mutex
	var afterTrade []decimal.Decimal
	_, err := fastRunner(loader).Run(context.Background(), stage, func(ev RoundEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Trade == nil {
			return
		}
		v := ev.Trade("buy", "a")
		afterTrade = append(afterTrade, v.TotalUSDValue)
	}, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, afterTrade)
	// holdings never change: post-trade values track the round prices only
	assert.True(t, afterTrade[0].Equal(decimal.NewFromInt(1000)), "round 1 after buy, got %s", afterTrade[0])
	last := afterTrade[len(afterTrade)-1]
	assert.True(t, last.Equal(decimal.NewFromInt(1100)), "round 2 after buy, got %s", last)
}
