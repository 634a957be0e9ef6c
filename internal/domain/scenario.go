package domain

import "github.com/shopspring/decimal"

// AssetPriceSeries holds the per-round prices of one tradable asset.
// Prices[i] is the price at round i+1 (rounds are 1-indexed). A round index
// past the end of the series reuses the last known price, that is a defined
// fallback and never an error.
type AssetPriceSeries struct {
	AssetID string            `json:"assetId"`
	Symbol  string            `json:"symbol"`
	Prices  []decimal.Decimal `json:"prices"`
}

// PriceAt returns the price for the given 1-indexed round, clamped to the
// last available entry. ok is false when the series is empty.
func (s *AssetPriceSeries) PriceAt(round int) (price decimal.Decimal, idx int, ok bool) {
	if len(s.Prices) == 0 {
		return decimal.Decimal{}, 0, false
	}
	idx = round - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.Prices)-1 {
		idx = len(s.Prices) - 1
	}
	return s.Prices[idx], idx, true
}

// ScenarioSnapshot is the resolved scenario data fetched by reference from a
// scenario stage: timing, pricing and the wallet the participant observes.
type ScenarioSnapshot struct {
	Rounds        int                `json:"rounds"`
	RoundDuration int                `json:"roundDuration"`
	WalletID      string             `json:"walletId"`
	AssetPrices   []AssetPriceSeries `json:"assetPrices"`
}

// WalletAsset is a static holding for the run. Amounts never change, trading
// actions during a scenario are simulated in the UI only.
type WalletAsset struct {
	ID     string          `json:"id"`
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}
