// Package valuation computes portfolio value and round-over-round change from
// a wallet snapshot and per-round price series. Compute is a pure function,
// no I/O and no mutation, so scenario stages can call it on every tick.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/stagerun/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// AssetValuation is the per-asset view at a given round. HasChange is false
// on the first round and whenever there is no price history, callers must
// distinguish "no change data" from a change of zero.
type AssetValuation struct {
	AssetID       string
	Symbol        string
	Name          string
	Amount        decimal.Decimal
	CurrentPrice  decimal.Decimal
	USDValue      decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	HasChange     bool
}

// Result aggregates all priced assets. Assets without a resolvable price
// series are excluded from the totals and listed in Unpriced.
type Result struct {
	Assets             []AssetValuation
	Unpriced           []domain.WalletAsset
	TotalUSDValue      decimal.Decimal
	TotalChange        decimal.Decimal
	TotalChangePercent decimal.Decimal
	HasChange          bool
}

// Compute values the wallet at the given 1-indexed round. A round beyond the
// available price data clamps to the last known price.
func Compute(assets []domain.WalletAsset, prices []domain.AssetPriceSeries, currentRound int) Result {
	result := Result{}
	totalPrevious := decimal.Zero

	for _, asset := range assets {
		series := findSeries(prices, asset)
		if series == nil {
			result.Unpriced = append(result.Unpriced, asset)
			continue
		}

		price, idx, ok := series.PriceAt(currentRound)
		if !ok {
			result.Unpriced = append(result.Unpriced, asset)
			continue
		}

		av := AssetValuation{
			AssetID:      asset.ID,
			Symbol:       asset.Symbol,
			Name:         asset.Name,
			Amount:       asset.Amount,
			CurrentPrice: price,
			USDValue:     asset.Amount.Mul(price),
		}

		if idx > 0 {
			previousValue := asset.Amount.Mul(series.Prices[idx-1])
			av.Change = av.USDValue.Sub(previousValue)
			if !previousValue.IsZero() {
				av.ChangePercent = av.Change.Div(previousValue).Mul(hundred)
			}
			av.HasChange = true

			totalPrevious = totalPrevious.Add(previousValue)
			result.TotalChange = result.TotalChange.Add(av.Change)
			result.HasChange = true
		}

		result.TotalUSDValue = result.TotalUSDValue.Add(av.USDValue)
		result.Assets = append(result.Assets, av)
	}

	if result.HasChange && !totalPrevious.IsZero() {
		result.TotalChangePercent = result.TotalChange.Div(totalPrevious).Mul(hundred)
	}

	return result
}

// findSeries matches a price series by asset id first, then falls back to the
// symbol.
func findSeries(prices []domain.AssetPriceSeries, asset domain.WalletAsset) *domain.AssetPriceSeries {
	for i := range prices {
		if prices[i].AssetID != "" && prices[i].AssetID == asset.ID {
			return &prices[i]
		}
	}
	for i := range prices {
		if prices[i].Symbol != "" && prices[i].Symbol == asset.Symbol {
			return &prices[i]
		}
	}
	return nil
}
