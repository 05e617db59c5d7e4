// Package pricing derives suggested prices from a product's cost and current
// price under a user's pricing settings. Every caller that suggests a price
// goes through ComputeSuggestedPrice so identical inputs always produce the
// same output.
package pricing

import (
	"math"
	"strings"

	"pricing-service/internal/models"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)

	// assumed cost when a product has no cost price on record
	defaultCostRatio = decimal.RequireFromString("0.6")

	defaultMarketMultiplier = decimal.NewFromInt(2)

	// stand-in for real market analysis until competitor data is ingested
	categoryMultipliers = map[string]decimal.Decimal{
		"electronics": decimal.RequireFromString("2.2"),
		"clothing":    decimal.RequireFromString("2.5"),
		"home":        decimal.RequireFromString("2.0"),
		"sports":      decimal.RequireFromString("2.3"),
		"books":       decimal.RequireFromString("1.8"),
	}

	volumeMarkup      = decimal.RequireFromString("1.8")
	competitiveUplift = decimal.RequireFromString("1.05")
)

// Input is the per-product data the engine needs
type Input struct {
	CurrentPrice float64
	CostPrice    *float64
	Category     string
}

// InputFromProduct extracts the engine input from a catalog product
func InputFromProduct(p models.Product) Input {
	return Input{
		CurrentPrice: p.CurrentPrice,
		CostPrice:    p.CostPrice,
		Category:     p.Category,
	}
}

// MarketMultiplier returns the markup applied to cost under the profit strategy
func MarketMultiplier(category string) decimal.Decimal {
	if m, ok := categoryMultipliers[strings.ToLower(strings.TrimSpace(category))]; ok {
		return m
	}
	return defaultMarketMultiplier
}

// ComputeSuggestedPrice returns the suggested price rounded half-up to cents.
// ok is false when the input cannot be priced: non-positive or non-finite
// prices, negative percentages or an unknown strategy. An empty strategy
// means profit.
//
// The increase ceiling is applied after the margin floor, so when the two
// conflict the ceiling wins and the realized margin falls below the minimum.
func ComputeSuggestedPrice(in Input, settings models.PricingSettings) (float64, bool) {
	if !finitePositive(in.CurrentPrice) {
		return 0, false
	}
	if !finiteNonNegative(settings.MinProfitMargin) || !finiteNonNegative(settings.MaxPriceIncrease) {
		return 0, false
	}

	current := decimal.NewFromFloat(in.CurrentPrice)
	cost := current.Mul(defaultCostRatio)
	if in.CostPrice != nil {
		if !finitePositive(*in.CostPrice) {
			return 0, false
		}
		cost = decimal.NewFromFloat(*in.CostPrice)
	}

	strategy := settings.Strategy
	if strategy == "" {
		strategy = models.StrategyProfit
	}

	var price decimal.Decimal
	switch strategy {
	case models.StrategyProfit:
		price = cost.Mul(MarketMultiplier(in.Category))
	case models.StrategyVolume:
		price = cost.Mul(volumeMarkup)
	case models.StrategyCompetitive:
		price = current.Mul(competitiveUplift)
	default:
		return 0, false
	}

	floor := cost.Mul(one.Add(decimal.NewFromFloat(settings.MinProfitMargin).Div(hundred)))
	ceiling := current.Mul(one.Add(decimal.NewFromFloat(settings.MaxPriceIncrease).Div(hundred)))

	price = decimal.Max(price, floor)
	price = decimal.Min(price, ceiling)

	f, _ := price.Round(2).Float64()
	return f, true
}

// ChangePercent is the relative change from oldPrice to newPrice in percent
func ChangePercent(oldPrice, newPrice float64) float64 {
	if oldPrice == 0 {
		return 0
	}
	pct, _ := decimal.NewFromFloat(newPrice).
		Sub(decimal.NewFromFloat(oldPrice)).
		Div(decimal.NewFromFloat(oldPrice)).
		Mul(hundred).
		Round(1).
		Float64()
	return pct
}

// SamePrice reports whether two prices are equal to the cent
func SamePrice(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
