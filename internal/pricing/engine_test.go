package pricing

import (
	"math"
	"math/rand"
	"testing"

	"pricing-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func settings(strategy models.Strategy, minMargin, maxIncrease float64) models.PricingSettings {
	return models.PricingSettings{
		Strategy:         strategy,
		MinProfitMargin:  minMargin,
		MaxPriceIncrease: maxIncrease,
	}
}

func TestComputeSuggestedPrice(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		settings models.PricingSettings
		want     float64
	}{
		{
			name:     "electronics profit below ceiling",
			in:       Input{CurrentPrice: 29.99, CostPrice: ptr(15.00), Category: "electronics"},
			settings: settings(models.StrategyProfit, 20, 25),
			want:     33.00,
		},
		{
			name:     "ceiling undercuts margin floor",
			in:       Input{CurrentPrice: 52.00, CostPrice: ptr(50.00)},
			settings: settings(models.StrategyProfit, 20, 5),
			want:     54.60,
		},
		{
			name:     "unknown category uses default multiplier",
			in:       Input{CurrentPrice: 100, CostPrice: ptr(40), Category: "garden"},
			settings: settings(models.StrategyProfit, 20, 50),
			want:     80.00,
		},
		{
			name:     "no category uses default multiplier",
			in:       Input{CurrentPrice: 100, CostPrice: ptr(40)},
			settings: settings(models.StrategyProfit, 20, 50),
			want:     80.00,
		},
		{
			name:     "category lookup ignores case",
			in:       Input{CurrentPrice: 100, CostPrice: ptr(40), Category: " Clothing "},
			settings: settings(models.StrategyProfit, 20, 50),
			want:     100.00,
		},
		{
			name:     "missing cost defaults to sixty percent of current",
			in:       Input{CurrentPrice: 10.00, Category: "books"},
			settings: settings(models.StrategyProfit, 20, 25),
			want:     10.80,
		},
		{
			name:     "volume strategy",
			in:       Input{CurrentPrice: 30, CostPrice: ptr(10)},
			settings: settings(models.StrategyVolume, 20, 25),
			want:     18.00,
		},
		{
			name:     "competitive strategy",
			in:       Input{CurrentPrice: 20, CostPrice: ptr(10)},
			settings: settings(models.StrategyCompetitive, 20, 25),
			want:     21.00,
		},
		{
			name:     "margin floor lifts a low raw price",
			in:       Input{CurrentPrice: 20, CostPrice: ptr(15)},
			settings: settings(models.StrategyCompetitive, 50, 25),
			want:     22.50,
		},
		{
			name:     "empty strategy means profit",
			in:       Input{CurrentPrice: 29.99, CostPrice: ptr(15.00), Category: "electronics"},
			settings: settings("", 20, 25),
			want:     33.00,
		},
		{
			name:     "ceiling rounds half up",
			in:       Input{CurrentPrice: 29.99, CostPrice: ptr(20.00), Category: "clothing"},
			settings: settings(models.StrategyProfit, 20, 25),
			want:     37.49,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeSuggestedPrice(tt.in, tt.settings)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeSuggestedPriceSkips(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		settings models.PricingSettings
	}{
		{"zero current price", Input{CurrentPrice: 0, CostPrice: ptr(5)}, settings(models.StrategyProfit, 20, 25)},
		{"negative current price", Input{CurrentPrice: -1}, settings(models.StrategyProfit, 20, 25)},
		{"zero cost", Input{CurrentPrice: 10, CostPrice: ptr(0)}, settings(models.StrategyProfit, 20, 25)},
		{"negative margin", Input{CurrentPrice: 10}, settings(models.StrategyProfit, -1, 25)},
		{"negative increase", Input{CurrentPrice: 10}, settings(models.StrategyProfit, 20, -1)},
		{"unknown strategy", Input{CurrentPrice: 10}, settings("aggressive", 20, 25)},
		{"nan price", Input{CurrentPrice: math.NaN()}, settings(models.StrategyProfit, 20, 25)},
		{"infinite cost", Input{CurrentPrice: 10, CostPrice: ptr(math.Inf(1))}, settings(models.StrategyProfit, 20, 25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ComputeSuggestedPrice(tt.in, tt.settings)
			assert.False(t, ok)
		})
	}
}

func TestComputeSuggestedPriceBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	strategies := []models.Strategy{models.StrategyProfit, models.StrategyVolume, models.StrategyCompetitive}
	categories := []string{"electronics", "clothing", "home", "sports", "books", "other"}

	// rounding to cents may move the result by at most half a cent
	const halfCent = 0.005 + 1e-9

	for i := 0; i < 5000; i++ {
		current := math.Round((0.5+rng.Float64()*500)*100) / 100
		cost := math.Round((0.1+rng.Float64()*current*1.5)*100) / 100
		minMargin := float64(rng.Intn(100))
		maxIncrease := float64(rng.Intn(60))
		s := settings(strategies[rng.Intn(len(strategies))], minMargin, maxIncrease)
		in := Input{CurrentPrice: current, CostPrice: &cost, Category: categories[rng.Intn(len(categories))]}

		got, ok := ComputeSuggestedPrice(in, s)
		require.True(t, ok)

		floor := cost * (1 + minMargin/100)
		ceiling := current * (1 + maxIncrease/100)

		assert.LessOrEqual(t, got, ceiling+halfCent, "ceiling violated for %+v %+v", in, s)
		if floor <= ceiling {
			assert.GreaterOrEqual(t, got, floor-halfCent, "floor violated for %+v %+v", in, s)
		}

		again, _ := ComputeSuggestedPrice(in, s)
		assert.Equal(t, got, again)
	}
}

func TestMarketMultiplier(t *testing.T) {
	assert.Equal(t, "2.2", MarketMultiplier("electronics").String())
	assert.Equal(t, "1.8", MarketMultiplier("books").String())
	assert.Equal(t, "2", MarketMultiplier("").String())
}

func TestChangePercent(t *testing.T) {
	assert.Equal(t, 10.0, ChangePercent(100, 110))
	assert.Equal(t, -12.5, ChangePercent(40, 35))
	assert.Equal(t, 0.0, ChangePercent(0, 10))
}

func TestSamePrice(t *testing.T) {
	assert.True(t, SamePrice(33, 33.00))
	assert.True(t, SamePrice(0.1+0.2, 0.3))
	assert.False(t, SamePrice(33.00, 33.01))
}
