package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMarketData() MarketData {
	return MarketData{
		Summary: map[string]StockMetrics{
			"AAPL": {AnnualReturn: 20, Volatility: 20},
			"MSFT": {AnnualReturn: 30, Volatility: 20},
			"JNJ":  {AnnualReturn: 10, Volatility: 10},
		},
		Tickers: []string{"AAPL", "JNJ", "MSFT"},
		Period:  "2024-01-01 to 2024-12-31",
	}
}

func allocationTotal(allocation map[string]float64) float64 {
	var total float64
	for _, weight := range allocation {
		total += weight
	}
	return total
}

func TestNewGrowthPortfolio_PerformanceWeighted(t *testing.T) {
	p, err := NewGrowthPortfolio(testMarketData(), PerformanceWeighted)
	require.NoError(t, err)

	assert.Equal(t, "Growth", p.Strategy)
	assert.Equal(t, PerformanceWeighted, p.AllocationMethod)
	assert.Equal(t, "High", p.RiskLevel)

	// Weights proportional to returns: 20/60, 30/60, 10/60.
	assert.InDelta(t, 33.33, p.Allocation["AAPL"], 0.01)
	assert.InDelta(t, 50.0, p.Allocation["MSFT"], 0.01)
	assert.InDelta(t, 16.67, p.Allocation["JNJ"], 0.01)
	assert.InDelta(t, 100, allocationTotal(p.Allocation), 0.05)

	// 0.3333*20 + 0.5*30 + 0.1667*10 ≈ 23.33
	assert.InDelta(t, 23.33, p.ExpectedReturn, 0.05)
}

func TestNewGrowthPortfolio_FloorsNegativeReturns(t *testing.T) {
	data := MarketData{Summary: map[string]StockMetrics{
		"UP":   {AnnualReturn: 19.9, Volatility: 20},
		"DOWN": {AnnualReturn: -15, Volatility: 30},
	}}

	p, err := NewGrowthPortfolio(data, PerformanceWeighted)
	require.NoError(t, err)

	// The loser keeps a token weight: 0.1 / (19.9 + 0.1).
	assert.InDelta(t, 0.5, p.Allocation["DOWN"], 0.01)
	assert.InDelta(t, 99.5, p.Allocation["UP"], 0.01)
}

func TestNewGrowthPortfolio_RiskAdjusted(t *testing.T) {
	p, err := NewGrowthPortfolio(testMarketData(), RiskAdjusted)
	require.NoError(t, err)

	// Sharpe ratios: AAPL 1.0, MSFT 1.5, JNJ 1.0 — total 3.5.
	assert.InDelta(t, 28.57, p.Allocation["AAPL"], 0.01)
	assert.InDelta(t, 42.86, p.Allocation["MSFT"], 0.01)
	assert.InDelta(t, 28.57, p.Allocation["JNJ"], 0.01)
}

func TestNewGrowthPortfolio_EqualWeight(t *testing.T) {
	p, err := NewGrowthPortfolio(testMarketData(), EqualWeight)
	require.NoError(t, err)

	for ticker, weight := range p.Allocation {
		assert.InDelta(t, 33.33, weight, 0.01, ticker)
	}
}

func TestNewGrowthPortfolio_DefaultsAndErrors(t *testing.T) {
	p, err := NewGrowthPortfolio(testMarketData(), "")
	require.NoError(t, err)
	assert.Equal(t, PerformanceWeighted, p.AllocationMethod)

	_, err = NewGrowthPortfolio(testMarketData(), "momentum")
	assert.ErrorContains(t, err, "unknown allocation method")

	_, err = NewGrowthPortfolio(MarketData{}, EqualWeight)
	assert.ErrorContains(t, err, "no summary metrics")
}

func TestNewDiversifiedPortfolio(t *testing.T) {
	p, err := NewDiversifiedPortfolio(testMarketData(), 0)
	require.NoError(t, err)

	assert.Equal(t, "Diversified", p.Strategy)
	assert.Equal(t, "Moderate", p.RiskLevel)
	assert.Equal(t, 3, p.Holdings)
	assert.InDelta(t, 100, allocationTotal(p.Allocation), 0.05)
	assert.Positive(t, p.AvgVolatility)

	// The 30% cap binds for MSFT (raw Sharpe weight 42.86); after the cap
	// and renormalization no holding exceeds the others by the raw ratio.
	for ticker, weight := range p.Allocation {
		assert.LessOrEqual(t, weight, 35.0, ticker)
	}
}

func TestNewDiversifiedPortfolio_CapApplied(t *testing.T) {
	data := MarketData{Summary: map[string]StockMetrics{
		"BIG":   {AnnualReturn: 90, Volatility: 10}, // Sharpe 9
		"SMALL": {AnnualReturn: 10, Volatility: 10}, // Sharpe 1
	}}

	p, err := NewDiversifiedPortfolio(data, 30)
	require.NoError(t, err)

	// Raw weights 90/10; BIG capped to 30 then renormalized: 30/40 and 10/40.
	assert.InDelta(t, 75.0, p.Allocation["BIG"], 0.01)
	assert.InDelta(t, 25.0, p.Allocation["SMALL"], 0.01)
}

func TestCalculatePerformance(t *testing.T) {
	data := testMarketData()
	p, err := NewGrowthPortfolio(data, EqualWeight)
	require.NoError(t, err)

	perf, err := CalculatePerformance(p, data, 1000)
	require.NoError(t, err)

	assert.Equal(t, "Growth", perf.Strategy)
	assert.Equal(t, 1000.0, perf.InitialInvestment)
	// Equal weight: return = (20+30+10)/3 = 20.
	assert.InDelta(t, 20.0, perf.ReturnPercent, 0.05)
	assert.InDelta(t, 1200.0, perf.FinalValue, 0.5)
	assert.InDelta(t, 200.0, perf.Profit, 0.5)
	assert.InDelta(t, 16.67, perf.VolatilityPercent, 0.05)
}

func TestCalculatePerformance_DefaultInvestment(t *testing.T) {
	data := testMarketData()
	p, err := NewGrowthPortfolio(data, EqualWeight)
	require.NoError(t, err)

	perf, err := CalculatePerformance(p, data, 0)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, perf.InitialInvestment)
}

func TestCalculatePerformance_UnknownTicker(t *testing.T) {
	p := Portfolio{Allocation: map[string]float64{"ZZZZ": 100}}

	_, err := CalculatePerformance(p, testMarketData(), 1000)
	assert.ErrorContains(t, err, "no metrics for ticker ZZZZ")
}

func TestValidatePortfolio(t *testing.T) {
	data := testMarketData()
	p, err := NewGrowthPortfolio(data, EqualWeight)
	require.NoError(t, err)

	result, err := ValidatePortfolio(p, data, 0)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.WithinTolerance)
	assert.InDelta(t, result.ProjectedReturn, result.HistoricalReturn, 0.05)
}

func TestValidatePortfolio_DeviationOutsideTolerance(t *testing.T) {
	data := testMarketData()
	p := Portfolio{
		Allocation:     map[string]float64{"AAPL": 100},
		ExpectedReturn: 50, // actual AAPL return is 20
	}

	result, err := ValidatePortfolio(p, data, 2)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.WithinTolerance)
	assert.InDelta(t, 30.0, result.Deviation, 0.01)
	assert.Contains(t, result.Message, "deviates")
}

func TestValidatePortfolio_MissingHistory(t *testing.T) {
	p := Portfolio{Allocation: map[string]float64{"ZZZZ": 100}}

	result, err := ValidatePortfolio(p, testMarketData(), 2)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no historical metrics")
}

func TestAllocationChart(t *testing.T) {
	p := Portfolio{
		Strategy:   "Growth",
		Allocation: map[string]float64{"AAPL": 60, "MSFT": 40},
	}

	chart, err := AllocationChart(p, "")
	require.NoError(t, err)

	assert.Equal(t, "Growth Portfolio Allocation", chart.Title)
	assert.Equal(t, "pie", chart.Type)
	assert.Equal(t, []string{"AAPL", "MSFT"}, chart.Labels)
}

func TestPerformanceChart(t *testing.T) {
	chart, err := PerformanceChart([]Performance{
		{Strategy: "Growth", ReturnPercent: 23.3},
		{Strategy: "Diversified", ReturnPercent: 18.1},
	}, "")
	require.NoError(t, err)

	assert.Equal(t, "Performance Comparison", chart.Title)
	assert.Equal(t, "bar", chart.Type)
	assert.Equal(t, []string{"Diversified", "Growth"}, chart.Labels)
	assert.Equal(t, []float64{18.1, 23.3}, chart.Values)

	_, err = PerformanceChart(nil, "")
	assert.ErrorContains(t, err, "no performance data")
}
