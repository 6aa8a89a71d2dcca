package finance

import (
	"fmt"
	"math"
	"sort"
)

// AllocationMethod selects how a growth portfolio weights its holdings.
type AllocationMethod string

const (
	// PerformanceWeighted allocates proportionally to annual return, with a
	// small floor so losing stocks still get a token weight.
	PerformanceWeighted AllocationMethod = "performance_weighted"

	// RiskAdjusted allocates proportionally to the Sharpe ratio.
	RiskAdjusted AllocationMethod = "risk_adjusted"

	// EqualWeight splits the portfolio evenly.
	EqualWeight AllocationMethod = "equal_weight"
)

const defaultMaxAllocation = 30.0

// Portfolio is an allocation of 100% across tickers plus projected
// characteristics of the mix.
type Portfolio struct {
	Allocation       map[string]float64 `json:"allocation"`
	Strategy         string             `json:"strategy"`
	AllocationMethod AllocationMethod   `json:"allocation_method,omitempty"`
	ExpectedReturn   float64            `json:"expected_return"`
	AvgVolatility    float64            `json:"avg_volatility,omitempty"`
	RiskLevel        string             `json:"risk_level"`
	Holdings         int                `json:"holdings,omitempty"`
}

// NewGrowthPortfolio builds a growth-focused allocation across the tickers in
// data using the chosen method. Weights are percentages summing to 100.
func NewGrowthPortfolio(data MarketData, method AllocationMethod) (Portfolio, error) {
	if len(data.Summary) == 0 {
		return Portfolio{}, fmt.Errorf("market data has no summary metrics")
	}

	if method == "" {
		method = PerformanceWeighted
	}

	var allocation map[string]float64

	switch method {
	case EqualWeight:
		allocation = make(map[string]float64, len(data.Summary))
		weight := 100.0 / float64(len(data.Summary))
		for ticker := range data.Summary {
			allocation[ticker] = weight
		}

	case RiskAdjusted:
		sharpes := make(map[string]float64, len(data.Summary))
		var totalSharpe float64
		for ticker, m := range data.Summary {
			sharpes[ticker] = m.Sharpe()
			totalSharpe += sharpes[ticker]
		}

		allocation = make(map[string]float64, len(sharpes))
		for ticker, sharpe := range sharpes {
			if totalSharpe > 0 {
				allocation[ticker] = sharpe / totalSharpe * 100
			}
		}

	case PerformanceWeighted:
		// Floor returns at 0.1 so every holding keeps a nonzero weight.
		floored := make(map[string]float64, len(data.Summary))
		var totalReturn float64
		for ticker, m := range data.Summary {
			floored[ticker] = math.Max(m.AnnualReturn, 0.1)
			totalReturn += floored[ticker]
		}

		allocation = make(map[string]float64, len(floored))
		for ticker, ret := range floored {
			if totalReturn > 0 {
				allocation[ticker] = ret / totalReturn * 100
			}
		}

	default:
		return Portfolio{}, fmt.Errorf("unknown allocation method %q", method)
	}

	roundAllocation(allocation)

	return Portfolio{
		Allocation:       allocation,
		Strategy:         "Growth",
		AllocationMethod: method,
		ExpectedReturn:   round2(weightedReturn(allocation, data)),
		RiskLevel:        "High",
	}, nil
}

// NewDiversifiedPortfolio builds a Sharpe-weighted allocation with a per-stock
// cap, then renormalizes to 100%. A maxAllocation of 0 uses the default 30%.
func NewDiversifiedPortfolio(data MarketData, maxAllocation float64) (Portfolio, error) {
	if len(data.Summary) == 0 {
		return Portfolio{}, fmt.Errorf("market data has no summary metrics")
	}

	if maxAllocation <= 0 {
		maxAllocation = defaultMaxAllocation
	}

	var totalSharpe float64
	sharpes := make(map[string]float64, len(data.Summary))
	for ticker, m := range data.Summary {
		sharpes[ticker] = m.Sharpe()
		totalSharpe += sharpes[ticker]
	}

	allocation := make(map[string]float64, len(sharpes))
	var totalAlloc float64
	for ticker, sharpe := range sharpes {
		raw := 0.0
		if totalSharpe > 0 {
			raw = sharpe / totalSharpe * 100
		}
		allocation[ticker] = math.Min(raw, maxAllocation)
		totalAlloc += allocation[ticker]
	}

	if totalAlloc > 0 {
		for ticker := range allocation {
			allocation[ticker] = allocation[ticker] / totalAlloc * 100
		}
	}
	roundAllocation(allocation)

	return Portfolio{
		Allocation:     allocation,
		Strategy:       "Diversified",
		ExpectedReturn: round2(weightedReturn(allocation, data)),
		AvgVolatility:  round2(weightedVolatility(allocation, data)),
		RiskLevel:      "Moderate",
		Holdings:       len(allocation),
	}, nil
}

// Performance projects a portfolio over one year for a concrete investment.
type Performance struct {
	Strategy          string  `json:"strategy"`
	InitialInvestment float64 `json:"initial_investment"`
	FinalValue        float64 `json:"final_value"`
	Profit            float64 `json:"profit"`
	ReturnPercent     float64 `json:"return_percent"`
	VolatilityPercent float64 `json:"volatility_percent"`
	RiskLevel         string  `json:"risk_level"`
}

// CalculatePerformance projects the one-year outcome of investing the amount
// into the portfolio. An amount of 0 defaults to 1000.
func CalculatePerformance(p Portfolio, data MarketData, investment float64) (Performance, error) {
	if len(p.Allocation) == 0 {
		return Performance{}, fmt.Errorf("portfolio has no allocation")
	}
	if investment <= 0 {
		investment = 1000
	}

	for ticker := range p.Allocation {
		if _, ok := data.Summary[ticker]; !ok {
			return Performance{}, fmt.Errorf("no metrics for ticker %s", ticker)
		}
	}

	ret := weightedReturn(p.Allocation, data)
	vol := weightedVolatility(p.Allocation, data)

	finalValue := investment * (1 + ret/100)

	return Performance{
		Strategy:          p.Strategy,
		InitialInvestment: investment,
		FinalValue:        round2(finalValue),
		Profit:            round2(finalValue - investment),
		ReturnPercent:     round2(ret),
		VolatilityPercent: round2(vol),
		RiskLevel:         p.RiskLevel,
	}, nil
}

// ValidationResult compares a portfolio's projected return against the
// return implied by historical metrics.
type ValidationResult struct {
	Success          bool    `json:"success"`
	ProjectedReturn  float64 `json:"projected_return"`
	HistoricalReturn float64 `json:"historical_return"`
	Deviation        float64 `json:"deviation"`
	WithinTolerance  bool    `json:"within_tolerance"`
	Message          string  `json:"message,omitempty"`
}

// ValidatePortfolio checks the portfolio's expected return against the
// weighted historical return of its holdings. A tolerance of 0 uses 2.0
// percentage points.
func ValidatePortfolio(p Portfolio, data MarketData, tolerancePct float64) (ValidationResult, error) {
	if len(p.Allocation) == 0 {
		return ValidationResult{}, fmt.Errorf("portfolio has no allocation")
	}
	if tolerancePct <= 0 {
		tolerancePct = 2.0
	}

	for ticker := range p.Allocation {
		if _, ok := data.Summary[ticker]; !ok {
			return ValidationResult{
				Success: false,
				Message: fmt.Sprintf("no historical metrics for ticker %s", ticker),
			}, nil
		}
	}

	historical := round2(weightedReturn(p.Allocation, data))
	deviation := round2(math.Abs(p.ExpectedReturn - historical))

	result := ValidationResult{
		Success:          true,
		ProjectedReturn:  p.ExpectedReturn,
		HistoricalReturn: historical,
		Deviation:        deviation,
		WithinTolerance:  deviation <= tolerancePct,
	}
	if !result.WithinTolerance {
		result.Message = fmt.Sprintf("projected return deviates %.2f points from historical", deviation)
	}

	return result, nil
}

// AllocationChart prepares pie chart data for a portfolio allocation.
func AllocationChart(p Portfolio, title string) (Chart, error) {
	if title == "" {
		title = p.Strategy + " Portfolio Allocation"
	}
	return PrepareChart(p.Allocation, title)
}

// PerformanceChart prepares bar chart data comparing strategies by projected
// return.
func PerformanceChart(performances []Performance, title string) (Chart, error) {
	if len(performances) == 0 {
		return Chart{}, fmt.Errorf("no performance data to chart")
	}
	if title == "" {
		title = "Performance Comparison"
	}

	sorted := make([]Performance, len(performances))
	copy(sorted, performances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strategy < sorted[j].Strategy })

	labels := make([]string, 0, len(sorted))
	values := make([]float64, 0, len(sorted))
	var total float64
	for _, perf := range sorted {
		labels = append(labels, perf.Strategy)
		values = append(values, perf.ReturnPercent)
		total += perf.ReturnPercent
	}

	return Chart{
		Title:  title,
		Type:   "bar",
		Labels: labels,
		Values: values,
		Total:  round2(total),
	}, nil
}

func weightedReturn(allocation map[string]float64, data MarketData) float64 {
	var sum float64
	for ticker, weight := range allocation {
		sum += weight / 100 * data.Summary[ticker].AnnualReturn
	}
	return sum
}

func weightedVolatility(allocation map[string]float64, data MarketData) float64 {
	var sum float64
	for ticker, weight := range allocation {
		sum += weight / 100 * data.Summary[ticker].Volatility
	}
	return sum
}

func roundAllocation(allocation map[string]float64) {
	for ticker, weight := range allocation {
		allocation[ticker] = round2(weight)
	}
}
