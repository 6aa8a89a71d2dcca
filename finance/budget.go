package finance

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// BudgetCategory is one slice of a budget breakdown.
type BudgetCategory struct {
	Amount     float64 `json:"amount"`
	Percentage int     `json:"percentage"`
}

// BudgetBreakdown is a 50/30/20 split of a monthly income.
type BudgetBreakdown struct {
	MonthlyIncome float64        `json:"monthly_income"`
	Needs         BudgetCategory `json:"needs"`
	Wants         BudgetCategory `json:"wants"`
	Savings       BudgetCategory `json:"savings"`
	Total         float64        `json:"total"`
}

// CalculateBudget splits a monthly income using the 50/30/20 rule: half for
// needs, 30% for wants and 20% for savings. Amounts are rounded to cents.
func CalculateBudget(monthlyIncome float64) (BudgetBreakdown, error) {
	if monthlyIncome <= 0 || math.IsNaN(monthlyIncome) || math.IsInf(monthlyIncome, 0) {
		return BudgetBreakdown{}, fmt.Errorf("monthly income must be positive, got %v", monthlyIncome)
	}

	return BudgetBreakdown{
		MonthlyIncome: monthlyIncome,
		Needs:         BudgetCategory{Amount: round2(monthlyIncome * 0.5), Percentage: 50},
		Wants:         BudgetCategory{Amount: round2(monthlyIncome * 0.3), Percentage: 30},
		Savings:       BudgetCategory{Amount: round2(monthlyIncome * 0.2), Percentage: 20},
		Total:         monthlyIncome,
	}, nil
}

// Chart is the data payload for a client-side chart. Rendering happens on the
// consumer side; the service only prepares labels and values.
type Chart struct {
	Title  string    `json:"title"`
	Type   string    `json:"chart_type"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Total  float64   `json:"total"`
}

// PrepareChart turns a category->amount map into pie chart data. Labels are
// sorted so the output is stable for identical input.
func PrepareChart(data map[string]float64, title string) (Chart, error) {
	if len(data) == 0 {
		return Chart{}, fmt.Errorf("chart data must not be empty")
	}

	labels := make([]string, 0, len(data))
	for label := range data {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	values := make([]float64, 0, len(labels))
	var total float64
	for _, label := range labels {
		values = append(values, data[label])
		total += data[label]
	}

	return Chart{
		Title:  title,
		Type:   "pie",
		Labels: labels,
		Values: values,
		Total:  round2(total),
	}, nil
}

// SpendingData is a month of categorized spending.
type SpendingData struct {
	Categories  map[string]float64 `json:"categories"`
	Total       float64            `json:"total"`
	Month       string             `json:"month"`
	Description string             `json:"description"`
}

// SampleSpendingData returns a representative month of spending, useful for
// demos and for exercising the budget tools without real transactions.
func SampleSpendingData() SpendingData {
	categories := map[string]float64{
		"Housing":        1500,
		"Food":           600,
		"Transportation": 400,
		"Utilities":      200,
		"Entertainment":  300,
		"Healthcare":     200,
		"Personal":       250,
		"Savings":        800,
	}

	var total float64
	for _, amount := range categories {
		total += amount
	}

	return SpendingData{
		Categories:  categories,
		Total:       total,
		Month:       time.Now().Format("January 2006"),
		Description: "Sample monthly spending data",
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
