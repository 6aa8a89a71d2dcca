package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketProvider_StockData(t *testing.T) {
	p := NewMarketProvider(time.Minute)

	data, err := p.StockData([]string{"aapl", " MSFT "}, "2024-01-01", "2024-12-31")
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, data.Tickers)
	assert.Equal(t, "2024-01-01 to 2024-12-31", data.Period)

	aapl := data.Summary["AAPL"]
	assert.Equal(t, 28.5, aapl.AnnualReturn)
	assert.Equal(t, 22.3, aapl.Volatility)
}

func TestMarketProvider_Deterministic(t *testing.T) {
	p := NewMarketProvider(time.Minute)

	first, err := p.StockData([]string{"AAPL", "OBSCURE"}, "2024-01-01", "2024-06-30")
	require.NoError(t, err)

	second, err := p.StockData([]string{"OBSCURE", "AAPL"}, "2024-01-01", "2024-06-30")
	require.NoError(t, err)

	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Tickers, second.Tickers)
}

func TestMarketProvider_UnknownTickerBounds(t *testing.T) {
	p := NewMarketProvider(time.Minute)

	data, err := p.StockData([]string{"XYZXYZ"}, "2024-01-01", "2024-12-31")
	require.NoError(t, err)

	m := data.Summary["XYZXYZ"]
	assert.GreaterOrEqual(t, m.AnnualReturn, 4.0)
	assert.Less(t, m.AnnualReturn, 24.0)
	assert.GreaterOrEqual(t, m.Volatility, 12.0)
	assert.Less(t, m.Volatility, 40.0)
}

func TestMarketProvider_Validation(t *testing.T) {
	p := NewMarketProvider(time.Minute)

	_, err := p.StockData(nil, "2024-01-01", "2024-12-31")
	assert.ErrorContains(t, err, "at least one ticker")

	_, err = p.StockData([]string{"AAPL"}, "not-a-date", "2024-12-31")
	assert.ErrorContains(t, err, "invalid start date")

	_, err = p.StockData([]string{"AAPL"}, "2024-01-01", "bogus")
	assert.ErrorContains(t, err, "invalid end date")

	_, err = p.StockData([]string{"AAPL"}, "2024-12-31", "2024-01-01")
	assert.ErrorContains(t, err, "must be before")
}

func TestStockMetrics_Sharpe(t *testing.T) {
	assert.Equal(t, 1.5, StockMetrics{AnnualReturn: 30, Volatility: 20}.Sharpe())
	assert.Equal(t, 0.0, StockMetrics{AnnualReturn: 30, Volatility: 0}.Sharpe())
}
