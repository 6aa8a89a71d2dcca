package assistant

import (
	"sync"

	"github.com/fincoach/fincoach/finance"
)

// Workspace keys written by the portfolio specialists.
const (
	workspaceStockData            = "stock_data"
	workspaceGrowthPortfolio      = "growth_portfolio"
	workspaceDiversifiedPortfolio = "diversified_portfolio"
	workspacePerformance          = "performance"
	workspaceValidation           = "validation"
)

// portfolioWorkspace is the shared scratch space of one user's portfolio
// orchestration. Specialist tools write their intermediate results here so
// later specialists (and the HTTP API) can read them.
type portfolioWorkspace struct {
	mu             sync.RWMutex
	data           map[string]any
	visualizations map[string]finance.Chart
}

func newPortfolioWorkspace() *portfolioWorkspace {
	return &portfolioWorkspace{
		data:           make(map[string]any),
		visualizations: make(map[string]finance.Chart),
	}
}

func (w *portfolioWorkspace) set(key string, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data[key] = value
}

func (w *portfolioWorkspace) get(key string) (any, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.data[key]
	return v, ok
}

func (w *portfolioWorkspace) marketData() (finance.MarketData, bool) {
	v, ok := w.get(workspaceStockData)
	if !ok {
		return finance.MarketData{}, false
	}
	data, ok := v.(finance.MarketData)
	return data, ok
}

func (w *portfolioWorkspace) portfolio(key string) (finance.Portfolio, bool) {
	v, ok := w.get(key)
	if !ok {
		return finance.Portfolio{}, false
	}
	p, ok := v.(finance.Portfolio)
	return p, ok
}

// latestPortfolio prefers the growth portfolio, falling back to diversified.
func (w *portfolioWorkspace) latestPortfolio() (finance.Portfolio, bool) {
	if p, ok := w.portfolio(workspaceGrowthPortfolio); ok {
		return p, true
	}
	return w.portfolio(workspaceDiversifiedPortfolio)
}

func (w *portfolioWorkspace) setChart(key string, chart finance.Chart) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visualizations[key] = chart
}

func (w *portfolioWorkspace) snapshot() map[string]any {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]any, len(w.data))
	for k, v := range w.data {
		out[k] = v
	}
	return out
}

func (w *portfolioWorkspace) charts() map[string]finance.Chart {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]finance.Chart, len(w.visualizations))
	for k, v := range w.visualizations {
		out[k] = v
	}
	return out
}
