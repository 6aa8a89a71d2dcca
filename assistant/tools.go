package assistant

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/finance"
	"github.com/fincoach/fincoach/tool"
)

// Budget tool set, exposed to the budget agent.

func newCalculateBudgetTool() tool.Tool {
	return tool.NewFunctionTool(
		"calculate_budget",
		"Calculate a 50/30/20 budget breakdown (needs/wants/savings) for a monthly income",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"monthly_income": map[string]any{
					"type":        "number",
					"description": "Monthly income to split",
				},
			},
			"required": []string{"monthly_income"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			income, ok := args["monthly_income"].(float64)
			if !ok {
				return nil, fmt.Errorf("monthly_income must be a number")
			}
			return finance.CalculateBudget(income)
		},
	)
}

func newCreateChartTool() tool.Tool {
	return tool.NewFunctionTool(
		"create_financial_chart",
		"Prepare pie chart data for a set of labeled amounts and persist it as an artifact",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"data": map[string]any{
					"type":        "object",
					"description": "Map of category label to amount",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "Chart title",
				},
			},
			"required": []string{"data", "title"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			raw, ok := args["data"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("data must be an object of label to amount")
			}
			title, _ := args["title"].(string)

			data := make(map[string]float64, len(raw))
			for label, v := range raw {
				amount, ok := v.(float64)
				if !ok {
					return nil, fmt.Errorf("amount for %q must be a number", label)
				}
				data[label] = amount
			}

			chart, err := finance.PrepareChart(data, title)
			if err != nil {
				return nil, err
			}

			if err := saveChartArtifact(toolCtx, "chart_"+toolCtx.FunctionCallID(), chart); err != nil {
				return nil, err
			}

			return chart, nil
		},
	)
}

func newSampleDataTool() tool.Tool {
	return tool.NewFunctionTool(
		"generate_sample_data",
		"Generate a representative month of categorized spending data",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return finance.SampleSpendingData(), nil
		},
	)
}

// Portfolio specialist tool set. Each tool reads and writes the caller's
// portfolio workspace so specialists can build on each other's output.

func newFetchStockDataTool(market *finance.MarketProvider, ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"fetch_stock_data",
		"Fetch annualized return and volatility metrics for a set of stock tickers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tickers": map[string]any{
					"type":        "array",
					"description": "Stock ticker symbols",
				},
				"start_date": map[string]any{
					"type":        "string",
					"description": "Analysis start date (YYYY-MM-DD)",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "Analysis end date (YYYY-MM-DD)",
				},
			},
			"required": []string{"tickers", "start_date", "end_date"},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			tickers, err := stringSlice(args["tickers"])
			if err != nil {
				return nil, fmt.Errorf("tickers: %w", err)
			}
			start, _ := args["start_date"].(string)
			end, _ := args["end_date"].(string)

			data, err := market.StockData(tickers, start, end)
			if err != nil {
				return nil, err
			}

			ws.set(workspaceStockData, data)

			return map[string]any{
				"tickers": data.Tickers,
				"period":  data.Period,
				"summary": data.Summary,
				"message": fmt.Sprintf("Fetched metrics for %d stocks", len(data.Tickers)),
			}, nil
		},
	)
}

func newGrowthPortfolioTool(ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"create_growth_portfolio",
		"Create a growth-focused portfolio from the previously fetched stock data",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"allocation_method": map[string]any{
					"type":        "string",
					"enum":        []string{"performance_weighted", "risk_adjusted", "equal_weight"},
					"description": "Allocation method (default: performance_weighted)",
				},
			},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			data, ok := ws.marketData()
			if !ok {
				return nil, fmt.Errorf("no stock data available, call fetch_stock_data first")
			}

			method, _ := args["allocation_method"].(string)
			portfolio, err := finance.NewGrowthPortfolio(data, finance.AllocationMethod(method))
			if err != nil {
				return nil, err
			}

			ws.set(workspaceGrowthPortfolio, portfolio)

			return portfolio, nil
		},
	)
}

func newDiversifiedPortfolioTool(ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"create_diversified_portfolio",
		"Create a balanced, diversified portfolio from the previously fetched stock data",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"max_allocation": map[string]any{
					"type":        "number",
					"description": "Maximum allocation per stock in percent (default: 30)",
				},
			},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			data, ok := ws.marketData()
			if !ok {
				return nil, fmt.Errorf("no stock data available, call fetch_stock_data first")
			}

			maxAllocation, _ := args["max_allocation"].(float64)
			portfolio, err := finance.NewDiversifiedPortfolio(data, maxAllocation)
			if err != nil {
				return nil, err
			}

			ws.set(workspaceDiversifiedPortfolio, portfolio)

			return portfolio, nil
		},
	)
}

func newPerformanceTool(ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"calculate_performance",
		"Project the one-year performance of the most recently created portfolio",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"initial_investment": map[string]any{
					"type":        "number",
					"description": "Investment amount in dollars (default: 1000)",
				},
			},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			portfolio, ok := ws.latestPortfolio()
			if !ok {
				return nil, fmt.Errorf("no portfolio available, create one first")
			}
			data, ok := ws.marketData()
			if !ok {
				return nil, fmt.Errorf("no stock data available, call fetch_stock_data first")
			}

			investment, _ := args["initial_investment"].(float64)
			performance, err := finance.CalculatePerformance(portfolio, data, investment)
			if err != nil {
				return nil, err
			}

			ws.set(workspacePerformance, performance)

			return performance, nil
		},
	)
}

func newAllocationChartTool(ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"create_allocation_chart",
		"Prepare an allocation pie chart for the most recently created portfolio",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			portfolio, ok := ws.latestPortfolio()
			if !ok {
				return nil, fmt.Errorf("no portfolio available, create one first")
			}

			chart, err := finance.AllocationChart(portfolio, "")
			if err != nil {
				return nil, err
			}

			ws.setChart("allocation", chart)
			if err := saveChartArtifact(toolCtx, "allocation_chart", chart); err != nil {
				return nil, err
			}

			return chart, nil
		},
	)
}

func newPerformanceChartTool(ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"create_performance_chart",
		"Prepare a bar chart of projected returns for the calculated performance",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
			v, ok := ws.get(workspacePerformance)
			if !ok {
				return nil, fmt.Errorf("no performance data available, call calculate_performance first")
			}
			performance, ok := v.(finance.Performance)
			if !ok {
				return nil, fmt.Errorf("cached performance data has unexpected shape")
			}

			chart, err := finance.PerformanceChart([]finance.Performance{performance}, "")
			if err != nil {
				return nil, err
			}

			ws.setChart("performance", chart)
			if err := saveChartArtifact(toolCtx, "performance_chart", chart); err != nil {
				return nil, err
			}

			return chart, nil
		},
	)
}

func newValidationTool(ws *portfolioWorkspace) tool.Tool {
	return tool.NewFunctionTool(
		"validate_portfolio",
		"Validate the most recent portfolio's projected return against historical metrics",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tolerance": map[string]any{
					"type":        "number",
					"description": "Allowed deviation in percentage points (default: 2)",
				},
			},
		},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			portfolio, ok := ws.latestPortfolio()
			if !ok {
				return nil, fmt.Errorf("no portfolio available, create one first")
			}
			data, ok := ws.marketData()
			if !ok {
				return nil, fmt.Errorf("no stock data available, call fetch_stock_data first")
			}

			tolerance, _ := args["tolerance"].(float64)
			result, err := finance.ValidatePortfolio(portfolio, data, tolerance)
			if err != nil {
				return nil, err
			}

			ws.set(workspaceValidation, result)

			return result, nil
		},
	)
}

// saveChartArtifact persists the chart JSON through the configured artifact
// store so visualizations survive the run.
func saveChartArtifact(toolCtx *core.ToolContext, id string, chart finance.Chart) error {
	payload, err := json.Marshal(chart)
	if err != nil {
		return fmt.Errorf("marshal chart: %w", err)
	}
	if err := toolCtx.SaveArtifact(id+".json", payload); err != nil {
		return fmt.Errorf("save chart artifact: %w", err)
	}
	return nil
}

func stringSlice(v any) ([]string, error) {
	switch items := v.(type) {
	case []string:
		return items, nil
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected array of strings, got %T", v)
	}
}
