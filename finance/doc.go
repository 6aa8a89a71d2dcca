// Package finance implements the deterministic money math behind the
// assistant: 50/30/20 budgeting, chart data preparation, a fixed-universe
// market data provider with TTL caching, and portfolio construction with
// projection and validation. All computations are pure so the same inputs
// always produce the same outputs.
package finance
