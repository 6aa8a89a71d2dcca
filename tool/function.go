package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/fincoach/fincoach/core"
	"github.com/fincoach/fincoach/internal/util"
)

// FunctionTool adapts a plain Go function into a Tool. Arguments are
// validated against a minimal JSON-Schema map before the function runs, and
// failures surface as *ToolError with stable codes: VALIDATION_ERROR for
// schema mismatches, EXECUTION_ERROR for other failures. A *ToolError
// returned by the function passes through unchanged, so tools can report
// their own codes (the agent tool's EMPTY_RESPONSE, for example).
//
// A FunctionTool is immutable after construction and safe for concurrent
// use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool wraps fn with the given name, model-facing description and
// parameter schema. Names are snake_case; only the schema subset checked by
// util.ValidateParameters (type, properties, required, enum) matters.
//
//	budgetTool := NewFunctionTool(
//	  "calculate_budget",
//	  "Calculate a 50/30/20 budget from monthly income",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "monthly_income": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"monthly_income"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return finance.CalculateBudget(args["monthly_income"].(float64))
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct's
// json and description tags via util.CreateSchema, for tools whose argument
// shape already exists as a type.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

func (t *FunctionTool) Name() string { return t.name }

func (t *FunctionTool) Description() string { return t.description }

func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the declared schema, then invokes the wrapped
// function. fc_id on the log lines correlates the model's function call with
// its execution.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
