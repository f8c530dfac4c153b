package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recallkit/recall-engine/pkg/apperrors"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

// timeParamsDescription documents the shared time parameters; every
// range-based tool carries the same three.
const (
	whenParamDescription = "Time expression: a lookback like '30m', '2h' or '3d', " +
		"a date like '2023-05-11' for that whole day, or a datetime like " +
		"'2023-05-11 14:00' to search from that instant until now. " +
		"Mutually exclusive with from/to."
	fromParamDescription = "Absolute range start (date, datetime, or time of day). Use together with 'to'."
	toParamDescription   = "Absolute range end. Defaults to now when 'from' is given alone."
)

// withTimeParams adds the shared time-range parameters to a tool.
func withTimeParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("when", mcp.Description(whenParamDescription)),
		mcp.WithString("from", mcp.Description(fromParamDescription)),
		mcp.WithString("to", mcp.Description(toParamDescription)),
	}
}

// resolveWindow turns the request's time parameters into a concrete window.
// Precedence: from/to, then when, then the configured default lookback.
// A malformed expression returns an error result for the caller to fix,
// not a Go error.
func (d *Deps) resolveWindow(req mcp.CallToolRequest) (timeutil.Window, *mcp.CallToolResult) {
	now := time.Now()
	loc := d.Config.Location()

	from := req.GetString("from", "")
	to := req.GetString("to", "")
	when := req.GetString("when", "")

	switch {
	case from != "" || to != "":
		if when != "" {
			return timeutil.Window{}, NewErrorResult("invalid_time_expression",
				"'when' cannot be combined with 'from'/'to'")
		}
		if from == "" {
			return timeutil.Window{}, NewErrorResult("invalid_time_expression",
				"'to' requires 'from'")
		}
		w, err := timeutil.ResolveAbsolute(from, to, now, loc)
		if err != nil {
			return timeutil.Window{}, invalidTimeResult(err)
		}
		return w, nil

	case when != "":
		w, err := timeutil.Resolve(when, now, loc)
		if err != nil {
			return timeutil.Window{}, invalidTimeResult(err)
		}
		return w, nil

	default:
		w, err := timeutil.Resolve(d.Config.Search.DefaultWindow, now, loc)
		if err != nil {
			// The configured default is broken; fall back to a week
			// rather than failing every parameterless call.
			return timeutil.Window{Start: now.Add(-7 * 24 * time.Hour), End: now}, nil
		}
		return w, nil
	}
}

func invalidTimeResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperrors.ErrInvalidTimeExpression) {
		return NewErrorResult("invalid_time_expression", err.Error())
	}
	return NewErrorResult("invalid_time_expression", "unrecognized time expression: "+err.Error())
}

// limit clamps a requested result cap against the configured maximum.
// Zero or negative requests mean "use the configured cap".
func (d *Deps) limit(req mcp.CallToolRequest) int {
	max := d.Config.Search.Limit
	n := req.GetInt("limit", 0)
	if n <= 0 || (max > 0 && n > max) {
		return max
	}
	return n
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// windowResponse is the echo of the resolved range included in every
// range-based tool response.
type windowResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func toWindowResponse(w timeutil.Window) windowResponse {
	return windowResponse{Start: w.Start, End: w.End}
}
