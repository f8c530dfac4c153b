package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/activity"
	"github.com/recallkit/recall-engine/pkg/store"
)

type appUsageResponse struct {
	Window windowResponse      `json:"window"`
	Count  int                 `json:"count"`
	Usage  []activity.AppUsage `json:"usage"`
}

type activeHoursResponse struct {
	Window  windowResponse        `json:"window"`
	Hours   []activity.HourBucket `json:"hours"`
	Periods []activity.Period     `json:"periods"`
}

// RegisterActivityTools adds the application usage aggregation tools.
func RegisterActivityTools(s *server.MCPServer, deps *Deps) {
	registerAppUsageTool(s, deps)
	registerActiveHoursTool(s, deps)
}

func registerAppUsageTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get time spent per application in a time range, most used first. " +
				"Usage is clipped to the range, so totals never exceed its length.",
		),
		mcp.WithString("app",
			mcp.Description("Keep only applications whose identifier contains this text."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_app_usage", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		w, errResult := deps.resolveWindow(req)
		if errResult != nil {
			return errResult, nil
		}

		st, err := deps.OpenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to open activity store: %w", err)
		}
		defer st.Close()

		segments, err := st.Segments(ctx, w, store.SegmentFilter{
			AppContains: req.GetString("app", ""),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load usage segments: %w", err)
		}

		usage := activity.Aggregate(segments, w)
		return jsonResult(appUsageResponse{
			Window: toWindowResponse(w),
			Count:  len(usage),
			Usage:  usage,
		})
	})
}

func registerActiveHoursTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get when the computer was actively used in a time range: an " +
				"hour-by-hour breakdown plus contiguous active periods. Pauses " +
				"up to 'gap_seconds' still count as continuous activity.",
		),
		mcp.WithNumber("gap_seconds",
			mcp.Description("Longest pause that still counts as continuous. Defaults to 60."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_active_hours", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		w, errResult := deps.resolveWindow(req)
		if errResult != nil {
			return errResult, nil
		}

		st, err := deps.OpenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to open activity store: %w", err)
		}
		defer st.Close()

		segments, err := st.Segments(ctx, w, store.SegmentFilter{})
		if err != nil {
			return nil, fmt.Errorf("failed to load usage segments: %w", err)
		}

		gap := time.Duration(req.GetInt("gap_seconds", 0)) * time.Second
		return jsonResult(activeHoursResponse{
			Window:  toWindowResponse(w),
			Hours:   activity.HourlyBreakdown(segments, w, deps.Config.Location()),
			Periods: activity.ActivePeriods(segments, w, gap),
		})
	})
}
