package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/store"
)

type statsResponse struct {
	Window windowResponse `json:"window"`
	Counts *store.Stats   `json:"counts"`
}

// RegisterStatsTools adds the record count tool.
func RegisterStatsTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get record counts per data type for a time range: usage segments, " +
				"audio recordings, transcript words, screen captures, OCR " +
				"fragments, and calendar meetings. Useful for checking what was " +
				"recorded before running heavier queries.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_stats", opts...)

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

		stats, err := st.TableStats(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("failed to count records: %w", err)
		}

		return jsonResult(statsResponse{
			Window: toWindowResponse(w),
			Counts: stats,
		})
	})
}
