package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/recallkit/recall-engine/pkg/logging"
)

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Detail  string `json:"detail,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool reports the server version and whether the activity database
// can be opened and unlocked.
func RegisterHealthTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version, and activity database reachability"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{
			Status:  "ok",
			Version: deps.Config.Version,
			Store:   "reachable",
		}

		st, err := deps.OpenStore()
		if err != nil {
			deps.Logger.Warn("health check cannot open store", zap.Error(err))
			result.Status = "degraded"
			result.Store = "unreachable"
			result.Detail = logging.SanitizeError(err)
		} else {
			st.Close()
		}

		return jsonResult(result)
	})
}
