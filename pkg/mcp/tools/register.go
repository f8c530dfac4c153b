package tools

import "github.com/mark3labs/mcp-go/server"

// RegisterAll wires every tool onto the server.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	RegisterTranscriptTools(s, deps)
	RegisterRecordingTools(s, deps)
	RegisterScreenTools(s, deps)
	RegisterSearchTools(s, deps)
	RegisterActivityTools(s, deps)
	RegisterMeetingTools(s, deps)
	RegisterScreenshotTools(s, deps)
	RegisterStatsTools(s, deps)
	RegisterHealthTool(s, deps)
}
