package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/session"
	"github.com/recallkit/recall-engine/pkg/store"
)

type transcriptsResponse struct {
	Window   windowResponse              `json:"window"`
	Count    int                         `json:"count"`
	Sessions []session.TranscriptSession `json:"sessions"`
}

// RegisterTranscriptTools adds the audio transcript tools.
func RegisterTranscriptTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get audio transcripts for a time range, reconstructed into spoken " +
				"sessions with per-word timestamps. Use 'speaker' to keep only " +
				"the user's own speech ('me') or everyone else ('others').",
		),
		mcp.WithString("speaker",
			mcp.Description("Filter by speech source: 'me' or 'others'. Empty keeps both."),
			mcp.Enum("me", "others"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_transcripts", opts...)

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

		words, err := st.TranscriptWords(ctx, w, store.WordFilter{
			SpeechSource: req.GetString("speaker", ""),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load transcripts: %w", err)
		}

		sessions := session.AssembleTranscripts(words)
		if sessions == nil {
			sessions = []session.TranscriptSession{}
		}
		return jsonResult(transcriptsResponse{
			Window:   toWindowResponse(w),
			Count:    len(sessions),
			Sessions: sessions,
		})
	})
}
