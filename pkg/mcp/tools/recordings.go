package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type recordingResponse struct {
	ID         int64     `json:"id"`
	SegmentID  int64     `json:"segment_id"`
	Start      time.Time `json:"start"`
	DurationMS int64     `json:"duration_ms"`
	// Path is the resolved audio snippet location, present when a media
	// root is configured and the file exists.
	Path string `json:"path,omitempty"`
}

type recordingsResponse struct {
	Window     windowResponse      `json:"window"`
	Count      int                 `json:"count"`
	Recordings []recordingResponse `json:"recordings"`
}

// RegisterRecordingTools adds the raw audio recording listing tool.
func RegisterRecordingTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"List audio recordings captured in a time range, with durations " +
				"and, when available, the on-disk snippet location. Use " +
				"get_transcripts for what was said in them.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_recordings", opts...)

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

		recs, err := st.AudioRecordings(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("failed to load recordings: %w", err)
		}

		resolver := deps.mediaResolver()
		out := make([]recordingResponse, 0, len(recs))
		for _, rec := range recs {
			r := recordingResponse{
				ID:         rec.ID,
				SegmentID:  rec.SegmentID,
				Start:      rec.Start,
				DurationMS: rec.DurationMS,
			}
			if rec.Path != "" {
				r.Path = rec.Path
			} else if resolver != nil {
				if path := resolver.SnippetPath(rec.Start, "m4a"); resolver.Exists(path) {
					r.Path = path
				}
			}
			out = append(out, r)
		}

		return jsonResult(recordingsResponse{
			Window:     toWindowResponse(w),
			Count:      len(out),
			Recordings: out,
		})
	})
}
