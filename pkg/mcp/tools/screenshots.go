package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/media"
	"github.com/recallkit/recall-engine/pkg/session"
	"github.com/recallkit/recall-engine/pkg/store"
)

type screenshotResponse struct {
	FrameID    int64     `json:"frame_id"`
	CapturedAt time.Time `json:"captured_at"`
	App        string    `json:"app,omitempty"`
	Window     string    `json:"window,omitempty"`
	Starred    bool      `json:"starred,omitempty"`
	ImageFile  string    `json:"image_file,omitempty"`
	// Path is the resolved on-disk location, present when a media root is
	// configured and the file exists.
	Path string `json:"path,omitempty"`
	Text string `json:"text,omitempty"`
}

type screenshotsResponse struct {
	Window      windowResponse       `json:"window"`
	Count       int                  `json:"count"`
	Screenshots []screenshotResponse `json:"screenshots"`
}

// RegisterScreenshotTools adds the screenshot listing and lookup tools.
func RegisterScreenshotTools(s *server.MCPServer, deps *Deps) {
	registerListScreenshotsTool(s, deps)
	registerGetScreenshotTool(s, deps)
}

func registerListScreenshotsTool(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"List screenshots captured in a time range. Use starred_only for " +
				"captures the user flagged, and get_screenshot for one frame's " +
				"full OCR text.",
		),
		mcp.WithString("app",
			mcp.Description("Keep only captures whose application identifier contains this text."),
		),
		mcp.WithBoolean("starred_only",
			mcp.Description("Keep only captures the user flagged."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum screenshots to return."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_screenshots", opts...)

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

		frames, err := st.Frames(ctx, w, store.FrameFilter{
			AppContains: req.GetString("app", ""),
			StarredOnly: req.GetBool("starred_only", false),
			Limit:       deps.limit(req),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load screenshots: %w", err)
		}

		resolver := deps.mediaResolver()
		shots := make([]screenshotResponse, 0, len(frames))
		for _, f := range frames {
			shots = append(shots, toScreenshotResponse(f, "", resolver))
		}

		return jsonResult(screenshotsResponse{
			Window:      toWindowResponse(w),
			Count:       len(shots),
			Screenshots: shots,
		})
	})
}

func registerGetScreenshotTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"get_screenshot",
		mcp.WithDescription(
			"Get one screenshot by frame id, including its full OCR text and, "+
				"when available, the on-disk image location.",
		),
		mcp.WithNumber("frame_id",
			mcp.Required(),
			mcp.Description("The frame id from get_screenshots or a screen search hit."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		frameID := int64(req.GetInt("frame_id", 0))
		if frameID <= 0 {
			return NewErrorResult("missing_parameter", "frame_id is required"), nil
		}

		st, err := deps.OpenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to open activity store: %w", err)
		}
		defer st.Close()

		frame, err := st.FrameByID(ctx, frameID)
		if err != nil {
			return nil, fmt.Errorf("failed to load screenshot: %w", err)
		}
		if frame == nil {
			return NewErrorResult("not_found",
				fmt.Sprintf("no screenshot with frame id %d", frameID)), nil
		}

		nodes, err := st.Nodes(ctx, []int64{frameID})
		if err != nil {
			return nil, fmt.Errorf("failed to load OCR nodes: %w", err)
		}
		blocks, err := st.OCRBlocks(ctx, []int64{frameID})
		if err != nil {
			return nil, fmt.Errorf("failed to load OCR text: %w", err)
		}

		text := assembleScreenText(*frame, nodes, blocks)
		return jsonResult(toScreenshotResponse(*frame, text, deps.mediaResolver()))
	})
}

// mediaResolver returns a resolver when a media root is configured, nil
// otherwise.
func (d *Deps) mediaResolver() *media.Resolver {
	if d.Config.Store.MediaRoot == "" {
		return nil
	}
	return media.NewResolver(d.Config.Store.MediaRoot, d.Config.Location())
}

func assembleScreenText(f store.Frame, nodes []store.Node, blocks []store.OCRTextBlock) string {
	sessions := session.AssembleScreens([]store.Frame{f}, nodes, blocks)
	if len(sessions) == 0 {
		return ""
	}
	return sessions[0].Text
}

func toScreenshotResponse(f store.Frame, text string, resolver *media.Resolver) screenshotResponse {
	resp := screenshotResponse{
		FrameID:    f.ID,
		CapturedAt: f.CreatedAt,
		App:        f.App,
		Window:     f.Window,
		Starred:    f.Starred,
		ImageFile:  f.ImageFileName,
		Text:       text,
	}
	if resolver != nil && f.ImageFileName != "" {
		if path := resolver.ChunkPath(f.CreatedAt, f.ImageFileName); resolver.Exists(path) {
			resp.Path = path
		}
	}
	return resp
}
