package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/dedupe"
	"github.com/recallkit/recall-engine/pkg/session"
	"github.com/recallkit/recall-engine/pkg/store"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

type screenOCRResponse struct {
	Window windowResponse `json:"window"`
	Count  int            `json:"count"`
	// Observations carry the reconstructed text plus first/last seen
	// times; consecutive near-identical captures are collapsed unless
	// deduplication was turned off.
	Observations []dedupe.Observation `json:"observations"`
	Deduplicated bool                 `json:"deduplicated"`
}

// RegisterScreenTools adds the screen OCR text tools.
func RegisterScreenTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get OCR text captured from the screen for a time range, one entry " +
				"per distinct screen content. Consecutive near-identical captures " +
				"are collapsed into a single observation with first/last seen " +
				"times; pass deduplicate=false for the raw capture stream.",
		),
		mcp.WithString("app",
			mcp.Description("Keep only captures whose application identifier contains this text."),
		),
		mcp.WithBoolean("deduplicate",
			mcp.Description("Collapse near-identical consecutive captures. Defaults to true."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum captures to inspect before collapsing."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_screen_ocr", opts...)

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

		sessions, err := loadScreenSessions(ctx, st, w, store.FrameFilter{
			AppContains: req.GetString("app", ""),
			Limit:       deps.limit(req),
		})
		if err != nil {
			return nil, err
		}

		var observations []dedupe.Observation
		dedup := req.GetBool("deduplicate", true)
		if dedup {
			observations = dedupe.New(deps.Config.Dedupe.Threshold).Collapse(sessions)
		} else {
			observations = make([]dedupe.Observation, 0, len(sessions))
			for _, sess := range sessions {
				observations = append(observations, dedupe.Observation{
					ScreenSession: sess,
					FirstSeen:     sess.CapturedAt,
					ObservedUntil: sess.CapturedAt,
				})
			}
		}

		return jsonResult(screenOCRResponse{
			Window:       toWindowResponse(w),
			Count:        len(observations),
			Observations: observations,
			Deduplicated: dedup,
		})
	})
}

// loadScreenSessions fetches frames with their OCR fragments and full-text
// blocks, and assembles them into screen sessions in capture order.
func loadScreenSessions(ctx context.Context, st *store.Store, w timeutil.Window, f store.FrameFilter) ([]session.ScreenSession, error) {
	frames, err := st.Frames(ctx, w, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load frames: %w", err)
	}
	if len(frames) == 0 {
		return []session.ScreenSession{}, nil
	}

	ids := make([]int64, 0, len(frames))
	for _, fr := range frames {
		ids = append(ids, fr.ID)
	}

	nodes, err := st.Nodes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load OCR nodes: %w", err)
	}
	blocks, err := st.OCRBlocks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load OCR text: %w", err)
	}

	return session.AssembleScreens(frames, nodes, blocks), nil
}
