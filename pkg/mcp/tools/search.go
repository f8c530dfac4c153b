package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/search"
	"github.com/recallkit/recall-engine/pkg/session"
	"github.com/recallkit/recall-engine/pkg/store"
	"github.com/recallkit/recall-engine/pkg/timeutil"
)

type searchResponse struct {
	Window  windowResponse `json:"window"`
	Query   string         `json:"query"`
	Total   int            `json:"total"`
	Results []search.Hit   `json:"results"`
}

// RegisterSearchTools adds the keyword search tool.
func RegisterSearchTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Search everything heard and seen in a time range for a keyword. " +
				"Matches spoken words in audio transcripts and text captured " +
				"from the screen; each hit includes surrounding context and a " +
				"timestamp. Results from both sources are merged chronologically.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keyword to search for. Matching is case-insensitive."),
		),
		mcp.WithString("scope",
			mcp.Description("Restrict the search to one source. Defaults to both."),
			mcp.Enum("all", "transcript", "screen"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum hits to return per source."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("search", opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return NewErrorResult("missing_parameter", "query is required"), nil
		}
		if strings.TrimSpace(query) == "" {
			return NewErrorResult("missing_parameter", "query must not be empty"), nil
		}

		w, errResult := deps.resolveWindow(req)
		if errResult != nil {
			return errResult, nil
		}
		scope := req.GetString("scope", "all")

		st, err := deps.OpenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to open activity store: %w", err)
		}
		defer st.Close()

		var transcripts []session.TranscriptSession
		if scope == "all" || scope == "transcript" {
			words, err := st.TranscriptWords(ctx, w, store.WordFilter{})
			if err != nil {
				return nil, fmt.Errorf("failed to load transcripts: %w", err)
			}
			transcripts = session.AssembleTranscripts(words)
		}

		var screens []session.ScreenSession
		if scope == "all" || scope == "screen" {
			screens, err = loadMatchingScreenSessions(ctx, st, w, query)
			if err != nil {
				return nil, err
			}
		}

		results := search.Search(query, transcripts, screens, search.Options{
			ContextWords: deps.Config.Search.ContextWords,
			ContextChars: deps.Config.Search.ContextChars,
		})
		results.Transcript = capHits(results.Transcript, deps.limit(req))
		results.Screen = capHits(results.Screen, deps.limit(req))

		return jsonResult(searchResponse{
			Window:  toWindowResponse(w),
			Query:   query,
			Total:   results.Total(),
			Results: results.Merged(),
		})
	})
}

// loadMatchingScreenSessions narrows screen search to frames whose stored
// OCR text already contains the keyword, so only candidate frames get their
// nodes and text loaded. Exact positions and context still come from the
// in-memory pass over the assembled sessions.
func loadMatchingScreenSessions(ctx context.Context, st *store.Store, w timeutil.Window, keyword string) ([]session.ScreenSession, error) {
	blocks, err := st.OCRBlocksMatching(ctx, w, keyword, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search screen text: %w", err)
	}
	if len(blocks) == 0 {
		return []session.ScreenSession{}, nil
	}

	matched := make(map[int64]bool, len(blocks))
	for _, b := range blocks {
		matched[b.ID] = true
	}

	frames, err := st.Frames(ctx, w, store.FrameFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load frames: %w", err)
	}
	candidates := frames[:0]
	ids := make([]int64, 0, len(blocks))
	withFrame := make(map[int64]bool, len(blocks))
	for _, fr := range frames {
		if matched[fr.ID] {
			candidates = append(candidates, fr)
			ids = append(ids, fr.ID)
			withFrame[fr.ID] = true
		}
	}

	nodes, err := st.Nodes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load OCR nodes: %w", err)
	}
	sessions := session.AssembleScreens(candidates, nodes, blocks)

	// A block can outlive its frame row. Surface those matches too, with
	// the text as the only metadata.
	for _, b := range blocks {
		if withFrame[b.ID] {
			continue
		}
		sessions = append(sessions, session.ScreenSession{
			FrameID: b.ID,
			Text:    b.Text,
			Source:  session.SourceTextBlock,
		})
	}
	return sessions, nil
}

func capHits(hits []search.Hit, limit int) []search.Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
