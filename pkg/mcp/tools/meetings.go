package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recallkit/recall-engine/pkg/activity"
)

type meetingResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Calendar  string    `json:"calendar,omitempty"`
	SegmentID int64     `json:"segment_id,omitempty"`
}

type meetingsResponse struct {
	Window   windowResponse        `json:"window"`
	Count    int                   `json:"count"`
	Meetings []meetingResponse     `json:"meetings"`
	Summary  activity.MeetingStats `json:"summary"`
}

// RegisterMeetingTools adds the calendar meeting tools.
func RegisterMeetingTools(s *server.MCPServer, deps *Deps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get calendar meetings overlapping a time range, with a total time " +
				"summary. A meeting may carry a segment_id linking it to recorded " +
				"activity, but the link is best effort and often absent.",
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
	opts = append(opts, withTimeParams()...)
	tool := mcp.NewTool("get_meetings", opts...)

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

		events, err := st.Events(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("failed to load meetings: %w", err)
		}

		meetings := make([]meetingResponse, 0, len(events))
		for _, ev := range events {
			meetings = append(meetings, meetingResponse{
				ID:        ev.ID,
				Title:     ev.Title,
				Start:     ev.Start,
				End:       ev.End,
				Location:  ev.Location,
				Notes:     ev.Notes,
				Calendar:  ev.Calendar,
				SegmentID: ev.SegmentID,
			})
		}

		return jsonResult(meetingsResponse{
			Window:   toWindowResponse(w),
			Count:    len(meetings),
			Meetings: meetings,
			Summary:  activity.SummarizeMeetings(events, w),
		})
	})
}
