package store

import "time"

// Segment is a contiguous application/window usage session.
type Segment struct {
	ID         int64
	App        string
	Window     string
	BrowserURL string
	Start      time.Time
	End        time.Time
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

// AudioRecording is one captured audio session.
type AudioRecording struct {
	ID         int64
	SegmentID  int64
	Path       string
	Start      time.Time
	DurationMS int64
}

// TranscriptWord is one word of a transcribed recording, joined with its
// owning recording. TimeOffsetMS is relative to the recording start;
// ordering by (SegmentID, TimeOffsetMS) reconstructs continuous speech.
type TranscriptWord struct {
	ID              int64
	AudioID         int64
	SegmentID       int64
	Word            string
	TimeOffsetMS    int64
	DurationMS      int64
	SpeechSource    string
	TextOffset      int64
	AudioStart      time.Time
	AudioDurationMS int64
	App             string
}

// AbsoluteTime is the instant the word was spoken.
func (w TranscriptWord) AbsoluteTime() time.Time {
	return w.AudioStart.Add(time.Duration(w.TimeOffsetMS) * time.Millisecond)
}

// Frame is one screen capture, joined with its owning segment.
type Frame struct {
	ID            int64
	SegmentID     int64
	CreatedAt     time.Time
	ImageFileName string
	Starred       bool
	App           string
	Window        string
}

// Node is one OCR text fragment within a frame. OrderIndex ordering is
// significant; TextOffset/TextLength index into the frame's full OCR text.
type Node struct {
	ID         int64
	FrameID    int64
	OrderIndex int64
	TextOffset int64
	TextLength int64
	Left       float64
	Top        float64
	Width      float64
	Height     float64
}

// OCRTextBlock is the full OCR text for a frame. It shares the frame's key
// space. Raw marks text recovered from the secondary search index rather
// than the ranking table; raw text is not in reading order, so node offsets
// must be applied to reorder it.
type OCRTextBlock struct {
	ID            int64
	Text          string
	TimestampInfo string
	WindowInfo    string
	Raw           bool
}

// Event is a calendar meeting. SegmentID is a best-effort link and is often
// zero; never assume the relation is present.
type Event struct {
	ID        int64
	SegmentID int64
	Title     string
	Location  string
	Notes     string
	Calendar  string
	Start     time.Time
	End       time.Time
}

// Stats holds per-table record counts for a time window.
type Stats struct {
	Segments        int64 `json:"segments"`
	AudioRecordings int64 `json:"audio_recordings"`
	TranscriptWords int64 `json:"transcript_words"`
	Frames          int64 `json:"frames"`
	Nodes           int64 `json:"nodes"`
	Events          int64 `json:"events"`
}

// SegmentFilter narrows segment range queries.
type SegmentFilter struct {
	// AppContains matches the application identifier case-insensitively.
	AppContains string
}

// WordFilter narrows transcript range queries.
type WordFilter struct {
	// SpeechSource keeps only words with this source tag ("me" or "others").
	// Empty keeps everything.
	SpeechSource string
}

// FrameFilter narrows frame range queries.
type FrameFilter struct {
	AppContains string
	StarredOnly bool
	// Limit caps the number of frames returned; zero means no cap.
	Limit int
}
