// Package session reconstructs coherent sessions from the flat row shapes
// the store returns: word-level transcript rows into spoken sessions, and
// frame/node/text-block rows into screen sessions.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/recallkit/recall-engine/pkg/store"
)

// TranscriptSession is one audio recording with its words in spoken order
// and the reconstructed full text.
type TranscriptSession struct {
	AudioID    int64     `json:"audio_id"`
	SegmentID  int64     `json:"segment_id"`
	App        string    `json:"app,omitempty"`
	Start      time.Time `json:"start"`
	DurationMS int64     `json:"duration_ms"`
	Words      []Word    `json:"words"`
	Text       string    `json:"text"`
}

// Word is one spoken word with its resolved absolute instant.
type Word struct {
	Word         string    `json:"word"`
	TimeOffsetMS int64     `json:"time_offset_ms"`
	DurationMS   int64     `json:"duration_ms"`
	SpeechSource string    `json:"speech_source,omitempty"`
	AbsoluteTime time.Time `json:"absolute_time"`
}

// TextSource records where a screen session's text came from.
type TextSource string

const (
	// SourceTextBlock means a stored OCR text block was used verbatim.
	// Ranking-table text is authoritative and always taken this way.
	SourceTextBlock TextSource = "text_block"
	// SourceNodes means raw search-index text was reordered through the
	// frame's node offsets into reading order.
	SourceNodes TextSource = "nodes"
	// SourceEmpty marks a frame with no text at all. Blank or locked
	// screens produce these; they are valid sessions, not errors.
	SourceEmpty TextSource = "empty"
)

// ScreenSession is one captured frame with its reconstructed OCR text.
type ScreenSession struct {
	FrameID       int64      `json:"frame_id"`
	SegmentID     int64      `json:"segment_id"`
	CapturedAt    time.Time  `json:"captured_at"`
	App           string     `json:"app,omitempty"`
	Window        string     `json:"window,omitempty"`
	ImageFileName string     `json:"image_file,omitempty"`
	Starred       bool       `json:"starred,omitempty"`
	Text          string     `json:"text"`
	NodeCount     int        `json:"node_count"`
	Source        TextSource `json:"source"`
}

// AssembleTranscripts groups word rows by owning recording, orders each
// group by time offset, and joins the words with single spaces into the
// session text. Input order does not matter; output sessions are ordered
// by recording start, then audio id for identical starts.
func AssembleTranscripts(words []store.TranscriptWord) []TranscriptSession {
	if len(words) == 0 {
		return nil
	}

	byAudio := make(map[int64][]store.TranscriptWord)
	for _, w := range words {
		byAudio[w.AudioID] = append(byAudio[w.AudioID], w)
	}

	sessions := make([]TranscriptSession, 0, len(byAudio))
	for audioID, group := range byAudio {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TimeOffsetMS < group[j].TimeOffsetMS
		})

		first := group[0]
		s := TranscriptSession{
			AudioID:    audioID,
			SegmentID:  first.SegmentID,
			App:        first.App,
			Start:      first.AudioStart,
			DurationMS: first.AudioDurationMS,
			Words:      make([]Word, 0, len(group)),
		}

		texts := make([]string, 0, len(group))
		for _, w := range group {
			s.Words = append(s.Words, Word{
				Word:         w.Word,
				TimeOffsetMS: w.TimeOffsetMS,
				DurationMS:   w.DurationMS,
				SpeechSource: w.SpeechSource,
				AbsoluteTime: w.AbsoluteTime(),
			})
			texts = append(texts, w.Word)
		}
		s.Text = strings.Join(texts, " ")
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Start.Equal(sessions[j].Start) {
			return sessions[i].Start.Before(sessions[j].Start)
		}
		return sessions[i].AudioID < sessions[j].AudioID
	})
	return sessions
}

// AssembleScreens builds one screen session per frame. Ranking-table text
// blocks are taken verbatim; raw search-index blocks are not in reading
// order, so they are reordered through the frame's node offsets when nodes
// exist, falling back to the raw text as stored. A frame with no text block
// yields an empty-text session. Output preserves the input frame order.
func AssembleScreens(frames []store.Frame, nodes []store.Node, blocks []store.OCRTextBlock) []ScreenSession {
	nodesByFrame := make(map[int64][]store.Node)
	for _, n := range nodes {
		nodesByFrame[n.FrameID] = append(nodesByFrame[n.FrameID], n)
	}
	for _, group := range nodesByFrame {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].OrderIndex < group[j].OrderIndex
		})
	}

	blockByID := make(map[int64]store.OCRTextBlock, len(blocks))
	for _, b := range blocks {
		blockByID[b.ID] = b
	}

	sessions := make([]ScreenSession, 0, len(frames))
	for _, f := range frames {
		frameNodes := nodesByFrame[f.ID]
		s := ScreenSession{
			FrameID:       f.ID,
			SegmentID:     f.SegmentID,
			CapturedAt:    f.CreatedAt,
			App:           f.App,
			Window:        f.Window,
			ImageFileName: f.ImageFileName,
			Starred:       f.Starred,
			NodeCount:     len(frameNodes),
			Source:        SourceEmpty,
		}

		block, hasBlock := blockByID[f.ID]
		if hasBlock && block.Text != "" {
			if block.Raw && len(frameNodes) > 0 {
				if text := reconstructFromNodes(block.Text, frameNodes); text != "" {
					s.Text = text
					s.Source = SourceNodes
				}
			}
			if s.Source == SourceEmpty {
				s.Text = block.Text
				s.Source = SourceTextBlock
			}
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// reconstructFromNodes reassembles frame text by slicing the full text at
// each node's offset, in order-index order. Out-of-range offsets are
// skipped rather than failing the whole frame.
func reconstructFromNodes(fullText string, nodes []store.Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		start := int(n.TextOffset)
		end := start + int(n.TextLength)
		if start < 0 || start >= len(fullText) {
			continue
		}
		if end > len(fullText) {
			end = len(fullText)
		}
		if piece := strings.TrimSpace(fullText[start:end]); piece != "" {
			parts = append(parts, piece)
		}
	}
	return strings.Join(parts, " ")
}
