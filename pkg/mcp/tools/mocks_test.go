package tools

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recallkit/recall-engine/pkg/config"
	"github.com/recallkit/recall-engine/pkg/store"
)

const testKey = "tools-test-key"

// Timestamp columns are type-less so fixtures can carry both encodings.
const fixtureSchema = `
CREATE TABLE segment (
	id INTEGER PRIMARY KEY,
	startDate,
	endDate,
	bundleID TEXT,
	windowName TEXT,
	browserUrl TEXT
);
CREATE TABLE audio (
	id INTEGER PRIMARY KEY,
	segmentId INTEGER,
	path TEXT,
	startTime,
	duration INTEGER
);
CREATE TABLE transcript_word (
	id INTEGER PRIMARY KEY,
	segmentId INTEGER,
	word TEXT,
	timeOffset INTEGER,
	duration INTEGER,
	speechSource TEXT,
	textOffset INTEGER
);
CREATE TABLE frame (
	id INTEGER PRIMARY KEY,
	segmentId INTEGER,
	createdAt,
	imageFileName TEXT,
	isStarred INTEGER
);
CREATE TABLE node (
	id INTEGER PRIMARY KEY,
	frameId INTEGER,
	orderIndex INTEGER,
	textOffset INTEGER,
	textLength INTEGER,
	leftX REAL,
	topY REAL,
	width REAL,
	height REAL
);
CREATE TABLE searchRanking_content (
	id INTEGER PRIMARY KEY,
	c0 TEXT,
	c1 TEXT,
	c2 TEXT
);
CREATE TABLE search_content (
	docid INTEGER PRIMARY KEY,
	c0text TEXT,
	c1otherText TEXT
);
CREATE TABLE event (
	id INTEGER PRIMARY KEY,
	title TEXT,
	startDate,
	endDate,
	location TEXT,
	notes TEXT,
	calendarName TEXT,
	segmentId INTEGER
);
`

// fixtureStart anchors all seeded rows; tests query with when=<that day>.
var fixtureStart = time.Date(2023, 5, 11, 13, 0, 0, 0, time.UTC)

// newTestDeps builds Deps backed by a freshly seeded encrypted database.
func newTestDeps(t *testing.T, seed func(db *sql.DB)) *Deps {
	t.Helper()

	path := filepath.Join(t.TempDir(), "activity.sqlite3")
	dsn := fmt.Sprintf("file:%s?_pragma_key=%s&_pragma_cipher_compatibility=4", path, testKey)

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	_, err = db.Exec(fixtureSchema)
	require.NoError(t, err)
	if seed != nil {
		seed(db)
	}
	require.NoError(t, db.Close())

	cfg := &config.Config{
		Version: "test",
		Store: config.StoreConfig{
			Path:     path,
			Key:      testKey,
			Timezone: "UTC",
		},
		Search: config.SearchConfig{
			DefaultWindow: "7d",
			ContextWords:  3,
			ContextChars:  200,
			Limit:         100,
		},
		Dedupe: config.DedupeConfig{Threshold: 0.92},
	}

	logger := zap.NewNop()
	return &Deps{
		Config: cfg,
		Logger: logger,
		OpenStore: func() (*store.Store, error) {
			return store.Open(path, testKey, logger, store.WithLocation(time.UTC))
		},
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err)
}

// newToolServer registers every tool against the given deps.
func newToolServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterAll(s, deps)
	return s
}

// callTool drives a tools/call through the server's message handler and
// returns the first text content plus the result's IsError flag.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	resp := s.HandleMessage(t.Context(), raw)
	respBytes, err := json.Marshal(resp)
	require.NoError(t, err)

	var parsed struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &parsed))
	require.Nil(t, parsed.Error, "tool call failed at the protocol level")
	require.NotEmpty(t, parsed.Result.Content)
	return parsed.Result.Content[0].Text, parsed.Result.IsError
}

// getTextContent extracts the text string from the first text content item.
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}
