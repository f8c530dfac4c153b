// Package media resolves on-disk paths for captured audio and screenshots.
// The recorder lays media out under a root directory by capture time; this
// package only computes paths and checks existence, it never reads media.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snippetTimeLayout is the directory name format for audio snippets,
// the recording's local start time with millisecond precision.
const snippetTimeLayout = "2006-01-02T15.04.05.000"

// Resolver computes media paths under a fixed root.
type Resolver struct {
	root string
	loc  *time.Location
}

// NewResolver returns a Resolver for the media tree at root. Directory
// names use capture-local time in loc; nil means the process-local zone.
func NewResolver(root string, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{root: root, loc: loc}
}

// SnippetPath returns the audio snippet file for a recording started at
// start: {root}/snippets/{start}/snippet.{ext}.
func (r *Resolver) SnippetPath(start time.Time, ext string) string {
	return filepath.Join(r.root, "snippets",
		start.In(r.loc).Format(snippetTimeLayout),
		"snippet."+ext)
}

// ChunkPath returns a screen-capture chunk file:
// {root}/chunks/{yyyymm}/{dd}/{chunkID}.
func (r *Resolver) ChunkPath(capturedAt time.Time, chunkID string) string {
	local := capturedAt.In(r.loc)
	return filepath.Join(r.root, "chunks",
		fmt.Sprintf("%04d%02d", local.Year(), local.Month()),
		fmt.Sprintf("%02d", local.Day()),
		chunkID)
}

// Exists reports whether the path refers to an existing regular file.
func (r *Resolver) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
