// Package jsonl reads a beads JSONL export into a validated snapshot.
// Each non-blank line is one independently parsed issue; a line that
// fails to parse or validate is collected as a diagnostic and skipped,
// never aborting the rest of the file.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/steveyegge/bd2gh/internal/types"
)

// maxLineSize bounds a single JSONL line. bd exports can carry long
// design documents in one line, so the default scanner buffer is far
// too small.
const maxLineSize = 10 * 1024 * 1024

// contentPreviewLen is how much of a bad line a diagnostic carries.
const contentPreviewLen = 80

// LineError is one per-line parse or validation diagnostic.
type LineError struct {
	Line    int    `json:"line"`
	Content string `json:"content"` // truncated
	Reason  string `json:"reason"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Read parses a JSONL stream into a snapshot, returning the valid
// issues in file order plus diagnostics for every rejected line.
func Read(r io.Reader) ([]*types.Issue, []LineError, error) {
	var issues []*types.Issue
	var lineErrors []LineError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var issue types.Issue
		if err := json.Unmarshal([]byte(line), &issue); err != nil {
			lineErrors = append(lineErrors, LineError{
				Line:    lineNum,
				Content: truncate(line),
				Reason:  fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		issue.SetDefaults()
		if err := issue.Validate(); err != nil {
			lineErrors = append(lineErrors, LineError{
				Line:    lineNum,
				Content: truncate(line),
				Reason:  err.Error(),
			})
			continue
		}

		issues = append(issues, &issue)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading JSONL: %w", err)
	}

	return issues, lineErrors, nil
}

// ReadFile reads a JSONL export from disk.
func ReadFile(path string) ([]*types.Issue, []LineError, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from config/flags
	if err != nil {
		return nil, nil, fmt.Errorf("opening JSONL file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

func truncate(line string) string {
	if len(line) <= contentPreviewLen {
		return line
	}
	return line[:contentPreviewLen] + "..."
}
