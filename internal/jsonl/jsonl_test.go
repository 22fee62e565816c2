package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validLine = `{"id":"bd-1","title":"First","status":"open","priority":1,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-02T00:00:00Z"}`

func TestReadValidLines(t *testing.T) {
	input := validLine + "\n" +
		`{"id":"bd-2","title":"Second","status":"closed","priority":0,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-03T00:00:00Z","close_reason":"done"}` + "\n"

	issues, lineErrors, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(lineErrors) != 0 {
		t.Fatalf("unexpected diagnostics: %v", lineErrors)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2", len(issues))
	}
	if issues[0].ID != "bd-1" || issues[1].ID != "bd-2" {
		t.Errorf("file order not preserved: %s, %s", issues[0].ID, issues[1].ID)
	}
	if issues[1].CloseReason != "done" {
		t.Errorf("close_reason = %q, want done", issues[1].CloseReason)
	}
}

func TestReadAppliesDefaults(t *testing.T) {
	input := `{"id":"bd-1","title":"No status","priority":2,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`

	issues, _, err := Read(strings.NewReader(input))
	if err != nil || len(issues) != 1 {
		t.Fatalf("Read = %v issues, err %v", len(issues), err)
	}
	if got := string(issues[0].Status); got != "open" {
		t.Errorf("default status = %q, want open", got)
	}
	if got := string(issues[0].IssueType); got != "task" {
		t.Errorf("default type = %q, want task", got)
	}
}

func TestReadSkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		validLine,
		`{not json`,
		`{"id":"","title":"no id","priority":1,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`,
		`{"id":"bd-9","title":"bad prio","priority":9,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`,
		`{"id":"bd-3","title":"Survivor","priority":1,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`,
	}, "\n")

	issues, lineErrors, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2 survivors", len(issues))
	}
	if issues[1].ID != "bd-3" {
		t.Errorf("line after errors = %s, want bd-3", issues[1].ID)
	}

	if len(lineErrors) != 3 {
		t.Fatalf("got %d diagnostics, want 3: %v", len(lineErrors), lineErrors)
	}
	if lineErrors[0].Line != 2 || !strings.Contains(lineErrors[0].Reason, "invalid JSON") {
		t.Errorf("diagnostic 0 = %+v", lineErrors[0])
	}
	if lineErrors[1].Line != 3 || !strings.Contains(lineErrors[1].Reason, "id is required") {
		t.Errorf("diagnostic 1 = %+v", lineErrors[1])
	}
	if lineErrors[2].Line != 4 || !strings.Contains(lineErrors[2].Reason, "priority") {
		t.Errorf("diagnostic 2 = %+v", lineErrors[2])
	}
}

func TestReadSkipsBlankLines(t *testing.T) {
	input := "\n" + validLine + "\n\n"

	issues, lineErrors, err := Read(strings.NewReader(input))
	if err != nil || len(lineErrors) != 0 {
		t.Fatalf("Read: %v, diagnostics %v", err, lineErrors)
	}
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
}

func TestLineErrorTruncatesContent(t *testing.T) {
	long := `{"id":"` + strings.Repeat("x", 200)

	_, lineErrors, err := Read(strings.NewReader(long))
	if err != nil || len(lineErrors) != 1 {
		t.Fatalf("Read: %v, diagnostics %v", err, lineErrors)
	}
	if got := len(lineErrors[0].Content); got != contentPreviewLen+len("...") {
		t.Errorf("preview length = %d, want %d", got, contentPreviewLen+3)
	}
	if !strings.HasSuffix(lineErrors[0].Content, "...") {
		t.Errorf("preview not marked truncated: %q", lineErrors[0].Content)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.jsonl")
	if err := os.WriteFile(path, []byte(validLine+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	issues, lineErrors, err := ReadFile(path)
	if err != nil || len(lineErrors) != 0 || len(issues) != 1 {
		t.Fatalf("ReadFile = %d issues, diagnostics %v, err %v", len(issues), lineErrors, err)
	}

	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("missing file should error")
	}
}

func TestComments(t *testing.T) {
	input := `{"id":"bd-1","title":"With comments","priority":1,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z","comments":[{"id":11,"author":"alice","text":"hi","created_at":"2025-01-01T01:00:00Z"}]}`

	issues, _, err := Read(strings.NewReader(input))
	if err != nil || len(issues) != 1 {
		t.Fatalf("Read: %v", err)
	}
	if len(issues[0].Comments) != 1 || issues[0].Comments[0].Key() != "11" {
		t.Errorf("comments = %+v", issues[0].Comments)
	}
}
