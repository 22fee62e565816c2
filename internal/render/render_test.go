package render

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/bd2gh/internal/types"
)

func TestMarkerRoundTrip(t *testing.T) {
	ids := []string{"bd-1", "bd-auth.login-42", "proj_x-9"}
	for _, id := range ids {
		body := IssueBody(&types.Issue{ID: id, Title: "t", Status: types.StatusOpen})
		got, ok := ExtractMarker(body)
		if !ok || got != id {
			t.Errorf("ExtractMarker(IssueBody(%q)) = %q, %v", id, got, ok)
		}
	}
}

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"plain", "<!-- beads:bd-1 -->\n\nBody text", "bd-1", true},
		{"mid body", "Intro\n<!-- beads:bd-2 -->\ntail", "bd-2", true},
		{"no marker", "just an ordinary issue", "", false},
		{"malformed", "<!-- beads: -->", "", false},
		{"id with specials", "<!-- beads:a.b_c-d -->", "a.b_c-d", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractMarker(tt.body)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ExtractMarker(%q) = %q, %v; want %q, %v", tt.body, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIssueBodySections(t *testing.T) {
	issue := &types.Issue{
		ID:                 "bd-1",
		Title:              "Add login",
		Description:        "Users need to log in.",
		Design:             "OAuth2 flow.",
		AcceptanceCriteria: "Login works.",
		Notes:              "See RFC.",
		Status:             types.StatusOpen,
		UpdatedAt:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Dependencies: []*types.Dependency{
			{IssueID: "bd-1", DependsOnID: "bd-0", Type: types.DepBlocks},
		},
	}

	body := IssueBody(issue)

	for _, want := range []string{
		"<!-- beads:bd-1 -->",
		"Users need to log in.",
		"## Design",
		"## Acceptance Criteria",
		"## Notes",
		"## Dependencies",
		"- blocks: `bd-0`",
		"*Mirrored from beads issue `bd-1` (updated 2025-03-01T12:00:00Z)*",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestIssueBodyOmitsEmptySections(t *testing.T) {
	body := IssueBody(&types.Issue{ID: "bd-1", Title: "t", Status: types.StatusOpen})
	if strings.Contains(body, "## Design") || strings.Contains(body, "## Dependencies") {
		t.Errorf("empty sections rendered:\n%s", body)
	}
}

func TestCommentBody(t *testing.T) {
	c := &types.Comment{
		ID:        7,
		Author:    "alice",
		Text:      "Looks good.",
		CreatedAt: time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC),
	}
	got := CommentBody(c)
	if !strings.HasPrefix(got, "**alice** commented on 2025-02-01 09:30:") {
		t.Errorf("unexpected header: %q", got)
	}
	if !strings.HasSuffix(got, "Looks good.") {
		t.Errorf("body not carried: %q", got)
	}

	anon := CommentBody(&types.Comment{Text: "hi"})
	if !strings.HasPrefix(anon, "**unknown**") {
		t.Errorf("missing author fallback: %q", anon)
	}
}

func TestClosingComment(t *testing.T) {
	withReason := &types.Issue{ID: "bd-1", CloseReason: "duplicate of bd-2"}
	if got := ClosingComment(withReason); !strings.Contains(got, "duplicate of bd-2") {
		t.Errorf("close reason not carried: %q", got)
	}

	without := &types.Issue{ID: "bd-1"}
	if got := ClosingComment(without); !strings.Contains(got, "`bd-1`") {
		t.Errorf("fallback should name the issue: %q", got)
	}
}

func TestLabels(t *testing.T) {
	issue := &types.Issue{
		ID:        "bd-1",
		Status:    types.StatusInProgress,
		Priority:  1,
		IssueType: types.TypeBug,
		Labels:    []string{"backend", "beads", "backend", ""},
	}

	got := Labels(issue, "beads")
	want := []string{"beads", "bd:status/in_progress", "bd:priority/1", "bd:type/bug", "backend"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Labels = %v, want %v", got, want)
	}
}

func TestLabelsWithoutType(t *testing.T) {
	issue := &types.Issue{ID: "bd-1", Status: types.StatusOpen, Priority: 0}
	got := Labels(issue, "sync")
	want := []string{"sync", "bd:status/open", "bd:priority/0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Labels = %v, want %v", got, want)
	}
}
