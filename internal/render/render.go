// Package render turns beads issues into their GitHub display form:
// the markdown issue body (carrying the round-trip marker), mirrored
// comment bodies, and the managed label set.
package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/steveyegge/bd2gh/internal/types"
)

// markerPattern extracts the beads ID embedded in a mirrored issue
// body. Anchored to the full marker comment so free-form body text
// cannot spoof it mid-line.
var markerPattern = regexp.MustCompile(`<!-- beads:([A-Za-z0-9._-]+) -->`)

// Marker returns the hidden marker comment embedded in every mirrored
// issue body. External tooling (and bd2gh rebuild) uses it to map a
// GitHub issue back to its beads source.
func Marker(id string) string {
	return fmt.Sprintf("<!-- beads:%s -->", id)
}

// ExtractMarker pulls the beads ID out of a mirrored issue body.
func ExtractMarker(body string) (string, bool) {
	m := markerPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IssueBody renders the full markdown body for a mirrored issue.
func IssueBody(issue *types.Issue) string {
	var b strings.Builder

	b.WriteString(Marker(issue.ID))
	b.WriteString("\n\n")

	if issue.Description != "" {
		b.WriteString(issue.Description)
		b.WriteString("\n")
	}

	writeSection(&b, "Design", issue.Design)
	writeSection(&b, "Acceptance Criteria", issue.AcceptanceCriteria)
	writeSection(&b, "Notes", issue.Notes)

	if len(issue.Dependencies) > 0 {
		b.WriteString("\n## Dependencies\n\n")
		for _, dep := range issue.Dependencies {
			fmt.Fprintf(&b, "- %s: `%s`\n", dep.Type, dep.DependsOnID)
		}
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "*Mirrored from beads issue `%s`", issue.ID)
	if !issue.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, " (updated %s)", issue.UpdatedAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("*\n")

	return b.String()
}

func writeSection(b *strings.Builder, heading, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n%s\n", heading, text)
}

// CommentBody renders a mirrored comment with its original author and
// timestamp, since the GitHub comment is authored by the sync token.
func CommentBody(c *types.Comment) string {
	var b strings.Builder
	author := c.Author
	if author == "" {
		author = "unknown"
	}
	fmt.Fprintf(&b, "**%s**", author)
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, " commented on %s", c.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	b.WriteString(":\n\n")
	b.WriteString(c.Text)
	return b.String()
}

// ClosingComment renders the comment posted when a mirrored issue is
// closed because its beads source closed.
func ClosingComment(issue *types.Issue) string {
	if issue.CloseReason != "" {
		return fmt.Sprintf("Closed in beads: %s", issue.CloseReason)
	}
	return fmt.Sprintf("Closed in beads (source issue `%s` is closed).", issue.ID)
}

// DeletionComment renders the comment posted when a mirrored issue is
// closed because its beads source disappeared from the export.
func DeletionComment(id string) string {
	return fmt.Sprintf("Beads issue `%s` was deleted from the source export; closing the mirror.", id)
}

// Labels returns the managed label set for an issue: the base sync
// label, the bd:* taxonomy labels, and the issue's own labels.
func Labels(issue *types.Issue, baseLabel string) []string {
	labels := []string{
		baseLabel,
		fmt.Sprintf("bd:status/%s", issue.Status),
		fmt.Sprintf("bd:priority/%d", issue.Priority),
	}
	if issue.IssueType != "" {
		labels = append(labels, fmt.Sprintf("bd:type/%s", issue.IssueType))
	}
	seen := make(map[string]bool, len(labels)+len(issue.Labels))
	for _, l := range labels {
		seen[l] = true
	}
	for _, l := range issue.Labels {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return labels
}
