package engine

import "context"

// MirrorIssue is the engine's view of a GitHub issue: just enough to
// link it, detect its open/closed state, and re-extract the beads
// marker from its body.
type MirrorIssue struct {
	Number int
	NodeID string
	State  string // "open" or "closed"
	Title  string
	Body   string
}

// Closed reports whether the mirrored issue is closed on GitHub.
func (m *MirrorIssue) Closed() bool {
	return m.State == "closed"
}

// IssueRequest carries the mirror-ready fields for a create or update.
type IssueRequest struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// Client is the narrow GitHub contract the engine consumes. All calls
// are single-item and synchronous; GetIssue translates a 404 into a
// (nil, nil) return rather than an error. Retry and rate limiting, if
// any, live behind this interface; the engine records a failed call
// as a permanent-for-this-run error and moves on.
type Client interface {
	CreateIssue(ctx context.Context, req IssueRequest) (*MirrorIssue, error)
	UpdateIssue(ctx context.Context, number int, req IssueRequest) error
	CloseIssue(ctx context.Context, number int, comment string) error
	ReopenIssue(ctx context.Context, number int) error
	GetIssue(ctx context.Context, number int) (*MirrorIssue, error)
	CreateComment(ctx context.Context, number int, body string) (int64, error)
	EnsureLabels(ctx context.Context, labels []string) error
	FilterValidAssignees(ctx context.Context, logins []string) ([]string, error)
	ListIssuesByLabel(ctx context.Context, label string) ([]*MirrorIssue, error)
}
