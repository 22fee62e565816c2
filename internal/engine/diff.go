// Package engine implements the reconciliation core: the pure diff
// between a beads snapshot and the identity map, and the orchestrator
// that applies the resulting actions against GitHub.
package engine

import (
	"regexp"
	"strconv"

	"github.com/steveyegge/bd2gh/internal/state"
	"github.com/steveyegge/bd2gh/internal/types"
)

// ActionType is the closed set of issue-level mutations the executor
// knows how to apply.
type ActionType string

// Action type constants
const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionClose  ActionType = "close"
	ActionReopen ActionType = "reopen"
	ActionAdopt  ActionType = "adopt"
)

// Action is one pending issue-level mutation. GitHubIssueNumber is set
// for every type except create, where the number is not known until the
// mirror issue exists.
type Action struct {
	Type              ActionType
	Issue             *types.Issue
	GitHubIssueNumber int
}

// CommentAction is one pending comment creation. GitHubIssueNumber is
// zero when the parent issue is being created in the same run; the
// comment reconciler resolves it from the state after issue-level
// actions have completed.
type CommentAction struct {
	IssueID           string
	GitHubIssueNumber int
	Comment           *types.Comment
}

// DiffResult is the full output of one diff pass.
//
// DeletedIDs is advisory: IDs that are mapped but absent from the
// snapshot. The diff never mutates the state or decides what to do
// about them; the executor applies the configured deletion policy.
type DiffResult struct {
	Actions        []Action
	CommentActions []CommentAction
	DeletedIDs     []string
}

// Empty reports whether the diff found nothing to do.
func (r *DiffResult) Empty() bool {
	return len(r.Actions) == 0 && len(r.CommentActions) == 0 && len(r.DeletedIDs) == 0
}

// adoptRefPattern matches external_refs that bind a beads issue to a
// pre-existing GitHub issue. Fully anchored: "gh-42x" is not an
// adoption reference.
var adoptRefPattern = regexp.MustCompile(`^gh-(\d+)$`)

// ParseAdoptionRef extracts the GitHub issue number from an adoption
// external_ref. Returns false for anything that does not match the
// anchored gh-<number> form; such refs fall through to plain creation.
func ParseAdoptionRef(ref string) (int, bool) {
	m := adoptRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits that overflow int (absurd but possible input) are
		// treated like any other non-matching ref.
		return 0, false
	}
	return n, true
}

// Diff computes the minimal ordered action set that brings the GitHub
// mirror in line with the snapshot, given the current identity map.
//
// Pure and deterministic: no I/O, no clock, no state mutation. Issue
// actions and comment actions preserve snapshot order. Staleness is a
// strict comparison of the record's updated_at against the link's
// watermark, so re-running an applied diff yields nothing.
func Diff(issues []*types.Issue, st *state.State) *DiffResult {
	result := &DiffResult{}

	inSnapshot := make(map[string]bool, len(issues))
	for _, issue := range issues {
		inSnapshot[issue.ID] = true
	}
	for _, id := range st.IDs() {
		if !inSnapshot[id] {
			result.DeletedIDs = append(result.DeletedIDs, id)
		}
	}

	for _, issue := range issues {
		link := st.Get(issue.ID)

		if link == nil {
			if issue.ExternalRef != nil {
				if number, ok := ParseAdoptionRef(*issue.ExternalRef); ok {
					result.Actions = append(result.Actions, Action{
						Type:              ActionAdopt,
						Issue:             issue,
						GitHubIssueNumber: number,
					})
					// No link means no comment sub-mapping: every comment is new.
					for _, c := range issue.Comments {
						result.CommentActions = append(result.CommentActions, CommentAction{
							IssueID:           issue.ID,
							GitHubIssueNumber: number,
							Comment:           c,
						})
					}
					continue
				}
			}
			result.Actions = append(result.Actions, Action{
				Type:  ActionCreate,
				Issue: issue,
			})
			for _, c := range issue.Comments {
				result.CommentActions = append(result.CommentActions, CommentAction{
					IssueID: issue.ID,
					Comment: c,
				})
			}
			continue
		}

		// Equal timestamps are not stale; repeated runs with unchanged
		// data must produce no actions.
		stale := issue.UpdatedAt.After(link.BeadsUpdatedAt)
		switch {
		case stale && issue.IsClosed():
			result.Actions = append(result.Actions, Action{
				Type:              ActionClose,
				Issue:             issue,
				GitHubIssueNumber: link.GitHubIssueNumber,
			})
		case stale:
			result.Actions = append(result.Actions, Action{
				Type:              ActionUpdate,
				Issue:             issue,
				GitHubIssueNumber: link.GitHubIssueNumber,
			})
		}

		// Comment sync is independent of the staleness watermark: an
		// issue can be otherwise unchanged but have gained comments.
		for _, c := range issue.Comments {
			if _, synced := link.Comments[c.Key()]; synced {
				continue
			}
			result.CommentActions = append(result.CommentActions, CommentAction{
				IssueID:           issue.ID,
				GitHubIssueNumber: link.GitHubIssueNumber,
				Comment:           c,
			})
		}
	}

	return result
}
