package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/steveyegge/bd2gh/internal/render"
	"github.com/steveyegge/bd2gh/internal/state"
	"github.com/steveyegge/bd2gh/internal/types"
)

// Options configures one executor run.
type Options struct {
	// DryRun previews every action without calling GitHub or mutating
	// the state.
	DryRun bool

	// CloseDeleted closes mirrored issues whose beads source vanished
	// from the snapshot and drops their links. Off by default: deletion
	// candidates are reported only.
	CloseDeleted bool

	// CheckReopens live-reads the mirror for linked, non-closed source
	// issues and reopens any that were closed on the GitHub side. The
	// diff cannot detect this from the watermark alone.
	CheckReopens bool

	// BaseLabel is the label marking issues managed by bd2gh.
	BaseLabel string

	// Warnings receives human-readable warnings (invalid assignees and
	// the like). Defaults to io.Discard.
	Warnings io.Writer

	// Now supplies the clock for last_sync_at stamps. Defaults to time.Now.
	Now func() time.Time
}

// ActionError is one isolated per-action failure. The batch always
// runs to completion; callers decide whether a non-empty error list
// means overall failure.
type ActionError struct {
	IssueID string     `json:"issue_id"`
	Action  ActionType `json:"action"`
	Message string     `json:"message"`
}

func (e ActionError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.IssueID, e.Action, e.Message)
}

// Result summarizes one executor run.
type Result struct {
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Closed         int           `json:"closed"`
	Reopened       int           `json:"reopened"`
	Adopted        int           `json:"adopted"`
	DeletedClosed  int           `json:"deleted_closed"`
	CommentsSynced int           `json:"comments_synced"`
	Errors         []ActionError `json:"errors,omitempty"`
	DryRun         bool          `json:"dry_run"`
}

// Executor applies a DiffResult against GitHub, one action at a time.
// The state is mutated only after the corresponding GitHub mutation
// succeeds, and only by this executor: the engine assumes single-writer
// access to the state for the duration of a run.
type Executor struct {
	client Client
	st     *state.State
	opts   Options
}

// NewExecutor builds an executor over a client and the identity map.
func NewExecutor(client Client, st *state.State, opts Options) *Executor {
	if opts.Warnings == nil {
		opts.Warnings = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BaseLabel == "" {
		opts.BaseLabel = "beads"
	}
	return &Executor{client: client, st: st, opts: opts}
}

// Apply executes the diff: issue-level actions in order, then the
// deletion policy, then comment actions (so comments always target a
// mirror issue that exists), then the optional reopen pass. A failed
// action is recorded and skipped over; it never aborts the batch and
// never half-updates the state.
func (e *Executor) Apply(ctx context.Context, diff *DiffResult) *Result {
	result := &Result{DryRun: e.opts.DryRun}

	for _, action := range diff.Actions {
		if err := e.applyAction(ctx, action, result); err != nil {
			result.Errors = append(result.Errors, ActionError{
				IssueID: action.Issue.ID,
				Action:  action.Type,
				Message: err.Error(),
			})
		}
	}

	if e.opts.CloseDeleted {
		e.closeDeleted(ctx, diff.DeletedIDs, result)
	}

	e.syncComments(ctx, diff.CommentActions, result)

	return result
}

// applyAction dispatches one action. The switch is exhaustive over the
// action sum; an unknown type is a bug surfaced as an action error
// rather than silent fallthrough.
func (e *Executor) applyAction(ctx context.Context, action Action, result *Result) error {
	switch action.Type {
	case ActionCreate:
		return e.create(ctx, action.Issue, result)
	case ActionUpdate:
		return e.update(ctx, action.Issue, action.GitHubIssueNumber, result)
	case ActionClose:
		return e.close(ctx, action.Issue, action.GitHubIssueNumber, result)
	case ActionAdopt:
		return e.adopt(ctx, action.Issue, action.GitHubIssueNumber, result)
	case ActionReopen:
		return e.reopen(ctx, action.Issue, action.GitHubIssueNumber, result)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// buildRequest assembles the mirror-ready issue request, dropping
// assignees GitHub would reject. Invalid assignees warn and continue;
// they never block the action.
func (e *Executor) buildRequest(ctx context.Context, issue *types.Issue) (IssueRequest, error) {
	req := IssueRequest{
		Title:  issue.Title,
		Body:   render.IssueBody(issue),
		Labels: render.Labels(issue, e.opts.BaseLabel),
	}

	if issue.Assignee != "" {
		valid, err := e.client.FilterValidAssignees(ctx, []string{issue.Assignee})
		if err != nil {
			return req, fmt.Errorf("validating assignee: %w", err)
		}
		if len(valid) == 0 {
			fmt.Fprintf(e.opts.Warnings, "Warning: dropping invalid assignee %q on %s\n", issue.Assignee, issue.ID)
		}
		req.Assignees = valid
	}

	return req, nil
}

func (e *Executor) create(ctx context.Context, issue *types.Issue, result *Result) error {
	if e.opts.DryRun {
		result.Created++
		return nil
	}

	req, err := e.buildRequest(ctx, issue)
	if err != nil {
		return err
	}
	if err := e.client.EnsureLabels(ctx, req.Labels); err != nil {
		return fmt.Errorf("ensuring labels: %w", err)
	}

	mirror, err := e.client.CreateIssue(ctx, req)
	if err != nil {
		return err
	}

	e.st.Set(issue.ID, &state.Link{
		GitHubIssueNumber: mirror.Number,
		GitHubNodeID:      mirror.NodeID,
		LastSyncAt:        e.opts.Now().UTC(),
		BeadsUpdatedAt:    issue.UpdatedAt,
		Comments:          make(map[string]state.CommentLink),
	})
	result.Created++
	return nil
}

func (e *Executor) update(ctx context.Context, issue *types.Issue, number int, result *Result) error {
	if e.opts.DryRun {
		result.Updated++
		return nil
	}

	req, err := e.buildRequest(ctx, issue)
	if err != nil {
		return err
	}
	if err := e.client.EnsureLabels(ctx, req.Labels); err != nil {
		return fmt.Errorf("ensuring labels: %w", err)
	}
	if err := e.client.UpdateIssue(ctx, number, req); err != nil {
		return err
	}

	e.advanceWatermark(issue)
	result.Updated++
	return nil
}

// close pushes a final body/label update before closing so the mirror
// reflects the source's last state, then closes with a comment. The
// watermark advances only after both calls succeed.
func (e *Executor) close(ctx context.Context, issue *types.Issue, number int, result *Result) error {
	if e.opts.DryRun {
		result.Closed++
		return nil
	}

	req, err := e.buildRequest(ctx, issue)
	if err != nil {
		return err
	}
	if err := e.client.EnsureLabels(ctx, req.Labels); err != nil {
		return fmt.Errorf("ensuring labels: %w", err)
	}
	if err := e.client.UpdateIssue(ctx, number, req); err != nil {
		return fmt.Errorf("updating before close: %w", err)
	}
	if err := e.client.CloseIssue(ctx, number, render.ClosingComment(issue)); err != nil {
		return err
	}

	e.advanceWatermark(issue)
	result.Closed++
	return nil
}

// adopt binds a beads issue to a pre-existing GitHub issue named by its
// external_ref. The target must exist; a missing target is a per-action
// error, not a batch abort.
func (e *Executor) adopt(ctx context.Context, issue *types.Issue, number int, result *Result) error {
	if e.opts.DryRun {
		result.Adopted++
		return nil
	}

	mirror, err := e.client.GetIssue(ctx, number)
	if err != nil {
		return err
	}
	if mirror == nil {
		return fmt.Errorf("mirror issue not found")
	}

	req, err := e.buildRequest(ctx, issue)
	if err != nil {
		return err
	}
	if err := e.client.EnsureLabels(ctx, req.Labels); err != nil {
		return fmt.Errorf("ensuring labels: %w", err)
	}
	if err := e.client.UpdateIssue(ctx, number, req); err != nil {
		return err
	}

	e.st.Set(issue.ID, &state.Link{
		GitHubIssueNumber:      mirror.Number,
		GitHubNodeID:           mirror.NodeID,
		LastSyncAt:             e.opts.Now().UTC(),
		BeadsUpdatedAt:         issue.UpdatedAt,
		AdoptedFromExternalRef: true,
		Comments:               make(map[string]state.CommentLink),
	})
	result.Adopted++
	return nil
}

func (e *Executor) reopen(ctx context.Context, issue *types.Issue, number int, result *Result) error {
	if e.opts.DryRun {
		result.Reopened++
		return nil
	}

	if err := e.client.ReopenIssue(ctx, number); err != nil {
		return err
	}

	if link := e.st.Get(issue.ID); link != nil {
		link.LastSyncAt = e.opts.Now().UTC()
	}
	result.Reopened++
	return nil
}

// advanceWatermark records a successful update/close: the link's
// watermark becomes the record's own updated_at, never wall-clock time.
func (e *Executor) advanceWatermark(issue *types.Issue) {
	link := e.st.Get(issue.ID)
	if link == nil {
		return
	}
	link.BeadsUpdatedAt = issue.UpdatedAt
	link.LastSyncAt = e.opts.Now().UTC()
}

// closeDeleted applies the opt-in deletion policy: close the mirror of
// every mapped ID that vanished from the snapshot, then drop its link.
func (e *Executor) closeDeleted(ctx context.Context, deletedIDs []string, result *Result) {
	for _, id := range deletedIDs {
		link := e.st.Get(id)
		if link == nil {
			continue
		}
		if e.opts.DryRun {
			result.DeletedClosed++
			continue
		}
		if err := e.client.CloseIssue(ctx, link.GitHubIssueNumber, render.DeletionComment(id)); err != nil {
			result.Errors = append(result.Errors, ActionError{
				IssueID: id,
				Action:  ActionClose,
				Message: fmt.Sprintf("closing deleted issue: %v", err),
			})
			continue
		}
		e.st.Remove(id)
		result.DeletedClosed++
	}
}

// DetectReopens live-reads the mirror for every linked, non-closed
// source record and returns reopen actions for mirrors that are
// closed. Issues with a pending close are skipped (the mirror is
// supposed to be closed), as are creates and adopts, which had no
// mirror before this run; a pending update is still a reopen
// candidate, since updating a body never reopens the issue. This is
// deliberately outside Diff: the identity map tracks only the source
// watermark, not mirror state, so reopen detection needs network reads
// and stays in the orchestrator layer.
func (e *Executor) DetectReopens(ctx context.Context, issues []*types.Issue, diff *DiffResult, result *Result) []Action {
	pending := make(map[string]bool, len(diff.Actions))
	for _, a := range diff.Actions {
		switch a.Type {
		case ActionClose, ActionCreate, ActionAdopt:
			pending[a.Issue.ID] = true
		}
	}

	var reopens []Action
	for _, issue := range issues {
		if issue.IsClosed() || pending[issue.ID] {
			continue
		}
		link := e.st.Get(issue.ID)
		if link == nil {
			continue
		}
		mirror, err := e.client.GetIssue(ctx, link.GitHubIssueNumber)
		if err != nil {
			result.Errors = append(result.Errors, ActionError{
				IssueID: issue.ID,
				Action:  ActionReopen,
				Message: fmt.Sprintf("checking mirror state: %v", err),
			})
			continue
		}
		if mirror == nil || !mirror.Closed() {
			continue
		}
		reopens = append(reopens, Action{
			Type:              ActionReopen,
			Issue:             issue,
			GitHubIssueNumber: link.GitHubIssueNumber,
		})
	}
	return reopens
}

// Run is the full orchestration entry point: apply the diff, then (when
// enabled) detect and apply reopens in one extra pass.
func (e *Executor) Run(ctx context.Context, issues []*types.Issue, diff *DiffResult) *Result {
	result := e.Apply(ctx, diff)

	if e.opts.CheckReopens && !e.opts.DryRun {
		for _, action := range e.DetectReopens(ctx, issues, diff, result) {
			if err := e.applyAction(ctx, action, result); err != nil {
				result.Errors = append(result.Errors, ActionError{
					IssueID: action.Issue.ID,
					Action:  action.Type,
					Message: err.Error(),
				})
			}
		}
	}

	return result
}
