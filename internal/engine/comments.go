package engine

import (
	"context"
	"fmt"

	"github.com/steveyegge/bd2gh/internal/render"
)

// ActionComment is the pseudo action kind used in error records for
// comment reconciliation failures. The diff never emits it as an
// issue-level action.
const ActionComment ActionType = "comment"

// syncComments mirrors pending comments after all issue-level actions
// have run. A comment action with no resolved issue number looks the
// number up in the state, which covers issues created earlier in the
// same run; if the create failed, the comment fails in isolation too.
func (e *Executor) syncComments(ctx context.Context, actions []CommentAction, result *Result) {
	for _, ca := range actions {
		if e.opts.DryRun {
			result.CommentsSynced++
			continue
		}

		number := ca.GitHubIssueNumber
		if number == 0 {
			link := e.st.Get(ca.IssueID)
			if link == nil {
				result.Errors = append(result.Errors, ActionError{
					IssueID: ca.IssueID,
					Action:  ActionComment,
					Message: fmt.Sprintf("comment %s: parent issue has no mirror", ca.Comment.Key()),
				})
				continue
			}
			number = link.GitHubIssueNumber
		}

		commentID, err := e.client.CreateComment(ctx, number, render.CommentBody(ca.Comment))
		if err != nil {
			result.Errors = append(result.Errors, ActionError{
				IssueID: ca.IssueID,
				Action:  ActionComment,
				Message: fmt.Sprintf("comment %s: %v", ca.Comment.Key(), err),
			})
			continue
		}

		if err := e.st.SetCommentLink(ca.IssueID, ca.Comment.Key(), commentID); err != nil {
			// The comment exists on GitHub but the link could not be
			// recorded (the parent mapping is gone). Surface it: the
			// next run would duplicate the comment otherwise.
			result.Errors = append(result.Errors, ActionError{
				IssueID: ca.IssueID,
				Action:  ActionComment,
				Message: fmt.Sprintf("comment %s: recording link: %v", ca.Comment.Key(), err),
			})
			continue
		}
		result.CommentsSynced++
	}
}
