// Package github implements the engine's mirror client contract
// against the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v66/github"

	"github.com/steveyegge/bd2gh/internal/engine"
)

// labelColor is applied to labels bd2gh creates. GitHub's default gray.
const labelColor = "ededed"

// Client talks to one GitHub repository. It implements engine.Client.
// Calls are single-item and sequential; rate limiting is left to the
// API client and surfaces as ordinary errors.
type Client struct {
	gh    *gh.Client
	owner string
	repo  string

	// knownLabels caches labels confirmed to exist so EnsureLabels does
	// not re-fetch the same names on every action.
	knownLabels map[string]bool
}

// New builds a client for owner/repo authenticated with token.
func New(token, owner, repo string) *Client {
	return &Client{
		gh:          gh.NewClient(nil).WithAuthToken(token),
		owner:       owner,
		repo:        repo,
		knownLabels: make(map[string]bool),
	}
}

// NewFromGitHub wraps an existing API client. Used by tests to point at
// an httptest server.
func NewFromGitHub(client *gh.Client, owner, repo string) *Client {
	return &Client{
		gh:          client,
		owner:       owner,
		repo:        repo,
		knownLabels: make(map[string]bool),
	}
}

var _ engine.Client = (*Client)(nil)

func toMirror(issue *gh.Issue) *engine.MirrorIssue {
	return &engine.MirrorIssue{
		Number: issue.GetNumber(),
		NodeID: issue.GetNodeID(),
		State:  issue.GetState(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
	}
}

// CreateIssue opens a new issue and returns its mirror identity.
func (c *Client) CreateIssue(ctx context.Context, req engine.IssueRequest) (*engine.MirrorIssue, error) {
	issue, _, err := c.gh.Issues.Create(ctx, c.owner, c.repo, &gh.IssueRequest{
		Title:     gh.String(req.Title),
		Body:      gh.String(req.Body),
		Labels:    &req.Labels,
		Assignees: &req.Assignees,
	})
	if err != nil {
		return nil, fmt.Errorf("creating issue: %w", err)
	}
	return toMirror(issue), nil
}

// UpdateIssue pushes title, body, labels, and assignees to an existing
// issue. It does not change the issue's open/closed state.
func (c *Client) UpdateIssue(ctx context.Context, number int, req engine.IssueRequest) error {
	_, _, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, &gh.IssueRequest{
		Title:     gh.String(req.Title),
		Body:      gh.String(req.Body),
		Labels:    &req.Labels,
		Assignees: &req.Assignees,
	})
	if err != nil {
		return fmt.Errorf("updating issue #%d: %w", number, err)
	}
	return nil
}

// CloseIssue posts the closing comment (when non-empty), then closes
// the issue as completed.
func (c *Client) CloseIssue(ctx context.Context, number int, comment string) error {
	if comment != "" {
		if _, err := c.CreateComment(ctx, number, comment); err != nil {
			return err
		}
	}
	_, _, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, &gh.IssueRequest{
		State:       gh.String("closed"),
		StateReason: gh.String("completed"),
	})
	if err != nil {
		return fmt.Errorf("closing issue #%d: %w", number, err)
	}
	return nil
}

// ReopenIssue reopens a closed issue.
func (c *Client) ReopenIssue(ctx context.Context, number int) error {
	_, _, err := c.gh.Issues.Edit(ctx, c.owner, c.repo, number, &gh.IssueRequest{
		State: gh.String("open"),
	})
	if err != nil {
		return fmt.Errorf("reopening issue #%d: %w", number, err)
	}
	return nil
}

// GetIssue fetches one issue. A 404 is a normal outcome (the adoption
// target may not exist) and returns (nil, nil), not an error.
func (c *Client) GetIssue(ctx context.Context, number int) (*engine.MirrorIssue, error) {
	issue, resp, err := c.gh.Issues.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching issue #%d: %w", number, err)
	}
	return toMirror(issue), nil
}

// CreateComment posts a comment and returns its GitHub comment ID.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (int64, error) {
	comment, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return 0, fmt.Errorf("commenting on issue #%d: %w", number, err)
	}
	return comment.GetID(), nil
}

// EnsureLabels creates any labels the repository is missing. A 404 on
// lookup means "create it"; anything else is an error.
func (c *Client) EnsureLabels(ctx context.Context, labels []string) error {
	for _, name := range labels {
		if name == "" || c.knownLabels[name] {
			continue
		}

		_, resp, err := c.gh.Issues.GetLabel(ctx, c.owner, c.repo, name)
		if err == nil {
			c.knownLabels[name] = true
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("checking label %q: %w", name, err)
		}

		_, createResp, err := c.gh.Issues.CreateLabel(ctx, c.owner, c.repo, &gh.Label{
			Name:  gh.String(name),
			Color: gh.String(labelColor),
		})
		if err != nil {
			// Another writer may have created it between our check and
			// create; a validation failure on an existing name is fine.
			if createResp != nil && createResp.StatusCode == http.StatusUnprocessableEntity {
				c.knownLabels[name] = true
				continue
			}
			return fmt.Errorf("creating label %q: %w", name, err)
		}
		c.knownLabels[name] = true
	}
	return nil
}

// FilterValidAssignees keeps only the logins that can be assigned
// issues in this repository.
func (c *Client) FilterValidAssignees(ctx context.Context, logins []string) ([]string, error) {
	var valid []string
	for _, login := range logins {
		if login == "" {
			continue
		}
		ok, resp, err := c.gh.Issues.IsAssignee(ctx, c.owner, c.repo, login)
		if err != nil && (resp == nil || resp.StatusCode != http.StatusNotFound) {
			return nil, fmt.Errorf("checking assignee %q: %w", login, err)
		}
		if ok {
			valid = append(valid, login)
		}
	}
	return valid, nil
}

// ListIssuesByLabel returns every issue (open and closed) carrying the
// given label, following pagination. Pull requests are excluded.
func (c *Client) ListIssuesByLabel(ctx context.Context, label string) ([]*engine.MirrorIssue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Labels:      []string{label},
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var mirrors []*engine.MirrorIssue
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues with label %q: %w", label, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			mirrors = append(mirrors, toMirror(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return mirrors, nil
}
