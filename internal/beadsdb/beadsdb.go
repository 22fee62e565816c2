// Package beadsdb loads a sync snapshot directly from a beads SQLite
// database, as an alternative to reading the JSONL export. The database
// is opened read-only; bd owns all writes.
package beadsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/bd2gh/internal/types"
)

// syncStatuses are the bd statuses the mirror understands. Rows in
// other statuses (tombstone, deferred, pinned, ...) are not part of the
// snapshot, matching what a filtered bd export would contain.
const syncStatuses = `('open', 'in_progress', 'blocked', 'closed')`

// LoadSnapshot reads all mirrorable issues, with their labels,
// dependencies, and comments, ordered by issue ID for deterministic
// diff output.
func LoadSnapshot(ctx context.Context, dbPath string) ([]*types.Issue, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening beads database: %w", err)
	}
	defer func() { _ = db.Close() }()

	issues, err := loadIssues(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return issues, nil
	}

	byID := make(map[string]*types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	if err := loadLabels(ctx, db, byID); err != nil {
		return nil, err
	}
	if err := loadDependencies(ctx, db, byID); err != nil {
		return nil, err
	}
	if err := loadComments(ctx, db, byID); err != nil {
		return nil, err
	}

	return issues, nil
}

func loadIssues(ctx context.Context, db *sql.DB) ([]*types.Issue, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, description, design, acceptance_criteria, notes,
		       status, priority, issue_type, assignee,
		       created_at, updated_at, closed_at, close_reason, external_ref
		FROM issues
		WHERE status IN `+syncStatuses+`
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*types.Issue
	for rows.Next() {
		var issue types.Issue
		var description, design, acceptance, notes sql.NullString
		var assignee, closeReason, externalRef sql.NullString
		var createdAt, updatedAt string
		var closedAt sql.NullString

		if err := rows.Scan(
			&issue.ID, &issue.Title, &description, &design, &acceptance, &notes,
			&issue.Status, &issue.Priority, &issue.IssueType, &assignee,
			&createdAt, &updatedAt, &closedAt, &closeReason, &externalRef,
		); err != nil {
			return nil, fmt.Errorf("scanning issue row: %w", err)
		}

		issue.Description = description.String
		issue.Design = design.String
		issue.AcceptanceCriteria = acceptance.String
		issue.Notes = notes.String
		issue.Assignee = assignee.String
		issue.CloseReason = closeReason.String
		if externalRef.Valid && externalRef.String != "" {
			ref := externalRef.String
			issue.ExternalRef = &ref
		}
		issue.CreatedAt = parseTimeString(createdAt)
		issue.UpdatedAt = parseTimeString(updatedAt)
		if closedAt.Valid {
			if t := parseTimeString(closedAt.String); !t.IsZero() {
				issue.ClosedAt = &t
			}
		}

		issue.SetDefaults()
		issues = append(issues, &issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating issues: %w", err)
	}
	return issues, nil
}

func loadLabels(ctx context.Context, db *sql.DB, byID map[string]*types.Issue) error {
	rows, err := db.QueryContext(ctx, `SELECT issue_id, label FROM labels ORDER BY issue_id, label`)
	if err != nil {
		return fmt.Errorf("querying labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issueID, label string
		if err := rows.Scan(&issueID, &label); err != nil {
			return fmt.Errorf("scanning label row: %w", err)
		}
		if issue, ok := byID[issueID]; ok {
			issue.Labels = append(issue.Labels, label)
		}
	}
	return rows.Err()
}

func loadDependencies(ctx context.Context, db *sql.DB, byID map[string]*types.Issue) error {
	rows, err := db.QueryContext(ctx, `
		SELECT issue_id, depends_on_id, type
		FROM dependencies
		ORDER BY issue_id, depends_on_id
	`)
	if err != nil {
		return fmt.Errorf("querying dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var dep types.Dependency
		if err := rows.Scan(&dep.IssueID, &dep.DependsOnID, &dep.Type); err != nil {
			return fmt.Errorf("scanning dependency row: %w", err)
		}
		if issue, ok := byID[dep.IssueID]; ok {
			d := dep
			issue.Dependencies = append(issue.Dependencies, &d)
		}
	}
	return rows.Err()
}

func loadComments(ctx context.Context, db *sql.DB, byID map[string]*types.Issue) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, issue_id, author, text, created_at
		FROM comments
		ORDER BY issue_id, id
	`)
	if err != nil {
		return fmt.Errorf("querying comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c types.Comment
		var author sql.NullString
		var createdAt string
		if err := rows.Scan(&c.ID, &c.IssueID, &author, &c.Text, &createdAt); err != nil {
			return fmt.Errorf("scanning comment row: %w", err)
		}
		c.Author = author.String
		c.CreatedAt = parseTimeString(createdAt)
		if issue, ok := byID[c.IssueID]; ok {
			cc := c
			issue.Comments = append(issue.Comments, &cc)
		}
	}
	return rows.Err()
}

// parseTimeString parses a timestamp from a TEXT column. The
// ncruces/go-sqlite3 driver only auto-converts TEXT to time.Time for
// columns declared as DATETIME, and bd stores timestamps as TEXT.
func parseTimeString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
