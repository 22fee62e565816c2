// Package types defines the beads data structures bd2gh reads from a
// JSONL export or a beads database. Only the fields relevant to GitHub
// mirroring are carried; bd's agent/molecule/gate fields are ignored by
// the JSON decoder.
package types

import (
	"fmt"
	"strconv"
	"time"
)

// Issue is one beads work item as it appears in a JSONL export line.
type Issue struct {
	// ===== Core Identification =====
	ID string `json:"id"`

	// ===== Issue Content =====
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Design             string `json:"design,omitempty"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty"`
	Notes              string `json:"notes,omitempty"`

	// ===== Status & Workflow =====
	Status    Status    `json:"status,omitempty"`
	Priority  int       `json:"priority"` // No omitempty: 0 is valid (P0/critical)
	IssueType IssueType `json:"issue_type,omitempty"`

	// ===== Assignment =====
	Assignee string `json:"assignee,omitempty"`

	// ===== Timestamps =====
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`

	// ===== External Integration =====
	ExternalRef *string `json:"external_ref,omitempty"` // e.g., "gh-9", "jira-ABC"

	// ===== Relational Data =====
	Labels       []string      `json:"labels,omitempty"`
	Dependencies []*Dependency `json:"dependencies,omitempty"`
	Comments     []*Comment    `json:"comments,omitempty"`
}

// IsClosed reports whether the issue is in the closed status.
func (i *Issue) IsClosed() bool {
	return i.Status == StatusClosed
}

// Validate checks that the issue carries the fields a sync run depends on.
// Records failing validation are excluded from the snapshot, not fixed up.
func (i *Issue) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("id is required")
	}
	if i.Title == "" {
		return fmt.Errorf("title is required")
	}
	if i.Priority < 0 || i.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", i.Priority)
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", i.Status)
	}
	if i.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if i.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// SetDefaults applies default values for fields omitted during JSONL import.
// Call this after json.Unmarshal:
//   - Status: defaults to StatusOpen if empty
//   - IssueType: defaults to TypeTask if empty
//
// Priority 0 is a valid value (P0), so an omitted priority cannot be
// distinguished from an explicit P0 and is left alone.
func (i *Issue) SetDefaults() {
	if i.Status == "" {
		i.Status = StatusOpen
	}
	if i.IssueType == "" {
		i.IssueType = TypeTask
	}
}

// Status represents the current state of an issue
type Status string

// Issue status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// IssueType categorizes the kind of work
type IssueType string

// Core work type constants
const (
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeTask    IssueType = "task"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// IsValid checks if the issue type is a core work type.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask, TypeEpic, TypeChore:
		return true
	}
	return false
}

// Dependency represents a relationship between issues
type Dependency struct {
	IssueID     string         `json:"issue_id,omitempty"`
	DependsOnID string         `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
}

// DependencyType categorizes the relationship
type DependencyType string

// Dependency type constants
const (
	DepBlocks      DependencyType = "blocks"
	DepBlockedBy   DependencyType = "blocked-by"
	DepRelatesTo   DependencyType = "relates-to"
	DepParentChild DependencyType = "parent-child"
)

// Comment represents a comment on an issue
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id,omitempty"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the comment's identity-map key. Comment IDs are unique
// within their parent issue, and the state file keys comment mappings
// by this string form.
func (c *Comment) Key() string {
	return strconv.FormatInt(c.ID, 10)
}
