// Package state holds the persistent identity map between beads issue
// IDs and GitHub issue numbers. The map is loaded once before a sync
// run, mutated in memory by the engine, and written back afterwards;
// nothing in this package talks to GitHub or the beads database.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// CurrentVersion is the state file schema version written by this build.
const CurrentVersion = 1

// Link records the correspondence between one beads issue and one
// GitHub issue. BeadsUpdatedAt is the source issue's updated_at as of
// the last successful sync; staleness detection compares against it.
type Link struct {
	GitHubIssueNumber int       `json:"github_issue_number"`
	GitHubNodeID      string    `json:"github_node_id,omitempty"`
	LastSyncAt        time.Time `json:"last_sync_at"`
	BeadsUpdatedAt    time.Time `json:"beads_updated_at"`

	// AdoptedFromExternalRef marks links bound to a pre-existing GitHub
	// issue (via an external_ref like "gh-42") rather than one bd2gh created.
	AdoptedFromExternalRef bool `json:"adopted_from_external_ref,omitempty"`

	// Comments maps beads comment IDs to the GitHub comments that mirror
	// them. A comment present here is never synced again.
	Comments map[string]CommentLink `json:"comments,omitempty"`
}

// CommentLink records the GitHub comment mirroring one beads comment.
type CommentLink struct {
	GitHubCommentID int64 `json:"github_comment_id"`
}

// SyncMetadata carries run-level bookkeeping.
type SyncMetadata struct {
	LastFullSync time.Time `json:"last_full_sync"`
}

// State is the in-memory form of the state file. At most one Link
// exists per beads ID. The zero value is not usable; construct with
// New or Load.
type State struct {
	Version      int              `json:"version"`
	Mappings     map[string]*Link `json:"mappings"`
	SyncMetadata SyncMetadata     `json:"sync_metadata"`
}

// New returns a fresh empty state at the current version.
func New() *State {
	return &State{
		Version:      CurrentVersion,
		Mappings:     make(map[string]*Link),
		SyncMetadata: SyncMetadata{LastFullSync: time.Now().UTC()},
	}
}

// Get returns the link for a beads ID, or nil if none exists.
func (s *State) Get(id string) *Link {
	return s.Mappings[id]
}

// Set inserts or replaces the link for a beads ID.
func (s *State) Set(id string, link *Link) {
	s.Mappings[id] = link
}

// Remove deletes the link for a beads ID. Removing an unmapped ID is a no-op.
func (s *State) Remove(id string) {
	delete(s.Mappings, id)
}

// IDs returns all mapped beads IDs in sorted order.
func (s *State) IDs() []string {
	ids := make([]string, 0, len(s.Mappings))
	for id := range s.Mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CommentLink returns the GitHub comment ID mirroring the given beads
// comment, if one is recorded.
func (s *State) CommentLink(id, commentKey string) (int64, bool) {
	link := s.Mappings[id]
	if link == nil {
		return 0, false
	}
	cl, ok := link.Comments[commentKey]
	return cl.GitHubCommentID, ok
}

// SetCommentLink records the GitHub comment mirroring a beads comment.
// It fails if the parent issue has no link; a dangling comment mapping
// must never be created silently.
func (s *State) SetCommentLink(id, commentKey string, githubCommentID int64) error {
	link := s.Mappings[id]
	if link == nil {
		return fmt.Errorf("no mapping exists for issue %s", id)
	}
	if link.Comments == nil {
		link.Comments = make(map[string]CommentLink)
	}
	link.Comments[commentKey] = CommentLink{GitHubCommentID: githubCommentID}
	return nil
}

// TouchFullSync records the completion of a full non-dry-run invocation.
func (s *State) TouchFullSync(t time.Time) {
	s.SyncMetadata.LastFullSync = t.UTC()
}

// Parse decodes state file content. Empty (or whitespace-only) content
// yields a fresh empty state; malformed non-empty content is an error,
// never a silent fallback to an empty map. Syncing against a half-read
// map would re-create every issue.
func Parse(data []byte) (*State, error) {
	if isBlank(data) {
		return New(), nil
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if st.Version < 1 {
		return nil, fmt.Errorf("state file missing version (got %d)", st.Version)
	}
	if st.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d (upgrade bd2gh)", st.Version, CurrentVersion)
	}
	if st.Mappings == nil {
		st.Mappings = make(map[string]*Link)
	}
	return &st, nil
}

// Load reads the state file at path. A missing file yields a fresh
// empty state, matching the first-run experience.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from config/flags
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	st, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// Marshal renders the state in its persisted JSON form.
func (s *State) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing state: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes the state file atomically (temp file + rename) so a
// crash mid-write never leaves a truncated map behind.
func (s *State) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 - state file is not sensitive
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

func isBlank(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
