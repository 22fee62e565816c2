package engine

import (
	"context"
	"fmt"

	"github.com/steveyegge/bd2gh/internal/render"
	"github.com/steveyegge/bd2gh/internal/state"
)

// BootstrapState rebuilds an identity map from GitHub when no persisted
// state exists: every issue carrying the sync label whose body embeds a
// beads marker becomes a link. Watermarks start at zero, so the next
// diff re-pushes every record once; comment sub-mappings cannot be
// recovered and start empty.
//
// Duplicate markers (two mirror issues claiming the same beads ID) keep
// the lowest issue number and report the rest.
func BootstrapState(ctx context.Context, client Client, baseLabel string) (*state.State, []string, error) {
	mirrors, err := client.ListIssuesByLabel(ctx, baseLabel)
	if err != nil {
		return nil, nil, fmt.Errorf("listing mirrored issues: %w", err)
	}

	st := state.New()
	var warnings []string
	for _, mirror := range mirrors {
		id, ok := render.ExtractMarker(mirror.Body)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("issue #%d has label %q but no beads marker", mirror.Number, baseLabel))
			continue
		}
		if existing := st.Get(id); existing != nil {
			keep, drop := existing.GitHubIssueNumber, mirror.Number
			if drop < keep {
				keep, drop = drop, keep
				st.Set(id, &state.Link{
					GitHubIssueNumber: mirror.Number,
					GitHubNodeID:      mirror.NodeID,
					Comments:          make(map[string]state.CommentLink),
				})
			}
			warnings = append(warnings, fmt.Sprintf("beads issue %s is claimed by #%d and #%d; keeping #%d", id, keep, drop, keep))
			continue
		}
		st.Set(id, &state.Link{
			GitHubIssueNumber: mirror.Number,
			GitHubNodeID:      mirror.NodeID,
			Comments:          make(map[string]state.CommentLink),
		})
	}
	return st, warnings, nil
}
