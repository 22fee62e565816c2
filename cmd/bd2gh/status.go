package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/bd2gh/internal/engine"
	"github.com/steveyegge/bd2gh/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show the current sync status:
  - Configured repository and last full sync
  - Mapped and unmapped issue counts
  - Pending actions a sync run would apply (computed locally, no
    GitHub calls)`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("input", "", "Path to beads JSONL export")
	statusCmd.Flags().String("db", "", "Read snapshot from a beads SQLite database instead of JSONL")
	statusCmd.Flags().String("state", "", "Path to the mapping state file")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := state.Load(cfg.StatePath)
	if err != nil {
		return err
	}

	issues, skipped, err := loadSnapshot(rootCtx, cfg)
	if err != nil {
		return err
	}

	diff := engine.Diff(issues, st)

	pending := map[engine.ActionType]int{}
	for _, a := range diff.Actions {
		pending[a.Type]++
	}

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"repository":       fmt.Sprintf("%s/%s", cfg.Owner, cfg.Repo),
			"configured":       cfg.Token != "" && cfg.Owner != "" && cfg.Repo != "",
			"last_full_sync":   st.SyncMetadata.LastFullSync,
			"snapshot_issues":  len(issues),
			"invalid_lines":    skipped,
			"mapped_issues":    len(st.IDs()),
			"pending_creates":  pending[engine.ActionCreate],
			"pending_updates":  pending[engine.ActionUpdate],
			"pending_closes":   pending[engine.ActionClose],
			"pending_adopts":   pending[engine.ActionAdopt],
			"pending_comments": len(diff.CommentActions),
			"deleted_ids":      diff.DeletedIDs,
		})
		return nil
	}

	fmt.Println("bd2gh Sync Status")
	fmt.Println("=================")
	fmt.Println()

	if cfg.Owner == "" || cfg.Repo == "" {
		fmt.Println("Status: Not configured")
		fmt.Println()
		fmt.Println("Set github.owner and github.repo in .bd2gh.yaml,")
		fmt.Println("and github.token (or export GITHUB_TOKEN).")
		return nil
	}

	fmt.Printf("Repository:   %s/%s\n", cfg.Owner, cfg.Repo)
	if cfg.Token != "" {
		fmt.Printf("Token:        %s\n", maskToken(cfg.Token))
	} else {
		fmt.Println("Token:        Not set")
	}
	if st.SyncMetadata.LastFullSync.IsZero() {
		fmt.Println("Last Sync:    Never")
	} else {
		fmt.Printf("Last Sync:    %s\n", st.SyncMetadata.LastFullSync.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println()
	fmt.Printf("Snapshot:     %d issue(s)", len(issues))
	if skipped > 0 {
		fmt.Printf(" (%d invalid line(s) skipped)", skipped)
	}
	fmt.Println()
	fmt.Printf("Mapped:       %d issue(s)\n", len(st.IDs()))

	if diff.Empty() {
		fmt.Println("\n✓ Mirror is up to date")
		return nil
	}

	fmt.Println("\nPending:")
	for _, kind := range []engine.ActionType{engine.ActionCreate, engine.ActionUpdate, engine.ActionClose, engine.ActionAdopt} {
		if pending[kind] > 0 {
			fmt.Printf("  %-8s %d\n", kind, pending[kind])
		}
	}
	if len(diff.CommentActions) > 0 {
		fmt.Printf("  %-8s %d\n", "comments", len(diff.CommentActions))
	}
	if len(diff.DeletedIDs) > 0 {
		fmt.Printf("  deleted  %d (close with 'bd2gh sync --close-deleted')\n", len(diff.DeletedIDs))
	}
	fmt.Fprintln(os.Stdout, "\nRun 'bd2gh sync' to apply.")
	return nil
}
