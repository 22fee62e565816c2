package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/steveyegge/bd2gh/internal/beadsdb"
	"github.com/steveyegge/bd2gh/internal/engine"
	"github.com/steveyegge/bd2gh/internal/github"
	"github.com/steveyegge/bd2gh/internal/jsonl"
	"github.com/steveyegge/bd2gh/internal/state"
	"github.com/steveyegge/bd2gh/internal/types"
)

// massCloseThreshold is the number of deletion closures above which an
// interactive run asks for confirmation.
const massCloseThreshold = 5

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile beads issues against GitHub",
	Long: `Reconcile the beads snapshot against GitHub Issues.

Loads the snapshot (JSONL export by default, or the bd database with
--db), diffs it against the mapping state, and applies the resulting
actions to GitHub one at a time. A failed action is reported and
skipped; it never aborts the run. The state file is updated after every
successful mutation and written back at the end.

Deleted beads issues (mapped but absent from the snapshot) are reported
by default; --close-deleted closes their mirrors and drops the mapping.

Examples:
  bd2gh sync                       # Reconcile from the JSONL export
  bd2gh sync --dry-run             # Preview actions without changes
  bd2gh sync --db .beads/beads.db  # Read the bd database directly
  bd2gh sync --close-deleted --yes # Also close deleted mirrors
  bd2gh sync --watch               # Keep syncing on export changes`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("input", "", "Path to beads JSONL export")
	syncCmd.Flags().String("db", "", "Read snapshot from a beads SQLite database instead of JSONL")
	syncCmd.Flags().String("state", "", "Path to the mapping state file")
	syncCmd.Flags().String("label", "", "Base label for mirrored issues")
	syncCmd.Flags().Bool("dry-run", false, "Preview sync without making changes")
	syncCmd.Flags().Bool("close-deleted", false, "Close mirrors of issues deleted from beads")
	syncCmd.Flags().Bool("check-reopens", false, "Reopen mirrors that were closed out-of-band")
	syncCmd.Flags().Bool("yes", false, "Skip interactive confirmation prompts")
	syncCmd.Flags().Bool("watch", false, "Watch the JSONL export and re-sync on change")
	syncCmd.Flags().Duration("debounce", 2*time.Second, "Quiet period before a watched re-sync")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if !dryRun {
		if err := cfg.validateGitHub(); err != nil {
			return err
		}
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if watch {
		if cfg.DBPath != "" {
			return fmt.Errorf("--watch requires a JSONL input (not --db)")
		}
		debounce, _ := cmd.Flags().GetDuration("debounce")
		return watchAndSync(rootCtx, cmd, cfg, debounce)
	}

	return syncOnce(rootCtx, cmd, cfg)
}

// syncOnce performs one full reconciliation run.
func syncOnce(ctx context.Context, cmd *cobra.Command, cfg *Config) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipConfirm, _ := cmd.Flags().GetBool("yes")

	issues, _, err := loadSnapshot(ctx, cfg)
	if err != nil {
		return err
	}

	st, err := state.Load(cfg.StatePath)
	if err != nil {
		return err
	}

	diff := engine.Diff(issues, st)
	if diff.Empty() {
		// A no-op run is still a completed run; last_full_sync advances
		// so status reports when the mirror was last verified current.
		if !dryRun {
			st.TouchFullSync(time.Now())
			if err := st.Save(cfg.StatePath); err != nil {
				return fmt.Errorf("saving state: %w", err)
			}
		}
		if jsonOutput {
			outputJSON(&engine.Result{DryRun: dryRun})
		} else {
			fmt.Println("✓ Nothing to sync")
		}
		return nil
	}

	if len(diff.DeletedIDs) > 0 {
		if cfg.CloseDeleted {
			if !dryRun && !skipConfirm && len(diff.DeletedIDs) > massCloseThreshold {
				if !confirmMassClose(len(diff.DeletedIDs)) {
					return fmt.Errorf("aborted: %d mirrors would be closed (re-run with --yes to skip this prompt)", len(diff.DeletedIDs))
				}
			}
		} else if !jsonOutput {
			fmt.Printf("→ %d mapped issue(s) missing from snapshot (use --close-deleted to close their mirrors): %s\n",
				len(diff.DeletedIDs), strings.Join(diff.DeletedIDs, ", "))
		}
	}

	var client engine.Client
	if cfg.Token != "" || !dryRun {
		client = github.New(cfg.Token, cfg.Owner, cfg.Repo)
	} else {
		client = nopClient{}
	}

	exec := engine.NewExecutor(client, st, engine.Options{
		DryRun:       dryRun,
		CloseDeleted: cfg.CloseDeleted,
		CheckReopens: cfg.CheckReopens,
		BaseLabel:    cfg.Label,
		Warnings:     os.Stderr,
	})

	if !jsonOutput {
		if dryRun {
			fmt.Printf("→ [DRY RUN] Would apply %d action(s), %d comment(s)\n", len(diff.Actions), len(diff.CommentActions))
		} else {
			fmt.Printf("→ Applying %d action(s), %d comment(s)...\n", len(diff.Actions), len(diff.CommentActions))
		}
	}

	result := exec.Run(ctx, issues, diff)

	if !dryRun {
		st.TouchFullSync(time.Now())
		if err := st.Save(cfg.StatePath); err != nil {
			return fmt.Errorf("sync applied but state could not be saved: %w", err)
		}
	}

	printResult(result)
	return nil
}

// loadSnapshot reads the beads snapshot from the configured source (the
// database when --db is set, the JSONL export otherwise). JSONL line
// diagnostics go to stderr and are returned as a count; they never fail
// the run.
func loadSnapshot(ctx context.Context, cfg *Config) ([]*types.Issue, int, error) {
	if cfg.DBPath != "" {
		issues, err := beadsdb.LoadSnapshot(ctx, cfg.DBPath)
		if err != nil {
			return nil, 0, err
		}
		return issues, 0, nil
	}

	issues, lineErrors, err := jsonl.ReadFile(cfg.Input)
	if err != nil {
		return nil, 0, err
	}
	for _, le := range lineErrors {
		fmt.Fprintf(os.Stderr, "Warning: skipping line %d: %s (%s)\n", le.Line, le.Reason, le.Content)
	}
	return issues, len(lineErrors), nil
}

func printResult(result *engine.Result) {
	if jsonOutput {
		outputJSON(result)
		return
	}

	prefix := "✓ Sync complete:"
	if result.DryRun {
		prefix = "✓ Dry run complete (no changes made):"
	}
	fmt.Printf("%s %d created, %d updated, %d closed, %d adopted", prefix,
		result.Created, result.Updated, result.Closed, result.Adopted)
	if result.Reopened > 0 {
		fmt.Printf(", %d reopened", result.Reopened)
	}
	if result.DeletedClosed > 0 {
		fmt.Printf(", %d deleted-closed", result.DeletedClosed)
	}
	fmt.Printf(", %d comment(s)\n", result.CommentsSynced)

	if len(result.Errors) > 0 {
		fmt.Printf("\n%d action(s) failed:\n", len(result.Errors))
		for _, ae := range result.Errors {
			fmt.Printf("  - %s\n", ae.Error())
		}
	}
}

// confirmMassClose prompts before closing many mirrors at once. Only
// called when stdin is a terminal; non-interactive runs must pass --yes.
func confirmMassClose(count int) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("About to close %d GitHub issue(s) whose beads sources were deleted. Continue? [y/N] ", count)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// nopClient backs --dry-run when no token is configured; the executor
// short-circuits before any call, but the interface still needs a value.
type nopClient struct{}

func (nopClient) CreateIssue(context.Context, engine.IssueRequest) (*engine.MirrorIssue, error) {
	return nil, fmt.Errorf("no GitHub client configured")
}
func (nopClient) UpdateIssue(context.Context, int, engine.IssueRequest) error {
	return fmt.Errorf("no GitHub client configured")
}
func (nopClient) CloseIssue(context.Context, int, string) error {
	return fmt.Errorf("no GitHub client configured")
}
func (nopClient) ReopenIssue(context.Context, int) error {
	return fmt.Errorf("no GitHub client configured")
}
func (nopClient) GetIssue(context.Context, int) (*engine.MirrorIssue, error) {
	return nil, fmt.Errorf("no GitHub client configured")
}
func (nopClient) CreateComment(context.Context, int, string) (int64, error) {
	return 0, fmt.Errorf("no GitHub client configured")
}
func (nopClient) EnsureLabels(context.Context, []string) error {
	return fmt.Errorf("no GitHub client configured")
}
func (nopClient) FilterValidAssignees(context.Context, []string) ([]string, error) {
	return nil, fmt.Errorf("no GitHub client configured")
}
func (nopClient) ListIssuesByLabel(context.Context, string) ([]*engine.MirrorIssue, error) {
	return nil, fmt.Errorf("no GitHub client configured")
}
