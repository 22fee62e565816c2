// bd2gh mirrors a beads issue database one-way into GitHub Issues.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	jsonOutput bool
	rootCtx    context.Context
)

var rootCmd = &cobra.Command{
	Use:   "bd2gh",
	Short: "Mirror beads issues to GitHub",
	Long: `bd2gh reconciles a beads issue export against GitHub Issues.

Beads is always authoritative: each run loads a full snapshot of beads
issues, diffs it against the persisted mapping state, and applies the
minimal set of creates, updates, closes, and adoptions to GitHub.
Repeated runs with unchanged data make no GitHub calls.

Configuration (.bd2gh.yaml, or BD2GH_* environment variables):
  github.token         GitHub API token (or GITHUB_TOKEN)
  github.owner         Repository owner
  github.repo          Repository name
  sync.label           Label marking mirrored issues (default: beads)
  sync.close_deleted   Close mirrors of deleted beads issues
  sync.check_reopens   Reopen mirrors closed out-of-band
  input                Path to the beads JSONL export
  state                Path to the mapping state file

Examples:
  bd2gh sync                          # Full reconciliation run
  bd2gh sync --dry-run                # Preview without changes
  bd2gh sync --db .beads/beads.db     # Read straight from the bd database
  bd2gh sync --watch                  # Re-sync whenever the export changes
  bd2gh status                        # Show mapping and pending work
  bd2gh rebuild                       # Rebuild state from GitHub labels`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: .bd2gh.yaml)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the bd2gh version",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			outputJSON(map[string]string{"version": Version})
			return
		}
		fmt.Printf("bd2gh %s\n", Version)
	},
}

// outputJSON writes a value as indented JSON to stdout.
func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON: %v\n", err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
