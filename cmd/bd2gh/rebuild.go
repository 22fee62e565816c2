package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/bd2gh/internal/engine"
	"github.com/steveyegge/bd2gh/internal/github"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the mapping state from GitHub",
	Long: `Rebuild the mapping state file from GitHub when it is lost.

Lists every issue carrying the sync label and recovers the beads ID
from the marker embedded in each issue body. Recovered mappings have no
sync watermark, so the next 'bd2gh sync' re-pushes every issue's
current content once; comment mappings cannot be recovered, so
previously synced comments will be duplicated unless the state file is
restored from backup instead.

Refuses to overwrite an existing state file without --force.`,
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().String("state", "", "Path to the mapping state file")
	rebuildCmd.Flags().String("label", "", "Base label for mirrored issues")
	rebuildCmd.Flags().Bool("force", false, "Overwrite an existing state file")

	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.validateGitHub(); err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(cfg.StatePath); err == nil && !force {
		return fmt.Errorf("state file %s already exists (use --force to overwrite)", cfg.StatePath)
	}

	client := github.New(cfg.Token, cfg.Owner, cfg.Repo)

	fmt.Printf("→ Listing issues labeled %q in %s/%s...\n", cfg.Label, cfg.Owner, cfg.Repo)
	st, warnings, err := engine.BootstrapState(rootCtx, client, cfg.Label)
	if err != nil {
		return err
	}

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	if err := st.Save(cfg.StatePath); err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(map[string]interface{}{
			"mapped_issues": len(st.IDs()),
			"warnings":      warnings,
			"state":         cfg.StatePath,
		})
		return nil
	}

	fmt.Printf("✓ Rebuilt state with %d mapping(s) -> %s\n", len(st.IDs()), cfg.StatePath)
	if len(st.IDs()) > 0 {
		fmt.Println("\nNote: recovered mappings have no watermark; the next sync")
		fmt.Println("re-pushes each issue's content once.")
	}
	return nil
}
