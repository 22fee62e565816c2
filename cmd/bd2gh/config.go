package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the resolved process configuration. Precedence: flags >
// BD2GH_* environment variables > config file > defaults.
type Config struct {
	Token        string
	Owner        string
	Repo         string
	Input        string
	DBPath       string
	StatePath    string
	Label        string
	CloseDeleted bool
	CheckReopens bool
}

// loadConfig reads .bd2gh.yaml (or --config) and the environment into a
// Config. Flags registered on cmd override both when set.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		v.SetConfigName(".bd2gh")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; anything else is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading .bd2gh.yaml: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BD2GH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("sync.label", "beads")
	v.SetDefault("input", ".beads/issues.jsonl")
	v.SetDefault("state", ".beads/bd2gh-state.json")

	cfg := &Config{
		Token:        v.GetString("github.token"),
		Owner:        v.GetString("github.owner"),
		Repo:         v.GetString("github.repo"),
		Input:        v.GetString("input"),
		StatePath:    v.GetString("state"),
		Label:        v.GetString("sync.label"),
		CloseDeleted: v.GetBool("sync.close_deleted"),
		CheckReopens: v.GetBool("sync.check_reopens"),
	}

	// GITHUB_TOKEN is honored without the BD2GH_ prefix so the standard
	// CI variable works untouched.
	if cfg.Token == "" {
		cfg.Token = os.Getenv("GITHUB_TOKEN")
	}

	applyStringFlag(cmd, "input", &cfg.Input)
	applyStringFlag(cmd, "db", &cfg.DBPath)
	applyStringFlag(cmd, "state", &cfg.StatePath)
	applyStringFlag(cmd, "label", &cfg.Label)
	applyBoolFlag(cmd, "close-deleted", &cfg.CloseDeleted)
	applyBoolFlag(cmd, "check-reopens", &cfg.CheckReopens)

	return cfg, nil
}

// validateGitHub checks the fields every GitHub-touching command needs.
func (c *Config) validateGitHub() error {
	if c.Token == "" {
		return fmt.Errorf("GitHub token not configured\nSet github.token in .bd2gh.yaml or export GITHUB_TOKEN")
	}
	if c.Owner == "" || c.Repo == "" {
		return fmt.Errorf("GitHub repository not configured\nSet github.owner and github.repo in .bd2gh.yaml")
	}
	return nil
}

func applyStringFlag(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}

func applyBoolFlag(cmd *cobra.Command, name string, dst *bool) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String() == "true"
	}
}

// maskToken returns a masked token for display: first 4 and last 4
// characters with dots in between.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
