// Package cmd implements the agentlens CLI commands.
package cmd

import (
	"fmt"

	"github.com/theirongolddev/agentlens/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	if cfg.General.ClaudeDir != "" {
		fmt.Printf("    Claude directory: %s\n", cfg.General.ClaudeDir)
	}
	if cfg.General.CodexDir != "" {
		fmt.Printf("    Codex directory:  %s\n", cfg.General.CodexDir)
	}
	fmt.Printf("    Timezone offset:  %d min\n", cfg.General.TimezoneOffsetMinutes)
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    Directory:        %s\n", cfg.CacheDir())
	fmt.Printf("    Max projects:     %d\n", cfg.Cache.MaxProjects)
	fmt.Printf("    Max MB/project:   %d\n", cfg.Cache.MaxMBPerProject)
	fmt.Printf("    Warm on startup:  %d\n", cfg.Cache.WarmOnStartup)
	fmt.Printf("    Backfill limit:   %d\n", cfg.Cache.BackfillLimit)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address: %s\n", cfg.Server.Addr)
	fmt.Println()

	return nil
}
