package cmd

import (
	"os"

	"github.com/theirongolddev/agentlens/internal/config"
	"github.com/theirongolddev/agentlens/internal/service"
	"github.com/theirongolddev/agentlens/internal/source"

	"github.com/spf13/cobra"
)

var (
	flagClaudeDir string
	flagCodexDir  string
	flagCacheDir  string
	flagTzOffset  int
)

var rootCmd = &cobra.Command{
	Use:   "agentlens",
	Short: "Coding-agent log analytics",
	Long:  "Analyze Claude Code and Codex session logs: tokens, costs, tools, and interaction patterns.",
	RunE:  runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagClaudeDir, "claude-dir", "", "Claude Code projects directory")
	rootCmd.PersistentFlags().StringVar(&flagCodexDir, "codex-dir", "", "Codex sessions directory")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "Cache directory")
	rootCmd.PersistentFlags().IntVar(&flagTzOffset, "tz-offset", 0, "Timezone offset in minutes for daily/hourly buckets")
}

// newService builds the service from the config file with flag overrides.
func newService() (*service.Service, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}

	if flagClaudeDir != "" {
		cfg.General.ClaudeDir = flagClaudeDir
	}
	if flagCodexDir != "" {
		cfg.General.CodexDir = flagCodexDir
	}
	if flagCacheDir != "" {
		cfg.Cache.Dir = flagCacheDir
	}
	if flagTzOffset != 0 {
		cfg.General.TimezoneOffsetMinutes = flagTzOffset
	}

	locator := source.DefaultLocator()
	if cfg.General.ClaudeDir != "" {
		locator.ClaudeBase = cfg.General.ClaudeDir
	}
	if cfg.General.CodexDir != "" {
		locator.CodexBase = cfg.General.CodexDir
	}

	svc := service.New(service.Options{
		Locator:         locator,
		CacheDir:        cfg.CacheDir(),
		MaxProjects:     cfg.Cache.MaxProjects,
		MaxMBPerProject: cfg.Cache.MaxMBPerProject,
		TimezoneOffset:  cfg.General.TimezoneOffsetMinutes,
	})
	return svc, cfg, nil
}
