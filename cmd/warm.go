package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagWarmLimit int

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Preload recent projects into the cache",
	RunE:  runWarm,
}

func init() {
	warmCmd.Flags().IntVar(&flagWarmLimit, "limit", 0, "Max projects to warm (default from config)")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, _ []string) error {
	svc, cfg, err := newService()
	if err != nil {
		return err
	}

	limit := cfg.Cache.WarmOnStartup
	if flagWarmLimit > 0 {
		limit = flagWarmLimit
	}

	warmed := svc.Warm(cmd.Context(), limit)
	fmt.Printf("  Warmed %d project(s)\n", warmed)
	return nil
}
