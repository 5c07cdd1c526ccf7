package cmd

import (
	"fmt"

	"github.com/theirongolddev/agentlens/internal/cli"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show cache status",
	RunE:  runCacheStatus,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [project]",
	Short: "Clear cached data for one project or all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStatus(_ *cobra.Command, _ []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	status := svc.CacheStatus()

	fmt.Println()
	fmt.Printf("  Memory: %d/%d projects, %.1f MB\n",
		status.Memory.ProjectsCached,
		status.Memory.MaxProjects,
		status.Memory.TotalSizeMB,
	)

	rows := make([][]string, 0, len(status.Disk))
	for slug, info := range status.Disk {
		state := "—"
		if info.Cached {
			state = "fresh"
			if info.HasChanges {
				state = "stale"
			}
		}
		mem := "—"
		if m, ok := status.MemoryEntries[slug]; ok {
			mem = fmt.Sprintf("%.1f MB", m.SizeMB)
		}
		rows = append(rows, []string{
			truncate(slug, 32),
			state,
			mem,
			cli.FormatNumber(int64(info.FileCount)),
			info.CachedAt,
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Disk",
		Headers: []string{"Project", "State", "Memory", "Files", "Cached At"},
		Rows:    rows,
	}))

	return nil
}

func runCacheClear(_ *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		logPath, ok := svc.ResolveSlug(args[0])
		if !ok {
			return fmt.Errorf("unknown project %q", args[0])
		}
		if err := svc.Invalidate(logPath); err != nil {
			return err
		}
		fmt.Printf("  Cleared cache for %s\n", args[0])
		return nil
	}

	for _, p := range svc.Projects() {
		if err := svc.Invalidate(p.LogPath); err != nil {
			return err
		}
	}
	fmt.Println("  Cleared all cached projects")
	return nil
}
