package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/agentlens/internal/cli"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List known projects",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(_ *cobra.Command, _ []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	projects := svc.Projects()
	if len(projects) == 0 {
		fmt.Println("\n  No session logs found.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("PROJECTS"))
	fmt.Println()

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		age := "never"
		if !p.LastModified.IsZero() {
			age = cli.FormatDuration(int64(time.Since(p.LastModified).Seconds())) + " ago"
		}
		rows = append(rows, []string{
			truncate(p.DisplayName, 28),
			p.Provider,
			cli.FormatNumber(int64(p.FileCount)),
			fmt.Sprintf("%.1f MB", p.TotalSizeMB),
			age,
			svc.Slug(p.LogPath),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Project", "Provider", "Files", "Size", "Last Active", "Slug"},
		Rows:    rows,
	}))

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
