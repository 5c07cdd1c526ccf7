package cmd

import (
	"fmt"
	"sort"

	"github.com/theirongolddev/agentlens/internal/cli"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <project>",
	Short: "Detailed statistics for one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, _, err := newService()
	if err != nil {
		return err
	}

	logPath, ok := svc.ResolveSlug(args[0])
	if !ok {
		return fmt.Errorf("unknown project %q (try `agentlens projects`)", args[0])
	}

	result, err := svc.LoadOrBuild(cmd.Context(), logPath)
	if err != nil {
		return err
	}
	doc := result.Stats

	fmt.Println()
	fmt.Println(cli.RenderTitle(doc.Overview.ProjectName))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Messages", cli.FormatNumber(int64(doc.Overview.TotalMessages))},
			{"Sessions", cli.FormatNumber(int64(doc.Overview.Sessions))},
			{"Commands", cli.FormatNumber(int64(doc.UserInteractions.UserCommandsAnalyzed))},
			{"---"},
			{"Input Tokens", cli.FormatTokens(doc.Overview.TotalTokens.Input)},
			{"Output Tokens", cli.FormatTokens(doc.Overview.TotalTokens.Output)},
			{"Cache Write", cli.FormatTokens(doc.Overview.TotalTokens.CacheCreation)},
			{"Cache Read", cli.FormatTokens(doc.Overview.TotalTokens.CacheRead)},
			{"Cache Hit Rate", cli.FormatRate(doc.Cache.HitRate)},
			{"---"},
			{"Cost (est)", cli.FormatCost(doc.Overview.TotalCost)},
			{"Interruption Rate", cli.FormatRate(doc.UserInteractions.InterruptionRate)},
			{"Error Rate", cli.FormatPercent(doc.Errors.Rate)},
		},
	}))

	// Tool usage, busiest first
	if len(doc.Tools.UsageCounts) > 0 {
		type toolRow struct {
			name  string
			count int
		}
		tools := make([]toolRow, 0, len(doc.Tools.UsageCounts))
		for name, count := range doc.Tools.UsageCounts {
			tools = append(tools, toolRow{name, count})
		}
		sort.Slice(tools, func(i, j int) bool {
			if tools[i].count != tools[j].count {
				return tools[i].count > tools[j].count
			}
			return tools[i].name < tools[j].name
		})
		if len(tools) > 10 {
			tools = tools[:10]
		}

		fmt.Println()
		maxCount := float64(tools[0].count)
		for _, t := range tools {
			fmt.Printf("  %-14s %6s %s\n",
				truncate(t.name, 14),
				cli.FormatNumber(int64(t.count)),
				cli.RenderHorizontalBar(t.name, float64(t.count), maxCount, 24),
			)
		}
	}

	// Error categories
	if doc.Errors.Total > 0 {
		categories := make([]string, 0, len(doc.Errors.ByCategory))
		for name := range doc.Errors.ByCategory {
			categories = append(categories, name)
		}
		sort.Slice(categories, func(i, j int) bool {
			return doc.Errors.ByCategory[categories[i]] > doc.Errors.ByCategory[categories[j]]
		})

		rows := make([][]string, 0, len(categories))
		for _, name := range categories {
			rows = append(rows, []string{name, cli.FormatNumber(int64(doc.Errors.ByCategory[name]))})
		}

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Errors",
			Headers: []string{"Category", "Count"},
			Rows:    rows,
		}))
	}

	return nil
}
