package cmd

import (
	"context"
	"fmt"

	"github.com/theirongolddev/agentlens/internal/cli"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Cross-project usage summary",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	svc, cfg, err := newService()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if cmd != nil {
		ctx = cmd.Context()
	}

	projects := svc.Projects()
	if len(projects) == 0 {
		fmt.Println("\n  No session logs found.")
		fmt.Println("  Use a coding agent first, then come back!")
		return nil
	}

	// Make sure the busiest projects contribute before aggregating.
	svc.Warm(ctx, cfg.Cache.WarmOnStartup)
	svc.ProcessUncached(ctx, cfg.Cache.BackfillLimit)

	summary, err := svc.GlobalSummary(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("AGENT USAGE  Last 30d"))
	fmt.Println()

	rows := [][]string{
		{"Projects", cli.FormatNumber(int64(summary.TotalProjects))},
		{"Commands", cli.FormatNumber(int64(summary.TotalCommands))},
		{"---"},
		{"Input Tokens", cli.FormatTokens(summary.TotalInputTokens)},
		{"Output Tokens", cli.FormatTokens(summary.TotalOutputTokens)},
		{"Cache Write", cli.FormatTokens(summary.TotalCacheWriteTokens)},
		{"Cache Read", cli.FormatTokens(summary.TotalCacheReadTokens)},
		{"---"},
		{"Cost (est)", cli.FormatCost(summary.TotalCost)},
	}
	if summary.FirstUseDate != "" {
		rows = append(rows, []string{"First Use", summary.FirstUseDate[:10]})
	}
	if summary.LastUseDate != "" {
		rows = append(rows, []string{"Last Use", summary.LastUseDate[:10]})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	// 30-day token trend
	values := make([]float64, 0, len(summary.DailyTokenUsage))
	for _, day := range summary.DailyTokenUsage {
		values = append(values, float64(day.Input+day.Output))
	}
	fmt.Println()
	fmt.Printf("  Tokens/day  %s\n", cli.RenderSparkline(values))

	costs := make([]float64, 0, len(summary.DailyCosts))
	for _, day := range summary.DailyCosts {
		costs = append(costs, day.Cost)
	}
	fmt.Printf("  Cost/day    %s\n", cli.RenderSparkline(costs))
	fmt.Println()

	return nil
}
