package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var escalateCmd = &cobra.Command{
	Use:   "escalate <request-id>",
	Short: "Manually escalate a pending request",
	Long: `Manually escalate a pending request, raising its escalation level and
recording the action in the escalation history. Requires a super role.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		req, err := newHandler(s).ManualEscalate(cmd.Context(), args[0], currentActor(), reason)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(req)
		}
		if !quietFlag {
			fmt.Printf("Request %s escalated to level %d\n", req.ID, req.EscalationLevel)
		}
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Escalate every request pending past the staleness threshold",
	Long: `Scan for requests that have sat pending past the staleness threshold
(escalation_days, default 3) and escalate each one. Failures on individual
requests are reported but do not stop the sweep.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		report, err := newSweeper(s, newHandler(s)).Run(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(report)
		}
		if !quietFlag || report.Failed > 0 {
			fmt.Printf("Sweep: %d scanned, %d escalated, %d failed\n",
				report.Scanned, report.Escalated, report.Failed)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show escalation statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := s.EscalationStats(cmd.Context(), time.Now().UTC())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(stats)
		}
		fmt.Printf("Escalated requests: %d\n", stats.TotalEscalated)
		fmt.Printf("Escalated in last 7 days: %d\n", stats.RecentEscalations)
		if len(stats.ByLevel) > 0 {
			levels := make([]int, 0, len(stats.ByLevel))
			for level := range stats.ByLevel {
				levels = append(levels, level)
			}
			sort.Ints(levels)
			fmt.Println("By level:")
			for _, level := range levels {
				fmt.Printf("  level %d: %d\n", level, stats.ByLevel[level])
			}
		}
		return nil
	},
}

func init() {
	escalateCmd.Flags().String("reason", "", "Why the request is being escalated (default: manual escalation note)")
	rootCmd.AddCommand(escalateCmd, sweepCmd, statsCmd)
}
