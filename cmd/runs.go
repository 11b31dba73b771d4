package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/db"
	"github.com/chriserin/ftgen/internal/ui"
)

var limitFlag int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded generation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunRuns(cmd.Context(), cmd.OutOrStdout(), cfg, limitFlag)
	},
}

func init() {
	runsCmd.Flags().IntVarP(&limitFlag, "limit", "n", 10, "number of runs to show (0 for all)")
	rootCmd.AddCommand(runsCmd)
}

func RunRuns(ctx context.Context, w io.Writer, c *config.Config, limit int) error {
	sqlDB, err := openHistory(c)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	runs, err := db.Runs(ctx, sqlDB, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Template,
			strconv.Itoa(r.Definitions),
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Warnings),
		})
	}
	ui.Table(w, []string{"ID", "STARTED", "TEMPLATE", "STEPS", "FILES", "FAILED", "WARNINGS"}, rows)
	return nil
}
