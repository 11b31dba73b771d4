package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/db"
	"github.com/chriserin/ftgen/internal/ui"
)

var csvFlag bool

var stubsCmd = &cobra.Command{
	Use:   "stubs",
	Short: "List unimplemented steps from the latest run",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunStubs(cmd.Context(), cmd.OutOrStdout(), cfg, csvFlag)
	},
}

func init() {
	stubsCmd.Flags().BoolVar(&csvFlag, "csv", false, "write CSV instead of a table")
	rootCmd.AddCommand(stubsCmd)
}

func RunStubs(ctx context.Context, w io.Writer, c *config.Config, asCSV bool) error {
	sqlDB, err := openHistory(c)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	stubs, err := db.LatestStubs(ctx, sqlDB)
	if err != nil {
		return err
	}

	if asCSV {
		if err := gocsv.Marshal(&stubs, w); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		return nil
	}

	if len(stubs) == 0 {
		fmt.Fprintln(w, "no unimplemented steps")
		return nil
	}
	rows := make([][]string, 0, len(stubs))
	for _, s := range stubs {
		rows = append(rows, []string{s.Feature, s.Keyword + " " + s.Text, s.Method})
	}
	ui.Table(w, []string{"FEATURE", "STEP", "METHOD"}, rows)
	return nil
}

// openHistory opens the configured history database, which must already
// exist.
func openHistory(c *config.Config) (*sql.DB, error) {
	if c.History == "" {
		return nil, fmt.Errorf("history is disabled: set history in %s or run `ftgen init`", config.FileName)
	}
	if _, err := os.Stat(c.History); os.IsNotExist(err) {
		return nil, fmt.Errorf("no history at %s: run `ftgen generate` first", c.History)
	}
	return db.Open(c.History)
}
