package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chriserin/ftgen/internal/catalog"
	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/match"
	"github.com/chriserin/ftgen/internal/ui"
)

var checkFlag bool

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List discovered step definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunSteps(cmd.Context(), cmd.OutOrStdout(), cfg, log, checkFlag)
	},
}

func init() {
	stepsCmd.Flags().BoolVar(&checkFlag, "check", false, "report definitions shadowed by earlier ones and fail if any")
	rootCmd.AddCommand(stepsCmd)
}

func RunSteps(ctx context.Context, w io.Writer, c *config.Config, log logrus.FieldLogger, check bool) error {
	extractors, err := catalog.Extractors(c.Sources)
	if err != nil {
		return err
	}
	cat, err := catalog.Build(ctx, log, c.Steps, extractors...)
	if err != nil {
		return err
	}

	if !check {
		var rows [][]string
		for _, d := range cat.Definitions() {
			rows = append(rows, []string{d.Keyword, d.Pattern, d.Owner + "." + d.Method, d.Source})
		}
		if len(rows) > 0 {
			ui.Table(w, []string{"KEYWORD", "PATTERN", "METHOD", "SOURCE"}, rows)
		}
		fmt.Fprintf(w, "%d step definitions\n", cat.Len())
		return nil
	}

	conflicts := match.New(cat).Conflicts(cat)
	for _, cf := range conflicts {
		ui.WarnLine(w, fmt.Sprintf("%s %q (%s) is shadowed by %q (%s)",
			cf.Def.Keyword, cf.Def.Pattern, cf.Def.Source, cf.Winner.Pattern, cf.Winner.Source))
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%d shadowed step definitions", len(conflicts))
	}
	fmt.Fprintf(w, "%d step definitions, no conflicts\n", cat.Len())
	return nil
}
