package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chriserin/ftgen/internal/catalog"
	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/db"
	"github.com/chriserin/ftgen/internal/generate"
	"github.com/chriserin/ftgen/internal/parser"
	"github.com/chriserin/ftgen/internal/ui"
)

var generateCmd = &cobra.Command{
	Use:   "generate [feature paths...]",
	Short: "Generate test files from feature files",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if len(args) > 0 {
			c.Features = args
		}
		return RunGenerate(cmd.Context(), cmd.OutOrStdout(), &c, log)
	},
}

func init() {
	generateCmd.Flags().Bool("format", true, "gofmt generated Go files")
	generateCmd.Flags().Bool("debug-crif", false, "write a .crif.json snapshot beside each output")
	must(v.BindPFlag("format", generateCmd.Flags().Lookup("format")))
	must(v.BindPFlag("debug_crif", generateCmd.Flags().Lookup("debug-crif")))
	rootCmd.AddCommand(generateCmd)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func RunGenerate(ctx context.Context, w io.Writer, c *config.Config, log logrus.FieldLogger) error {
	extractors, err := catalog.Extractors(c.Sources)
	if err != nil {
		return err
	}
	p, err := parser.New(c.Parser)
	if err != nil {
		return err
	}

	started := time.Now()
	report, err := generate.Run(ctx, generate.Options{
		Features:    c.Features,
		StepRoots:   c.Steps,
		Extractors:  extractors,
		Template:    c.Template,
		TemplateDir: c.TemplateDir,
		OutputDir:   c.Output,
		Package:     c.Package,
		Parser:      p,
		Parallel:    c.Parallel,
		Format:      c.Format,
		DebugCRIF:   c.DebugCRIF,
		Log:         log,
	})
	printReport(w, report)
	if err != nil {
		return err
	}

	if c.History != "" {
		if err := recordHistory(ctx, c.History, started, report); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
	}

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(report.Files))
	}
	return nil
}

func printReport(w io.Writer, report *generate.Report) {
	if report == nil {
		return
	}
	generated := 0
	for _, f := range report.Files {
		switch {
		case f.Err != nil:
		case f.Unchanged:
			ui.SameLine(w, f.Output)
			generated++
		default:
			ui.GenLine(w, f.Output)
			generated++
		}
	}
	for _, d := range report.Diagnostics {
		if d.Severity == generate.SeverityWarning {
			ui.WarnLine(w, d.String())
		} else {
			ui.ErrLine(w, d.String())
		}
	}
	if report.Template != "" {
		ui.SummaryLine(w, generated, report.Failed(), report.Warnings())
	}
}

func recordHistory(ctx context.Context, path string, started time.Time, report *generate.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	sqlDB, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	files := make([]db.RunFile, 0, len(report.Files))
	for _, f := range report.Files {
		rf := db.RunFile{
			Feature:  f.Feature,
			Output:   f.Output,
			Checksum: f.Checksum,
			Steps:    f.Steps,
		}
		if f.Err != nil {
			rf.Err = f.Err.Error()
		}
		for _, s := range f.Stubs {
			rf.Stubs = append(rf.Stubs, db.Stub{Keyword: s.Keyword, Text: s.Text, Method: s.Method})
		}
		files = append(files, rf)
	}
	_, err = db.RecordRun(ctx, sqlDB, db.Run{
		StartedAt:   started,
		Template:    report.Template,
		Definitions: report.Definitions,
		Warnings:    report.Warnings(),
	}, files)
	return err
}
