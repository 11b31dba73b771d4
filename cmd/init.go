package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/db"
	"github.com/chriserin/ftgen/internal/render"
)

var historyPath = filepath.ToSlash(filepath.Join(config.Dir, "history.db"))

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ftgen in the current directory",
	// init writes the config; it must not require one.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunInit(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func RunInit(w io.Writer) error {
	// ftgen/ directory
	_, err := os.Stat(config.Dir)
	dirExists := err == nil
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", config.Dir, err)
	}
	if dirExists {
		fmt.Fprintf(w, "%s/ already exists\n", config.Dir)
	} else {
		fmt.Fprintf(w, "%s/ created\n", config.Dir)
	}

	// template
	tmplPath := filepath.ToSlash(filepath.Join(config.Dir, render.DefaultTemplateName))
	created, err := writeNew(tmplPath, []byte(render.DefaultTemplate))
	if err != nil {
		return fmt.Errorf("writing template: %w", err)
	}
	reportCreated(w, tmplPath, created)

	// config
	if _, err := os.Stat(config.FileName); errors.Is(err, fs.ErrNotExist) {
		c, err := config.Defaults()
		if err != nil {
			return err
		}
		c.TemplateDir = config.Dir
		c.History = historyPath
		if err := config.Write(config.FileName, c); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		reportCreated(w, config.FileName, true)
	} else if err != nil {
		return err
	} else {
		reportCreated(w, config.FileName, false)
	}

	// database
	_, err = os.Stat(historyPath)
	dbExists := err == nil
	sqlDB, err := db.Open(historyPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	sqlDB.Close()
	reportCreated(w, historyPath, !dbExists)

	// gitignore
	msgs, err := ensureGitignore()
	if err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	for _, msg := range msgs {
		fmt.Fprintln(w, msg)
	}

	return nil
}

// writeNew writes data to path unless the file already exists.
func writeNew(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, err
	}
	return true, f.Close()
}

func reportCreated(w io.Writer, path string, created bool) {
	if created {
		fmt.Fprintf(w, "%s created\n", path)
	} else {
		fmt.Fprintf(w, "%s already exists\n", path)
	}
}

func ensureGitignore() ([]string, error) {
	entry := historyPath + "*"

	data, err := os.ReadFile(".gitignore")
	if os.IsNotExist(err) {
		if err := os.WriteFile(".gitignore", []byte(entry+"\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{".gitignore created", entry + " added to .gitignore"}, nil
	}
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == entry {
			return []string{entry + " already in .gitignore"}, nil
		}
	}

	content := string(data)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"

	if err := os.WriteFile(".gitignore", []byte(content), 0o644); err != nil {
		return nil, err
	}
	return []string{entry + " added to .gitignore"}, nil
}
