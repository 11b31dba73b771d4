package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chriserin/ftgen/internal/crif"
)

const SnapshotExt = ".crif.json"

// snapshotPath places the CRIF snapshot beside the generated file:
// accounts_test.go becomes accounts.crif.json.
func snapshotPath(output string) string {
	base := strings.TrimSuffix(output, filepath.Ext(output))
	base = strings.TrimSuffix(base, "_test")
	return base + SnapshotExt
}

// WriteSnapshot writes file as indented JSON for template authors.
func WriteSnapshot(path string, file *crif.File) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding CRIF: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (*crif.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file crif.File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding CRIF %s: %w", path, err)
	}
	return &file, nil
}
