package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/db"
	"github.com/chriserin/ftgen/internal/render"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(orig) })
	return dir
}

func runInit(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, RunInit(&buf))
	return buf.String()
}

func TestInit_CreatesDirectory(t *testing.T) {
	dir := inTempDir(t)
	out := runInit(t)

	info, err := os.Stat(filepath.Join(dir, "ftgen"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Contains(t, out, "ftgen/ created")
}

func TestInit_DirectoryAlreadyExists(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "ftgen"), 0o755))

	out := runInit(t)
	assert.Contains(t, out, "ftgen/ already exists")
}

func TestInit_WritesDefaultTemplate(t *testing.T) {
	dir := inTempDir(t)
	out := runInit(t)

	data, err := os.ReadFile(filepath.Join(dir, "ftgen", "feature.go.mustache"))
	require.NoError(t, err)
	assert.Equal(t, render.DefaultTemplate, string(data))
	assert.Contains(t, out, "ftgen/feature.go.mustache created")
}

func TestInit_KeepsEditedTemplate(t *testing.T) {
	dir := inTempDir(t)
	runInit(t)
	path := filepath.Join(dir, "ftgen", "feature.go.mustache")
	require.NoError(t, os.WriteFile(path, []byte("custom"), 0o644))

	out := runInit(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(data))
	assert.Contains(t, out, "ftgen/feature.go.mustache already exists")
}

func TestInit_WritesConfig(t *testing.T) {
	inTempDir(t)
	out := runInit(t)
	assert.Contains(t, out, "ftgen.yaml created")

	c, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "ftgen", c.TemplateDir)
	assert.Equal(t, "ftgen/history.db", c.History)
	assert.Equal(t, []string{"features"}, c.Features)

	out = runInit(t)
	assert.Contains(t, out, "ftgen.yaml already exists")
}

func TestInit_InitializesSQLiteDatabase(t *testing.T) {
	dir := inTempDir(t)
	out := runInit(t)

	dbPath := filepath.Join(dir, "ftgen", "history.db")
	_, err := os.Stat(dbPath)
	require.NoError(t, err)

	sqlDB, err := db.Open(dbPath)
	require.NoError(t, err)
	defer sqlDB.Close()

	var mode string
	require.NoError(t, sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.Contains(t, out, "ftgen/history.db created")
}

func TestInit_DatabaseAlreadyExists(t *testing.T) {
	inTempDir(t)
	runInit(t)

	out := runInit(t)
	assert.Contains(t, out, "ftgen/history.db already exists")
}

func TestInit_AddsMigrationSystem(t *testing.T) {
	inTempDir(t)
	runInit(t)

	sqlDB, err := db.Open("ftgen/history.db")
	require.NoError(t, err)
	defer sqlDB.Close()

	var version int
	require.NoError(t, sqlDB.QueryRow("SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, len(db.All), version)
}

func TestInit_AddsToGitignore(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("node_modules\n"), 0o644))

	out := runInit(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ftgen/history.db*\n")
	assert.Contains(t, string(data), "node_modules\n")
	assert.Contains(t, out, "ftgen/history.db* added to .gitignore")
}

func TestInit_GitignoreAlreadyHasEntry(t *testing.T) {
	dir := inTempDir(t)
	original := "node_modules\nftgen/history.db*\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(original), 0o644))

	out := runInit(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
	assert.Contains(t, out, "ftgen/history.db* already in .gitignore")
}

func TestInit_NoGitignoreExists(t *testing.T) {
	dir := inTempDir(t)
	out := runInit(t)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "ftgen/history.db*\n", string(data))
	assert.Contains(t, out, ".gitignore created")
	assert.Contains(t, out, "ftgen/history.db* added to .gitignore")
}
