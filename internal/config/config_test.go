package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"features"}, cfg.Features)
	assert.Equal(t, []string{"."}, cfg.Steps)
	assert.Equal(t, "native", cfg.Parser)
	assert.True(t, cfg.Format)
	assert.Empty(t, cfg.History)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.Mkdir(Dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(Dir, FileName), []byte(`
features: [specs]
steps: [internal/steps, bindings]
template_dir: ftgen
parser: cucumber
parallel: 4
debug_crif: true
history: ftgen/history.db
log:
  level: debug
`), 0o644))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"specs"}, cfg.Features)
	assert.Equal(t, []string{"internal/steps", "bindings"}, cfg.Steps)
	assert.Equal(t, "ftgen", cfg.TemplateDir)
	assert.Equal(t, "cucumber", cfg.Parser)
	assert.Equal(t, 4, cfg.Parallel)
	assert.True(t, cfg.DebugCRIF)
	assert.Equal(t, "ftgen/history.db", cfg.History)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	inTempDir(t)
	require.NoError(t, os.WriteFile(FileName, []byte("parser: cucumber\nlog:\n  level: info\n"), 0o644))
	t.Setenv("FTGEN_PARSER", "native")
	t.Setenv("FTGEN_LOG_LEVEL", "error")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "native", cfg.Parser)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	inTempDir(t)
	_, err := Load(New(), "nope.yaml")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"parser":     "parser: antlr\n",
		"log level":  "log:\n  level: loud\n",
		"log format": "log:\n  format: xml\n",
		"parallel":   "parallel: -1\n",
		"sources":    "sources: [java]\n",
		"template":   "template: a.mustache\ntemplate_dir: tpl\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			inTempDir(t)
			require.NoError(t, os.WriteFile(FileName, []byte(content), 0o644))
			_, err := Load(New(), "")
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoadEnv(t *testing.T) {
	inTempDir(t)
	require.NoError(t, LoadEnv(""))

	require.NoError(t, os.WriteFile(".env", []byte("FTGEN_TEST_LOADENV=yes\n"), 0o644))
	t.Setenv("FTGEN_TEST_LOADENV", "")
	os.Unsetenv("FTGEN_TEST_LOADENV")
	require.NoError(t, LoadEnv(""))
	assert.Equal(t, "yes", os.Getenv("FTGEN_TEST_LOADENV"))
}

func TestWrite_RoundTrip(t *testing.T) {
	inTempDir(t)
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	cfg.TemplateDir = Dir
	cfg.History = "ftgen/history.db"

	require.NoError(t, Write(FileName, cfg))

	got, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "native", cfg.Parser)
}
