package generate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/ftgen/internal/render"
)

const clockSteps = `package clock

import (
	"fmt"
	"time"
)

type ClockSteps struct {
	waited time.Duration
	apples int
}

//ftgen:when "I wait {d}"
func (c *ClockSteps) Wait(d time.Duration) {
	c.waited += d
}

//ftgen:then "I have waited {want}"
func (c *ClockSteps) HaveWaited(want time.Duration) error {
	if c.waited != want {
		return fmt.Errorf("waited %s, want %s", c.waited, want)
	}
	return nil
}

//ftgen:given "I have {n} apples"
func (c *ClockSteps) Apples(n int) {
	c.apples = n
}
`

const waitingFeature = `Feature: Waiting
  Scenario: Two waits
    When I wait 2s
    And I wait 1500ms
    Then I have waited 3.5s

  Scenario Outline: Apples
    Given I have <count> apples

    Examples:
      | count |
      | 10abc |
`

// goTest runs go test for the generated features package of module root.
func goTest(t *testing.T, root, run string) (string, error) {
	t.Helper()
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not on PATH")
	}
	cmd := exec.CommandContext(context.Background(), goBin, "test", "-count=1", "-run", run, "./features")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GOWORK=off", "GOFLAGS=-mod=mod", "GOTOOLCHAIN=local")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestRun_GeneratedConversionsRun(t *testing.T) {
	if testing.Short() {
		t.Skip("builds generated code")
	}
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("go.mod", "module example.com/bank\n\ngo 1.21\n")
	write("clock/clock.go", clockSteps)
	write("features/waiting.feature", waitingFeature)
	write("ftgen/"+render.DefaultTemplateName, render.DefaultTemplate)

	report, err := Run(context.Background(), Options{
		Features:    []string{filepath.Join(root, "features")},
		StepRoots:   []string{filepath.Join(root, "clock")},
		TemplateDir: filepath.Join(root, "ftgen"),
		Format:      true,
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.NoError(t, report.Files[0].Err)

	src, err := os.ReadFile(report.Files[0].Output)
	require.NoError(t, err)
	assert.Contains(t, string(src), `argAsWaiting[time.Duration](t, "2s")`)
	assert.Contains(t, string(src), "time.ParseDuration(s)")

	out, err := goTest(t, root, "^TestWaiting_TwoWaits$")
	assert.NoError(t, err, out)

	out, err = goTest(t, root, "^TestWaiting_Apples$")
	require.Error(t, err, out)
	assert.Contains(t, out, `converting "10abc" to int: unexpected "abc"`)
}
