package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountSteps = `package steps

import (
	"time"

	"github.com/chriserin/ftgen/pkg/table"
)

type AccountSteps struct{}

//ftgen:given "I am logged in"
func (s *AccountSteps) IAmLoggedIn() error { return nil }

// HaveDollars seeds an account.
//
//ftgen:given "I have {amount} dollars in {account}"
//ftgen:and "conjunctions are not step kinds"
func (s *AccountSteps) HaveDollars(amount int, account string) error { return nil }

//ftgen:GivenStep "the following payees:"
func (s *AccountSteps) Payees(tbl *table.Table) {}

//ftgen:when "I wait {d}"
func (s AccountSteps) Wait(d time.Duration) error { return nil }

//ftgen:then "hidden"
func (s *AccountSteps) hidden() {}

//ftgen:then "{a} and {b} are equal"
func (s *AccountSteps) Mismatch(a string) {}

//ftgen:then unquoted pattern
func (s *AccountSteps) Unquoted() {}
`

// writeModule lays out a Go module with one step package and returns its root.
func writeModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/bank\n\ngo 1.22\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "steps"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "steps", "accounts.go"), []byte(accountSteps), 0644))
	return root
}

func TestBuild_GoModule(t *testing.T) {
	root := writeModule(t)
	log, _ := test.NewNullLogger()

	cat, err := Build(context.Background(), log, []string{root}, NewGoExtractor())
	require.NoError(t, err)

	var methods []string
	for _, d := range cat.Definitions() {
		methods = append(methods, d.Method)
	}
	assert.Equal(t, []string{"IAmLoggedIn", "HaveDollars", "Payees", "Wait"}, methods)
	assert.Equal(t, 4, cat.Len())
}

func TestBuild_SkipsMismatchedPlaceholders(t *testing.T) {
	root := writeModule(t)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	cat, err := Build(context.Background(), log, []string{root}, NewGoExtractor())
	require.NoError(t, err)
	for _, d := range cat.Definitions() {
		assert.NotEqual(t, "Mismatch", d.Method)
	}

	var skipped bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Message == "skipping step Mismatch: pattern has 2 placeholders for 1 parameters" {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestBuild_SkipsUnparsableFiles(t *testing.T) {
	root := writeModule(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "steps", "broken.go"), []byte("package steps\nfunc (\n"), 0644))
	log, _ := test.NewNullLogger()

	cat, err := Build(context.Background(), log, []string{root}, NewGoExtractor())
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())
}

func TestBuild_IgnoresTestFilesAndHiddenDirs(t *testing.T) {
	root := writeModule(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "steps", "accounts_test.go"), []byte(accountSteps), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".cache", "copy.go"), []byte(accountSteps), 0644))
	log, _ := test.NewNullLogger()

	cat, err := Build(context.Background(), log, []string{root}, NewGoExtractor())
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())
}

func TestBuild_MissingRoot(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := Build(context.Background(), log, []string{filepath.Join(t.TempDir(), "nope")}, NewGoExtractor())
	assert.Error(t, err)
}

func TestBuild_Cancelled(t *testing.T) {
	root := writeModule(t)
	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, log, []string{root}, NewGoExtractor())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefinition_Placeholders(t *testing.T) {
	d := Definition{Pattern: "I have {amount} dollars in {account}"}
	assert.Equal(t, []string{"amount", "account"}, d.Placeholders())

	d = Definition{Pattern: "I am logged in"}
	assert.Empty(t, d.Placeholders())
}

func TestDefinition_Bindable(t *testing.T) {
	d := Definition{Params: []Param{
		{Name: "name", Type: "string"},
		{Name: "tbl", Type: "*table.Table", Import: TablePackage, Table: true},
	}}
	assert.True(t, d.TakesTable())
	assert.Equal(t, []Param{{Name: "name", Type: "string"}}, d.Bindable())
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		marker string
		want   string
		ok     bool
	}{
		{"given", "Given", true},
		{"When", "When", true},
		{"ThenStep", "Then", true},
		{"GivenAttribute", "Given", true},
		{"whenstep", "When", true},
		{"and", "", false},
		{"Binding", "", false},
		{"Step", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			got, ok := NormalizeKeyword(tt.marker)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractors(t *testing.T) {
	all, err := Extractors(nil)
	require.NoError(t, err)
	var names []string
	for _, ex := range all {
		names = append(names, ex.Name())
	}
	assert.Equal(t, []string{"go", "csharp", "manifest"}, names)

	_, err = Extractors([]string{"cobol"})
	assert.Error(t, err)
}
