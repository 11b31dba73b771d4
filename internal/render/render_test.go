package render

import (
	"go/ast"
	goparser "go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/ftgen/internal/catalog"
	"github.com/chriserin/ftgen/internal/crif"
	"github.com/chriserin/ftgen/internal/match"
	"github.com/chriserin/ftgen/internal/parser"
)

const accountsFeature = `@namespace:accounts
Feature: Accounts
  Money moves between accounts.

  Background:
    Given I am logged in

  Scenario: Deposit
    Given I have 100 dollars in Savings
    And the following payees:
      | name        | category |
      | Ski Village | Leisure  |
    When I deposit "5" into Savings
    Then my balance is correct

  @explicit
  Scenario: Slow report
    Then my balance is correct
      | column |

  Rule: Transfers
    Background:
      Given I have 10 dollars in Checking

    Scenario Outline: Transfer
      When I transfer <amount> to <account>
      Then <account> has <amount>

      Examples:
        | amount | account  |
        | 10     | Checking |
        | 20     | Savings  |
`

const stepsPkg = "example.com/bank/steps"

var accountDefs = []catalog.Definition{
	{Keyword: "Given", Pattern: "I am logged in", Owner: "AuthSteps", Namespace: stepsPkg, Package: "steps", Method: "IAmLoggedIn", ReturnsError: true},
	{
		Keyword: "Given", Pattern: "I have {quantity} dollars in {account}", Owner: "AccountSteps", Namespace: stepsPkg, Package: "steps",
		Method: "IHaveDollarsIn", Params: []catalog.Param{{Type: "int", Name: "quantity"}, {Type: "string", Name: "account"}}, ReturnsError: true,
	},
	{
		Keyword: "Given", Pattern: "the following payees:", Owner: "AccountSteps", Namespace: stepsPkg, Package: "steps",
		Method: "Payees", Params: []catalog.Param{{Type: "*table.Table", Name: "tbl", Import: catalog.TablePackage, Table: true}},
	},
	{
		Keyword: "When", Pattern: "I deposit {amount} into {account}", Owner: "AccountSteps", Namespace: stepsPkg, Package: "steps",
		Method: "Deposit", Params: []catalog.Param{{Type: "money.Amount", Name: "amount", Import: "example.com/bank/money"}, {Type: "string", Name: "account"}}, ReturnsError: true,
	},
	{
		Keyword: "When", Pattern: "I transfer {amount} to {account}", Owner: "AccountSteps", Namespace: stepsPkg, Package: "steps",
		Method: "Transfer", Params: []catalog.Param{{Type: "int", Name: "amount"}, {Type: "string", Name: "account"}}, ReturnsError: true,
	},
}

func convertFixture(t *testing.T) *crif.File {
	t.Helper()
	doc, errs := parser.Parse("accounts.feature", []byte(accountsFeature))
	require.Empty(t, errs)
	file, err := crif.Convert(doc, match.New(catalog.New(accountDefs)), crif.Options{SourceFile: "accounts.feature"})
	require.NoError(t, err)
	return file
}

func renderFixture(t *testing.T) string {
	t.Helper()
	tmpl, err := Compile(DefaultTemplateName, DefaultTemplate)
	require.NoError(t, err)
	out, err := tmpl.Render(convertFixture(t))
	require.NoError(t, err)
	formatted, err := FormatGo(out)
	require.NoError(t, err, out)
	return formatted
}

func TestRender_DefaultTemplateProducesValidGo(t *testing.T) {
	out := renderFixture(t)

	fset := token.NewFileSet()
	parsed, err := goparser.ParseFile(fset, "accounts_test.go", out, goparser.ParseComments)
	require.NoError(t, err, out)
	assert.Equal(t, "accounts", parsed.Name.Name)

	var funcs []string
	for _, decl := range parsed.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			funcs = append(funcs, fn.Name.Name)
		}
	}
	assert.Equal(t, []string{
		"newAccountsFeature",
		"TestAccounts_Deposit",
		"TestAccounts_SlowReport",
		"TestAccounts_Transfer",
		"background",
		"scenarioDeposit",
		"scenarioSlowReport",
		"backgroundTransfers",
		"scenarioTransfer",
		"MyBalanceIsCorrect",
		"AccountHasAmount",
		"argAsAccounts",
	}, funcs)

	var imports []string
	for _, imp := range parsed.Imports {
		imports = append(imports, imp.Path.Value)
	}
	assert.ElementsMatch(t, []string{
		`"testing"`, `"errors"`, `"os"`, `"fmt"`,
		`"example.com/bank/steps"`, `"github.com/chriserin/ftgen/pkg/table"`, `"example.com/bank/money"`,
	}, imports)
}

func TestRender_StepCalls(t *testing.T) {
	out := renderFixture(t)

	assert.Contains(t, out, "// Code generated by ftgen from accounts.feature. DO NOT EDIT.")
	assert.Contains(t, out, "if err := f.authSteps.IAmLoggedIn(); err != nil {")
	assert.Contains(t, out, `if err := f.accountSteps.IHaveDollarsIn(100, "Savings"); err != nil {`)
	assert.Contains(t, out, "f.accountSteps.Payees(table1)")
	assert.Contains(t, out, `f.accountSteps.Deposit(argAsAccounts[money.Amount](t, "5"), "Savings")`)
	assert.Contains(t, out, "f.accountSteps.Transfer(argAsAccounts[int](t, pAmount), pAccount)")
	assert.Contains(t, out, "if err := f.AccountHasAmount(pAccount, pAmount); err != nil {")
	assert.Contains(t, out, `{"Ski Village", "Leisure"},`)
	assert.Contains(t, out, "_ = table1")
	assert.Contains(t, out, `os.Getenv("FTGEN_EXPLICIT")`)
	assert.Contains(t, out, `{"10,Checking", "10", "Checking"},`)
	assert.Contains(t, out, "f.backgroundTransfers(t)")
	assert.Contains(t, out, `errors.Join(errAccountsNotImplemented, errors.New("Then <account> has <amount>"))`)
	assert.Contains(t, out, "func (f *AccountsFeature) MyBalanceIsCorrect() error {")

	// The unimplemented step is declared once despite two uses.
	assert.Equal(t, 1, strings.Count(out, "func (f *AccountsFeature) MyBalanceIsCorrect("))
}

func TestRender_ConversionHelper(t *testing.T) {
	file := convertFixture(t)
	out := renderFixture(t)
	assert.Contains(t, out, "func argAsAccounts[T any](t *testing.T, s string) T {")
	assert.Contains(t, out, "fmt.Sscan(s, &v, &rest)")
	assert.NotContains(t, out, "ParseDuration")

	file.TimePackage = "time2"
	withTime, err := Render(DefaultTemplate, file)
	require.NoError(t, err)
	assert.Contains(t, withTime, "any(&v).(*time2.Duration)")
	assert.Contains(t, withTime, "time2.ParseDuration(s)")
}

func TestRender_Deterministic(t *testing.T) {
	assert.Equal(t, renderFixture(t), renderFixture(t))
}

func TestRender_MinimalFeature(t *testing.T) {
	doc, errs := parser.Parse("empty.feature", []byte("Feature: Empty\n"))
	require.Empty(t, errs)
	file, err := crif.Convert(doc, match.New(nil), crif.Options{SourceFile: "empty.feature"})
	require.NoError(t, err)

	out, err := Render(DefaultTemplate, file)
	require.NoError(t, err)
	formatted, err := FormatGo(out)
	require.NoError(t, err, out)

	assert.Contains(t, formatted, "package features")
	assert.NotContains(t, formatted, `"errors"`)
	assert.NotContains(t, formatted, "argAs")
}

func TestRender_MissingVariable(t *testing.T) {
	_, err := Render("{{Package}} {{NoSuchField}}", convertFixture(t))
	assert.Error(t, err)
}

func TestCompile_Malformed(t *testing.T) {
	_, err := Compile("bad.mustache", "{{#Rules}} unclosed")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.txt.mustache")
	require.NoError(t, os.WriteFile(path, []byte("{{#Rules}}{{#Scenarios}}{{Ident}}\n{{/Scenarios}}{{/Rules}}"), 0o644))

	tmpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ".txt", tmpl.OutputExt())

	out, err := tmpl.Render(convertFixture(t))
	require.NoError(t, err)
	assert.Equal(t, "Deposit\nSlowReport\nTransfer\n", out)

	_, err = Load(filepath.Join(t.TempDir(), "missing.mustache"))
	assert.Error(t, err)
}

func TestOutputExt(t *testing.T) {
	tests := map[string]string{
		"feature.go.mustache":       ".go",
		"/tmp/x/Feature.cs.mustache": ".cs",
		"plain.mustache":             "",
	}
	for name, want := range tests {
		assert.Equal(t, want, (&Template{Name: name}).OutputExt(), name)
	}
}
