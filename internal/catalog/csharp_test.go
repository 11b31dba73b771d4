package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountBindings = `using TechTalk.SpecFlow;

namespace Bank.Steps
{
    [Binding]
    public class AccountSteps
    {
        [Given("I am logged in")]
        public void IAmLoggedIn()
        {
        }

        [Given(@"I have {amount} dollars in {account}")]
        [When("I deposit {amount} into {account}")]
        public void HaveDollars(int amount, string account)
        {
        }

        [ThenAttribute("the payees are:")]
        public void Payees(Table table)
        {
        }

        [Obsolete("not a step")]
        public void Helper()
        {
        }
    }
}
`

func TestCSharpExtractor_Extract(t *testing.T) {
	defs, err := NewCSharpExtractor().Extract("AccountSteps.cs", []byte(accountBindings))
	require.NoError(t, err)
	require.Len(t, defs, 4)

	assert.Equal(t, Definition{
		Keyword:   "Given",
		Pattern:   "I am logged in",
		Owner:     "AccountSteps",
		Namespace: "Bank.Steps",
		Package:   "Steps",
		Method:    "IAmLoggedIn",
		Source:    "AccountSteps.cs:8",
	}, defs[0])

	assert.Equal(t, "Given", defs[1].Keyword)
	assert.Equal(t, "I have {amount} dollars in {account}", defs[1].Pattern)
	assert.Equal(t, []Param{{Type: "int", Name: "amount"}, {Type: "string", Name: "account"}}, defs[1].Params)

	assert.Equal(t, "When", defs[2].Keyword)
	assert.Equal(t, "HaveDollars", defs[2].Method)

	assert.Equal(t, "Then", defs[3].Keyword)
	assert.Equal(t, []Param{{Type: "Table", Name: "table", Table: true}}, defs[3].Params)
}

func TestCSharpExtractor_Match(t *testing.T) {
	ex := NewCSharpExtractor()
	assert.True(t, ex.Match("Steps/AccountSteps.cs"))
	assert.False(t, ex.Match("steps/accounts.go"))
}

func TestCSharpString(t *testing.T) {
	tests := []struct {
		lit  string
		want string
		ok   bool
	}{
		{`"plain"`, "plain", true},
		{`"say \"hi\""`, `say "hi"`, true},
		{`@"verbatim ""quoted"""`, `verbatim "quoted"`, true},
		{`"""raw"""`, "raw", true},
		{`nameof(X)`, "", false},
	}
	for _, tt := range tests {
		got, ok := csharpString(tt.lit)
		assert.Equal(t, tt.ok, ok, tt.lit)
		assert.Equal(t, tt.want, got, tt.lit)
	}
}
