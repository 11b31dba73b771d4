package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	return New([]string{"payee", "category"}, [][]string{
		{"Ski Village", "Leisure"},
		{"Migros", "Groceries"},
	})
}

func TestTable_Len(t *testing.T) {
	assert.Equal(t, 2, sample().Len())
	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
}

func TestTable_Column(t *testing.T) {
	values, ok := sample().Column("category")
	require.True(t, ok)
	assert.Equal(t, []string{"Leisure", "Groceries"}, values)

	_, ok = sample().Column("amount")
	assert.False(t, ok)
}

func TestTable_ColumnShortRow(t *testing.T) {
	tbl := New([]string{"a", "b"}, [][]string{{"1"}})
	values, ok := tbl.Column("b")
	require.True(t, ok)
	assert.Equal(t, []string{""}, values)
}

func TestTable_Maps(t *testing.T) {
	maps := sample().Maps()
	require.Len(t, maps, 2)
	assert.Equal(t, "Ski Village", maps[0]["payee"])
	assert.Equal(t, "Groceries", maps[1]["category"])
}
