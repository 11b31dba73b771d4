// Package table holds the data table value that generated tests pass to
// step methods whose step carries an inline Gherkin table.
package table

// Table is a Gherkin data table: the first row is the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// New builds a Table from its header and data rows.
func New(header []string, rows [][]string) *Table {
	return &Table{Header: header, Rows: rows}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the values of the named column, one per data row.
func (t *Table) Column(name string) ([]string, bool) {
	if t == nil {
		return nil, false
	}
	idx := -1
	for i, h := range t.Header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		} else {
			values = append(values, "")
		}
	}
	return values, true
}

// Maps returns one header-keyed map per data row.
func (t *Table) Maps() []map[string]string {
	if t == nil {
		return nil
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}
