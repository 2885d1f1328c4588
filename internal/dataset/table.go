package dataset

import (
	"encoding/json"
	"fmt"
)

// Column describes one column of the cached table.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Row maps column names to cell values.
type Row map[string]Value

// Get returns the cell of the named column, or a null value if the row has no such column.
func (r Row) Get(column string) Value {
	if v, ok := r[column]; ok {
		return v
	}
	return NullValue()
}

// Table is an ordered set of rows sharing one set of columns.
type Table struct {
	Columns []Column
	Rows    []Row
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

type tableJSON struct {
	Columns []Column            `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

// MarshalJSON encodes rows as arrays in column order, which keeps column kinds recoverable.
func (t Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{
		Columns: t.Columns,
		Rows:    make([][]json.RawMessage, len(t.Rows)),
	}
	if out.Columns == nil {
		out.Columns = []Column{}
	}
	for i, row := range t.Rows {
		cells := make([]json.RawMessage, len(t.Columns))
		for j, c := range t.Columns {
			b, err := row.Get(c.Name).MarshalJSON()
			if err != nil {
				return nil, err
			}
			cells[j] = b
		}
		out.Rows[i] = cells
	}
	return json.Marshal(out)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var in tableJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rows := make([]Row, len(in.Rows))
	for i, cells := range in.Rows {
		if len(cells) != len(in.Columns) {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(cells), len(in.Columns))
		}
		row := make(Row, len(in.Columns))
		for j, c := range in.Columns {
			v, err := fromJSON(cells[j], c.Kind)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			row[c.Name] = v
		}
		rows[i] = row
	}
	t.Columns = in.Columns
	t.Rows = rows
	return nil
}
