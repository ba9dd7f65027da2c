package db

import "sort"

// Schema holds the introspected structure of a database.
type Schema struct {
	Name   string           `json:"name"`
	Tables map[string]Table `json:"tables"`
}

// Table describes a table and its columns.
type Table struct {
	Name       string   `json:"name"`
	Columns    []Column `json:"columns"`
	PrimaryKey []string `json:"primary_key"`
	RowCount   int64    `json:"row_count"`
}

// Column describes a table column.
type Column struct {
	Name         string  `json:"name"`
	DataType     string  `json:"data_type"`
	IsNullable   bool    `json:"is_nullable"`
	DefaultValue *string `json:"default_value,omitempty"`
}

// TableNames returns the table names in lexicographic order.
func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedTables returns the tables ordered by name.
func (s Schema) SortedTables() []Table {
	out := make([]Table, 0, len(s.Tables))
	for _, name := range s.TableNames() {
		out = append(out, s.Tables[name])
	}
	return out
}
