package model

// Schema is the DDL-level description of one storage source: every table with
// its columns and constraints, plus views and routines.
type Schema struct {
	Tables     []TableSchema     `json:"tables"`
	Views      []View            `json:"views"`
	Procedures []StoredProcedure `json:"procedures"`
	Functions  []StoredProcedure `json:"functions"`
}

// TableSchema describes the structure of a single table as it should be created
// in the backing store.
type TableSchema struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
	Indexes     []Index      `json:"indexes"`
	Triggers    []Trigger    `json:"triggers,omitempty"`
}

// Column describes a single column within a table.
type Column struct {
	Name            string  `json:"name"`
	Position        int     `json:"position"`
	Type            string  `json:"db_type,omitempty"`
	GoType          string  `json:"go_type"`
	Nullable        bool    `json:"nullable"`
	Default         *string `json:"default,omitempty"`
	MaxLength       *int64  `json:"max_length,omitempty"`
	IsPrimaryKey    bool    `json:"is_primary_key"`
	IsAutoIncrement bool    `json:"is_auto_increment"`
	IsUnique        bool    `json:"is_unique"`
	Comment         string  `json:"comment,omitempty"`
}

// ForeignKey describes a foreign key constraint between two tables.
type ForeignKey struct {
	Name             string `json:"name"`
	ColumnName       string `json:"column_name"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
	OnDelete         string `json:"on_delete"`
	OnUpdate         string `json:"on_update"`
}

// Index describes a database index on one or more columns.
type Index struct {
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	IsUnique bool     `json:"is_unique"`
}

// Trigger is an opaque trigger definition attached to a table.
type Trigger struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// View is an opaque view definition.
type View struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// StoredProcedure describes a stored procedure or function in the database.
type StoredProcedure struct {
	Name       string           `json:"name"`
	Type       string           `json:"type"` // "procedure" or "function"
	ReturnType string           `json:"return_type,omitempty"`
	Definition string           `json:"definition,omitempty"`
	Parameters []ProcedureParam `json:"parameters,omitempty"`
}

// ProcedureParam describes a single parameter of a stored procedure or function.
type ProcedureParam struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Direction string `json:"direction"` // "in", "out", "inout"
}
