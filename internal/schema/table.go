package schema

import (
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/model"
)

// Table is a named row container owned by exactly one Source.
type Table struct {
	Name     string
	Source   *Source
	Columns  []*Column
	Triggers []*Trigger
}

// Trigger is a named, opaque trigger definition attached to a table.
type Trigger struct {
	Name       string
	Definition string
	Table      *Table
}

// ForeignKeyRef is a declared (table, column) foreign key target, kept by name
// until SetupForeignKeys resolves it.
type ForeignKeyRef struct {
	Table  string
	Column string
}

// Column is a typed column. Table is a back-reference, not ownership.
type Column struct {
	Name string
	// DataType is the logical Go type name ("int64", "string", "time.Time", ...).
	DataType        string
	Length          int
	Nullable        bool
	AutoIncrement   bool
	Index           bool
	PrimaryKey      bool
	Unique          bool
	Default         *string
	OnDeleteCascade bool
	OnUpdateCascade bool
	OnDeleteSetNull bool

	// ForeignKeys holds the resolved targets after SetupForeignKeys.
	ForeignKeys []*Column
	Table       *Table

	pending []ForeignKeyRef
}

// ColumnDef carries the attributes accepted by Table.AddColumn.
type ColumnDef struct {
	Name             string
	DataType         string
	Length           int
	Nullable         bool
	Identity         bool
	Index            bool
	PrimaryKey       bool
	Unique           bool
	ForeignKeyTable  string
	ForeignKeyColumn string
	Default          *string
	OnDeleteCascade  bool
	OnUpdateCascade  bool
	OnDeleteSetNull  bool
}

// AddColumn registers a column and records its foreign key target, if any, as
// pending. A table holds at most one primary-key column.
func (t *Table) AddColumn(def ColumnDef) (*Column, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("table %q: column name is required", t.Name)
	}
	if t.Column(def.Name) != nil {
		return nil, fmt.Errorf("table %q: %w: %s", t.Name, ErrDuplicateColumn, def.Name)
	}
	if def.PrimaryKey {
		if pk := t.PrimaryKey(); pk != nil {
			return nil, fmt.Errorf("table %q: %w (%s, adding %s)", t.Name, ErrMultiplePrimaryKeys, pk.Name, def.Name)
		}
	}

	col := &Column{
		Name:            def.Name,
		DataType:        def.DataType,
		Length:          def.Length,
		Nullable:        def.Nullable,
		AutoIncrement:   def.Identity,
		Index:           def.Index,
		PrimaryKey:      def.PrimaryKey,
		Unique:          def.Unique,
		Default:         def.Default,
		OnDeleteCascade: def.OnDeleteCascade,
		OnUpdateCascade: def.OnUpdateCascade,
		OnDeleteSetNull: def.OnDeleteSetNull,
		Table:           t,
	}
	if def.ForeignKeyTable != "" && def.ForeignKeyColumn != "" {
		col.AddForeignKey(def.ForeignKeyTable, def.ForeignKeyColumn)
	}
	t.Columns = append(t.Columns, col)
	return col, nil
}

// AddTrigger attaches a trigger definition to the table.
func (t *Table) AddTrigger(name, definition string) *Trigger {
	tr := &Trigger{Name: name, Definition: definition, Table: t}
	t.Triggers = append(t.Triggers, tr)
	return tr
}

// Column returns the column with the given name (case-insensitive), or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// PrimaryKey returns the primary-key column, or nil.
func (t *Table) PrimaryKey() *Column {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return nil
}

// AddForeignKey records another pending foreign key target for the column.
func (c *Column) AddForeignKey(table, column string) {
	for _, p := range c.pending {
		if strings.EqualFold(p.Table, table) && strings.EqualFold(p.Column, column) {
			return
		}
	}
	c.pending = append(c.pending, ForeignKeyRef{Table: table, Column: column})
}

// PendingForeignKeys returns the declared foreign key targets.
func (c *Column) PendingForeignKeys() []ForeignKeyRef {
	return c.pending
}

// Definition converts the table into its DDL description.
func (t *Table) Definition() model.TableSchema {
	def := model.TableSchema{
		Name:        t.Name,
		Columns:     make([]model.Column, 0, len(t.Columns)),
		PrimaryKey:  []string{},
		ForeignKeys: []model.ForeignKey{},
		Indexes:     []model.Index{},
	}

	for i, c := range t.Columns {
		mc := model.Column{
			Name:            c.Name,
			Position:        i + 1,
			GoType:          c.DataType,
			Nullable:        c.Nullable,
			Default:         c.Default,
			IsPrimaryKey:    c.PrimaryKey,
			IsAutoIncrement: c.AutoIncrement,
			IsUnique:        c.Unique,
		}
		if c.Length > 0 {
			n := int64(c.Length)
			mc.MaxLength = &n
		}
		def.Columns = append(def.Columns, mc)

		if c.PrimaryKey {
			def.PrimaryKey = append(def.PrimaryKey, c.Name)
		}
		if c.Index && !c.PrimaryKey && !c.Unique {
			def.Indexes = append(def.Indexes, model.Index{
				Name:    "idx_" + t.Name + "_" + c.Name,
				Columns: []string{c.Name},
			})
		}
		for _, ref := range c.pending {
			fk := model.ForeignKey{
				Name:             "fk_" + t.Name + "_" + c.Name + "_" + ref.Table,
				ColumnName:       c.Name,
				ReferencedTable:  ref.Table,
				ReferencedColumn: ref.Column,
			}
			switch {
			case c.OnDeleteCascade:
				fk.OnDelete = "CASCADE"
			case c.OnDeleteSetNull:
				fk.OnDelete = "SET NULL"
			}
			if c.OnUpdateCascade {
				fk.OnUpdate = "CASCADE"
			}
			def.ForeignKeys = append(def.ForeignKeys, fk)
		}
	}

	for _, tr := range t.Triggers {
		def.Triggers = append(def.Triggers, model.Trigger{Name: tr.Name, Definition: tr.Definition})
	}
	return def
}
