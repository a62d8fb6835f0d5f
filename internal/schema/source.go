// Package schema holds the in-memory model of a storage source: its tables,
// columns, foreign keys, triggers, views and routines. Mappings register into
// it during setup; it is read-only afterwards.
package schema

import (
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/model"
)

// Context owns every registered Source. It is built once during setup and
// passed explicitly to the components that need it.
type Context struct {
	sources []*Source
}

// NewContext creates an empty schema context.
func NewContext() *Context {
	return &Context{}
}

// AddSource creates and registers a new Source.
func (c *Context) AddSource(name string) *Source {
	s := &Source{Name: name}
	c.sources = append(c.sources, s)
	return s
}

// Source returns the source with the given name (case-insensitive), or nil.
func (c *Context) Source(name string) *Source {
	for _, s := range c.sources {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

// Sources returns all registered sources in registration order.
func (c *Context) Sources() []*Source {
	return c.sources
}

// Source is a named storage endpoint, typically one database.
type Source struct {
	Name             string
	Tables           []*Table
	Views            []*View
	StoredProcedures []*StoredProcedure
	Functions        []*Function
}

// View is a named, opaque view definition.
type View struct {
	Name       string
	Definition string
	Source     *Source
}

// Function is a named, opaque function definition.
type Function struct {
	Name       string
	Definition string
	Source     *Source
}

// StoredProcedure is a named, opaque stored procedure definition.
type StoredProcedure struct {
	Name       string
	Definition string
	Source     *Source
}

// AddTable creates and registers a table. Registering the same name twice
// creates two tables; use Table to look up an existing one first.
func (s *Source) AddTable(name string) *Table {
	t := &Table{Name: name, Source: s}
	s.Tables = append(s.Tables, t)
	return t
}

// AddView creates and registers a view.
func (s *Source) AddView(name, definition string) *View {
	v := &View{Name: name, Definition: definition, Source: s}
	s.Views = append(s.Views, v)
	return v
}

// AddFunction creates and registers a function.
func (s *Source) AddFunction(name, definition string) *Function {
	f := &Function{Name: name, Definition: definition, Source: s}
	s.Functions = append(s.Functions, f)
	return f
}

// AddStoredProcedure creates and registers a stored procedure.
func (s *Source) AddStoredProcedure(name, definition string) *StoredProcedure {
	p := &StoredProcedure{Name: name, Definition: definition, Source: s}
	s.StoredProcedures = append(s.StoredProcedures, p)
	return p
}

// Table returns the first table whose name matches (case-insensitive), or nil.
func (s *Source) Table(name string) *Table {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// StoredProcedure returns the procedure with the given name, or nil.
func (s *Source) StoredProcedure(name string) *StoredProcedure {
	for _, p := range s.StoredProcedures {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Function returns the function with the given name, or nil.
func (s *Source) Function(name string) *Function {
	for _, f := range s.Functions {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// Validate checks the table-name uniqueness invariant.
func (s *Source) Validate() error {
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		key := strings.ToLower(t.Name)
		if seen[key] {
			return fmt.Errorf("source %q: %w: %s", s.Name, ErrDuplicateTable, t.Name)
		}
		seen[key] = true
	}
	return nil
}

// ImportRoutines registers introspected procedures and functions that are not
// already known to the source.
func (s *Source) ImportRoutines(routines []model.StoredProcedure) {
	for _, r := range routines {
		switch r.Type {
		case "function":
			if s.Function(r.Name) == nil {
				s.AddFunction(r.Name, r.Definition)
			}
		default:
			if s.StoredProcedure(r.Name) == nil {
				s.AddStoredProcedure(r.Name, r.Definition)
			}
		}
	}
}

// Definition converts the whole source into its DDL description.
func (s *Source) Definition() model.Schema {
	def := model.Schema{
		Tables:     make([]model.TableSchema, 0, len(s.Tables)),
		Views:      make([]model.View, 0, len(s.Views)),
		Procedures: make([]model.StoredProcedure, 0, len(s.StoredProcedures)),
		Functions:  make([]model.StoredProcedure, 0, len(s.Functions)),
	}
	for _, t := range s.CreationOrder() {
		def.Tables = append(def.Tables, t.Definition())
	}
	for _, v := range s.Views {
		def.Views = append(def.Views, model.View{Name: v.Name, Definition: v.Definition})
	}
	for _, p := range s.StoredProcedures {
		def.Procedures = append(def.Procedures, model.StoredProcedure{Name: p.Name, Type: "procedure", Definition: p.Definition})
	}
	for _, f := range s.Functions {
		def.Functions = append(def.Functions, model.StoredProcedure{Name: f.Name, Type: "function", Definition: f.Definition})
	}
	return def
}
