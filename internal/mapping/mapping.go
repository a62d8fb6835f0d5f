// Package mapping declares how business types are stored: one Mapping per
// type, made of properties bound through explicit getter and setter closures.
// Mappings are registered in a Context and turned into the schema model by
// Context.Setup.
package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/schema"
)

var (
	// ErrInvalidMapping reports a configuration mistake found during Setup.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrUnregistered is returned when no mapping exists for a type.
	ErrUnregistered = errors.New("mapping not registered")
)

// Info is the untyped view of a Mapping used by the query provider and the
// session when they walk relationships.
type Info interface {
	Type() reflect.Type
	Table() string
	Key() FieldProperty
	// Fields returns the scalar properties, key included, in declaration order.
	Fields() []FieldProperty
	References() []ReferenceProperty
	Joins() []JoinProperty
	Relationships() []Relationship
	Properties() []Property
	// Property looks a property up by name (case-insensitive).
	Property(name string) Property
	// Columns lists the owner-table columns: fields then foreign keys.
	Columns() []string
	// New returns a pointer to a zero value of the mapped type.
	New() any
	// Scan materializes one result row into a new object.
	Scan(row command.Row) (any, error)
	// AddToQueryProvider registers the mapped tables and columns in src.
	AddToQueryProvider(src *schema.Source) error
}

// Mapping describes how T is stored.
type Mapping[T any] struct {
	table string
	props []Property
	key   FieldProperty
	errs  []error
}

// New creates a mapping of T stored in table.
func New[T any](table string) *Mapping[T] {
	return &Mapping[T]{table: table}
}

func (m *Mapping[T]) add(p Property) {
	m.props = append(m.props, p)
}

func (m *Mapping[T]) Type() reflect.Type { return reflect.TypeFor[T]() }
func (m *Mapping[T]) Table() string      { return m.table }
func (m *Mapping[T]) Key() FieldProperty { return m.key }

func (m *Mapping[T]) Properties() []Property { return m.props }

func (m *Mapping[T]) Fields() []FieldProperty {
	var out []FieldProperty
	for _, p := range m.props {
		if f, ok := p.(FieldProperty); ok {
			out = append(out, f)
		}
	}
	return out
}

func (m *Mapping[T]) References() []ReferenceProperty {
	var out []ReferenceProperty
	for _, p := range m.props {
		if r, ok := p.(ReferenceProperty); ok {
			out = append(out, r)
		}
	}
	return out
}

func (m *Mapping[T]) Joins() []JoinProperty {
	var out []JoinProperty
	for _, p := range m.props {
		if j, ok := p.(JoinProperty); ok {
			out = append(out, j)
		}
	}
	return out
}

func (m *Mapping[T]) Relationships() []Relationship {
	var out []Relationship
	for _, p := range m.props {
		if r, ok := p.(Relationship); ok {
			out = append(out, r)
		}
	}
	return out
}

func (m *Mapping[T]) Property(name string) Property {
	for _, p := range m.props {
		if strings.EqualFold(p.Name(), name) {
			return p
		}
	}
	return nil
}

func (m *Mapping[T]) Columns() []string {
	var cols []string
	for _, f := range m.Fields() {
		cols = append(cols, f.FieldName())
	}
	for _, r := range m.References() {
		cols = append(cols, r.FieldName())
	}
	return cols
}

func (m *Mapping[T]) New() any { return new(T) }

func (m *Mapping[T]) Scan(row command.Row) (any, error) {
	return m.ScanRow(row)
}

// ScanRow materializes one result row into a new T. Columns missing from the
// row leave their member untouched; references receive a key-only stub.
func (m *Mapping[T]) ScanRow(row command.Row) (*T, error) {
	obj := new(T)
	for _, f := range m.Fields() {
		raw, ok := lookup(row, f.FieldName())
		if !ok {
			continue
		}
		if err := f.Assign(obj, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", m.table, err)
		}
	}
	for _, r := range m.References() {
		raw, ok := lookup(row, r.FieldName())
		if !ok {
			continue
		}
		if err := r.Assign(obj, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", m.table, err)
		}
	}
	return obj, nil
}

func lookup(row command.Row, column string) (any, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}

// validate checks the mapping and resolves relationship targets against c.
func (m *Mapping[T]) validate(c *Context) []error {
	errs := append([]error(nil), m.errs...)
	if m.table == "" {
		errs = append(errs, fmt.Errorf("%w: %s: table name is empty", ErrInvalidMapping, m.Type()))
	}
	if m.key == nil {
		errs = append(errs, fmt.Errorf("%w: %s: no key property", ErrInvalidMapping, m.table))
	}

	names := make(map[string]bool, len(m.props))
	for _, p := range m.props {
		key := strings.ToLower(p.Name())
		if names[key] {
			errs = append(errs, fmt.Errorf("%w: %s: duplicate property %q", ErrInvalidMapping, m.table, p.Name()))
		}
		names[key] = true
		errs = append(errs, p.validate(c, m)...)
	}

	columns := make(map[string]bool)
	for _, col := range m.Columns() {
		key := strings.ToLower(col)
		if key != "" && columns[key] {
			errs = append(errs, fmt.Errorf("%w: %s: duplicate column %q", ErrInvalidMapping, m.table, col))
		}
		columns[key] = true
	}
	return errs
}

// AddToQueryProvider locates or creates the mapping's table in src and adds
// every column that is not there yet. Collections add their join tables.
func (m *Mapping[T]) AddToQueryProvider(src *schema.Source) error {
	locateTable(src, m.table)
	for _, p := range m.props {
		if err := p.register(src, m); err != nil {
			return fmt.Errorf("%s.%s: %w", m.table, p.Name(), err)
		}
	}
	return nil
}
