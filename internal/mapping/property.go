package mapping

import (
	"fmt"
	"reflect"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/schema"
)

// Shape is the relationship shape of a property.
type Shape int

const (
	// ShapeField is a scalar member stored in one column of the owner table.
	ShapeField Shape = iota
	// ShapeReference is a many-to-one member stored as a foreign key column.
	ShapeReference
	// ShapeOneToMany is an owned collection linked through a join table.
	ShapeOneToMany
	// ShapeManyToMany is a shared collection linked through a join table.
	ShapeManyToMany
)

func (s Shape) String() string {
	switch s {
	case ShapeField:
		return "field"
	case ShapeReference:
		return "reference"
	case ShapeOneToMany:
		return "one-to-many"
	case ShapeManyToMany:
		return "many-to-many"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Property is the untyped view of one member binding.
type Property interface {
	Name() string
	Shape() Shape

	validate(c *Context, owner Info) []error
	register(src *schema.Source, owner Info) error
}

// FieldProperty is a scalar property, including the key.
type FieldProperty interface {
	Property

	// FieldName is the column the member is stored in.
	FieldName() string
	DataType() string
	IsKey() bool
	AutoIncrement() bool
	NotNull() bool
	Unique() bool
	Indexed() bool
	MaxLength() int
	// Default renders the configured default as a column default literal.
	Default() *string

	// GetAsParameter reads the member of obj into an input parameter named
	// after the column.
	GetAsParameter(obj any) command.Parameter
	GetAsObject(obj any) any
	// Assign converts a raw driver value and stores it in obj.
	Assign(obj any, raw any) error
	// IsDefault reports whether the member still holds its default value.
	IsDefault(obj any) bool
}

// Field binds a scalar member of T with type V.
type Field[T, V any] struct {
	name   string
	column string
	get    func(*T) V
	set    func(*T, V)
	conv   converter
	typ    string

	key           bool
	autoIncrement bool
	notNull       bool
	unique        bool
	index         bool
	maxLength     int
	defaultValue  func() V
	nilable       bool
}

func newField[T, V any](name string, get func(*T) V, set func(*T, V)) *Field[T, V] {
	t := reflect.TypeFor[V]()
	return &Field[T, V]{
		name:    name,
		column:  name,
		get:     get,
		set:     set,
		conv:    converterFor(t),
		typ:     typeName(t),
		nilable: t.Kind() == reflect.Pointer,
	}
}

// ID declares the key property of m. The key column is never nullable.
func ID[T, K any](m *Mapping[T], name string, get func(*T) K, set func(*T, K)) *Field[T, K] {
	f := newField(name, get, set)
	f.key = true
	f.notNull = true
	if m.key != nil {
		m.errs = append(m.errs, fmt.Errorf("%w: %s: second key property %q (key is %q)", ErrInvalidMapping, m.table, name, m.key.Name()))
	} else {
		m.key = f
	}
	m.add(f)
	return f
}

// Map declares a scalar property of m.
func Map[T, V any](m *Mapping[T], name string, get func(*T) V, set func(*T, V)) *Field[T, V] {
	f := newField(name, get, set)
	m.add(f)
	return f
}

// SetFieldName sets the column name. It defaults to the property name.
func (f *Field[T, V]) SetFieldName(column string) *Field[T, V] {
	f.column = column
	return f
}

// DoNotAllowNullValues marks the column NOT NULL.
func (f *Field[T, V]) DoNotAllowNullValues() *Field[T, V] {
	f.notNull = true
	return f
}

// ThisShouldBeUnique marks the column UNIQUE.
func (f *Field[T, V]) ThisShouldBeUnique() *Field[T, V] {
	f.unique = true
	return f
}

// TurnOnIndexing requests an index on the column.
func (f *Field[T, V]) TurnOnIndexing() *Field[T, V] {
	f.index = true
	return f
}

// TurnOnAutoIncrement makes the database generate the column's value.
func (f *Field[T, V]) TurnOnAutoIncrement() *Field[T, V] {
	f.autoIncrement = true
	return f
}

// SetMaxLength limits the column length.
func (f *Field[T, V]) SetMaxLength(n int) *Field[T, V] {
	f.maxLength = n
	return f
}

// SetDefaultValue sets the value treated as unset. For the key it decides
// between insert and update.
func (f *Field[T, V]) SetDefaultValue(v V) *Field[T, V] {
	f.defaultValue = func() V { return v }
	return f
}

func (f *Field[T, V]) Name() string        { return f.name }
func (f *Field[T, V]) Shape() Shape        { return ShapeField }
func (f *Field[T, V]) FieldName() string   { return f.column }
func (f *Field[T, V]) DataType() string    { return f.typ }
func (f *Field[T, V]) IsKey() bool         { return f.key }
func (f *Field[T, V]) AutoIncrement() bool { return f.autoIncrement }
func (f *Field[T, V]) NotNull() bool       { return f.notNull }
func (f *Field[T, V]) Unique() bool        { return f.unique }
func (f *Field[T, V]) Indexed() bool       { return f.index }
func (f *Field[T, V]) MaxLength() int      { return f.maxLength }

func (f *Field[T, V]) Default() *string {
	if f.defaultValue == nil || f.key {
		return nil
	}
	return sqlLiteral(f.defaultValue())
}

// Get returns the member value of obj.
func (f *Field[T, V]) Get(obj *T) V { return f.get(obj) }

// Set stores v in obj.
func (f *Field[T, V]) Set(obj *T, v V) { f.set(obj, v) }

func (f *Field[T, V]) GetAsObject(obj any) any {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return nil
	}
	v := any(f.get(t))
	if f.nilable && reflect.ValueOf(v).IsNil() {
		return nil
	}
	return v
}

func (f *Field[T, V]) GetAsParameter(obj any) command.Parameter {
	return command.In(f.column, f.typ, f.GetAsObject(obj))
}

func (f *Field[T, V]) Assign(obj any, raw any) error {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return fmt.Errorf("assign %s: got %T, want *%s", f.name, obj, reflect.TypeFor[T]())
	}
	if raw == nil {
		var zero V
		f.set(t, zero)
		return nil
	}
	v, err := f.conv(raw)
	if err != nil {
		return fmt.Errorf("assign %s: %w", f.name, err)
	}
	f.set(t, v.(V))
	return nil
}

func (f *Field[T, V]) IsDefault(obj any) bool {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return true
	}
	var def V
	if f.defaultValue != nil {
		def = f.defaultValue()
	}
	return reflect.DeepEqual(f.get(t), def)
}

func (f *Field[T, V]) validate(_ *Context, owner Info) []error {
	var errs []error
	if f.name == "" {
		errs = append(errs, fmt.Errorf("%w: %s: property name is empty", ErrInvalidMapping, owner.Table()))
	}
	if f.column == "" {
		errs = append(errs, fmt.Errorf("%w: %s.%s: field name is empty", ErrInvalidMapping, owner.Table(), f.name))
	}
	if f.get == nil || f.set == nil {
		errs = append(errs, fmt.Errorf("%w: %s.%s: getter and setter are required", ErrInvalidMapping, owner.Table(), f.name))
	}
	if f.autoIncrement && f.typ != "int64" && f.typ != "int32" {
		errs = append(errs, fmt.Errorf("%w: %s.%s: auto-increment needs an integer type, have %s", ErrInvalidMapping, owner.Table(), f.name, f.typ))
	}
	return errs
}

func (f *Field[T, V]) register(src *schema.Source, owner Info) error {
	table := locateTable(src, owner.Table())
	if table.Column(f.column) != nil {
		return nil
	}
	_, err := table.AddColumn(schema.ColumnDef{
		Name:       f.column,
		DataType:   f.typ,
		Length:     f.maxLength,
		Nullable:   !f.notNull,
		Identity:   f.autoIncrement,
		Index:      f.index,
		PrimaryKey: f.key,
		Unique:     f.unique,
		Default:    f.Default(),
	})
	return err
}

func locateTable(src *schema.Source, name string) *schema.Table {
	if t := src.Table(name); t != nil {
		return t
	}
	return src.AddTable(name)
}
