package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/schema"
)

// Relationship is a property that links the owner to objects of another
// mapped type.
type Relationship interface {
	Property

	// Foreign is the mapping of the related type, resolved during Setup.
	Foreign() Info
	Cascade() bool
	LoadsWithOwner() bool
	// Related returns the related objects of obj (pointers to the foreign type).
	Related(obj any) []any
	SetRelated(obj any, items []any) error
}

// ReferenceProperty is a many-to-one relationship stored as a foreign key
// column on the owner table.
type ReferenceProperty interface {
	Relationship

	FieldName() string
	DataType() string
	// GetAsParameter binds the related object's key. When the related object
	// is not saved yet the value is deferred until the command executes.
	GetAsParameter(obj any) command.Parameter
	// Assign stores a stub of the related type carrying only the raw key.
	Assign(obj any, raw any) error
}

// JoinProperty is a collection relationship stored in a join table with one
// foreign key to each side.
type JoinProperty interface {
	Relationship

	JoinTable() string
	OwnerColumn() string
	ForeignColumn() string
	// Owned reports whether the related objects belong to the owner
	// (one-to-many) and are deleted with it.
	Owned() bool
}

// Ref binds a *R member of T.
type Ref[T, R any] struct {
	name    string
	column  string
	get     func(*T) *R
	set     func(*T, *R)
	notNull bool
	index   bool
	cascade bool
	eager   bool
	foreign Info
}

// Reference declares a many-to-one property of m. The foreign key column
// defaults to the property name followed by the foreign key column name.
func Reference[T, R any](m *Mapping[T], name string, get func(*T) *R, set func(*T, *R)) *Ref[T, R] {
	r := &Ref[T, R]{name: name, get: get, set: set}
	m.add(r)
	return r
}

// SetFieldName sets the foreign key column name.
func (r *Ref[T, R]) SetFieldName(column string) *Ref[T, R] {
	r.column = column
	return r
}

// DoNotAllowNullValues marks the foreign key column NOT NULL.
func (r *Ref[T, R]) DoNotAllowNullValues() *Ref[T, R] {
	r.notNull = true
	return r
}

// TurnOnIndexing requests an index on the foreign key column.
func (r *Ref[T, R]) TurnOnIndexing() *Ref[T, R] {
	r.index = true
	return r
}

// TurnOnCascade saves the related object before the owner.
func (r *Ref[T, R]) TurnOnCascade() *Ref[T, R] {
	r.cascade = true
	return r
}

// LoadWithOwner loads the related object whenever the owner is queried.
func (r *Ref[T, R]) LoadWithOwner() *Ref[T, R] {
	r.eager = true
	return r
}

func (r *Ref[T, R]) Name() string         { return r.name }
func (r *Ref[T, R]) Shape() Shape         { return ShapeReference }
func (r *Ref[T, R]) Foreign() Info        { return r.foreign }
func (r *Ref[T, R]) Cascade() bool        { return r.cascade }
func (r *Ref[T, R]) LoadsWithOwner() bool { return r.eager }
func (r *Ref[T, R]) FieldName() string    { return r.column }

func (r *Ref[T, R]) DataType() string {
	if r.foreign == nil || r.foreign.Key() == nil {
		return ""
	}
	return r.foreign.Key().DataType()
}

func (r *Ref[T, R]) Related(obj any) []any {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return nil
	}
	if rel := r.get(t); rel != nil {
		return []any{rel}
	}
	return nil
}

func (r *Ref[T, R]) SetRelated(obj any, items []any) error {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return fmt.Errorf("set %s: got %T, want *%s", r.name, obj, reflect.TypeFor[T]())
	}
	if len(items) == 0 {
		r.set(t, nil)
		return nil
	}
	rel, ok := items[0].(*R)
	if !ok {
		return fmt.Errorf("set %s: got %T, want *%s", r.name, items[0], reflect.TypeFor[R]())
	}
	r.set(t, rel)
	return nil
}

func (r *Ref[T, R]) GetAsParameter(obj any) command.Parameter {
	typ := r.DataType()
	t, ok := obj.(*T)
	if !ok || t == nil {
		return command.In(r.column, typ, nil)
	}
	rel := r.get(t)
	if rel == nil {
		return command.In(r.column, typ, nil)
	}
	key := r.foreign.Key()
	if !key.IsDefault(rel) {
		return command.In(r.column, typ, key.GetAsObject(rel))
	}
	return command.In(r.column, typ, command.DeferredFunc(func() (any, error) {
		if key.IsDefault(rel) {
			return nil, fmt.Errorf("%s: referenced %s has no key", r.name, r.foreign.Table())
		}
		return key.GetAsObject(rel), nil
	}))
}

func (r *Ref[T, R]) Assign(obj any, raw any) error {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return fmt.Errorf("assign %s: got %T, want *%s", r.name, obj, reflect.TypeFor[T]())
	}
	if raw == nil {
		r.set(t, nil)
		return nil
	}
	stub := new(R)
	if err := r.foreign.Key().Assign(stub, raw); err != nil {
		return fmt.Errorf("assign %s: %w", r.name, err)
	}
	r.set(t, stub)
	return nil
}

func (r *Ref[T, R]) validate(c *Context, owner Info) []error {
	var errs []error
	if r.name == "" {
		errs = append(errs, fmt.Errorf("%w: %s: property name is empty", ErrInvalidMapping, owner.Table()))
	}
	if r.get == nil || r.set == nil {
		errs = append(errs, fmt.Errorf("%w: %s.%s: getter and setter are required", ErrInvalidMapping, owner.Table(), r.name))
	}
	foreign, err := c.Info(reflect.TypeFor[R]())
	if err != nil {
		return append(errs, fmt.Errorf("%w: %s.%s: %w", ErrInvalidMapping, owner.Table(), r.name, err))
	}
	r.foreign = foreign
	if foreign.Key() == nil {
		return errs
	}
	if r.column == "" {
		r.column = r.name + foreign.Key().FieldName()
	}
	return errs
}

func (r *Ref[T, R]) register(src *schema.Source, owner Info) error {
	table := locateTable(src, owner.Table())
	if table.Column(r.column) != nil {
		return nil
	}
	_, err := table.AddColumn(schema.ColumnDef{
		Name:             r.column,
		DataType:         r.DataType(),
		Nullable:         !r.notNull,
		Index:            r.index,
		ForeignKeyTable:  r.foreign.Table(),
		ForeignKeyColumn: r.foreign.Key().FieldName(),
	})
	return err
}

// Collection binds a []*R member of T through a join table.
type Collection[T, R any] struct {
	name          string
	table         string
	shape         Shape
	get           func(*T) []*R
	set           func(*T, []*R)
	cascade       bool
	eager         bool
	owner         Info
	foreign       Info
	ownerColumn   string
	foreignColumn string
}

// OneToMany declares an owned collection of m. Children are saved after the
// owner and deleted before it when cascade is on.
func OneToMany[T, R any](m *Mapping[T], name string, get func(*T) []*R, set func(*T, []*R)) *Collection[T, R] {
	c := &Collection[T, R]{name: name, shape: ShapeOneToMany, get: get, set: set}
	m.add(c)
	return c
}

// ManyToMany declares a shared collection of m. Only join rows are removed
// when the owner is deleted.
func ManyToMany[T, R any](m *Mapping[T], name string, get func(*T) []*R, set func(*T, []*R)) *Collection[T, R] {
	c := &Collection[T, R]{name: name, shape: ShapeManyToMany, get: get, set: set}
	m.add(c)
	return c
}

// SetTableName sets the join table name. It defaults to the owner table and
// the property name joined by an underscore.
func (c *Collection[T, R]) SetTableName(table string) *Collection[T, R] {
	c.table = table
	return c
}

// TurnOnCascade saves related objects after the owner.
func (c *Collection[T, R]) TurnOnCascade() *Collection[T, R] {
	c.cascade = true
	return c
}

// LoadWithOwner loads the collection whenever the owner is queried.
func (c *Collection[T, R]) LoadWithOwner() *Collection[T, R] {
	c.eager = true
	return c
}

func (c *Collection[T, R]) Name() string          { return c.name }
func (c *Collection[T, R]) Shape() Shape          { return c.shape }
func (c *Collection[T, R]) Foreign() Info         { return c.foreign }
func (c *Collection[T, R]) Cascade() bool         { return c.cascade }
func (c *Collection[T, R]) LoadsWithOwner() bool  { return c.eager }
func (c *Collection[T, R]) JoinTable() string     { return c.table }
func (c *Collection[T, R]) OwnerColumn() string   { return c.ownerColumn }
func (c *Collection[T, R]) ForeignColumn() string { return c.foreignColumn }
func (c *Collection[T, R]) Owned() bool           { return c.shape == ShapeOneToMany }

func (c *Collection[T, R]) Related(obj any) []any {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return nil
	}
	items := c.get(t)
	out := make([]any, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

func (c *Collection[T, R]) SetRelated(obj any, items []any) error {
	t, ok := obj.(*T)
	if !ok || t == nil {
		return fmt.Errorf("set %s: got %T, want *%s", c.name, obj, reflect.TypeFor[T]())
	}
	out := make([]*R, 0, len(items))
	for _, it := range items {
		rel, ok := it.(*R)
		if !ok {
			return fmt.Errorf("set %s: got %T, want *%s", c.name, it, reflect.TypeFor[R]())
		}
		out = append(out, rel)
	}
	c.set(t, out)
	return nil
}

func (c *Collection[T, R]) validate(mc *Context, owner Info) []error {
	var errs []error
	if c.name == "" {
		errs = append(errs, fmt.Errorf("%w: %s: property name is empty", ErrInvalidMapping, owner.Table()))
	}
	if c.get == nil || c.set == nil {
		errs = append(errs, fmt.Errorf("%w: %s.%s: getter and setter are required", ErrInvalidMapping, owner.Table(), c.name))
	}
	foreign, err := mc.Info(reflect.TypeFor[R]())
	if err != nil {
		return append(errs, fmt.Errorf("%w: %s.%s: %w", ErrInvalidMapping, owner.Table(), c.name, err))
	}
	c.owner = owner
	c.foreign = foreign
	if owner.Key() == nil || foreign.Key() == nil {
		return errs
	}
	if c.table == "" {
		c.table = owner.Table() + "_" + c.name
	}
	c.ownerColumn = owner.Table() + owner.Key().FieldName()
	c.foreignColumn = foreign.Table() + foreign.Key().FieldName()
	if strings.EqualFold(c.ownerColumn, c.foreignColumn) {
		c.foreignColumn += "2"
	}
	return errs
}

func (c *Collection[T, R]) register(src *schema.Source, _ Info) error {
	table := locateTable(src, c.table)
	if table.Column(c.ownerColumn) == nil {
		_, err := table.AddColumn(schema.ColumnDef{
			Name:             c.ownerColumn,
			DataType:         c.owner.Key().DataType(),
			Index:            true,
			ForeignKeyTable:  c.owner.Table(),
			ForeignKeyColumn: c.owner.Key().FieldName(),
			OnDeleteCascade:  true,
		})
		if err != nil {
			return err
		}
	}
	if table.Column(c.foreignColumn) == nil {
		_, err := table.AddColumn(schema.ColumnDef{
			Name:             c.foreignColumn,
			DataType:         c.foreign.Key().DataType(),
			Index:            true,
			Unique:           c.Owned(),
			ForeignKeyTable:  c.foreign.Table(),
			ForeignKeyColumn: c.foreign.Key().FieldName(),
			OnDeleteCascade:  true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
