package mapping

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/faucetdb/sluice/internal/schema"
)

// Context holds the registered mappings, one per type. It is filled during
// start-up and read-only once Setup has run.
type Context struct {
	byType map[reflect.Type]Info
	order  []Info
}

// NewContext creates an empty mapping context.
func NewContext() *Context {
	return &Context{byType: make(map[reflect.Type]Info)}
}

// Register adds m to c. A type can be registered once.
func Register[T any](c *Context, m *Mapping[T]) error {
	t := reflect.TypeFor[T]()
	if _, ok := c.byType[t]; ok {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidMapping, t)
	}
	c.byType[t] = m
	c.order = append(c.order, m)
	return nil
}

// Lookup returns the mapping registered for T.
func Lookup[T any](c *Context) (*Mapping[T], error) {
	info, err := c.Info(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return info.(*Mapping[T]), nil
}

// Info returns the mapping registered for t.
func (c *Context) Info(t reflect.Type) (Info, error) {
	if info, ok := c.byType[t]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnregistered, t)
}

// Mappings returns the registered mappings in registration order.
func (c *Context) Mappings() []Info {
	return c.order
}

// Setup validates every mapping, registers the resulting tables and columns
// in src and resolves foreign keys. Every configuration error is reported at
// once; nothing is added to src when validation fails.
func (c *Context) Setup(src *schema.Source) error {
	var errs []error
	for _, info := range c.order {
		m, ok := info.(interface{ validate(*Context) []error })
		if !ok {
			continue
		}
		errs = append(errs, m.validate(c)...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, info := range c.order {
		if err := info.AddToQueryProvider(src); err != nil {
			return err
		}
	}
	return src.SetupForeignKeys()
}
