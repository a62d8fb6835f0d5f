// Package command holds the unit of work executed against a storage source:
// parameterized SQL text or a stored procedure call, plus the callback that
// pushes result rows back into the object the command was built for.
package command

import (
	"reflect"
	"strconv"
)

// Direction tells whether a parameter is sent, received, or both.
type Direction int

const (
	Input Direction = iota
	Output
	InputOutput
	ReturnValue
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	case InputOutput:
		return "inputoutput"
	case ReturnValue:
		return "return"
	default:
		return "direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Sends reports whether the parameter's value is bound into the statement.
func (d Direction) Sends() bool { return d == Input || d == InputOutput }

// Receives reports whether the parameter is filled from the result.
func (d Direction) Receives() bool { return d != Input }

// Parameter is a named, typed bind value. Type is the logical Go type name
// used across the schema model ("int64", "string", "time.Time", "uuid", ...).
type Parameter struct {
	Name      string
	Type      string
	Direction Direction
	Value     any
}

// In builds an input parameter.
func In(name, typ string, value any) Parameter {
	return Parameter{Name: name, Type: typ, Direction: Input, Value: value}
}

// Out builds an output parameter. For identity values the name is the column
// the value is read back from.
func Out(name, typ string) Parameter {
	return Parameter{Name: name, Type: typ, Direction: Output}
}

// Equal reports whether two parameters share name, type, direction and value.
func (p Parameter) Equal(o Parameter) bool {
	return p.Name == o.Name &&
		p.Type == o.Type &&
		p.Direction == o.Direction &&
		reflect.DeepEqual(p.Value, o.Value)
}

// IsDeferred reports whether the value is resolved only at execution time.
func (p Parameter) IsDeferred() bool {
	_, ok := p.Value.(Deferred)
	return ok
}

// Resolve returns the bindable value, resolving a Deferred if necessary.
func (p Parameter) Resolve() (any, error) {
	if d, ok := p.Value.(Deferred); ok {
		return d.Resolve()
	}
	return p.Value, nil
}

// Deferred is a parameter value that is only known once earlier commands in
// the same batch have run, such as an identity generated for a related row.
type Deferred interface {
	Resolve() (any, error)
}

// DeferredFunc adapts a function to the Deferred interface.
type DeferredFunc func() (any, error)

// Resolve calls f.
func (f DeferredFunc) Resolve() (any, error) { return f() }
