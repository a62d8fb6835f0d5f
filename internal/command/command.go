package command

import (
	"database/sql"
	"fmt"
	"strconv"
)

// Kind distinguishes literal SQL text from a stored procedure name.
type Kind int

const (
	Text Kind = iota
	StoredProcedure
)

func (k Kind) String() string {
	if k == StoredProcedure {
		return "procedure"
	}
	return "text"
}

// Row is one result row keyed by column name.
type Row map[string]any

// Callback receives the rows produced by a command together with the object
// the command was built for.
type Callback func(obj any, rows []Row) error

// Command is one unit of work. Once handed to a batch it is not modified.
//
// Callback runs as soon as the command has run, so values it stores in Object
// are visible to later commands of the same batch. Commit runs once the work
// is durable: after the commit of a transaction, or after the batch stopped
// when it ran without one. Rollback undoes what Callback changed in Object
// when the transaction the command ran in is rolled back.
type Command struct {
	// Text is the SQL statement, or the procedure name when Kind is StoredProcedure.
	Text       string
	Kind       Kind
	Parameters []Parameter
	Callback   Callback
	Commit     func(obj any)
	Rollback   func(obj any) error
	Object     any
	// MustAffectRows fails the command when it changes no row.
	MustAffectRows bool
}

// New creates a command with no parameters.
func New(text string, kind Kind) *Command {
	return &Command{Text: text, Kind: kind}
}

// AddParameter appends p and returns the name it was stored under. When the
// name is already taken a numeric suffix is appended ("ID", "ID1", "ID2", ...).
func (c *Command) AddParameter(p Parameter) string {
	name := p.Name
	for i := 1; c.Parameter(name) != nil; i++ {
		name = p.Name + strconv.Itoa(i)
	}
	p.Name = name
	c.Parameters = append(c.Parameters, p)
	return name
}

// Bind appends p and returns its placeholder as rendered by placeholder. The
// position passed to placeholder is the 1-based index among sent parameters.
func (c *Command) Bind(placeholder func(name string, position int) string, p Parameter) string {
	name := c.AddParameter(p)
	return placeholder(name, c.inputCount())
}

func (c *Command) inputCount() int {
	n := 0
	for _, p := range c.Parameters {
		if p.Direction.Sends() {
			n++
		}
	}
	return n
}

// Parameter returns the parameter with the given name, or nil.
func (c *Command) Parameter(name string) *Parameter {
	for i := range c.Parameters {
		if c.Parameters[i].Name == name {
			return &c.Parameters[i]
		}
	}
	return nil
}

// Inputs returns the parameters bound into the statement, in order.
func (c *Command) Inputs() []Parameter {
	var in []Parameter
	for _, p := range c.Parameters {
		if p.Direction.Sends() {
			in = append(in, p)
		}
	}
	return in
}

// Outputs returns the parameters filled from the result, in order.
func (c *Command) Outputs() []Parameter {
	var out []Parameter
	for _, p := range c.Parameters {
		if p.Direction.Receives() {
			out = append(out, p)
		}
	}
	return out
}

// HasOutput reports whether any parameter receives a value.
func (c *Command) HasOutput() bool {
	return len(c.Outputs()) > 0
}

// Args resolves every input parameter into driver arguments. Named dialects
// receive sql.NamedArg values; positional ones receive plain values.
func (c *Command) Args(named bool) ([]any, error) {
	args := make([]any, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		if !p.Direction.Sends() {
			continue
		}
		v, err := p.Resolve()
		if err != nil {
			return nil, fmt.Errorf("resolve parameter %q: %w", p.Name, err)
		}
		if named {
			args = append(args, sql.Named(p.Name, v))
		} else {
			args = append(args, v)
		}
	}
	return args, nil
}

// Deduplicable reports whether the command may be collapsed with an equal one.
// Commands that read values back or depend on values produced earlier in the
// batch are never collapsed.
func (c *Command) Deduplicable() bool {
	for _, p := range c.Parameters {
		if p.Direction.Receives() || p.IsDeferred() {
			return false
		}
	}
	return true
}

// Equal reports structural equality: same text, kind and parameter list.
// Callbacks and source objects are not compared.
func (c *Command) Equal(o *Command) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil {
		return false
	}
	if c.Text != o.Text || c.Kind != o.Kind || len(c.Parameters) != len(o.Parameters) {
		return false
	}
	for i := range c.Parameters {
		if !c.Parameters[i].Equal(o.Parameters[i]) {
			return false
		}
	}
	return true
}

func (c *Command) String() string {
	return fmt.Sprintf("%s %q (%d params)", c.Kind, c.Text, len(c.Parameters))
}
