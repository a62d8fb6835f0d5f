// Package provider compiles mapped objects and queries into commands for one
// connector. Every operation returns a batch; nothing runs until the batch is
// executed.
package provider

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cast"

	"github.com/faucetdb/sluice/internal/batch"
	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/mapping"
)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger handed to every batch the provider creates.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithJoinTracker shares a join tracker between providers.
func WithJoinTracker(t *JoinTracker) Option {
	return func(p *Provider) {
		if t != nil {
			p.joins = t
		}
	}
}

// Provider is the query provider for one connector.
type Provider struct {
	conn   connector.Connector
	joins  *JoinTracker
	logger *slog.Logger
}

// New creates a provider for conn.
func New(conn connector.Connector, opts ...Option) *Provider {
	p := &Provider{
		conn:   conn,
		joins:  NewJoinTracker(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connector returns the connector commands are built for.
func (p *Provider) Connector() connector.Connector { return p.conn }

// Joins returns the tracker of join rows known to exist.
func (p *Provider) Joins() *JoinTracker { return p.joins }

// NewBatch creates an empty batch on the provider's connector.
func (p *Provider) NewBatch() *batch.Batch {
	return batch.New(p.conn, batch.WithLogger(p.logger))
}

// For returns the untyped generator for info.
func (p *Provider) For(info mapping.Info) *ObjectGenerator {
	return &ObjectGenerator{p: p, info: info}
}

// Filter is an equality condition on a property or column. A nil value
// matches NULL.
type Filter struct {
	Column string
	Value  any
}

// Where builds a filter. Column may name a property or a column.
func Where(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Query selects objects of one mapping. Results are ordered by key.
type Query struct {
	Where  []Filter
	Limit  int
	Offset int
}

// Total reads the count produced by a count command.
func Total(rows []command.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("count returned no rows")
	}
	raw, ok := value(rows[0], "Total")
	if !ok {
		return 0, fmt.Errorf("count row has no Total column")
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	return cast.ToInt64E(raw)
}

// PageTotal returns the number of pages of pageSize needed for total rows.
func PageTotal(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func value(row command.Row, column string) (any, bool) {
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

// keyParameter binds the key of obj. An unset key is resolved when the
// command runs, after the insert that generates it.
func keyParameter(name string, key mapping.FieldProperty, obj any) command.Parameter {
	if !key.IsDefault(obj) {
		return command.In(name, key.DataType(), key.GetAsObject(obj))
	}
	return command.In(name, key.DataType(), command.DeferredFunc(func() (any, error) {
		if key.IsDefault(obj) {
			return nil, fmt.Errorf("%s has no key yet", key.FieldName())
		}
		return key.GetAsObject(obj), nil
	}))
}
