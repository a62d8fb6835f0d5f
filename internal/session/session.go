// Package session is the facade applications use: it plans cascading saves
// and deletes across relationships, runs queries and materializes typed
// results.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/faucetdb/sluice/internal/batch"
	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/mapping"
	"github.com/faucetdb/sluice/internal/provider"
)

var (
	// ErrNotFound is returned by Any when nothing matches.
	ErrNotFound = errors.New("not found")
	// ErrUnsaved is returned when an object without a key is referenced by
	// a relationship that does not cascade, or is deleted.
	ErrUnsaved = errors.New("object has not been saved")
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Batches log through it at Debug.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTransactions runs every batch the session executes in a transaction.
func WithTransactions(enabled bool) Option {
	return func(s *Session) {
		s.tx = enabled
	}
}

// Session binds a connector to a set of mappings that have been set up.
type Session struct {
	mappings *mapping.Context
	provider *provider.Provider
	logger   *slog.Logger
	tx       bool
}

// New creates a session on conn. mappings must have been set up.
func New(conn connector.Connector, mappings *mapping.Context, opts ...Option) *Session {
	s := &Session{
		mappings: mappings,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.provider = provider.New(conn, provider.WithLogger(s.logger))
	return s
}

// Provider returns the query provider the session plans with.
func (s *Session) Provider() *provider.Provider { return s.provider }

// Mappings returns the mapping context.
func (s *Session) Mappings() *mapping.Context { return s.mappings }

// Execute runs b, inside a transaction when the session is configured so.
func (s *Session) Execute(ctx context.Context, b *batch.Batch) ([][]command.Row, error) {
	if s.tx {
		return b.ExecuteInTransaction(ctx)
	}
	return b.Execute(ctx)
}

func generator[T any](s *Session) (*provider.Generator[T], *mapping.Mapping[T], error) {
	m, err := mapping.Lookup[T](s.mappings)
	if err != nil {
		return nil, nil, err
	}
	return provider.Generate(s.provider, m), m, nil
}

// SaveBatch plans the save of obj and everything it cascades to without
// executing it. Keys that are set but not generated are checked for
// existence, which runs a count query.
func SaveBatch[T any](ctx context.Context, s *Session, obj *T) (*batch.Batch, error) {
	_, m, err := generator[T](s)
	if err != nil {
		return nil, err
	}
	b := s.provider.NewBatch()
	if err := s.planSave(ctx, b, m, obj, make(map[any]bool)); err != nil {
		return nil, err
	}
	return b, nil
}

// Save saves obj and cascades to its relationships. Generated keys are
// stored back into the objects.
func Save[T any](ctx context.Context, s *Session, obj *T) error {
	b, err := SaveBatch(ctx, s, obj)
	if err != nil {
		return err
	}
	_, err = s.Execute(ctx, b)
	return err
}

// DeleteBatch plans the delete of obj, its join rows and its owned children
// without executing it.
func DeleteBatch[T any](ctx context.Context, s *Session, obj *T) (*batch.Batch, error) {
	_, m, err := generator[T](s)
	if err != nil {
		return nil, err
	}
	if m.Key().IsDefault(obj) {
		return nil, fmt.Errorf("delete %s: %w", m.Table(), ErrUnsaved)
	}
	b := s.provider.NewBatch()
	if err := s.planDelete(ctx, b, m, obj, nil, make(map[any]bool)); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete deletes obj after its join rows and owned children.
func Delete[T any](ctx context.Context, s *Session, obj *T) error {
	b, err := DeleteBatch(ctx, s, obj)
	if err != nil {
		return err
	}
	_, err = s.Execute(ctx, b)
	return err
}

// All returns every T matching where, in key order.
func All[T any](ctx context.Context, s *Session, where ...provider.Filter) ([]*T, error) {
	g, m, err := generator[T](s)
	if err != nil {
		return nil, err
	}
	out := []*T{}
	b, err := g.All(ctx, &out, where...)
	if err != nil {
		return nil, err
	}
	return query(ctx, s, b, m, &out)
}

// Any returns the first T matching where, or ErrNotFound.
func Any[T any](ctx context.Context, s *Session, where ...provider.Filter) (*T, error) {
	g, m, err := generator[T](s)
	if err != nil {
		return nil, err
	}
	var out []*T
	b, err := g.Any(ctx, &out, where...)
	if err != nil {
		return nil, err
	}
	out, err = query(ctx, s, b, m, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Table(), ErrNotFound)
	}
	return out[0], nil
}

// Paged returns page currentPage (zero-based) of pageSize objects.
func Paged[T any](ctx context.Context, s *Session, pageSize, currentPage int, where ...provider.Filter) ([]*T, error) {
	g, m, err := generator[T](s)
	if err != nil {
		return nil, err
	}
	out := []*T{}
	b, err := g.Paged(ctx, &out, pageSize, currentPage, where...)
	if err != nil {
		return nil, err
	}
	return query(ctx, s, b, m, &out)
}

// PageCount returns the number of pages of pageSize matching where.
func PageCount[T any](ctx context.Context, s *Session, pageSize int, where ...provider.Filter) (int, error) {
	g, _, err := generator[T](s)
	if err != nil {
		return 0, err
	}
	var pages int
	b, err := g.PageCount(ctx, &pages, pageSize, where...)
	if err != nil {
		return 0, err
	}
	if _, err := s.Execute(ctx, b); err != nil {
		return 0, err
	}
	return pages, nil
}

// LoadProperty fills the relationship name of obj from storage.
func LoadProperty[T any](ctx context.Context, s *Session, obj *T, name string) error {
	g, _, err := generator[T](s)
	if err != nil {
		return err
	}
	b, err := g.LoadProperty(ctx, obj, name)
	if err != nil {
		return err
	}
	_, err = s.Execute(ctx, b)
	return err
}

// query executes b, which fills out, then loads the relationships marked
// LoadWithOwner in one follow-up batch.
func query[T any](ctx context.Context, s *Session, b *batch.Batch, m *mapping.Mapping[T], out *[]*T) ([]*T, error) {
	if _, err := s.Execute(ctx, b); err != nil {
		return nil, err
	}
	objs := make([]any, len(*out))
	for i, o := range *out {
		objs[i] = o
	}
	if err := s.loadWithOwner(ctx, m, objs); err != nil {
		return nil, err
	}
	return *out, nil
}

func (s *Session) loadWithOwner(ctx context.Context, info mapping.Info, objs []any) error {
	g := s.provider.For(info)
	follow := s.provider.NewBatch()
	for _, rel := range info.Relationships() {
		if !rel.LoadsWithOwner() {
			continue
		}
		for _, obj := range objs {
			lb, err := g.LoadProperty(ctx, obj, rel.Name())
			if err != nil {
				return err
			}
			follow.AddBatch(lb)
		}
	}
	if follow.Len() == 0 {
		return nil
	}
	_, err := s.Execute(ctx, follow)
	return err
}
