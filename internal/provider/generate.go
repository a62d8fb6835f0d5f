package provider

import (
	"context"
	"fmt"

	"github.com/faucetdb/sluice/internal/batch"
	"github.com/faucetdb/sluice/internal/mapping"
)

// Generator is the typed generator for objects of T.
type Generator[T any] struct {
	g *ObjectGenerator
}

// Generate returns the generator for m on p.
func Generate[T any](p *Provider, m *mapping.Mapping[T]) *Generator[T] {
	return &Generator[T]{g: p.For(m)}
}

// Objects returns the untyped generator behind g.
func (g *Generator[T]) Objects() *ObjectGenerator { return g.g }

func (g *Generator[T]) Insert(ctx context.Context, obj *T) (*batch.Batch, error) {
	return g.g.Insert(ctx, obj)
}

func (g *Generator[T]) Update(ctx context.Context, obj *T) (*batch.Batch, error) {
	return g.g.Update(ctx, obj)
}

func (g *Generator[T]) Delete(ctx context.Context, obj *T) (*batch.Batch, error) {
	return g.g.Delete(ctx, obj)
}

func (g *Generator[T]) Save(ctx context.Context, obj *T) (*batch.Batch, error) {
	return g.g.Save(ctx, obj)
}

func (g *Generator[T]) JoinsSave(ctx context.Context, obj *T) (*batch.Batch, error) {
	return g.g.JoinsSave(ctx, obj)
}

func (g *Generator[T]) JoinsDelete(ctx context.Context, obj *T) (*batch.Batch, error) {
	return g.g.JoinsDelete(ctx, obj)
}

func (g *Generator[T]) LoadProperty(ctx context.Context, obj *T, name string) (*batch.Batch, error) {
	return g.g.LoadProperty(ctx, obj, name)
}

// All queries every object matching where and appends them to into.
func (g *Generator[T]) All(ctx context.Context, into *[]*T, where ...Filter) (*batch.Batch, error) {
	return g.g.Select(ctx, Query{Where: where}, appender(into))
}

// Any queries the first object matching where.
func (g *Generator[T]) Any(ctx context.Context, into *[]*T, where ...Filter) (*batch.Batch, error) {
	return g.g.Select(ctx, Query{Where: where, Limit: 1}, appender(into))
}

// Paged queries page currentPage (zero-based) of pageSize objects in key
// order.
func (g *Generator[T]) Paged(ctx context.Context, into *[]*T, pageSize, currentPage int, where ...Filter) (*batch.Batch, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if currentPage < 0 {
		return nil, fmt.Errorf("current page must not be negative, got %d", currentPage)
	}
	return g.g.Select(ctx, Query{
		Where:  where,
		Limit:  pageSize,
		Offset: pageSize * currentPage,
	}, appender(into))
}

// PageCount counts the objects matching where and stores the number of pages
// of pageSize in into.
func (g *Generator[T]) PageCount(ctx context.Context, into *int, pageSize int, where ...Filter) (*batch.Batch, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	return g.g.Count(ctx, where, func(total int64) {
		if into != nil {
			*into = PageTotal(total, pageSize)
		}
	})
}

func appender[T any](into *[]*T) func(obj any) error {
	return func(obj any) error {
		t, ok := obj.(*T)
		if !ok {
			return fmt.Errorf("unexpected object %T", obj)
		}
		if into != nil {
			*into = append(*into, t)
		}
		return nil
	}
}
