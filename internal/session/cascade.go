package session

import (
	"context"
	"fmt"

	"github.com/faucetdb/sluice/internal/batch"
	"github.com/faucetdb/sluice/internal/mapping"
	"github.com/faucetdb/sluice/internal/provider"
)

// planSave appends the save of obj to b in dependency order: cascaded
// references first, then the object itself, then cascaded collection
// members, then the join rows. visited guards against cycles in the graph.
func (s *Session) planSave(ctx context.Context, b *batch.Batch, info mapping.Info, obj any, visited map[any]bool) error {
	if visited[obj] {
		return nil
	}
	visited[obj] = true

	for _, ref := range info.References() {
		foreign := ref.Foreign()
		for _, rel := range ref.Related(obj) {
			if ref.Cascade() {
				if err := s.planSave(ctx, b, foreign, rel, visited); err != nil {
					return err
				}
				continue
			}
			if foreign.Key().IsDefault(rel) && !visited[rel] {
				return fmt.Errorf("%s.%s: %w", info.Table(), ref.Name(), ErrUnsaved)
			}
		}
	}

	own, err := s.ownCommand(ctx, info, obj)
	if err != nil {
		return err
	}
	b.AddBatch(own)

	for _, rel := range info.Joins() {
		foreign := rel.Foreign()
		for _, item := range rel.Related(obj) {
			if rel.Cascade() {
				if err := s.planSave(ctx, b, foreign, item, visited); err != nil {
					return err
				}
				continue
			}
			if foreign.Key().IsDefault(item) && !visited[item] {
				return fmt.Errorf("%s.%s: %w", info.Table(), rel.Name(), ErrUnsaved)
			}
		}
	}

	joins, err := s.provider.For(info).JoinsSave(ctx, obj)
	if err != nil {
		return err
	}
	b.AddBatch(joins)
	return nil
}

// ownCommand picks insert or update for obj. A key the database does not
// generate may be set before the first save, so its row is looked up.
func (s *Session) ownCommand(ctx context.Context, info mapping.Info, obj any) (*batch.Batch, error) {
	g := s.provider.For(info)
	key := info.Key()
	if key.IsDefault(obj) {
		return g.Insert(ctx, obj)
	}
	if key.AutoIncrement() {
		return g.Update(ctx, obj)
	}

	var found bool
	check, err := g.Exists(ctx, obj, &found)
	if err != nil {
		return nil, err
	}
	if _, err := check.Execute(ctx); err != nil {
		return nil, fmt.Errorf("check %s exists: %w", info.Table(), err)
	}
	if found {
		return g.Update(ctx, obj)
	}
	return g.Insert(ctx, obj)
}

// planDelete appends the delete of obj to b: its join rows, the join rows of
// other collections that hold it, then its owned children when cascade is on,
// then its own row. via is the collection obj is being deleted through; its
// rows are already covered by the owner's join delete.
func (s *Session) planDelete(ctx context.Context, b *batch.Batch, info mapping.Info, obj any, via mapping.JoinProperty, visited map[any]bool) error {
	if visited[obj] {
		return nil
	}
	visited[obj] = true
	g := s.provider.For(info)

	joins, err := g.JoinsDelete(ctx, obj)
	if err != nil {
		return err
	}
	b.AddBatch(joins)

	refs, err := g.JoinsDeleteReferencing(ctx, obj, s.holders(info, via))
	if err != nil {
		return err
	}
	b.AddBatch(refs)

	for _, rel := range info.Joins() {
		if !rel.Owned() || !rel.Cascade() {
			continue
		}
		children, err := s.ownedChildren(ctx, g, rel, obj)
		if err != nil {
			return err
		}
		foreign := rel.Foreign()
		for _, child := range children {
			if foreign.Key().IsDefault(child) {
				continue
			}
			if err := s.planDelete(ctx, b, foreign, child, rel, visited); err != nil {
				return err
			}
		}
	}

	own, err := g.Delete(ctx, obj)
	if err != nil {
		return err
	}
	b.AddBatch(own)
	return nil
}

// holders lists the collections of any mapping whose members are of info's
// type, except via.
func (s *Session) holders(info mapping.Info, via mapping.JoinProperty) []mapping.JoinProperty {
	var rels []mapping.JoinProperty
	for _, m := range s.mappings.Mappings() {
		for _, rel := range m.Joins() {
			if rel != via && rel.Foreign().Type() == info.Type() {
				rels = append(rels, rel)
			}
		}
	}
	return rels
}

// ownedChildren returns the members of rel, loading them first when the
// collection is empty in memory but may have rows in storage.
func (s *Session) ownedChildren(ctx context.Context, g *provider.ObjectGenerator, rel mapping.JoinProperty, obj any) ([]any, error) {
	if items := rel.Related(obj); len(items) > 0 {
		return items, nil
	}
	owner := g.Info().Key().GetAsObject(obj)
	if rows, known := s.provider.Joins().Get(rel.JoinTable(), rel.OwnerColumn(), owner); known && len(rows) == 0 {
		return nil, nil
	}
	load, err := g.LoadProperty(ctx, obj, rel.Name())
	if err != nil {
		return nil, err
	}
	if _, err := load.Execute(ctx); err != nil {
		return nil, fmt.Errorf("load %s before delete: %w", rel.Name(), err)
	}
	return rel.Related(obj), nil
}
