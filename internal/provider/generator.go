package provider

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/faucetdb/sluice/internal/batch"
	"github.com/faucetdb/sluice/internal/command"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/mapping"
)

// ObjectGenerator builds commands for objects of one mapping without knowing
// their static type. Objects are pointers to the mapped type.
type ObjectGenerator struct {
	p    *Provider
	info mapping.Info
}

// Info returns the mapping the generator works on.
func (g *ObjectGenerator) Info() mapping.Info { return g.info }

func (g *ObjectGenerator) single(cmd *command.Command) *batch.Batch {
	b := g.p.NewBatch()
	b.AddCommand(cmd)
	return b
}

// Insert builds the insert of obj. An auto-increment key is read back and
// stored in obj when the command runs; an unset uuid key is generated now.
// Both are reset when the transaction the insert ran in is rolled back. Once
// the row is committed its join rows are known to be empty.
func (g *ObjectGenerator) Insert(ctx context.Context, obj any) (*batch.Batch, error) {
	key := g.info.Key()
	unset := key.GetAsObject(obj)
	if key.DataType() == "uuid" && !key.AutoIncrement() && key.IsDefault(obj) {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate key for %s: %w", g.info.Table(), err)
		}
		if err := key.Assign(obj, id); err != nil {
			return nil, err
		}
	}

	var values []connector.ColumnValue
	for _, f := range g.info.Fields() {
		if f.IsKey() && f.AutoIncrement() {
			continue
		}
		values = append(values, connector.ColumnValue{Column: f.FieldName(), Parameter: f.GetAsParameter(obj)})
	}
	for _, r := range g.info.References() {
		values = append(values, connector.ColumnValue{Column: r.FieldName(), Parameter: r.GetAsParameter(obj)})
	}

	req := connector.InsertRequest{Table: g.info.Table(), Values: values}
	if key.AutoIncrement() {
		out := command.Out(key.FieldName(), key.DataType())
		req.Returning = &out
	}

	cmd, err := g.p.conn.BuildInsert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", g.info.Table(), err)
	}
	cmd.Object = obj
	cmd.Callback = func(o any, rows []command.Row) error {
		if key.AutoIncrement() {
			if len(rows) == 0 {
				return fmt.Errorf("insert %s: no generated key returned", g.info.Table())
			}
			raw, ok := value(rows[0], key.FieldName())
			if !ok {
				return fmt.Errorf("insert %s: result has no %s column", g.info.Table(), key.FieldName())
			}
			return key.Assign(o, raw)
		}
		return nil
	}
	cmd.Rollback = func(o any) error {
		return key.Assign(o, unset)
	}
	cmd.Commit = func(o any) {
		// A new row has no join rows yet.
		for _, rel := range g.info.Joins() {
			g.p.joins.Reset(rel.JoinTable(), rel.OwnerColumn(), key.GetAsObject(o))
		}
	}
	return g.single(cmd), nil
}

// Update builds the update of every non-key column of obj. The command fails
// with batch.ErrNoRowsAffected when obj's row does not exist. A mapping with
// nothing but a key yields an empty batch.
func (g *ObjectGenerator) Update(ctx context.Context, obj any) (*batch.Batch, error) {
	key := g.info.Key()
	var values []connector.ColumnValue
	for _, f := range g.info.Fields() {
		if f.IsKey() {
			continue
		}
		values = append(values, connector.ColumnValue{Column: f.FieldName(), Parameter: f.GetAsParameter(obj)})
	}
	for _, r := range g.info.References() {
		values = append(values, connector.ColumnValue{Column: r.FieldName(), Parameter: r.GetAsParameter(obj)})
	}
	if len(values) == 0 {
		return g.p.NewBatch(), nil
	}

	cmd, err := g.p.conn.BuildUpdate(ctx, connector.UpdateRequest{
		Table:  g.info.Table(),
		Values: values,
		Where:  []connector.Condition{{Column: key.FieldName(), Parameter: key.GetAsParameter(obj)}},
	})
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", g.info.Table(), err)
	}
	cmd.Object = obj
	cmd.MustAffectRows = true
	return g.single(cmd), nil
}

// Delete builds the delete of obj's row.
func (g *ObjectGenerator) Delete(ctx context.Context, obj any) (*batch.Batch, error) {
	key := g.info.Key()
	cmd, err := g.p.conn.BuildDelete(ctx, connector.DeleteRequest{
		Table: g.info.Table(),
		Where: []connector.Condition{{Column: key.FieldName(), Parameter: keyParameter(key.FieldName(), key, obj)}},
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", g.info.Table(), err)
	}
	cmd.Object = obj
	return g.single(cmd), nil
}

// Save inserts obj when its key holds the default value and updates it
// otherwise.
func (g *ObjectGenerator) Save(ctx context.Context, obj any) (*batch.Batch, error) {
	if g.info.Key().IsDefault(obj) {
		return g.Insert(ctx, obj)
	}
	return g.Update(ctx, obj)
}

// Exists builds a count of the rows sharing obj's key and reports through
// found once executed.
func (g *ObjectGenerator) Exists(ctx context.Context, obj any, found *bool) (*batch.Batch, error) {
	key := g.info.Key()
	return g.Count(ctx, []Filter{{Column: key.FieldName(), Value: key.GetAsObject(obj)}}, func(total int64) {
		if found != nil {
			*found = total > 0
		}
	})
}

// Select builds a query for objects matching q; sink receives each
// materialized object in key order.
func (g *ObjectGenerator) Select(ctx context.Context, q Query, sink func(obj any) error) (*batch.Batch, error) {
	cmd, err := g.p.conn.BuildSelect(ctx, connector.SelectRequest{
		Table:  g.info.Table(),
		Fields: g.info.Columns(),
		Where:  g.conditions(q.Where),
		Order:  []string{g.info.Key().FieldName()},
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", g.info.Table(), err)
	}
	cmd.Callback = func(_ any, rows []command.Row) error {
		return g.scan(rows, sink)
	}
	return g.single(cmd), nil
}

// Count builds a count of the rows matching where; sink receives the total.
func (g *ObjectGenerator) Count(ctx context.Context, where []Filter, sink func(total int64)) (*batch.Batch, error) {
	cmd, err := g.p.conn.BuildCount(ctx, connector.CountRequest{
		Table: g.info.Table(),
		Where: g.conditions(where),
	})
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", g.info.Table(), err)
	}
	cmd.Callback = func(_ any, rows []command.Row) error {
		total, err := Total(rows)
		if err != nil {
			return fmt.Errorf("count %s: %w", g.info.Table(), err)
		}
		if sink != nil {
			sink(total)
		}
		return nil
	}
	return g.single(cmd), nil
}

func (g *ObjectGenerator) scan(rows []command.Row, sink func(obj any) error) error {
	for _, row := range rows {
		obj, err := g.info.Scan(row)
		if err != nil {
			return err
		}
		if sink != nil {
			if err := sink(obj); err != nil {
				return err
			}
		}
	}
	return nil
}

// conditions maps filters to column conditions, typing parameters after the
// property they name.
func (g *ObjectGenerator) conditions(filters []Filter) []connector.Condition {
	conds := make([]connector.Condition, 0, len(filters))
	for _, f := range filters {
		column, typ := f.Column, ""
		switch p := g.info.Property(f.Column).(type) {
		case mapping.FieldProperty:
			column, typ = p.FieldName(), p.DataType()
		case mapping.ReferenceProperty:
			column, typ = p.FieldName(), p.DataType()
		default:
			for _, fp := range g.info.Fields() {
				if fp.FieldName() == f.Column {
					typ = fp.DataType()
				}
			}
		}
		conds = append(conds, connector.Condition{Column: column, Parameter: command.In(column, typ, f.Value)})
	}
	return conds
}

// JoinsSave reconciles the join rows of every collection of obj. With the
// rows known from the tracker only the differences are written; otherwise
// all rows of a saved owner are deleted and written again.
func (g *ObjectGenerator) JoinsSave(ctx context.Context, obj any) (*batch.Batch, error) {
	b := g.p.NewBatch()
	key := g.info.Key()
	ownerNew := key.IsDefault(obj)
	tracker := g.p.joins

	for _, rel := range g.info.Joins() {
		table, ownerCol, foreignCol := rel.JoinTable(), rel.OwnerColumn(), rel.ForeignColumn()
		fk := rel.Foreign().Key()

		var known map[string]any
		haveState := false
		if !ownerNew {
			known, haveState = tracker.Get(table, ownerCol, key.GetAsObject(obj))
			if !haveState {
				cmd, err := g.p.conn.BuildDelete(ctx, connector.DeleteRequest{
					Table: table,
					Where: []connector.Condition{{Column: ownerCol, Parameter: keyParameter(ownerCol, key, obj)}},
				})
				if err != nil {
					return nil, fmt.Errorf("delete %s rows: %w", table, err)
				}
				cmd.Object = obj
				cmd.Commit = func(o any) {
					tracker.Reset(table, ownerCol, key.GetAsObject(o))
				}
				b.AddCommand(cmd)
			}
		}

		current := make(map[string]bool)
		var inserts []any
		for _, item := range rel.Related(obj) {
			if !fk.IsDefault(item) {
				k := keyString(fk.GetAsObject(item))
				if current[k] {
					continue
				}
				current[k] = true
				if _, ok := known[k]; ok {
					continue
				}
			}
			inserts = append(inserts, item)
		}

		if haveState {
			for _, k := range slices.Sorted(maps.Keys(known)) {
				if current[k] {
					continue
				}
				related := known[k]
				cmd, err := g.p.conn.BuildDelete(ctx, connector.DeleteRequest{
					Table: table,
					Where: []connector.Condition{
						{Column: ownerCol, Parameter: keyParameter(ownerCol, key, obj)},
						{Column: foreignCol, Parameter: command.In(foreignCol, fk.DataType(), related)},
					},
				})
				if err != nil {
					return nil, fmt.Errorf("delete %s row: %w", table, err)
				}
				cmd.Object = obj
				cmd.Commit = func(o any) {
					tracker.Remove(table, ownerCol, key.GetAsObject(o), related)
				}
				b.AddCommand(cmd)
			}
		}

		for _, item := range inserts {
			cmd, err := g.p.conn.BuildInsert(ctx, connector.InsertRequest{
				Table: table,
				Values: []connector.ColumnValue{
					{Column: ownerCol, Parameter: keyParameter(ownerCol, key, obj)},
					{Column: foreignCol, Parameter: keyParameter(foreignCol, fk, item)},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("insert %s row: %w", table, err)
			}
			cmd.Object = obj
			cmd.Commit = func(o any) {
				tracker.Add(table, ownerCol, key.GetAsObject(o), fk.GetAsObject(item))
			}
			b.AddCommand(cmd)
		}
	}
	return b, nil
}

// JoinsDelete removes every join row owned by obj.
func (g *ObjectGenerator) JoinsDelete(ctx context.Context, obj any) (*batch.Batch, error) {
	b := g.p.NewBatch()
	key := g.info.Key()
	if key.IsDefault(obj) {
		return b, nil
	}
	for _, rel := range g.info.Joins() {
		table, ownerCol := rel.JoinTable(), rel.OwnerColumn()
		cmd, err := g.p.conn.BuildDelete(ctx, connector.DeleteRequest{
			Table: table,
			Where: []connector.Condition{{
				Column:    ownerCol,
				Parameter: command.In(ownerCol, key.DataType(), key.GetAsObject(obj)),
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("delete %s rows: %w", table, err)
		}
		cmd.Object = obj
		cmd.Commit = func(o any) {
			g.p.joins.Forget(table, ownerCol, key.GetAsObject(o))
		}
		b.AddCommand(cmd)
	}
	return b, nil
}

// JoinsDeleteReferencing removes the join rows of rels that point at obj from
// the owner side. Each rel must be a collection of obj's mapping.
func (g *ObjectGenerator) JoinsDeleteReferencing(ctx context.Context, obj any, rels []mapping.JoinProperty) (*batch.Batch, error) {
	b := g.p.NewBatch()
	key := g.info.Key()
	if key.IsDefault(obj) {
		return b, nil
	}
	for _, rel := range rels {
		if rel.Foreign().Type() != g.info.Type() {
			return nil, fmt.Errorf("delete %s rows: %s does not hold %s", rel.JoinTable(), rel.Name(), g.info.Table())
		}
		table, ownerCol, foreignCol := rel.JoinTable(), rel.OwnerColumn(), rel.ForeignColumn()
		cmd, err := g.p.conn.BuildDelete(ctx, connector.DeleteRequest{
			Table: table,
			Where: []connector.Condition{{
				Column:    foreignCol,
				Parameter: command.In(foreignCol, key.DataType(), key.GetAsObject(obj)),
			}},
		})
		if err != nil {
			return nil, fmt.Errorf("delete %s rows: %w", table, err)
		}
		cmd.Object = obj
		cmd.Commit = func(o any) {
			g.p.joins.RemoveRelated(table, ownerCol, key.GetAsObject(o))
		}
		b.AddCommand(cmd)
	}
	return b, nil
}

// LoadProperty builds the query that fills the relationship name of obj.
// Loading a collection records its join rows in the tracker.
func (g *ObjectGenerator) LoadProperty(ctx context.Context, obj any, name string) (*batch.Batch, error) {
	switch rel := g.info.Property(name).(type) {
	case mapping.ReferenceProperty:
		return g.loadReference(ctx, obj, rel)
	case mapping.JoinProperty:
		return g.loadCollection(ctx, obj, rel)
	case nil:
		return nil, fmt.Errorf("%s has no property %q", g.info.Table(), name)
	default:
		return nil, fmt.Errorf("%s.%s is not a relationship", g.info.Table(), name)
	}
}

func (g *ObjectGenerator) loadReference(ctx context.Context, obj any, rel mapping.ReferenceProperty) (*batch.Batch, error) {
	related := rel.Related(obj)
	if len(related) == 0 {
		return g.p.NewBatch(), nil
	}
	foreign := rel.Foreign()
	fk := foreign.Key()

	cmd, err := g.p.conn.BuildSelect(ctx, connector.SelectRequest{
		Table:  foreign.Table(),
		Fields: foreign.Columns(),
		Where:  []connector.Condition{{Column: fk.FieldName(), Parameter: fk.GetAsParameter(related[0])}},
	})
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", g.info.Table(), rel.Name(), err)
	}
	cmd.Object = obj
	cmd.Callback = func(o any, rows []command.Row) error {
		if len(rows) == 0 {
			return rel.SetRelated(o, nil)
		}
		item, err := foreign.Scan(rows[0])
		if err != nil {
			return err
		}
		return rel.SetRelated(o, []any{item})
	}
	return g.single(cmd), nil
}

func (g *ObjectGenerator) loadCollection(ctx context.Context, obj any, rel mapping.JoinProperty) (*batch.Batch, error) {
	key := g.info.Key()
	if key.IsDefault(obj) {
		return g.p.NewBatch(), nil
	}
	foreign := rel.Foreign()
	fk := foreign.Key()
	table, ownerCol := rel.JoinTable(), rel.OwnerColumn()

	cmd, err := g.p.conn.BuildSelect(ctx, connector.SelectRequest{
		Table:  foreign.Table(),
		Fields: foreign.Columns(),
		Joins:  []connector.Join{{Table: table, Column: rel.ForeignColumn(), ForeignColumn: fk.FieldName()}},
		Where: []connector.Condition{{
			Table:     table,
			Column:    ownerCol,
			Parameter: command.In(ownerCol, key.DataType(), key.GetAsObject(obj)),
		}},
		Order: []string{fk.FieldName()},
	})
	if err != nil {
		return nil, fmt.Errorf("load %s.%s: %w", g.info.Table(), rel.Name(), err)
	}
	var keys []any
	cmd.Object = obj
	cmd.Callback = func(o any, rows []command.Row) error {
		items := make([]any, 0, len(rows))
		keys = make([]any, 0, len(rows))
		for _, row := range rows {
			item, err := foreign.Scan(row)
			if err != nil {
				return err
			}
			items = append(items, item)
			keys = append(keys, fk.GetAsObject(item))
		}
		return rel.SetRelated(o, items)
	}
	cmd.Commit = func(o any) {
		g.p.joins.Set(table, ownerCol, key.GetAsObject(o), keys)
	}
	return g.single(cmd), nil
}
