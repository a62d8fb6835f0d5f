package schema

import "strings"

// SetupForeignKeys is the second registration pass. It runs after every table
// of the source is registered and links each pending foreign key to its target
// column. Targets that cannot be found are returned as an
// *UnresolvedReferencesError; the resolvable ones are linked regardless.
// Calling it again re-resolves from scratch.
func (s *Source) SetupForeignKeys() error {
	var unresolved []UnresolvedReference

	for _, t := range s.Tables {
		for _, c := range t.Columns {
			c.ForeignKeys = nil
			for _, ref := range c.pending {
				target := s.Table(ref.Table)
				if target == nil {
					unresolved = append(unresolved, UnresolvedReference{
						Table: t.Name, Column: c.Name,
						TargetTable: ref.Table, TargetColumn: ref.Column,
						Reason: "table not found",
					})
					continue
				}
				tc := target.Column(ref.Column)
				if tc == nil {
					unresolved = append(unresolved, UnresolvedReference{
						Table: t.Name, Column: c.Name,
						TargetTable: ref.Table, TargetColumn: ref.Column,
						Reason: "column not found",
					})
					continue
				}
				c.ForeignKeys = append(c.ForeignKeys, tc)
			}
		}
	}

	if len(unresolved) > 0 {
		return &UnresolvedReferencesError{Source: s.Name, References: unresolved}
	}
	return nil
}

// CreationOrder returns the tables ordered so that every referenced table comes
// before the tables that reference it. Self references are ignored; tables in a
// reference cycle keep their registration order.
func (s *Source) CreationOrder() []*Table {
	ordered := make([]*Table, 0, len(s.Tables))
	state := make(map[*Table]int, len(s.Tables)) // 0 unvisited, 1 visiting, 2 done

	var visit func(t *Table)
	visit = func(t *Table) {
		switch state[t] {
		case 1, 2:
			return
		}
		state[t] = 1
		for _, c := range t.Columns {
			for _, ref := range c.pending {
				if strings.EqualFold(ref.Table, t.Name) {
					continue
				}
				if dep := s.Table(ref.Table); dep != nil {
					visit(dep)
				}
			}
		}
		state[t] = 2
		ordered = append(ordered, t)
	}

	for _, t := range s.Tables {
		visit(t)
	}
	return ordered
}
