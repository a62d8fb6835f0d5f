package provider

import (
	"fmt"
	"maps"
	"sync"
)

// JoinTracker remembers the join rows known to exist per owner, so saving a
// collection only emits the inserts and deletes that changed. It is filled by
// loading a collection and by executed join commands.
type JoinTracker struct {
	mu   sync.Mutex
	rows map[joinKey]map[string]any
}

type joinKey struct {
	table  string
	column string
	owner  string
}

// NewJoinTracker creates an empty tracker.
func NewJoinTracker() *JoinTracker {
	return &JoinTracker{rows: make(map[joinKey]map[string]any)}
}

func keyString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func newJoinKey(table, column string, owner any) joinKey {
	return joinKey{table: table, column: column, owner: keyString(owner)}
}

// Set replaces the known related keys of owner.
func (t *JoinTracker) Set(table, column string, owner any, related []any) {
	set := make(map[string]any, len(related))
	for _, r := range related {
		set[keyString(r)] = r
	}
	t.mu.Lock()
	t.rows[newJoinKey(table, column, owner)] = set
	t.mu.Unlock()
}

// Reset records that owner has no join rows.
func (t *JoinTracker) Reset(table, column string, owner any) {
	t.Set(table, column, owner, nil)
}

// Add records one join row.
func (t *JoinTracker) Add(table, column string, owner, related any) {
	k := newJoinKey(table, column, owner)
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.rows[k]
	if !ok {
		set = make(map[string]any)
		t.rows[k] = set
	}
	set[keyString(related)] = related
}

// Remove forgets one join row.
func (t *JoinTracker) Remove(table, column string, owner, related any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.rows[newJoinKey(table, column, owner)]; ok {
		delete(set, keyString(related))
	}
}

// RemoveRelated forgets every join row of table that points at related,
// whichever owner holds it.
func (t *JoinTracker) RemoveRelated(table, column string, related any) {
	rk := keyString(related)
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, set := range t.rows {
		if k.table == table && k.column == column {
			delete(set, rk)
		}
	}
}

// Forget drops everything known about owner.
func (t *JoinTracker) Forget(table, column string, owner any) {
	t.mu.Lock()
	delete(t.rows, newJoinKey(table, column, owner))
	t.mu.Unlock()
}

// Get returns a copy of the related keys of owner, and whether they are known.
func (t *JoinTracker) Get(table, column string, owner any) (map[string]any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.rows[newJoinKey(table, column, owner)]
	if !ok {
		return nil, false
	}
	return maps.Clone(set), true
}
