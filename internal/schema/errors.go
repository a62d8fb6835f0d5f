package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTable is reported by Source.Validate when two tables share a name.
	ErrDuplicateTable = errors.New("duplicate table")
	// ErrDuplicateColumn is returned when a column name is registered twice on a table.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrMultiplePrimaryKeys is returned when a second primary-key column is added to a table.
	ErrMultiplePrimaryKeys = errors.New("table already has a primary key")
)

// UnresolvedReference is a declared foreign key whose target could not be found
// during SetupForeignKeys.
type UnresolvedReference struct {
	Table        string
	Column       string
	TargetTable  string
	TargetColumn string
	// Reason is "table not found" or "column not found".
	Reason string
}

func (r UnresolvedReference) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s)", r.Table, r.Column, r.TargetTable, r.TargetColumn, r.Reason)
}

// UnresolvedReferencesError aggregates every foreign key that failed to resolve.
type UnresolvedReferencesError struct {
	Source     string
	References []UnresolvedReference
}

func (e *UnresolvedReferencesError) Error() string {
	if len(e.References) == 1 {
		return fmt.Sprintf("source %q: unresolved foreign key %s", e.Source, e.References[0])
	}
	parts := make([]string, len(e.References))
	for i, r := range e.References {
		parts[i] = r.String()
	}
	return fmt.Sprintf("source %q: %d unresolved foreign keys: %s", e.Source, len(e.References), strings.Join(parts, "; "))
}
