package connector

import (
	"fmt"
	"strings"

	"github.com/faucetdb/sluice/internal/model"
)

// ColumnTypeFunc renders the type of a column including any identity
// keyword (SERIAL, AUTO_INCREMENT, IDENTITY).
type ColumnTypeFunc func(col model.Column) string

// CreateTableStatement renders a CREATE TABLE for dialects that declare the
// primary key as a table constraint. Foreign keys reference tables through
// d.TableName so schema-qualified dialects stay consistent.
func CreateTableStatement(d Dialect, def model.TableSchema, columnType ColumnTypeFunc) (string, error) {
	if def.Name == "" {
		return "", fmt.Errorf("table name is required")
	}

	var b strings.Builder

	b.WriteString("CREATE TABLE ")
	b.WriteString(d.TableName(def.Name))
	b.WriteString(" (\n")

	for i, col := range def.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("  ")
		b.WriteString(d.QuoteIdentifier(col.Name))
		b.WriteString(" ")
		b.WriteString(columnType(col))

		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if col.IsUnique && !col.IsPrimaryKey {
			b.WriteString(" UNIQUE")
		}
		if col.Default != nil && !col.IsAutoIncrement {
			b.WriteString(" DEFAULT ")
			b.WriteString(*col.Default)
		}
	}

	if len(def.PrimaryKey) > 0 {
		b.WriteString(",\n  PRIMARY KEY (")
		quotedPKs := make([]string, len(def.PrimaryKey))
		for i, pk := range def.PrimaryKey {
			quotedPKs[i] = d.QuoteIdentifier(pk)
		}
		b.WriteString(strings.Join(quotedPKs, ", "))
		b.WriteString(")")
	}

	for _, fk := range def.ForeignKeys {
		b.WriteString(",\n  CONSTRAINT ")
		b.WriteString(d.QuoteIdentifier(fk.Name))
		b.WriteString(" FOREIGN KEY (")
		b.WriteString(d.QuoteIdentifier(fk.ColumnName))
		b.WriteString(") REFERENCES ")
		b.WriteString(d.TableName(fk.ReferencedTable))
		b.WriteString(" (")
		b.WriteString(d.QuoteIdentifier(fk.ReferencedColumn))
		b.WriteString(")")
		if fk.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(fk.OnDelete)
		}
		if fk.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(fk.OnUpdate)
		}
	}

	b.WriteString("\n)")
	return b.String(), nil
}

// TypeWithLength appends a length to the character and binary types that
// accept one, when a max length is defined.
func TypeWithLength(typeName string, maxLength *int64) string {
	if maxLength == nil {
		return typeName
	}
	switch strings.ToLower(typeName) {
	case "varchar", "character varying", "char", "character", "nvarchar", "nchar", "varbinary", "binary":
		return fmt.Sprintf("%s(%d)", typeName, *maxLength)
	}
	return typeName
}
