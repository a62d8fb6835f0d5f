package openapi

import "strings"

// TypeMapping maps a logical column type to an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean
	Format string // OpenAPI format: int32, int64, float, double, date-time, uuid, byte
}

// columnTypeToOpenAPI covers the logical Go type names columns carry.
var columnTypeToOpenAPI = map[string]TypeMapping{
	"int":       {"integer", "int64"},
	"int32":     {"integer", "int32"},
	"int64":     {"integer", "int64"},
	"float32":   {"number", "float"},
	"float64":   {"number", "double"},
	"bool":      {"boolean", ""},
	"string":    {"string", ""},
	"time.Time": {"string", "date-time"},
	"uuid":      {"string", "uuid"},
	"[]byte":    {"string", "byte"},
}

// MapColumnType returns the OpenAPI type for a column's logical type.
// Unknown types are described as plain strings.
func MapColumnType(dataType string) TypeMapping {
	if m, ok := columnTypeToOpenAPI[strings.TrimPrefix(dataType, "*")]; ok {
		return m
	}
	return TypeMapping{Type: "string"}
}
