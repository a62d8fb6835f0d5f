package openapi

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/sluice/internal/model"
)

// SchemaSpec holds the tables of one schema source.
type SchemaSpec struct {
	Name   string
	Tables []model.TableSchema
}

// endpoint is one GET route of the explorer.
type endpoint struct {
	path    string
	id      string
	tag     string
	summary string
	params  []string
	query   []string
	result  *openapi3.SchemaRef
}

// Generate builds an OpenAPI 3.1 document for the explorer API. Every table
// of every schema source becomes a component schema named
// "<source>_<table>".
func Generate(baseURL string, schemas []SchemaSpec) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Sluice Explorer API",
			Description: "Read-only view of the configured sources and the schema model built from the registered mappings.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}

	for _, s := range schemas {
		for _, t := range s.Tables {
			doc.Components.Schemas[ComponentName(s.Name, t.Name)] = tableSchema(t)
		}
	}

	for _, e := range endpoints() {
		doc.Paths.Set(e.path, &openapi3.PathItem{Get: e.operation()})
	}
	return doc
}

// ComponentName is the component schema name of a table.
func ComponentName(source, table string) string {
	return source + "_" + table
}

func endpoints() []endpoint {
	object := &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	return []endpoint{
		{path: "/api/v1/sources", id: "listSources", tag: "sources", summary: "List configured sources", result: list(object)},
		{path: "/api/v1/sources/{sourceName}", id: "getSource", tag: "sources", summary: "Get one source", params: []string{"sourceName"}, result: object},
		{path: "/api/v1/sources/{sourceName}/tables", id: "listSourceTables", tag: "sources", summary: "List the live table names of a source", params: []string{"sourceName"}, result: list(object)},
		{path: "/api/v1/sources/{sourceName}/procedures", id: "listSourceProcedures", tag: "sources", summary: "List the stored procedures and functions of a source", params: []string{"sourceName"}, result: list(object)},
		{path: "/api/v1/schema", id: "listSchemas", tag: "schema", summary: "List schema sources", result: list(object)},
		{path: "/api/v1/schema/{schemaName}/tables", id: "listTables", tag: "schema", summary: "List table definitions in creation order", params: []string{"schemaName"}, result: list(object)},
		{path: "/api/v1/schema/{schemaName}/tables/{tableName}", id: "getTable", tag: "schema", summary: "Get one table definition", params: []string{"schemaName", "tableName"}, result: object},
		{path: "/api/v1/schema/{schemaName}/foreign-keys", id: "listForeignKeys", tag: "schema", summary: "List foreign keys", params: []string{"schemaName"}, result: list(object)},
		{path: "/api/v1/schema/{schemaName}/ddl", id: "getDDL", tag: "schema", summary: "Render CREATE statements for a driver", params: []string{"schemaName"}, query: []string{"driver"}, result: object},
		{path: "/api/v1/mappings", id: "listMappings", tag: "mappings", summary: "List registered mappings", result: list(object)},
		{path: "/api/v1/openapi.json", id: "getOpenAPI", tag: "meta", summary: "This document", result: object},
	}
}

func (e endpoint) operation() *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:        []string{e.tag},
		Summary:     e.summary,
		OperationID: e.id,
		Responses:   newResponses("200", e.summary, e.result),
	}
	for _, p := range e.params {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewPathParameter(p).WithSchema(openapi3.NewStringSchema()),
		})
	}
	for _, q := range e.query {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(q).WithSchema(openapi3.NewStringSchema()),
		})
	}
	return op
}

// list wraps item in the {"resource": [...], "meta": {"count": n}} envelope.
func list(item *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"resource": &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: item},
				},
				"meta": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"count": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
						},
					},
				},
			},
		},
	}
}

// tableSchema converts a table definition to an object schema. Columns that
// are not null, have no default and are not generated are required.
func tableSchema(t model.TableSchema) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	var required []string
	for _, col := range t.Columns {
		m := MapColumnType(col.GoType)
		s := &openapi3.Schema{Type: &openapi3.Types{m.Type}, Format: m.Format}
		if col.Nullable {
			s.Nullable = true
		}
		if col.MaxLength != nil && *col.MaxLength > 0 {
			ml := uint64(*col.MaxLength)
			s.MaxLength = &ml
		}
		if col.IsAutoIncrement {
			s.ReadOnly = true
		}
		props[col.Name] = &openapi3.SchemaRef{Value: s}
		if !col.Nullable && col.Default == nil && !col.IsAutoIncrement {
			required = append(required, col.Name)
		}
	}
	sort.Strings(required)
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"object"},
			Description: fmt.Sprintf("Row of table %s.", t.Name),
			Properties:  props,
			Required:    required,
		},
	}
}

// newResponses builds a success response plus the error responses the
// explorer can answer with.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for code, desc := range map[string]string{
		"400": "Bad request",
		"404": "Not found",
		"429": "Too many requests",
		"500": "Internal server error",
	} {
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}
