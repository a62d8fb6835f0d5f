package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/mapping"
	"github.com/faucetdb/sluice/internal/model"
	"github.com/faucetdb/sluice/internal/schema"
)

// SchemaHandler serves the schema model built from the registered mappings.
type SchemaHandler struct {
	registry *connector.Registry
	schemas  *schema.Context
	mappings *mapping.Context
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(registry *connector.Registry, schemas *schema.Context, mappings *mapping.Context) *SchemaHandler {
	return &SchemaHandler{
		registry: registry,
		schemas:  schemas,
		mappings: mappings,
	}
}

// ListSchemas returns the schema sources and their table counts.
// GET /api/v1/schema
func (h *SchemaHandler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]interface{}, 0)
	for _, s := range h.schemas.Sources() {
		out = append(out, map[string]interface{}{
			"name":   s.Name,
			"tables": len(s.Tables),
		})
	}
	writeList(w, out)
}

// ListTables returns the table definitions of a schema source in creation
// order.
// GET /api/v1/schema/{schemaName}/tables
func (h *SchemaHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	src := h.source(w, r)
	if src == nil {
		return
	}
	tables := src.CreationOrder()
	out := make([]model.TableSchema, len(tables))
	for i, t := range tables {
		out[i] = t.Definition()
	}
	writeList(w, out)
}

// GetTable returns the definition of one table.
// GET /api/v1/schema/{schemaName}/tables/{tableName}
func (h *SchemaHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	src := h.source(w, r)
	if src == nil {
		return
	}
	name := chi.URLParam(r, "tableName")
	t := src.Table(name)
	if t == nil {
		writeError(w, http.StatusNotFound, "Table not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, t.Definition())
}

type foreignKeyResource struct {
	Table string `json:"table"`
	model.ForeignKey
}

// ListForeignKeys returns every foreign key of a schema source.
// GET /api/v1/schema/{schemaName}/foreign-keys
func (h *SchemaHandler) ListForeignKeys(w http.ResponseWriter, r *http.Request) {
	src := h.source(w, r)
	if src == nil {
		return
	}
	var out []foreignKeyResource
	for _, t := range src.Tables {
		for _, fk := range t.Definition().ForeignKeys {
			out = append(out, foreignKeyResource{Table: t.Name, ForeignKey: fk})
		}
	}
	writeList(w, out)
}

// GetDDL renders the CREATE statements of a schema source for a driver,
// sqlite unless ?driver= names another.
// GET /api/v1/schema/{schemaName}/ddl
func (h *SchemaHandler) GetDDL(w http.ResponseWriter, r *http.Request) {
	src := h.source(w, r)
	if src == nil {
		return
	}
	driver := strings.ToLower(r.URL.Query().Get("driver"))
	if driver == "" {
		driver = "sqlite"
	}
	dialect, err := h.registry.New(driver)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stmts, err := connector.SchemaSQL(dialect, src)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Failed to render DDL: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"driver":     driver,
		"statements": stmts,
	})
}

type propertyResource struct {
	Name          string `json:"name"`
	Shape         string `json:"shape"`
	Column        string `json:"column,omitempty"`
	DataType      string `json:"data_type,omitempty"`
	Key           bool   `json:"key,omitempty"`
	Foreign       string `json:"foreign_table,omitempty"`
	JoinTable     string `json:"join_table,omitempty"`
	Cascade       bool   `json:"cascade,omitempty"`
	LoadWithOwner bool   `json:"load_with_owner,omitempty"`
}

type mappingResource struct {
	Type       string             `json:"type"`
	Table      string             `json:"table"`
	Properties []propertyResource `json:"properties"`
}

// ListMappings describes every registered type mapping.
// GET /api/v1/mappings
func (h *SchemaHandler) ListMappings(w http.ResponseWriter, r *http.Request) {
	var out []mappingResource
	for _, info := range h.mappings.Mappings() {
		m := mappingResource{Type: info.Type().String(), Table: info.Table()}
		for _, p := range info.Properties() {
			m.Properties = append(m.Properties, describeProperty(p))
		}
		out = append(out, m)
	}
	writeList(w, out)
}

func describeProperty(p mapping.Property) propertyResource {
	res := propertyResource{Name: p.Name(), Shape: p.Shape().String()}
	switch v := p.(type) {
	case mapping.FieldProperty:
		res.Column = v.FieldName()
		res.DataType = v.DataType()
		res.Key = v.IsKey()
	case mapping.ReferenceProperty:
		res.Column = v.FieldName()
		res.DataType = v.DataType()
	case mapping.JoinProperty:
		res.JoinTable = v.JoinTable()
	}
	if rel, ok := p.(mapping.Relationship); ok {
		res.Foreign = rel.Foreign().Table()
		res.Cascade = rel.Cascade()
		res.LoadWithOwner = rel.LoadsWithOwner()
	}
	return res
}

func (h *SchemaHandler) source(w http.ResponseWriter, r *http.Request) *schema.Source {
	name := chi.URLParam(r, "schemaName")
	src := h.schemas.Source(name)
	if src == nil {
		writeError(w, http.StatusNotFound, "Schema not found: "+name)
	}
	return src
}
