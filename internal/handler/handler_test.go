package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/sluice/internal/config"
	"github.com/faucetdb/sluice/internal/connector"
	"github.com/faucetdb/sluice/internal/connector/postgres"
	"github.com/faucetdb/sluice/internal/connector/sqlite"
	"github.com/faucetdb/sluice/internal/example"
	"github.com/faucetdb/sluice/internal/model"
	"github.com/faucetdb/sluice/internal/schema"
)

// testEnv holds shared state for handler tests.
type testEnv struct {
	store    *config.Store
	registry *connector.Registry
	router   chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", sqlite.New)
	registry.RegisterDriver("postgres", postgres.New)
	t.Cleanup(registry.CloseAll)

	schemas := schema.NewContext()
	mappings, _, err := example.Setup(schemas)
	if err != nil {
		t.Fatalf("example.Setup: %v", err)
	}

	sources := NewSourceHandler(registry, store)
	schemaHandler := NewSchemaHandler(registry, schemas, mappings)
	spec := NewOpenAPIHandler(schemas)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sources", sources.ListSources)
		r.Get("/sources/{sourceName}", sources.GetSource)
		r.Get("/sources/{sourceName}/tables", sources.ListTableNames)
		r.Get("/sources/{sourceName}/procedures", sources.ListProcedures)
		r.Get("/schema", schemaHandler.ListSchemas)
		r.Get("/schema/{schemaName}/tables", schemaHandler.ListTables)
		r.Get("/schema/{schemaName}/tables/{tableName}", schemaHandler.GetTable)
		r.Get("/schema/{schemaName}/foreign-keys", schemaHandler.ListForeignKeys)
		r.Get("/schema/{schemaName}/ddl", schemaHandler.GetDDL)
		r.Get("/mappings", schemaHandler.ListMappings)
		r.Get("/openapi.json", spec.ServeSpec)
	})
	return &testEnv{store: store, registry: registry, router: r}
}

func (e *testEnv) get(t *testing.T, path string, wantStatus int, into interface{}) {
	t.Helper()
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	if rr.Code != wantStatus {
		t.Fatalf("GET %s: status %d, want %d; body: %s", path, rr.Code, wantStatus, rr.Body.String())
	}
	if into != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), into); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
}

type listBody[T any] struct {
	Resource []T `json:"resource"`
	Meta     struct {
		Count int `json:"count"`
	} `json:"meta"`
}

func TestListSchemas(t *testing.T) {
	env := newTestEnv(t)
	var body listBody[map[string]interface{}]
	env.get(t, "/api/v1/schema", http.StatusOK, &body)
	if body.Meta.Count != 1 || body.Resource[0]["name"] != example.SourceName {
		t.Errorf("schemas = %+v", body.Resource)
	}
	if body.Resource[0]["tables"] != float64(7) {
		t.Errorf("tables = %v, want 7", body.Resource[0]["tables"])
	}
}

func TestListTablesCreationOrder(t *testing.T) {
	env := newTestEnv(t)
	var body listBody[model.TableSchema]
	env.get(t, "/api/v1/schema/shop/tables", http.StatusOK, &body)

	pos := make(map[string]int)
	for i, tbl := range body.Resource {
		pos[tbl.Name] = i
	}
	if len(pos) != 7 {
		t.Fatalf("got %d tables, want 7", len(pos))
	}
	for _, dep := range [][2]string{{"Customer", "Order"}, {"Product", "OrderLine"}, {"Order", "Order_Lines"}, {"Tag", "OrderTag"}} {
		if pos[dep[0]] > pos[dep[1]] {
			t.Errorf("%s listed after %s", dep[0], dep[1])
		}
	}
}

func TestGetTable(t *testing.T) {
	env := newTestEnv(t)
	var def model.TableSchema
	env.get(t, "/api/v1/schema/shop/tables/Order", http.StatusOK, &def)
	if len(def.PrimaryKey) != 1 || def.PrimaryKey[0] != "Id" {
		t.Errorf("primary key = %v, want [Id]", def.PrimaryKey)
	}
	if len(def.ForeignKeys) != 1 || def.ForeignKeys[0].ReferencedTable != "Customer" {
		t.Errorf("foreign keys = %+v", def.ForeignKeys)
	}

	env.get(t, "/api/v1/schema/shop/tables/Nope", http.StatusNotFound, nil)
	env.get(t, "/api/v1/schema/other/tables", http.StatusNotFound, nil)
}

func TestListForeignKeys(t *testing.T) {
	env := newTestEnv(t)
	var body listBody[foreignKeyResource]
	env.get(t, "/api/v1/schema/shop/foreign-keys", http.StatusOK, &body)

	found := false
	for _, fk := range body.Resource {
		if fk.Table == "OrderLine" && fk.ColumnName == "ProductSKU" && fk.ReferencedTable == "Product" && fk.ReferencedColumn == "SKU" {
			found = true
		}
	}
	if !found {
		t.Errorf("OrderLine.ProductSKU -> Product.SKU missing from %+v", body.Resource)
	}
}

func TestGetDDL(t *testing.T) {
	env := newTestEnv(t)
	for _, driver := range []string{"", "postgres"} {
		var body struct {
			Driver     string   `json:"driver"`
			Statements []string `json:"statements"`
		}
		env.get(t, "/api/v1/schema/shop/ddl?driver="+driver, http.StatusOK, &body)
		creates := 0
		for _, s := range body.Statements {
			if strings.HasPrefix(s, "CREATE TABLE") {
				creates++
			}
		}
		if creates != 7 {
			t.Errorf("driver %q: %d CREATE TABLE statements, want 7", body.Driver, creates)
		}
	}
	env.get(t, "/api/v1/schema/shop/ddl?driver=oracle", http.StatusBadRequest, nil)
}

func TestListMappings(t *testing.T) {
	env := newTestEnv(t)
	var body listBody[mappingResource]
	env.get(t, "/api/v1/mappings", http.StatusOK, &body)
	if body.Meta.Count != 5 {
		t.Fatalf("got %d mappings, want 5", body.Meta.Count)
	}

	var order *mappingResource
	for i := range body.Resource {
		if body.Resource[i].Table == "Order" {
			order = &body.Resource[i]
		}
	}
	if order == nil {
		t.Fatal("Order mapping missing")
	}
	shapes := make(map[string]propertyResource)
	for _, p := range order.Properties {
		shapes[p.Name] = p
	}
	if p := shapes["Lines"]; p.Shape != "one-to-many" || p.JoinTable != "Order_Lines" || !p.Cascade {
		t.Errorf("Lines = %+v", p)
	}
	if p := shapes["Customer"]; p.Shape != "reference" || p.Column != "CustomerId" || p.Foreign != "Customer" {
		t.Errorf("Customer = %+v", p)
	}
	if p := shapes["Id"]; !p.Key || p.DataType != "int64" {
		t.Errorf("Id = %+v", p)
	}
}

func TestSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, src := range []*model.SourceConfig{
		{Name: "local", Driver: "sqlite", DSN: ":memory:", IsActive: true},
		{Name: "remote", Driver: "postgres", DSN: "postgres://app:hunter2@db/shop", IsActive: true},
	} {
		if err := env.store.CreateSource(ctx, src); err != nil {
			t.Fatalf("CreateSource: %v", err)
		}
	}
	conn, err := env.registry.Connect("local", connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := conn.DB().Exec(`CREATE TABLE "Widget" ("Id" INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	var list listBody[sourceResource]
	env.get(t, "/api/v1/sources", http.StatusOK, &list)
	if list.Meta.Count != 2 {
		t.Fatalf("got %d sources, want 2", list.Meta.Count)
	}
	if !list.Resource[0].Connected || list.Resource[1].Connected {
		t.Errorf("connected flags = %v, %v", list.Resource[0].Connected, list.Resource[1].Connected)
	}
	if strings.Contains(list.Resource[1].DSN, "hunter2") {
		t.Errorf("password leaked: %s", list.Resource[1].DSN)
	}

	var one sourceResource
	env.get(t, "/api/v1/sources/remote", http.StatusOK, &one)
	if one.Driver != "postgres" {
		t.Errorf("driver = %q", one.Driver)
	}
	env.get(t, "/api/v1/sources/missing", http.StatusNotFound, nil)

	var tables listBody[map[string]string]
	env.get(t, "/api/v1/sources/local/tables", http.StatusOK, &tables)
	if tables.Meta.Count != 1 || tables.Resource[0]["name"] != "Widget" {
		t.Errorf("tables = %+v", tables.Resource)
	}
	env.get(t, "/api/v1/sources/remote/tables", http.StatusNotFound, nil)
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://app:secret@db:5432/shop", "postgres://app:xxxxx@db:5432/shop"},
		{"app:secret@tcp(db:3306)/shop", "app:xxxxx@tcp(db:3306)/shop"},
		{"file.db", "file.db"},
		{"sqlserver://db/shop", "sqlserver://db/shop"},
	}
	for _, tt := range tests {
		if got := redactDSN(tt.in); got != tt.want {
			t.Errorf("redactDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestServeOpenAPISpec(t *testing.T) {
	env := newTestEnv(t)
	var doc struct {
		OpenAPI string `json:"openapi"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Paths      map[string]interface{} `json:"paths"`
		Components struct {
			Schemas map[string]struct {
				Properties map[string]struct {
					Type   interface{} `json:"type"`
					Format string      `json:"format"`
				} `json:"properties"`
			} `json:"schemas"`
		} `json:"components"`
	}
	env.get(t, "/api/v1/openapi.json", http.StatusOK, &doc)

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	if _, ok := doc.Paths["/api/v1/schema/{schemaName}/ddl"]; !ok {
		t.Error("ddl path missing")
	}
	// One component per shop table plus the error envelope.
	if len(doc.Components.Schemas) != 8 {
		t.Errorf("component schemas = %d, want 8", len(doc.Components.Schemas))
	}
	tag, ok := doc.Components.Schemas[example.SourceName+"_Tag"]
	if !ok {
		t.Fatal("Tag component missing")
	}
	if tag.Properties["Id"].Format != "uuid" {
		t.Errorf("Tag.Id format = %q, want uuid", tag.Properties["Id"].Format)
	}
}
