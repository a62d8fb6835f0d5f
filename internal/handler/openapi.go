package handler

import (
	"net/http"

	"github.com/faucetdb/sluice/internal/openapi"
	"github.com/faucetdb/sluice/internal/schema"
)

// OpenAPIHandler serves the OpenAPI document of the explorer.
type OpenAPIHandler struct {
	schemas *schema.Context
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(schemas *schema.Context) *OpenAPIHandler {
	return &OpenAPIHandler{schemas: schemas}
}

// ServeSpec returns the explorer's OpenAPI 3.1 document, with one component
// schema per table of every schema source.
// GET /api/v1/openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	var specs []openapi.SchemaSpec
	for _, src := range h.schemas.Sources() {
		spec := openapi.SchemaSpec{Name: src.Name}
		for _, t := range src.CreationOrder() {
			spec.Tables = append(spec.Tables, t.Definition())
		}
		specs = append(specs, spec)
	}
	writeJSON(w, http.StatusOK, openapi.Generate(baseURL(r), specs))
}

// baseURL derives the server URL the document was requested through.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host
}
