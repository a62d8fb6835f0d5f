package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/sluice/internal/config"
	"github.com/faucetdb/sluice/internal/connector"
)

// SourceHandler serves the stored source definitions and live introspection
// of connected sources.
type SourceHandler struct {
	registry *connector.Registry
	store    *config.Store
}

// NewSourceHandler creates a new SourceHandler.
func NewSourceHandler(registry *connector.Registry, store *config.Store) *SourceHandler {
	return &SourceHandler{
		registry: registry,
		store:    store,
	}
}

// sourceResource is the public view of a source; the DSN password is hidden.
type sourceResource struct {
	Name      string    `json:"name"`
	Label     string    `json:"label,omitempty"`
	Driver    string    `json:"driver"`
	DSN       string    `json:"dsn"`
	Schema    string    `json:"schema,omitempty"`
	Active    bool      `json:"is_active"`
	Connected bool      `json:"connected"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSources returns every stored source and whether it is connected.
// GET /api/v1/sources
func (h *SourceHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.ListSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sources: "+err.Error())
		return
	}

	connected := make(map[string]bool)
	for _, name := range h.registry.Sources() {
		connected[name] = true
	}

	out := make([]sourceResource, 0, len(sources))
	for _, s := range sources {
		out = append(out, sourceResource{
			Name:      s.Name,
			Label:     s.Label,
			Driver:    s.Driver,
			DSN:       redactDSN(s.DSN),
			Schema:    s.Schema,
			Active:    s.IsActive,
			Connected: connected[s.Name],
			UpdatedAt: s.UpdatedAt,
		})
	}
	writeList(w, out)
}

// GetSource returns one stored source.
// GET /api/v1/sources/{sourceName}
func (h *SourceHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sourceName")
	s, err := h.store.GetSourceByName(r.Context(), name)
	if errors.Is(err, config.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Source not found: "+name)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get source: "+err.Error())
		return
	}

	_, connErr := h.registry.Get(name)
	writeJSON(w, http.StatusOK, sourceResource{
		Name:      s.Name,
		Label:     s.Label,
		Driver:    s.Driver,
		DSN:       redactDSN(s.DSN),
		Schema:    s.Schema,
		Active:    s.IsActive,
		Connected: connErr == nil,
		UpdatedAt: s.UpdatedAt,
	})
}

// ListTableNames returns the tables that exist in a connected source.
// GET /api/v1/sources/{sourceName}/tables
func (h *SourceHandler) ListTableNames(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sourceName")
	conn, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Source not connected: "+name)
		return
	}

	names, err := conn.GetTableNames(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tables: "+err.Error())
		return
	}
	writeList(w, stringsToResources("name", names))
}

// ListProcedures returns the stored procedures and functions of a connected
// source.
// GET /api/v1/sources/{sourceName}/procedures
func (h *SourceHandler) ListProcedures(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sourceName")
	conn, err := h.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Source not connected: "+name)
		return
	}

	procs, err := conn.GetStoredProcedures(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list procedures: "+err.Error())
		return
	}

	resources := make([]map[string]interface{}, 0, len(procs))
	for _, p := range procs {
		resources = append(resources, map[string]interface{}{
			"name":        p.Name,
			"type":        p.Type,
			"return_type": p.ReturnType,
			"parameters":  p.Parameters,
		})
	}
	writeList(w, resources)
}
