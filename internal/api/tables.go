// ABOUTME: Schema-builder handlers: tables, fields, relations, indexes, policies.
// ABOUTME: Every mutation invalidates relation metadata and broadcasts a schema event.

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/constructive-io/gridbase/internal/errors"
	"github.com/constructive-io/gridbase/internal/live"
	"github.com/constructive-io/gridbase/internal/schema"
)

// writeStoreError maps store error text onto the API envelope. The store
// reports validation problems and misses in its message text, so the
// mapping is by vocabulary.
func writeStoreError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, msg)
	case strings.Contains(msg, "UNIQUE constraint failed"), strings.Contains(msg, "already exists"):
		errors.WriteError(w, http.StatusConflict, errors.ErrConflict, msg)
	case strings.Contains(msg, "invalid"),
		strings.Contains(msg, "identifier"),
		strings.Contains(msg, "reserved"),
		strings.Contains(msg, "required"),
		strings.Contains(msg, "unknown"),
		strings.Contains(msg, "unsupported"),
		strings.Contains(msg, "key column"),
		strings.Contains(msg, "no columns"),
		strings.Contains(msg, "not an integer"),
		strings.Contains(msg, "not a numeric"):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrValidationFailed, msg)
	default:
		errors.WriteErrorWithDetails(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Database operation failed", msg)
	}
}

// schemaChanged drops cached relation metadata for a table and notifies
// live clients.
func (h *Handlers) schemaChanged(orgID, tableID, tableName string) {
	h.engine.Relations().Invalidate(tableID)
	h.broadcast(orgID, tableName, live.KindSchema)
}

func (h *Handlers) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(chi.URLParam(r, "orgID"))
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to list tables")
		return
	}
	writeJSON(w, map[string]any{"tables": tables})
}

func (h *Handlers) createTable(w http.ResponseWriter, r *http.Request) {
	var def schema.TableDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if def.Name == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: name", "name")
		return
	}

	orgID := chi.URLParam(r, "orgID")
	created, err := h.store.CreateTable(orgID, def)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, created.ID, created.Name)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, created)
}

func (h *Handlers) getTable(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}
	writeJSON(w, t)
}

func (h *Handlers) updateTable(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var req struct {
		Name    *string `json:"name"`
		Comment *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}

	name, comment := t.Name, t.Comment
	if req.Name != nil {
		name = *req.Name
	}
	if req.Comment != nil {
		comment = *req.Comment
	}

	updated, err := h.store.RenameTable(t.ID, name, comment)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, updated.ID, updated.Name)
	writeJSON(w, updated)
}

func (h *Handlers) deleteTable(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if err := h.store.DeleteTable(t.ID); err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, t.ID, t.Name)
	w.WriteHeader(http.StatusNoContent)
}

// tableColumns serves the resolved grid column specs for a table.
func (h *Handlers) tableColumns(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}
	writeJSON(w, map[string]any{"columns": h.engine.Resolver().Columns(t)})
}

func (h *Handlers) addField(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var f schema.FieldDef
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if f.Name == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: name", "name")
		return
	}

	if err := h.store.AddField(t.ID, f); err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, t.ID, t.Name)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, f)
}

func (h *Handlers) dropField(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if err := h.store.DropField(t.ID, chi.URLParam(r, "field")); err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, t.ID, t.Name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createRelation(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var rel schema.RelationDef
	if err := json.NewDecoder(r.Body).Decode(&rel); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}

	if err := h.store.CreateRelation(t.ID, rel); err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, t.ID, t.Name)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, rel)
}

func (h *Handlers) deleteRelation(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if err := h.store.DeleteRelation(t.ID, chi.URLParam(r, "relation")); err != nil {
		writeStoreError(w, err)
		return
	}

	h.schemaChanged(orgID, t.ID, t.Name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createIndex(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var idx schema.IndexDef
	if err := json.NewDecoder(r.Body).Decode(&idx); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}

	if err := h.store.CreateIndex(t.ID, idx); err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(orgID, t.Name, live.KindSchema)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, idx)
}

func (h *Handlers) deleteIndex(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if err := h.store.DeleteIndex(t.ID, chi.URLParam(r, "index")); err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(orgID, t.Name, live.KindSchema)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createPolicy(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var p schema.PolicyDef
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}

	if err := h.store.CreatePolicy(t.ID, p); err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(orgID, t.Name, live.KindSchema)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, p)
}

func (h *Handlers) deletePolicy(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if err := h.store.DeletePolicy(t.ID, chi.URLParam(r, "policy")); err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(orgID, t.Name, live.KindSchema)
	w.WriteHeader(http.StatusNoContent)
}
