// ABOUTME: Grid data handlers: row listing with drafts merged in, cell edits,
// ABOUTME: draft staging and submission. Cell-edit noops are 200s, not errors.

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/constructive-io/gridbase/internal/errors"
	"github.com/constructive-io/gridbase/internal/grid"
	"github.com/constructive-io/gridbase/internal/live"
	"github.com/constructive-io/gridbase/internal/store"
	"github.com/constructive-io/gridbase/plugins/cells"
)

func (h *Handlers) listRows(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	specs := h.engine.Resolver().Columns(t)
	byKey := make(map[string]grid.ColumnSpec, len(specs))
	for _, spec := range specs {
		byKey[spec.Key] = spec
	}

	q := store.RowQuery{Limit: 100}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		q.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		q.Offset = v
	}

	if orderBy := r.URL.Query().Get("orderBy"); orderBy != "" {
		spec, ok := byKey[orderBy]
		if !ok || !spec.Sortable {
			errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrValidationFailed, "Cannot order by "+orderBy, "orderBy")
			return
		}
		q.OrderBy = orderBy
		q.Desc = r.URL.Query().Get("desc") == "true"
	}

	for _, raw := range r.URL.Query()["filter"] {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrValidationFailed, "Filter must be field:op:value", "filter")
			return
		}
		spec, ok := byKey[parts[0]]
		if !ok || !spec.Filterable {
			errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrValidationFailed, "Cannot filter on "+parts[0], "filter")
			return
		}
		q.Filters = append(q.Filters, store.Filter{
			Field: parts[0],
			Op:    parts[1],
			Value: filterValue(spec, parts[2]),
		})
	}

	rows, err := h.store.ListRows(r.Context(), t, q)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	total, err := h.store.CountRows(r.Context(), t, q)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"rows": h.engine.MergedRows(t.Name, rows),
		"meta": map[string]any{"total": total, "limit": q.Limit, "offset": q.Offset},
	})
}

// filterValue converts a query-string filter value per the column's cell
// type so typed columns compare numerically.
func filterValue(spec grid.ColumnSpec, raw string) any {
	switch spec.CellType {
	case cells.TypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
	case cells.TypeBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}

func (h *Handlers) insertRow(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	t, err := h.resolveTable(orgID, chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}

	row, err := h.store.InsertRow(r.Context(), t, values)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(orgID, t.Name, live.KindRows)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, row)
}

func (h *Handlers) getRow(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	row, err := h.store.GetRow(r.Context(), t, chi.URLParam(r, "rowID"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Row not found")
		return
	}
	writeJSON(w, row)
}

// editCell applies a single cell edit to a server row. The outcome comes
// back in the envelope; a swallowed mutation failure is outcome=noop with
// the error text, not an HTTP error.
func (h *Handlers) editCell(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var req struct {
		Column string `json:"column"`
		Value  any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Column == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: column", "column")
		return
	}

	res := h.engine.ApplyEdit(r.Context(), t, chi.URLParam(r, "rowID"), false, req.Column, req.Value)
	writeEditResult(w, res)
}

func writeEditResult(w http.ResponseWriter, res grid.EditResult) {
	resp := map[string]any{"outcome": res.Outcome}
	if res.Row != nil {
		resp["row"] = res.Row
	}
	if res.Err != nil {
		resp["error"] = res.Err.Error()
	}
	writeJSON(w, resp)
}

func (h *Handlers) deleteRow(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if err := h.engine.DeleteRow(r.Context(), t, chi.URLParam(r, "rowID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createDraft(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	row := h.engine.CreateDraft(r.Context(), t)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, row)
}

func (h *Handlers) editDraftCell(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	var req struct {
		Column string `json:"column"`
		Value  any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Column == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: column", "column")
		return
	}

	res := h.engine.ApplyEdit(r.Context(), t, chi.URLParam(r, "draftID"), true, req.Column, req.Value)
	writeEditResult(w, res)
}

func (h *Handlers) submitDraft(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	row, err := h.engine.SubmitDraft(r.Context(), t, chi.URLParam(r, "draftID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, row)
}

func (h *Handlers) discardDraft(w http.ResponseWriter, r *http.Request) {
	t, err := h.resolveTable(chi.URLParam(r, "orgID"), chi.URLParam(r, "table"))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Table not found")
		return
	}

	if !h.engine.Drafts().Discard(t.Name, chi.URLParam(r, "draftID")) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "Draft not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
