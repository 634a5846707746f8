// ABOUTME: Cell registry handlers: type introspection and plugin lifecycle.
// ABOUTME: Install/uninstall outcomes map onto status codes, not log lines.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/constructive-io/gridbase/internal/errors"
	"github.com/constructive-io/gridbase/plugins/cells"
)

// cellTypeView is the serializable slice of an Entry: component names and
// behavior metadata, none of the function fields.
type cellTypeView struct {
	Type          cells.Type      `json:"type"`
	Component     string          `json:"component,omitempty"`
	EditComponent string          `json:"editComponent,omitempty"`
	Meta          cells.EntryMeta `json:"meta"`
}

func viewOf(entry cells.Entry) cellTypeView {
	v := cellTypeView{Type: entry.Type, Meta: entry.Meta}
	if entry.Component != nil {
		v.Component = entry.Component.Name()
	}
	if entry.EditComponent != nil {
		v.EditComponent = entry.EditComponent.Name()
	}
	return v
}

func (h *Handlers) listCellTypes(w http.ResponseWriter, r *http.Request) {
	var entries []cells.Entry
	if cat := r.URL.Query().Get("category"); cat != "" {
		entries = h.registry.ByCategory(cat)
	} else {
		for _, t := range h.registry.Types() {
			if entry, ok := h.registry.Get(t); ok {
				entries = append(entries, entry)
			}
		}
	}

	views := make([]cellTypeView, len(entries))
	for i, entry := range entries {
		views[i] = viewOf(entry)
	}
	writeJSON(w, map[string]any{"cellTypes": views})
}

func (h *Handlers) listPlugins(w http.ResponseWriter, r *http.Request) {
	installed := h.registry.InstalledPlugins()
	installedViews := make([]map[string]any, len(installed))
	installedNames := make(map[string]bool, len(installed))
	for i, p := range installed {
		types := make([]cells.Type, len(p.Cells))
		for j, entry := range p.Cells {
			types[j] = entry.Type
		}
		installedViews[i] = map[string]any{"name": p.Name, "version": p.Version, "cells": types}
		installedNames[p.Name] = true
	}

	available := []string{}
	for name := range h.available {
		if !installedNames[name] {
			available = append(available, name)
		}
	}

	writeJSON(w, map[string]any{"installed": installedViews, "available": available})
}

func (h *Handlers) installPlugin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrInvalidBody, "Invalid request body")
		return
	}
	if req.Name == "" {
		errors.WriteErrorWithField(w, http.StatusBadRequest, errors.ErrMissingField, "Missing required field: name", "name")
		return
	}

	p, ok := h.available[req.Name]
	if !ok {
		errors.WriteError(w, http.StatusNotFound, errors.ErrNotFound, "No installable plugin named "+req.Name)
		return
	}

	result, err := h.registry.InstallPlugin(p)
	resp := map[string]any{"result": result.String(), "name": p.Name}
	switch result {
	case cells.InstallOK:
		w.WriteHeader(http.StatusCreated)
	case cells.InstallDuplicate:
		// already installed, report without error
	case cells.InstallFailed:
		resp["error"] = err.Error()
		w.WriteHeader(http.StatusInternalServerError)
	}
	writeJSON(w, resp)
}

func (h *Handlers) uninstallPlugin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "plugin")

	result := h.registry.UninstallPlugin(name)
	resp := map[string]any{"result": result.String(), "name": name}
	if result == cells.UninstallMissing {
		w.WriteHeader(http.StatusNotFound)
	}
	writeJSON(w, resp)
}
