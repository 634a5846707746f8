// ABOUTME: JSON API surface: handler wiring and shared helpers.
// ABOUTME: Routes are org-scoped; tables are addressed by name or id.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/constructive-io/gridbase/internal/grid"
	"github.com/constructive-io/gridbase/internal/live"
	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/internal/store"
	"github.com/constructive-io/gridbase/plugins/cells"
)

// Config wires the handler set. Store, Engine, and Registry are required;
// Hub and Logger may be nil, Available may be empty.
type Config struct {
	Store    *store.Store
	Engine   *grid.Engine
	Registry *cells.Registry
	Hub      *live.Hub
	// Available is the set of plugins clients may install by name.
	Available []cells.Plugin
	Logger    *zap.Logger
}

type Handlers struct {
	store     *store.Store
	engine    *grid.Engine
	registry  *cells.Registry
	hub       *live.Hub
	available map[string]cells.Plugin
	logger    *zap.Logger
}

func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	available := make(map[string]cells.Plugin, len(cfg.Available))
	for _, p := range cfg.Available {
		available[p.Name] = p
	}
	return &Handlers{
		store:     cfg.Store,
		engine:    cfg.Engine,
		registry:  cfg.Registry,
		hub:       cfg.Hub,
		available: available,
		logger:    logger,
	}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", h.createUser)
		r.Get("/users/{userID}", h.getUser)

		r.Get("/orgs", h.listOrgs)
		r.Post("/orgs", h.createOrg)
		r.Route("/orgs/{orgID}", func(r chi.Router) {
			r.Get("/", h.getOrg)
			r.Delete("/", h.deleteOrg)

			r.Get("/members", h.listMembers)
			r.Post("/members", h.addMember)
			r.Patch("/members/{userID}", h.updateMemberRole)
			r.Delete("/members/{userID}", h.removeMember)

			r.Get("/invites", h.listInvites)
			r.Post("/invites", h.createInvite)
			r.Delete("/invites/{inviteID}", h.deleteInvite)

			r.Get("/tables", h.listTables)
			r.Post("/tables", h.createTable)
			r.Route("/tables/{table}", func(r chi.Router) {
				r.Get("/", h.getTable)
				r.Patch("/", h.updateTable)
				r.Delete("/", h.deleteTable)
				r.Get("/columns", h.tableColumns)

				r.Post("/fields", h.addField)
				r.Delete("/fields/{field}", h.dropField)
				r.Post("/relations", h.createRelation)
				r.Delete("/relations/{relation}", h.deleteRelation)
				r.Post("/indexes", h.createIndex)
				r.Delete("/indexes/{index}", h.deleteIndex)
				r.Post("/policies", h.createPolicy)
				r.Delete("/policies/{policy}", h.deletePolicy)

				r.Get("/rows", h.listRows)
				r.Post("/rows", h.insertRow)
				r.Get("/rows/{rowID}", h.getRow)
				r.Patch("/rows/{rowID}", h.editCell)
				r.Delete("/rows/{rowID}", h.deleteRow)

				r.Post("/drafts", h.createDraft)
				r.Patch("/drafts/{draftID}", h.editDraftCell)
				r.Post("/drafts/{draftID}/submit", h.submitDraft)
				r.Delete("/drafts/{draftID}", h.discardDraft)
			})
		})

		r.Post("/invites/accept", h.acceptInvite)

		r.Get("/cells", h.listCellTypes)
		r.Get("/cells/plugins", h.listPlugins)
		r.Post("/cells/plugins", h.installPlugin)
		r.Delete("/cells/plugins/{plugin}", h.uninstallPlugin)

		r.Get("/logs", h.activityLogs)
		r.Get("/logs/stats", h.activityStats)
		r.Get("/logs/tables", h.topTables)
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// resolveTable looks a table up by name within the org, falling back to id.
// Names are unique per org, so the name form is canonical in URLs.
func (h *Handlers) resolveTable(orgID, ref string) (*schema.TableDef, error) {
	t, err := h.store.GetTableByName(orgID, ref)
	if err == nil {
		return t, nil
	}
	t, err = h.store.GetTable(ref)
	if err != nil {
		return nil, err
	}
	if t.OrgID != orgID {
		return nil, fmt.Errorf("table not found")
	}
	return t, nil
}

// broadcast notifies live clients that a table's rows or schema changed.
// No-op when the hub is not wired (tests).
func (h *Handlers) broadcast(orgID, table, kind string) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(live.Event{Org: orgID, Table: table, Kind: kind})
}
