// ABOUTME: Shared harness for API handler tests: a fully wired router over
// ABOUTME: a temporary database plus JSON request helpers.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/constructive-io/gridbase/internal/auth"
	"github.com/constructive-io/gridbase/internal/grid"
	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/internal/store"
	"github.com/constructive-io/gridbase/plugins/cells"
	"github.com/constructive-io/gridbase/plugins/geometry"
	"github.com/constructive-io/gridbase/plugins/media"
	"github.com/constructive-io/gridbase/plugins/standard"
)

// newTestHandlers wires the full handler stack over a fresh database: store,
// cell registry with the standard set installed, relation cache, and engine.
func newTestHandlers(t *testing.T, dbPath string) (chi.Router, *store.Store, func()) {
	t.Helper()

	s, err := store.New(dbPath, nil)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	registry := cells.NewRegistry(nil)
	if res, err := registry.InstallPlugin(standard.Plugin()); res != cells.InstallOK {
		t.Fatalf("InstallPlugin(standard) = %v, err %v", res, err)
	}

	relations := grid.NewRelationCache(func(ctx context.Context, tableID string) (map[string]schema.RelationInfo, error) {
		def, err := s.GetTable(tableID)
		if err != nil {
			return nil, err
		}
		return schema.RelationMap(def.Relations), nil
	}, time.Minute)

	engine := grid.NewEngine(grid.EngineConfig{
		Registry:  registry,
		Mutator:   s,
		Relations: relations,
	})

	h := NewHandlers(Config{
		Store:     s,
		Engine:    engine,
		Registry:  registry,
		Available: []cells.Plugin{standard.Plugin(), geometry.Plugin(), media.Plugin()},
	})
	r := chi.NewRouter()
	r.Use(auth.Middleware)
	h.RegisterRoutes(r)

	cleanup := func() {
		s.Close()
		os.Remove(dbPath)
	}
	return r, s, cleanup
}

// doJSON runs one request through the router and decodes the response body.
// user is the bearer identity; empty stays anonymous.
func doJSON(t *testing.T, r http.Handler, method, path, user string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("Authorization", "Bearer user:"+user)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	resp := map[string]any{}
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr.Code, resp
}

func seedOrg(t *testing.T, s *store.Store) (*store.User, *store.Org) {
	t.Helper()
	u, err := s.CreateUser("dana@example.com", "Dana")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	org, err := s.CreateOrg("Acme", "acme", u.ID)
	if err != nil {
		t.Fatalf("CreateOrg() error = %v", err)
	}
	return u, org
}

// seedTaskTable creates a tasks table with an owner relation; the owner_id
// key column is provisioned automatically.
func seedTaskTable(t *testing.T, s *store.Store, orgID string) *schema.TableDef {
	t.Helper()
	def, err := s.CreateTable(orgID, schema.TableDef{
		Name: "tasks",
		Fields: []schema.FieldDef{
			{Name: "title", Type: "text", NotNull: true},
			{Name: "points", Type: "integer"},
			{Name: "done", Type: "boolean", HasDefault: true, Default: "false"},
		},
		Relations: []schema.RelationDef{
			{Name: "owner", Kind: schema.RelationBelongsTo, FieldName: "owner", TargetTable: "people"},
		},
	})
	if err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	return def
}
