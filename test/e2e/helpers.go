// ABOUTME: Test helpers for E2E testing.
// ABOUTME: Provides utilities for starting a full test server, making requests, and assertions.

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/constructive-io/gridbase/internal/api"
	"github.com/constructive-io/gridbase/internal/auth"
	"github.com/constructive-io/gridbase/internal/grid"
	"github.com/constructive-io/gridbase/internal/live"
	"github.com/constructive-io/gridbase/internal/logging"
	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/internal/store"
	"github.com/constructive-io/gridbase/plugins/cells"
	"github.com/constructive-io/gridbase/plugins/geometry"
	"github.com/constructive-io/gridbase/plugins/media"
	"github.com/constructive-io/gridbase/plugins/standard"
)

// TestServer wraps a test HTTP server with its store and a default workspace
type TestServer struct {
	Server *httptest.Server
	Store  *store.Store
	DBPath string
	UserID string
	OrgID  string
}

// StartTestServer builds the full production stack over a fresh database:
// store, standard cells, live hub, grid engine, and the API handlers.
func StartTestServer(t *testing.T) *TestServer {
	t.Helper()

	// Use unique DB path for each test
	dbPath := fmt.Sprintf("test_e2e_%d.db", time.Now().UnixNano())

	s, err := store.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	// Create default user and workspace
	user, err := s.CreateUser("harper@example.com", "Harper")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	org, err := s.CreateOrg("Harper Workspace", "harper", user.ID)
	if err != nil {
		t.Fatalf("failed to create org: %v", err)
	}

	registry := cells.NewRegistry(nil)
	if _, err := registry.InstallPlugin(standard.Plugin()); err != nil {
		t.Fatalf("failed to install standard cells: %v", err)
	}

	hub := live.NewHub(nil)

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
		Invalidate: func(def *schema.TableDef) {
			hub.Broadcast(live.Event{Org: def.OrgID, Table: def.Name, Kind: live.KindRows})
		},
	})

	handlers := api.NewHandlers(api.Config{
		Store:     s,
		Engine:    engine,
		Registry:  registry,
		Hub:       hub,
		Available: []cells.Plugin{standard.Plugin(), geometry.Plugin(), media.Plugin()},
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	// Auth precedes activity logging so entries carry the user id
	r.Use(auth.Middleware)
	r.Use(logging.Middleware(s))
	handlers.RegisterRoutes(r)

	srv := httptest.NewServer(r)

	return &TestServer{
		Server: srv,
		Store:  s,
		DBPath: dbPath,
		UserID: user.ID,
		OrgID:  org.ID,
	}
}

// Close shuts down the test server and cleans up
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Store.Close()
	os.Remove(ts.DBPath)
}

// OrgPath prefixes a path with the default workspace's API root
func (ts *TestServer) OrgPath(path string) string {
	return "/api/v1/orgs/" + ts.OrgID + path
}

// GET makes a GET request with authorization
func (ts *TestServer) GET(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer user:"+ts.UserID)

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// POST makes a POST request with JSON body and authorization
func (ts *TestServer) POST(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest("POST", ts.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer user:"+ts.UserID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// PATCH makes a PATCH request with JSON body and authorization
func (ts *TestServer) PATCH(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req, err := http.NewRequest("PATCH", ts.Server.URL+path, bytes.NewReader(jsonBody))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer user:"+ts.UserID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// DELETE makes a DELETE request with authorization
func (ts *TestServer) DELETE(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("DELETE", ts.Server.URL+path, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer user:"+ts.UserID)

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// AssertStatusCode checks if response has expected status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(body))
	}
}

// DecodeJSON decodes response body as JSON
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
}

// ReadBody reads and returns the response body
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

// WaitForActivity polls for activity log entries matching the query. The
// logging middleware writes entries off the request path, so assertions
// made right after a response need a short grace period.
func (ts *TestServer) WaitForActivity(t *testing.T, q *store.ActivityQuery, min int) []*store.ActivityLog {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		logs, err := ts.Store.GetActivityLogs(q)
		if err != nil {
			t.Fatalf("failed to get activity logs: %v", err)
		}
		if len(logs) >= min {
			return logs
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected at least %d activity entries, got %d", min, len(logs))
		}
		time.Sleep(20 * time.Millisecond)
	}
}
