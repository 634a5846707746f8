// ABOUTME: Tests for activity log endpoints: filtered listing, aggregate
// ABOUTME: stats, and the most-requested-tables ranking.

package api

import (
	"net/http"
	"testing"

	"github.com/constructive-io/gridbase/internal/store"
)

// seedActivity inserts four requests: two against tasks, one against
// projects, and one org-level 500. Durations average to a whole number.
func seedActivity(t *testing.T, s *store.Store, orgID, userID string) {
	t.Helper()
	entries := []*store.ActivityLog{
		{OrgID: orgID, TableName: "tasks", Method: "GET", Path: "/api/v1/orgs/" + orgID + "/tables/tasks/rows", StatusCode: 200, DurationMs: 10, UserID: userID},
		{OrgID: orgID, TableName: "tasks", Method: "POST", Path: "/api/v1/orgs/" + orgID + "/tables/tasks/rows", StatusCode: 201, DurationMs: 20, UserID: userID},
		{OrgID: orgID, TableName: "projects", Method: "GET", Path: "/api/v1/orgs/" + orgID + "/tables/projects/rows", StatusCode: 200, DurationMs: 30, UserID: "visitor-1"},
		{OrgID: "some-other-org", Method: "GET", Path: "/api/v1/orgs", StatusCode: 500, DurationMs: 40, Error: "boom"},
	}
	for _, e := range entries {
		if err := s.LogActivity(e); err != nil {
			t.Fatalf("LogActivity() error = %v", err)
		}
	}
}

func TestActivityLogs(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_activity.db")
	defer cleanup()
	u, org := seedOrg(t, s)
	seedActivity(t, s, org.ID, u.ID)

	code, resp := doJSON(t, r, "GET", "/api/v1/logs", "", nil)
	if code != http.StatusOK {
		t.Fatalf("list logs status = %d, want %d", code, http.StatusOK)
	}
	logs, ok := resp["logs"].([]any)
	if !ok {
		t.Fatalf("logs missing from response: %v", resp)
	}
	if len(logs) != 4 {
		t.Errorf("len(logs) = %d, want 4", len(logs))
	}

	var post map[string]any
	for _, l := range logs {
		entry := l.(map[string]any)
		if entry["Method"] == "POST" {
			post = entry
		}
	}
	if post == nil {
		t.Fatal("POST entry not listed")
	}
	if post["TableName"] != "tasks" {
		t.Errorf("post TableName = %v, want tasks", post["TableName"])
	}
	if post["StatusCode"] != float64(201) {
		t.Errorf("post StatusCode = %v, want 201", post["StatusCode"])
	}
	if post["UserID"] != u.ID {
		t.Errorf("post UserID = %v, want %q", post["UserID"], u.ID)
	}
}

func TestActivityLogs_Filters(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_activity2.db")
	defer cleanup()
	u, org := seedOrg(t, s)
	seedActivity(t, s, org.ID, u.ID)

	count := func(query string) int {
		t.Helper()
		code, resp := doJSON(t, r, "GET", "/api/v1/logs"+query, "", nil)
		if code != http.StatusOK {
			t.Fatalf("GET /logs%s status = %d", query, code)
		}
		return len(resp["logs"].([]any))
	}

	if got := count("?org=" + org.ID); got != 3 {
		t.Errorf("org filter count = %d, want 3", got)
	}
	if got := count("?table=tasks"); got != 2 {
		t.Errorf("table filter count = %d, want 2", got)
	}
	if got := count("?method=GET"); got != 3 {
		t.Errorf("method filter count = %d, want 3", got)
	}
	if got := count("?user=visitor-1"); got != 1 {
		t.Errorf("user filter count = %d, want 1", got)
	}
	if got := count("?limit=2"); got != 2 {
		t.Errorf("limited count = %d, want 2", got)
	}

	code, resp := doJSON(t, r, "GET", "/api/v1/logs?status=500", "", nil)
	if code != http.StatusOK {
		t.Fatalf("status filter status = %d", code)
	}
	logs := resp["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("status filter count = %d, want 1", len(logs))
	}
	if logs[0].(map[string]any)["Error"] != "boom" {
		t.Errorf("error entry Error = %v, want boom", logs[0].(map[string]any)["Error"])
	}
}

func TestActivityStats(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_activity3.db")
	defer cleanup()
	u, org := seedOrg(t, s)
	seedActivity(t, s, org.ID, u.ID)

	code, resp := doJSON(t, r, "GET", "/api/v1/logs/stats", "", nil)
	if code != http.StatusOK {
		t.Fatalf("stats status = %d, want %d", code, http.StatusOK)
	}
	if resp["totalRequests"] != float64(4) {
		t.Errorf("totalRequests = %v, want 4", resp["totalRequests"])
	}
	if resp["errorRequests"] != float64(1) {
		t.Errorf("errorRequests = %v, want 1", resp["errorRequests"])
	}
	if resp["avgDurationMs"] != float64(25) {
		t.Errorf("avgDurationMs = %v, want 25", resp["avgDurationMs"])
	}
	// The two tasks entries share a path, so four requests hit three endpoints.
	if resp["uniqueEndpoints"] != float64(3) {
		t.Errorf("uniqueEndpoints = %v, want 3", resp["uniqueEndpoints"])
	}
	if resp["uniqueUsers"] != float64(2) {
		t.Errorf("uniqueUsers = %v, want 2", resp["uniqueUsers"])
	}
	if _, ok := resp["todayRequests"]; !ok {
		t.Error("todayRequests missing from stats")
	}
}

func TestTopTables(t *testing.T) {
	r, s, cleanup := newTestHandlers(t, "test_api_activity4.db")
	defer cleanup()
	u, org := seedOrg(t, s)
	seedActivity(t, s, org.ID, u.ID)

	code, resp := doJSON(t, r, "GET", "/api/v1/logs/tables", "", nil)
	if code != http.StatusOK {
		t.Fatalf("top tables status = %d, want %d", code, http.StatusOK)
	}
	tables, ok := resp["tables"].([]any)
	if !ok {
		t.Fatalf("tables missing from response: %v", resp)
	}
	if len(tables) != 2 {
		t.Fatalf("len(tables) = %d, want 2", len(tables))
	}
	top := tables[0].(map[string]any)
	if top["table"] != "tasks" {
		t.Errorf("top table = %v, want tasks", top["table"])
	}
	if top["count"] != float64(2) {
		t.Errorf("top table count = %v, want 2", top["count"])
	}
	if top["avg_ms"] != float64(15) {
		t.Errorf("top table avg_ms = %v, want 15", top["avg_ms"])
	}

	code, resp = doJSON(t, r, "GET", "/api/v1/logs/tables?limit=1", "", nil)
	if code != http.StatusOK {
		t.Fatalf("limited top tables status = %d", code)
	}
	if got := len(resp["tables"].([]any)); got != 1 {
		t.Errorf("limited len(tables) = %d, want 1", got)
	}
}
