// ABOUTME: End-to-end tests for the complete cell plugin system.
// ABOUTME: Tests plugin lifecycle, column resolution, media cells, and activity logging.

package e2e_test

import (
	"testing"

	"github.com/constructive-io/gridbase/internal/store"
)

// TestCellPluginLifecycle walks a plugin through install, column resolution,
// cell editing, and uninstall over the HTTP API.
func TestCellPluginLifecycle(t *testing.T) {
	ts := StartTestServer(t)
	defer ts.Close()

	t.Run("standard cells ship installed", func(t *testing.T) {
		resp := ts.GET(t, "/api/v1/cells")
		AssertStatusCode(t, resp, 200)

		var result map[string]interface{}
		DecodeJSON(t, resp, &result)

		types := result["cellTypes"].([]interface{})
		if len(types) != 12 {
			t.Errorf("expected 12 standard cell types, got %d", len(types))
		}

		resp = ts.GET(t, "/api/v1/cells/plugins")
		AssertStatusCode(t, resp, 200)
		DecodeJSON(t, resp, &result)

		installed := result["installed"].([]interface{})
		if len(installed) != 1 || installed[0].(map[string]interface{})["name"] != "standard-cells" {
			t.Errorf("expected standard-cells installed, got %v", installed)
		}

		available := map[string]bool{}
		for _, name := range result["available"].([]interface{}) {
			available[name.(string)] = true
		}
		if !available["geometry-cells"] || !available["media-cells"] {
			t.Errorf("expected geometry-cells and media-cells available, got %v", result["available"])
		}
	})

	t.Run("geometry columns start inactive", func(t *testing.T) {
		resp := ts.POST(t, ts.OrgPath("/tables"), map[string]interface{}{
			"name": "venues",
			"fields": []map[string]interface{}{
				{"name": "name", "type": "text"},
				{"name": "location", "type": "geometry"},
			},
		})
		AssertStatusCode(t, resp, 201)
		resp.Body.Close()

		col := fetchColumn(t, ts, "venues", "location")
		if col["cellType"] != "geometry" {
			t.Errorf("expected geometry cell type, got %v", col["cellType"])
		}
		if col["canActivate"] != false {
			t.Error("expected location column inactive before plugin install")
		}
	})

	t.Run("install geometry plugin", func(t *testing.T) {
		resp := ts.POST(t, "/api/v1/cells/plugins", map[string]interface{}{"name": "geometry-cells"})
		AssertStatusCode(t, resp, 201)

		var result map[string]interface{}
		DecodeJSON(t, resp, &result)
		if result["result"] != "ok" {
			t.Errorf("expected result=ok, got %v", result["result"])
		}

		// Installing again is a duplicate, not an error
		resp = ts.POST(t, "/api/v1/cells/plugins", map[string]interface{}{"name": "geometry-cells"})
		AssertStatusCode(t, resp, 200)
		DecodeJSON(t, resp, &result)
		if result["result"] != "duplicate" {
			t.Errorf("expected result=duplicate, got %v", result["result"])
		}

		if !listedCellTypes(t, ts)["geometry"] {
			t.Error("expected geometry in cell type list after install")
		}
	})

	t.Run("columns activate after install", func(t *testing.T) {
		col := fetchColumn(t, ts, "venues", "location")
		if col["canActivate"] != true {
			t.Error("expected location column activatable after plugin install")
		}
		if col["width"] != float64(200) {
			t.Errorf("expected geometry cell width 200, got %v", col["width"])
		}
	})

	t.Run("geometry cells parse and validate edits", func(t *testing.T) {
		resp := ts.POST(t, ts.OrgPath("/tables/venues/rows"), map[string]interface{}{"name": "HQ"})
		AssertStatusCode(t, resp, 201)

		var row map[string]interface{}
		DecodeJSON(t, resp, &row)
		rowID := row["id"].(string)

		resp = ts.PATCH(t, ts.OrgPath("/tables/venues/rows/"+rowID), map[string]interface{}{
			"column": "location", "value": "point(2.35 48.85)",
		})
		AssertStatusCode(t, resp, 200)

		var result map[string]interface{}
		DecodeJSON(t, resp, &result)
		if result["outcome"] != "committed" {
			t.Fatalf("expected committed edit, got %v", result)
		}
		edited := result["row"].(map[string]interface{})
		if edited["location"] != "POINT(2.35 48.85)" {
			t.Errorf("expected canonical WKT, got %v", edited["location"])
		}

		// Invalid coordinates are rejected without touching the row
		resp = ts.PATCH(t, ts.OrgPath("/tables/venues/rows/"+rowID), map[string]interface{}{
			"column": "location", "value": "nowhere",
		})
		AssertStatusCode(t, resp, 200)
		DecodeJSON(t, resp, &result)
		if result["outcome"] != "noop" {
			t.Errorf("expected noop for invalid point, got %v", result["outcome"])
		}
		if result["error"] == nil {
			t.Error("expected error message for invalid point")
		}
	})

	t.Run("uninstall deactivates columns", func(t *testing.T) {
		resp := ts.DELETE(t, "/api/v1/cells/plugins/geometry-cells")
		AssertStatusCode(t, resp, 200)

		var result map[string]interface{}
		DecodeJSON(t, resp, &result)
		if result["result"] != "ok" {
			t.Errorf("expected result=ok, got %v", result["result"])
		}

		if listedCellTypes(t, ts)["geometry"] {
			t.Error("expected geometry removed from cell type list")
		}

		col := fetchColumn(t, ts, "venues", "location")
		if col["canActivate"] != false {
			t.Error("expected location column inactive after uninstall")
		}

		// Uninstalling again reports missing
		resp = ts.DELETE(t, "/api/v1/cells/plugins/geometry-cells")
		AssertStatusCode(t, resp, 404)
		DecodeJSON(t, resp, &result)
		if result["result"] != "missing" {
			t.Errorf("expected result=missing, got %v", result["result"])
		}
	})
}

// TestMediaCellPlugin covers the media cells: subtype and name-hint column
// matching plus URL validation on edits.
func TestMediaCellPlugin(t *testing.T) {
	ts := StartTestServer(t)
	defer ts.Close()

	resp := ts.POST(t, "/api/v1/cells/plugins", map[string]interface{}{"name": "media-cells"})
	AssertStatusCode(t, resp, 201)
	resp.Body.Close()

	t.Run("media category lists both cells", func(t *testing.T) {
		resp := ts.GET(t, "/api/v1/cells?category=media")
		AssertStatusCode(t, resp, 200)

		var result map[string]interface{}
		DecodeJSON(t, resp, &result)

		types := result["cellTypes"].([]interface{})
		if len(types) != 2 {
			t.Fatalf("expected 2 media cell types, got %d", len(types))
		}
		if types[0].(map[string]interface{})["type"] != "attachment" || types[1].(map[string]interface{})["type"] != "image" {
			t.Errorf("expected attachment and image, got %v", types)
		}
	})

	t.Run("columns resolve by subtype and name hint", func(t *testing.T) {
		resp := ts.POST(t, ts.OrgPath("/tables"), map[string]interface{}{
			"name": "profiles",
			"fields": []map[string]interface{}{
				{"name": "name", "type": "text"},
				{"name": "avatar", "type": "text"},
				{"name": "resume", "type": "text", "subtype": "attachment"},
			},
		})
		AssertStatusCode(t, resp, 201)
		resp.Body.Close()

		if col := fetchColumn(t, ts, "profiles", "avatar"); col["cellType"] != "image" {
			t.Errorf("expected avatar to resolve as image, got %v", col["cellType"])
		}
		if col := fetchColumn(t, ts, "profiles", "resume"); col["cellType"] != "attachment" {
			t.Errorf("expected resume to resolve as attachment, got %v", col["cellType"])
		}
		if col := fetchColumn(t, ts, "profiles", "name"); col["cellType"] != "text" {
			t.Errorf("expected name to stay text, got %v", col["cellType"])
		}
	})

	t.Run("media cells accept URLs and reject junk", func(t *testing.T) {
		resp := ts.POST(t, ts.OrgPath("/tables/profiles/rows"), map[string]interface{}{"name": "Sam"})
		AssertStatusCode(t, resp, 201)

		var row map[string]interface{}
		DecodeJSON(t, resp, &row)
		rowID := row["id"].(string)

		resp = ts.PATCH(t, ts.OrgPath("/tables/profiles/rows/"+rowID), map[string]interface{}{
			"column": "avatar", "value": "https://cdn.example.com/sam.png",
		})
		AssertStatusCode(t, resp, 200)

		var result map[string]interface{}
		DecodeJSON(t, resp, &result)
		if result["outcome"] != "committed" {
			t.Fatalf("expected committed edit, got %v", result)
		}
		edited := result["row"].(map[string]interface{})
		if edited["avatar"] != "https://cdn.example.com/sam.png" {
			t.Errorf("expected stored URL, got %v", edited["avatar"])
		}

		resp = ts.PATCH(t, ts.OrgPath("/tables/profiles/rows/"+rowID), map[string]interface{}{
			"column": "avatar", "value": "not a url",
		})
		AssertStatusCode(t, resp, 200)
		DecodeJSON(t, resp, &result)
		if result["outcome"] != "noop" {
			t.Errorf("expected noop for invalid URL, got %v", result["outcome"])
		}
	})
}

// TestActivityLoggingPipeline verifies the logging middleware records API
// traffic with org, table, and user attribution, and that the log endpoints
// serve it back.
func TestActivityLoggingPipeline(t *testing.T) {
	ts := StartTestServer(t)
	defer ts.Close()

	resp := ts.POST(t, ts.OrgPath("/tables"), map[string]interface{}{
		"name":   "notes",
		"fields": []map[string]interface{}{{"name": "body", "type": "text"}},
	})
	AssertStatusCode(t, resp, 201)
	resp.Body.Close()

	for _, body := range []string{"first", "second"} {
		resp := ts.POST(t, ts.OrgPath("/tables/notes/rows"), map[string]interface{}{"body": body})
		AssertStatusCode(t, resp, 201)
		resp.Body.Close()
	}
	resp = ts.GET(t, ts.OrgPath("/tables/notes/rows"))
	AssertStatusCode(t, resp, 200)
	resp.Body.Close()

	logs := ts.WaitForActivity(t, &store.ActivityQuery{TableName: "notes"}, 3)
	if len(logs) != 3 {
		t.Fatalf("expected 3 notes entries, got %d", len(logs))
	}

	methods := map[string]int{}
	for _, entry := range logs {
		methods[entry.Method]++
		if entry.OrgID != ts.OrgID {
			t.Errorf("expected org %s, got %s", ts.OrgID, entry.OrgID)
		}
		if entry.UserID != ts.UserID {
			t.Errorf("expected user %s, got %s", ts.UserID, entry.UserID)
		}
		if entry.Method == "POST" && entry.RequestBody == "" {
			t.Error("expected captured request body on POST entry")
		}
	}
	if methods["POST"] != 2 || methods["GET"] != 1 {
		t.Errorf("expected 2 POST and 1 GET, got %v", methods)
	}

	// The same entries come back through the HTTP log API
	resp = ts.GET(t, "/api/v1/logs?table=notes")
	AssertStatusCode(t, resp, 200)

	var result map[string]interface{}
	DecodeJSON(t, resp, &result)
	if got := len(result["logs"].([]interface{})); got != 3 {
		t.Errorf("expected 3 logs over HTTP, got %d", got)
	}

	resp = ts.GET(t, "/api/v1/logs/stats")
	AssertStatusCode(t, resp, 200)
	DecodeJSON(t, resp, &result)
	if result["totalRequests"].(float64) < 4 {
		t.Errorf("expected at least 4 total requests, got %v", result["totalRequests"])
	}

	resp = ts.GET(t, "/api/v1/logs/tables")
	AssertStatusCode(t, resp, 200)
	DecodeJSON(t, resp, &result)
	found := false
	for _, entry := range result["tables"].([]interface{}) {
		row := entry.(map[string]interface{})
		if row["table"] == "notes" && row["count"].(float64) >= 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected notes among top tables, got %v", result["tables"])
	}
}

// fetchColumn returns one resolved column spec for a table by key.
func fetchColumn(t *testing.T, ts *TestServer, table, key string) map[string]interface{} {
	t.Helper()
	resp := ts.GET(t, ts.OrgPath("/tables/"+table+"/columns"))
	AssertStatusCode(t, resp, 200)

	var result map[string]interface{}
	DecodeJSON(t, resp, &result)
	for _, c := range result["columns"].([]interface{}) {
		col := c.(map[string]interface{})
		if col["key"] == key {
			return col
		}
	}
	t.Fatalf("column %s not found in %s", key, table)
	return nil
}

// listedCellTypes returns the set of cell types currently served by /cells.
func listedCellTypes(t *testing.T, ts *TestServer) map[string]bool {
	t.Helper()
	resp := ts.GET(t, "/api/v1/cells")
	AssertStatusCode(t, resp, 200)

	var result map[string]interface{}
	DecodeJSON(t, resp, &result)
	types := map[string]bool{}
	for _, v := range result["cellTypes"].([]interface{}) {
		types[v.(map[string]interface{})["type"].(string)] = true
	}
	return types
}
