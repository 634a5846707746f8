// ABOUTME: Activity log handlers: filtered log listing, aggregate stats,
// ABOUTME: and most-requested tables.

package api

import (
	"net/http"
	"strconv"

	"github.com/constructive-io/gridbase/internal/errors"
	"github.com/constructive-io/gridbase/internal/store"
)

func (h *Handlers) activityLogs(w http.ResponseWriter, r *http.Request) {
	q := &store.ActivityQuery{
		OrgID:      r.URL.Query().Get("org"),
		TableName:  r.URL.Query().Get("table"),
		Method:     r.URL.Query().Get("method"),
		PathPrefix: r.URL.Query().Get("path"),
		UserID:     r.URL.Query().Get("user"),
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("status")); err == nil && v > 0 {
		q.StatusCode = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		q.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		q.Offset = v
	}

	logs, err := h.store.GetActivityLogs(q)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to query activity logs")
		return
	}
	if logs == nil {
		logs = []*store.ActivityLog{}
	}
	writeJSON(w, map[string]any{"logs": logs})
}

func (h *Handlers) activityStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetActivityStats()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to compute activity stats")
		return
	}
	writeJSON(w, map[string]any{
		"totalRequests":   stats.TotalRequests,
		"todayRequests":   stats.TodayRequests,
		"errorRequests":   stats.ErrorRequests,
		"avgDurationMs":   stats.AvgDurationMs,
		"uniqueEndpoints": stats.UniqueEndpoints,
		"uniqueUsers":     stats.UniqueUsers,
	})
}

func (h *Handlers) topTables(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	tables, err := h.store.GetTopTables(limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrDatabaseError, "Failed to rank tables")
		return
	}
	if tables == nil {
		tables = []map[string]any{}
	}
	writeJSON(w, map[string]any{"tables": tables})
}
