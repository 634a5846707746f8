// ABOUTME: Activity log storage operations.
// ABOUTME: Handles inserting and querying API activity entries.

package store

import "time"

// ActivityLog represents one recorded API request
type ActivityLog struct {
	ID           int64
	Timestamp    time.Time
	OrgID        string
	TableName    string
	Method       string
	Path         string
	StatusCode   int
	DurationMs   int
	UserID       string
	IPAddress    string
	UserAgent    string
	Error        string
	RequestBody  string
	ResponseBody string
}

// LogActivity inserts an activity log entry
func (s *Store) LogActivity(log *ActivityLog) error {
	_, err := s.db.Exec(`
		INSERT INTO activity_logs (org_id, table_name, method, path, status_code, duration_ms, user_id, ip_address, user_agent, error, request_body, response_body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.OrgID, log.TableName, log.Method, log.Path, log.StatusCode, log.DurationMs, log.UserID, log.IPAddress, log.UserAgent, log.Error, log.RequestBody, log.ResponseBody)
	return err
}

// ActivityQuery represents filters for activity logs
type ActivityQuery struct {
	Limit      int
	Offset     int
	OrgID      string
	TableName  string
	Method     string
	PathPrefix string
	StatusCode int
	UserID     string
}

// ActivityStats represents aggregate statistics
type ActivityStats struct {
	TotalRequests   int
	TodayRequests   int
	ErrorRequests   int
	AvgDurationMs   int
	UniqueEndpoints int
	UniqueUsers     int
}

// GetActivityLogs retrieves activity logs with filtering
func (s *Store) GetActivityLogs(q *ActivityQuery) ([]*ActivityLog, error) {
	query := `SELECT id, timestamp, COALESCE(org_id, ''), COALESCE(table_name, ''), method, path, status_code, duration_ms,
	          COALESCE(user_id, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(error, ''),
	          COALESCE(request_body, ''), COALESCE(response_body, '')
	          FROM activity_logs WHERE 1=1`
	args := []any{}

	if q.OrgID != "" {
		query += " AND org_id = ?"
		args = append(args, q.OrgID)
	}
	if q.TableName != "" {
		query += " AND table_name = ?"
		args = append(args, q.TableName)
	}
	if q.Method != "" {
		query += " AND method = ?"
		args = append(args, q.Method)
	}
	if q.PathPrefix != "" {
		query += " AND path LIKE ?"
		args = append(args, q.PathPrefix+"%")
	}
	if q.StatusCode > 0 {
		query += " AND status_code = ?"
		args = append(args, q.StatusCode)
	}
	if q.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, q.UserID)
	}

	if q.Limit <= 0 {
		q.Limit = 100
	}
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*ActivityLog
	for rows.Next() {
		log := &ActivityLog{}
		var timestamp string
		if err := rows.Scan(&log.ID, &timestamp, &log.OrgID, &log.TableName, &log.Method, &log.Path, &log.StatusCode,
			&log.DurationMs, &log.UserID, &log.IPAddress, &log.UserAgent, &log.Error,
			&log.RequestBody, &log.ResponseBody); err != nil {
			return nil, err
		}
		log.Timestamp, _ = time.Parse("2006-01-02 15:04:05", timestamp)
		logs = append(logs, log)
	}
	return logs, nil
}

// GetActivityStats returns aggregate statistics
func (s *Store) GetActivityStats() (*ActivityStats, error) {
	stats := &ActivityStats{}

	// Total requests
	s.db.QueryRow("SELECT COUNT(*) FROM activity_logs").Scan(&stats.TotalRequests)

	// Today's requests
	today := time.Now().Format("2006-01-02")
	s.db.QueryRow("SELECT COUNT(*) FROM activity_logs WHERE date(timestamp) = ?", today).Scan(&stats.TodayRequests)

	// Error requests (4xx, 5xx)
	s.db.QueryRow("SELECT COUNT(*) FROM activity_logs WHERE status_code >= 400").Scan(&stats.ErrorRequests)

	// Average duration
	s.db.QueryRow("SELECT COALESCE(AVG(duration_ms), 0) FROM activity_logs").Scan(&stats.AvgDurationMs)

	// Unique endpoints
	s.db.QueryRow("SELECT COUNT(DISTINCT path) FROM activity_logs").Scan(&stats.UniqueEndpoints)

	// Unique users
	s.db.QueryRow("SELECT COUNT(DISTINCT user_id) FROM activity_logs WHERE user_id != ''").Scan(&stats.UniqueUsers)

	return stats, nil
}

// GetTopTables returns the most frequently touched tables
func (s *Store) GetTopTables(limit int) ([]map[string]any, error) {
	rows, err := s.db.Query(`
		SELECT table_name, COUNT(*) as count, AVG(duration_ms) as avg_ms
		FROM activity_logs
		WHERE table_name != ''
		GROUP BY table_name
		ORDER BY count DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []map[string]any
	for rows.Next() {
		var name string
		var count int
		var avgMs float64
		if err := rows.Scan(&name, &count, &avgMs); err != nil {
			return nil, err
		}
		tables = append(tables, map[string]any{
			"table":  name,
			"count":  count,
			"avg_ms": int(avgMs), // Round to int for display
		})
	}
	return tables, nil
}

// GetTableRequestCount returns the number of requests for a table since a given time
func (s *Store) GetTableRequestCount(tableName string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*)
		FROM activity_logs
		WHERE table_name = ? AND timestamp >= ?
	`, tableName, since).Scan(&count)
	return count, err
}
