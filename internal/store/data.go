// ABOUTME: Row operations against the dynamic data tables behind catalog definitions.
// ABOUTME: Maps grid field names to columns and converts values per field type.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/constructive-io/gridbase/internal/schema"
)

// Filter narrows a row listing. Op is "eq" or "contains".
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// RowQuery controls paging, ordering, and filtering of ListRows.
// Field names use grid naming (lowerCamel), not column naming.
type RowQuery struct {
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	OrderBy string   `json:"orderBy"`
	Desc    bool     `json:"desc"`
	Filters []Filter `json:"filters"`
}

// columnForGridField resolves a grid field name to its backing column.
// The field def is nil for the reserved id/createdAt/updatedAt columns.
func columnForGridField(t *schema.TableDef, field string) (string, *schema.FieldDef, bool) {
	switch field {
	case "id":
		return schema.ColumnID, nil, true
	case "createdAt":
		return schema.ColumnCreatedAt, nil, true
	case "updatedAt":
		return schema.ColumnUpdatedAt, nil, true
	}
	col := schema.ColumnName(field)
	for i := range t.Fields {
		if t.Fields[i].Name == col {
			return col, &t.Fields[i], true
		}
	}
	return "", nil, false
}

func fieldByColumn(t *schema.TableDef, col string) *schema.FieldDef {
	for i := range t.Fields {
		if t.Fields[i].Name == col {
			return &t.Fields[i]
		}
	}
	return nil
}

// storedValue converts a scanned driver value into its grid representation.
func storedValue(f *schema.FieldDef, v any) any {
	if v == nil {
		return nil
	}
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC().Format(time.RFC3339)
	case []byte:
		v = string(tv)
	}
	if f != nil && schema.GqlTypeFor(f.Type) == "Boolean" && !f.IsArray {
		if n, ok := v.(int64); ok {
			return n != 0
		}
	}
	return v
}

// inputValue converts a grid value into something the driver can bind.
// Maps and slices are stored as JSON text.
func inputValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return v
}

// ListRows returns rows in insertion order unless the query orders them.
func (s *Store) ListRows(ctx context.Context, t *schema.TableDef, q RowQuery) ([]map[string]any, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(schema.PhysicalName(t.ID))

	where, args, err := buildRowFilters(t, q.Filters)
	if err != nil {
		return nil, err
	}
	sb.WriteString(where)

	if q.OrderBy != "" {
		col, _, ok := columnForGridField(t, q.OrderBy)
		if !ok {
			return nil, fmt.Errorf("unknown order field %q", q.OrderBy)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(col)
		if q.Desc {
			sb.WriteString(" DESC")
		}
	} else {
		sb.WriteString(" ORDER BY rowid")
	}

	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[schema.GqlFieldName(col)] = storedValue(fieldByColumn(t, col), values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func buildRowFilters(t *schema.TableDef, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var sb strings.Builder
	var args []any
	sb.WriteString(" WHERE 1=1")
	for _, f := range filters {
		col, _, ok := columnForGridField(t, f.Field)
		if !ok {
			return "", nil, fmt.Errorf("unknown filter field %q", f.Field)
		}
		switch f.Op {
		case "eq", "":
			sb.WriteString(" AND ")
			sb.WriteString(col)
			sb.WriteString(" = ?")
			args = append(args, inputValue(f.Value))
		case "contains":
			str, ok := f.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("contains filter on %q needs a string value", f.Field)
			}
			sb.WriteString(" AND ")
			sb.WriteString(col)
			sb.WriteString(" LIKE ? ESCAPE '\\'")
			args = append(args, "%"+escapeSQLLike(str)+"%")
		default:
			return "", nil, fmt.Errorf("unknown filter op %q", f.Op)
		}
	}
	return sb.String(), args, nil
}

// CountRows counts rows matching the query's filters.
func (s *Store) CountRows(ctx context.Context, t *schema.TableDef, q RowQuery) (int, error) {
	where, args, err := buildRowFilters(t, q.Filters)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+schema.PhysicalName(t.ID)+where, args...,
	).Scan(&count)
	return count, err
}

func (s *Store) GetRow(ctx context.Context, t *schema.TableDef, id string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT * FROM "+schema.PhysicalName(t.ID)+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("row not found")
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[schema.GqlFieldName(col)] = storedValue(fieldByColumn(t, col), values[i])
	}
	return row, nil
}

// InsertRow inserts a row from grid-named values. Keys that do not map
// to a column are skipped. A missing id is generated.
func (s *Store) InsertRow(ctx context.Context, t *schema.TableDef, values map[string]any) (map[string]any, error) {
	id, _ := values["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	cols := []string{schema.ColumnID}
	args := []any{id}
	for i := range t.Fields {
		f := &t.Fields[i]
		v, ok := values[schema.GqlFieldName(f.Name)]
		if !ok {
			continue
		}
		cols = append(cols, f.Name)
		args = append(args, inputValue(v))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.PhysicalName(t.ID), strings.Join(cols, ", "), placeholders)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert into %s: %w", t.Name, err)
	}
	return s.GetRow(ctx, t, id)
}

// UpdateRow applies a grid-named patch and returns the fresh row.
// Keys that do not map to a column are skipped, so staged relation
// objects and client markers pass through harmlessly.
func (s *Store) UpdateRow(ctx context.Context, t *schema.TableDef, rowID string, patch map[string]any) (map[string]any, error) {
	var sets []string
	var args []any
	for i := range t.Fields {
		f := &t.Fields[i]
		v, ok := patch[schema.GqlFieldName(f.Name)]
		if !ok {
			continue
		}
		sets = append(sets, f.Name+" = ?")
		args = append(args, inputValue(v))
	}
	if len(sets) == 0 {
		return s.GetRow(ctx, t, rowID)
	}

	sets = append(sets, schema.ColumnUpdatedAt+" = CURRENT_TIMESTAMP")
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		schema.PhysicalName(t.ID), strings.Join(sets, ", "))
	args = append(args, rowID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", t.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("row not found")
	}
	return s.GetRow(ctx, t, rowID)
}

func (s *Store) DeleteRow(ctx context.Context, t *schema.TableDef, rowID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+schema.PhysicalName(t.ID)+" WHERE id = ?", rowID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", t.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("row not found")
	}
	return nil
}
