// ABOUTME: Catalog operations: user-defined tables, fields, relations, indexes, policies.
// ABOUTME: Catalog writes and the DDL they imply commit in one transaction.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/constructive-io/gridbase/internal/schema"
)

// CreateTable stores a table definition and creates its backing data
// table. belongsTo relations get their key column added automatically
// when the definition omits it.
func (s *Store) CreateTable(orgID string, def schema.TableDef) (*schema.TableDef, error) {
	if err := schema.ValidateIdent(def.Name); err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}

	def.ID = uuid.NewString()
	def.OrgID = orgID
	ensureRelationKeys(&def)

	ddl, err := schema.CreateTableSQL(def)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO schema_tables (id, org_id, name, comment) VALUES (?, ?, ?, ?)",
		def.ID, def.OrgID, def.Name, def.Comment,
	); err != nil {
		return nil, fmt.Errorf("create table %s: %w", def.Name, err)
	}

	for i, f := range def.Fields {
		if err := insertField(tx, def.ID, f, i); err != nil {
			return nil, err
		}
	}
	for _, rel := range def.Relations {
		if err := insertRelation(tx, def.ID, rel); err != nil {
			return nil, err
		}
	}
	for _, idx := range def.Indexes {
		if err := insertIndex(tx, def.ID, idx); err != nil {
			return nil, err
		}
		idxSQL, err := schema.CreateIndexSQL(def.ID, idx)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(idxSQL); err != nil {
			return nil, fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}
	for _, p := range def.Policies {
		if err := insertPolicy(tx, def.ID, p); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ddl); err != nil {
		return nil, fmt.Errorf("create data table %s: %w", def.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ensureRelationKeys appends a uuid field for every belongsTo key column
// the definition references but does not declare.
func ensureRelationKeys(def *schema.TableDef) {
	for i, rel := range def.Relations {
		if rel.Kind != schema.RelationBelongsTo {
			continue
		}
		if rel.KeyColumn == "" {
			rel.KeyColumn = schema.ColumnName(rel.FieldName) + "_id"
			def.Relations[i] = rel
		}
		found := false
		for _, f := range def.Fields {
			if f.Name == rel.KeyColumn {
				found = true
				break
			}
		}
		if !found {
			def.Fields = append(def.Fields, schema.FieldDef{
				Name:  rel.KeyColumn,
				Type:  "uuid",
				Alias: "uuid",
			})
		}
	}
}

func insertField(tx *sql.Tx, tableID string, f schema.FieldDef, position int) error {
	_, err := tx.Exec(`
		INSERT INTO schema_fields (table_id, name, type, alias, subtype, is_array, not_null, is_unique, has_default, default_value, comment, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tableID, f.Name, f.Type, f.Alias, f.Subtype, f.IsArray, f.NotNull, f.Unique, f.HasDefault, f.Default, f.Comment, position)
	if err != nil {
		return fmt.Errorf("store field %s: %w", f.Name, err)
	}
	return nil
}

func insertRelation(tx *sql.Tx, tableID string, rel schema.RelationDef) error {
	switch rel.Kind {
	case schema.RelationBelongsTo, schema.RelationHasOne, schema.RelationHasMany, schema.RelationManyToMany:
	default:
		return fmt.Errorf("relation %s: unknown kind %q", rel.Name, rel.Kind)
	}
	if rel.FieldName == "" || rel.TargetTable == "" {
		return fmt.Errorf("relation %s: field name and target table are required", rel.Name)
	}
	_, err := tx.Exec(`
		INSERT INTO schema_relations (table_id, name, kind, field_name, key_column, target_table)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tableID, rel.Name, rel.Kind, rel.FieldName, rel.KeyColumn, rel.TargetTable)
	if err != nil {
		return fmt.Errorf("store relation %s: %w", rel.Name, err)
	}
	return nil
}

func insertIndex(tx *sql.Tx, tableID string, idx schema.IndexDef) error {
	columns, err := json.Marshal(idx.Columns)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO schema_indexes (table_id, name, columns, is_unique) VALUES (?, ?, ?, ?)`,
		tableID, idx.Name, string(columns), idx.Unique); err != nil {
		return fmt.Errorf("store index %s: %w", idx.Name, err)
	}
	return nil
}

func insertPolicy(tx *sql.Tx, tableID string, p schema.PolicyDef) error {
	switch p.Action {
	case "select", "insert", "update", "delete", "all":
	default:
		return fmt.Errorf("policy %s: unknown action %q", p.Name, p.Action)
	}
	if !ValidRole(p.Role) {
		return fmt.Errorf("policy %s: invalid role %q", p.Name, p.Role)
	}
	if _, err := tx.Exec(`
		INSERT INTO schema_policies (table_id, name, action, role, expression) VALUES (?, ?, ?, ?, ?)`,
		tableID, p.Name, p.Action, p.Role, p.Expression); err != nil {
		return fmt.Errorf("store policy %s: %w", p.Name, err)
	}
	return nil
}

func (s *Store) GetTable(id string) (*schema.TableDef, error) {
	var def schema.TableDef
	err := s.db.QueryRow(
		"SELECT id, org_id, name, comment FROM schema_tables WHERE id = ?", id,
	).Scan(&def.ID, &def.OrgID, &def.Name, &def.Comment)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTableParts(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

func (s *Store) GetTableByName(orgID, name string) (*schema.TableDef, error) {
	var id string
	err := s.db.QueryRow(
		"SELECT id FROM schema_tables WHERE org_id = ? AND name = ?", orgID, name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table not found")
	}
	if err != nil {
		return nil, err
	}
	return s.GetTable(id)
}

// RenameTable updates a table's catalog name and comment. The physical
// data table is keyed by id, so renaming never moves data.
func (s *Store) RenameTable(id, name, comment string) (*schema.TableDef, error) {
	if err := schema.ValidateIdent(name); err != nil {
		return nil, err
	}
	res, err := s.db.Exec(
		"UPDATE schema_tables SET name = ?, comment = ? WHERE id = ?", name, comment, id)
	if err != nil {
		return nil, fmt.Errorf("renaming table: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("table not found")
	}
	return s.GetTable(id)
}

func (s *Store) ListTables(orgID string) ([]schema.TableDef, error) {
	rows, err := s.db.Query(
		"SELECT id, org_id, name, comment FROM schema_tables WHERE org_id = ? ORDER BY name", orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []schema.TableDef
	for rows.Next() {
		var def schema.TableDef
		if err := rows.Scan(&def.ID, &def.OrgID, &def.Name, &def.Comment); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range defs {
		if err := s.loadTableParts(&defs[i]); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func (s *Store) loadTableParts(def *schema.TableDef) error {
	rows, err := s.db.Query(`
		SELECT name, type, alias, subtype, is_array, not_null, is_unique, has_default, default_value, comment
		FROM schema_fields WHERE table_id = ? ORDER BY position`, def.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f schema.FieldDef
		if err := rows.Scan(&f.Name, &f.Type, &f.Alias, &f.Subtype, &f.IsArray, &f.NotNull, &f.Unique, &f.HasDefault, &f.Default, &f.Comment); err != nil {
			return err
		}
		def.Fields = append(def.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	relRows, err := s.db.Query(`
		SELECT name, kind, field_name, key_column, target_table
		FROM schema_relations WHERE table_id = ? ORDER BY name`, def.ID)
	if err != nil {
		return err
	}
	defer relRows.Close()
	for relRows.Next() {
		var rel schema.RelationDef
		if err := relRows.Scan(&rel.Name, &rel.Kind, &rel.FieldName, &rel.KeyColumn, &rel.TargetTable); err != nil {
			return err
		}
		def.Relations = append(def.Relations, rel)
	}
	if err := relRows.Err(); err != nil {
		return err
	}

	idxRows, err := s.db.Query(`
		SELECT name, columns, is_unique FROM schema_indexes WHERE table_id = ? ORDER BY name`, def.ID)
	if err != nil {
		return err
	}
	defer idxRows.Close()
	for idxRows.Next() {
		var idx schema.IndexDef
		var columns string
		if err := idxRows.Scan(&idx.Name, &columns, &idx.Unique); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(columns), &idx.Columns); err != nil {
			return fmt.Errorf("index %s: bad column list: %w", idx.Name, err)
		}
		def.Indexes = append(def.Indexes, idx)
	}
	if err := idxRows.Err(); err != nil {
		return err
	}

	polRows, err := s.db.Query(`
		SELECT name, action, role, expression FROM schema_policies WHERE table_id = ? ORDER BY name`, def.ID)
	if err != nil {
		return err
	}
	defer polRows.Close()
	for polRows.Next() {
		var p schema.PolicyDef
		if err := polRows.Scan(&p.Name, &p.Action, &p.Role, &p.Expression); err != nil {
			return err
		}
		def.Policies = append(def.Policies, p)
	}
	return polRows.Err()
}

// DeleteTable removes the catalog definition and drops the data table.
func (s *Store) DeleteTable(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM schema_tables WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("table not found")
	}
	if _, err := tx.Exec(schema.DropTableSQL(id)); err != nil {
		return fmt.Errorf("drop data table: %w", err)
	}
	return tx.Commit()
}

// AddField appends a field to the definition and alters the data table.
func (s *Store) AddField(tableID string, f schema.FieldDef) error {
	ddl, err := schema.AddColumnSQL(tableID, f)
	if err != nil {
		return err
	}

	var position int
	if err := s.db.QueryRow(
		"SELECT COALESCE(MAX(position), -1) + 1 FROM schema_fields WHERE table_id = ?", tableID,
	).Scan(&position); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertField(tx, tableID, f, position); err != nil {
		return err
	}
	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("add column %s: %w", f.Name, err)
	}
	return tx.Commit()
}

// DropField removes a field unless a relation depends on it as key column.
func (s *Store) DropField(tableID, name string) error {
	var relName string
	err := s.db.QueryRow(
		"SELECT name FROM schema_relations WHERE table_id = ? AND key_column = ?", tableID, name,
	).Scan(&relName)
	if err == nil {
		return fmt.Errorf("field %s is the key column of relation %s", name, relName)
	}
	if err != sql.ErrNoRows {
		return err
	}

	ddl, err := schema.DropColumnSQL(tableID, name)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM schema_fields WHERE table_id = ? AND name = ?", tableID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("field not found")
	}
	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("drop column %s: %w", name, err)
	}
	return tx.Commit()
}

// CreateRelation stores a relation, adding the backing key column for a
// belongsTo when it does not exist yet.
func (s *Store) CreateRelation(tableID string, rel schema.RelationDef) error {
	if rel.Kind == schema.RelationBelongsTo {
		if rel.KeyColumn == "" {
			rel.KeyColumn = schema.ColumnName(rel.FieldName) + "_id"
		}
		var exists int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM schema_fields WHERE table_id = ? AND name = ?", tableID, rel.KeyColumn,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			if err := s.AddField(tableID, schema.FieldDef{Name: rel.KeyColumn, Type: "uuid", Alias: "uuid"}); err != nil {
				return fmt.Errorf("ensure key column %s: %w", rel.KeyColumn, err)
			}
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRelation(tx, tableID, rel); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteRelation removes the relation definition; the key column stays.
func (s *Store) DeleteRelation(tableID, name string) error {
	res, err := s.db.Exec(
		"DELETE FROM schema_relations WHERE table_id = ? AND name = ?", tableID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("relation not found")
	}
	return nil
}

func (s *Store) CreateIndex(tableID string, idx schema.IndexDef) error {
	ddl, err := schema.CreateIndexSQL(tableID, idx)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertIndex(tx, tableID, idx); err != nil {
		return err
	}
	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("create index %s: %w", idx.Name, err)
	}
	return tx.Commit()
}

func (s *Store) DeleteIndex(tableID, name string) error {
	ddl, err := schema.DropIndexSQL(tableID, name)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM schema_indexes WHERE table_id = ? AND name = ?", tableID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index not found")
	}
	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return tx.Commit()
}

func (s *Store) CreatePolicy(tableID string, p schema.PolicyDef) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertPolicy(tx, tableID, p); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeletePolicy(tableID, name string) error {
	res, err := s.db.Exec(
		"DELETE FROM schema_policies WHERE table_id = ? AND name = ?", tableID, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("policy not found")
	}
	return nil
}
