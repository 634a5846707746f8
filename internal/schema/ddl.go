// ABOUTME: SQLite DDL generation for user-defined data tables.
// ABOUTME: Every identifier is validated before interpolation; catalog names never reach SQL unchecked.

package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const maxIdentLen = 63

// ValidateIdent checks a catalog-supplied identifier before it is
// interpolated into DDL. Parameter binding does not cover identifiers, so
// this is the only line of defense.
func ValidateIdent(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if len(name) > maxIdentLen {
		return fmt.Errorf("identifier %q exceeds %d characters", name, maxIdentLen)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-z_][a-z0-9_]*", name)
	}
	return nil
}

// PhysicalName returns the SQLite table backing a catalog table. It is
// keyed by the immutable table ID, so catalog renames never require DDL.
func PhysicalName(tableID string) string {
	return "t_" + strings.ReplaceAll(tableID, "-", "")
}

// indexName namespaces an index under its table's physical name so catalog
// index names only need to be unique per table.
func indexName(tableID, name string) string {
	return "idx_" + PhysicalName(tableID) + "_" + name
}

// sqliteTypeFor maps a Postgres-style type to a SQLite storage class.
// Arrays are stored as JSON text.
func sqliteTypeFor(pgType string, isArray bool) string {
	if isArray {
		return "TEXT"
	}
	switch strings.ToLower(strings.TrimSpace(pgType)) {
	case "smallint", "int2", "integer", "int", "int4", "bigint", "int8", "serial", "bigserial":
		return "INTEGER"
	case "real", "float4", "double precision", "float8", "numeric", "decimal", "money":
		return "REAL"
	case "boolean", "bool":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// defaultLiteral renders a field's default value as a SQL literal. Only
// plain literals are accepted; expressions are rejected.
func defaultLiteral(f FieldDef) (string, error) {
	switch sqliteTypeFor(f.Type, f.IsArray) {
	case "INTEGER":
		switch strings.ToLower(f.Default) {
		case "true":
			return "1", nil
		case "false":
			return "0", nil
		}
		if _, err := strconv.ParseInt(f.Default, 10, 64); err != nil {
			return "", fmt.Errorf("field %s: default %q is not an integer literal", f.Name, f.Default)
		}
		return f.Default, nil
	case "REAL":
		if _, err := strconv.ParseFloat(f.Default, 64); err != nil {
			return "", fmt.Errorf("field %s: default %q is not a numeric literal", f.Name, f.Default)
		}
		return f.Default, nil
	default:
		return "'" + strings.ReplaceAll(f.Default, "'", "''") + "'", nil
	}
}

func columnClause(f FieldDef) (string, error) {
	if err := ValidateIdent(f.Name); err != nil {
		return "", err
	}
	if IsReservedField(f.Name) {
		return "", fmt.Errorf("field name %q is reserved", f.Name)
	}

	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(" ")
	b.WriteString(sqliteTypeFor(f.Type, f.IsArray))
	if f.NotNull {
		b.WriteString(" NOT NULL")
	}
	if f.Unique {
		b.WriteString(" UNIQUE")
	}
	if f.HasDefault {
		lit, err := defaultLiteral(f)
		if err != nil {
			return "", err
		}
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	return b.String(), nil
}

// CreateTableSQL builds the data table for a catalog definition. Every
// table carries a uuid primary key plus created_at/updated_at timestamps.
func CreateTableSQL(t TableDef) (string, error) {
	cols := []string{ColumnID + " TEXT PRIMARY KEY"}
	for _, f := range t.Fields {
		clause, err := columnClause(f)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		cols = append(cols, clause)
	}
	cols = append(cols,
		ColumnCreatedAt+" TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
		ColumnUpdatedAt+" TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		PhysicalName(t.ID), strings.Join(cols, ",\n\t")), nil
}

func DropTableSQL(tableID string) string {
	return "DROP TABLE IF EXISTS " + PhysicalName(tableID)
}

func AddColumnSQL(tableID string, f FieldDef) (string, error) {
	clause, err := columnClause(f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", PhysicalName(tableID), clause), nil
}

func DropColumnSQL(tableID, column string) (string, error) {
	if err := ValidateIdent(column); err != nil {
		return "", err
	}
	if IsReservedField(column) {
		return "", fmt.Errorf("column %q is reserved", column)
	}
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", PhysicalName(tableID), column), nil
}

func CreateIndexSQL(tableID string, idx IndexDef) (string, error) {
	if err := ValidateIdent(idx.Name); err != nil {
		return "", err
	}
	if len(idx.Columns) == 0 {
		return "", fmt.Errorf("index %s: no columns", idx.Name)
	}
	for _, c := range idx.Columns {
		if err := ValidateIdent(c); err != nil {
			return "", fmt.Errorf("index %s: %w", idx.Name, err)
		}
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
		unique, indexName(tableID, idx.Name), PhysicalName(tableID),
		strings.Join(idx.Columns, ", ")), nil
}

func DropIndexSQL(tableID, name string) (string, error) {
	if err := ValidateIdent(name); err != nil {
		return "", err
	}
	return "DROP INDEX IF EXISTS " + indexName(tableID, name), nil
}
