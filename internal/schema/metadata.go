// ABOUTME: Derives grid column metadata from catalog field definitions.
// ABOUTME: Maps Postgres-style types to GraphQL scalars and columns to grid field names.

package schema

import (
	"strings"
	"unicode"

	"github.com/constructive-io/gridbase/plugins/cells"
)

// gqlScalars maps Postgres-style type names (canonical and alias forms) to
// the GraphQL scalar the grid resolves against.
var gqlScalars = map[string]string{
	"text":                        "String",
	"varchar":                     "String",
	"character varying":           "String",
	"char":                        "String",
	"character":                   "String",
	"citext":                      "String",
	"smallint":                    "Int",
	"int2":                        "Int",
	"integer":                     "Int",
	"int":                         "Int",
	"int4":                        "Int",
	"bigint":                      "Int",
	"int8":                        "Int",
	"serial":                      "Int",
	"bigserial":                   "Int",
	"real":                        "Float",
	"float4":                      "Float",
	"double precision":            "Float",
	"float8":                      "Float",
	"numeric":                     "Float",
	"decimal":                     "Float",
	"money":                       "Float",
	"boolean":                     "Boolean",
	"bool":                        "Boolean",
	"timestamp":                   "Datetime",
	"timestamptz":                 "Datetime",
	"timestamp with time zone":    "Datetime",
	"timestamp without time zone": "Datetime",
	"date":                        "Date",
	"time":                        "Time",
	"timetz":                      "Time",
	"json":                        "JSON",
	"jsonb":                       "JSON",
	"uuid":                        "UUID",
	"geometry":                    "GeoJSON",
	"geography":                   "GeoJSON",
}

// GqlTypeFor returns the GraphQL scalar for a Postgres-style type name.
// Unknown types fall back to String.
func GqlTypeFor(pgType string) string {
	if t, ok := gqlScalars[strings.ToLower(strings.TrimSpace(pgType))]; ok {
		return t
	}
	return "String"
}

// ColumnMetadataFor builds the resolution input for a field. Cell types are
// derived only from this metadata, never from a cell's runtime value.
func ColumnMetadataFor(f FieldDef) cells.ColumnMetadata {
	return cells.ColumnMetadata{
		GqlType:   GqlTypeFor(f.Type),
		IsArray:   f.IsArray,
		PgAlias:   f.Alias,
		PgType:    f.Type,
		Subtype:   f.Subtype,
		FieldName: GqlFieldName(f.Name),
	}
}

// GqlFieldName converts a snake_case column name to its lowerCamel grid
// field name ("owner_id" -> "ownerId"). Leading underscores are preserved.
func GqlFieldName(column string) string {
	i := 0
	for i < len(column) && column[i] == '_' {
		i++
	}
	prefix, rest := column[:i], column[i:]
	if rest == "" {
		return prefix
	}

	parts := strings.Split(rest, "_")
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// ColumnName converts a grid field name back to its snake_case column
// ("ownerId" -> "owner_id").
func ColumnName(field string) string {
	var b strings.Builder
	for _, r := range field {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
