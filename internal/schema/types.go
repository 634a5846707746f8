// ABOUTME: Catalog definition types for user-defined tables, fields, relations, indexes, policies.
// ABOUTME: Everything the grid and DDL layers derive comes from these stored shapes.

package schema

// Reserved column names provisioned on every data table.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// IsReservedField reports whether a column name is managed by the system
// and cannot be defined, altered, or dropped through the catalog.
func IsReservedField(name string) bool {
	switch name {
	case ColumnID, ColumnCreatedAt, ColumnUpdatedAt:
		return true
	}
	return false
}

// TableDef is a user-defined table as stored in the catalog.
type TableDef struct {
	ID        string        `json:"id"`
	OrgID     string        `json:"orgId"`
	Name      string        `json:"name"`
	Comment   string        `json:"comment,omitempty"`
	Fields    []FieldDef    `json:"fields"`
	Relations []RelationDef `json:"relations,omitempty"`
	Indexes   []IndexDef    `json:"indexes,omitempty"`
	Policies  []PolicyDef   `json:"policies,omitempty"`
}

// FieldDef is a user-defined column. Name is the snake_case column
// identifier; Type is the canonical Postgres-style type name and Alias its
// short type alias (e.g. "character varying" / "varchar").
type FieldDef struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Alias      string `json:"alias,omitempty"`
	Subtype    string `json:"subtype,omitempty"`
	IsArray    bool   `json:"isArray,omitempty"`
	NotNull    bool   `json:"notNull,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
	HasDefault bool   `json:"hasDefault,omitempty"`
	Default    string `json:"default,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

type RelationKind string

const (
	RelationBelongsTo  RelationKind = "belongsTo"
	RelationHasOne     RelationKind = "hasOne"
	RelationHasMany    RelationKind = "hasMany"
	RelationManyToMany RelationKind = "manyToMany"
)

// RelationDef links a grid field to a target table. FieldName is the grid
// field that exposes the relation ("owner"); KeyColumn is the foreign-key
// column backing a belongsTo ("owner_id").
type RelationDef struct {
	Name        string       `json:"name"`
	Kind        RelationKind `json:"kind"`
	FieldName   string       `json:"fieldName"`
	KeyColumn   string       `json:"keyColumn,omitempty"`
	TargetTable string       `json:"targetTable"`
}

type IndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// PolicyDef is stored for the external query layer to enforce; this server
// only catalogs it.
type PolicyDef struct {
	Name       string `json:"name"`
	Action     string `json:"action"`
	Role       string `json:"role"`
	Expression string `json:"expression"`
}
