// ABOUTME: Relation metadata derived from the catalog for grid resolution and editing.
// ABOUTME: belongsTo relations expose their foreign key as a grid field of its own.

package schema

// RelationInfo is the per-field view of a relation the grid resolves and
// edits against. ForeignKey is the grid field name of the backing key
// column, set for belongsTo only ("owner" -> "ownerId").
type RelationInfo struct {
	FieldName   string       `json:"fieldName"`
	Kind        RelationKind `json:"kind"`
	ForeignKey  string       `json:"foreignKey,omitempty"`
	TargetTable string       `json:"targetTable"`
}

// RelationMap keys each relation by the grid field that exposes it.
func RelationMap(defs []RelationDef) map[string]RelationInfo {
	m := make(map[string]RelationInfo, len(defs))
	for _, d := range defs {
		info := RelationInfo{
			FieldName:   d.FieldName,
			Kind:        d.Kind,
			TargetTable: d.TargetTable,
		}
		if d.Kind == RelationBelongsTo && d.KeyColumn != "" {
			info.ForeignKey = GqlFieldName(d.KeyColumn)
		}
		m[d.FieldName] = info
	}
	return m
}

// ForeignKeyOwner finds the belongsTo relation whose foreign-key field is
// the given grid field, so editing the raw key column can stage the
// reciprocal relation patch.
func ForeignKeyOwner(relations map[string]RelationInfo, field string) (RelationInfo, bool) {
	for _, info := range relations {
		if info.Kind == RelationBelongsTo && info.ForeignKey == field {
			return info, true
		}
	}
	return RelationInfo{}, false
}
