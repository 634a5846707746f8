// ABOUTME: Resolves the cell type and activatability for grid columns.
// ABOUTME: Priority is relation override, geometry tag, then registry match; never cell values.

package grid

import (
	"strings"
	"unicode"

	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/plugins/cells"
)

// CellTagGeometry marks a cell's in-grid representation as a custom
// geometry cell, independent of schema metadata.
const CellTagGeometry = "geometry"

// ResolveRequest carries everything resolution may consult. Meta is derived
// from the catalog; the cell's current value is deliberately absent.
type ResolveRequest struct {
	Table     string
	Column    string
	Meta      cells.ColumnMetadata
	CellTag   string
	Relations map[string]schema.RelationInfo
}

type Resolution struct {
	CellType    cells.Type
	CanActivate bool
}

type Resolver struct {
	registry *cells.Registry
}

func NewResolver(registry *cells.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve decides a column's cell type. Relation columns always resolve as
// relation and stay activatable; a geometry cell tag forces geometry; all
// other columns go through the registry's match predicates with a scalar
// fallback.
func (r *Resolver) Resolve(req ResolveRequest) Resolution {
	if _, ok := req.Relations[req.Column]; ok {
		return Resolution{CellType: cells.TypeRelation, CanActivate: true}
	}
	if req.CellTag == CellTagGeometry {
		return r.resolution(cells.TypeGeometry)
	}
	if entry, ok := r.registry.FindByMatch(req.Meta); ok {
		return r.resolution(entry.Type)
	}
	return r.resolution(fallbackType(req.Meta))
}

// resolution derives activatability from the resolved entry's metadata.
// Types with no registered entry are not activatable.
func (r *Resolver) resolution(t cells.Type) Resolution {
	entry, ok := r.registry.Get(t)
	if !ok {
		return Resolution{CellType: t}
	}
	return Resolution{
		CellType:    t,
		CanActivate: entry.Meta.SupportsInlineEdit || entry.Meta.ActivateForView,
	}
}

// fallbackType maps the GraphQL scalar directly when no match predicate
// claims the column.
func fallbackType(meta cells.ColumnMetadata) cells.Type {
	if meta.IsArray {
		return cells.TypeArray
	}
	switch meta.GqlType {
	case "Int", "Float":
		return cells.TypeNumber
	case "Boolean":
		return cells.TypeBoolean
	case "Datetime":
		return cells.TypeDateTime
	case "Date":
		return cells.TypeDate
	case "JSON":
		return cells.TypeJSON
	case "UUID":
		return cells.TypeUUID
	case "GeoJSON":
		return cells.TypeGeometry
	default:
		return cells.TypeText
	}
}

// ColumnSpec is the resolved grid column description served to clients.
type ColumnSpec struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	CellType    cells.Type `json:"cellType"`
	CanActivate bool       `json:"canActivate"`
	Width       int        `json:"width,omitempty"`
	Sortable    bool       `json:"sortable"`
	Filterable  bool       `json:"filterable"`
}

// Columns resolves the full column list for a table: id first, then
// catalog fields in definition order, relation display fields, and the
// managed timestamps last.
func (r *Resolver) Columns(t *schema.TableDef) []ColumnSpec {
	relations := schema.RelationMap(t.Relations)

	specs := []ColumnSpec{r.columnSpec(t.Name, schema.ColumnID, cells.ColumnMetadata{
		GqlType: "UUID", PgType: "uuid", FieldName: schema.ColumnID,
	}, relations)}

	for _, f := range t.Fields {
		specs = append(specs, r.columnSpec(t.Name, schema.GqlFieldName(f.Name), schema.ColumnMetadataFor(f), relations))
	}
	for _, rel := range t.Relations {
		if _, exists := fieldByGridName(t, rel.FieldName); exists {
			continue
		}
		specs = append(specs, r.columnSpec(t.Name, rel.FieldName, cells.ColumnMetadata{FieldName: rel.FieldName}, relations))
	}
	for _, key := range []string{schema.ColumnCreatedAt, schema.ColumnUpdatedAt} {
		specs = append(specs, r.columnSpec(t.Name, schema.GqlFieldName(key), cells.ColumnMetadata{
			GqlType: "Datetime", PgType: "timestamptz", FieldName: schema.GqlFieldName(key),
		}, relations))
	}
	return specs
}

func (r *Resolver) columnSpec(table, key string, meta cells.ColumnMetadata, relations map[string]schema.RelationInfo) ColumnSpec {
	res := r.Resolve(ResolveRequest{Table: table, Column: key, Meta: meta, Relations: relations})
	spec := ColumnSpec{
		Key:         key,
		Title:       titleFor(key),
		CellType:    res.CellType,
		CanActivate: res.CanActivate,
	}
	if entry, ok := r.registry.Get(res.CellType); ok {
		spec.Width = entry.Meta.Width
		spec.Sortable = entry.Meta.SupportsSort
		spec.Filterable = entry.Meta.SupportsFilter
	}
	return spec
}

func fieldByGridName(t *schema.TableDef, key string) (schema.FieldDef, bool) {
	for _, f := range t.Fields {
		if schema.GqlFieldName(f.Name) == key {
			return f, true
		}
	}
	return schema.FieldDef{}, false
}

// titleFor renders a grid field key as a display title ("dueDate" -> "Due Date").
func titleFor(key string) string {
	if key == schema.ColumnID {
		return "ID"
	}
	var words []string
	var cur strings.Builder
	for _, r := range key {
		switch {
		case r == '_':
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
		case unicode.IsUpper(r):
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
			cur.WriteRune(unicode.ToLower(r))
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
