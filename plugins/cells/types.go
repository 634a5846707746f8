// ABOUTME: Cell type tags, column metadata, and entry definitions for the grid.
// ABOUTME: Cell plugins bundle entries; the registry dispatches lookups on them.

package cells

// Type identifies a cell renderer/editor bundle.
type Type string

const (
	TypeText       Type = "text"
	TypeLongText   Type = "longtext"
	TypeNumber     Type = "number"
	TypeBoolean    Type = "boolean"
	TypeDateTime   Type = "datetime"
	TypeDate       Type = "date"
	TypeJSON       Type = "json"
	TypeUUID       Type = "uuid"
	TypeEmail      Type = "email"
	TypeURL        Type = "url"
	TypeArray      Type = "array"
	TypeRelation   Type = "relation"
	TypeGeometry   Type = "geometry"
	TypeImage      Type = "image"
	TypeAttachment Type = "attachment"
)

// Entry categories used by ByCategory and the column-spec API.
const (
	CategoryBasic    = "basic"
	CategoryAdvanced = "advanced"
	CategoryCustom   = "custom"
	CategoryMedia    = "media"
)

// ColumnMetadata is the schema-derived description of a grid column.
// Cell type resolution reads only this struct, never a cell's current value.
type ColumnMetadata struct {
	GqlType   string `json:"gqlType"`
	IsArray   bool   `json:"isArray"`
	PgAlias   string `json:"pgAlias,omitempty"`
	PgType    string `json:"pgType,omitempty"`
	Subtype   string `json:"subtype,omitempty"`
	FieldName string `json:"fieldName,omitempty"`
}

// Component renders a cell value for display.
type Component interface {
	Name() string
	Render(value any, meta ColumnMetadata) string
}

// NewComponent wraps a render function as a named Component.
// Nil values render as the empty string.
func NewComponent(name string, render func(value any, meta ColumnMetadata) string) Component {
	return &component{name: name, render: render}
}

type component struct {
	name   string
	render func(value any, meta ColumnMetadata) string
}

func (c *component) Name() string { return c.name }

func (c *component) Render(value any, meta ColumnMetadata) string {
	if value == nil || c.render == nil {
		return ""
	}
	return c.render(value, meta)
}

// Validator rejects values that don't fit the cell type.
type Validator func(value any, meta ColumnMetadata) error

// Formatter turns a stored value into its grid display string.
type Formatter func(value any, meta ColumnMetadata) string

// Parser turns raw editor input into the value to store.
type Parser func(raw any, meta ColumnMetadata) (any, error)

// DefaultFunc produces the initial value for a column on a new draft row.
type DefaultFunc func(meta ColumnMetadata) any

// MatchFunc lets a cell type claim a column from its schema metadata.
type MatchFunc func(meta ColumnMetadata) bool

// EntryMeta describes grid behavior shared by all cells of a type.
type EntryMeta struct {
	Category           string `json:"category"`
	SupportsInlineEdit bool   `json:"supportsInlineEdit"`
	ActivateForView    bool   `json:"activateForView"`
	SupportsSort       bool   `json:"supportsSort"`
	SupportsFilter     bool   `json:"supportsFilter"`
	Width              int    `json:"width"`
}

// Entry binds a cell type to its components and behavior. All function
// fields except Component are optional.
type Entry struct {
	Type          Type
	Component     Component
	EditComponent Component
	Validate      Validator
	Format        Formatter
	Parse         Parser
	Default       DefaultFunc
	Match         MatchFunc
	Meta          EntryMeta
}
