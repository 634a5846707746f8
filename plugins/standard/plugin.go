// ABOUTME: The standard cell plugin: every scalar cell type and its match rules.
// ABOUTME: Entry order is match priority; specific formats come before the text catch-all.

package standard

import (
	"strings"

	"github.com/constructive-io/gridbase/plugins/cells"
)

const (
	pluginName    = "standard-cells"
	pluginVersion = "1.0.0"
)

// Plugin returns the standard cell set for explicit installation at
// startup. Entries register in declaration order, and that order decides
// match priority: uuid and email must claim String columns before the
// text catch-all does. Scalar matchers guard against array columns so the
// array entry keeps those regardless of subtype.
func Plugin() cells.Plugin {
	return cells.Plugin{
		Name:    pluginName,
		Version: pluginVersion,
		Cells: []cells.Entry{
			uuidEntry(),
			emailEntry(),
			urlEntry(),
			booleanEntry(),
			numberEntry(),
			datetimeEntry(),
			dateEntry(),
			jsonEntry(),
			arrayEntry(),
			relationEntry(),
			longTextEntry(),
			textEntry(),
		},
	}
}

func uuidEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeUUID,
		Component: cells.NewComponent("standard/uuid", renderPlain),
		Validate:  validateFormat("uuid"),
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray {
				return false
			}
			return m.GqlType == "UUID" || strings.EqualFold(m.PgAlias, "uuid")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              290,
		},
	}
}

func emailEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeEmail,
		Component: cells.NewComponent("standard/email", renderPlain),
		Validate:  validateFormat("email"),
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray || m.GqlType != "String" {
				return false
			}
			return m.Subtype == "email" || fieldHint(m.FieldName, "email")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              220,
		},
	}
}

func urlEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeURL,
		Component: cells.NewComponent("standard/url", renderPlain),
		Validate:  validateFormat("uri"),
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray || m.GqlType != "String" {
				return false
			}
			return m.Subtype == "url" || fieldHint(m.FieldName, "url", "link", "website")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              240,
		},
	}
}

func booleanEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeBoolean,
		Component: cells.NewComponent("standard/boolean", renderBoolean),
		Parse:     parseBoolean,
		Default:   func(cells.ColumnMetadata) any { return false },
		Match: func(m cells.ColumnMetadata) bool {
			return !m.IsArray && m.GqlType == "Boolean"
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              90,
		},
	}
}

func numberEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeNumber,
		Component: cells.NewComponent("standard/number", renderNumber),
		Parse:     parseNumber,
		Match: func(m cells.ColumnMetadata) bool {
			return !m.IsArray && (m.GqlType == "Int" || m.GqlType == "Float")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              110,
		},
	}
}

func datetimeEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeDateTime,
		Component: cells.NewComponent("standard/datetime", renderDateTime),
		Parse:     parseDateTime,
		Validate:  validateFormat("date-time"),
		Match: func(m cells.ColumnMetadata) bool {
			return !m.IsArray && m.GqlType == "Datetime"
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              180,
		},
	}
}

func dateEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeDate,
		Component: cells.NewComponent("standard/date", renderPlain),
		Validate:  validateFormat("date"),
		Match: func(m cells.ColumnMetadata) bool {
			return !m.IsArray && m.GqlType == "Date"
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              120,
		},
	}
}

func jsonEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeJSON,
		Component: cells.NewComponent("standard/json", renderJSON),
		Parse:     parseJSON,
		Match: func(m cells.ColumnMetadata) bool {
			return !m.IsArray && m.GqlType == "JSON"
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryAdvanced,
			SupportsInlineEdit: true,
			Width:              260,
		},
	}
}

func arrayEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeArray,
		Component: cells.NewComponent("standard/array", renderJSON),
		Parse:     parseArray,
		Default:   func(cells.ColumnMetadata) any { return "[]" },
		Match: func(m cells.ColumnMetadata) bool {
			return m.IsArray
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryAdvanced,
			SupportsInlineEdit: true,
			Width:              240,
		},
	}
}

// relationEntry carries display metadata for relation cells. It has no
// match predicate: the resolver's relation override is what routes
// columns here.
func relationEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeRelation,
		Component: cells.NewComponent("standard/relation", renderRelation),
		Meta: cells.EntryMeta{
			Category:           cells.CategoryAdvanced,
			SupportsInlineEdit: true,
			Width:              240,
		},
	}
}

func longTextEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeLongText,
		Component: cells.NewComponent("standard/longtext", renderPlain),
		Default:   func(cells.ColumnMetadata) any { return "" },
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray || m.GqlType != "String" {
				return false
			}
			return m.Subtype == "longtext" || fieldHint(m.FieldName, "description", "notes", "body", "content")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsFilter:     true,
			Width:              320,
		},
	}
}

// textEntry is the String catch-all and must stay last.
func textEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeText,
		Component: cells.NewComponent("standard/text", renderPlain),
		Default:   func(cells.ColumnMetadata) any { return "" },
		Match: func(m cells.ColumnMetadata) bool {
			return !m.IsArray && m.GqlType == "String"
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryBasic,
			SupportsInlineEdit: true,
			SupportsSort:       true,
			SupportsFilter:     true,
			Width:              200,
		},
	}
}

// fieldHint reports whether the grid field name ends with or equals one of
// the given hints, case-insensitively ("contactEmail", "email").
func fieldHint(fieldName string, hints ...string) bool {
	name := strings.ToLower(fieldName)
	for _, h := range hints {
		if name == h || strings.HasSuffix(name, h) {
			return true
		}
	}
	return false
}
