// ABOUTME: Media cell plugin: image and attachment cells storing file URLs.
// ABOUTME: Uploads happen through an injected callback; this plugin owns no client.

package media

import (
	"fmt"
	"strings"

	"github.com/go-openapi/strfmt"

	"github.com/constructive-io/gridbase/plugins/cells"
)

const (
	pluginName    = "media-cells"
	pluginVersion = "1.0.0"
)

// Plugin returns the media cell set. Editors for these types receive the
// engine's upload callback and store the returned URL.
func Plugin() cells.Plugin {
	return cells.Plugin{
		Name:    pluginName,
		Version: pluginVersion,
		Cells: []cells.Entry{
			imageEntry(),
			attachmentEntry(),
		},
	}
}

func imageEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeImage,
		Component: cells.NewComponent("media/image", renderURL),
		Validate:  validateURL,
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray || m.GqlType != "String" {
				return false
			}
			return m.Subtype == "image" || fieldHint(m.FieldName, "image", "photo", "avatar", "thumbnail")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryMedia,
			SupportsInlineEdit: true,
			ActivateForView:    true,
			Width:              160,
		},
	}
}

func attachmentEntry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeAttachment,
		Component: cells.NewComponent("media/attachment", renderURL),
		Validate:  validateURL,
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray || m.GqlType != "String" {
				return false
			}
			return m.Subtype == "attachment" || fieldHint(m.FieldName, "attachment", "file", "document")
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryMedia,
			SupportsInlineEdit: true,
			ActivateForView:    true,
			Width:              180,
		},
	}
}

func validateURL(value any, _ cells.ColumnMetadata) error {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected a URL, got %T", value)
	}
	if s == "" {
		return nil
	}
	if !strfmt.Default.Validates("uri", s) {
		return fmt.Errorf("%q is not a valid URL", s)
	}
	return nil
}

// renderURL shows the file name portion of the stored URL.
func renderURL(value any, _ cells.ColumnMetadata) string {
	s, ok := value.(string)
	if !ok || s == "" {
		return ""
	}
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}

func fieldHint(fieldName string, hints ...string) bool {
	name := strings.ToLower(fieldName)
	for _, h := range hints {
		if name == h || strings.HasSuffix(name, h) {
			return true
		}
	}
	return false
}
