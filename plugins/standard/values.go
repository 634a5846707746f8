// ABOUTME: Parse, validate, and render helpers for the standard cell entries.
// ABOUTME: Format validation goes through the strfmt registry; values normalize on parse.

package standard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/constructive-io/gridbase/plugins/cells"
)

// validateFormat checks string values against a named strfmt format.
// Nil and empty values pass; clearing a cell is always allowed.
func validateFormat(format string) cells.Validator {
	return func(value any, _ cells.ColumnMetadata) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a string, got %T", value)
		}
		if s == "" {
			return nil
		}
		if !strfmt.Default.Validates(format, s) {
			return fmt.Errorf("%q is not a valid %s", s, format)
		}
		return nil
	}
}

func parseBoolean(raw any, _ cells.ColumnMetadata) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", v)
	}
	return nil, fmt.Errorf("cannot read %T as boolean", raw)
}

func parseNumber(raw any, _ cells.ColumnMetadata) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot read %T as number", raw)
}

// parseDateTime normalizes datetime input to RFC3339 UTC.
func parseDateTime(raw any, _ cells.ColumnMetadata) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return v.UTC().Format(time.RFC3339), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		dt, err := strfmt.ParseDateTime(v)
		if err != nil {
			return nil, fmt.Errorf("%q is not a datetime: %w", v, err)
		}
		return time.Time(dt).UTC().Format(time.RFC3339), nil
	}
	return nil, fmt.Errorf("cannot read %T as datetime", raw)
}

// parseJSON stores JSON cells as canonical text.
func parseJSON(raw any, _ cells.ColumnMetadata) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("invalid JSON")
		}
		return v, nil
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return nil, fmt.Errorf("cannot read %T as JSON", raw)
}

// parseArray stores array cells as JSON array text.
func parseArray(raw any, _ cells.ColumnMetadata) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, fmt.Errorf("%q is not a JSON array", v)
		}
		return s, nil
	}
	return nil, fmt.Errorf("cannot read %T as array", raw)
}

func renderPlain(value any, _ cells.ColumnMetadata) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func renderBoolean(value any, _ cells.ColumnMetadata) string {
	b, ok := value.(bool)
	if !ok {
		return ""
	}
	if b {
		return "true"
	}
	return "false"
}

func renderNumber(value any, _ cells.ColumnMetadata) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return fmt.Sprint(value)
}

func renderDateTime(value any, _ cells.ColumnMetadata) string {
	s, ok := value.(string)
	if !ok || s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04")
}

func renderJSON(value any, _ cells.ColumnMetadata) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// renderRelation prefers a human label from the relation object, falling
// back to the id.
func renderRelation(value any, _ cells.ColumnMetadata) string {
	obj, ok := value.(map[string]any)
	if !ok {
		return renderPlain(value, cells.ColumnMetadata{})
	}
	for _, key := range []string{"name", "title", "label", "email"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	if id, ok := obj["id"].(string); ok {
		return id
	}
	return ""
}
