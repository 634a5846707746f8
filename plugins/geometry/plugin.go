// ABOUTME: Geometry cell plugin: WKT point values for geometry/geography columns.
// ABOUTME: Cells store canonical "POINT(lng lat)" text and render as coordinates.

package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/constructive-io/gridbase/plugins/cells"
)

const (
	pluginName    = "geometry-cells"
	pluginVersion = "1.0.0"
)

type Point struct {
	Lng float64
	Lat float64
}

func (p Point) WKT() string {
	return fmt.Sprintf("POINT(%s %s)",
		strconv.FormatFloat(p.Lng, 'f', -1, 64),
		strconv.FormatFloat(p.Lat, 'f', -1, 64))
}

// ParsePoint reads a WKT point, tolerating whitespace and case.
func ParsePoint(s string) (Point, error) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "POINT") {
		return Point{}, fmt.Errorf("%q is not a WKT point", s)
	}
	open := strings.Index(trimmed, "(")
	end := strings.LastIndex(trimmed, ")")
	if open < 0 || end < open {
		return Point{}, fmt.Errorf("%q is not a WKT point", s)
	}

	coords := strings.Fields(trimmed[open+1 : end])
	if len(coords) != 2 {
		return Point{}, fmt.Errorf("%q must have exactly two coordinates", s)
	}
	lng, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad longitude %q", coords[0])
	}
	lat, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("bad latitude %q", coords[1])
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return Point{}, fmt.Errorf("coordinates out of range: %v, %v", lng, lat)
	}
	return Point{Lng: lng, Lat: lat}, nil
}

// Plugin returns the geometry cell. It matches geometry/geography columns
// by schema; in-grid tagged geometry cells route here through the
// resolver regardless.
func Plugin() cells.Plugin {
	return cells.Plugin{
		Name:    pluginName,
		Version: pluginVersion,
		Cells:   []cells.Entry{entry()},
	}
}

func entry() cells.Entry {
	return cells.Entry{
		Type:      cells.TypeGeometry,
		Component: cells.NewComponent("geometry/point", render),
		Parse:     parse,
		Validate:  validate,
		Match: func(m cells.ColumnMetadata) bool {
			if m.IsArray {
				return false
			}
			switch {
			case m.GqlType == "GeoJSON":
				return true
			case strings.EqualFold(m.PgAlias, "geometry"), strings.EqualFold(m.PgAlias, "geography"):
				return true
			}
			return false
		},
		Meta: cells.EntryMeta{
			Category:           cells.CategoryCustom,
			SupportsInlineEdit: true,
			ActivateForView:    true,
			Width:              200,
		},
	}
}

// parse accepts WKT text or a {lng, lat} object and stores canonical WKT.
func parse(raw any, _ cells.ColumnMetadata) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		p, err := ParsePoint(v)
		if err != nil {
			return nil, err
		}
		return p.WKT(), nil
	case map[string]any:
		lng, lok := toFloat(v["lng"])
		lat, aok := toFloat(v["lat"])
		if !lok || !aok {
			return nil, fmt.Errorf("geometry object needs numeric lng and lat")
		}
		p := Point{Lng: lng, Lat: lat}
		if _, err := ParsePoint(p.WKT()); err != nil {
			return nil, err
		}
		return p.WKT(), nil
	}
	return nil, fmt.Errorf("cannot read %T as geometry", raw)
}

func validate(value any, _ cells.ColumnMetadata) error {
	s, ok := value.(string)
	if value == nil || (ok && s == "") {
		return nil
	}
	if !ok {
		return fmt.Errorf("expected WKT text, got %T", value)
	}
	_, err := ParsePoint(s)
	return err
}

func render(value any, _ cells.ColumnMetadata) string {
	s, ok := value.(string)
	if !ok || s == "" {
		return ""
	}
	p, err := ParsePoint(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
