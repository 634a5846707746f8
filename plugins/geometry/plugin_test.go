// ABOUTME: Tests for WKT point parsing, validation, and rendering.
// ABOUTME: Covers canonical storage and coordinate range checks.

package geometry

import (
	"testing"

	"github.com/constructive-io/gridbase/plugins/cells"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		input   string
		wantLng float64
		wantLat float64
		wantErr bool
	}{
		{"POINT(13.405 52.52)", 13.405, 52.52, false},
		{"point( -0.1276  51.5072 )", -0.1276, 51.5072, false},
		{"POINT(200 10)", 0, 0, true},
		{"POINT(10 95)", 0, 0, true},
		{"POINT(10)", 0, 0, true},
		{"LINESTRING(0 0, 1 1)", 0, 0, true},
		{"not geometry", 0, 0, true},
	}

	for _, tt := range tests {
		p, err := ParsePoint(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePoint(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (p.Lng != tt.wantLng || p.Lat != tt.wantLat) {
			t.Errorf("ParsePoint(%q) = %+v, want (%v, %v)", tt.input, p, tt.wantLng, tt.wantLat)
		}
	}
}

func TestParseNormalizesToWKT(t *testing.T) {
	meta := cells.ColumnMetadata{}
	got, err := parse("point( 13.405  52.52 )", meta)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if got != "POINT(13.405 52.52)" {
		t.Errorf("parse() = %q, want canonical WKT", got)
	}

	got, err = parse(map[string]any{"lng": 13.405, "lat": 52.52}, meta)
	if err != nil {
		t.Fatalf("parse(object) error = %v", err)
	}
	if got != "POINT(13.405 52.52)" {
		t.Errorf("parse(object) = %q, want canonical WKT", got)
	}

	if _, err := parse(map[string]any{"lng": "east"}, meta); err == nil {
		t.Error("parse(bad object) error = nil, want error")
	}
	if got, err := parse("", meta); err != nil || got != nil {
		t.Errorf("parse(empty) = %v, %v; want nil, nil", got, err)
	}
}

func TestMatch(t *testing.T) {
	r := cells.NewRegistry(nil)
	if res, err := r.InstallPlugin(Plugin()); res != cells.InstallOK {
		t.Fatalf("InstallPlugin() = %v, err %v", res, err)
	}

	entry, ok := r.FindByMatch(cells.ColumnMetadata{GqlType: "GeoJSON", FieldName: "location"})
	if !ok || entry.Type != cells.TypeGeometry {
		t.Errorf("FindByMatch(GeoJSON) = %v, want geometry", entry.Type)
	}

	entry, ok = r.FindByMatch(cells.ColumnMetadata{GqlType: "String", PgAlias: "geography", FieldName: "area"})
	if !ok || entry.Type != cells.TypeGeometry {
		t.Errorf("FindByMatch(geography alias) = %v, want geometry", entry.Type)
	}

	if _, ok := r.FindByMatch(cells.ColumnMetadata{GqlType: "String", FieldName: "name"}); ok {
		t.Error("FindByMatch(plain string) matched geometry, want no match")
	}
}

func TestRender(t *testing.T) {
	if got := render("POINT(13.405 52.52)", cells.ColumnMetadata{}); got != "52.52000, 13.40500" {
		t.Errorf("render() = %q, want lat, lng display", got)
	}
	if got := render(nil, cells.ColumnMetadata{}); got != "" {
		t.Errorf("render(nil) = %q, want empty", got)
	}
	if got := render("garbage", cells.ColumnMetadata{}); got != "garbage" {
		t.Errorf("render(garbage) = %q, want pass-through", got)
	}
}
