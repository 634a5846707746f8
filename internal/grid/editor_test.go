// ABOUTME: Tests for editor construction and the relation edit sub-cases.
// ABOUTME: Display-field and foreign-key edits must stage reciprocal patches.

package grid

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"

	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/plugins/cells"
)

func taskRelations() map[string]schema.RelationInfo {
	return map[string]schema.RelationInfo{
		"owner": {FieldName: "owner", Kind: schema.RelationBelongsTo, ForeignKey: "ownerId", TargetTable: "users"},
	}
}

func TestCreateEditorDraftIDHasNoEditor(t *testing.T) {
	_, ok := CreateEditor(EditorContext{
		ColumnKey: "id",
		CellType:  cells.TypeUUID,
		IsDraft:   true,
		Registry:  cells.NewRegistry(nil),
	})
	if ok {
		t.Error("CreateEditor(draft id) ok = true, want false")
	}
}

func TestCreateEditorUnknownType(t *testing.T) {
	_, ok := CreateEditor(EditorContext{
		ColumnKey: "mystery",
		CellType:  cells.Type("mystery"),
		Registry:  cells.NewRegistry(nil),
	})
	if ok {
		t.Error("CreateEditor(unknown type) ok = true, want false")
	}
}

func TestRelationEditorDisplayField(t *testing.T) {
	ed, ok := CreateEditor(EditorContext{
		ColumnKey: "owner",
		CellType:  cells.TypeRelation,
		Relations: taskRelations(),
		Registry:  cells.NewRegistry(nil),
	})
	if !ok {
		t.Fatal("CreateEditor(owner) returned no editor")
	}

	raw := map[string]any{"id": "u2", "name": "Dana"}
	patch, err := ed.Apply(raw)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	obj, ok := patch.StoredValue.(map[string]any)
	if !ok || obj["id"] != "u2" {
		t.Errorf("StoredValue = %v, want the relation object", patch.StoredValue)
	}
	if got := patch.ExtraValues["ownerId"]; got != "u2" {
		t.Errorf("ExtraValues[ownerId] = %v, want u2", got)
	}
}

func TestRelationEditorForeignKeyField(t *testing.T) {
	ed, ok := CreateEditor(EditorContext{
		ColumnKey: "ownerId",
		CellType:  cells.TypeUUID,
		Relations: taskRelations(),
		Registry:  cells.NewRegistry(nil),
	})
	if !ok {
		t.Fatal("CreateEditor(ownerId) returned no editor")
	}

	patch, err := ed.Apply("u2")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if patch.StoredValue != "u2" {
		t.Errorf("StoredValue = %v, want u2", patch.StoredValue)
	}

	obj, ok := patch.ExtraValues["owner"].(map[string]any)
	if !ok {
		t.Fatalf("ExtraValues[owner] = %v, want reciprocal relation object", patch.ExtraValues["owner"])
	}
	if obj["id"] != "u2" {
		t.Errorf("ExtraValues[owner][id] = %v, want u2", obj["id"])
	}
}

func TestRelationEditorClear(t *testing.T) {
	relations := taskRelations()

	display, _ := CreateEditor(EditorContext{ColumnKey: "owner", CellType: cells.TypeRelation, Relations: relations, Registry: cells.NewRegistry(nil)})
	patch, err := display.Apply(nil)
	if err != nil {
		t.Fatalf("Apply(nil) error = %v", err)
	}
	if patch.StoredValue != nil {
		t.Errorf("StoredValue = %v, want nil", patch.StoredValue)
	}
	if v, present := patch.ExtraValues["ownerId"]; !present || v != nil {
		t.Errorf("ExtraValues[ownerId] = %v (present=%v), want staged nil", v, present)
	}

	fk, _ := CreateEditor(EditorContext{ColumnKey: "ownerId", CellType: cells.TypeUUID, Relations: relations, Registry: cells.NewRegistry(nil)})
	patch, err = fk.Apply(nil)
	if err != nil {
		t.Fatalf("Apply(nil) error = %v", err)
	}
	if v, present := patch.ExtraValues["owner"]; !present || v != nil {
		t.Errorf("ExtraValues[owner] = %v (present=%v), want staged nil", v, present)
	}
}

func TestRelationEditorNonObjectValue(t *testing.T) {
	ed, _ := CreateEditor(EditorContext{
		ColumnKey: "owner",
		CellType:  cells.TypeRelation,
		Relations: taskRelations(),
		Registry:  cells.NewRegistry(nil),
	})

	patch, err := ed.Apply("just a string")
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if patch.StoredValue != "just a string" {
		t.Errorf("StoredValue = %v, want pass-through", patch.StoredValue)
	}
	if len(patch.ExtraValues) != 0 {
		t.Errorf("ExtraValues = %v, want none", patch.ExtraValues)
	}
}

func TestEntryEditorParseAndValidate(t *testing.T) {
	r := cells.NewRegistry(nil)
	r.Register(cells.Entry{
		Type:      cells.TypeNumber,
		Component: cells.NewComponent("number.view", nil),
		Parse: func(raw any, _ cells.ColumnMetadata) (any, error) {
			f, ok := raw.(float64)
			if !ok {
				return nil, fmt.Errorf("not a number: %v", raw)
			}
			return f, nil
		},
		Validate: func(v any, _ cells.ColumnMetadata) error {
			if v.(float64) < 0 {
				return errors.New("must be non-negative")
			}
			return nil
		},
	})

	ed, ok := CreateEditor(EditorContext{ColumnKey: "points", CellType: cells.TypeNumber, Registry: r})
	if !ok {
		t.Fatal("CreateEditor returned no editor")
	}

	patch, err := ed.Apply(float64(5))
	if err != nil {
		t.Fatalf("Apply(5) error = %v", err)
	}
	if patch.StoredValue != float64(5) {
		t.Errorf("StoredValue = %v, want 5", patch.StoredValue)
	}

	if _, err := ed.Apply("five"); err == nil {
		t.Error("Apply(five) error = nil, want parse error")
	}
	if _, err := ed.Apply(float64(-1)); err == nil {
		t.Error("Apply(-1) error = nil, want validation error")
	}
}

func TestUploadEditor(t *testing.T) {
	r := cells.NewRegistry(nil)
	r.Register(cells.Entry{Type: cells.TypeImage, Component: cells.NewComponent("image.view", nil)})

	var gotName string
	var gotContent []byte
	ed, ok := CreateEditor(EditorContext{
		ColumnKey: "photo",
		CellType:  cells.TypeImage,
		Registry:  r,
		Upload: func(name string, content []byte) (string, error) {
			gotName, gotContent = name, content
			return "https://files.local/" + name, nil
		},
	})
	if !ok {
		t.Fatal("CreateEditor returned no editor")
	}

	patch, err := ed.Apply(map[string]any{
		"name":    "cat.png",
		"content": base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if patch.StoredValue != "https://files.local/cat.png" {
		t.Errorf("StoredValue = %v, want uploaded URL", patch.StoredValue)
	}
	if gotName != "cat.png" || string(gotContent) != "png-bytes" {
		t.Errorf("upload received (%q, %q), want (cat.png, png-bytes)", gotName, gotContent)
	}

	// A plain URL string bypasses the upload.
	patch, err = ed.Apply("https://elsewhere/img.png")
	if err != nil {
		t.Fatalf("Apply(url) error = %v", err)
	}
	if patch.StoredValue != "https://elsewhere/img.png" {
		t.Errorf("StoredValue = %v, want pass-through URL", patch.StoredValue)
	}

	if _, err := ed.Apply(map[string]any{"name": "x", "content": "!!not-base64!!"}); err == nil {
		t.Error("Apply(bad base64) error = nil, want error")
	}
}
