// ABOUTME: Editor construction for grid cells, including the relation edit sub-cases.
// ABOUTME: Editors turn raw input into patches; network effects arrive as injected callbacks.

package grid

import (
	"encoding/base64"
	"fmt"

	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/plugins/cells"
)

// Patch is the result of applying an edit: the value stored under the
// edited column plus any side-channel values merged into the same row
// (relation foreign keys and their reciprocal objects).
type Patch struct {
	StoredValue any
	ExtraValues map[string]any
}

// UploadFunc stores file contents somewhere and returns the stored URL.
// Media editors receive it injected; they never own a client.
type UploadFunc func(name string, content []byte) (string, error)

// EditorContext describes the cell being edited. Meta feeds the entry's
// Parse and Validate funcs.
type EditorContext struct {
	Table     string
	ColumnKey string
	CellType  cells.Type
	Meta      cells.ColumnMetadata
	Row       map[string]any
	IsDraft   bool
	Relations map[string]schema.RelationInfo
	Registry  *cells.Registry
	Upload    UploadFunc
}

type Editor struct {
	apply func(raw any) (Patch, error)
}

func (e *Editor) Apply(raw any) (Patch, error) {
	return e.apply(raw)
}

// CreateEditor builds the editor for a cell, or reports that the cell has
// none. Draft rows have no persisted id yet, so their id column is never
// editable. Relation columns (display field or raw foreign key) route to
// the relation editor; media types wrap the upload callback; everything
// else defers to the registered entry for the cell type.
func CreateEditor(ectx EditorContext) (*Editor, bool) {
	if ectx.IsDraft && ectx.ColumnKey == schema.ColumnID {
		return nil, false
	}

	if rel, mode, ok := relationFor(ectx); ok {
		return relationEditor(rel, mode), true
	}

	entry, ok := ectx.Registry.Get(ectx.CellType)
	if !ok {
		return nil, false
	}

	switch ectx.CellType {
	case cells.TypeImage, cells.TypeAttachment:
		if ectx.Upload != nil {
			return uploadEditor(entry, ectx.Meta, ectx.Upload), true
		}
	}
	return entryEditor(entry, ectx.Meta), true
}

type relationEditMode int

const (
	editDisplayField relationEditMode = iota
	editForeignKey
)

// relationFor matches the edited column against the table's relations,
// first as a display field, then as a belongsTo foreign-key field.
func relationFor(ectx EditorContext) (schema.RelationInfo, relationEditMode, bool) {
	if rel, ok := ectx.Relations[ectx.ColumnKey]; ok {
		return rel, editDisplayField, true
	}
	if rel, ok := schema.ForeignKeyOwner(ectx.Relations, ectx.ColumnKey); ok {
		return rel, editForeignKey, true
	}
	return schema.RelationInfo{}, 0, false
}

// relationEditor stages reciprocal patches so the display object and its
// foreign key never drift apart. Setting owner to {id: u2} stages
// ownerId=u2; setting ownerId to u2 stages owner={id: u2}.
func relationEditor(rel schema.RelationInfo, mode relationEditMode) *Editor {
	return &Editor{apply: func(raw any) (Patch, error) {
		switch mode {
		case editDisplayField:
			if rel.ForeignKey == "" {
				return Patch{StoredValue: raw}, nil
			}
			if raw == nil {
				return Patch{StoredValue: nil, ExtraValues: map[string]any{rel.ForeignKey: nil}}, nil
			}
			obj, ok := raw.(map[string]any)
			if !ok {
				return Patch{StoredValue: raw}, nil
			}
			id, ok := obj["id"]
			if !ok {
				return Patch{StoredValue: raw}, nil
			}
			return Patch{StoredValue: obj, ExtraValues: map[string]any{rel.ForeignKey: id}}, nil

		case editForeignKey:
			if raw == nil {
				return Patch{StoredValue: nil, ExtraValues: map[string]any{rel.FieldName: nil}}, nil
			}
			return Patch{
				StoredValue: raw,
				ExtraValues: map[string]any{rel.FieldName: map[string]any{"id": raw}},
			}, nil
		}
		return Patch{StoredValue: raw}, nil
	}}
}

// entryEditor applies the registered entry's Parse then Validate.
func entryEditor(entry cells.Entry, meta cells.ColumnMetadata) *Editor {
	return &Editor{apply: func(raw any) (Patch, error) {
		v := raw
		if entry.Parse != nil {
			parsed, err := entry.Parse(raw, meta)
			if err != nil {
				return Patch{}, err
			}
			v = parsed
		}
		if entry.Validate != nil {
			if err := entry.Validate(v, meta); err != nil {
				return Patch{}, err
			}
		}
		return Patch{StoredValue: v}, nil
	}}
}

// uploadEditor accepts either a plain URL string or {name, content} with
// base64 contents, uploading the latter and storing the returned URL.
func uploadEditor(entry cells.Entry, meta cells.ColumnMetadata, upload UploadFunc) *Editor {
	plain := entryEditor(entry, meta)
	return &Editor{apply: func(raw any) (Patch, error) {
		obj, ok := raw.(map[string]any)
		if !ok {
			return plain.Apply(raw)
		}
		name, _ := obj["name"].(string)
		encoded, _ := obj["content"].(string)
		if encoded == "" {
			return plain.Apply(raw)
		}
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return Patch{}, fmt.Errorf("invalid file content: %w", err)
		}
		url, err := upload(name, content)
		if err != nil {
			return Patch{}, fmt.Errorf("upload failed: %w", err)
		}
		return Patch{StoredValue: url}, nil
	}}
}
