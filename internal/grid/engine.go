// ABOUTME: The edit engine: routes cell edits to draft buffers or the mutation layer.
// ABOUTME: Mutation failures surface as noop results at the call site, never as thrown errors.

package grid

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/plugins/cells"
)

// ActionColumn is the synthetic draft-action column; edits to it are
// always no-ops.
const ActionColumn = "__actions"

type Outcome string

const (
	Committed Outcome = "committed"
	Noop      Outcome = "noop"
)

// EditResult reports a cell edit. A failed server mutation yields
// Outcome=Noop with Err set; retry is the caller's concern.
type EditResult struct {
	Outcome Outcome        `json:"outcome"`
	Row     map[string]any `json:"row,omitempty"`
	Err     error          `json:"-"`
}

// Mutator is the external mutation layer: it persists rows and returns
// the created or updated server row.
type Mutator interface {
	InsertRow(ctx context.Context, t *schema.TableDef, values map[string]any) (map[string]any, error)
	UpdateRow(ctx context.Context, t *schema.TableDef, rowID string, patch map[string]any) (map[string]any, error)
	DeleteRow(ctx context.Context, t *schema.TableDef, rowID string) error
}

// EngineConfig wires an Engine. Registry, Mutator, and Relations are
// required; the rest defaults.
type EngineConfig struct {
	Registry  *cells.Registry
	Mutator   Mutator
	Relations *RelationCache
	Drafts    *DraftStore
	Logger    *zap.Logger

	// OnCellEdit runs after a successful server-row edit with the fresh row.
	OnCellEdit func(t *schema.TableDef, row map[string]any)
	// Invalidate runs after any successful mutation.
	Invalidate func(t *schema.TableDef)
	// Upload is handed to media editors.
	Upload UploadFunc
}

type Engine struct {
	registry   *cells.Registry
	resolver   *Resolver
	mutator    Mutator
	relations  *RelationCache
	drafts     *DraftStore
	logger     *zap.Logger
	onCellEdit func(t *schema.TableDef, row map[string]any)
	invalidate func(t *schema.TableDef)
	upload     UploadFunc
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Drafts == nil {
		cfg.Drafts = NewDraftStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		registry:   cfg.Registry,
		resolver:   NewResolver(cfg.Registry),
		mutator:    cfg.Mutator,
		relations:  cfg.Relations,
		drafts:     cfg.Drafts,
		logger:     cfg.Logger,
		onCellEdit: cfg.OnCellEdit,
		invalidate: cfg.Invalidate,
		upload:     cfg.Upload,
	}
}

func (e *Engine) Drafts() *DraftStore { return e.drafts }

func (e *Engine) Resolver() *Resolver { return e.resolver }

// Relations exposes the relation metadata cache so schema mutations can
// invalidate it.
func (e *Engine) Relations() *RelationCache { return e.relations }

// ApplyEdit routes one cell edit. Draft edits mutate the draft buffer and
// never touch the mutation layer; server edits go through Mutator.Update
// and swallow failure into a noop result.
func (e *Engine) ApplyEdit(ctx context.Context, t *schema.TableDef, rowID string, isDraft bool, column string, raw any) EditResult {
	if column == ActionColumn {
		return EditResult{Outcome: Noop}
	}
	if isDraft && column == schema.ColumnID {
		return EditResult{Outcome: Noop}
	}

	relations, err := e.relations.EnsureRelationInfo(ctx, t.ID)
	if err != nil {
		return EditResult{Outcome: Noop, Err: fmt.Errorf("relation metadata for %s: %w", t.Name, err)}
	}

	meta := columnMeta(t, column)
	res := e.resolver.Resolve(ResolveRequest{
		Table:     t.Name,
		Column:    column,
		Meta:      meta,
		Relations: relations,
	})

	editor, ok := CreateEditor(EditorContext{
		Table:     t.Name,
		ColumnKey: column,
		CellType:  res.CellType,
		Meta:      meta,
		IsDraft:   isDraft,
		Relations: relations,
		Registry:  e.registry,
		Upload:    e.upload,
	})
	if !ok {
		return EditResult{Outcome: Noop}
	}

	patch, err := editor.Apply(raw)
	if err != nil {
		return EditResult{Outcome: Noop, Err: err}
	}

	values := map[string]any{column: patch.StoredValue}
	for k, v := range patch.ExtraValues {
		values[k] = v
	}

	if isDraft {
		if !e.drafts.Update(t.Name, rowID, values) {
			return EditResult{Outcome: Noop, Err: fmt.Errorf("draft %s not found", rowID)}
		}
		row, _ := e.drafts.Get(t.Name, rowID)
		return EditResult{Outcome: Committed, Row: row}
	}

	row, err := e.mutator.UpdateRow(ctx, t, rowID, values)
	if err != nil {
		e.logger.Warn("row update failed",
			zap.String("table", t.Name),
			zap.String("row", rowID),
			zap.Error(err))
		return EditResult{Outcome: Noop, Err: err}
	}

	if e.onCellEdit != nil {
		e.onCellEdit(t, row)
	}
	if e.invalidate != nil {
		e.invalidate(t)
	}
	return EditResult{Outcome: Committed, Row: row}
}

// CreateDraft stages a new draft row, seeding column defaults from the
// registered cell entries.
func (e *Engine) CreateDraft(ctx context.Context, t *schema.TableDef) map[string]any {
	defaults := make(map[string]any)
	for _, f := range t.Fields {
		meta := schema.ColumnMetadataFor(f)
		res := e.resolver.Resolve(ResolveRequest{
			Table:  t.Name,
			Column: schema.GqlFieldName(f.Name),
			Meta:   meta,
		})
		if entry, ok := e.registry.Get(res.CellType); ok && entry.Default != nil {
			defaults[schema.GqlFieldName(f.Name)] = entry.Default(meta)
		}
	}
	return e.drafts.Create(t.Name, defaults)
}

// SubmitDraft inserts a draft through the mutation layer. Success removes
// the draft and returns the created server row; failure keeps the draft
// intact for retry.
func (e *Engine) SubmitDraft(ctx context.Context, t *schema.TableDef, draftID string) (map[string]any, error) {
	values, ok := e.drafts.Values(t.Name, draftID)
	if !ok {
		return nil, fmt.Errorf("draft %s not found", draftID)
	}

	row, err := e.mutator.InsertRow(ctx, t, values)
	if err != nil {
		return nil, fmt.Errorf("submit draft %s: %w", draftID, err)
	}

	e.drafts.Discard(t.Name, draftID)
	if e.invalidate != nil {
		e.invalidate(t)
	}
	return row, nil
}

// DeleteRow removes a server row through the mutation layer.
func (e *Engine) DeleteRow(ctx context.Context, t *schema.TableDef, rowID string) error {
	if err := e.mutator.DeleteRow(ctx, t, rowID); err != nil {
		return err
	}
	if e.invalidate != nil {
		e.invalidate(t)
	}
	return nil
}

// MergedRows appends a table's drafts after the given server rows.
func (e *Engine) MergedRows(table string, serverRows []map[string]any) []map[string]any {
	return MergeRows(serverRows, e.drafts.List(table))
}

// columnMeta derives a column's metadata from its catalog definition.
// Columns without one (relations, synthetics) carry only their field name.
func columnMeta(t *schema.TableDef, column string) cells.ColumnMetadata {
	if f, ok := fieldByGridName(t, column); ok {
		return schema.ColumnMetadataFor(f)
	}
	return cells.ColumnMetadata{FieldName: column}
}
