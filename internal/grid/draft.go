// ABOUTME: In-memory staging for draft rows, per table, in creation order.
// ABOUTME: Draft edits mutate this buffer only; nothing here touches the network.

package grid

import (
	"sync"

	"github.com/google/uuid"
)

// DraftMarker flags merged rows that exist only in the draft buffer.
const DraftMarker = "__isDraft"

type draftRow struct {
	id     string
	values map[string]any
}

// DraftStore holds unsubmitted rows keyed by table name. A draft leaves
// the store only by submission or discard.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[string][]*draftRow
}

func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[string][]*draftRow)}
}

// Create stages a new draft row seeded with the given defaults and returns
// its merged view.
func (d *DraftStore) Create(table string, defaults map[string]any) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := &draftRow{id: uuid.NewString(), values: make(map[string]any, len(defaults))}
	for k, v := range defaults {
		row.values[k] = v
	}
	d.drafts[table] = append(d.drafts[table], row)
	return d.view(row)
}

// Update merges values into a draft row. Reports false when the draft does
// not exist (already submitted or discarded).
func (d *DraftStore) Update(table, id string, values map[string]any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := d.find(table, id)
	if row == nil {
		return false
	}
	for k, v := range values {
		row.values[k] = v
	}
	return true
}

// Get returns a draft's merged view: its values plus the draft id and marker.
func (d *DraftStore) Get(table, id string) (map[string]any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := d.find(table, id)
	if row == nil {
		return nil, false
	}
	return d.view(row), true
}

// Values returns a draft's bare values without the draft id or marker,
// the shape handed to the mutation layer on submit.
func (d *DraftStore) Values(table, id string) (map[string]any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := d.find(table, id)
	if row == nil {
		return nil, false
	}
	values := make(map[string]any, len(row.values))
	for k, v := range row.values {
		values[k] = v
	}
	return values, true
}

// List returns a table's drafts as merged views in creation order.
func (d *DraftStore) List(table string) []map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := d.drafts[table]
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, d.view(row))
	}
	return out
}

// Discard removes a draft without submitting it.
func (d *DraftStore) Discard(table, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows := d.drafts[table]
	for i, row := range rows {
		if row.id == id {
			d.drafts[table] = append(rows[:i], rows[i+1:]...)
			return true
		}
	}
	return false
}

func (d *DraftStore) find(table, id string) *draftRow {
	for _, row := range d.drafts[table] {
		if row.id == id {
			return row
		}
	}
	return nil
}

func (d *DraftStore) view(row *draftRow) map[string]any {
	out := make(map[string]any, len(row.values)+2)
	for k, v := range row.values {
		out[k] = v
	}
	out["id"] = row.id
	out[DraftMarker] = true
	return out
}

// MergeRows appends drafts after server rows, preserving both orders.
func MergeRows(serverRows, drafts []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(serverRows)+len(drafts))
	out = append(out, serverRows...)
	out = append(out, drafts...)
	return out
}
