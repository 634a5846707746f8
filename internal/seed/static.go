// ABOUTME: Demo workspace seeding: org, tables, and static fallback rows
// ABOUTME: used when no OpenAI key is configured.

package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/constructive-io/gridbase/internal/schema"
	"github.com/constructive-io/gridbase/internal/store"
)

// Demo workspace identity.
const (
	DemoOrgName   = "Demo Workspace"
	DemoOrgSlug   = "demo"
	DemoOwner     = "dana@example.com"
	DemoOwnerName = "Dana Kim"
)

// Result summarizes what seeding created.
type Result struct {
	Org    *store.Org
	Tables []string
	Rows   int
}

// Apply builds the demo workspace: an org with an owner, the demo tables,
// and rowsPerTable sample rows in each. Seeding an already-seeded database
// fails on the org slug; reset first.
func Apply(ctx context.Context, s *store.Store, gen *Generator, rowsPerTable int) (*Result, error) {
	owner, err := s.CreateUser(DemoOwner, DemoOwnerName)
	if err != nil {
		return nil, fmt.Errorf("creating demo user: %w", err)
	}
	org, err := s.CreateOrg(DemoOrgName, DemoOrgSlug, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("creating demo org: %w", err)
	}

	res := &Result{Org: org}
	seeded := map[string][]string{}
	for _, def := range demoTables() {
		created, err := s.CreateTable(org.ID, def)
		if err != nil {
			return nil, fmt.Errorf("creating table %s: %w", def.Name, err)
		}
		res.Tables = append(res.Tables, created.Name)

		for i, values := range gen.Rows(ctx, created, rowsPerTable) {
			linkRelations(created, values, seeded, i)
			row, err := s.InsertRow(ctx, created, values)
			if err != nil {
				return nil, fmt.Errorf("seeding row in %s: %w", created.Name, err)
			}
			if id, ok := row["id"].(string); ok {
				seeded[created.Name] = append(seeded[created.Name], id)
			}
			res.Rows++
		}
	}
	return res, nil
}

// linkRelations points each belongsTo key at an already-seeded target row,
// cycling so ownership spreads across the set.
func linkRelations(def *schema.TableDef, values map[string]any, seeded map[string][]string, i int) {
	for _, rel := range def.Relations {
		if rel.Kind != schema.RelationBelongsTo || rel.KeyColumn == "" {
			continue
		}
		targets := seeded[rel.TargetTable]
		if len(targets) == 0 {
			continue
		}
		values[schema.GqlFieldName(rel.KeyColumn)] = targets[i%len(targets)]
	}
}

// demoTables returns the demo tables in creation order, so relation targets
// are seeded before the tables that point at them.
func demoTables() []schema.TableDef {
	return []schema.TableDef{
		{
			Name:    "people",
			Comment: "Team members referenced by projects and tasks",
			Fields: []schema.FieldDef{
				{Name: "name", Type: "text", NotNull: true},
				{Name: "email", Type: "text"},
				{Name: "role", Type: "text"},
			},
		},
		{
			Name:    "projects",
			Comment: "Active workstreams with a responsible owner",
			Fields: []schema.FieldDef{
				{Name: "name", Type: "text", NotNull: true},
				{Name: "status", Type: "text", HasDefault: true, Default: "planned"},
				{Name: "due_date", Type: "timestamp"},
			},
			Relations: []schema.RelationDef{
				{Name: "owner", Kind: schema.RelationBelongsTo, FieldName: "owner", TargetTable: "people"},
			},
		},
		{
			Name:    "tasks",
			Comment: "Work items grouped under projects",
			Fields: []schema.FieldDef{
				{Name: "title", Type: "text", NotNull: true},
				{Name: "points", Type: "integer"},
				{Name: "done", Type: "boolean", HasDefault: true, Default: "false"},
				{Name: "notes", Type: "text", Subtype: "longtext"},
			},
			Relations: []schema.RelationDef{
				{Name: "owner", Kind: schema.RelationBelongsTo, FieldName: "owner", TargetTable: "people"},
				{Name: "project", Kind: schema.RelationBelongsTo, FieldName: "project", TargetTable: "projects"},
			},
		},
	}
}

// staticRows returns fallback sample rows for def, cycling the table's
// template set. Tables without a curated set get type-derived values.
func staticRows(def *schema.TableDef, count int) []map[string]any {
	var templates []map[string]any
	switch def.Name {
	case "people":
		templates = peopleTemplates()
	case "projects":
		templates = projectTemplates()
	case "tasks":
		templates = taskTemplates()
	default:
		templates = typedTemplates(def)
	}
	if len(templates) == 0 {
		return nil
	}

	rows := make([]map[string]any, count)
	for i := range rows {
		src := templates[i%len(templates)]
		row := make(map[string]any, len(src))
		for k, v := range src {
			row[k] = v
		}
		rows[i] = row
	}
	return rows
}

func peopleTemplates() []map[string]any {
	return []map[string]any{
		{"name": "Dana Kim", "email": "dana@example.com", "role": "Engineering Lead"},
		{"name": "Sam Ortega", "email": "sam@example.com", "role": "Product Manager"},
		{"name": "Priya Natarajan", "email": "priya@example.com", "role": "Backend Engineer"},
		{"name": "Jonas Weber", "email": "jonas@example.com", "role": "Designer"},
		{"name": "Mei Larsen", "email": "mei@example.com", "role": "Data Analyst"},
		{"name": "Tomás Rivera", "email": "tomas@example.com", "role": "Frontend Engineer"},
		{"name": "Aisha Bello", "email": "aisha@example.com", "role": "QA Engineer"},
		{"name": "Oleg Fedorov", "email": "oleg@example.com", "role": "SRE"},
	}
}

func projectTemplates() []map[string]any {
	now := time.Now().UTC()
	due := func(days int) string {
		return now.AddDate(0, 0, days).Format(time.RFC3339)
	}
	return []map[string]any{
		{"name": "Website Relaunch", "status": "active", "dueDate": due(21)},
		{"name": "Mobile Onboarding", "status": "active", "dueDate": due(35)},
		{"name": "Billing Migration", "status": "planned", "dueDate": due(60)},
		{"name": "Internal Dashboard", "status": "active", "dueDate": due(14)},
		{"name": "Q3 Data Cleanup", "status": "done", "dueDate": due(-7)},
		{"name": "Partner API", "status": "planned", "dueDate": due(90)},
	}
}

func taskTemplates() []map[string]any {
	return []map[string]any{
		{"title": "Draft landing page copy", "points": 3, "done": true, "notes": "Reviewed with marketing, final pass pending."},
		{"title": "Set up staging environment", "points": 5, "done": true, "notes": ""},
		{"title": "Migrate invoice records", "points": 8, "done": false, "notes": "Blocked on legal sign-off for retention policy."},
		{"title": "Design empty states", "points": 2, "done": false, "notes": ""},
		{"title": "Instrument signup funnel", "points": 3, "done": false, "notes": "Events list agreed in the analytics doc."},
		{"title": "Fix safari layout glitch", "points": 1, "done": true, "notes": ""},
		{"title": "Write API usage guide", "points": 5, "done": false, "notes": "Cover auth, pagination, and rate limits."},
		{"title": "Load test checkout flow", "points": 8, "done": false, "notes": ""},
		{"title": "Rotate service credentials", "points": 2, "done": true, "notes": ""},
		{"title": "Review third-party licenses", "points": 3, "done": false, "notes": "Legal wants a spreadsheet of transitive deps."},
		{"title": "Prototype CSV import", "points": 5, "done": false, "notes": ""},
		{"title": "Triage mobile crash reports", "points": 3, "done": true, "notes": "Top crasher fixed in 1.4.2."},
	}
}

// typedTemplates fabricates a small row set for tables without curated
// data, one value per field derived from its type.
func typedTemplates(def *schema.TableDef) []map[string]any {
	keyCols := relationKeyColumns(def)
	rows := make([]map[string]any, 5)
	for i := range rows {
		row := map[string]any{}
		for _, f := range def.Fields {
			if keyCols[f.Name] {
				continue
			}
			row[schema.GqlFieldName(f.Name)] = sampleValue(f, i)
		}
		rows[i] = row
	}
	return rows
}

func sampleValue(f schema.FieldDef, i int) any {
	switch schema.GqlTypeFor(f.Type) {
	case "Int":
		return (i + 1) * 3
	case "Boolean":
		return i%2 == 0
	case "Datetime":
		return time.Now().UTC().AddDate(0, 0, i+1).Format(time.RFC3339)
	case "UUID":
		return uuid.NewString()
	default:
		return fmt.Sprintf("Sample %s %d", schema.GqlFieldName(f.Name), i+1)
	}
}
