// ABOUTME: Tests for relation metadata derivation.
// ABOUTME: Covers foreign-key field resolution for belongsTo relations.

package schema

import "testing"

func TestRelationMap(t *testing.T) {
	defs := []RelationDef{
		{Name: "task_owner", Kind: RelationBelongsTo, FieldName: "owner", KeyColumn: "owner_id", TargetTable: "users"},
		{Name: "project_tasks", Kind: RelationHasMany, FieldName: "tasks", TargetTable: "tasks"},
	}

	m := RelationMap(defs)
	if len(m) != 2 {
		t.Fatalf("RelationMap() len = %d, want 2", len(m))
	}

	owner, ok := m["owner"]
	if !ok {
		t.Fatal("RelationMap() missing owner field")
	}
	if owner.Kind != RelationBelongsTo {
		t.Errorf("owner.Kind = %q, want belongsTo", owner.Kind)
	}
	if owner.ForeignKey != "ownerId" {
		t.Errorf("owner.ForeignKey = %q, want ownerId", owner.ForeignKey)
	}
	if owner.TargetTable != "users" {
		t.Errorf("owner.TargetTable = %q, want users", owner.TargetTable)
	}

	tasks := m["tasks"]
	if tasks.ForeignKey != "" {
		t.Errorf("tasks.ForeignKey = %q, want empty for hasMany", tasks.ForeignKey)
	}
}

func TestForeignKeyOwner(t *testing.T) {
	m := RelationMap([]RelationDef{
		{Name: "task_owner", Kind: RelationBelongsTo, FieldName: "owner", KeyColumn: "owner_id", TargetTable: "users"},
	})

	info, ok := ForeignKeyOwner(m, "ownerId")
	if !ok {
		t.Fatal("ForeignKeyOwner(ownerId) not found")
	}
	if info.FieldName != "owner" {
		t.Errorf("FieldName = %q, want owner", info.FieldName)
	}

	if _, ok := ForeignKeyOwner(m, "owner"); ok {
		t.Error("ForeignKeyOwner(owner) found, want miss for display field")
	}
	if _, ok := ForeignKeyOwner(m, "status"); ok {
		t.Error("ForeignKeyOwner(status) found, want miss")
	}
}
