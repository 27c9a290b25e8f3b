package authz

import "testing"

func testTable() *Table {
	return NewTable(map[string]Capability{
		"library_officer": {Stages: []string{"library"}},
		"cashier":         {Stages: []string{"cashier"}},
		"registrar":       {Stages: []string{"registrar", "records"}},
		"super_admin":     {Super: true},
	})
}

func TestCanActOnStage(t *testing.T) {
	tbl := testTable()

	tests := []struct {
		role  string
		stage string
		want  bool
	}{
		{"library_officer", "library", true},
		{"library_officer", "cashier", false},
		{"registrar", "records", true},
		{"super_admin", "library", true},
		{"super_admin", "cashier", true},
		{"unknown_role", "library", false},
		// A role name containing "admin" gets no special treatment.
		{"fake_admin", "library", false},
		{"library_officer", "", false},
	}
	for _, tt := range tests {
		if got := tbl.CanActOnStage(tt.role, tt.stage); got != tt.want {
			t.Errorf("CanActOnStage(%q, %q) = %v, want %v", tt.role, tt.stage, got, tt.want)
		}
	}
}

func TestIsSuper(t *testing.T) {
	tbl := testTable()
	if !tbl.IsSuper("super_admin") {
		t.Error("super_admin should be super")
	}
	if tbl.IsSuper("registrar") {
		t.Error("registrar should not be super")
	}
	if tbl.IsSuper("nope") {
		t.Error("unknown role should not be super")
	}
}

func TestOwnsStageIgnoresSuper(t *testing.T) {
	tbl := testTable()
	if tbl.OwnsStage("super_admin", "library") {
		t.Error("super flag should not imply stage ownership")
	}
}

func TestValidate(t *testing.T) {
	tbl := testTable()
	known := map[string]bool{"library": true, "cashier": true, "registrar": true, "records": true}
	if err := tbl.Validate(known); err != nil {
		t.Errorf("valid table failed: %v", err)
	}
	delete(known, "records")
	if err := tbl.Validate(known); err == nil {
		t.Error("expected error for role owning unknown stage")
	}
}
