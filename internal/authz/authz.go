// Package authz maps authority roles onto the clearance stages they own.
//
// Roles are resolved against an explicit capability table loaded from
// configuration. There is no pattern or substring matching: a role either
// owns a stage by name, or carries the super flag and may act anywhere.
package authz

import (
	"fmt"
	"sort"
)

// Capability describes what a single role may do.
type Capability struct {
	// Stages are the stage names this role owns and may approve or reject.
	Stages []string `yaml:"stages"`

	// Super grants action on any stage plus manual escalation authority.
	Super bool `yaml:"super"`
}

// Table is an immutable role → capability mapping.
type Table struct {
	roles map[string]Capability
}

// NewTable builds a capability table. Role names must be unique by
// construction (map input); stage lists are copied.
func NewTable(roles map[string]Capability) *Table {
	t := &Table{roles: make(map[string]Capability, len(roles))}
	for role, cap := range roles {
		cp := cap
		cp.Stages = append([]string(nil), cap.Stages...)
		t.roles[role] = cp
	}
	return t
}

// Known reports whether the role exists in the table.
func (t *Table) Known(role string) bool {
	_, ok := t.roles[role]
	return ok
}

// IsSuper reports whether the role carries the super-authority flag.
func (t *Table) IsSuper(role string) bool {
	return t.roles[role].Super
}

// OwnsStage reports whether the role owns the named stage outright,
// ignoring the super flag.
func (t *Table) OwnsStage(role, stage string) bool {
	for _, s := range t.roles[role].Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// CanActOnStage reports whether the role may approve or reject at the named
// stage: either it owns the stage, or it is a super authority.
func (t *Table) CanActOnStage(role, stage string) bool {
	if stage == "" {
		return false
	}
	cap, ok := t.roles[role]
	if !ok {
		return false
	}
	if cap.Super {
		return true
	}
	return t.OwnsStage(role, stage)
}

// Roles returns all known role names, sorted.
func (t *Table) Roles() []string {
	out := make([]string, 0, len(t.roles))
	for role := range t.roles {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}

// Validate checks the table against a set of known stage names, catching
// config typos where a role claims a stage no document type defines.
func (t *Table) Validate(knownStages map[string]bool) error {
	for role, cap := range t.roles {
		for _, stage := range cap.Stages {
			if !knownStages[stage] {
				return fmt.Errorf("role %q owns unknown stage %q", role, stage)
			}
		}
	}
	return nil
}
