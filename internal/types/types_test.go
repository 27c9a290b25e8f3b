package types

import (
	"testing"
	"time"
)

func validRequest() *Request {
	return &Request{
		ID:                "req-1",
		DocumentTypeID:    "dt-1",
		RequesterID:       "student-1",
		Stages:            []string{"library", "cashier", "registrar"},
		CurrentStageIndex: 0,
		CurrentStatus:     StatusPending,
		LastActivityAt:    time.Now(),
		CreatedAt:         time.Now(),
	}
}

func TestRequestValidate(t *testing.T) {
	r := validRequest()
	if err := r.Validate(); err != nil {
		t.Errorf("valid request failed validation: %v", err)
	}
}

func TestRequestValidateIndexBounds(t *testing.T) {
	r := validRequest()
	r.CurrentStageIndex = 4
	if err := r.Validate(); err == nil {
		t.Error("expected error for index beyond len(stages)")
	}

	r = validRequest()
	r.CurrentStageIndex = -1
	if err := r.Validate(); err == nil {
		t.Error("expected error for negative index")
	}

	// Index == len(stages) is legal only in the completed terminal state.
	r = validRequest()
	r.CurrentStageIndex = 3
	r.CurrentStatus = StatusCompleted
	r.IsCompleted = true
	if err := r.Validate(); err != nil {
		t.Errorf("terminal state failed validation: %v", err)
	}
}

func TestRequestValidateCompletionInvariant(t *testing.T) {
	r := validRequest()
	r.IsCompleted = true
	if err := r.Validate(); err == nil {
		t.Error("is_completed=true at index 0/pending should fail")
	}

	r = validRequest()
	r.CurrentStatus = StatusCompleted
	if err := r.Validate(); err == nil {
		t.Error("completed status mid-sequence should fail")
	}
}

func TestRequestValidateRejectionReason(t *testing.T) {
	r := validRequest()
	r.CurrentStatus = StatusOnHold
	if err := r.Validate(); err == nil {
		t.Error("on_hold without rejection reason should fail")
	}
	r.RejectionReason = "Missing form"
	if err := r.Validate(); err != nil {
		t.Errorf("on_hold with reason failed: %v", err)
	}

	r = validRequest()
	r.RejectionReason = "stale reason"
	if err := r.Validate(); err == nil {
		t.Error("pending request carrying a rejection reason should fail")
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusOnHold, StatusCompleted} {
		if !s.IsValid() {
			t.Errorf("status %s should be valid", s)
		}
	}
	if Status("approved").IsValid() {
		t.Error("unknown status should be invalid")
	}
	if Status("").IsValid() {
		t.Error("empty status should be invalid")
	}
}

func TestCurrentStage(t *testing.T) {
	r := validRequest()
	if got := r.CurrentStage(); got != "library" {
		t.Errorf("expected library, got %s", got)
	}
	r.CurrentStageIndex = 2
	if got := r.CurrentStage(); got != "registrar" {
		t.Errorf("expected registrar, got %s", got)
	}
	r.CurrentStageIndex = 3
	if got := r.CurrentStage(); got != "" {
		t.Errorf("expected empty stage past the end, got %s", got)
	}
}

func TestDaysPending(t *testing.T) {
	now := time.Now()
	r := validRequest()
	r.LastActivityAt = now.Add(-4*24*time.Hour - time.Hour)
	if got := r.DaysPending(now); got != 4 {
		t.Errorf("expected 4 days pending, got %d", got)
	}
	r.LastActivityAt = now.Add(time.Hour) // clock skew
	if got := r.DaysPending(now); got != 0 {
		t.Errorf("expected 0 for future activity, got %d", got)
	}
}

func TestDocumentTypeValidate(t *testing.T) {
	dt := &DocumentType{ID: "dt-1", Name: "Transcript", RequiredStages: []string{"library", "registrar"}}
	if err := dt.Validate(); err != nil {
		t.Errorf("valid document type failed: %v", err)
	}

	dt = &DocumentType{ID: "dt-1", Name: "Transcript"}
	if err := dt.Validate(); err == nil {
		t.Error("document type without stages should fail")
	}

	dt = &DocumentType{ID: "dt-1", Name: "Transcript", RequiredStages: []string{"library", "library"}}
	if err := dt.Validate(); err == nil {
		t.Error("duplicate stage names should fail")
	}
}

func TestEscalationSources(t *testing.T) {
	s := SystemSource()
	if s.By != SystemActor || s.Manual {
		t.Errorf("unexpected system source: %+v", s)
	}
	a := AdminSource("admin-7")
	if a.By != "admin-7" || !a.Manual {
		t.Errorf("unexpected admin source: %+v", a)
	}
}
