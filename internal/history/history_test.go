package history

import (
	"fmt"
	"testing"

	"github.com/goodtune/pillbox/internal/dispense"
)

func result(id string, outcome dispense.Outcome) dispense.Result {
	return dispense.Result{Session: dispense.Session{ID: id}, Outcome: outcome}
}

func TestRecentNewestFirst(t *testing.T) {
	r, err := New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 5; i++ {
		r.OnConfirmResolved(result(fmt.Sprintf("s%d", i), dispense.OutcomeDispensed))
	}

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	got := r.Recent(0)
	want := []string{"s4", "s3", "s2"}
	for i, w := range want {
		if got[i].Session.ID != w {
			t.Errorf("Recent[%d] = %s, want %s", i, got[i].Session.ID, w)
		}
	}

	if limited := r.Recent(1); len(limited) != 1 || limited[0].Session.ID != "s4" {
		t.Errorf("Recent(1) = %+v", limited)
	}
}

func TestGet(t *testing.T) {
	r, _ := New(0)
	r.OnConfirmResolved(result("abc", dispense.OutcomeCancelled))

	res, ok := r.Get("abc")
	if !ok || res.Outcome != dispense.OutcomeCancelled {
		t.Fatalf("Get = %+v, %v", res, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("unexpected hit for unknown session")
	}
}
