package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/triageline/internal/triage"
)

var _ triage.Store = (*Store)(nil)

func TestStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	c := &triage.Consultation{ID: "c-1", PatientRef: "p-1", Narrative: triage.Narrative{Symptoms: "cough", Language: triage.LangEN}}
	if err := s.Put(ctx, c); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "c-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected consultation to be found")
	}
	if got.ID != "c-1" {
		t.Errorf("ID = %q, want %q", got.ID, "c-1")
	}
	if got.Narrative.Symptoms != "cough" {
		t.Errorf("Symptoms = %q, want %q", got.Narrative.Symptoms, "cough")
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, &triage.Consultation{ID: "c-3", PatientRef: "p-3"})
	_ = s.Put(ctx, &triage.Consultation{ID: "c-3", PatientRef: "p-3", RaiseAlert: true})

	got, _, _ := s.Get(ctx, "c-3")
	if !got.RaiseAlert {
		t.Error("RaiseAlert = false, want true after overwrite")
	}

	hist, err := s.History(ctx, "p-3", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Errorf("history = %d entries, want 1 (overwrite must not duplicate)", len(hist))
	}
}

func TestStore_HistoryNewestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 4 {
		_ = s.Put(ctx, &triage.Consultation{
			ID:         fmt.Sprintf("c-%d", i),
			PatientRef: "p-h",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	_ = s.Put(ctx, &triage.Consultation{ID: "other", PatientRef: "p-other", CreatedAt: base})

	got, err := s.History(ctx, "p-h", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []string{"c-3", "c-2", "c-1"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestStore_HistoryUnknownPatient(t *testing.T) {
	t.Parallel()

	got, err := New().History(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestStore_Alerts(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = s.PutAlert(ctx, &triage.EmergencyAlert{ID: "a-1", CreatedAt: base})
	_ = s.PutAlert(ctx, &triage.EmergencyAlert{ID: "a-2", CreatedAt: base.Add(time.Minute), Flags: []string{"chest pain"}})
	_ = s.PutAlert(ctx, &triage.EmergencyAlert{ID: "a-1", CreatedAt: base, Notified: true})

	got, err := s.ListAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "a-2" || got[1].ID != "a-1" {
		t.Errorf("order = [%s %s], want [a-2 a-1]", got[0].ID, got[1].ID)
	}
	if !got[1].Notified {
		t.Error("a-1 should reflect the later PutAlert")
	}

	limited, _ := s.ListAlerts(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("limited len = %d, want 1", len(limited))
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	a := &triage.EmergencyAlert{ID: "a-c", Flags: []string{"stroke"}}
	_ = s.PutAlert(ctx, a)
	a.Flags[0] = "mutated"

	got, _ := s.ListAlerts(ctx, 1)
	if got[0].Flags[0] != "stroke" {
		t.Errorf("stored flags mutated through caller slice: %v", got[0].Flags)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	for i := range n {
		id := fmt.Sprintf("id-%d", i)

		go func() {
			defer wg.Done()
			_ = s.Put(ctx, &triage.Consultation{ID: id, PatientRef: "p"})
			_ = s.PutAlert(ctx, &triage.EmergencyAlert{ID: id})
		}()

		go func() {
			defer wg.Done()
			_, _, _ = s.Get(ctx, id)
			_, _ = s.History(ctx, "p", 10)
			_, _ = s.ListAlerts(ctx, 10)
		}()
	}

	wg.Wait()

	hist, _ := s.History(ctx, "p", 0)
	if len(hist) != n {
		t.Errorf("history = %d, want %d", len(hist), n)
	}
}
