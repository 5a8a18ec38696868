package funnel

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/domain"
)

var (
	today    = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	lessonID = uuid.New()
)

func lessonItem() domain.CatalogItem {
	return domain.CatalogItem{
		ID:              lessonID,
		CategoryID:      "lessons",
		Title:           "Beginner Group Lesson",
		BasePriceCents:  8900,
		MaxParticipants: 8,
	}
}

func offeredSlots(date time.Time) []domain.TimeSlot {
	return []domain.TimeSlot{
		{ClassID: lessonID, Date: domain.Midnight(date), Start: "09:00", SpotsLeft: 6},
		{ClassID: lessonID, Date: domain.Midnight(date), Start: "14:00", SpotsLeft: 2},
	}
}

// atSchedule walks a fresh machine to the schedule step.
func atSchedule(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine()
	if err := m.SelectCategory("lessons"); err != nil {
		t.Fatalf("select category: %v", err)
	}
	if err := m.SelectClass(lessonItem()); err != nil {
		t.Fatalf("select class: %v", err)
	}
	return m
}

func TestMachine_Transitions(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	t.Run("happy path through commit", func(t *testing.T) {
		m := atSchedule(t)
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "09:00", 2, today); err != nil {
			t.Fatalf("select schedule: %v", err)
		}
		if m.State != StepChoosingSchedule {
			t.Fatalf("state = %s, schedule selection must not advance", m.State)
		}

		sel, err := m.CommitToCart(false)
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		if sel.ClassID != lessonID || sel.Quantity != 2 || sel.Start != "09:00" {
			t.Fatalf("unexpected selection %+v", sel)
		}
		if m.State != StepCartReview {
			t.Fatalf("state = %s, want %s", m.State, StepCartReview)
		}
		if m.Selection != (Selection{}) {
			t.Fatalf("selection not cleared: %+v", m.Selection)
		}
	})

	t.Run("commit with continue shopping restarts the funnel", func(t *testing.T) {
		m := atSchedule(t)
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "09:00", 1, today); err != nil {
			t.Fatalf("select schedule: %v", err)
		}
		if _, err := m.CommitToCart(true); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if m.State != StepChoosingCategory {
			t.Fatalf("state = %s, want %s", m.State, StepChoosingCategory)
		}
	})

	t.Run("operations out of order are rejected with the required step", func(t *testing.T) {
		m := NewMachine()
		err := m.SelectClass(lessonItem())
		var pre *PreconditionError
		if !errors.As(err, &pre) {
			t.Fatalf("expected PreconditionError, got %v", err)
		}
		if pre.Required != StepChoosingClass || pre.Current != StepChoosingCategory {
			t.Fatalf("unexpected precondition %+v", pre)
		}
		if m.State != StepChoosingCategory {
			t.Fatalf("rejected transition mutated state to %s", m.State)
		}
	})

	t.Run("commit without a schedule is rejected", func(t *testing.T) {
		m := atSchedule(t)
		if _, err := m.CommitToCart(false); err == nil {
			t.Fatalf("expected rejection without a chosen schedule")
		}
	})

	t.Run("class from another category is rejected", func(t *testing.T) {
		m := NewMachine()
		if err := m.SelectCategory("rentals"); err != nil {
			t.Fatalf("select category: %v", err)
		}
		if err := m.SelectClass(lessonItem()); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("schedule validation", func(t *testing.T) {
		past := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

		m := atSchedule(t)
		if err := m.SelectSchedule(lessonItem(), offeredSlots(past), past, "09:00", 1, today); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("past date: expected ErrInvalidInput, got %v", err)
		}
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "09:00", 9, today); !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("over capacity: expected ErrCapacityExceeded, got %v", err)
		}
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "11:00", 1, today); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("unoffered slot: expected ErrInvalidInput, got %v", err)
		}
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "14:00", 1, today); err != nil {
			t.Fatalf("same-day booking must be allowed: %v", err)
		}
	})

	t.Run("changing category invalidates class and schedule only", func(t *testing.T) {
		m := atSchedule(t)
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "09:00", 2, today); err != nil {
			t.Fatalf("select schedule: %v", err)
		}
		if err := m.ChangeCategory(); err != nil {
			t.Fatalf("change category: %v", err)
		}
		if m.State != StepChoosingCategory {
			t.Fatalf("state = %s, want %s", m.State, StepChoosingCategory)
		}
		if m.Selection.ClassID != (uuid.UUID{}) || m.Selection.Quantity != 0 {
			t.Fatalf("schedule pick survived: %+v", m.Selection)
		}
	})

	t.Run("changing class keeps the category", func(t *testing.T) {
		m := atSchedule(t)
		if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "09:00", 2, today); err != nil {
			t.Fatalf("select schedule: %v", err)
		}
		if err := m.ChangeClass(); err != nil {
			t.Fatalf("change class: %v", err)
		}
		if m.State != StepChoosingClass {
			t.Fatalf("state = %s, want %s", m.State, StepChoosingClass)
		}
		if m.Selection.CategoryID != "lessons" {
			t.Fatalf("category pick lost: %+v", m.Selection)
		}
		if m.Selection.Quantity != 0 {
			t.Fatalf("schedule pick survived: %+v", m.Selection)
		}
	})

	t.Run("advance walks the review steps in order", func(t *testing.T) {
		m := &Machine{State: StepCartReview}
		for _, want := range []Step{StepIdentityCapture, StepPaymentReview} {
			if err := m.Advance(); err != nil {
				t.Fatalf("advance: %v", err)
			}
			if m.State != want {
				t.Fatalf("state = %s, want %s", m.State, want)
			}
		}
		if err := m.Advance(); err == nil {
			t.Fatalf("expected rejection past payment review")
		}
	})

	t.Run("confirm only from payment review", func(t *testing.T) {
		m := &Machine{State: StepPaymentReview}
		if err := m.Confirm(); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if m.State != StepConfirmed {
			t.Fatalf("state = %s, want %s", m.State, StepConfirmed)
		}

		m = &Machine{State: StepCartReview}
		if err := m.Confirm(); err == nil {
			t.Fatalf("expected rejection before payment review")
		}
	})

	t.Run("reset discards the selection only", func(t *testing.T) {
		m := atSchedule(t)
		m.Reset()
		if m.State != StepChoosingCategory || m.Selection != (Selection{}) {
			t.Fatalf("reset left %s %+v", m.State, m.Selection)
		}
	})
}

func TestMachine_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	m := atSchedule(t)
	if err := m.SelectSchedule(lessonItem(), offeredSlots(date), date, "14:00", 3, today); err != nil {
		t.Fatalf("select schedule: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Machine
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.State != m.State || got.Selection != m.Selection {
		t.Fatalf("round trip lost state: %+v vs %+v", got, *m)
	}
}
