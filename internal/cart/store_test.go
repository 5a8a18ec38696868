package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/clock"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/session"
)

type fakeCatalog struct {
	items map[uuid.UUID]domain.CatalogItem
}

func (f *fakeCatalog) GetClass(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error) {
	item, ok := f.items[id]
	if !ok {
		return domain.CatalogItem{}, domain.ErrNotFound
	}
	return item, nil
}

type failingSession struct {
	session.Store
	fail bool
}

func (f *failingSession) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("redis down")
	}
	return f.Store.Set(ctx, key, value)
}

func TestStore(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	date := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	lesson := domain.CatalogItem{
		ID:              uuid.New(),
		CategoryID:      "lessons",
		Title:           "Beginner Group Lesson",
		BasePriceCents:  8900,
		MaxParticipants: 8,
	}
	catalog := &fakeCatalog{items: map[uuid.UUID]domain.CatalogItem{lesson.ID: lesson}}

	newLine := func(t *testing.T, qty int) domain.CartLine {
		t.Helper()
		line, err := domain.NewCartLine(lesson, date, "09:00", qty, now)
		if err != nil {
			t.Fatalf("new line: %v", err)
		}
		return line
	}

	open := func(t *testing.T, sess session.Store) *Store {
		t.Helper()
		s, err := Open(context.Background(), sess, catalog, clk, "sess-1")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return s
	}

	t.Run("add remove and requantify lines", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, session.NewMemory())

		line, err := s.AddLine(ctx, lesson, newLine(t, 2))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		other, err := s.AddLine(ctx, lesson, newLine(t, 1))
		if err != nil {
			t.Fatalf("add: %v", err)
		}

		if err := s.SetQuantity(ctx, line.LineID, 4); err != nil {
			t.Fatalf("set quantity: %v", err)
		}
		if got := s.Snapshot().Lines[0].Quantity; got != 4 {
			t.Fatalf("quantity = %d, want 4", got)
		}

		// Quantity zero removes the line.
		if err := s.SetQuantity(ctx, other.LineID, 0); err != nil {
			t.Fatalf("set quantity 0: %v", err)
		}
		if got := len(s.Snapshot().Lines); got != 1 {
			t.Fatalf("lines = %d, want 1", got)
		}

		if err := s.RemoveLine(ctx, line.LineID); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if !s.Snapshot().Empty() {
			t.Fatalf("cart not empty after removing all lines")
		}
	})

	t.Run("capacity bound holds on add and requantify", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, session.NewMemory())

		if _, err := s.AddLine(ctx, lesson, domain.CartLine{LineID: uuid.New(), ClassID: lesson.ID, Quantity: 9}); !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}

		line, err := s.AddLine(ctx, lesson, newLine(t, 2))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.SetQuantity(ctx, line.LineID, 9); !errors.Is(err, domain.ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		if got := s.Snapshot().Lines[0].Quantity; got != 2 {
			t.Fatalf("rejected requantify mutated line to %d", got)
		}
	})

	t.Run("past-dated line is rejected on add", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, session.NewMemory())

		stale := domain.CartLine{
			LineID:   uuid.New(),
			ClassID:  lesson.ID,
			Date:     now.AddDate(0, 0, -1),
			Start:    "09:00",
			Quantity: 2,
		}
		if _, err := s.AddLine(ctx, lesson, stale); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if got := len(s.Snapshot().Lines); got != 0 {
			t.Fatalf("rejected add left %d lines", got)
		}
	})

	t.Run("promo and redemption are mutually exclusive", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, session.NewMemory())
		if _, err := s.AddLine(ctx, lesson, newLine(t, 1)); err != nil {
			t.Fatalf("add: %v", err)
		}

		if err := s.ApplyPromoCode(ctx, "SURF20", false); err != nil {
			t.Fatalf("apply promo: %v", err)
		}
		err := s.ApplyRedemption(ctx, domain.Redemption{Kind: domain.RedemptionCredits, Credits: 1}, false)
		if !errors.Is(err, domain.ErrInstrumentConflict) {
			t.Fatalf("expected ErrInstrumentConflict, got %v", err)
		}
		if got := s.Snapshot(); got.PromoCode != "SURF20" || got.Redemption != nil {
			t.Fatalf("rejected apply mutated instruments: %+v", got)
		}

		// Explicit replacement swaps the instrument, never stacks it.
		if err := s.ApplyRedemption(ctx, domain.Redemption{Kind: domain.RedemptionLoyalty, Points: 200}, true); err != nil {
			t.Fatalf("replace with redemption: %v", err)
		}
		if got := s.Snapshot(); got.PromoCode != "" || got.Redemption == nil || got.Redemption.Points != 200 {
			t.Fatalf("replacement left %+v", got)
		}

		if err := s.ApplyPromoCode(ctx, "WELCOME10", false); !errors.Is(err, domain.ErrInstrumentConflict) {
			t.Fatalf("expected ErrInstrumentConflict, got %v", err)
		}
		if err := s.ApplyPromoCode(ctx, "WELCOME10", true); err != nil {
			t.Fatalf("replace with promo: %v", err)
		}
		if got := s.Snapshot(); got.PromoCode != "WELCOME10" || got.Redemption != nil {
			t.Fatalf("replacement left %+v", got)
		}
	})

	t.Run("malformed redemption is rejected", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, session.NewMemory())
		for _, r := range []domain.Redemption{
			{Kind: domain.RedemptionCredits},
			{Kind: domain.RedemptionLoyalty},
			{Kind: "GIFT_CARD", Credits: 1},
		} {
			if err := s.ApplyRedemption(ctx, r, false); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("%+v: expected ErrInvalidInput, got %v", r, err)
			}
		}
	})

	t.Run("cart survives reopen from the same session", func(t *testing.T) {
		ctx := context.Background()
		sess := session.NewMemory()

		s := open(t, sess)
		line, err := s.AddLine(ctx, lesson, newLine(t, 3))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := s.ApplyPromoCode(ctx, "SURF20", false); err != nil {
			t.Fatalf("apply promo: %v", err)
		}

		reopened := open(t, sess)
		got := reopened.Snapshot()
		if len(got.Lines) != 1 || got.Lines[0].LineID != line.LineID || got.Lines[0].Quantity != 3 {
			t.Fatalf("reopened cart lost lines: %+v", got)
		}
		if got.PromoCode != "SURF20" {
			t.Fatalf("reopened cart lost promo: %+v", got)
		}
	})

	t.Run("failed persist leaves the cart unchanged", func(t *testing.T) {
		ctx := context.Background()
		sess := &failingSession{Store: session.NewMemory()}

		s := open(t, sess)
		if _, err := s.AddLine(ctx, lesson, newLine(t, 1)); err != nil {
			t.Fatalf("add: %v", err)
		}

		sess.fail = true
		if _, err := s.AddLine(ctx, lesson, newLine(t, 1)); err == nil {
			t.Fatalf("expected persist failure")
		}
		if got := len(s.Snapshot().Lines); got != 1 {
			t.Fatalf("failed commit mutated cart, lines = %d", got)
		}
	})

	t.Run("snapshot is a deep copy", func(t *testing.T) {
		ctx := context.Background()
		s := open(t, session.NewMemory())
		if _, err := s.AddLine(ctx, lesson, newLine(t, 2)); err != nil {
			t.Fatalf("add: %v", err)
		}

		snap := s.Snapshot()
		snap.Lines[0].Quantity = 99
		if got := s.Snapshot().Lines[0].Quantity; got != 2 {
			t.Fatalf("snapshot mutation reached the store: %d", got)
		}
	})
}
