// Package cart owns the committed cart aggregate. All mutation goes through
// the defined operations; every operation synchronously persists the full
// cart to the session layer before returning.
package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/clock"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"github.com/reservesurf/booking-funnel/internal/session"
)

// CatalogReader is the read-only slice of the catalog the store needs to
// enforce the capacity bound.
type CatalogReader interface {
	GetClass(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
}

type Store struct {
	sessionID string
	sess      session.Store
	catalog   CatalogReader
	clk       clock.Clock
	cart      domain.Cart
}

// Open rehydrates the cart from persisted session state if present,
// otherwise starts empty. Concurrent tabs sharing one session race on
// persistence; last writer wins.
func Open(ctx context.Context, sess session.Store, catalog CatalogReader, clk clock.Clock, sessionID string) (*Store, error) {
	s := &Store{sessionID: sessionID, sess: sess, catalog: catalog, clk: clk}
	if _, err := session.LoadJSON(ctx, sess, session.CartKey(sessionID), &s.cart); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot is the only way to read committed state. It returns a deep copy
// so callers cannot mutate lines outside the defined operations.
func (s *Store) Snapshot() domain.Cart {
	return s.cart.Clone()
}

func (s *Store) AddLine(ctx context.Context, item domain.CatalogItem, line domain.CartLine) (domain.CartLine, error) {
	if line.Quantity < 1 || line.Quantity > item.MaxParticipants {
		return domain.CartLine{}, domain.ErrCapacityExceeded
	}
	if domain.Midnight(line.Date).Before(domain.Midnight(s.clk.Now())) {
		return domain.CartLine{}, domain.ErrInvalidInput
	}
	next := s.cart.Clone()
	next.Lines = append(next.Lines, line)
	if err := s.commit(ctx, next, "add_line"); err != nil {
		return domain.CartLine{}, err
	}
	return line, nil
}

func (s *Store) RemoveLine(ctx context.Context, lineID uuid.UUID) error {
	next := s.cart.Clone()
	idx := indexOf(next.Lines, lineID)
	if idx < 0 {
		return domain.ErrNotFound
	}
	next.Lines = append(next.Lines[:idx], next.Lines[idx+1:]...)
	return s.commit(ctx, next, "remove_line")
}

// SetQuantity re-validates the capacity bound against the catalog. A
// quantity of zero removes the line.
func (s *Store) SetQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	if quantity == 0 {
		return s.RemoveLine(ctx, lineID)
	}
	next := s.cart.Clone()
	idx := indexOf(next.Lines, lineID)
	if idx < 0 {
		return domain.ErrNotFound
	}
	item, err := s.catalog.GetClass(ctx, next.Lines[idx].ClassID)
	if err != nil {
		return err
	}
	if quantity < 1 || quantity > item.MaxParticipants {
		return domain.ErrCapacityExceeded
	}
	next.Lines[idx].Quantity = quantity
	return s.commit(ctx, next, "set_quantity")
}

// ApplyPromoCode records a promo code. Promo codes and redemption
// instruments are mutually exclusive; replacing the other instrument must
// be explicit.
func (s *Store) ApplyPromoCode(ctx context.Context, code string, replace bool) error {
	if code == "" {
		return domain.ErrInvalidInput
	}
	if s.cart.Redemption != nil && !replace {
		return domain.ErrInstrumentConflict
	}
	next := s.cart.Clone()
	next.Redemption = nil
	next.PromoCode = code
	return s.commit(ctx, next, "apply_promo")
}

func (s *Store) ApplyRedemption(ctx context.Context, r domain.Redemption, replace bool) error {
	switch r.Kind {
	case domain.RedemptionCredits:
		if r.Credits < 1 {
			return domain.ErrInvalidInput
		}
	case domain.RedemptionLoyalty:
		if r.Points < 1 {
			return domain.ErrInvalidInput
		}
	default:
		return domain.ErrInvalidInput
	}
	if s.cart.PromoCode != "" && !replace {
		return domain.ErrInstrumentConflict
	}
	next := s.cart.Clone()
	next.PromoCode = ""
	next.Redemption = &r
	return s.commit(ctx, next, "apply_redemption")
}

func (s *Store) Clear(ctx context.Context) error {
	return s.commit(ctx, domain.Cart{}, "clear")
}

// commit persists the candidate state first; the in-memory cart only moves
// once the write succeeded, so a failed persist leaves no partial mutation.
func (s *Store) commit(ctx context.Context, next domain.Cart, op string) error {
	if err := session.SaveJSON(ctx, s.sess, session.CartKey(s.sessionID), next); err != nil {
		return err
	}
	s.cart = next
	observability.CartMutations.WithLabelValues(op).Inc()
	return nil
}

func indexOf(lines []domain.CartLine, lineID uuid.UUID) int {
	for i, l := range lines {
		if l.LineID == lineID {
			return i
		}
	}
	return -1
}
