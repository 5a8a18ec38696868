package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is one committed, schedulable selection inside a cart. Lines are
// addressed by LineID, never by position, so removal and reordering keep
// references stable.
type CartLine struct {
	LineID   uuid.UUID `json:"line_id"`
	ClassID  uuid.UUID `json:"class_id"`
	Date     time.Time `json:"date"`
	Start    string    `json:"start"`
	Quantity int       `json:"quantity"`
}

// NewCartLine validates the capacity and date invariants before a line can
// exist; an illegal line is unrepresentable rather than merely unlikely.
func NewCartLine(item CatalogItem, date time.Time, start string, quantity int, today time.Time) (CartLine, error) {
	if quantity < 1 || quantity > item.MaxParticipants {
		return CartLine{}, ErrCapacityExceeded
	}
	if Midnight(date).Before(Midnight(today)) {
		return CartLine{}, ErrInvalidInput
	}
	return CartLine{
		LineID:   uuid.New(),
		ClassID:  item.ID,
		Date:     Midnight(date),
		Start:    start,
		Quantity: quantity,
	}, nil
}

type RedemptionKind string

const (
	RedemptionCredits RedemptionKind = "CREDITS"
	RedemptionLoyalty RedemptionKind = "LOYALTY"
)

// Redemption is a non-monetary payment instrument: stored credits cover
// whole lines, loyalty points convert to a fixed value per tier.
type Redemption struct {
	Kind    RedemptionKind `json:"kind"`
	Credits int            `json:"credits,omitempty"`
	Points  int            `json:"points,omitempty"`
}

// Cart holds committed lines plus at most one discount instrument. Totals
// are always derived by the pricing engine, never cached on the cart.
type Cart struct {
	Lines      []CartLine  `json:"lines"`
	PromoCode  string      `json:"promo_code,omitempty"`
	Redemption *Redemption `json:"redemption,omitempty"`
}

func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Clone returns a deep copy so callers can never reach the cart's internal
// line storage.
func (c Cart) Clone() Cart {
	out := Cart{PromoCode: c.PromoCode}
	if len(c.Lines) > 0 {
		out.Lines = make([]CartLine, len(c.Lines))
		copy(out.Lines, c.Lines)
	}
	if c.Redemption != nil {
		r := *c.Redemption
		out.Redemption = &r
	}
	return out
}
