package domain

import (
	"time"

	"github.com/google/uuid"
)

// PriceBreakdown carries every component of a cart total separately so the
// checkout UI and the audit trail can reproduce the derivation.
type PriceBreakdown struct {
	SubtotalCents      int64 `json:"subtotal_cents"`
	EquipmentFeeCents  int64 `json:"equipment_fee_cents"`
	DiscountCents      int64 `json:"discount_cents"`
	ProcessingFeeCents int64 `json:"processing_fee_cents"`
	TotalCents         int64 `json:"total_cents"`
}

// BookedLine is a cart line snapshotted by value at checkout, including the
// unit price actually charged. Catalog prices may change later without
// affecting past bookings.
type BookedLine struct {
	ClassID        uuid.UUID `json:"class_id"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	Start          string    `json:"start"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

// Booking is the terminal record of a successful checkout. Created exactly
// once by the orchestrator and never mutated afterwards.
type Booking struct {
	ID            uuid.UUID      `json:"id"`
	ProfileEmail  string         `json:"profile_email"`
	Lines         []BookedLine   `json:"lines"`
	Breakdown     PriceBreakdown `json:"breakdown"`
	TotalCents    int64          `json:"total_cents"`
	Currency      string         `json:"currency"`
	PaymentMethod string         `json:"payment_method"`
	PaymentRef    string         `json:"payment_ref"`
	CreatedAt     time.Time      `json:"created_at"`
}

func NewBooking(email string, lines []BookedLine, breakdown PriceBreakdown, method, ref string, now time.Time) Booking {
	snap := make([]BookedLine, len(lines))
	copy(snap, lines)
	return Booking{
		ID:            uuid.New(),
		ProfileEmail:  email,
		Lines:         snap,
		Breakdown:     breakdown,
		TotalCents:    breakdown.TotalCents,
		Currency:      "USD",
		PaymentMethod: method,
		PaymentRef:    ref,
		CreatedAt:     now,
	}
}
