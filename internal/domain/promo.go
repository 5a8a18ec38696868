package domain

import "time"

type PromoKind string

const (
	PromoPercent PromoKind = "PERCENT"
	PromoFixed   PromoKind = "FIXED"
)

// PromoCode describes a discount code from the back-office catalog. Value is
// a percentage for PERCENT codes and a cents amount for FIXED codes.
type PromoCode struct {
	Code          string
	Kind          PromoKind
	Value         int64
	MinOrderCents int64
	MaxUses       int // 0 = unlimited
	Uses          int
	ExpiresAt     time.Time // zero = never expires
}

// Validate checks the code against a pre-discount subtotal. Threshold and
// exhaustion failures are distinct errors, never silent no-ops.
func (p PromoCode) Validate(subtotalCents int64, now time.Time) error {
	if !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt) {
		return ErrPromoInvalid
	}
	if p.MaxUses > 0 && p.Uses >= p.MaxUses {
		return ErrPromoExhausted
	}
	if subtotalCents < p.MinOrderCents {
		return ErrPromoThresholdNotMet
	}
	return nil
}

// DiscountCents computes the discount this code yields on a subtotal,
// floored at zero so a fixed code can never drive the total negative.
func (p PromoCode) DiscountCents(subtotalCents int64) int64 {
	var d int64
	switch p.Kind {
	case PromoPercent:
		d = subtotalCents * p.Value / 100
	case PromoFixed:
		d = p.Value
	}
	if d > subtotalCents {
		d = subtotalCents
	}
	if d < 0 {
		d = 0
	}
	return d
}
