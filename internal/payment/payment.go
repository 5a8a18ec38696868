// Package payment defines the opaque external charge capability. No card
// or PCI logic lives in this module.
package payment

import "context"

type Instrument struct {
	Method     string `json:"method"` // card, credits, loyalty
	CardNumber string `json:"card_number,omitempty"`
	CardExpiry string `json:"card_expiry,omitempty"`
	CardCVC    string `json:"card_cvc,omitempty"`
}

type Result struct {
	Reference string
}

// Gateway charges an amount through the external payment collaborator.
// Declines and timeouts surface as domain.ErrPaymentDeclined and
// domain.ErrPaymentTimeout respectively.
type Gateway interface {
	Charge(ctx context.Context, amountCents int64, currency string, inst Instrument) (Result, error)
}
