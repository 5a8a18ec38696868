package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")

	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrInstrumentConflict = errors.New("instrument conflict")

	ErrPromoInvalid         = errors.New("promo code invalid")
	ErrPromoThresholdNotMet = errors.New("promo minimum order not met")
	ErrPromoExhausted       = errors.New("promo code exhausted")

	ErrCartEmpty         = errors.New("cart is empty")
	ErrAlreadyInProgress = errors.New("checkout already in progress")
	ErrCheckoutAbandoned = errors.New("checkout abandoned")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrPaymentTimeout    = errors.New("payment timed out")
)

// ProfileIncompleteError reports exactly which checkout requirements a
// profile is missing, so callers can route the user to the unmet field
// instead of a generic failure.
type ProfileIncompleteError struct {
	Missing []string
}

func (e *ProfileIncompleteError) Error() string {
	return fmt.Sprintf("profile incomplete: %s", strings.Join(e.Missing, ", "))
}
