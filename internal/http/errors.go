package http

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/funnel"
)

// errorKind names the rejection for API clients without leaking
// wrapped detail.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrPromoInvalid):
		return "promo_invalid"
	case errors.Is(err, domain.ErrPromoExhausted):
		return "promo_exhausted"
	case errors.Is(err, domain.ErrPromoThresholdNotMet):
		return "promo_threshold_not_met"
	case errors.Is(err, domain.ErrInstrumentConflict):
		return "instrument_conflict"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrCartEmpty):
		return "cart_empty"
	case errors.Is(err, domain.ErrAlreadyInProgress):
		return "checkout_in_progress"
	case errors.Is(err, domain.ErrCheckoutAbandoned):
		return "checkout_abandoned"
	case errors.Is(err, domain.ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, domain.ErrPaymentTimeout):
		return "payment_timeout"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var pre *funnel.PreconditionError
	if errors.As(err, &pre) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":         "precondition_failed",
			"operation":     pre.Op,
			"current_step":  pre.Current,
			"required_step": pre.Required,
		})
		return
	}
	var inc *domain.ProfileIncompleteError
	if errors.As(err, &inc) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "profile_incomplete",
			"missing": inc.Missing,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPaymentTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrInstrumentConflict),
		errors.Is(err, domain.ErrAlreadyInProgress),
		errors.Is(err, domain.ErrCheckoutAbandoned),
		errors.Is(err, domain.ErrSerializationFailure):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrPromoInvalid),
		errors.Is(err, domain.ErrPromoExhausted),
		errors.Is(err, domain.ErrPromoThresholdNotMet),
		errors.Is(err, domain.ErrCartEmpty):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
		writeJSON(w, status, map[string]interface{}{"error": "internal"})
		return
	}
	writeJSON(w, status, map[string]interface{}{
		"error":   errorKind(err),
		"message": err.Error(),
	})
}
