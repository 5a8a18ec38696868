package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/cart"
	"github.com/reservesurf/booking-funnel/internal/clock"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/funnel"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"github.com/reservesurf/booking-funnel/internal/payment"
	"github.com/reservesurf/booking-funnel/internal/pricing"
)

// CatalogReader resolves the catalog items referenced by cart lines.
type CatalogReader interface {
	GetClass(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
}

// PromoRepository reads the promo catalog and records uses on successful
// checkout.
type PromoRepository interface {
	GetPromo(ctx context.Context, code string) (domain.PromoCode, error)
	IncrementUse(ctx context.Context, code string) error
}

// BookingRepository persists the booking and its outbox event in one
// transaction.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b domain.Booking) error
}

// Lock is the cross-process re-submission guard: at most one finalize per
// session may be in flight.
type Lock interface {
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

// Auditor records funnel milestones. Best-effort; a failed audit write
// never fails a booking.
type Auditor interface {
	LogBooking(ctx context.Context, b domain.Booking) error
}

type PaymentSelection struct {
	Method     string `json:"method"`
	CardNumber string `json:"card_number,omitempty"`
	CardExpiry string `json:"card_expiry,omitempty"`
	CardCVC    string `json:"card_cvc,omitempty"`
}

type Orchestrator struct {
	engine         *pricing.Engine
	catalog        CatalogReader
	promos         PromoRepository
	bookings       BookingRepository
	gateway        payment.Gateway
	lock           Lock
	audit          Auditor
	clk            clock.Clock
	waiverValidity time.Duration
	paymentTimeout time.Duration

	mu     sync.Mutex
	tokens map[string]uuid.UUID
}

func NewOrchestrator(engine *pricing.Engine, catalog CatalogReader, promos PromoRepository, bookings BookingRepository, gateway payment.Gateway, lock Lock, audit Auditor, clk clock.Clock, waiverValidity, paymentTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		engine:         engine,
		catalog:        catalog,
		promos:         promos,
		bookings:       bookings,
		gateway:        gateway,
		lock:           lock,
		audit:          audit,
		clk:            clk,
		waiverValidity: waiverValidity,
		paymentTimeout: paymentTimeout,
		tokens:         make(map[string]uuid.UUID),
	}
}

// Abandon invalidates any in-flight finalize for the session. A payment
// result that lands afterwards is discarded and never becomes a Booking.
func (o *Orchestrator) Abandon(sessionID string) {
	o.mu.Lock()
	delete(o.tokens, sessionID)
	o.mu.Unlock()
}

// Finalize assembles and charges the order. Preconditions are checked in
// order and short-circuit on first failure: non-empty cart, eligible
// profile, well-formed payment selection. The total is always recomputed
// here; a previously displayed total is never trusted.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string, store *cart.Store, machine *funnel.Machine, profile domain.Profile, sel PaymentSelection) (domain.Booking, error) {
	ok, err := o.lock.Acquire(ctx, sessionID, o.paymentTimeout+5*time.Second)
	if err != nil {
		return domain.Booking{}, err
	}
	if !ok {
		observability.CheckoutAttempts.WithLabelValues("in_progress").Inc()
		return domain.Booking{}, domain.ErrAlreadyInProgress
	}
	defer o.lock.Release(context.WithoutCancel(ctx), sessionID)

	token := o.begin(sessionID)
	now := o.clk.Now()

	snapshot := store.Snapshot()
	if snapshot.Empty() {
		observability.CheckoutAttempts.WithLabelValues("empty_cart").Inc()
		return domain.Booking{}, domain.ErrCartEmpty
	}

	items, requiresSafety, err := o.resolveItems(ctx, snapshot)
	if err != nil {
		return domain.Booking{}, err
	}

	if missing := Eligibility(profile, requiresSafety, now, o.waiverValidity); len(missing) > 0 {
		observability.CheckoutAttempts.WithLabelValues("ineligible").Inc()
		return domain.Booking{}, &domain.ProfileIncompleteError{Missing: missing}
	}

	if err := validateSelection(sel); err != nil {
		observability.CheckoutAttempts.WithLabelValues("bad_payment_selection").Inc()
		return domain.Booking{}, err
	}

	quote, err := o.price(ctx, snapshot, items, now)
	if err != nil {
		observability.CheckoutAttempts.WithLabelValues("pricing").Inc()
		return domain.Booking{}, err
	}

	result, err := o.charge(ctx, quote.Breakdown.TotalCents, sel)
	if err != nil {
		observability.CheckoutAttempts.WithLabelValues("payment_failed").Inc()
		return domain.Booking{}, err
	}

	// A result arriving after the session abandoned this checkout must not
	// produce a Booking.
	if !o.stillCurrent(sessionID, token) {
		observability.CheckoutAttempts.WithLabelValues("abandoned").Inc()
		return domain.Booking{}, domain.ErrCheckoutAbandoned
	}

	booking := domain.NewBooking(profile.Email, bookedLines(snapshot, quote, items), quote.Breakdown, sel.Method, result.Reference, now)
	if err := o.bookings.CreateBooking(ctx, booking); err != nil {
		return domain.Booking{}, err
	}
	if snapshot.PromoCode != "" {
		if err := o.promos.IncrementUse(ctx, snapshot.PromoCode); err != nil {
			return domain.Booking{}, err
		}
	}

	if err := store.Clear(ctx); err != nil {
		return domain.Booking{}, err
	}
	if err := machine.Confirm(); err != nil {
		// The booking exists and was charged; a funnel not parked at
		// payment review is not a reason to fail the checkout.
		machine.Selection = funnel.Selection{}
		machine.State = funnel.StepConfirmed
	}

	if o.audit != nil {
		_ = o.audit.LogBooking(ctx, booking)
	}
	observability.CheckoutAttempts.WithLabelValues("confirmed").Inc()
	return booking, nil
}

func (o *Orchestrator) begin(sessionID string) uuid.UUID {
	token := uuid.New()
	o.mu.Lock()
	o.tokens[sessionID] = token
	o.mu.Unlock()
	return token
}

func (o *Orchestrator) stillCurrent(sessionID string, token uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens[sessionID] == token
}

func (o *Orchestrator) resolveItems(ctx context.Context, snapshot domain.Cart) (map[uuid.UUID]domain.CatalogItem, bool, error) {
	items := make(map[uuid.UUID]domain.CatalogItem, len(snapshot.Lines))
	requiresSafety := false
	for _, line := range snapshot.Lines {
		if _, ok := items[line.ClassID]; ok {
			continue
		}
		item, err := o.catalog.GetClass(ctx, line.ClassID)
		if err != nil {
			return nil, false, errors.Wrapf(err, "resolve class %s", line.ClassID)
		}
		items[item.ID] = item
		if item.RequiresSafetyInfo {
			requiresSafety = true
		}
	}
	return items, requiresSafety, nil
}

func (o *Orchestrator) price(ctx context.Context, snapshot domain.Cart, items map[uuid.UUID]domain.CatalogItem, now time.Time) (pricing.Quote, error) {
	var lookup pricing.PromoLookup
	if snapshot.PromoCode != "" {
		promo, err := o.promos.GetPromo(ctx, snapshot.PromoCode)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return pricing.Quote{}, domain.ErrPromoInvalid
			}
			return pricing.Quote{}, err
		}
		lookup = func(code string) (domain.PromoCode, bool) {
			return promo, code == promo.Code
		}
	}
	return o.engine.Price(snapshot, items, lookup, now)
}

func (o *Orchestrator) charge(ctx context.Context, totalCents int64, sel PaymentSelection) (payment.Result, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	start := o.clk.Now()
	result, err := o.gateway.Charge(chargeCtx, totalCents, "USD", payment.Instrument{
		Method:     sel.Method,
		CardNumber: sel.CardNumber,
		CardExpiry: sel.CardExpiry,
		CardCVC:    sel.CardCVC,
	})
	observability.PaymentDuration.Observe(o.clk.Now().Sub(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return payment.Result{}, domain.ErrPaymentTimeout
		}
		return payment.Result{}, err
	}
	return result, nil
}

func validateSelection(sel PaymentSelection) error {
	switch sel.Method {
	case "card":
		if strings.TrimSpace(sel.CardNumber) == "" || strings.TrimSpace(sel.CardExpiry) == "" {
			return errors.Wrap(domain.ErrInvalidInput, "card number and expiry required")
		}
	case "credits", "loyalty":
		// Covered by the cart's redemption instrument; nothing to collect.
	case "":
		return errors.Wrap(domain.ErrInvalidInput, "payment method required")
	default:
		return errors.Wrapf(domain.ErrInvalidInput, "unsupported payment method %q", sel.Method)
	}
	return nil
}

func bookedLines(snapshot domain.Cart, quote pricing.Quote, items map[uuid.UUID]domain.CatalogItem) []domain.BookedLine {
	unit := make(map[uuid.UUID]int64, len(quote.Lines))
	for _, lp := range quote.Lines {
		unit[lp.LineID] = lp.UnitPriceCents
	}
	lines := make([]domain.BookedLine, 0, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		lines = append(lines, domain.BookedLine{
			ClassID:        l.ClassID,
			Title:          items[l.ClassID].Title,
			Date:           l.Date,
			Start:          l.Start,
			Quantity:       l.Quantity,
			UnitPriceCents: unit[l.LineID],
		})
	}
	return lines
}
