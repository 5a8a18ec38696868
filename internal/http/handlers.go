package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/cart"
	"github.com/reservesurf/booking-funnel/internal/checkout"
	"github.com/reservesurf/booking-funnel/internal/clock"
	"github.com/reservesurf/booking-funnel/internal/config"
	"github.com/reservesurf/booking-funnel/internal/domain"
	"github.com/reservesurf/booking-funnel/internal/funnel"
	"github.com/reservesurf/booking-funnel/internal/idempotency"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"github.com/reservesurf/booking-funnel/internal/pricing"
	"github.com/reservesurf/booking-funnel/internal/session"
)

// CatalogReader is the read-only slice of the back-office catalog the
// funnel consumes.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListClasses(ctx context.Context, categoryID string) ([]domain.CatalogItem, error)
	GetClass(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
	ListTimeSlots(ctx context.Context, classID uuid.UUID, date time.Time) ([]domain.TimeSlot, error)
}

type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
}

type Auditor interface {
	LogCommit(ctx context.Context, sessionID string, line domain.CartLine) error
}

// IdempotencyStore replays a previously returned checkout response for a
// repeated Idempotency-Key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Response, error)
	Set(ctx context.Context, key string, resp idempotency.Response) error
}

type Handlers struct {
	cfg      *config.Config
	logger   observability.Logger
	catalog  CatalogReader
	promos   checkout.PromoRepository
	sessions session.Store
	engine   *pricing.Engine
	orch     *checkout.Orchestrator
	bookings BookingReader
	idemp    IdempotencyStore
	audit    Auditor
	clk      clock.Clock
}

func NewHandlers(cfg *config.Config, logger observability.Logger, catalog CatalogReader, promos checkout.PromoRepository, sessions session.Store, engine *pricing.Engine, orch *checkout.Orchestrator, bookings BookingReader, idemp IdempotencyStore, audit Auditor, clk clock.Clock) *Handlers {
	return &Handlers{
		cfg:      cfg,
		logger:   logger,
		catalog:  catalog,
		promos:   promos,
		sessions: sessions,
		engine:   engine,
		orch:     orch,
		bookings: bookings,
		idemp:    idemp,
		audit:    audit,
		clk:      clk,
	}
}

// ---- catalog ----

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": cats})
}

func (h *Handlers) ListClasses(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListClasses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"classes": items})
}

func (h *Handlers) ListTimeSlots(w http.ResponseWriter, r *http.Request) {
	classID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid class id", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.URL.Query().Get("date"), time.UTC)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	slots, err := h.catalog.ListTimeSlots(r.Context(), classID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}

// ---- funnel ----

func (h *Handlers) GetFunnel(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	m, err := h.loadMachine(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID string `json:"category_id"`
	}
	h.funnelOp(w, r, "select_category", func(ctx context.Context, m *funnel.Machine) error {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errors.Wrap(domain.ErrInvalidInput, err.Error())
		}
		return m.SelectCategory(req.CategoryID)
	})
}

func (h *Handlers) SelectClass(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClassID uuid.UUID `json:"class_id"`
	}
	h.funnelOp(w, r, "select_class", func(ctx context.Context, m *funnel.Machine) error {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errors.Wrap(domain.ErrInvalidInput, err.Error())
		}
		item, err := h.catalog.GetClass(ctx, req.ClassID)
		if err != nil {
			return err
		}
		return m.SelectClass(item)
	})
}

func (h *Handlers) SelectSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date     string `json:"date"`
		Start    string `json:"start"`
		Quantity int    `json:"quantity"`
	}
	h.funnelOp(w, r, "select_schedule", func(ctx context.Context, m *funnel.Machine) error {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errors.Wrap(domain.ErrInvalidInput, err.Error())
		}
		date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
		if err != nil {
			return errors.Wrap(domain.ErrInvalidInput, "invalid date, want YYYY-MM-DD")
		}
		if m.State != funnel.StepChoosingSchedule {
			return &funnel.PreconditionError{Op: "selectSchedule", Current: m.State, Required: funnel.StepChoosingSchedule}
		}
		item, err := h.catalog.GetClass(ctx, m.Selection.ClassID)
		if err != nil {
			return err
		}
		offered, err := h.catalog.ListTimeSlots(ctx, item.ID, date)
		if err != nil {
			return err
		}
		return m.SelectSchedule(item, offered, date, req.Start, req.Quantity, h.clk.Now())
	})
}

func (h *Handlers) CommitToCart(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req struct {
		ContinueShopping bool `json:"continue_shopping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	m, err := h.loadMachine(ctx, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sel, err := m.CommitToCart(req.ContinueShopping)
	if err != nil {
		observability.FunnelTransitions.WithLabelValues("commit", "rejected").Inc()
		h.writeError(w, err)
		return
	}

	item, err := h.catalog.GetClass(ctx, sel.ClassID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	line, err := domain.NewCartLine(item, sel.Date, sel.Start, sel.Quantity, h.clk.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}

	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := store.AddLine(ctx, item, line); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.saveMachine(ctx, sid, m); err != nil {
		h.writeError(w, err)
		return
	}
	if h.audit != nil {
		_ = h.audit.LogCommit(ctx, sid, line)
	}
	observability.FunnelTransitions.WithLabelValues("commit", "ok").Inc()
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"line_id": line.LineID,
		"state":   m.State,
	})
}

func (h *Handlers) FunnelBack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To string `json:"to"` // "category" or "class"
	}
	h.funnelOp(w, r, "back", func(ctx context.Context, m *funnel.Machine) error {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return errors.Wrap(domain.ErrInvalidInput, err.Error())
		}
		switch req.To {
		case "category":
			return m.ChangeCategory()
		case "class":
			return m.ChangeClass()
		default:
			return errors.Wrapf(domain.ErrInvalidInput, "unknown back target %q", req.To)
		}
	})
}

func (h *Handlers) FunnelAdvance(w http.ResponseWriter, r *http.Request) {
	h.funnelOp(w, r, "advance", func(ctx context.Context, m *funnel.Machine) error {
		if m.State == funnel.StepChoosingCategory || m.State == funnel.StepChoosingClass || m.State == funnel.StepChoosingSchedule {
			return m.Review()
		}
		return m.Advance()
	})
}

func (h *Handlers) FunnelReset(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	m, err := h.loadMachine(ctx, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	m.Reset()
	h.orch.Abandon(sid)
	if err := h.saveMachine(ctx, sid, m); err != nil {
		h.writeError(w, err)
		return
	}
	observability.FunnelTransitions.WithLabelValues("reset", "ok").Inc()
	writeJSON(w, http.StatusOK, m)
}

// funnelOp loads the machine, applies one transition and persists on
// success. Rejected transitions leave persisted state untouched.
func (h *Handlers) funnelOp(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, m *funnel.Machine) error) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	m, err := h.loadMachine(ctx, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := fn(ctx, m); err != nil {
		observability.FunnelTransitions.WithLabelValues(op, "rejected").Inc()
		h.writeError(w, err)
		return
	}
	if err := h.saveMachine(ctx, sid, m); err != nil {
		h.writeError(w, err)
		return
	}
	observability.FunnelTransitions.WithLabelValues(op, "ok").Inc()
	writeJSON(w, http.StatusOK, m)
}

// ---- cart ----

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snapshot := store.Snapshot()

	resp := map[string]interface{}{"cart": snapshot}
	quote, perr := h.price(ctx, snapshot)
	if perr != nil {
		// Price without the failing instrument so the cart stays usable;
		// the rejection reason rides along.
		bare := snapshot
		bare.PromoCode = ""
		bare.Redemption = nil
		if quote, err = h.price(ctx, bare); err != nil {
			h.writeError(w, err)
			return
		}
		resp["instrument_error"] = errorKind(perr)
	}
	resp["breakdown"] = quote.Breakdown
	resp["lines"] = quote.Lines
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		http.Error(w, "invalid line id", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := store.RemoveLine(ctx, lineID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cart": store.Snapshot()})
}

func (h *Handlers) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		http.Error(w, "invalid line id", http.StatusBadRequest)
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := store.SetQuantity(ctx, lineID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cart": store.Snapshot()})
}

func (h *Handlers) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req struct {
		Code    string `json:"code"`
		Replace bool   `json:"replace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Validate before touching the cart so a rejected code leaves the
	// pre-discount total untouched.
	promo, err := h.promos.GetPromo(ctx, req.Code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, domain.ErrPromoInvalid)
			return
		}
		h.writeError(w, err)
		return
	}
	trial := store.Snapshot()
	trial.PromoCode = ""
	trial.Redemption = nil
	quote, err := h.price(ctx, trial)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := promo.Validate(quote.Breakdown.SubtotalCents+quote.Breakdown.EquipmentFeeCents, h.clk.Now()); err != nil {
		h.writeError(w, err)
		return
	}

	if err := store.ApplyPromoCode(ctx, promo.Code, req.Replace); err != nil {
		h.writeError(w, err)
		return
	}
	h.respondPriced(w, r, store)
}

func (h *Handlers) ApplyRedemption(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind    domain.RedemptionKind `json:"kind"`
		Credits int                   `json:"credits"`
		Points  int                   `json:"points"`
		Replace bool                  `json:"replace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	err = store.ApplyRedemption(ctx, domain.Redemption{Kind: req.Kind, Credits: req.Credits, Points: req.Points}, req.Replace)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respondPriced(w, r, store)
}

func (h *Handlers) respondPriced(w http.ResponseWriter, r *http.Request, store *cart.Store) {
	snapshot := store.Snapshot()
	quote, err := h.price(r.Context(), snapshot)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cart":      snapshot,
		"breakdown": quote.Breakdown,
	})
}

// ---- profile ----

func (h *Handlers) PutProfile(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var p domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Kind == "" {
		p.Kind = domain.ProfileGuest
	}
	if p.WaiverAccepted && p.WaiverSignedAt.IsZero() {
		p.WaiverSignedAt = h.clk.Now()
	}
	if err := session.SaveJSON(r.Context(), h.sessions, session.ProfileKey(sid), p); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetEligibility(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var p domain.Profile
	if _, err := session.LoadJSON(ctx, h.sessions, session.ProfileKey(sid), &p); err != nil {
		h.writeError(w, err)
		return
	}

	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	requiresSafety, err := h.requiresSafety(ctx, store.Snapshot())
	if err != nil {
		h.writeError(w, err)
		return
	}

	missing := checkout.Eligibility(p, requiresSafety, h.clk.Now(), h.cfg.WaiverValidity)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eligible": len(missing) == 0,
		"missing":  missing,
	})
}

// ---- checkout ----

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		http.Error(w, "missing Idempotency-Key", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if existing, err := h.idemp.Get(ctx, key); err != nil {
		h.writeError(w, err)
		return
	} else if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var sel checkout.PaymentSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	store, err := cart.Open(ctx, h.sessions, h.catalog, h.clk, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	m, err := h.loadMachine(ctx, sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var profile domain.Profile
	if _, err := session.LoadJSON(ctx, h.sessions, session.ProfileKey(sid), &profile); err != nil {
		h.writeError(w, err)
		return
	}

	// Walk the review steps the client may have skipped; the orchestrator
	// still enforces the real preconditions.
	for m.State == funnel.StepCartReview || m.State == funnel.StepIdentityCapture {
		if err := m.Advance(); err != nil {
			break
		}
	}

	booking, err := h.orch.Finalize(ctx, sid, store, m, profile, sel)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.saveMachine(ctx, sid, m); err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"booking_id": booking.ID,
		"total":      booking.TotalCents,
		"currency":   booking.Currency,
		"breakdown":  booking.Breakdown,
		"state":      m.State,
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	if err := h.idemp.Set(ctx, key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to cache checkout response")
	}
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	booking, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ---- health ----

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// ---- helpers ----

func (h *Handlers) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid := r.Header.Get(sessionHeader)
	if sid == "" {
		http.Error(w, "missing "+sessionHeader, http.StatusBadRequest)
		return "", false
	}
	return sid, true
}

func (h *Handlers) loadMachine(ctx context.Context, sid string) (*funnel.Machine, error) {
	m := funnel.NewMachine()
	if _, err := session.LoadJSON(ctx, h.sessions, session.FunnelKey(sid), m); err != nil {
		return nil, err
	}
	if m.State == "" {
		m.State = funnel.StepChoosingCategory
	}
	return m, nil
}

func (h *Handlers) saveMachine(ctx context.Context, sid string, m *funnel.Machine) error {
	return session.SaveJSON(ctx, h.sessions, session.FunnelKey(sid), m)
}

func (h *Handlers) price(ctx context.Context, snapshot domain.Cart) (pricing.Quote, error) {
	items := make(map[uuid.UUID]domain.CatalogItem)
	for _, line := range snapshot.Lines {
		if _, ok := items[line.ClassID]; ok {
			continue
		}
		item, err := h.catalog.GetClass(ctx, line.ClassID)
		if err != nil {
			return pricing.Quote{}, err
		}
		items[item.ID] = item
	}
	var lookup pricing.PromoLookup
	if snapshot.PromoCode != "" {
		promo, err := h.promos.GetPromo(ctx, snapshot.PromoCode)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return pricing.Quote{}, domain.ErrPromoInvalid
			}
			return pricing.Quote{}, err
		}
		lookup = func(code string) (domain.PromoCode, bool) { return promo, code == promo.Code }
	}
	return h.engine.Price(snapshot, items, lookup, h.clk.Now())
}

func (h *Handlers) requiresSafety(ctx context.Context, snapshot domain.Cart) (bool, error) {
	for _, line := range snapshot.Lines {
		item, err := h.catalog.GetClass(ctx, line.ClassID)
		if err != nil {
			return false, err
		}
		if item.RequiresSafetyInfo {
			return true, nil
		}
	}
	return false, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
