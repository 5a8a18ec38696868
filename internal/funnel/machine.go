// Package funnel drives the booking step sequence. The machine holds the
// single in-flight selection separately from committed cart lines and
// rejects out-of-order transitions without partial mutation.
package funnel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/domain"
)

type Step string

const (
	StepChoosingCategory Step = "CHOOSING_CATEGORY"
	StepChoosingClass    Step = "CHOOSING_CLASS"
	StepChoosingSchedule Step = "CHOOSING_SCHEDULE"
	StepCartReview       Step = "CART_REVIEW"
	StepIdentityCapture  Step = "IDENTITY_CAPTURE"
	StepPaymentReview    Step = "PAYMENT_REVIEW"
	StepConfirmed        Step = "CONFIRMED"
)

// PreconditionError names the step a rejected transition was missing, so
// the caller can route the user to the next correct action.
type PreconditionError struct {
	Op       string
	Current  Step
	Required Step
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: requires step %s, currently at %s", e.Op, e.Required, e.Current)
}

// Selection is the transient in-flight pick. It exists only between
// choosing a class and committing to the cart; it is not part of the cart.
type Selection struct {
	CategoryID string    `json:"category_id,omitempty"`
	ClassID    uuid.UUID `json:"class_id,omitempty"`
	Date       time.Time `json:"date,omitzero"`
	Start      string    `json:"start,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
}

func (s Selection) scheduleChosen() bool {
	return s.Quantity > 0
}

type Machine struct {
	State     Step      `json:"state"`
	Selection Selection `json:"selection"`
}

func NewMachine() *Machine {
	return &Machine{State: StepChoosingCategory}
}

func (m *Machine) SelectCategory(categoryID string) error {
	if m.State != StepChoosingCategory {
		return &PreconditionError{Op: "selectCategory", Current: m.State, Required: StepChoosingCategory}
	}
	if categoryID == "" {
		return domain.ErrInvalidInput
	}
	m.Selection = Selection{CategoryID: categoryID}
	m.State = StepChoosingClass
	return nil
}

// SelectClass accepts the already-resolved catalog item; the caller looks
// it up so the machine stays free of I/O.
func (m *Machine) SelectClass(item domain.CatalogItem) error {
	if m.State != StepChoosingClass {
		return &PreconditionError{Op: "selectClass", Current: m.State, Required: StepChoosingClass}
	}
	if item.CategoryID != m.Selection.CategoryID {
		return fmt.Errorf("class %s does not belong to category %s: %w", item.ID, m.Selection.CategoryID, domain.ErrInvalidInput)
	}
	m.Selection.ClassID = item.ID
	m.Selection.Date = time.Time{}
	m.Selection.Start = ""
	m.Selection.Quantity = 0
	m.State = StepChoosingSchedule
	return nil
}

// SelectSchedule validates date, slot and quantity but does not advance the
// machine; committing is an explicit separate action.
func (m *Machine) SelectSchedule(item domain.CatalogItem, offered []domain.TimeSlot, date time.Time, start string, quantity int, today time.Time) error {
	if m.State != StepChoosingSchedule {
		return &PreconditionError{Op: "selectSchedule", Current: m.State, Required: StepChoosingSchedule}
	}
	if item.ID != m.Selection.ClassID {
		return fmt.Errorf("schedule for class %s but %s selected: %w", item.ID, m.Selection.ClassID, domain.ErrInvalidInput)
	}
	if domain.Midnight(date).Before(domain.Midnight(today)) {
		return fmt.Errorf("date %s is in the past: %w", date.Format("2006-01-02"), domain.ErrInvalidInput)
	}
	if quantity < 1 || quantity > item.MaxParticipants {
		return domain.ErrCapacityExceeded
	}
	if !slotOffered(offered, date, start) {
		return fmt.Errorf("slot %s %s not offered: %w", date.Format("2006-01-02"), start, domain.ErrInvalidInput)
	}
	m.Selection.Date = domain.Midnight(date)
	m.Selection.Start = start
	m.Selection.Quantity = quantity
	return nil
}

// CommitToCart hands the completed selection to the caller and clears it.
// Both successor states are valid; the caller chooses, it is never
// inferred.
func (m *Machine) CommitToCart(continueShopping bool) (Selection, error) {
	if m.State != StepChoosingSchedule {
		return Selection{}, &PreconditionError{Op: "commitToCart", Current: m.State, Required: StepChoosingSchedule}
	}
	if !m.Selection.scheduleChosen() {
		return Selection{}, &PreconditionError{Op: "commitToCart", Current: m.State, Required: StepChoosingSchedule}
	}
	sel := m.Selection
	m.Selection = Selection{}
	if continueShopping {
		m.State = StepChoosingCategory
	} else {
		m.State = StepCartReview
	}
	return sel, nil
}

// ChangeCategory is permitted from any downstream step and invalidates the
// class and schedule picks only.
func (m *Machine) ChangeCategory() error {
	switch m.State {
	case StepChoosingCategory:
		return &PreconditionError{Op: "changeCategory", Current: m.State, Required: StepChoosingClass}
	case StepConfirmed:
		return &PreconditionError{Op: "changeCategory", Current: m.State, Required: StepChoosingClass}
	}
	m.Selection.ClassID = uuid.UUID{}
	m.Selection.Date = time.Time{}
	m.Selection.Start = ""
	m.Selection.Quantity = 0
	m.State = StepChoosingCategory
	return nil
}

// ChangeClass invalidates the schedule pick only.
func (m *Machine) ChangeClass() error {
	if m.Selection.CategoryID == "" || m.State == StepChoosingCategory || m.State == StepChoosingClass || m.State == StepConfirmed {
		return &PreconditionError{Op: "changeClass", Current: m.State, Required: StepChoosingSchedule}
	}
	m.Selection.Date = time.Time{}
	m.Selection.Start = ""
	m.Selection.Quantity = 0
	m.State = StepChoosingClass
	return nil
}

// Advance moves through the checkout review steps.
func (m *Machine) Advance() error {
	switch m.State {
	case StepCartReview:
		m.State = StepIdentityCapture
	case StepIdentityCapture:
		m.State = StepPaymentReview
	default:
		return &PreconditionError{Op: "advance", Current: m.State, Required: StepCartReview}
	}
	return nil
}

// Review jumps to cart review from the shopping steps, e.g. when the user
// opens the cart directly.
func (m *Machine) Review() error {
	switch m.State {
	case StepChoosingCategory, StepChoosingClass, StepChoosingSchedule, StepCartReview:
		m.Selection = Selection{}
		m.State = StepCartReview
		return nil
	}
	return &PreconditionError{Op: "review", Current: m.State, Required: StepChoosingCategory}
}

// Reset abandons the funnel pass. Committed cart lines are untouched; only
// the in-flight selection is discarded.
func (m *Machine) Reset() {
	m.Selection = Selection{}
	m.State = StepChoosingCategory
}

// Confirm is called by the checkout orchestrator after a successful charge.
func (m *Machine) Confirm() error {
	if m.State != StepPaymentReview {
		return &PreconditionError{Op: "confirm", Current: m.State, Required: StepPaymentReview}
	}
	m.State = StepConfirmed
	return nil
}

func slotOffered(offered []domain.TimeSlot, date time.Time, start string) bool {
	d := domain.Midnight(date)
	for _, s := range offered {
		if s.Start == start && domain.Midnight(s.Date).Equal(d) {
			return true
		}
	}
	return false
}
