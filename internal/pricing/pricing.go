// Package pricing derives cart totals. Everything here is a pure function
// of its inputs: same cart, catalog and instant always produce the same
// breakdown.
package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reservesurf/booking-funnel/internal/config"
	"github.com/reservesurf/booking-funnel/internal/domain"
)

// PromoLookup resolves a promo code from the back-office catalog. A miss
// returns false.
type PromoLookup func(code string) (domain.PromoCode, bool)

type LinePrice struct {
	LineID            uuid.UUID
	ClassID           uuid.UUID
	UnitPriceCents    int64
	LineTotalCents    int64 // unit price x quantity, excluding equipment
	EquipmentFeeCents int64
}

// Quote is a full priced cart: per-line figures plus the aggregate
// breakdown the checkout UI and the audit trail reproduce totals from.
type Quote struct {
	Lines     []LinePrice
	Breakdown domain.PriceBreakdown
}

type Engine struct {
	cfg config.PricingConfig
}

func NewEngine(cfg config.PricingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Price computes the quote for a cart. At most one discount instrument is
// applied; a promo code that fails validation is rejected, never silently
// ignored.
func (e *Engine) Price(cart domain.Cart, items map[uuid.UUID]domain.CatalogItem, promos PromoLookup, now time.Time) (Quote, error) {
	var q Quote
	var subtotal, equipment int64

	for _, line := range cart.Lines {
		item, ok := items[line.ClassID]
		if !ok {
			return Quote{}, fmt.Errorf("class %s: %w", line.ClassID, domain.ErrNotFound)
		}
		unit := e.UnitPrice(item, line.Date)
		lp := LinePrice{
			LineID:         line.LineID,
			ClassID:        line.ClassID,
			UnitPriceCents: unit,
			LineTotalCents: unit * int64(line.Quantity),
		}
		if !item.EquipmentIncluded {
			lp.EquipmentFeeCents = e.cfg.EquipmentFeeCents
		}
		subtotal += lp.LineTotalCents
		equipment += lp.EquipmentFeeCents
		q.Lines = append(q.Lines, lp)
	}

	discount, err := e.discount(cart, q.Lines, subtotal, equipment, promos, now)
	if err != nil {
		return Quote{}, err
	}

	processing := roundBP(subtotal+equipment-discount, e.cfg.ProcessingRateBP) + e.cfg.ProcessingFixedCents

	q.Breakdown = domain.PriceBreakdown{
		SubtotalCents:      subtotal,
		EquipmentFeeCents:  equipment,
		DiscountCents:      discount,
		ProcessingFeeCents: processing,
		TotalCents:         subtotal + equipment - discount + processing,
	}
	return q, nil
}

// UnitPrice substitutes the peak price when the item is seasonally priced
// and the booking date falls inside the configured peak window.
func (e *Engine) UnitPrice(item domain.CatalogItem, date time.Time) int64 {
	if item.SeasonallyPriced() && e.inPeakWindow(date) {
		return item.PeakPriceCents
	}
	return item.BasePriceCents
}

func (e *Engine) discount(cart domain.Cart, lines []LinePrice, subtotal, equipment int64, promos PromoLookup, now time.Time) (int64, error) {
	charge := subtotal + equipment

	if cart.PromoCode != "" {
		if promos == nil {
			return 0, domain.ErrPromoInvalid
		}
		promo, ok := promos(cart.PromoCode)
		if !ok {
			return 0, domain.ErrPromoInvalid
		}
		if err := promo.Validate(charge, now); err != nil {
			return 0, err
		}
		return promo.DiscountCents(charge), nil
	}

	if r := cart.Redemption; r != nil {
		var d int64
		switch r.Kind {
		case domain.RedemptionCredits:
			covered := r.Credits
			if covered > len(lines) {
				covered = len(lines)
			}
			for _, lp := range lines[:covered] {
				d += lp.LineTotalCents + lp.EquipmentFeeCents
			}
		case domain.RedemptionLoyalty:
			if e.cfg.LoyaltyTierPoints > 0 {
				tiers := int64(r.Points / e.cfg.LoyaltyTierPoints)
				d = tiers * e.cfg.LoyaltyTierCents
			}
		}
		if d > charge {
			d = charge
		}
		if d < 0 {
			d = 0
		}
		return d, nil
	}

	return 0, nil
}

// inPeakWindow checks an inclusive MM-DD range. A window whose start is
// after its end wraps the year boundary.
func (e *Engine) inPeakWindow(date time.Time) bool {
	md := date.UTC().Format("01-02")
	start, end := e.cfg.PeakStart, e.cfg.PeakEnd
	if start == "" || end == "" {
		return false
	}
	if start <= end {
		return md >= start && md <= end
	}
	return md >= start || md <= end
}

// roundBP applies a basis-point rate with half-up rounding to the cent.
func roundBP(amount, rateBP int64) int64 {
	return (amount*rateBP + 5000) / 10000
}
