// Package checkout gates and finalizes bookings. The eligibility gate is
// the single contract the guest and account paths converge on.
package checkout

import (
	"regexp"
	"strings"
	"time"

	"github.com/reservesurf/booking-funnel/internal/domain"
)

// Validation patterns match the storefront's form rules.
var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// Eligibility returns the list of requirements the profile does not meet,
// by field name, empty when the profile may check out. It never collapses
// to a bare boolean so callers can route the user to the exact unmet field.
func Eligibility(p domain.Profile, requiresSafety bool, now time.Time, waiverValidity time.Duration) []string {
	var missing []string

	if strings.TrimSpace(p.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(p.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if !emailRe.MatchString(p.Email) {
		missing = append(missing, "email")
	}
	if !phoneRe.MatchString(p.Phone) {
		missing = append(missing, "phone")
	}

	// An expired waiver is a hard gate: previously-signed documents past
	// their validity window require re-acknowledgement.
	if !p.WaiverAccepted || waiverExpired(p, now, waiverValidity) {
		missing = append(missing, "waiverAccepted")
	}
	if !p.TermsAccepted {
		missing = append(missing, "termsAccepted")
	}

	if requiresSafety {
		if strings.TrimSpace(p.EmergencyContact.Name) == "" {
			missing = append(missing, "emergencyContact.name")
		}
		if !phoneRe.MatchString(p.EmergencyContact.Phone) {
			missing = append(missing, "emergencyContact.phone")
		}
		if p.Safety.SwimAbility < 1 || p.Safety.SwimAbility > 5 {
			missing = append(missing, "safety.swimAbility")
		}
		if strings.TrimSpace(p.Safety.SkillLevel) == "" {
			missing = append(missing, "safety.skillLevel")
		}
	}

	return missing
}

func waiverExpired(p domain.Profile, now time.Time, validity time.Duration) bool {
	if validity <= 0 || p.WaiverSignedAt.IsZero() {
		return false
	}
	return now.After(p.WaiverSignedAt.Add(validity))
}
