package checkout

import (
	"reflect"
	"testing"
	"time"

	"github.com/reservesurf/booking-funnel/internal/domain"
)

const yearWaiver = 365 * 24 * time.Hour

func completeProfile(now time.Time) domain.Profile {
	return domain.Profile{
		Kind:      domain.ProfileGuest,
		FirstName: "Kai",
		LastName:  "Moana",
		Email:     "kai@example.com",
		Phone:     "+14155550123",
		EmergencyContact: domain.EmergencyContact{
			Name:         "Leilani Moana",
			Phone:        "+14155550124",
			Relationship: "spouse",
		},
		Safety: domain.SafetyAssessment{
			SwimAbility: 4,
			SkillLevel:  "beginner",
		},
		WaiverAccepted: true,
		WaiverSignedAt: now,
		TermsAccepted:  true,
	}
}

func TestEligibility(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("complete profile is eligible", func(t *testing.T) {
		if missing := Eligibility(completeProfile(now), true, now, yearWaiver); len(missing) != 0 {
			t.Fatalf("expected eligible, missing %v", missing)
		}
	})

	t.Run("empty profile lists every base requirement", func(t *testing.T) {
		missing := Eligibility(domain.Profile{}, false, now, yearWaiver)
		want := []string{"firstName", "lastName", "email", "phone", "waiverAccepted", "termsAccepted"}
		if !reflect.DeepEqual(missing, want) {
			t.Fatalf("missing = %v, want %v", missing, want)
		}
	})

	t.Run("safety fields required only for flagged classes", func(t *testing.T) {
		p := completeProfile(now)
		p.EmergencyContact = domain.EmergencyContact{}
		p.Safety = domain.SafetyAssessment{}

		if missing := Eligibility(p, false, now, yearWaiver); len(missing) != 0 {
			t.Fatalf("expected eligible without safety info, missing %v", missing)
		}

		missing := Eligibility(p, true, now, yearWaiver)
		want := []string{"emergencyContact.name", "emergencyContact.phone", "safety.swimAbility", "safety.skillLevel"}
		if !reflect.DeepEqual(missing, want) {
			t.Fatalf("missing = %v, want %v", missing, want)
		}
	})

	t.Run("swim ability must be a 1-5 rating", func(t *testing.T) {
		p := completeProfile(now)
		p.Safety.SwimAbility = 6
		missing := Eligibility(p, true, now, yearWaiver)
		if !reflect.DeepEqual(missing, []string{"safety.swimAbility"}) {
			t.Fatalf("missing = %v", missing)
		}
	})

	t.Run("malformed contact details", func(t *testing.T) {
		p := completeProfile(now)
		p.Email = "not-an-email"
		p.Phone = "0800"
		missing := Eligibility(p, false, now, yearWaiver)
		if !reflect.DeepEqual(missing, []string{"email", "phone"}) {
			t.Fatalf("missing = %v", missing)
		}
	})

	t.Run("expired waiver requires re-acknowledgement", func(t *testing.T) {
		p := completeProfile(now)
		p.WaiverSignedAt = now.Add(-yearWaiver - time.Hour)
		missing := Eligibility(p, false, now, yearWaiver)
		if !reflect.DeepEqual(missing, []string{"waiverAccepted"}) {
			t.Fatalf("missing = %v", missing)
		}

		// A signature inside the validity window stays good.
		p.WaiverSignedAt = now.Add(-yearWaiver + time.Hour)
		if missing := Eligibility(p, false, now, yearWaiver); len(missing) != 0 {
			t.Fatalf("expected eligible, missing %v", missing)
		}
	})

	t.Run("unsigned waiver without timestamp is still a gate", func(t *testing.T) {
		p := completeProfile(now)
		p.WaiverAccepted = false
		p.WaiverSignedAt = time.Time{}
		missing := Eligibility(p, false, now, yearWaiver)
		if !reflect.DeepEqual(missing, []string{"waiverAccepted"}) {
			t.Fatalf("missing = %v", missing)
		}
	})
}
