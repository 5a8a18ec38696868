package domain

import "time"

type ProfileKind string

const (
	ProfileGuest   ProfileKind = "GUEST"
	ProfileAccount ProfileKind = "ACCOUNT"
)

type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"` // parent, spouse, sibling, friend, other
}

// SafetyAssessment captures the answers the business requires before
// water-sport lessons. SwimAbility is a 1-5 self rating.
type SafetyAssessment struct {
	SwimAbility  int    `json:"swim_ability"`
	SkillLevel   string `json:"skill_level"`
	MedicalNotes string `json:"medical_notes,omitempty"`
}

// Profile is the single contract both the guest and the account checkout
// paths converge on. The gate in internal/checkout decides eligibility.
type Profile struct {
	Kind             ProfileKind      `json:"kind"`
	FirstName        string           `json:"first_name"`
	LastName         string           `json:"last_name"`
	Email            string           `json:"email"`
	Phone            string           `json:"phone"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
	Safety           SafetyAssessment `json:"safety"`
	WaiverAccepted   bool             `json:"waiver_accepted"`
	WaiverSignedAt   time.Time        `json:"waiver_signed_at,omitzero"`
	TermsAccepted    bool             `json:"terms_accepted"`
}
