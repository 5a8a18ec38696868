package domain

import (
	"time"

	"github.com/google/uuid"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "BEGINNER"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyAdvanced     Difficulty = "ADVANCED"
	DifficultyKids         Difficulty = "KIDS"
	DifficultyAllLevels    Difficulty = "ALL_LEVELS"
)

type Category struct {
	ID   string
	Name string
}

// CatalogItem is a bookable class or lesson. Supplied by the catalog
// provider and immutable inside the funnel.
type CatalogItem struct {
	ID                 uuid.UUID
	CategoryID         string
	Title              string
	Difficulty         Difficulty
	Instructor         string
	Duration           time.Duration
	BasePriceCents     int64
	PeakPriceCents     int64 // 0 when the item is not seasonally priced
	MaxParticipants    int
	EquipmentIncluded  bool
	RequiresSafetyInfo bool
}

// SeasonallyPriced reports whether the item carries a peak-window price.
func (c CatalogItem) SeasonallyPriced() bool {
	return c.PeakPriceCents > 0
}

type TimeSlot struct {
	ClassID   uuid.UUID
	Date      time.Time // UTC midnight
	Start     string    // "15:04"
	SpotsLeft int
}

// Midnight truncates t to a UTC calendar date. All funnel dates are stored
// this way so equality checks are not sensitive to wall-clock components.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
