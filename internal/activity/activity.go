package activity

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryTransport Category = "transport"
	CategoryCooking   Category = "cooking"
	CategoryEnergy    Category = "energy"
	CategoryShopping  Category = "shopping"
)

func ValidCategory(c Category) bool {
	switch c {
	case CategoryTransport, CategoryCooking, CategoryEnergy, CategoryShopping:
		return true
	}
	return false
}

type Activity struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Category        Category  `json:"category" db:"category"`
	ActivityType    string    `json:"activity_type" db:"activity_type"`
	DurationMinutes *int      `json:"duration_minutes,omitempty" db:"duration_minutes"`
	DistanceKm      *float64  `json:"distance_km,omitempty" db:"distance_km"`
	CO2Emission     float64   `json:"co2_emission" db:"co2_emission"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	ActivityDate    time.Time `json:"activity_date" db:"activity_date"`
	LoggedAt        time.Time `json:"logged_at" db:"logged_at"`
}

type LogActivityRequest struct {
	Category        Category `json:"category" validate:"required"`
	ActivityType    string   `json:"activity_type"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
}

type LogActivityResponse struct {
	Activity      *Activity `json:"activity"`
	PointsAwarded int       `json:"points_awarded"`
	CurrentStreak int       `json:"current_streak"`
}

// DailySummary backs the home screen: today's total against yesterday's,
// broken down by category.
type DailySummary struct {
	TodayEmission     float64              `json:"today_emission"`
	YesterdayEmission float64              `json:"yesterday_emission"`
	ByCategory        map[Category]float64 `json:"by_category"`
}
