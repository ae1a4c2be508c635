package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryTransport Category = "transport"
	CategoryFood      Category = "food"
	CategoryEnergy    Category = "energy"
	CategoryOther     Category = "other"
)

type Challenge struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	Category     Category  `json:"category" db:"category"`
	TargetValue  float64   `json:"target_value" db:"target_value"`
	PointsReward int       `json:"points_reward" db:"points_reward"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type UserChallenge struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	ChallengeID uuid.UUID  `json:"challenge_id" db:"challenge_id"`
	Progress    float64    `json:"progress" db:"progress"`
	Completed   bool       `json:"completed" db:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	JoinedAt    time.Time  `json:"joined_at" db:"joined_at"`
}

// ChallengeWithProgress joins a challenge definition with the caller's
// enrollment, if any.
type ChallengeWithProgress struct {
	Challenge
	Joined    bool    `json:"joined"`
	Progress  float64 `json:"progress"`
	Completed bool    `json:"completed"`
}
