package reward

import (
	"time"

	"github.com/google/uuid"
)

type Reward struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	PointsCost  int       `json:"points_cost" db:"points_cost"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type RedemptionStatus string

const (
	StatusActive   RedemptionStatus = "active"
	StatusRedeemed RedemptionStatus = "redeemed"
	StatusExpired  RedemptionStatus = "expired"
)

// Redemption is immutable once written; points_spent captures the reward's
// cost at redemption time so later catalog edits do not rewrite history.
type Redemption struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	RewardID       uuid.UUID        `json:"reward_id" db:"reward_id"`
	PointsSpent    int              `json:"points_spent" db:"points_spent"`
	RedemptionCode string           `json:"redemption_code" db:"redemption_code"`
	Status         RedemptionStatus `json:"status" db:"status"`
	RedeemedAt     time.Time        `json:"redeemed_at" db:"redeemed_at"`
}
