package notification

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeChallengeCompleted Type = "challenge_completed"
	TypeBadgeUnlocked      Type = "badge_unlocked"
	TypeRewardRedeemed     Type = "reward_redeemed"
	TypeStreakMilestone    Type = "streak_milestone"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Notification struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Type      Type           `json:"type" db:"type"`
	Status    Status         `json:"status" db:"status"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	Data      map[string]any `json:"data,omitempty" db:"data"`
	ReadAt    *time.Time     `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform"`
}

type ListResponse struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
}
