package points

import (
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	TypeEarned EntryType = "earned"
	TypeSpent  EntryType = "spent"
)

type Source string

const (
	SourceActivity   Source = "activity"
	SourceChallenge  Source = "challenge"
	SourceRedemption Source = "redemption"
	SourceManual     Source = "manual"
)

// Entry is one row of the append-only points history. Entries are never
// updated or deleted; a user's total_points must equal the sum of their
// entry deltas at all times.
type Entry struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"user_id" db:"user_id"`
	Points      int        `json:"points" db:"points"`
	Type        EntryType  `json:"type" db:"type"`
	Source      Source     `json:"source" db:"source"`
	SourceID    *uuid.UUID `json:"source_id,omitempty" db:"source_id"`
	Description *string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
