package newsletter

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type State string

const (
	StatePending      State = "pending"
	StateActive       State = "active"
	StateUnsubscribed State = "unsubscribed"
)

// Subscriber is one email's newsletter relationship. Rows are never deleted.
type Subscriber struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	Email              string    `gorm:"uniqueIndex;size:320;not null" json:"email"`
	SubscriptionStatus bool      `gorm:"not null" json:"subscription_status"`
	Verified           bool      `gorm:"not null" json:"verified"`
	VerificationToken  *string   `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	LastUpdated        time.Time `gorm:"autoUpdateTime" json:"last_updated"`
}

func (Subscriber) TableName() string {
	return "newsletter_subscribers"
}

func (s *Subscriber) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Subscriber) State() State {
	switch {
	case !s.SubscriptionStatus:
		return StateUnsubscribed
	case s.Verified:
		return StateActive
	default:
		return StatePending
	}
}

// Stats counts subscribers per state.
type Stats struct {
	Total        int64 `json:"total"`
	Active       int64 `json:"active"`
	Pending      int64 `json:"pending"`
	Unsubscribed int64 `json:"unsubscribed"`
}
