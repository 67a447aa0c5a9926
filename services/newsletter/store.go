package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrDuplicateEmail is returned by Create when another row already owns the email.
var ErrDuplicateEmail = errors.New("email already exists")

type Store interface {
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
	FindByToken(ctx context.Context, token string) (*Subscriber, error)
	Create(ctx context.Context, sub *Subscriber) error
	Reactivate(ctx context.Context, id, token string) error
	// MarkVerified verifies the row only while its token still equals token.
	// It reports false when the token was changed or cleared in between.
	MarkVerified(ctx context.Context, id, token string) (bool, error)
	SetSubscriptionStatus(ctx context.Context, id string, subscribed bool) error
	SetToken(ctx context.Context, id, token string) error
	ListActive(ctx context.Context) ([]Subscriber, error)
	List(ctx context.Context) ([]Subscriber, error)
	Stats(ctx context.Context) (*Stats, error)
}

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// FindByEmail returns nil without error when no row matches.
func (s *GormStore) FindByEmail(ctx context.Context, email string) (*Subscriber, error) {
	return s.first(ctx, "email = ?", email)
}

// FindByToken returns nil without error when no row matches.
func (s *GormStore) FindByToken(ctx context.Context, token string) (*Subscriber, error) {
	return s.first(ctx, "verification_token = ?", token)
}

func (s *GormStore) first(ctx context.Context, query string, arg any) (*Subscriber, error) {
	var sub Subscriber
	err := s.db.WithContext(ctx).Where(query, arg).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriber: %w", err)
	}
	return &sub, nil
}

func (s *GormStore) Create(ctx context.Context, sub *Subscriber) error {
	now := s.now()
	sub.CreatedAt = now
	sub.LastUpdated = now

	err := s.db.WithContext(ctx).Create(sub).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

func (s *GormStore) Reactivate(ctx context.Context, id, token string) error {
	return s.update(ctx, id, map[string]any{
		"subscription_status": true,
		"verified":            false,
		"verification_token":  token,
	})
}

func (s *GormStore) MarkVerified(ctx context.Context, id, token string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Subscriber{}).
		Where("id = ? AND verification_token = ?", id, token).
		Updates(map[string]any{
			"verified":            true,
			"verification_token":  nil,
			"subscription_status": true,
			"last_updated":        s.now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to verify subscriber: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) SetSubscriptionStatus(ctx context.Context, id string, subscribed bool) error {
	return s.update(ctx, id, map[string]any{"subscription_status": subscribed})
}

func (s *GormStore) SetToken(ctx context.Context, id, token string) error {
	return s.update(ctx, id, map[string]any{"verification_token": token})
}

func (s *GormStore) update(ctx context.Context, id string, values map[string]any) error {
	values["last_updated"] = s.now()

	result := s.db.WithContext(ctx).Model(&Subscriber{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update subscriber %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update subscriber %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ListActive returns the broadcast audience: subscribed and verified rows.
func (s *GormStore) ListActive(ctx context.Context) ([]Subscriber, error) {
	var subs []Subscriber
	err := s.db.WithContext(ctx).
		Where("subscription_status = ? AND verified = ?", true, true).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscribers: %w", err)
	}
	return subs, nil
}

// List returns every subscriber, newest first.
func (s *GormStore) List(ctx context.Context) ([]Subscriber, error) {
	var subs []Subscriber
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

func (s *GormStore) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		SubscriptionStatus bool
		Verified           bool
		Count              int64
	}
	err := s.db.WithContext(ctx).Model(&Subscriber{}).
		Select("subscription_status, verified, COUNT(*) AS count").
		Group("subscription_status, verified").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count subscribers: %w", err)
	}

	stats := &Stats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch {
		case !row.SubscriptionStatus:
			stats.Unsubscribed += row.Count
		case row.Verified:
			stats.Active += row.Count
		default:
			stats.Pending += row.Count
		}
	}
	return stats, nil
}
