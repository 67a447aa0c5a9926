package newsletter

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"regexp"
	"strings"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"go.uber.org/zap"
)

const (
	MessageSubscribed        = "Subscription successful. Please check your email to verify."
	MessageAlreadySubscribed = "Email already subscribed"
	MessageVerified          = "Email verified successfully!"
	MessageAlreadyVerified   = "Email already verified!"
	MessageUnsubscribed      = "Successfully unsubscribed from newsletter"
	MessageNoSubscribers     = "No active subscribers found"
	MessageBroadcastStarted  = "Newsletter broadcast initiated"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeReactivated       Outcome = "reactivated"
	OutcomeAlreadySubscribed Outcome = "already_subscribed"
)

type SubscribeRequest struct {
	Email     string
	Origin    string
	UserAgent string
}

type SubscribeResult struct {
	Message           string
	VerificationToken string
	Outcome           Outcome
}

type VerifyResult struct {
	Message string
	Email   string
}

type UnsubscribeResult struct {
	Message string
	Email   string
}

// Service owns the subscriber state machine.
type Service struct {
	store    Store
	tokens   TokenIssuer
	notifier Notifier
	config   *config.NewsletterConfig
	logger   *logging.Service
}

func NewService(store Store, tokens TokenIssuer, notifier Notifier, cfg *config.NewsletterConfig, logger *logging.Service) *Service {
	return &Service{
		store:    store,
		tokens:   tokens,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
	}
}

// ValidateEmail reports whether email is a single plain address.
func ValidateEmail(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	addr, err := netmail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *Service) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResult, error) {
	email := strings.TrimSpace(req.Email)
	if !ValidateEmail(email) {
		return nil, invalidInput("Invalid email format")
	}

	existing, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	token := s.tokens.NewToken()
	outcome := OutcomeCreated

	if existing == nil {
		err = s.store.Create(ctx, &Subscriber{
			Email:              email,
			SubscriptionStatus: true,
			VerificationToken:  &token,
		})
		if errors.Is(err, ErrDuplicateEmail) {
			existing, err = s.reload(ctx, email)
		}
		if err != nil {
			return nil, err
		}
	}

	if existing != nil {
		// Lost insert races land here too, with the winner's row.
		if existing.State() == StateActive {
			return &SubscribeResult{Message: MessageAlreadySubscribed, Outcome: OutcomeAlreadySubscribed}, nil
		}
		outcome = OutcomeReactivated
		if err := s.store.Reactivate(ctx, existing.ID, token); err != nil {
			return nil, err
		}
	}

	s.logger.Info("newsletter subscription recorded",
		zap.String("email", email), zap.String("outcome", string(outcome)))

	s.notifier.NotifySubscription(ctx, SubscriptionNotice{
		Email:       email,
		Token:       token,
		Origin:      req.Origin,
		UserAgent:   req.UserAgent,
		Reactivated: outcome == OutcomeReactivated,
	})

	return &SubscribeResult{
		Message:           MessageSubscribed,
		VerificationToken: token,
		Outcome:           outcome,
	}, nil
}

// reload fetches the row that won a concurrent insert for email.
func (s *Service) reload(ctx context.Context, email string) (*Subscriber, error) {
	s.logger.Debug("concurrent subscribe detected", zap.String("email", email))
	sub, err := s.store.FindByEmail(ctx, email)
	if err == nil && sub == nil {
		err = fmt.Errorf("subscriber %s missing after duplicate insert", email)
	}
	return sub, err
}

// Verify consumes a verification token. Tokens are cleared on success, so
// replaying one afterwards reports ErrNotFound.
func (s *Service) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, invalidInput("Verification token required")
	}

	sub, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, notFound("Invalid or expired verification token")
	}

	if sub.Verified {
		return &VerifyResult{Message: MessageAlreadyVerified, Email: sub.Email}, nil
	}

	swapped, err := s.store.MarkVerified(ctx, sub.ID, token)
	if err != nil {
		return nil, err
	}
	if !swapped {
		s.logger.Info("verification token changed during verify", zap.String("email", sub.Email))
		return nil, notFound("Invalid or expired verification token")
	}

	s.logger.Info("newsletter subscriber verified", zap.String("email", sub.Email))
	return &VerifyResult{Message: MessageVerified, Email: sub.Email}, nil
}

// Unsubscribe resolves the subscriber by token when one is given, else by email.
func (s *Service) Unsubscribe(ctx context.Context, email, token string) (*UnsubscribeResult, error) {
	email = strings.TrimSpace(email)
	token = strings.TrimSpace(token)
	if email == "" && token == "" {
		return nil, invalidInput("Email or token required")
	}

	var (
		sub *Subscriber
		err error
	)
	if token != "" {
		sub, err = s.store.FindByToken(ctx, token)
	} else {
		sub, err = s.store.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, notFound("Subscriber not found")
	}

	if sub.SubscriptionStatus {
		if err := s.store.SetSubscriptionStatus(ctx, sub.ID, false); err != nil {
			return nil, err
		}
		s.logger.Info("newsletter subscriber unsubscribed", zap.String("email", sub.Email))
	}

	return &UnsubscribeResult{Message: MessageUnsubscribed, Email: sub.Email}, nil
}

func (s *Service) List(ctx context.Context) ([]Subscriber, error) {
	subs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subs, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscriber stats: %w", err)
	}
	return stats, nil
}
