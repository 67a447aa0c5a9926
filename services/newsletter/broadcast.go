package newsletter

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DeliveryQueued = "queued"
	DeliveryFailed = "failed"
)

type BroadcastRequest struct {
	Subject     string
	Content     string
	HTMLContent string
	SenderName  string
	Origin      string
}

type DeliveryResult struct {
	Email  string `json:"email"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type BroadcastResult struct {
	Message          string           `json:"message"`
	TotalSubscribers int              `json:"total_subscribers"`
	EmailsQueued     int              `json:"emails_queued"`
	Results          []DeliveryResult `json:"results"`
}

// Broadcast sends one copy per active subscriber, each carrying a fresh
// unsubscribe token. A failed recipient is reported, never fatal to the batch.
func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error) {
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, invalidInput("Subject and content are required")
	}
	if req.HTMLContent == "" {
		req.HTMLContent = req.Content
	}
	if req.SenderName == "" {
		req.SenderName = s.config.DefaultSenderName
	}
	origin := req.Origin
	if origin == "" {
		origin = s.config.SiteURL
	}

	recipients, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return &BroadcastResult{Message: MessageNoSubscribers, Results: []DeliveryResult{}}, nil
	}

	results := make([]DeliveryResult, len(recipients))
	var queued atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(max(s.config.BroadcastConcurrency, 1))

	for i, sub := range recipients {
		g.Go(func() error {
			results[i] = s.deliver(ctx, sub, req, origin)
			if results[i].Status == DeliveryQueued {
				queued.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("newsletter broadcast finished",
		zap.String("subject", req.Subject),
		zap.Int("recipients", len(recipients)),
		zap.Int64("queued", queued.Load()))

	return &BroadcastResult{
		Message:          MessageBroadcastStarted,
		TotalSubscribers: len(recipients),
		EmailsQueued:     int(queued.Load()),
		Results:          results,
	}, nil
}

func (s *Service) deliver(ctx context.Context, sub Subscriber, req BroadcastRequest, origin string) DeliveryResult {
	result := DeliveryResult{Email: sub.Email, Status: DeliveryFailed}

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	token := s.tokens.NewToken()
	if err := s.store.SetToken(ctx, sub.ID, token); err != nil {
		s.logger.Error("failed to assign unsubscribe token", zap.String("email", sub.Email), zap.Error(err))
		result.Error = "failed to assign unsubscribe token"
		return result
	}

	err := s.notifier.NotifyBroadcast(ctx, BroadcastEmail{
		To:             sub.Email,
		Subject:        req.Subject,
		Content:        req.Content,
		HTMLContent:    req.HTMLContent,
		SenderName:     req.SenderName,
		UnsubscribeURL: UnsubscribeURL(origin, token),
	})
	if err != nil {
		s.logger.Warn("broadcast delivery failed", zap.String("email", sub.Email), zap.Error(err))
		result.Error = "failed to send email"
		return result
	}

	result.Status = DeliveryQueued
	return result
}
