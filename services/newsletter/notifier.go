package newsletter

import (
	"context"
	"html/template"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/clientinfo"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/mail"
	"go.uber.org/zap"
)

const (
	TemplateVerification      = "subscriber_verification"
	TemplateAdminSubscription = "admin_subscription"
	TemplateBroadcast         = "broadcast"

	timestampLayout = "2 January 2006 at 15:04:05"
)

// Mailer sends one templated email. *mail.Service satisfies it.
type Mailer interface {
	SendMessage(ctx context.Context, msg mail.Message) error
}

// SubscriptionNotice describes a subscribe call that issued a new token.
type SubscriptionNotice struct {
	Email       string
	Token       string
	Origin      string
	UserAgent   string
	Reactivated bool
}

// BroadcastEmail is one recipient's copy of a broadcast.
type BroadcastEmail struct {
	To             string
	Subject        string
	Content        string
	HTMLContent    string
	SenderName     string
	UnsubscribeURL string
}

// Notifier delivers the lifecycle emails. NotifySubscription never fails
// the caller; NotifyBroadcast reports the error so it can be shown per recipient.
type Notifier interface {
	NotifySubscription(ctx context.Context, notice SubscriptionNotice)
	NotifyBroadcast(ctx context.Context, email BroadcastEmail) error
}

type MailNotifier struct {
	mailer   Mailer
	config   *config.Config
	location *time.Location
	logger   *logging.Service
	now      func() time.Time
}

func NewMailNotifier(mailer Mailer, cfg *config.Config, logger *logging.Service) *MailNotifier {
	loc, err := time.LoadLocation(cfg.Newsletter.TimeZone)
	if err != nil {
		logger.Warn("unknown newsletter time zone, using UTC",
			zap.String("time_zone", cfg.Newsletter.TimeZone), zap.Error(err))
		loc = time.UTC
	}

	return &MailNotifier{
		mailer:   mailer,
		config:   cfg,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

func (n *MailNotifier) NotifySubscription(ctx context.Context, notice SubscriptionNotice) {
	origin := n.origin(notice.Origin)
	timestamp := n.now().In(n.location).Format(timestampLayout)
	senderName := n.config.Newsletter.DefaultSenderName

	verification := mail.Message{
		To:       []string{notice.Email},
		Subject:  "Please verify your email subscription - " + senderName,
		Template: TemplateVerification,
		Data: map[string]any{
			"Title":           "Please verify your email subscription",
			"Name":            localPart(notice.Email),
			"AppName":         senderName,
			"SenderName":      senderName,
			"VerificationURL": VerificationURL(origin, notice.Token),
			"Time":            timestamp,
		},
	}
	if err := n.mailer.SendMessage(ctx, verification); err != nil {
		n.logger.Error("failed to send verification email",
			zap.String("email", notice.Email), zap.Error(err))
	}

	if n.config.Newsletter.NotifyAddress == "" {
		return
	}

	subscriptionType := "New Subscription"
	if notice.Reactivated {
		subscriptionType = "Reactivated Subscription"
	}

	admin := mail.Message{
		To:       []string{n.config.Newsletter.NotifyAddress},
		Subject:  "New Newsletter Subscription - Admin Notification",
		Template: TemplateAdminSubscription,
		Data: map[string]any{
			"SubscriberEmail":    notice.Email,
			"SubscriptionType":   subscriptionType,
			"VerificationStatus": "Pending Verification",
			"Timestamp":          timestamp,
			"Client":             clientinfo.Describe(notice.UserAgent),
			"AdminDashboardURL":  origin + "/blog",
		},
	}
	if err := n.mailer.SendMessage(ctx, admin); err != nil {
		n.logger.Error("failed to send admin subscription notification",
			zap.String("email", notice.Email), zap.Error(err))
	}
}

func (n *MailNotifier) NotifyBroadcast(ctx context.Context, email BroadcastEmail) error {
	htmlContent := email.HTMLContent
	if htmlContent == "" {
		htmlContent = template.HTMLEscapeString(email.Content)
	}

	return n.mailer.SendMessage(ctx, mail.Message{
		To:       []string{email.To},
		Subject:  email.Subject,
		Template: TemplateBroadcast,
		FromName: email.SenderName,
		Data: map[string]any{
			"Content": email.Content,
			// Broadcast HTML is authored by the authenticated admin.
			"HTMLContent":    template.HTML(htmlContent),
			"SenderName":     email.SenderName,
			"UnsubscribeURL": email.UnsubscribeURL,
		},
	})
}

func (n *MailNotifier) origin(origin string) string {
	if origin == "" {
		origin = n.config.Newsletter.SiteURL
	}
	return strings.TrimRight(origin, "/")
}

func VerificationURL(origin, token string) string {
	return strings.TrimRight(origin, "/") + "/verify-email?token=" + token
}

func UnsubscribeURL(origin, token string) string {
	return strings.TrimRight(origin, "/") + "/unsubscribe?token=" + token
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
