package contact

import (
	"context"
	"errors"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/clientinfo"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/hapogroup/newsletter/services/mail"
	"github.com/hapogroup/newsletter/services/newsletter"
	"go.uber.org/zap"
)

const (
	TemplateContactRequest = "contact_request"

	MessageReceived = "Thank you! Your request has been sent to our team."
	notProvided     = "Not provided"
	maxFieldLength  = 2000
)

// ErrInvalidInput is the kind of every validation failure below.
var ErrInvalidInput = errors.New("invalid contact request")

var (
	ErrRequestTypeRequired error = inputError("Request type is required")
	ErrInvalidEmail        error = inputError("Invalid email format")
	ErrFieldTooLong        error = inputError("One or more fields are too long")
)

type inputError string

func (e inputError) Error() string { return string(e) }

func (e inputError) Unwrap() error { return ErrInvalidInput }

// Request is a contact form or chatbot lead. Only RequestType is mandatory.
type Request struct {
	RequestType          string `json:"request_type"`
	UserName             string `json:"user_name,omitempty"`
	UserEmail            string `json:"user_email,omitempty"`
	UserLocation         string `json:"user_location,omitempty"`
	BusinessType         string `json:"business_type,omitempty"`
	ProductsServices     string `json:"products_services,omitempty"`
	InstallationTimeline string `json:"installation_timeline,omitempty"`
	UserQuestion         string `json:"user_question,omitempty"`
}

type Result struct {
	Message   string `json:"message"`
	Delivered bool   `json:"delivered"`
}

type Service struct {
	mailer   newsletter.Mailer
	config   *config.Config
	location *time.Location
	logger   *logging.Service
	now      func() time.Time
}

func NewService(mailer newsletter.Mailer, cfg *config.Config, logger *logging.Service) *Service {
	loc, err := time.LoadLocation(cfg.Newsletter.TimeZone)
	if err != nil {
		logger.Warn("unknown time zone, using UTC",
			zap.String("time_zone", cfg.Newsletter.TimeZone), zap.Error(err))
		loc = time.UTC
	}
	return &Service{
		mailer:   mailer,
		config:   cfg,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *Request) normalize() {
	for _, field := range []*string{
		&r.RequestType, &r.UserName, &r.UserEmail, &r.UserLocation,
		&r.BusinessType, &r.ProductsServices, &r.InstallationTimeline, &r.UserQuestion,
	} {
		*field = strings.TrimSpace(*field)
	}
}

func (r *Request) validate() error {
	if r.RequestType == "" {
		return ErrRequestTypeRequired
	}
	if r.UserEmail != "" && !newsletter.ValidateEmail(r.UserEmail) {
		return ErrInvalidEmail
	}
	for _, field := range []string{r.RequestType, r.UserName, r.UserLocation, r.BusinessType, r.ProductsServices, r.InstallationTimeline, r.UserQuestion} {
		if len(field) > maxFieldLength {
			return ErrFieldTooLong
		}
	}
	return nil
}

// Relay forwards a lead to the admin inbox. Delivery is best effort: a mail
// failure is logged and reported through Result.Delivered only.
func (s *Service) Relay(ctx context.Context, req Request, userAgent string) (*Result, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	msg := mail.Message{
		To:       []string{s.config.Newsletter.NotifyAddress},
		Subject:  req.RequestType + " - " + s.config.App.Name,
		Template: TemplateContactRequest,
		Data: map[string]any{
			"RequestType":          req.RequestType,
			"UserName":             orNotProvided(req.UserName),
			"UserEmail":            orNotProvided(req.UserEmail),
			"UserLocation":         orNotProvided(req.UserLocation),
			"BusinessType":         orNotProvided(req.BusinessType),
			"ProductsServices":     orNotProvided(req.ProductsServices),
			"InstallationTimeline": orNotProvided(req.InstallationTimeline),
			"UserQuestion":         orNotProvided(req.UserQuestion),
			"Timestamp":            s.now().In(s.location).Format("2 January 2006 at 15:04:05"),
			"Client":               clientinfo.Describe(userAgent),
		},
	}

	if err := s.mailer.SendMessage(ctx, msg); err != nil {
		s.logger.Error("failed to relay contact request",
			zap.String("request_type", req.RequestType), zap.Error(err))
		return &Result{Message: MessageReceived, Delivered: false}, nil
	}

	s.logger.Info("contact request relayed", zap.String("request_type", req.RequestType))
	return &Result{Message: MessageReceived, Delivered: true}, nil
}

func orNotProvided(value string) string {
	if value == "" {
		return notProvided
	}
	return value
}
