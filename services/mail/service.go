package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmlTemplate "html/template"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/hapogroup/newsletter/config"
	"github.com/hapogroup/newsletter/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.html templates/*.txt
var defaultTemplates embed.FS

// Client is the part of *mail.Client the service needs.
type Client interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config        *config.MailConfig
	client        Client
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

// Message is a templated email. FromName overrides the configured display name.
type Message struct {
	To       []string
	Subject  string
	Template string
	Data     map[string]any
	FromName string
}

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client Client) (*Service, error) {
	if cfg.FromAddress == "" {
		logger.Error("mail service initialization failed: FROM_ADDRESS is required")
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config: cfg,
		client: client,
		logger: logger,
	}

	if err := service.loadTemplates(); err != nil {
		logger.Error("failed to load mail templates", zap.Error(err))
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	logger.Info("mail service initialized successfully")
	return service, nil
}

// loadTemplates parses the embedded defaults, then lets files in
// TemplatesDir replace or extend them by name.
func (s *Service) loadTemplates() error {
	var err error
	s.htmlTemplates, err = htmlTemplate.ParseFS(defaultTemplates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse embedded HTML templates: %w", err)
	}
	s.textTemplates, err = textTemplate.ParseFS(defaultTemplates, "templates/*.txt")
	if err != nil {
		return fmt.Errorf("failed to parse embedded text templates: %w", err)
	}

	if s.config.TemplatesDir == "" {
		return nil
	}

	s.logger.Info("loading mail template overrides", zap.String("templates_dir", s.config.TemplatesDir))

	htmlFiles, err := filepath.Glob(filepath.Join(s.config.TemplatesDir, "*.html"))
	if err != nil {
		return err
	}
	if len(htmlFiles) > 0 {
		if _, err := s.htmlTemplates.ParseFiles(htmlFiles...); err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
	}

	textFiles, err := filepath.Glob(filepath.Join(s.config.TemplatesDir, "*.txt"))
	if err != nil {
		return err
	}
	if len(textFiles) > 0 {
		if _, err := s.textTemplates.ParseFiles(textFiles...); err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
	}

	s.logger.Info("mail template overrides loaded",
		zap.Int("html_templates", len(htmlFiles)),
		zap.Int("text_templates", len(textFiles)))

	return nil
}

func (s *Service) NewMessage(fromName string) (*mail.Msg, error) {
	message := mail.NewMsg()

	if fromName == "" {
		fromName = s.config.FromName
	}

	var err error
	if fromName != "" {
		err = message.FromFormat(fromName, s.config.FromAddress)
	} else {
		err = message.From(s.config.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	return message, nil
}

func (s *Service) Send(ctx context.Context, message *mail.Msg) error {
	startTime := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Debug("email sent", zap.Duration("send_duration", duration))
	return nil
}

func (s *Service) SendMessage(ctx context.Context, m Message) error {
	s.logger.Info("sending template email",
		zap.String("template", m.Template),
		zap.Int("recipients", len(m.To)),
		zap.String("subject", m.Subject))

	message, err := s.NewMessage(m.FromName)
	if err != nil {
		return err
	}

	if err := message.To(m.To...); err != nil {
		s.logger.Warn("failed to set TO addresses", zap.Error(err), zap.Strings("recipients", m.To))
		return fmt.Errorf("failed to set TO addresses: %w", err)
	}

	message.Subject(m.Subject)

	if err := s.renderTemplate(m.Template, m.Data, message); err != nil {
		s.logger.Error("failed to render template", zap.Error(err), zap.String("template", m.Template))
		return fmt.Errorf("failed to render template: %w", err)
	}

	return s.Send(ctx, message)
}

// renderTemplate sets the HTML part when one exists and adds the text part
// as alternative, or as the only body when there is no HTML version.
func (s *Service) renderTemplate(templateName string, data map[string]any, message *mail.Msg) error {
	var hasHTML, hasText bool

	if tmpl := s.htmlTemplates.Lookup(templateName + ".html"); tmpl != nil {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute HTML template: %w", err)
		}
		message.SetBodyString(mail.TypeTextHTML, buf.String())
		hasHTML = true
	}

	if tmpl := s.textTemplates.Lookup(templateName + ".txt"); tmpl != nil {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute text template: %w", err)
		}
		if hasHTML {
			message.AddAlternativeString(mail.TypeTextPlain, buf.String())
		} else {
			message.SetBodyString(mail.TypeTextPlain, buf.String())
		}
		hasText = true
	}

	if !hasHTML && !hasText {
		return fmt.Errorf("template '%s' not found", templateName)
	}

	return nil
}
