package mail

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hapogroup/newsletter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type MockMailClient struct {
	sendFunc func(msg *mail.Msg) error
	sent     []*mail.Msg
}

func (m *MockMailClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	m.sent = append(m.sent, messages...)
	if m.sendFunc != nil {
		return m.sendFunc(messages[0])
	}
	return nil
}

func getTestMailConfig() *config.MailConfig {
	return &config.MailConfig{
		Host:        "localhost",
		Port:        587,
		Encryption:  "tls",
		FromAddress: "newsletter@example.com",
		FromName:    "Test App",
	}
}

func rawMessage(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestNewServiceWithClient(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		cfg := getTestMailConfig()
		client := &MockMailClient{}

		service, err := NewServiceWithClient(cfg, nil, client)

		require.NoError(t, err)
		assert.Equal(t, cfg, service.config)
		assert.Equal(t, client, service.client)
		assert.NotNil(t, service.htmlTemplates.Lookup("broadcast.html"))
		assert.NotNil(t, service.textTemplates.Lookup("contact_request.txt"))
	})

	t.Run("missing from address", func(t *testing.T) {
		cfg := getTestMailConfig()
		cfg.FromAddress = ""

		service, err := NewServiceWithClient(cfg, nil, &MockMailClient{})

		require.Error(t, err)
		assert.Nil(t, service)
		assert.Contains(t, err.Error(), "MAIL_FROM_ADDRESS is required")
	})

	t.Run("templates directory overrides embedded templates", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "broadcast.txt"), []byte("custom {{.Content}}"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.txt"), []byte("welcome {{.Name}}"), 0o644))

		cfg := getTestMailConfig()
		cfg.TemplatesDir = dir

		service, err := NewServiceWithClient(cfg, nil, &MockMailClient{})

		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, service.textTemplates.ExecuteTemplate(&buf, "broadcast.txt", map[string]any{"Content": "body"}))
		assert.Equal(t, "custom body", buf.String())
		assert.NotNil(t, service.textTemplates.Lookup("welcome.txt"))
	})
}

func TestService_NewMessage(t *testing.T) {
	service, err := NewServiceWithClient(getTestMailConfig(), nil, &MockMailClient{})
	require.NoError(t, err)

	t.Run("uses configured from name", func(t *testing.T) {
		msg, err := service.NewMessage("")

		require.NoError(t, err)
		from := msg.GetFromString()
		require.Len(t, from, 1)
		assert.Contains(t, from[0], "Test App")
		assert.Contains(t, from[0], "newsletter@example.com")
	})

	t.Run("overrides from name", func(t *testing.T) {
		msg, err := service.NewMessage("Hapo Group")

		require.NoError(t, err)
		from := msg.GetFromString()
		require.Len(t, from, 1)
		assert.Contains(t, from[0], "Hapo Group")
	})
}

func TestService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("renders html and text parts", func(t *testing.T) {
		client := &MockMailClient{}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendMessage(ctx, Message{
			To:       []string{"reader@example.com"},
			Subject:  "Monthly update",
			Template: "broadcast",
			Data: map[string]any{
				"Content":        "Plain body",
				"HTMLContent":    "<p>Rich body</p>",
				"SenderName":     "Hapo Group",
				"UnsubscribeURL": "https://hapogroup.co.za/unsubscribe",
			},
		})

		require.NoError(t, err)
		require.Len(t, client.sent, 1)
		raw := rawMessage(t, client.sent[0])
		assert.Contains(t, raw, "Monthly update")
		assert.Contains(t, raw, "reader@example.com")
		assert.Contains(t, raw, "Plain body")
		assert.Contains(t, raw, "text/html")
		assert.Contains(t, raw, "text/plain")
	})

	t.Run("text only template", func(t *testing.T) {
		client := &MockMailClient{}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendMessage(ctx, Message{
			To:       []string{"admin@example.com"},
			Subject:  "New subscriber",
			Template: "admin_subscription",
			Data:     map[string]any{"SubscriberEmail": "reader@example.com"},
		})

		require.NoError(t, err)
		require.Len(t, client.sent, 1)
		raw := rawMessage(t, client.sent[0])
		assert.Contains(t, raw, "text/plain")
		assert.NotContains(t, raw, "text/html")
	})

	t.Run("template not found", func(t *testing.T) {
		client := &MockMailClient{}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendMessage(ctx, Message{To: []string{"reader@example.com"}, Subject: "Subject", Template: "nonexistent"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "template 'nonexistent' not found")
		assert.Empty(t, client.sent)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		client := &MockMailClient{}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendMessage(ctx, Message{To: []string{"not an address"}, Subject: "Subject", Template: "broadcast"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to set TO addresses")
		assert.Empty(t, client.sent)
	})

	t.Run("client error is returned", func(t *testing.T) {
		client := &MockMailClient{sendFunc: func(*mail.Msg) error { return errors.New("smtp down") }}
		service, err := NewServiceWithClient(getTestMailConfig(), nil, client)
		require.NoError(t, err)

		err = service.SendMessage(ctx, Message{To: []string{"admin@example.com"}, Subject: "Lead", Template: "contact_request", Data: map[string]any{}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "smtp down")
	})
}
