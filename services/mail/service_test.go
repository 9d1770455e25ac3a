package mail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbridge/auth/config"
	"github.com/wneessen/go-mail"
)

type mockMailClient struct {
	sendFunc func(messages ...*mail.Msg) error
	sent     []*mail.Msg
}

func (m *mockMailClient) DialAndSend(messages ...*mail.Msg) error {
	m.sent = append(m.sent, messages...)
	if m.sendFunc != nil {
		return m.sendFunc(messages...)
	}
	return nil
}

func testMailConfig() *config.MailConfig {
	return &config.MailConfig{
		Host:        "localhost",
		Port:        587,
		Encryption:  "none",
		FromAddress: "security@trustbridge.example",
		FromName:    "TrustBridge Security",
	}
}

func TestNewService(t *testing.T) {
	t.Run("requires a from address", func(t *testing.T) {
		cfg := testMailConfig()
		cfg.FromAddress = ""

		_, err := NewService(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("creates a client", func(t *testing.T) {
		svc, err := NewService(testMailConfig(), nil)
		require.NoError(t, err)
		assert.NotNil(t, svc.client)
	})
}

func TestSendSecurityAlert(t *testing.T) {
	t.Run("delivers the message", func(t *testing.T) {
		client := &mockMailClient{}
		svc := &Service{config: testMailConfig(), client: client}

		err := svc.SendSecurityAlert("alice@example.com", "Suspicious refresh attempt", "A previously used session token was presented.")
		require.NoError(t, err)
		require.Len(t, client.sent, 1)
		assert.Equal(t, "Suspicious refresh attempt", client.sent[0].GetGenHeader(mail.HeaderSubject)[0])
	})

	t.Run("propagates delivery errors", func(t *testing.T) {
		client := &mockMailClient{
			sendFunc: func(...*mail.Msg) error { return errors.New("connection refused") },
		}
		svc := &Service{config: testMailConfig(), client: client}

		err := svc.SendSecurityAlert("alice@example.com", "subject", "body")
		assert.Error(t, err)
	})
}

func TestNopMailer(t *testing.T) {
	assert.NoError(t, NopMailer{}.SendSecurityAlert("a@example.com", "s", "b"))
}
