package mail

import (
	"fmt"
	"time"

	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// MailClient abstracts the SMTP client so tests can stub delivery.
type MailClient interface {
	DialAndSend(messages ...*mail.Msg) error
}

// Service sends security alert mail. It is only constructed when mail is
// enabled; callers hold a Mailer and get a no-op otherwise.
type Service struct {
	config *config.MailConfig
	client MailClient
	logger *logging.Service
}

type Mailer interface {
	SendSecurityAlert(to, subject, body string) error
}

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.Port),
	}
	switch cfg.Encryption {
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username))
	}
	if cfg.Password != "" {
		clientOpts = append(clientOpts, mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	logger.Info("mail service initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port))

	return &Service{config: cfg, client: client, logger: logger}, nil
}

func (s *Service) SendSecurityAlert(to, subject, body string) error {
	message := mail.NewMsg()

	from := s.config.FromAddress
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}
	if err := message.From(from); err != nil {
		return fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, body)

	start := time.Now()
	if err := s.client.DialAndSend(message); err != nil {
		s.logger.Error("failed to send security alert",
			zap.Error(err),
			zap.Duration("attempt_duration", time.Since(start)))
		return err
	}

	s.logger.Info("security alert sent",
		zap.String("subject", subject),
		zap.Duration("send_duration", time.Since(start)))
	return nil
}

// NopMailer satisfies Mailer when mail delivery is disabled.
type NopMailer struct{}

func (NopMailer) SendSecurityAlert(string, string, string) error { return nil }
