package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"safecircle/internal/config"
	"safecircle/pkg/logger"
)

// SMTPSender delivers mail through a single SMTP relay, upgrading to TLS when
// the server offers STARTTLS.
type SMTPSender struct {
	config      *config.SMTPConfig
	dialTimeout time.Duration
	now         func() time.Time
}

func NewSMTPSender(cfg *config.SMTPConfig) *SMTPSender {
	return &SMTPSender{config: cfg, dialTimeout: 30 * time.Second, now: time.Now}
}

func (s *SMTPSender) SendEmail(ctx context.Context, message *Message) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.config.Username != "" && s.config.Password != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(message.To); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(s.build(message))); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	return client.Quit()
}

func (s *SMTPSender) build(message *Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.config.FromName, s.config.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", message.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", message.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(message.TextBody, "\n", "\r\n"))
	return b.String()
}

// LogSender only logs outgoing mail. Used when SMTP is disabled.
type LogSender struct {
	logger *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) SendEmail(ctx context.Context, message *Message) error {
	s.logger.WithFields(map[string]interface{}{
		"to":      message.To,
		"subject": message.Subject,
	}).Info("Email delivery disabled, message logged")
	return nil
}

// NewSender picks the SMTP relay or the logging sender from config.
func NewSender(cfg *config.SMTPConfig, log *logger.Logger) Sender {
	if cfg.Disabled {
		return NewLogSender(log)
	}
	return NewSMTPSender(cfg)
}
