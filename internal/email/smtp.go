package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"buildinghub_backend/internal/config"

	"go.uber.org/zap"
)

// SendResult tells how many recipients the server accepted.
type SendResult struct {
	Accepted int
}

// SMTPSender delivers HTML mail. Port 465 uses implicit TLS, any other port
// upgrades with STARTTLS when the server offers it.
type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string
	logger   *zap.Logger
}

func NewSMTPSender(cfg *config.Config, logger *zap.Logger) *SMTPSender {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     from,
		logger:   logger.Named("SMTPSender"),
	}
}

// Enabled reports whether an SMTP host is configured.
func (s *SMTPSender) Enabled() bool {
	return s.host != ""
}

// Send mails html to every address in to. Recipients are blind copied so
// tenants do not see each other's addresses. A sender without a host drops the
// message and returns no error.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject, html string) (SendResult, error) {
	if !s.Enabled() {
		s.logger.Debug("SMTP not configured, dropping e-mail", zap.String("subject", subject), zap.Int("recipients", len(to)))
		return SendResult{}, nil
	}
	if len(to) == 0 {
		return SendResult{}, nil
	}

	client, err := s.dial(ctx)
	if err != nil {
		return SendResult{}, err
	}
	defer client.Close()

	if s.username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return SendResult{}, fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return SendResult{}, fmt.Errorf("smtp MAIL FROM: %w", err)
	}

	accepted := 0
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			s.logger.Warn("Recipient rejected", zap.String("to", rcpt), zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return SendResult{}, fmt.Errorf("smtp: all %d recipients rejected", len(to))
	}

	w, err := client.Data()
	if err != nil {
		return SendResult{Accepted: accepted}, fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(buildMessage(s.from, subject, html, time.Now())); err != nil {
		return SendResult{Accepted: accepted}, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return SendResult{Accepted: accepted}, fmt.Errorf("smtp close data: %w", err)
	}
	if err := client.Quit(); err != nil {
		s.logger.Debug("SMTP QUIT failed", zap.Error(err))
	}
	return SendResult{Accepted: accepted}, nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, s.port)
	tlsConfig := &tls.Config{ServerName: s.host}

	var conn net.Conn
	var err error
	if s.port == "465" {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}, Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &net.Dialer{Timeout: 10 * time.Second}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if s.port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	return client, nil
}

func buildMessage(from, subject, html string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	b.WriteString("To: undisclosed-recipients:;\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(html, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}
