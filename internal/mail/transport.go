package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-autoclose/internal/config"
	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// Transport delivers a single notification message.
type Transport interface {
	Send(ctx context.Context, msg domain.NotificationMessage) error
}

// SMTPTransport relays messages through an SMTP server.
type SMTPTransport struct {
	cfg  config.SMTPConfig
	from string
}

// NewSMTPTransport builds a transport for the configured relay.
func NewSMTPTransport(cfg config.SMTPConfig, from string) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, from: from}
}

// Send writes a plain-text message to the relay. It does not retry. The
// whole SMTP session is bounded by ctx.
func (t *SMTPTransport) Send(ctx context.Context, msg domain.NotificationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := sanitizeHeader(msg.To)
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("invalid recipient %q", msg.To)
	}
	from := sanitizeHeader(t.from)
	if from == "" {
		return errors.New("sender address not configured")
	}

	if err := t.deliver(ctx, from, to, buildMessage(from, to, msg, time.Now())); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send: %w", errors.Join(ctxErr, err))
		}
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (t *SMTPTransport) deliver(ctx context.Context, from, to string, message []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.cfg.Addr())
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock any pending read or write once ctx ends
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
			return err
		}
	}
	if t.cfg.User != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("relay does not support AUTH")
		}
		if err := client.Auth(smtp.PlainAuth("", t.cfg.User, t.cfg.Password, t.cfg.Host)); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to string, msg domain.NotificationMessage, now time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return buf.Bytes()
}

// sanitizeHeader strips CR and LF so values cannot inject extra headers.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", "")
	v = strings.ReplaceAll(v, "\n", "")
	return strings.TrimSpace(v)
}

// LogTransport records messages instead of sending them. Used when no SMTP
// relay is configured.
type LogTransport struct {
	logger *zap.Logger
	from   string
}

// NewLogTransport creates the logging transport.
func NewLogTransport(logger *zap.Logger, from string) *LogTransport {
	return &LogTransport{logger: logger, from: from}
}

func (t *LogTransport) Send(_ context.Context, msg domain.NotificationMessage) error {
	t.logger.Debug("sendEmailNotificationStub",
		zap.String("from", t.from),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
