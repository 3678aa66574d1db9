package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"hris/internal/platform/config"
)

const dialTimeout = 10 * time.Second

// Message is one plain-text notification to a single recipient.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Sender delivers notification messages.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// New returns an SMTP sender, or one that only logs when email is disabled or
// no host is configured.
func New(cfg config.Config) Sender {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return logSender{}
	}
	return &smtpSender{
		host:     cfg.SMTPHost,
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		startTLS: cfg.SMTPUseTLS,
	}
}

type logSender struct{}

func (logSender) Deliver(_ context.Context, msg Message) error {
	slog.Debug("email delivery disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

type smtpSender struct {
	host     string
	addr     string
	user     string
	password string
	startTLS bool
}

func (s *smtpSender) Deliver(ctx context.Context, msg Message) error {
	from, to, err := msg.envelope()
	if err != nil {
		return err
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", s.addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.startTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.user != "" {
		if err := client.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
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
	if _, err := w.Write(msg.encode(time.Now())); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// envelope returns the bare sender and recipient addresses.
func (m Message) envelope() (string, string, error) {
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return "", "", fmt.Errorf("email from %q: %w", m.From, err)
	}
	to, err := mail.ParseAddress(m.To)
	if err != nil {
		return "", "", fmt.Errorf("email to %q: %w", m.To, err)
	}
	return from.Address, to.Address, nil
}

func (m Message) encode(at time.Time) []byte {
	var b strings.Builder
	header := func(name, value string) {
		b.WriteString(name + ": " + oneLine(value) + "\r\n")
	}
	header("From", m.From)
	header("To", m.To)
	header("Subject", m.Subject)
	header("Date", at.UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

func oneLine(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
