package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Email sends notifications as plain-text mail through an SMTP relay.
//
// Create instances with [NewEmail]. Authentication is optional; when a
// username is set, PLAIN auth is used.
type Email struct {
	host     string
	port     int
	from     string
	to       []string
	subject  string
	username string
	password string
}

// EmailOption configures an [Email] sender during construction.
type EmailOption func(*Email)

// WithEmailAuth enables SMTP PLAIN authentication.
func WithEmailAuth(username, password string) EmailOption {
	return func(e *Email) {
		e.username = username
		e.password = password
	}
}

// WithEmailSubject overrides the mail subject. Defaults to "Stakeout Alert".
func WithEmailSubject(subject string) EmailOption {
	return func(e *Email) {
		e.subject = subject
	}
}

// NewEmail creates an [Email] sender.
//
// host and port identify the SMTP relay; from is the envelope sender and to
// the recipient list. Returns an error if any of them is missing.
func NewEmail(host string, port int, from string, to []string, opts ...EmailOption) (*Email, error) {
	if host == "" {
		return nil, errors.New("smtp host cannot be empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("smtp port must be between 1 and 65535, got %d", port)
	}
	if from == "" {
		return nil, errors.New("from address cannot be empty")
	}
	if len(to) == 0 {
		return nil, errors.New("at least one recipient is required")
	}

	e := &Email{
		host:    host,
		port:    port,
		from:    from,
		to:      to,
		subject: "Stakeout Alert",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Name implements stakeout.Sender.
func (e *Email) Name() string {
	return "email"
}

// Send implements stakeout.Sender by submitting one plain-text message to
// the relay. Connection and protocol failures are transient; the dispatcher
// may retry them.
func (e *Email) Send(ctx context.Context, message string) error {
	addr := net.JoinHostPort(e.host, fmt.Sprintf("%d", e.port))

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	body := e.buildMessage(message)

	// net/smtp has no context support; run it in a goroutine and abandon
	// the attempt if the context expires first
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.from, e.to, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildMessage renders the RFC 5322 message bytes.
func (e *Email) buildMessage(message string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", e.subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(message)
	b.WriteString("\r\n")
	return []byte(b.String())
}
