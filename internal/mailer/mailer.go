package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type SendGridConfig struct {
	APIKey string
	From   string
}

// SendGrid sends mail through the SendGrid v3 API.
type SendGrid struct {
	client  *sendgrid.Client
	from    *mail.Email
	timeout time.Duration
}

func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" || cfg.From == "" {
		return nil, errors.New("mailer: sendgrid api key and sender are required")
	}
	return &SendGrid{
		client:  sendgrid.NewSendClient(cfg.APIKey),
		from:    mail.NewEmail("Collab", cfg.From),
		timeout: 10 * time.Second,
	}, nil
}

func (s *SendGrid) SendPasswordReset(ctx context.Context, to, link string) error {
	subject, plain, html := passwordResetContent(link)
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), plain, html)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailer: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

func passwordResetContent(link string) (subject, plain, html string) {
	subject = "Reset your password"
	plain = fmt.Sprintf("Use the link below to reset your password. It expires in 24 hours.\n\n%s\n", link)
	html = fmt.Sprintf(`<p>Use the link below to reset your password. It expires in 24 hours.</p><p><a href="%s">Reset password</a></p>`, link)
	return subject, plain, html
}

// Log writes mail to the logger instead of sending it. Used when no API key is configured.
type Log struct {
	L *slog.Logger
}

func (m Log) SendPasswordReset(ctx context.Context, to, link string) error {
	l := m.L
	if l == nil {
		l = slog.Default()
	}
	// The link carries a live token; only the recipient is logged.
	l.InfoContext(ctx, "password reset mail suppressed (no mail provider configured)", "to", to)
	return nil
}

// Message is one captured mail.
type Message struct {
	To   string
	Link string
}

// Recorder captures mail in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message

	Err error
}

func (r *Recorder) SendPasswordReset(ctx context.Context, to, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, Message{To: to, Link: link})
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}
