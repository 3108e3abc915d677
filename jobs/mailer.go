package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	Host string
	Port int
	From string
	Auth smtp.Auth

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds a mailer for host:port. Username may be empty for an
// unauthenticated relay such as Mailpit.
func NewSMTPMailer(host string, port int, from, username, password string) *SMTPMailer {
	m := &SMTPMailer{Host: host, Port: port, From: from, send: smtp.SendMail}
	if username != "" {
		m.Auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	if err := send(addr, m.Auth, m.From, []string{msg.To}, renderMessage(m.From, msg)); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

func renderMessage(from string, msg SendEmailPayload) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + strings.ReplaceAll(msg.Subject, "\n", " ") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogMailer struct {
	Logger *slog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, msg SendEmailPayload) error {
	loggerOrDefault(m.Logger).Info("email", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
