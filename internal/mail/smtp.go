package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/nhle/mail-assistant/internal/model"
)

// SMTPConfig holds the SMTP server settings for sending replies.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}

// Send composes the draft as a threaded plain-text reply and submits
// it over SMTP.
func (c *Client) Send(_ context.Context, draft model.ReplyDraft) error {
	body := composeReply(c.username, draft)
	addr := c.smtp.Host + ":" + c.smtp.Port

	if c.smtp.TLS {
		return sendSMTPWithTLS(addr, c.smtp, c.username, draft.To, body)
	}
	return sendSMTPWithStartTLS(addr, c.smtp, c.username, draft.To, body)
}

// composeReply renders a ReplyDraft as an RFC 5322 message. The
// In-Reply-To and References headers carry the original Message-ID so
// the reply lands in the original thread.
func composeReply(from string, draft model.ReplyDraft) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", draft.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", draft.Subject))
	if draft.ThreadID != "" {
		msg.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", draft.ThreadID))
		msg.WriteString(fmt.Sprintf("References: <%s>\r\n", draft.ThreadID))
	}
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(draft.Body)
	return msg.String()
}

// sendSMTPWithTLS sends an email over an implicit TLS connection.
func sendSMTPWithTLS(
	addr string, cfg SMTPConfig,
	from, to, body string,
) error {
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return &TransientError{
			Op:  "send",
			Err: fmt.Errorf("TLS dial to %s: %w", addr, err),
		}
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &AuthError{
			Message: fmt.Sprintf("SMTP auth for %s: %v", cfg.Username, err),
		}
	}

	return sendMailViaSMTPClient(client, from, to, body)
}

// sendSMTPWithStartTLS sends an email using STARTTLS.
func sendSMTPWithStartTLS(
	addr string, cfg SMTPConfig,
	from, to, body string,
) error {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return &TransientError{
			Op:  "send",
			Err: fmt.Errorf("dial to %s: %w", addr, err),
		}
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &AuthError{
			Message: fmt.Sprintf("SMTP auth for %s: %v", cfg.Username, err),
		}
	}

	return sendMailViaSMTPClient(client, from, to, body)
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(
	client *smtp.Client, from, to, body string,
) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
