package pipeline

import (
	"net/mail"
	"strings"

	transport "github.com/nhle/mail-assistant/internal/mail"
	"github.com/nhle/mail-assistant/internal/model"
)

// Normalize converts a raw transport message into a canonical
// InboundItem. It is pure: no side effects, and missing fields default
// to sentinel values instead of failing.
func Normalize(raw *transport.RawMessage) model.InboundItem {
	sender := raw.Headers["From"]
	if sender == "" {
		sender = "Unknown"
	}

	subject := raw.Headers["Subject"]
	if subject == "" {
		subject = model.NoSubject
	}

	body := raw.Snippet
	if body == "" {
		body = model.NoContent
	}

	return model.InboundItem{
		Sender:          sender,
		SenderKey:       model.DeriveKey(sender),
		Subject:         subject,
		Body:            body,
		ThreadID:        raw.ThreadID,
		SourceMessageID: SourceID(raw),
	}
}

// SourceID returns the idempotency key for a fetched message: the
// Message-ID header when present (stable across mailbox renumbering),
// otherwise the transport UID.
func SourceID(raw *transport.RawMessage) string {
	if id := raw.Headers["Message-Id"]; id != "" {
		return id
	}
	return "uid-" + raw.ID
}

// replyAddress extracts the bare addr-spec from a From header value so
// the reply is addressed to "a@x.com" rather than "Alice <a@x.com>".
func replyAddress(sender string) string {
	if addr, err := mail.ParseAddress(strings.TrimSpace(sender)); err == nil {
		return addr.Address
	}
	return sender
}
