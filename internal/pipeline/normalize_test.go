package pipeline

import (
	"testing"

	transport "github.com/nhle/mail-assistant/internal/mail"
	"github.com/nhle/mail-assistant/internal/model"
)

func TestNormalize_FullMessage(t *testing.T) {
	raw := &transport.RawMessage{
		ID: "42",
		Headers: map[string]string{
			"From":       "Alice <alice@example.com>",
			"Subject":    "Meeting?",
			"Message-Id": "abc@mail.example.com",
		},
		Snippet:  "Free Tuesday 3pm?",
		ThreadID: "abc@mail.example.com",
	}

	item := Normalize(raw)

	if item.Sender != "Alice <alice@example.com>" {
		t.Errorf("Sender = %q", item.Sender)
	}
	if item.SenderKey != model.DeriveKey("alice@example.com") {
		t.Errorf("SenderKey = %q", item.SenderKey)
	}
	if item.Subject != "Meeting?" {
		t.Errorf("Subject = %q", item.Subject)
	}
	if item.Body != "Free Tuesday 3pm?" {
		t.Errorf("Body = %q", item.Body)
	}
	if item.ThreadID != "abc@mail.example.com" {
		t.Errorf("ThreadID = %q", item.ThreadID)
	}
	if item.SourceMessageID != "abc@mail.example.com" {
		t.Errorf("SourceMessageID = %q", item.SourceMessageID)
	}
}

func TestNormalize_SentinelDefaults(t *testing.T) {
	raw := &transport.RawMessage{
		ID:      "7",
		Headers: map[string]string{"From": "a@x.com"},
	}

	item := Normalize(raw)

	if item.Subject != model.NoSubject {
		t.Errorf("Subject = %q, want %q", item.Subject, model.NoSubject)
	}
	if item.Body != model.NoContent {
		t.Errorf("Body = %q, want %q", item.Body, model.NoContent)
	}
}

func TestSourceID_FallsBackToUID(t *testing.T) {
	raw := &transport.RawMessage{
		ID:      "99",
		Headers: map[string]string{},
	}
	if got := SourceID(raw); got != "uid-99" {
		t.Errorf("SourceID() = %q, want %q", got, "uid-99")
	}
}

func TestReplyAddress(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Alice <alice@example.com>", "alice@example.com"},
		{"a@x.com", "a@x.com"},
		{"not an address", "not an address"},
	}

	for _, c := range cases {
		if got := replyAddress(c.in); got != c.want {
			t.Errorf("replyAddress(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
