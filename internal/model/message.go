package model

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// CorrespondentKey is a store-safe identifier derived from an email address.
type CorrespondentKey string

// SelfKey is the reserved key under which the user's own sent messages
// are recorded.
const SelfKey CorrespondentKey = "self"

// Sentinel values substituted when an inbound message is missing a
// subject or body. The pipeline favors availability over strictness.
const (
	NoSubject = "No Subject"
	NoContent = "No Content"
)

var keyUnsafeChars = regexp.MustCompile(`[^a-z0-9._-]`)

// DeriveKey converts a raw From header value into a CorrespondentKey.
// It extracts the addr-spec when the header parses as an RFC 5322
// address ("Alice <alice@example.com>" becomes "alice@example.com"),
// lowercases it, and replaces every character outside [a-z0-9._-] with
// an underscore. The derivation is total and deterministic: it never
// fails, falling back to sanitizing the raw input.
func DeriveKey(rawFrom string) CorrespondentKey {
	addrStr := strings.TrimSpace(rawFrom)
	if addr, err := mail.ParseAddress(addrStr); err == nil {
		addrStr = addr.Address
	}
	return CorrespondentKey(
		keyUnsafeChars.ReplaceAllString(strings.ToLower(addrStr), "_"),
	)
}

// Message is a single entry in a conversation history. Entries are
// append-only; insertion order is the conversation timeline and must
// never be reordered.
type Message struct {
	// ID is the internal unique identifier for this message row.
	ID string `json:"id"`

	// From is the display identity of the message author
	// (a raw From header value, or "me" for sent messages).
	From string `json:"from"`

	// Body is the message text as stored (snippet-sized).
	Body string `json:"body"`

	// CreatedAt is when the message was appended to its conversation,
	// used to interleave the global transcript chronologically.
	CreatedAt time.Time `json:"created_at"`
}

// ConversationRecord is the durable ordered history for one
// correspondent, or for the user's own sent messages under SelfKey.
type ConversationRecord struct {
	Owner    CorrespondentKey `json:"owner"`
	Subject  string           `json:"subject"`
	Messages []Message        `json:"messages"`
}

// InboundItem is the canonical form of one fetched unread message.
// It is created by the intake normalizer, consumed once by the
// pipeline, and then discarded.
type InboundItem struct {
	Sender          string
	SenderKey       CorrespondentKey
	Subject         string
	Body            string
	ThreadID        string
	SourceMessageID string
}

// ReplyDraft is a synthesized reply ready for dispatch into the
// original thread.
type ReplyDraft struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// DeliveryStatus tracks how far an inbound message has progressed
// through the pipeline. The ledger is durable, so a crash between
// steps leaves the item recoverable instead of silently dropped.
type DeliveryStatus string

const (
	DeliveryUnknown DeliveryStatus = ""
	DeliveryPending DeliveryStatus = "pending"
	DeliveryStored  DeliveryStatus = "stored"
	DeliveryReplied DeliveryStatus = "replied"
)

// ReplySubject returns the subject line for a reply, prefixing "Re: "
// unless the original subject already carries one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
