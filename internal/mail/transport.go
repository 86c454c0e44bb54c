package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mail-assistant/internal/model"
)

// AuthError indicates that authentication has failed for the mail
// account. It is run-fatal: no fetch proceeds after it.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mail auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// TransientError wraps a transport failure that is worth retrying,
// such as a refused connection or a dropped network link.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient mail error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError.
func IsTransient(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}

// RawMessage is a fetched message as seen at the transport boundary:
// selected headers, a body snippet, and the identifier used to thread
// replies.
type RawMessage struct {
	// ID is the transport's identifier for the message (the IMAP UID).
	ID string

	// Headers holds selected RFC 5322 header values keyed by
	// canonical name ("From", "Subject", "Message-Id", ...).
	Headers map[string]string

	// Snippet is the leading portion of the plain-text body.
	Snippet string

	// ThreadID is the original Message-ID, carried into the reply's
	// In-Reply-To and References headers.
	ThreadID string
}

// Transport is the narrow mail contract the pipeline consumes. The
// IMAP/SMTP implementation lives in this package; tests substitute
// fakes.
type Transport interface {
	// ListUnread returns the IDs of up to limit unread inbox messages.
	ListUnread(ctx context.Context, limit int) ([]string, error)

	// GetMessage fetches one message by ID without altering its
	// read state.
	GetMessage(ctx context.Context, id string) (*RawMessage, error)

	// MarkRead flags the message as seen so a later unread fetch will
	// not return it again.
	MarkRead(ctx context.Context, id string) error

	// ListSent returns up to limit of the most recent sent messages,
	// used to refresh the self history.
	ListSent(ctx context.Context, limit int) ([]RawMessage, error)

	// Send dispatches a reply draft into its original thread.
	Send(ctx context.Context, draft model.ReplyDraft) error
}
