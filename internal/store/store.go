package store

import (
	"context"

	"github.com/nhle/mail-assistant/internal/model"
)

// Store defines the persistence interface for conversation histories
// and the per-message delivery ledger. It is the single source of
// truth across runs; no pipeline component holds long-lived state.
type Store interface {
	// AppendMessage appends a message to the owner's conversation,
	// creating the conversation on first use and updating its subject
	// (last write wins). The append is transactional: subject update
	// and message insert commit together or not at all.
	AppendMessage(
		ctx context.Context,
		owner model.CorrespondentKey,
		subject string,
		msg model.Message,
	) error

	// AppendStored appends a message and records the source message's
	// delivery status as stored in the same transaction, so a replay
	// after a mid-item crash can never append the same message twice.
	AppendStored(
		ctx context.Context,
		owner model.CorrespondentKey,
		subject string,
		msg model.Message,
		sourceMessageID, threadID string,
	) error

	// GetConversation returns the conversation for owner with its
	// messages in append order, or nil if none exists.
	GetConversation(
		ctx context.Context,
		owner model.CorrespondentKey,
	) (*model.ConversationRecord, error)

	// GetAllConversations returns every conversation record with its
	// messages in append order.
	GetAllConversations(ctx context.Context) ([]model.ConversationRecord, error)

	// GetAllMessages returns every stored message across all owners,
	// ordered chronologically by creation time.
	GetAllMessages(ctx context.Context) ([]model.Message, error)

	// GetDeliveryStatus returns the pipeline progress recorded for a
	// source message ID, or model.DeliveryUnknown if never seen.
	GetDeliveryStatus(
		ctx context.Context,
		sourceMessageID string,
	) (model.DeliveryStatus, error)

	// SetDeliveryStatus durably records pipeline progress for a source
	// message ID.
	SetDeliveryStatus(
		ctx context.Context,
		sourceMessageID, threadID string,
		status model.DeliveryStatus,
	) error

	// Close releases the underlying database handle.
	Close() error
}
