package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mail-assistant/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// AppendMessage appends a message to the owner's conversation inside a
// single transaction: the conversation row is upserted with the latest
// subject and the message is inserted with the next sequence number.
func (s *SQLiteStore) AppendMessage(
	ctx context.Context,
	owner model.CorrespondentKey,
	subject string,
	msg model.Message,
) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendMessageTx(ctx, tx, owner, subject, msg); err != nil {
		return err
	}

	return tx.Commit()
}

// AppendStored appends a message and records the source message's
// delivery status as stored in the same transaction. After a crash the
// ledger therefore never shows "stored" for a message whose append did
// not commit, and a replayed pending item cannot duplicate history.
func (s *SQLiteStore) AppendStored(
	ctx context.Context,
	owner model.CorrespondentKey,
	subject string,
	msg model.Message,
	sourceMessageID, threadID string,
) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := appendMessageTx(ctx, tx, owner, subject, msg); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, upsertDeliverySQL,
		sourceMessageID, threadID, string(model.DeliveryStored),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf(
			"setting delivery status %s=%s: %w",
			sourceMessageID, model.DeliveryStored, err,
		)
	}

	return tx.Commit()
}

// appendMessageTx upserts the conversation row with the latest subject
// and inserts the message with the next sequence number, inside the
// caller's transaction.
func appendMessageTx(
	ctx context.Context,
	tx *sqlx.Tx,
	owner model.CorrespondentKey,
	subject string,
	msg model.Message,
) error {
	now := time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (owner, subject, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			subject = excluded.subject,
			updated_at = excluded.updated_at`,
		string(owner), subject, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting conversation %s: %w", owner, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, owner, sender, body, seq, created_at)
		VALUES (
			?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1
				FROM conversation_messages WHERE owner = ?),
			?
		)`,
		msg.ID, string(owner), msg.From, msg.Body,
		string(owner), msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending message to %s: %w", owner, err)
	}

	return nil
}

// GetConversation retrieves the conversation for owner with its
// messages in append order. Returns nil if the owner has no record.
func (s *SQLiteStore) GetConversation(
	ctx context.Context,
	owner model.CorrespondentKey,
) (*model.ConversationRecord, error) {
	var subject string
	err := s.db.GetContext(ctx, &subject,
		"SELECT subject FROM conversations WHERE owner = ?", string(owner),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation %s: %w", owner, err)
	}

	messages, err := s.messagesForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	return &model.ConversationRecord{
		Owner:    owner,
		Subject:  subject,
		Messages: messages,
	}, nil
}

// GetAllConversations retrieves every conversation record with its
// messages in append order.
func (s *SQLiteStore) GetAllConversations(
	ctx context.Context,
) ([]model.ConversationRecord, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT owner, subject FROM conversations ORDER BY owner",
	)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var records []model.ConversationRecord
	for rows.Next() {
		var owner, subject string
		if err := rows.Scan(&owner, &subject); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		records = append(records, model.ConversationRecord{
			Owner:   model.CorrespondentKey(owner),
			Subject: subject,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		messages, err := s.messagesForOwner(ctx, records[i].Owner)
		if err != nil {
			return nil, err
		}
		records[i].Messages = messages
	}

	return records, nil
}

// GetAllMessages retrieves every stored message across all owners,
// ordered chronologically. Ties on creation time fall back to owner
// and sequence order so the result is stable.
func (s *SQLiteStore) GetAllMessages(
	ctx context.Context,
) ([]model.Message, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, sender, body, created_at
		FROM conversation_messages
		ORDER BY created_at, owner, seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying all messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetDeliveryStatus returns the recorded pipeline progress for a
// source message ID, or model.DeliveryUnknown if the ID was never seen.
func (s *SQLiteStore) GetDeliveryStatus(
	ctx context.Context,
	sourceMessageID string,
) (model.DeliveryStatus, error) {
	var status string
	err := s.db.GetContext(ctx, &status,
		"SELECT status FROM deliveries WHERE source_message_id = ?",
		sourceMessageID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeliveryUnknown, nil
	}
	if err != nil {
		return model.DeliveryUnknown, fmt.Errorf(
			"getting delivery status %s: %w", sourceMessageID, err,
		)
	}
	return model.DeliveryStatus(status), nil
}

const upsertDeliverySQL = `
	INSERT INTO deliveries (source_message_id, thread_id, status, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(source_message_id) DO UPDATE SET
		thread_id = excluded.thread_id,
		status = excluded.status,
		updated_at = excluded.updated_at`

// SetDeliveryStatus durably records pipeline progress for a source
// message ID.
func (s *SQLiteStore) SetDeliveryStatus(
	ctx context.Context,
	sourceMessageID, threadID string,
	status model.DeliveryStatus,
) error {
	_, err := s.db.ExecContext(ctx, upsertDeliverySQL,
		sourceMessageID, threadID, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf(
			"setting delivery status %s=%s: %w", sourceMessageID, status, err,
		)
	}
	return nil
}

// messagesForOwner retrieves one owner's messages in sequence order.
func (s *SQLiteStore) messagesForOwner(
	ctx context.Context,
	owner model.CorrespondentKey,
) ([]model.Message, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, sender, body, created_at
		FROM conversation_messages
		WHERE owner = ?
		ORDER BY seq`,
		string(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages for %s: %w", owner, err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// scanMessages scans message rows from a sqlx.Rows result set.
func scanMessages(rows *sqlx.Rows) ([]model.Message, error) {
	var messages []model.Message
	for rows.Next() {
		var (
			msg       model.Message
			createdAt time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.From, &msg.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.CreatedAt = createdAt
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
