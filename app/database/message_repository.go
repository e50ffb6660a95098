package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ MessageRepository = (*SQLiteMessageRepository)(nil)

type SQLiteMessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

func (r *SQLiteMessageRepository) InsertMessages(targetID int, messages []Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO messages (
			target_id, identity, name, text, sent_at, is_filtered, filter_reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, message := range messages {
		result, err := stmt.Exec(targetID, message.Identity, message.Name, message.Text,
			message.SentAt.UTC(), message.IsFiltered, message.FilterReason, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}

	return inserted, nil
}

// GetVisibleMessages returns non-filtered messages for a target, newest first
func (r *SQLiteMessageRepository) GetVisibleMessages(targetID int, limit int) ([]Message, error) {
	rows, err := r.db.Query(`
		SELECT id, target_id, identity, name, text, sent_at,
		       is_filtered, filter_reason, created_at
		FROM messages
		WHERE target_id = ?
		  AND is_filtered = 0
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get visible messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetAllMessages returns every archived message for a target, including
// filtered ones
func (r *SQLiteMessageRepository) GetAllMessages(targetID int) ([]Message, error) {
	rows, err := r.db.Query(`
		SELECT id, target_id, identity, name, text, sent_at,
		       is_filtered, filter_reason, created_at
		FROM messages
		WHERE target_id = ?
		ORDER BY sent_at DESC, id DESC
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get all messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var message Message
		err := rows.Scan(
			&message.ID, &message.TargetID, &message.Identity, &message.Name, &message.Text,
			&message.SentAt, &message.IsFiltered, &message.FilterReason, &message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

func (r *SQLiteMessageRepository) UpdateMessageFilterStatus(messageID int64, isFiltered bool, reason string) error {
	_, err := r.db.Exec(`
		UPDATE messages
		SET is_filtered = ?, filter_reason = ?
		WHERE id = ?
	`, isFiltered, reason, messageID)

	if err != nil {
		return fmt.Errorf("failed to update message filter status: %w", err)
	}

	return nil
}

func (r *SQLiteMessageRepository) GetMessageCount(targetID int) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM messages WHERE target_id = ?", targetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get message count: %w", err)
	}
	return count, nil
}

// GetMessageStats returns total, visible and filtered message counts for a target
func (r *SQLiteMessageRepository) GetMessageStats(targetID int) (total, visible, filtered int, err error) {
	err = r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_filtered = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_filtered = 1 THEN 1 ELSE 0 END), 0)
		FROM messages
		WHERE target_id = ?
	`, targetID).Scan(&total, &visible, &filtered)

	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get message stats: %w", err)
	}

	return total, visible, filtered, nil
}
