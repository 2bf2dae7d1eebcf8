package messages

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
)

// Repository implements chat message data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new messages repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SaveMessage persists a chat message and returns the stored row with its
// generated ID and timestamp.
func (r *Repository) SaveMessage(ctx context.Context, roomID, userID uuid.UUID, content string) (*models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO messages (room_id, user_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, room_id, user_id, content, created_at`,
		roomID, userID, content,
	).Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return &msg, nil
}

// RecentMessages returns up to limit messages for a room, newest first, with
// the sender's username joined in.
func (r *Repository) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.room_id, m.user_id, u.username, m.content, m.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.room_id = $1
		 ORDER BY m.created_at DESC
		 LIMIT $2`,
		roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Username, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
