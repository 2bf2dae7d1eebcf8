package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/sqlutil"
)

// Repository implements room and participant data access operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new rooms repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRoom creates a new room. Returns ErrNameTaken when the name exists.
func (r *Repository) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	var room models.Room
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM rooms WHERE name = $1)`, req.Name,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrNameTaken
		}

		return tx.QueryRowContext(ctx,
			`INSERT INTO rooms (name) VALUES ($1) RETURNING id, name, created_at`,
			req.Name,
		).Scan(&room.ID, &room.Name, &room.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &room, nil
}

// GetRoom retrieves a room by ID.
func (r *Repository) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.Name, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// ListRooms returns all rooms, newest first.
func (r *Repository) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM rooms ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var result []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

// DeleteRoom removes a room and, via FK cascades, its participants, messages
// and timer records.
func (r *Repository) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddParticipant adds a user to a room. Returns ErrAlreadyParticipant when
// the user is already in the room.
func (r *Repository) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM participants WHERE room_id = $1 AND user_id = $2)`,
			roomID, userID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrAlreadyParticipant
		}

		return tx.QueryRowContext(ctx,
			`INSERT INTO participants (room_id, user_id)
			 VALUES ($1, $2)
			 RETURNING id, room_id, user_id`,
			roomID, userID,
		).Scan(&p.ID, &p.RoomID, &p.UserID)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyParticipant) {
			return nil, ErrAlreadyParticipant
		}
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}
	return &p, nil
}

// RemoveParticipant removes a user from a room.
func (r *Repository) RemoveParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotParticipant
	}
	return nil
}

// ListParticipants returns the users participating in a room.
func (r *Repository) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.created_at
		 FROM users u
		 JOIN participants p ON p.user_id = u.id
		 WHERE p.room_id = $1
		 ORDER BY u.username`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

// IsParticipant reports whether the user participates in the room.
func (r *Repository) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE room_id = $1 AND user_id = $2)`,
		roomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}
