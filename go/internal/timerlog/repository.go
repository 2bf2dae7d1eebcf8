package timerlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/studyhall/go/internal/models"
	"github.com/mcdev12/studyhall/go/internal/sqlutil"
)

// Repository implements timer record data access operations. Records are an
// audit log of started focus sessions; the live countdown itself runs in
// memory.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new timer log repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateRecord logs a newly started timer for a room. Any previously active
// record for the room is deactivated in the same transaction so at most one
// record per room is active.
func (r *Repository) CreateRecord(ctx context.Context, roomID uuid.UUID, req CreateRecordRequest) (*models.TimerRecord, error) {
	var rec models.TimerRecord
	err := sqlutil.Run(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE timers SET is_active = FALSE WHERE room_id = $1 AND is_active`, roomID,
		); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx,
			`INSERT INTO timers (room_id, duration_minutes, is_active)
			 VALUES ($1, $2, TRUE)
			 RETURNING id, room_id, duration_minutes, is_active, started_at`,
			roomID, req.DurationMinutes,
		).Scan(&rec.ID, &rec.RoomID, &rec.DurationMinutes, &rec.IsActive, &rec.StartedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create timer record: %w", err)
	}
	return &rec, nil
}

// ListByRoom returns a room's timer records, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.TimerRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, room_id, duration_minutes, is_active, started_at
		 FROM timers
		 WHERE room_id = $1
		 ORDER BY started_at DESC`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list timer records: %w", err)
	}
	defer rows.Close()

	var result []models.TimerRecord
	for rows.Next() {
		var rec models.TimerRecord
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.DurationMinutes, &rec.IsActive, &rec.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan timer record: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Deactivate marks a timer record inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE timers SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate timer record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
