package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/persistence"
)

// PlanningRepository implements persistence.PlanningRepository on SQLite.
// Room assignments are stored as one JSON document per planning; the
// planning_rooms table mirrors the referenced room identifiers so the
// deletion guard can answer without unmarshalling every row.
type PlanningRepository struct {
	pool *ConnectionPool
}

// NewPlanningRepository creates a SQLite planning repository.
func NewPlanningRepository(pool *ConnectionPool) *PlanningRepository {
	return &PlanningRepository{pool: pool}
}

// GetDayPlanning loads the planning for a date and site.
func (r *PlanningRepository) GetDayPlanning(ctx context.Context, date bloc.Date, siteID string) (bloc.DayPlanning, error) {
	query := `
		SELECT id, date, site_id, status, notes, version, rooms, created_at, updated_at
		FROM day_plannings
		WHERE date = ? AND site_id = ?
	`
	row := r.pool.db.QueryRowContext(ctx, query, date.String(), siteID)
	planning, err := scanPlanning(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bloc.DayPlanning{}, persistence.ErrNotFound
		}
		return bloc.DayPlanning{}, mapSQLError(err)
	}
	return planning, nil
}

// SaveDayPlanning upserts the planning. A non-zero incoming version must
// match the stored row or the save fails with ErrStaleWrite. The returned
// planning carries the incremented version.
func (r *PlanningRepository) SaveDayPlanning(ctx context.Context, planning bloc.DayPlanning) (bloc.DayPlanning, error) {
	roomsJSON, err := json.Marshal(planning.Rooms)
	if err != nil {
		return bloc.DayPlanning{}, fmt.Errorf("sqlite: encode rooms: %w", err)
	}

	saved := planning
	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var (
			currentID      string
			currentVersion int
		)
		err := tx.QueryRowContext(ctx,
			"SELECT id, version FROM day_plannings WHERE date = ? AND site_id = ?",
			planning.Date.String(), planning.SiteID,
		).Scan(&currentID, &currentVersion)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			saved.Version = 1
			_, err = tx.ExecContext(ctx, `
				INSERT INTO day_plannings (id, date, site_id, status, notes, version, rooms, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				planning.ID, planning.Date.String(), planning.SiteID, string(planning.Status),
				planning.Notes, saved.Version, string(roomsJSON),
				planning.CreatedAt.UTC().Format(time.RFC3339), planning.UpdatedAt.UTC().Format(time.RFC3339),
			)
			if err != nil {
				return mapSQLError(err)
			}
			saved.ID = planning.ID
		case err != nil:
			return mapSQLError(err)
		default:
			if planning.Version != 0 && planning.Version != currentVersion {
				return persistence.ErrStaleWrite
			}
			saved.ID = currentID
			saved.Version = currentVersion + 1
			_, err = tx.ExecContext(ctx, `
				UPDATE day_plannings
				SET status = ?, notes = ?, version = ?, rooms = ?, updated_at = ?
				WHERE id = ?`,
				string(planning.Status), planning.Notes, saved.Version, string(roomsJSON),
				planning.UpdatedAt.UTC().Format(time.RFC3339), currentID,
			)
			if err != nil {
				return mapSQLError(err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM planning_rooms WHERE planning_id = ?", saved.ID); err != nil {
			return mapSQLError(err)
		}
		for _, assignment := range planning.Rooms {
			_, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO planning_rooms (planning_id, room_id) VALUES (?, ?)",
				saved.ID, assignment.RoomID,
			)
			if err != nil {
				return mapSQLError(err)
			}
		}
		return nil
	})
	if err != nil {
		return bloc.DayPlanning{}, err
	}
	return saved, nil
}

// DeleteDayPlanning removes the planning for a date and site.
func (r *PlanningRepository) DeleteDayPlanning(ctx context.Context, date bloc.Date, siteID string) error {
	result, err := r.pool.db.ExecContext(ctx,
		"DELETE FROM day_plannings WHERE date = ? AND site_id = ?",
		date.String(), siteID,
	)
	if err != nil {
		return mapSQLError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// RoomReferenced reports whether any stored planning references the room.
func (r *PlanningRepository) RoomReferenced(ctx context.Context, roomID string) (bool, error) {
	var one int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT 1 FROM planning_rooms WHERE room_id = ? LIMIT 1", roomID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapSQLError(err)
	}
	return true, nil
}

func scanPlanning(row *sql.Row) (bloc.DayPlanning, error) {
	var (
		planning               bloc.DayPlanning
		dateStr                string
		statusStr              string
		roomsJSON              string
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(
		&planning.ID, &dateStr, &planning.SiteID, &statusStr, &planning.Notes,
		&planning.Version, &roomsJSON, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return bloc.DayPlanning{}, err
	}

	planning.Status = bloc.PlanningStatus(statusStr)
	if planning.Date, err = bloc.ParseDate(dateStr); err != nil {
		return bloc.DayPlanning{}, fmt.Errorf("sqlite: parse date: %w", err)
	}
	if err := json.Unmarshal([]byte(roomsJSON), &planning.Rooms); err != nil {
		return bloc.DayPlanning{}, fmt.Errorf("sqlite: decode rooms: %w", err)
	}
	if planning.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return bloc.DayPlanning{}, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if planning.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return bloc.DayPlanning{}, fmt.Errorf("sqlite: parse updated_at: %w", err)
	}
	return planning, nil
}
