package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/bloc-scheduler/internal/bloc"
)

// AbsenceRepository implements persistence.AbsenceRepository on SQLite.
type AbsenceRepository struct {
	pool *ConnectionPool
}

// NewAbsenceRepository creates a SQLite absence repository.
func NewAbsenceRepository(pool *ConnectionPool) *AbsenceRepository {
	return &AbsenceRepository{pool: pool}
}

// SaveAbsence upserts an absence. The planning engine only reads absences;
// this write path exists for seeding and for the systems that own leave
// requests.
func (r *AbsenceRepository) SaveAbsence(ctx context.Context, absence bloc.Absence) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO absences (id, user_id, surgeon_id, start_date, end_date, status, type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			surgeon_id = excluded.surgeon_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			type = excluded.type`,
		absence.ID, absence.UserID, absence.SurgeonID,
		absence.Start.String(), absence.End.String(), string(absence.Status), absence.Type,
	)
	return mapSQLError(err)
}

// ListApprovedAbsences returns APPROVED absences for the given people that
// overlap the window, in one query.
func (r *AbsenceRepository) ListApprovedAbsences(ctx context.Context, userIDs, surgeonIDs []string, window bloc.DateRange) ([]bloc.Absence, error) {
	if len(userIDs) == 0 && len(surgeonIDs) == 0 {
		return nil, nil
	}

	var (
		peopleClauses []string
		args          []any
	)
	if len(userIDs) > 0 {
		peopleClauses = append(peopleClauses, fmt.Sprintf("user_id IN (%s)", placeholders(len(userIDs))))
		for _, id := range userIDs {
			args = append(args, id)
		}
	}
	if len(surgeonIDs) > 0 {
		peopleClauses = append(peopleClauses, fmt.Sprintf("surgeon_id IN (%s)", placeholders(len(surgeonIDs))))
		for _, id := range surgeonIDs {
			args = append(args, id)
		}
	}

	// Inclusive interval overlap: the absence starts no later than the
	// window ends, and ends no earlier than the window starts.
	query := fmt.Sprintf(`
		SELECT id, user_id, surgeon_id, start_date, end_date, status, type
		FROM absences
		WHERE status = ? AND (%s) AND start_date <= ? AND end_date >= ?
		ORDER BY id ASC`,
		strings.Join(peopleClauses, " OR "),
	)
	args = append([]any{string(bloc.AbsenceApproved)}, args...)
	args = append(args, window.End.String(), window.Start.String())

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []bloc.Absence
	for rows.Next() {
		var (
			absence          bloc.Absence
			startStr, endStr string
			statusStr        string
		)
		if err := rows.Scan(&absence.ID, &absence.UserID, &absence.SurgeonID, &startStr, &endStr, &statusStr, &absence.Type); err != nil {
			return nil, mapSQLError(err)
		}
		absence.Status = bloc.AbsenceStatus(statusStr)
		if absence.Start, err = bloc.ParseDate(startStr); err != nil {
			return nil, fmt.Errorf("sqlite: parse start date: %w", err)
		}
		if absence.End, err = bloc.ParseDate(endStr); err != nil {
			return nil, fmt.Errorf("sqlite: parse end date: %w", err)
		}
		out = append(out, absence)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
