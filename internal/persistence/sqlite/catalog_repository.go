package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/persistence"
	"github.com/example/bloc-scheduler/internal/rules"
)

// CatalogRepository implements persistence.CatalogRepository on SQLite.
type CatalogRepository struct {
	pool *ConnectionPool
}

// NewCatalogRepository creates a SQLite catalog repository.
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// SaveRoom upserts a room.
func (r *CatalogRepository) SaveRoom(ctx context.Context, room bloc.Room) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO rooms (id, number, name, sector_id, active, unavailable)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			number = excluded.number,
			name = excluded.name,
			sector_id = excluded.sector_id,
			active = excluded.active,
			unavailable = excluded.unavailable`,
		room.ID, room.Number, room.Name, room.SectorID, boolToInt(room.Active), boolToInt(room.Unavailable),
	)
	return mapSQLError(err)
}

// GetRoom loads a room by identifier.
func (r *CatalogRepository) GetRoom(ctx context.Context, id string) (bloc.Room, error) {
	var (
		room                bloc.Room
		active, unavailable int
	)
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT id, number, name, sector_id, active, unavailable FROM rooms WHERE id = ?", id,
	).Scan(&room.ID, &room.Number, &room.Name, &room.SectorID, &active, &unavailable)
	if errors.Is(err, sql.ErrNoRows) {
		return bloc.Room{}, persistence.ErrNotFound
	}
	if err != nil {
		return bloc.Room{}, mapSQLError(err)
	}
	room.Active = active != 0
	room.Unavailable = unavailable != 0
	return room, nil
}

// ListRooms returns all rooms ordered by number then identifier.
func (r *CatalogRepository) ListRooms(ctx context.Context) ([]bloc.Room, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT id, number, name, sector_id, active, unavailable FROM rooms ORDER BY number ASC, id ASC",
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []bloc.Room
	for rows.Next() {
		var (
			room                bloc.Room
			active, unavailable int
		)
		if err := rows.Scan(&room.ID, &room.Number, &room.Name, &room.SectorID, &active, &unavailable); err != nil {
			return nil, mapSQLError(err)
		}
		room.Active = active != 0
		room.Unavailable = unavailable != 0
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return out, nil
}

// DeleteRoom removes a room.
func (r *CatalogRepository) DeleteRoom(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "rooms", id)
}

// SaveSector upserts a sector, persisting its ordered room identifiers.
func (r *CatalogRepository) SaveSector(ctx context.Context, sector bloc.Sector) error {
	roomIDs, err := json.Marshal(sector.RoomIDs)
	if err != nil {
		return fmt.Errorf("sqlite: encode room ids: %w", err)
	}
	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO sectors (id, name, color, active, room_ids, max_rooms, requires_skills, special_supervision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			active = excluded.active,
			room_ids = excluded.room_ids,
			max_rooms = excluded.max_rooms,
			requires_skills = excluded.requires_skills,
			special_supervision = excluded.special_supervision`,
		sector.ID, sector.Name, sector.Color, boolToInt(sector.Active), string(roomIDs),
		sector.MaxRoomsPerSupervisor, boolToInt(sector.RequiresSpecificSkills), boolToInt(sector.SpecialSupervision),
	)
	return mapSQLError(err)
}

// GetSector loads a sector by identifier.
func (r *CatalogRepository) GetSector(ctx context.Context, id string) (bloc.Sector, error) {
	row := r.pool.db.QueryRowContext(ctx,
		"SELECT id, name, color, active, room_ids, max_rooms, requires_skills, special_supervision FROM sectors WHERE id = ?", id,
	)
	sector, err := scanSector(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return bloc.Sector{}, persistence.ErrNotFound
	}
	if err != nil {
		return bloc.Sector{}, mapSQLError(err)
	}
	return sector, nil
}

// ListSectors returns all sectors ordered by name then identifier.
func (r *CatalogRepository) ListSectors(ctx context.Context) ([]bloc.Sector, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT id, name, color, active, room_ids, max_rooms, requires_skills, special_supervision FROM sectors ORDER BY name ASC, id ASC",
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []bloc.Sector
	for rows.Next() {
		sector, err := scanSector(rows.Scan)
		if err != nil {
			return nil, mapSQLError(err)
		}
		out = append(out, sector)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return out, nil
}

// DeleteSector removes a sector.
func (r *CatalogRepository) DeleteSector(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "sectors", id)
}

// SaveStaffProfile upserts a staff directory entry.
func (r *CatalogRepository) SaveStaffProfile(ctx context.Context, profile bloc.StaffProfile) error {
	skills, err := json.Marshal(profile.Skills)
	if err != nil {
		return fmt.Errorf("sqlite: encode skills: %w", err)
	}
	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO staff_profiles (user_id, sector_id, skills, available)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			sector_id = excluded.sector_id,
			skills = excluded.skills,
			available = excluded.available`,
		profile.UserID, profile.SectorID, string(skills), boolToInt(profile.Available),
	)
	return mapSQLError(err)
}

// ListStaff returns all staff profiles ordered by user identifier.
func (r *CatalogRepository) ListStaff(ctx context.Context) ([]bloc.StaffProfile, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT user_id, sector_id, skills, available FROM staff_profiles ORDER BY user_id ASC",
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []bloc.StaffProfile
	for rows.Next() {
		var (
			profile   bloc.StaffProfile
			skillsRaw string
			available int
		)
		if err := rows.Scan(&profile.UserID, &profile.SectorID, &skillsRaw, &available); err != nil {
			return nil, mapSQLError(err)
		}
		if err := json.Unmarshal([]byte(skillsRaw), &profile.Skills); err != nil {
			return nil, fmt.Errorf("sqlite: decode skills: %w", err)
		}
		profile.Available = available != 0
		out = append(out, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return out, nil
}

// SaveSupervisionRule upserts a rule, encoding its constraints as the tagged
// JSON envelope.
func (r *CatalogRepository) SaveSupervisionRule(ctx context.Context, rule rules.SupervisionRule) error {
	constraints, err := rules.MarshalConstraints(rule.Constraints)
	if err != nil {
		return fmt.Errorf("sqlite: encode constraints: %w", err)
	}
	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO supervision_rules (id, name, type, sector_id, priority, active, constraints)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			sector_id = excluded.sector_id,
			priority = excluded.priority,
			active = excluded.active,
			constraints = excluded.constraints`,
		rule.ID, rule.Name, string(rule.Type), rule.SectorID, rule.Priority, boolToInt(rule.Active), string(constraints),
	)
	return mapSQLError(err)
}

// ListSupervisionRules returns all rules ordered by priority descending then
// identifier.
func (r *CatalogRepository) ListSupervisionRules(ctx context.Context) ([]rules.SupervisionRule, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT id, name, type, sector_id, priority, active, constraints FROM supervision_rules ORDER BY priority DESC, id ASC",
	)
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()

	var out []rules.SupervisionRule
	for rows.Next() {
		var (
			rule           rules.SupervisionRule
			typeStr        string
			active         int
			constraintsRaw string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &typeStr, &rule.SectorID, &rule.Priority, &active, &constraintsRaw); err != nil {
			return nil, mapSQLError(err)
		}
		rule.Type = rules.RuleType(typeStr)
		rule.Active = active != 0
		if rule.Constraints, err = rules.UnmarshalConstraints([]byte(constraintsRaw)); err != nil {
			return nil, fmt.Errorf("sqlite: decode constraints: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLError(err)
	}
	return out, nil
}

// DeleteSupervisionRule removes a rule.
func (r *CatalogRepository) DeleteSupervisionRule(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "supervision_rules", id)
}

func (r *CatalogRepository) deleteByID(ctx context.Context, table, id string) error {
	result, err := r.pool.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
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

func scanSector(scan func(dest ...any) error) (bloc.Sector, error) {
	var (
		sector                                  bloc.Sector
		active, requiresSkills, specialSupervision int
		roomIDsRaw                              string
	)
	err := scan(
		&sector.ID, &sector.Name, &sector.Color, &active, &roomIDsRaw,
		&sector.MaxRoomsPerSupervisor, &requiresSkills, &specialSupervision,
	)
	if err != nil {
		return bloc.Sector{}, err
	}
	if err := json.Unmarshal([]byte(roomIDsRaw), &sector.RoomIDs); err != nil {
		return bloc.Sector{}, fmt.Errorf("sqlite: decode room ids: %w", err)
	}
	sector.Active = active != 0
	sector.RequiresSpecificSkills = requiresSkills != 0
	sector.SpecialSupervision = specialSupervision != 0
	return sector, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
