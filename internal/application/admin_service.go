package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/rules"
)

// CatalogStore captures the configuration persistence the admin service
// needs.
type CatalogStore interface {
	SaveRoom(ctx context.Context, room bloc.Room) error
	GetRoom(ctx context.Context, id string) (bloc.Room, error)
	ListRooms(ctx context.Context) ([]bloc.Room, error)
	DeleteRoom(ctx context.Context, id string) error

	SaveSector(ctx context.Context, sector bloc.Sector) error
	GetSector(ctx context.Context, id string) (bloc.Sector, error)
	ListSectors(ctx context.Context) ([]bloc.Sector, error)
	DeleteSector(ctx context.Context, id string) error

	SaveSupervisionRule(ctx context.Context, rule rules.SupervisionRule) error
	ListSupervisionRules(ctx context.Context) ([]rules.SupervisionRule, error)
	DeleteSupervisionRule(ctx context.Context, id string) error
}

// RoomReferenceChecker reports whether stored plannings still reference a
// room.
type RoomReferenceChecker interface {
	RoomReferenced(ctx context.Context, roomID string) (bool, error)
}

// AdminService manages rooms, sectors, and supervision rules. Deletions are
// guarded by referential invariants: they fail with a ConflictError instead
// of cascading.
type AdminService struct {
	catalog     CatalogStore
	refs        RoomReferenceChecker
	idGenerator func() string
	logger      *slog.Logger
}

// NewAdminService wires dependencies for configuration management.
func NewAdminService(catalog CatalogStore, refs RoomReferenceChecker, idGenerator func() string, logger *slog.Logger) *AdminService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	return &AdminService{
		catalog:     catalog,
		refs:        refs,
		idGenerator: idGenerator,
		logger:      defaultLogger(logger),
	}
}

func (s *AdminService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AdminService", operation, attrs...)
}

// SaveRoom creates or updates a room and keeps the owning sector's ordered
// room list in sync.
func (s *AdminService) SaveRoom(ctx context.Context, room bloc.Room) (saved bloc.Room, err error) {
	if s == nil {
		return bloc.Room{}, fmt.Errorf("AdminService is nil")
	}

	logger := s.loggerWith(ctx, "SaveRoom", "room_id", room.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", saved.ID).InfoContext(ctx, "room saved")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(room.Number) == "" {
		vErr.add("numero", "room number is required")
	}
	if room.SectorID == "" {
		vErr.add("secteurId", "owning sector is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return bloc.Room{}, err
	}

	sector, err := s.catalog.GetSector(ctx, room.SectorID)
	if err != nil {
		err = mapRepoError(err)
		return bloc.Room{}, err
	}

	if room.ID == "" {
		room.ID = s.idGenerator()
	}

	previousSector := ""
	if existing, gErr := s.catalog.GetRoom(ctx, room.ID); gErr == nil {
		previousSector = existing.SectorID
	}

	if err = s.catalog.SaveRoom(ctx, room); err != nil {
		err = mapRepoError(err)
		return bloc.Room{}, err
	}

	if previousSector != "" && previousSector != room.SectorID {
		if err = s.detachFromSector(ctx, previousSector, room.ID); err != nil {
			return bloc.Room{}, err
		}
	}
	if !slices.Contains(sector.RoomIDs, room.ID) {
		sector.RoomIDs = append(sector.RoomIDs, room.ID)
		if err = s.catalog.SaveSector(ctx, sector); err != nil {
			err = mapRepoError(err)
			return bloc.Room{}, err
		}
	}

	return room, nil
}

// GetRoom returns a room by identifier.
func (s *AdminService) GetRoom(ctx context.Context, id string) (bloc.Room, error) {
	room, err := s.catalog.GetRoom(ctx, id)
	if err != nil {
		return bloc.Room{}, mapRepoError(err)
	}
	return room, nil
}

// ListRooms returns every configured room.
func (s *AdminService) ListRooms(ctx context.Context) ([]bloc.Room, error) {
	roomList, err := s.catalog.ListRooms(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return roomList, nil
}

// DeleteRoom removes a room unless a stored planning still references it.
func (s *AdminService) DeleteRoom(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("AdminService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", "room_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room deleted")
	}()

	room, err := s.catalog.GetRoom(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		return err
	}

	if s.refs != nil {
		referenced, rErr := s.refs.RoomReferenced(ctx, id)
		if rErr != nil {
			err = mapRepoError(rErr)
			return err
		}
		if referenced {
			err = &ConflictError{Entity: "room", EntityID: id, Reference: "stored day plannings"}
			return err
		}
	}

	if err = s.detachFromSector(ctx, room.SectorID, id); err != nil {
		return err
	}

	if err = s.catalog.DeleteRoom(ctx, id); err != nil {
		err = mapRepoError(err)
		return err
	}
	return nil
}

// SaveSector creates or updates a sector.
func (s *AdminService) SaveSector(ctx context.Context, sector bloc.Sector) (bloc.Sector, error) {
	if s == nil {
		return bloc.Sector{}, fmt.Errorf("AdminService is nil")
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(sector.Name) == "" {
		vErr.add("nom", "sector name is required")
	}
	if vErr.HasErrors() {
		return bloc.Sector{}, vErr
	}

	if sector.ID == "" {
		sector.ID = s.idGenerator()
	}
	if err := s.catalog.SaveSector(ctx, sector); err != nil {
		return bloc.Sector{}, mapRepoError(err)
	}
	return sector, nil
}

// GetSector returns a sector by identifier.
func (s *AdminService) GetSector(ctx context.Context, id string) (bloc.Sector, error) {
	sector, err := s.catalog.GetSector(ctx, id)
	if err != nil {
		return bloc.Sector{}, mapRepoError(err)
	}
	return sector, nil
}

// ListSectors returns every configured sector.
func (s *AdminService) ListSectors(ctx context.Context) ([]bloc.Sector, error) {
	sectorList, err := s.catalog.ListSectors(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return sectorList, nil
}

// DeleteSector removes a sector unless it still contains rooms.
func (s *AdminService) DeleteSector(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("AdminService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteSector", "sector_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete sector", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "sector deleted")
	}()

	sector, err := s.catalog.GetSector(ctx, id)
	if err != nil {
		err = mapRepoError(err)
		return err
	}
	if len(sector.RoomIDs) > 0 {
		err = &ConflictError{Entity: "sector", EntityID: id, Reference: fmt.Sprintf("%d rooms", len(sector.RoomIDs))}
		return err
	}

	if err = s.catalog.DeleteSector(ctx, id); err != nil {
		err = mapRepoError(err)
		return err
	}
	return nil
}

// SaveSupervisionRule creates or updates a rule. The full rule set is
// re-validated as a catalog so ambiguous priorities are rejected at write
// time instead of surfacing during validation.
func (s *AdminService) SaveSupervisionRule(ctx context.Context, rule rules.SupervisionRule) (saved rules.SupervisionRule, err error) {
	if s == nil {
		return rules.SupervisionRule{}, fmt.Errorf("AdminService is nil")
	}

	logger := s.loggerWith(ctx, "SaveSupervisionRule", "rule_id", rule.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save rule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rule_id", saved.ID).InfoContext(ctx, "rule saved")
	}()

	if rule.ID == "" {
		rule.ID = s.idGenerator()
	}

	existing, err := s.catalog.ListSupervisionRules(ctx)
	if err != nil {
		err = mapRepoError(err)
		return rules.SupervisionRule{}, err
	}
	merged := make([]rules.SupervisionRule, 0, len(existing)+1)
	for _, current := range existing {
		if current.ID != rule.ID {
			merged = append(merged, current)
		}
	}
	merged = append(merged, rule)
	if _, cErr := rules.NewCatalog(merged); cErr != nil {
		vErr := &ValidationError{}
		vErr.add("rule", cErr.Error())
		err = vErr
		return rules.SupervisionRule{}, err
	}

	if err = s.catalog.SaveSupervisionRule(ctx, rule); err != nil {
		err = mapRepoError(err)
		return rules.SupervisionRule{}, err
	}
	return rule, nil
}

// ListSupervisionRules returns every stored rule, active or not.
func (s *AdminService) ListSupervisionRules(ctx context.Context) ([]rules.SupervisionRule, error) {
	ruleList, err := s.catalog.ListSupervisionRules(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return ruleList, nil
}

// DeleteSupervisionRule removes a rule.
func (s *AdminService) DeleteSupervisionRule(ctx context.Context, id string) error {
	if err := s.catalog.DeleteSupervisionRule(ctx, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (s *AdminService) detachFromSector(ctx context.Context, sectorID, roomID string) error {
	sector, err := s.catalog.GetSector(ctx, sectorID)
	if err != nil {
		// A dangling sector reference is not a reason to keep the room
		// pinned; the index tolerates it and the validator reports it.
		return nil
	}
	filtered := slices.DeleteFunc(slices.Clone(sector.RoomIDs), func(id string) bool { return id == roomID })
	if len(filtered) == len(sector.RoomIDs) {
		return nil
	}
	sector.RoomIDs = filtered
	if err := s.catalog.SaveSector(ctx, sector); err != nil {
		return mapRepoError(err)
	}
	return nil
}
