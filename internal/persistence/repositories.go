// Package persistence declares the store contract the planning engine
// depends on. Concrete implementations live in subpackages; the engine only
// requires these interfaces and the sentinel errors.
package persistence

import (
	"context"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/rules"
)

// PlanningRepository stores day plannings keyed by date and site.
type PlanningRepository interface {
	// GetDayPlanning returns ErrNotFound when no planning exists for the
	// date and site.
	GetDayPlanning(ctx context.Context, date bloc.Date, siteID string) (bloc.DayPlanning, error)
	// SaveDayPlanning upserts a planning. A non-zero Version must match the
	// stored version or the save fails with ErrStaleWrite; the persisted
	// planning carries the incremented version.
	SaveDayPlanning(ctx context.Context, planning bloc.DayPlanning) (bloc.DayPlanning, error)
	DeleteDayPlanning(ctx context.Context, date bloc.Date, siteID string) error
	// RoomReferenced reports whether any stored planning references the room.
	RoomReferenced(ctx context.Context, roomID string) (bool, error)
}

// CatalogRepository stores the configuration entities: rooms, sectors, staff
// profiles, and supervision rules.
type CatalogRepository interface {
	SaveRoom(ctx context.Context, room bloc.Room) error
	GetRoom(ctx context.Context, id string) (bloc.Room, error)
	ListRooms(ctx context.Context) ([]bloc.Room, error)
	DeleteRoom(ctx context.Context, id string) error

	SaveSector(ctx context.Context, sector bloc.Sector) error
	GetSector(ctx context.Context, id string) (bloc.Sector, error)
	ListSectors(ctx context.Context) ([]bloc.Sector, error)
	DeleteSector(ctx context.Context, id string) error

	ListStaff(ctx context.Context) ([]bloc.StaffProfile, error)

	SaveSupervisionRule(ctx context.Context, rule rules.SupervisionRule) error
	ListSupervisionRules(ctx context.Context) ([]rules.SupervisionRule, error)
	DeleteSupervisionRule(ctx context.Context, id string) error
}

// TemplateRepository stores recurring staffing templates.
type TemplateRepository interface {
	// ListTemplates returns the templates matching the given identifiers
	// and site. Unknown identifiers are simply absent from the result.
	ListTemplates(ctx context.Context, ids []string, siteID string) ([]bloc.Template, error)
}

// AbsenceRepository reads approved absences. The engine never writes
// absences.
type AbsenceRepository interface {
	// ListApprovedAbsences returns APPROVED absences for the given users
	// and surgeons overlapping the range, in one batched query.
	ListApprovedAbsences(ctx context.Context, userIDs, surgeonIDs []string, window bloc.DateRange) ([]bloc.Absence, error)
}
