// Package testfixtures provides deterministic builders for the planning
// domain entities used across test suites.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/rules"
)

var (
	roomCounter     uint64
	sectorCounter   uint64
	planningCounter uint64
	templateCounter uint64
	ruleCounter     uint64
	absenceCounter  uint64
)

var referenceTime = time.Date(2025, time.January, 13, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It falls on a Monday so weekday driven expansion tests read naturally.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the calendar day of ReferenceTime.
func ReferenceDate() bloc.Date {
	return bloc.DateOf(referenceTime)
}

// RoomOption configures a generated room.
type RoomOption func(*bloc.Room)

// NewRoom returns a deterministic active room with optional overrides.
func NewRoom(opts ...RoomOption) bloc.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	room := bloc.Room{
		ID:       fmt.Sprintf("room-%03d", idx),
		Number:   fmt.Sprintf("%d", idx),
		Name:     fmt.Sprintf("Salle %d", idx),
		SectorID: "sector-001",
		Active:   true,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room identifier.
func WithRoomID(id string) RoomOption {
	return func(r *bloc.Room) { r.ID = id }
}

// WithRoomSector overrides the sector the room belongs to.
func WithRoomSector(sectorID string) RoomOption {
	return func(r *bloc.Room) { r.SectorID = sectorID }
}

// WithRoomUnavailable marks the room unavailable.
func WithRoomUnavailable() RoomOption {
	return func(r *bloc.Room) { r.Unavailable = true }
}

// SectorOption configures a generated sector.
type SectorOption func(*bloc.Sector)

// NewSector returns a deterministic active sector with optional overrides.
func NewSector(opts ...SectorOption) bloc.Sector {
	idx := atomic.AddUint64(&sectorCounter, 1)
	sector := bloc.Sector{
		ID:     fmt.Sprintf("sector-%03d", idx),
		Name:   fmt.Sprintf("Secteur %d", idx),
		Color:  "#4a90d9",
		Active: true,
	}
	for _, opt := range opts {
		opt(&sector)
	}
	return sector
}

// WithSectorID overrides the generated sector identifier.
func WithSectorID(id string) SectorOption {
	return func(s *bloc.Sector) { s.ID = id }
}

// WithSectorRooms sets the ordered room identifiers of the sector.
func WithSectorRooms(roomIDs ...string) SectorOption {
	return func(s *bloc.Sector) { s.RoomIDs = roomIDs }
}

// NewStaffProfile returns an available staff profile for the given user.
func NewStaffProfile(userID, sectorID string, skills ...string) bloc.StaffProfile {
	return bloc.StaffProfile{
		UserID:    userID,
		SectorID:  sectorID,
		Skills:    skills,
		Available: true,
	}
}

// PlanningOption configures a generated day planning.
type PlanningOption func(*bloc.DayPlanning)

// NewPlanning returns a deterministic draft planning on the reference date.
func NewPlanning(opts ...PlanningOption) bloc.DayPlanning {
	idx := atomic.AddUint64(&planningCounter, 1)
	planning := bloc.DayPlanning{
		ID:        fmt.Sprintf("planning-%03d", idx),
		Date:      ReferenceDate(),
		SiteID:    "site-001",
		Status:    bloc.StatusDraft,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&planning)
	}
	return planning
}

// WithPlanningDate overrides the planning date.
func WithPlanningDate(date bloc.Date) PlanningOption {
	return func(p *bloc.DayPlanning) { p.Date = date }
}

// WithPlanningStatus overrides the lifecycle status.
func WithPlanningStatus(status bloc.PlanningStatus) PlanningOption {
	return func(p *bloc.DayPlanning) { p.Status = status }
}

// WithAssignment appends a room assignment staffing one principal supervisor
// for the whole working day.
func WithAssignment(roomID, userID string) PlanningOption {
	return func(p *bloc.DayPlanning) {
		p.Rooms = append(p.Rooms, bloc.RoomAssignment{
			ID:     fmt.Sprintf("%s-%s", p.ID, roomID),
			RoomID: roomID,
			Supervisors: []bloc.Supervisor{{
				ID:      fmt.Sprintf("%s-%s-%s", p.ID, roomID, userID),
				UserID:  userID,
				Role:    bloc.RolePrincipal,
				Periods: []bloc.Period{{Debut: "08:00", Fin: "18:00"}},
			}},
		})
	}
}

// TemplateOption configures a generated template.
type TemplateOption func(*bloc.Template)

// NewTemplate returns a deterministic active template with optional
// overrides.
func NewTemplate(opts ...TemplateOption) bloc.Template {
	idx := atomic.AddUint64(&templateCounter, 1)
	template := bloc.Template{
		ID:     fmt.Sprintf("template-%03d", idx),
		Name:   fmt.Sprintf("Trame %d", idx),
		Active: true,
		SiteID: "site-001",
	}
	for _, opt := range opts {
		opt(&template)
	}
	return template
}

// WithTemplateSlot appends one Monday morning slot for the given room and
// user.
func WithTemplateSlot(roomID, userID string) TemplateOption {
	return WithTemplateSlotOn(time.Monday, roomID, userID)
}

// WithTemplateSlotOn appends a slot on a specific weekday.
func WithTemplateSlotOn(weekday time.Weekday, roomID, userID string) TemplateOption {
	return func(t *bloc.Template) {
		t.Slots = append(t.Slots, bloc.TemplateSlot{
			Weekday: weekday,
			RoomID:  roomID,
			UserID:  userID,
			Role:    bloc.RolePrincipal,
			Period:  bloc.Period{Debut: "08:00", Fin: "12:00"},
		})
	}
}

// WithInactiveTemplate deactivates the template.
func WithInactiveTemplate() TemplateOption {
	return func(t *bloc.Template) { t.Active = false }
}

// RuleOption configures a generated supervision rule.
type RuleOption func(*rules.SupervisionRule)

// NewMaxRoomsRule returns an active basic rule capping rooms per supervisor.
func NewMaxRoomsRule(max int, opts ...RuleOption) rules.SupervisionRule {
	idx := atomic.AddUint64(&ruleCounter, 1)
	rule := rules.SupervisionRule{
		ID:          fmt.Sprintf("rule-%03d", idx),
		Name:        fmt.Sprintf("Max %d salles", max),
		Type:        rules.TypeBasic,
		Priority:    int(idx),
		Active:      true,
		Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: max}},
	}
	for _, opt := range opts {
		opt(&rule)
	}
	return rule
}

// WithRuleType overrides the rule type. SPECIFIC and EXCEPTION rules also
// need WithRuleSector.
func WithRuleType(ruleType rules.RuleType) RuleOption {
	return func(r *rules.SupervisionRule) { r.Type = ruleType }
}

// WithRuleSector scopes the rule to a sector.
func WithRuleSector(sectorID string) RuleOption {
	return func(r *rules.SupervisionRule) { r.SectorID = sectorID }
}

// WithRulePriority overrides the generated priority.
func WithRulePriority(priority int) RuleOption {
	return func(r *rules.SupervisionRule) { r.Priority = priority }
}

// WithConstraints replaces the rule constraints.
func WithConstraints(constraints ...rules.Constraint) RuleOption {
	return func(r *rules.SupervisionRule) { r.Constraints = constraints }
}

// NewApprovedAbsence returns an approved absence covering a single day for
// the given user.
func NewApprovedAbsence(userID string, day bloc.Date) bloc.Absence {
	idx := atomic.AddUint64(&absenceCounter, 1)
	return bloc.Absence{
		ID:     fmt.Sprintf("absence-%03d", idx),
		UserID: userID,
		Start:  day,
		End:    day,
		Status: bloc.AbsenceApproved,
		Type:   "CONGES",
	}
}
