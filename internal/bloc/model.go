package bloc

import (
	"fmt"
	"time"
)

// Room is an operating room ("salle") belonging to a sector.
type Room struct {
	ID       string `json:"id"`
	Number   string `json:"numero"`
	Name     string `json:"nom"`
	SectorID string `json:"secteurId"`
	Active   bool   `json:"estActif"`
	// Unavailable marks a room that must not receive new assignments,
	// e.g. closed for maintenance.
	Unavailable bool `json:"estIndisponible,omitempty"`
}

// Sector groups rooms ("secteur") and carries ordered room identifiers.
type Sector struct {
	ID     string `json:"id"`
	Name   string `json:"nom"`
	Color  string `json:"couleur"`
	Active bool   `json:"estActif"`
	// RoomIDs preserves the physical ordering used for contiguity checks.
	RoomIDs                []string `json:"salles"`
	MaxRoomsPerSupervisor  int      `json:"maxSallesParSuperviseur,omitempty"`
	RequiresSpecificSkills bool     `json:"requiresSpecificSkills,omitempty"`
	SpecialSupervision     bool     `json:"specialSupervision,omitempty"`
}

// SupervisorRole categorizes a supervisor within one room assignment.
type SupervisorRole string

const (
	RolePrincipal SupervisorRole = "PRINCIPAL"
	RoleSecondary SupervisorRole = "SECONDARY"
	RoleSupport   SupervisorRole = "SUPPORT"
)

// Period is a clock interval within a single day. Bounds are "HH:MM" and
// compare lexicographically, matching the wire format.
type Period struct {
	Debut string `json:"debut"`
	Fin   string `json:"fin"`
}

// Validate checks that both bounds are well-formed clock values and that the
// period is non-empty.
func (p Period) Validate() error {
	for _, bound := range []string{p.Debut, p.Fin} {
		if _, err := time.Parse("15:04", bound); err != nil {
			return fmt.Errorf("bloc: invalid clock value %q", bound)
		}
	}
	if p.Debut >= p.Fin {
		return fmt.Errorf("bloc: period %s-%s is empty or inverted", p.Debut, p.Fin)
	}
	return nil
}

// Overlaps reports whether two periods share any time.
func (p Period) Overlaps(other Period) bool {
	return p.Debut < other.Fin && p.Fin > other.Debut
}

// Supervisor is one staffing entry inside a room assignment. A persisted
// supervisor always has at least one period; the drag-and-drop engine removes
// entries whose last period was moved away.
type Supervisor struct {
	ID      string         `json:"id"`
	UserID  string         `json:"userId"`
	Role    SupervisorRole `json:"role"`
	Periods []Period       `json:"periodes"`
}

// RoomAssignment is the staffing of one room for one day.
type RoomAssignment struct {
	ID          string       `json:"id"`
	RoomID      string       `json:"salleId"`
	Supervisors []Supervisor `json:"superviseurs"`
	SurgeonID   string       `json:"chirurgienId,omitempty"`
	Notes       string       `json:"notes,omitempty"`
}

// PlanningStatus tracks the review lifecycle of a day planning.
type PlanningStatus string

const (
	StatusDraft     PlanningStatus = "DRAFT"
	StatusProposed  PlanningStatus = "PROPOSED"
	StatusValidated PlanningStatus = "VALIDATED"
	StatusPublished PlanningStatus = "PUBLISHED"
)

var statusRank = map[PlanningStatus]int{
	StatusDraft:     0,
	StatusProposed:  1,
	StatusValidated: 2,
	StatusPublished: 3,
}

// CanTransition reports whether a status change is allowed: strictly forward
// through the lifecycle, or an explicit rollback to DRAFT.
func CanTransition(from, to PlanningStatus) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	if to == StatusDraft {
		return true
	}
	return toRank > fromRank
}

// DayPlanning is the concrete set of room assignments for one date and site.
type DayPlanning struct {
	ID        string           `json:"id"`
	Date      Date             `json:"date"`
	SiteID    string           `json:"siteId"`
	Rooms     []RoomAssignment `json:"salles"`
	Status    PlanningStatus   `json:"validationStatus"`
	Notes     string           `json:"notes,omitempty"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Assignment returns the room assignment for a room, or nil when absent.
func (p *DayPlanning) Assignment(roomID string) *RoomAssignment {
	for i := range p.Rooms {
		if p.Rooms[i].RoomID == roomID {
			return &p.Rooms[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the planning. Mutation engines operate on
// clones so a failed persist never corrupts the caller's copy.
func (p DayPlanning) Clone() DayPlanning {
	out := p
	out.Rooms = make([]RoomAssignment, len(p.Rooms))
	for i, room := range p.Rooms {
		cloned := room
		cloned.Supervisors = make([]Supervisor, len(room.Supervisors))
		for j, sup := range room.Supervisors {
			s := sup
			s.Periods = append([]Period(nil), sup.Periods...)
			cloned.Supervisors[j] = s
		}
		out.Rooms[i] = cloned
	}
	return out
}

// TemplateSlot is one recurring affectation inside a template.
type TemplateSlot struct {
	Weekday   time.Weekday   `json:"jourSemaine"`
	RoomID    string         `json:"salleId"`
	UserID    string         `json:"userId,omitempty"`
	SurgeonID string         `json:"chirurgienId,omitempty"`
	Role      SupervisorRole `json:"role"`
	Period    Period         `json:"periode"`
}

// Template ("trame") is a recurring weekly staffing pattern. Templates are
// read-only during expansion.
type Template struct {
	ID     string         `json:"id"`
	Name   string         `json:"nom"`
	Active bool           `json:"estActif"`
	SiteID string         `json:"siteId"`
	Slots  []TemplateSlot `json:"affectations"`
}

// AbsenceStatus is the review state of an absence request. Only approved
// absences block assignment.
type AbsenceStatus string

const (
	AbsenceApproved AbsenceStatus = "APPROVED"
	AbsencePending  AbsenceStatus = "PENDING"
	AbsenceRejected AbsenceStatus = "REJECTED"
)

// Absence is a leave interval for a user or surgeon. The engine reads
// absences, never writes them.
type Absence struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId,omitempty"`
	SurgeonID string        `json:"surgeonId,omitempty"`
	Start     Date          `json:"startDate"`
	End       Date          `json:"endDate"`
	Status    AbsenceStatus `json:"status"`
	Type      string        `json:"type"`
}

// Covers reports whether the absence interval includes the given day.
func (a Absence) Covers(day Date) bool {
	return a.Start.Compare(day) <= 0 && a.End.Compare(day) >= 0
}

// StaffProfile is the read-only directory entry the validator consults for
// sector membership and competences.
type StaffProfile struct {
	UserID   string   `json:"userId"`
	SectorID string   `json:"secteurId"`
	Skills   []string `json:"competences"`
	// Available mirrors the planner UI flag; unavailable staff cannot be
	// dropped onto a room.
	Available bool `json:"estDisponible"`
}

// HasSkills reports whether the profile covers every required skill.
func (s StaffProfile) HasSkills(required []string) bool {
	if len(required) == 0 {
		return true
	}
	owned := make(map[string]struct{}, len(s.Skills))
	for _, skill := range s.Skills {
		owned[skill] = struct{}{}
	}
	for _, skill := range required {
		if _, ok := owned[skill]; !ok {
			return false
		}
	}
	return true
}
