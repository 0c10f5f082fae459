// Package validation evaluates a day planning against the supervision rule
// catalog, producing a structured list of findings. Validation is a pure
// function of its inputs: it has no side effects and identical input yields
// identical output.
package validation

import (
	"fmt"
	"sort"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/rules"
)

// roomRef captures where a supervisor appears, for cross-room checks.
type roomRef struct {
	roomID   string
	sectorID string
	periods  []bloc.Period
	role     bloc.SupervisorRole
}

// Validate checks the planning against the catalog. The index supplies room,
// sector, and staff lookups; absences are the APPROVED absences covering the
// planning's date, fetched by the caller.
func Validate(planning bloc.DayPlanning, catalog *rules.Catalog, index *bloc.Index, absences []bloc.Absence) Result {
	result := Result{}

	byUser := make(map[string][]roomRef)
	sectorsSeen := make([]string, 0, 4)
	sectorSeenSet := make(map[string]struct{})

	for _, assignment := range planning.Rooms {
		room, roomKnown := index.Room(assignment.RoomID)
		if !roomKnown {
			result.add(newIssue("unknown-room", "",
				fmt.Sprintf("room %s does not exist", assignment.RoomID),
				SeverityError, EntityRef{EntityRoom, assignment.RoomID}))
			continue
		}

		sectorID := room.SectorID
		if _, known := index.Sector(sectorID); !known {
			result.add(newIssue("unknown-sector", "",
				fmt.Sprintf("sector %s of room %s does not exist", sectorID, room.ID),
				SeverityWarning, EntityRef{EntityRoom, room.ID}))
		} else if _, seen := sectorSeenSet[sectorID]; !seen {
			sectorSeenSet[sectorID] = struct{}{}
			sectorsSeen = append(sectorsSeen, sectorID)
		}

		if len(assignment.Supervisors) == 0 {
			result.add(newIssue("missing-supervisor", "",
				fmt.Sprintf("room %s has no supervisor assigned", room.ID),
				SeverityError, EntityRef{EntityRoom, room.ID}))
		}

		checkRoomSupervisors(&result, assignment, room, byUser)
	}

	checkSectorRules(&result, catalog, index, byUser, sectorsSeen)
	checkDoubleBooking(&result, byUser)
	checkAbsences(&result, planning, absences)

	result.finalize()
	return result
}

func checkRoomSupervisors(result *Result, assignment bloc.RoomAssignment, room bloc.Room, byUser map[string][]roomRef) {
	for _, supervisor := range assignment.Supervisors {
		if len(supervisor.Periods) == 0 {
			result.add(newIssue("missing-period", "",
				fmt.Sprintf("supervisor %s has no period defined in room %s", supervisor.UserID, room.ID),
				SeverityWarning, EntityRef{EntitySupervisor, supervisor.UserID}))
		}

		for i := 0; i < len(supervisor.Periods); i++ {
			for j := i + 1; j < len(supervisor.Periods); j++ {
				if supervisor.Periods[i].Overlaps(supervisor.Periods[j]) {
					result.add(newIssue("period-overlap", "",
						fmt.Sprintf("overlapping periods for supervisor %s in room %s", supervisor.UserID, room.ID),
						SeverityError, EntityRef{EntitySupervisor, supervisor.UserID}, EntityRef{EntityRoom, room.ID}))
				}
			}
		}

		byUser[supervisor.UserID] = append(byUser[supervisor.UserID], roomRef{
			roomID:   room.ID,
			sectorID: room.SectorID,
			periods:  supervisor.Periods,
			role:     supervisor.Role,
		})
	}

	// Two principals covering the same room at the same time is always a
	// contradiction, regardless of configured rules.
	for i := 0; i < len(assignment.Supervisors); i++ {
		for j := i + 1; j < len(assignment.Supervisors); j++ {
			a, b := assignment.Supervisors[i], assignment.Supervisors[j]
			if a.Role != bloc.RolePrincipal || b.Role != bloc.RolePrincipal || a.UserID == b.UserID {
				continue
			}
			if periodsOverlap(a.Periods, b.Periods) {
				result.add(newIssue("duplicate-principal", "",
					fmt.Sprintf("room %s has two principal supervisors (%s, %s) with overlapping periods", room.ID, a.UserID, b.UserID),
					SeverityError,
					EntityRef{EntityRoom, room.ID},
					EntityRef{EntitySupervisor, a.UserID},
					EntityRef{EntitySupervisor, b.UserID}))
			}
		}
	}
}

func checkSectorRules(result *Result, catalog *rules.Catalog, index *bloc.Index, byUser map[string][]roomRef, sectors []string) {
	userIDs := sortedKeys(byUser)

	for _, sectorID := range sectors {
		ruleSet, superseded := catalog.SectorRules(sectorID)
		if superseded {
			result.add(newIssue("rule-superseded", "",
				fmt.Sprintf("sector %s uses its specific rules instead of the basic rules", sectorID),
				SeverityInfo, EntityRef{EntitySector, sectorID}))
		}
		exceptional := exceptionalCeiling(catalog, sectorID)

		for _, rule := range ruleSet {
			for _, constraint := range rule.Constraints {
				switch c := constraint.(type) {
				case rules.MaxRoomsConstraint:
					checkMaxRooms(result, rule, c, exceptional, sectorID, byUser, userIDs)
				case rules.InternalSupervisionConstraint:
					checkInternalSupervision(result, rule, c, index, sectorID, byUser, userIDs)
				case rules.ContiguityConstraint:
					checkContiguity(result, rule, index, sectorID, byUser, userIDs)
				case rules.SkillConstraint:
					checkSkills(result, rule, c, index, sectorID, byUser, userIDs)
				case rules.IncompatibilityConstraint:
					checkIncompatibility(result, rule, c, index, sectorID, byUser, userIDs)
				}
			}
		}
	}
}

// exceptionCeiling is the max-rooms ceiling granted by an active exception
// rule, if any.
type exceptionCeiling struct {
	ruleID  string
	ceiling int
}

func exceptionalCeiling(catalog *rules.Catalog, sectorID string) exceptionCeiling {
	for _, rule := range catalog.ExceptionRules(sectorID) {
		for _, constraint := range rule.Constraints {
			if c, ok := constraint.(rules.MaxRoomsConstraint); ok && c.ExceptionalMax > 0 {
				return exceptionCeiling{ruleID: rule.ID, ceiling: c.ExceptionalMax}
			}
		}
	}
	return exceptionCeiling{}
}

func checkMaxRooms(result *Result, rule rules.SupervisionRule, c rules.MaxRoomsConstraint, exception exceptionCeiling, sectorID string, byUser map[string][]roomRef, userIDs []string) {
	if c.Max <= 0 {
		return
	}
	for _, userID := range userIDs {
		count := len(distinctRooms(byUser[userID], rule.SectorID))
		if count <= c.Max {
			continue
		}
		switch {
		case exception.ceiling > 0 && count <= exception.ceiling:
			result.add(newIssue("max-rooms-exceptional", exception.ruleID,
				fmt.Sprintf("supervisor %s covers more rooms than usual (%d > %d) but stays within the exceptional limit of %d",
					userID, count, c.Max, exception.ceiling),
				SeverityWarning, EntityRef{EntitySupervisor, userID}))
		case exception.ceiling > 0:
			result.add(newIssue("max-rooms-exceeded", exception.ruleID,
				fmt.Sprintf("supervisor %s is assigned too many rooms even for an exceptional situation (%d > %d)",
					userID, count, exception.ceiling),
				SeverityError, EntityRef{EntitySupervisor, userID}))
		default:
			result.add(newIssue("max-rooms-exceeded", rule.ID,
				fmt.Sprintf("supervisor %s is assigned too many rooms (%d > %d)", userID, count, c.Max),
				SeverityError, EntityRef{EntitySupervisor, userID}))
		}
	}
}

func checkInternalSupervision(result *Result, rule rules.SupervisionRule, c rules.InternalSupervisionConstraint, index *bloc.Index, sectorID string, byUser map[string][]roomRef, userIDs []string) {
	allowed := make(map[string]struct{}, len(c.AllowedSectors))
	for _, id := range c.AllowedSectors {
		allowed[id] = struct{}{}
	}
	for _, userID := range userIDs {
		rooms := distinctRooms(byUser[userID], sectorID)
		if len(rooms) == 0 {
			continue
		}
		profile, known := index.Staff(userID)
		if known && profile.SectorID == sectorID {
			continue
		}
		if known {
			if _, ok := allowed[profile.SectorID]; ok {
				continue
			}
		}
		result.add(newIssue("external-supervision", rule.ID,
			fmt.Sprintf("supervisor %s does not belong to sector %s and may not supervise its rooms", userID, sectorID),
			SeverityError, EntityRef{EntitySupervisor, userID}, EntityRef{EntitySector, sectorID}))
	}
}

func checkContiguity(result *Result, rule rules.SupervisionRule, index *bloc.Index, sectorID string, byUser map[string][]roomRef, userIDs []string) {
	for _, userID := range userIDs {
		rooms := distinctRooms(byUser[userID], sectorID)
		if len(rooms) <= 1 {
			continue
		}
		if !index.Contiguous(sectorID, rooms) {
			result.add(newIssue("non-contiguous-rooms", rule.ID,
				fmt.Sprintf("supervisor %s is assigned non-contiguous rooms in sector %s", userID, sectorID),
				SeverityError, EntityRef{EntitySupervisor, userID}, EntityRef{EntitySector, sectorID}))
		}
	}
}

func checkSkills(result *Result, rule rules.SupervisionRule, c rules.SkillConstraint, index *bloc.Index, sectorID string, byUser map[string][]roomRef, userIDs []string) {
	if len(c.Required) == 0 {
		return
	}
	for _, userID := range userIDs {
		if len(distinctRooms(byUser[userID], sectorID)) == 0 {
			continue
		}
		profile, known := index.Staff(userID)
		if known && profile.HasSkills(c.Required) {
			continue
		}
		result.add(newIssue("missing-skills", rule.ID,
			fmt.Sprintf("supervisor %s lacks required skills for sector %s", userID, sectorID),
			SeverityError, EntityRef{EntitySupervisor, userID}, EntityRef{EntitySector, sectorID}))
	}
}

func checkIncompatibility(result *Result, rule rules.SupervisionRule, c rules.IncompatibilityConstraint, index *bloc.Index, sectorID string, byUser map[string][]roomRef, userIDs []string) {
	forbidden := make(map[string]struct{}, len(c.SectorIDs))
	for _, id := range c.SectorIDs {
		forbidden[id] = struct{}{}
	}
	for _, userID := range userIDs {
		if len(distinctRooms(byUser[userID], sectorID)) == 0 {
			continue
		}
		profile, known := index.Staff(userID)
		if !known {
			continue
		}
		if _, ok := forbidden[profile.SectorID]; ok {
			result.add(newIssue("incompatible-sector", rule.ID,
				fmt.Sprintf("supervisor %s belongs to sector %s, incompatible with sector %s", userID, profile.SectorID, sectorID),
				SeverityError, EntityRef{EntitySupervisor, userID}, EntityRef{EntitySector, sectorID}))
		}
	}
}

// checkDoubleBooking flags users holding principal roles in different rooms
// with overlapping periods on the same day.
func checkDoubleBooking(result *Result, byUser map[string][]roomRef) {
	for _, userID := range sortedKeys(byUser) {
		refs := byUser[userID]
		for i := 0; i < len(refs); i++ {
			for j := i + 1; j < len(refs); j++ {
				a, b := refs[i], refs[j]
				if a.roomID == b.roomID {
					continue
				}
				if a.role != bloc.RolePrincipal || b.role != bloc.RolePrincipal {
					continue
				}
				if periodsOverlap(a.periods, b.periods) {
					result.add(newIssue("double-booking", "",
						fmt.Sprintf("supervisor %s holds principal roles in rooms %s and %s with overlapping periods", userID, a.roomID, b.roomID),
						SeverityError,
						EntityRef{EntitySupervisor, userID},
						EntityRef{EntityRoom, a.roomID},
						EntityRef{EntityRoom, b.roomID}))
				}
			}
		}
	}
}

// checkAbsences flags anyone appearing in the planning while covered by an
// approved absence on that date.
func checkAbsences(result *Result, planning bloc.DayPlanning, absences []bloc.Absence) {
	absent := make(map[string]struct{})
	for _, absence := range absences {
		if absence.Status != bloc.AbsenceApproved || !absence.Covers(planning.Date) {
			continue
		}
		if absence.UserID != "" {
			absent[absence.UserID] = struct{}{}
		}
		if absence.SurgeonID != "" {
			absent[absence.SurgeonID] = struct{}{}
		}
	}
	if len(absent) == 0 {
		return
	}
	flagged := make(map[string]struct{})
	for _, assignment := range planning.Rooms {
		if assignment.SurgeonID != "" {
			if _, away := absent[assignment.SurgeonID]; away {
				if _, done := flagged[assignment.SurgeonID]; !done {
					flagged[assignment.SurgeonID] = struct{}{}
					result.add(newIssue("assigned-while-absent", "",
						fmt.Sprintf("surgeon %s has an approved absence on %s", assignment.SurgeonID, planning.Date),
						SeverityError, EntityRef{EntitySupervisor, assignment.SurgeonID}))
				}
			}
		}
		for _, supervisor := range assignment.Supervisors {
			if _, away := absent[supervisor.UserID]; !away {
				continue
			}
			if _, done := flagged[supervisor.UserID]; done {
				continue
			}
			flagged[supervisor.UserID] = struct{}{}
			result.add(newIssue("assigned-while-absent", "",
				fmt.Sprintf("supervisor %s has an approved absence on %s", supervisor.UserID, planning.Date),
				SeverityError, EntityRef{EntitySupervisor, supervisor.UserID}))
		}
	}
}

// distinctRooms returns the sorted distinct room IDs a supervisor covers,
// optionally restricted to one sector (empty sectorID means all).
func distinctRooms(refs []roomRef, sectorID string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if sectorID != "" && ref.sectorID != sectorID {
			continue
		}
		if _, ok := seen[ref.roomID]; ok {
			continue
		}
		seen[ref.roomID] = struct{}{}
		out = append(out, ref.roomID)
	}
	sort.Strings(out)
	return out
}

func periodsOverlap(a, b []bloc.Period) bool {
	for _, pa := range a {
		for _, pb := range b {
			if pa.Overlaps(pb) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(m map[string][]roomRef) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
