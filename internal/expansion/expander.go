// Package expansion converts recurring staffing templates ("trames") into
// concrete per-day room assignments over a date range.
package expansion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/persistence"
)

// ErrInvalidRange indicates the requested date range runs backwards.
var ErrInvalidRange = errors.New("expansion: end date precedes start date")

// TemplateSource lists the templates to expand.
type TemplateSource interface {
	ListTemplates(ctx context.Context, ids []string, siteID string) ([]bloc.Template, error)
}

// AbsenceSource supplies approved absences for conflict checks.
type AbsenceSource interface {
	ListApprovedAbsences(ctx context.Context, userIDs, surgeonIDs []string, window bloc.DateRange) ([]bloc.Absence, error)
}

// PlanningSource loads existing plannings so expansion appends instead of
// overwriting.
type PlanningSource interface {
	GetDayPlanning(ctx context.Context, date bloc.Date, siteID string) (bloc.DayPlanning, error)
}

// Params describes one expansion request.
type Params struct {
	TemplateIDs []string
	Range       bloc.DateRange
	SiteID      string
}

// Expander materializes day plannings from templates. It consults the
// absence source so approved absences suppress the affected affectations;
// reporting the resulting gaps is the orchestrator's job.
type Expander struct {
	templates   TemplateSource
	absences    AbsenceSource
	plannings   PlanningSource
	idGenerator func() string
	now         func() time.Time
}

// NewExpander wires dependencies for template expansion.
func NewExpander(templates TemplateSource, absences AbsenceSource, plannings PlanningSource, idGenerator func() string, now func() time.Time) *Expander {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Expander{
		templates:   templates,
		absences:    absences,
		plannings:   plannings,
		idGenerator: idGenerator,
		now:         now,
	}
}

// Expand produces one day planning per calendar day that receives at least
// one affectation. Unknown or inactive template IDs are silently dropped;
// an empty template set yields an empty result. Plannings are returned in
// date order.
func (e *Expander) Expand(ctx context.Context, params Params) ([]bloc.DayPlanning, error) {
	if e == nil {
		return nil, fmt.Errorf("Expander is nil")
	}
	if params.Range.Start.IsZero() || params.Range.End.IsZero() {
		return nil, fmt.Errorf("expansion: date range is required")
	}
	if params.Range.End.Compare(params.Range.Start) < 0 {
		return nil, ErrInvalidRange
	}
	if len(params.TemplateIDs) == 0 {
		return nil, nil
	}

	templates, err := e.templates.ListTemplates(ctx, params.TemplateIDs, params.SiteID)
	if err != nil {
		return nil, err
	}
	active := templates[:0]
	for _, template := range templates {
		if template.Active {
			active = append(active, template)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	absentOn, err := e.loadAbsences(ctx, active, params.Range)
	if err != nil {
		return nil, err
	}

	var plannings []bloc.DayPlanning
	byDate := make(map[bloc.Date]int)

	for _, day := range params.Range.Days() {
		for _, template := range active {
			for _, slot := range template.Slots {
				if slot.Weekday != day.Weekday() {
					continue
				}

				// The day gets a planning as soon as a template targets it,
				// even when every affectation turns out to be blocked: an
				// incomplete planning is still returned, never a failure.
				idx, ok := byDate[day]
				if !ok {
					planning, err := e.planningFor(ctx, day, params.SiteID)
					if err != nil {
						return nil, err
					}
					byDate[day] = len(plannings)
					plannings = append(plannings, planning)
					idx = byDate[day]
				}

				if e.slotBlocked(slot, day, absentOn) {
					// An approved absence suppresses the affectation; no
					// substitute is ever picked automatically.
					continue
				}
				e.applySlot(&plannings[idx], slot)
			}
		}
	}

	return plannings, nil
}

// loadAbsences fetches every relevant approved absence for the range in one
// batched query and indexes it by person.
func (e *Expander) loadAbsences(ctx context.Context, templates []bloc.Template, window bloc.DateRange) (map[string][]bloc.Absence, error) {
	userSet := make(map[string]struct{})
	surgeonSet := make(map[string]struct{})
	for _, template := range templates {
		for _, slot := range template.Slots {
			if slot.UserID != "" {
				userSet[slot.UserID] = struct{}{}
			}
			if slot.SurgeonID != "" {
				surgeonSet[slot.SurgeonID] = struct{}{}
			}
		}
	}
	if e.absences == nil || (len(userSet) == 0 && len(surgeonSet) == 0) {
		return nil, nil
	}

	absences, err := e.absences.ListApprovedAbsences(ctx, keys(userSet), keys(surgeonSet), window)
	if err != nil {
		return nil, err
	}

	byPerson := make(map[string][]bloc.Absence)
	for _, absence := range absences {
		if absence.Status != bloc.AbsenceApproved {
			continue
		}
		if absence.UserID != "" {
			byPerson[absence.UserID] = append(byPerson[absence.UserID], absence)
		}
		if absence.SurgeonID != "" {
			byPerson[absence.SurgeonID] = append(byPerson[absence.SurgeonID], absence)
		}
	}
	return byPerson, nil
}

func (e *Expander) slotBlocked(slot bloc.TemplateSlot, day bloc.Date, absentOn map[string][]bloc.Absence) bool {
	for _, personID := range []string{slot.UserID, slot.SurgeonID} {
		if personID == "" {
			continue
		}
		for _, absence := range absentOn[personID] {
			if absence.Covers(day) {
				return true
			}
		}
	}
	return false
}

// planningFor loads the stored planning for the day, or starts a fresh draft.
func (e *Expander) planningFor(ctx context.Context, day bloc.Date, siteID string) (bloc.DayPlanning, error) {
	if e.plannings != nil {
		existing, err := e.plannings.GetDayPlanning(ctx, day, siteID)
		switch {
		case err == nil:
			return existing.Clone(), nil
		case !errors.Is(err, persistence.ErrNotFound):
			return bloc.DayPlanning{}, err
		}
	}
	created := e.now()
	return bloc.DayPlanning{
		ID:        e.idGenerator(),
		Date:      day,
		SiteID:    siteID,
		Status:    bloc.StatusDraft,
		CreatedAt: created,
		UpdatedAt: created,
	}, nil
}

// applySlot appends the slot's staffing to the planning, creating the room
// assignment when absent. Later templates append; conflicts are the
// validator's concern, not the expander's.
func (e *Expander) applySlot(planning *bloc.DayPlanning, slot bloc.TemplateSlot) {
	assignment := planning.Assignment(slot.RoomID)
	if assignment == nil {
		planning.Rooms = append(planning.Rooms, bloc.RoomAssignment{
			ID:     e.idGenerator(),
			RoomID: slot.RoomID,
		})
		assignment = &planning.Rooms[len(planning.Rooms)-1]
	}
	if slot.SurgeonID != "" && assignment.SurgeonID == "" {
		assignment.SurgeonID = slot.SurgeonID
	}
	if slot.UserID == "" {
		return
	}
	role := slot.Role
	if role == "" {
		role = bloc.RolePrincipal
	}
	assignment.Supervisors = append(assignment.Supervisors, bloc.Supervisor{
		ID:      e.idGenerator(),
		UserID:  slot.UserID,
		Role:    role,
		Periods: []bloc.Period{slot.Period},
	})
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
