package validation

import (
	"reflect"
	"testing"
	"time"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/rules"
)

var monday = bloc.NewDate(2025, time.January, 13)

func testIndex() *bloc.Index {
	rooms := []bloc.Room{
		{ID: "r1", Number: "1", SectorID: "cardio", Active: true},
		{ID: "r2", Number: "2", SectorID: "cardio", Active: true},
		{ID: "r3", Number: "3", SectorID: "cardio", Active: true},
		{ID: "r4", Number: "4", SectorID: "ortho", Active: true},
	}
	sectors := []bloc.Sector{
		{ID: "cardio", Name: "Cardiologie", Active: true, RoomIDs: []string{"r1", "r2", "r3"}},
		{ID: "ortho", Name: "Orthopédie", Active: true, RoomIDs: []string{"r4"}},
	}
	staff := []bloc.StaffProfile{
		{UserID: "u-cardio", SectorID: "cardio", Skills: []string{"cardio"}, Available: true},
		{UserID: "u-cardio2", SectorID: "cardio", Skills: []string{"cardio"}, Available: true},
		{UserID: "u-ortho", SectorID: "ortho", Skills: []string{"ortho"}, Available: true},
	}
	return bloc.NewIndex(rooms, sectors, staff)
}

func mustCatalog(t *testing.T, ruleSet ...rules.SupervisionRule) *rules.Catalog {
	t.Helper()
	catalog, err := rules.NewCatalog(ruleSet)
	if err != nil {
		t.Fatalf("NewCatalog returned error: %v", err)
	}
	return catalog
}

func assignment(roomID, userID string, periods ...bloc.Period) bloc.RoomAssignment {
	if len(periods) == 0 {
		periods = []bloc.Period{{Debut: "08:00", Fin: "18:00"}}
	}
	return bloc.RoomAssignment{
		ID:     roomID + "-" + userID,
		RoomID: roomID,
		Supervisors: []bloc.Supervisor{{
			ID:      "sup-" + roomID + "-" + userID,
			UserID:  userID,
			Role:    bloc.RolePrincipal,
			Periods: periods,
		}},
	}
}

func planningWith(assignments ...bloc.RoomAssignment) bloc.DayPlanning {
	return bloc.DayPlanning{
		ID:     "p1",
		Date:   monday,
		SiteID: "site-1",
		Status: bloc.StatusDraft,
		Rooms:  assignments,
	}
}

func issuesWithCode(issues []Issue, code string) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Code == code {
			out = append(out, issue)
		}
	}
	return out
}

func TestValidate_StructuralChecks(t *testing.T) {
	catalog := mustCatalog(t)
	index := testIndex()

	t.Run("clean planning is valid", func(t *testing.T) {
		planning := planningWith(assignment("r1", "u-cardio"))
		result := Validate(planning, catalog, index, nil)
		if !result.Valid {
			t.Fatalf("expected valid result, got issues %v", result.Issues())
		}
	})

	t.Run("unknown room is an error", func(t *testing.T) {
		planning := planningWith(assignment("r-ghost", "u-cardio"))
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "unknown-room")) != 1 {
			t.Fatalf("expected one unknown-room error, got %v", result.Errors)
		}
	})

	t.Run("room without supervisor is an error", func(t *testing.T) {
		planning := planningWith(bloc.RoomAssignment{ID: "a1", RoomID: "r1"})
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "missing-supervisor")) != 1 {
			t.Fatalf("expected one missing-supervisor error, got %v", result.Errors)
		}
	})

	t.Run("supervisor without period is a warning", func(t *testing.T) {
		planning := planningWith(bloc.RoomAssignment{
			ID:     "a1",
			RoomID: "r1",
			Supervisors: []bloc.Supervisor{{
				ID: "s1", UserID: "u-cardio", Role: bloc.RolePrincipal,
			}},
		})
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Warnings, "missing-period")) != 1 {
			t.Fatalf("expected one missing-period warning, got %v", result.Warnings)
		}
		if !result.Valid {
			t.Fatal("warnings alone must not invalidate the planning")
		}
	})

	t.Run("overlapping periods of one supervisor are an error", func(t *testing.T) {
		planning := planningWith(assignment("r1", "u-cardio",
			bloc.Period{Debut: "08:00", Fin: "12:00"},
			bloc.Period{Debut: "11:00", Fin: "14:00"},
		))
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "period-overlap")) != 1 {
			t.Fatalf("expected one period-overlap error, got %v", result.Errors)
		}
	})

	t.Run("two overlapping principals in one room are an error", func(t *testing.T) {
		a := assignment("r1", "u-cardio")
		a.Supervisors = append(a.Supervisors, bloc.Supervisor{
			ID: "s2", UserID: "u-cardio2", Role: bloc.RolePrincipal,
			Periods: []bloc.Period{{Debut: "10:00", Fin: "14:00"}},
		})
		result := Validate(planningWith(a), catalog, index, nil)
		if len(issuesWithCode(result.Errors, "duplicate-principal")) != 1 {
			t.Fatalf("expected one duplicate-principal error, got %v", result.Errors)
		}
	})
}

func TestValidate_MaxRooms(t *testing.T) {
	index := testIndex()

	t.Run("cap violation yields exactly one error", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "max2", Type: rules.TypeBasic, Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 2}},
		})
		planning := planningWith(
			assignment("r1", "u-cardio"),
			assignment("r2", "u-cardio"),
			assignment("r3", "u-cardio"),
		)
		result := Validate(planning, catalog, index, nil)
		exceeded := issuesWithCode(result.Errors, "max-rooms-exceeded")
		if len(exceeded) != 1 {
			t.Fatalf("expected exactly one max-rooms-exceeded error, got %d", len(exceeded))
		}
		// Double booking fires too: three principal roles over the same
		// working day. The cap error itself must stay singular.
	})

	t.Run("count at the cap passes", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "max2", Type: rules.TypeBasic, Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 2}},
		})
		planning := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "12:00"}),
			assignment("r2", "u-cardio", bloc.Period{Debut: "13:00", Fin: "18:00"}),
		)
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "max-rooms-exceeded")) != 0 {
			t.Fatalf("expected no cap error at the limit, got %v", result.Errors)
		}
	})

	t.Run("exception rule degrades the overrun to a warning", func(t *testing.T) {
		catalog := mustCatalog(t,
			rules.SupervisionRule{
				ID: "max2", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 1, Active: true,
				Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 2}},
			},
			rules.SupervisionRule{
				ID: "shortage", Type: rules.TypeException, SectorID: "cardio", Priority: 9, Active: true,
				Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 2, ExceptionalMax: 3}},
			},
		)
		planning := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "10:00"}),
			assignment("r2", "u-cardio", bloc.Period{Debut: "10:00", Fin: "12:00"}),
			assignment("r3", "u-cardio", bloc.Period{Debut: "12:00", Fin: "14:00"}),
		)
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Warnings, "max-rooms-exceptional")) != 1 {
			t.Fatalf("expected one max-rooms-exceptional warning, got %v", result.Warnings)
		}
		if len(issuesWithCode(result.Errors, "max-rooms-exceeded")) != 0 {
			t.Fatalf("overrun within the exceptional ceiling must not be an error, got %v", result.Errors)
		}
	})
}

func TestValidate_SectorRules(t *testing.T) {
	index := testIndex()

	t.Run("specific rules supersede basic with an info", func(t *testing.T) {
		catalog := mustCatalog(t,
			rules.SupervisionRule{
				ID: "basic-max1", Type: rules.TypeBasic, Priority: 1, Active: true,
				Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 1}},
			},
			rules.SupervisionRule{
				ID: "cardio-max3", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 2, Active: true,
				Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 3}},
			},
		)
		planning := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "10:00"}),
			assignment("r2", "u-cardio", bloc.Period{Debut: "10:00", Fin: "12:00"}),
		)
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Infos, "rule-superseded")) != 1 {
			t.Fatalf("expected a rule-superseded info, got %v", result.Infos)
		}
		if len(issuesWithCode(result.Errors, "max-rooms-exceeded")) != 0 {
			t.Fatalf("the specific max of 3 should govern, got %v", result.Errors)
		}
	})

	t.Run("internal supervision flags outsiders", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "internal", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.InternalSupervisionConstraint{}},
		})
		result := Validate(planningWith(assignment("r1", "u-ortho")), catalog, index, nil)
		if len(issuesWithCode(result.Errors, "external-supervision")) != 1 {
			t.Fatalf("expected one external-supervision error, got %v", result.Errors)
		}
	})

	t.Run("allowed external sectors pass", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "internal", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.InternalSupervisionConstraint{AllowedSectors: []string{"ortho"}}},
		})
		result := Validate(planningWith(assignment("r1", "u-ortho")), catalog, index, nil)
		if len(issuesWithCode(result.Errors, "external-supervision")) != 0 {
			t.Fatalf("ortho is allowed, got %v", result.Errors)
		}
	})

	t.Run("non-contiguous rooms are flagged", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "contig", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.ContiguityConstraint{}},
		})
		planning := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "10:00"}),
			assignment("r3", "u-cardio", bloc.Period{Debut: "10:00", Fin: "12:00"}),
		)
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "non-contiguous-rooms")) != 1 {
			t.Fatalf("expected one non-contiguous-rooms error, got %v", result.Errors)
		}

		adjacent := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "10:00"}),
			assignment("r2", "u-cardio", bloc.Period{Debut: "10:00", Fin: "12:00"}),
		)
		result = Validate(adjacent, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "non-contiguous-rooms")) != 0 {
			t.Fatalf("adjacent rooms should pass, got %v", result.Errors)
		}
	})

	t.Run("missing skills are flagged", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "skills", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.SkillConstraint{Required: []string{"cardio"}}},
		})
		result := Validate(planningWith(assignment("r1", "u-ortho")), catalog, index, nil)
		if len(issuesWithCode(result.Errors, "missing-skills")) != 1 {
			t.Fatalf("expected one missing-skills error, got %v", result.Errors)
		}

		result = Validate(planningWith(assignment("r1", "u-cardio")), catalog, index, nil)
		if len(issuesWithCode(result.Errors, "missing-skills")) != 0 {
			t.Fatalf("u-cardio owns the skill, got %v", result.Errors)
		}
	})

	t.Run("incompatible sector membership is flagged", func(t *testing.T) {
		catalog := mustCatalog(t, rules.SupervisionRule{
			ID: "incompat", Type: rules.TypeSpecific, SectorID: "cardio", Priority: 1, Active: true,
			Constraints: []rules.Constraint{rules.IncompatibilityConstraint{SectorIDs: []string{"ortho"}}},
		})
		result := Validate(planningWith(assignment("r1", "u-ortho")), catalog, index, nil)
		if len(issuesWithCode(result.Errors, "incompatible-sector")) != 1 {
			t.Fatalf("expected one incompatible-sector error, got %v", result.Errors)
		}
	})
}

func TestValidate_DoubleBooking(t *testing.T) {
	catalog := mustCatalog(t)
	index := testIndex()

	t.Run("overlapping principal roles in two rooms", func(t *testing.T) {
		planning := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "12:00"}),
			assignment("r2", "u-cardio", bloc.Period{Debut: "11:00", Fin: "14:00"}),
		)
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "double-booking")) != 1 {
			t.Fatalf("expected one double-booking error, got %v", result.Errors)
		}
	})

	t.Run("disjoint periods in two rooms pass", func(t *testing.T) {
		planning := planningWith(
			assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "12:00"}),
			assignment("r2", "u-cardio", bloc.Period{Debut: "13:00", Fin: "18:00"}),
		)
		result := Validate(planning, catalog, index, nil)
		if len(issuesWithCode(result.Errors, "double-booking")) != 0 {
			t.Fatalf("disjoint periods should pass, got %v", result.Errors)
		}
	})
}

func TestValidate_Absences(t *testing.T) {
	catalog := mustCatalog(t)
	index := testIndex()

	t.Run("assigned supervisor with approved absence", func(t *testing.T) {
		absences := []bloc.Absence{{
			ID: "abs-1", UserID: "u-cardio",
			Start: monday, End: monday,
			Status: bloc.AbsenceApproved,
		}}
		result := Validate(planningWith(assignment("r1", "u-cardio")), catalog, index, absences)
		if len(issuesWithCode(result.Errors, "assigned-while-absent")) != 1 {
			t.Fatalf("expected one assigned-while-absent error, got %v", result.Errors)
		}
	})

	t.Run("pending absence does not block", func(t *testing.T) {
		absences := []bloc.Absence{{
			ID: "abs-1", UserID: "u-cardio",
			Start: monday, End: monday,
			Status: bloc.AbsencePending,
		}}
		result := Validate(planningWith(assignment("r1", "u-cardio")), catalog, index, absences)
		if len(issuesWithCode(result.Errors, "assigned-while-absent")) != 0 {
			t.Fatalf("pending absence must not flag, got %v", result.Errors)
		}
	})

	t.Run("absent surgeon is flagged once", func(t *testing.T) {
		a := assignment("r1", "u-cardio")
		a.SurgeonID = "dr-x"
		b := assignment("r2", "u-cardio2")
		b.SurgeonID = "dr-x"
		absences := []bloc.Absence{{
			ID: "abs-1", SurgeonID: "dr-x",
			Start: monday, End: monday,
			Status: bloc.AbsenceApproved,
		}}
		result := Validate(planningWith(a, b), catalog, index, absences)
		if len(issuesWithCode(result.Errors, "assigned-while-absent")) != 1 {
			t.Fatalf("expected exactly one finding for dr-x, got %v", result.Errors)
		}
	})
}

func TestValidate_Deterministic(t *testing.T) {
	catalog := mustCatalog(t, rules.SupervisionRule{
		ID: "max1", Type: rules.TypeBasic, Priority: 1, Active: true,
		Constraints: []rules.Constraint{rules.MaxRoomsConstraint{Max: 1}},
	})
	index := testIndex()
	planning := planningWith(
		assignment("r1", "u-cardio", bloc.Period{Debut: "08:00", Fin: "10:00"}),
		assignment("r2", "u-cardio", bloc.Period{Debut: "10:00", Fin: "12:00"}),
		assignment("r4", "u-ortho"),
	)

	first := Validate(planning, catalog, index, nil)
	second := Validate(planning, catalog, index, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("validation is not deterministic for identical input")
	}
	for _, issue := range first.Issues() {
		if issue.ID == "" {
			t.Fatalf("issue %q has no identifier", issue.Code)
		}
	}
}
