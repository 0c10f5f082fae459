package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/persistence"
	"github.com/example/bloc-scheduler/internal/testfixtures"
)

func TestPlanningRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanningRepository(newTestPool(t))

	planning := testfixtures.NewPlanning(
		testfixtures.WithAssignment("r1", "u1"),
		testfixtures.WithAssignment("r2", "u2"),
	)
	planning.Notes = "astreinte de nuit"

	saved, err := repo.SaveDayPlanning(ctx, planning)
	if err != nil {
		t.Fatalf("SaveDayPlanning failed: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("version = %d, want 1 on first save", saved.Version)
	}

	fetched, err := repo.GetDayPlanning(ctx, planning.Date, planning.SiteID)
	if err != nil {
		t.Fatalf("GetDayPlanning failed: %v", err)
	}
	if fetched.ID != planning.ID {
		t.Errorf("id = %q, want %q", fetched.ID, planning.ID)
	}
	if fetched.Status != bloc.StatusDraft {
		t.Errorf("status = %q, want DRAFT", fetched.Status)
	}
	if fetched.Notes != "astreinte de nuit" {
		t.Errorf("notes = %q", fetched.Notes)
	}
	if len(fetched.Rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(fetched.Rooms))
	}
	if fetched.Rooms[0].RoomID != "r1" || len(fetched.Rooms[0].Supervisors) != 1 {
		t.Errorf("first assignment = %+v, want r1 with one supervisor", fetched.Rooms[0])
	}
	if !fetched.CreatedAt.Equal(testfixtures.ReferenceTime()) {
		t.Errorf("created_at = %v, want reference time preserved", fetched.CreatedAt)
	}
}

func TestPlanningRepository_GetMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanningRepository(newTestPool(t))

	_, err := repo.GetDayPlanning(ctx, testfixtures.ReferenceDate(), "site-001")
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestPlanningRepository_Versioning(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanningRepository(newTestPool(t))

	planning := testfixtures.NewPlanning(testfixtures.WithAssignment("r1", "u1"))
	first, err := repo.SaveDayPlanning(ctx, planning)
	if err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second, err := repo.SaveDayPlanning(ctx, first)
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("version = %d, want 2 after update", second.Version)
	}
	if second.ID != first.ID {
		t.Fatalf("id changed across saves: %q vs %q", second.ID, first.ID)
	}

	// Replaying the stale copy must be rejected, never silently merged.
	_, err = repo.SaveDayPlanning(ctx, first)
	if !errors.Is(err, persistence.ErrStaleWrite) {
		t.Fatalf("error = %v, want ErrStaleWrite", err)
	}

	// A zero version skips the check; last write wins for callers that
	// never read first.
	fresh := planning
	fresh.Version = 0
	forced, err := repo.SaveDayPlanning(ctx, fresh)
	if err != nil {
		t.Fatalf("zero version save failed: %v", err)
	}
	if forced.Version != 3 {
		t.Fatalf("version = %d, want 3", forced.Version)
	}
}

func TestPlanningRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanningRepository(newTestPool(t))

	planning := testfixtures.NewPlanning(testfixtures.WithAssignment("r1", "u1"))
	if _, err := repo.SaveDayPlanning(ctx, planning); err != nil {
		t.Fatalf("seed planning: %v", err)
	}

	if err := repo.DeleteDayPlanning(ctx, planning.Date, planning.SiteID); err != nil {
		t.Fatalf("DeleteDayPlanning failed: %v", err)
	}
	if err := repo.DeleteDayPlanning(ctx, planning.Date, planning.SiteID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound on second delete", err)
	}
}

func TestPlanningRepository_RoomReferenced(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanningRepository(newTestPool(t))

	planning := testfixtures.NewPlanning(testfixtures.WithAssignment("r1", "u1"))
	if _, err := repo.SaveDayPlanning(ctx, planning); err != nil {
		t.Fatalf("seed planning: %v", err)
	}

	referenced, err := repo.RoomReferenced(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomReferenced failed: %v", err)
	}
	if !referenced {
		t.Fatal("expected r1 to be referenced")
	}

	referenced, err = repo.RoomReferenced(ctx, "r9")
	if err != nil {
		t.Fatalf("RoomReferenced failed: %v", err)
	}
	if referenced {
		t.Fatal("expected r9 to be unreferenced")
	}

	// Deleting the planning cascades to the reference table.
	if err := repo.DeleteDayPlanning(ctx, planning.Date, planning.SiteID); err != nil {
		t.Fatalf("DeleteDayPlanning failed: %v", err)
	}
	referenced, err = repo.RoomReferenced(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomReferenced failed: %v", err)
	}
	if referenced {
		t.Fatal("expected r1 to be released after delete")
	}
}

func TestPlanningRepository_SaveReconcilesRoomReferences(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanningRepository(newTestPool(t))

	planning := testfixtures.NewPlanning(testfixtures.WithAssignment("r1", "u1"))
	saved, err := repo.SaveDayPlanning(ctx, planning)
	if err != nil {
		t.Fatalf("seed planning: %v", err)
	}

	saved.Rooms = []bloc.RoomAssignment{{ID: "a2", RoomID: "r2"}}
	if _, err := repo.SaveDayPlanning(ctx, saved); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	referenced, err := repo.RoomReferenced(ctx, "r1")
	if err != nil {
		t.Fatalf("RoomReferenced failed: %v", err)
	}
	if referenced {
		t.Fatal("expected r1 to be released after the room was replaced")
	}
	referenced, err = repo.RoomReferenced(ctx, "r2")
	if err != nil {
		t.Fatalf("RoomReferenced failed: %v", err)
	}
	if !referenced {
		t.Fatal("expected r2 to be referenced after the update")
	}
}
