package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/bloc-scheduler/internal/bloc"
)

// DragItemType identifies what is being dragged.
type DragItemType string

const (
	DragSupervisor DragItemType = "SUPERVISOR"
	DragPeriod     DragItemType = "PERIOD"
	DragTemplate   DragItemType = "TEMPLATE"
)

// DropTargetType identifies where the item is dropped.
type DropTargetType string

const (
	DropRoom     DropTargetType = "ROOM"
	DropPlanning DropTargetType = "PLANNING"
)

// DragItem is the payload of one proposed move.
type DragItem struct {
	Type DragItemType

	// Supervisor moves.
	UserID    string
	Role      bloc.SupervisorRole
	Available bool

	// Period moves: the supervisor entry and the exact period to relocate.
	SupervisorID string
	Period       bloc.Period

	// Template drops.
	Slots []bloc.TemplateSlot
}

// DropTarget names the destination of a move.
type DropTarget struct {
	Type   DropTargetType
	RoomID string
	Period bloc.Period
}

// DragDropResult reports the outcome of one move. The original item and
// target ride along for UI feedback; failures never escape as errors or
// panics.
type DragDropResult struct {
	Success bool
	Item    DragItem
	Target  DropTarget
	Error   string
	// Updated is the persisted planning after a successful move. The
	// caller's planning is never mutated; on failure it remains current.
	Updated *bloc.DayPlanning
}

// DragDropService applies interactive planning mutations. Each move is
// validated, applied to a deep copy of the planning, and persisted; a failed
// persist leaves the caller's planning untouched, so engine state never
// diverges from storage.
type DragDropService struct {
	store       PlanningStore
	config      ConfigSource
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDragDropService wires dependencies for drag-and-drop mutations.
func NewDragDropService(store PlanningStore, config ConfigSource, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DragDropService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DragDropService{
		store:       store,
		config:      config,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// HandleDrop validates and applies one move. Every internal fault, including
// a panic, is converted into a failed result.
func (s *DragDropService) HandleDrop(ctx context.Context, item DragItem, target DropTarget, planning bloc.DayPlanning) (result DragDropResult) {
	result = DragDropResult{Item: item, Target: target}
	if s == nil {
		result.Error = "drag drop service not configured"
		return result
	}

	logger := serviceLogger(ctx, s.logger, "DragDropService", "HandleDrop",
		"item_type", string(item.Type),
		"target_room", target.RoomID,
	)
	defer func() {
		if r := recover(); r != nil {
			result = DragDropResult{Item: item, Target: target, Error: fmt.Sprintf("internal fault: %v", r)}
		}
		if !result.Success {
			logger.WarnContext(ctx, "drop rejected", "reason", result.Error)
			return
		}
		logger.InfoContext(ctx, "drop applied")
	}()

	if reason, ok := s.validateDrop(ctx, item, target, planning); !ok {
		result.Error = reason
		return result
	}

	working := planning.Clone()

	switch {
	case item.Type == DragSupervisor && target.Type == DropRoom:
		if reason, ok := applySupervisorToRoom(&working, item, target, s.idGenerator); !ok {
			result.Error = reason
			return result
		}
	case item.Type == DragPeriod && target.Type == DropRoom:
		if reason, ok := applyPeriodToRoom(&working, item, target, s.idGenerator); !ok {
			result.Error = reason
			return result
		}
	case item.Type == DragTemplate && target.Type == DropPlanning:
		applyTemplateToPlanning(&working, item.Slots, s.idGenerator)
	default:
		result.Error = fmt.Sprintf("unsupported move: %s onto %s", item.Type, target.Type)
		return result
	}

	working.UpdatedAt = s.now()

	// Persistence honors the caller's context; a cancellation arriving
	// after apply still reaches the store, which reports the outcome.
	persisted, err := s.store.SaveDayPlanning(ctx, working)
	if err != nil {
		mapped := mapRepoError(err)
		result.Error = fmt.Sprintf("persistence failed: %v", mapped)
		return result
	}

	result.Success = true
	result.Updated = &persisted
	return result
}

// validateDrop checks the preconditions shared by every move kind.
func (s *DragDropService) validateDrop(ctx context.Context, item DragItem, target DropTarget, planning bloc.DayPlanning) (string, bool) {
	if planning.Date.IsZero() {
		return "planning is not loaded", false
	}

	if target.Type == DropRoom {
		assignment := planning.Assignment(target.RoomID)
		if assignment == nil {
			return fmt.Sprintf("room %s is not part of the planning", target.RoomID), false
		}
		if s.config != nil {
			if room, ok := s.lookupRoom(ctx, target.RoomID); ok && room.Unavailable {
				return fmt.Sprintf("room %s is unavailable", target.RoomID), false
			}
		}
	}

	if item.Type == DragSupervisor && !item.Available {
		return "supervisor is not available on this date", false
	}

	if item.Type == DragPeriod {
		if err := item.Period.Validate(); err != nil {
			return err.Error(), false
		}
	}

	return "", true
}

func (s *DragDropService) lookupRoom(ctx context.Context, roomID string) (bloc.Room, bool) {
	roomList, err := s.config.ListRooms(ctx)
	if err != nil {
		return bloc.Room{}, false
	}
	for _, room := range roomList {
		if room.ID == roomID {
			return room, true
		}
	}
	return bloc.Room{}, false
}

// applySupervisorToRoom attaches a new supervisor entry to the target room.
// Nothing is removed elsewhere; this is an addition, not a move.
func applySupervisorToRoom(planning *bloc.DayPlanning, item DragItem, target DropTarget, idGenerator func() string) (string, bool) {
	assignment := planning.Assignment(target.RoomID)
	if assignment == nil {
		return fmt.Sprintf("room %s not found in planning", target.RoomID), false
	}

	period := target.Period
	if period == (bloc.Period{}) {
		period = bloc.Period{Debut: "08:00", Fin: "18:00"}
	}
	role := item.Role
	if role == "" {
		role = bloc.RolePrincipal
	}

	assignment.Supervisors = append(assignment.Supervisors, bloc.Supervisor{
		ID:      idGenerator(),
		UserID:  item.UserID,
		Role:    role,
		Periods: []bloc.Period{period},
	})
	return "", true
}

// applyPeriodToRoom relocates one period from its current supervisor entry
// to the target room. When the target room already has an entry for the same
// user the period merges into it; a source entry left without periods is
// removed entirely.
func applyPeriodToRoom(planning *bloc.DayPlanning, item DragItem, target DropTarget, idGenerator func() string) (string, bool) {
	var (
		source     *bloc.RoomAssignment
		supervisor *bloc.Supervisor
	)
	for i := range planning.Rooms {
		for j := range planning.Rooms[i].Supervisors {
			candidate := &planning.Rooms[i].Supervisors[j]
			if candidate.ID != item.SupervisorID {
				continue
			}
			for _, period := range candidate.Periods {
				if period == item.Period {
					source = &planning.Rooms[i]
					supervisor = candidate
					break
				}
			}
		}
	}
	if source == nil || supervisor == nil {
		return "supervisor or period not found in planning", false
	}

	targetAssignment := planning.Assignment(target.RoomID)
	if targetAssignment == nil {
		return fmt.Sprintf("room %s not found in planning", target.RoomID), false
	}
	if source.RoomID == target.RoomID {
		return "period is already in the target room", false
	}

	remaining := supervisor.Periods[:0]
	for _, period := range supervisor.Periods {
		if period != item.Period {
			remaining = append(remaining, period)
		}
	}
	supervisor.Periods = remaining

	merged := false
	for i := range targetAssignment.Supervisors {
		if targetAssignment.Supervisors[i].UserID == supervisor.UserID {
			targetAssignment.Supervisors[i].Periods = append(targetAssignment.Supervisors[i].Periods, item.Period)
			merged = true
			break
		}
	}
	if !merged {
		targetAssignment.Supervisors = append(targetAssignment.Supervisors, bloc.Supervisor{
			ID:      idGenerator(),
			UserID:  supervisor.UserID,
			Role:    supervisor.Role,
			Periods: []bloc.Period{item.Period},
		})
	}

	// A supervisor entry always carries at least one period; collect the
	// empties left behind by the move.
	kept := source.Supervisors[:0]
	for _, entry := range source.Supervisors {
		if len(entry.Periods) > 0 {
			kept = append(kept, entry)
		}
	}
	source.Supervisors = kept

	return "", true
}

// applyTemplateToPlanning appends every slot of the template payload,
// creating room assignments as needed.
func applyTemplateToPlanning(planning *bloc.DayPlanning, slots []bloc.TemplateSlot, idGenerator func() string) {
	for _, slot := range slots {
		assignment := planning.Assignment(slot.RoomID)
		if assignment == nil {
			planning.Rooms = append(planning.Rooms, bloc.RoomAssignment{
				ID:     idGenerator(),
				RoomID: slot.RoomID,
			})
			assignment = &planning.Rooms[len(planning.Rooms)-1]
		}
		if slot.SurgeonID != "" {
			assignment.SurgeonID = slot.SurgeonID
		}
		if slot.UserID == "" {
			continue
		}
		role := slot.Role
		if role == "" {
			role = bloc.RolePrincipal
		}
		assignment.Supervisors = append(assignment.Supervisors, bloc.Supervisor{
			ID:      idGenerator(),
			UserID:  slot.UserID,
			Role:    role,
			Periods: []bloc.Period{slot.Period},
		})
	}
}
