package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/bloc-scheduler/internal/bloc"
	"github.com/example/bloc-scheduler/internal/persistence"
	"github.com/example/bloc-scheduler/internal/rules"
)

// memoryStore is an in-memory PlanningStore with optimistic versioning,
// mirroring the sqlite repository semantics.
type memoryStore struct {
	plannings map[string]bloc.DayPlanning
	saveErr   error
	panicOn   bool
	saves     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{plannings: make(map[string]bloc.DayPlanning)}
}

func storeKey(date bloc.Date, siteID string) string {
	return date.String() + "|" + siteID
}

func (s *memoryStore) GetDayPlanning(ctx context.Context, date bloc.Date, siteID string) (bloc.DayPlanning, error) {
	planning, ok := s.plannings[storeKey(date, siteID)]
	if !ok {
		return bloc.DayPlanning{}, persistence.ErrNotFound
	}
	return planning.Clone(), nil
}

func (s *memoryStore) SaveDayPlanning(ctx context.Context, planning bloc.DayPlanning) (bloc.DayPlanning, error) {
	if s.panicOn {
		panic("store exploded")
	}
	if s.saveErr != nil {
		return bloc.DayPlanning{}, s.saveErr
	}
	s.saves++
	key := storeKey(planning.Date, planning.SiteID)
	current, exists := s.plannings[key]
	if exists {
		if planning.Version != 0 && planning.Version != current.Version {
			return bloc.DayPlanning{}, persistence.ErrStaleWrite
		}
		planning.ID = current.ID
		planning.Version = current.Version + 1
	} else {
		planning.Version = 1
	}
	s.plannings[key] = planning.Clone()
	return planning, nil
}

func (s *memoryStore) DeleteDayPlanning(ctx context.Context, date bloc.Date, siteID string) error {
	key := storeKey(date, siteID)
	if _, ok := s.plannings[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.plannings, key)
	return nil
}

func (s *memoryStore) RoomReferenced(ctx context.Context, roomID string) (bool, error) {
	for _, planning := range s.plannings {
		for _, assignment := range planning.Rooms {
			if assignment.RoomID == roomID {
				return true, nil
			}
		}
	}
	return false, nil
}

// memoryCatalog implements both CatalogStore and ConfigSource.
type memoryCatalog struct {
	rooms     map[string]bloc.Room
	sectors   map[string]bloc.Sector
	staff     []bloc.StaffProfile
	ruleSet   map[string]rules.SupervisionRule
	listCalls int
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		rooms:   make(map[string]bloc.Room),
		sectors: make(map[string]bloc.Sector),
		ruleSet: make(map[string]rules.SupervisionRule),
	}
}

func (c *memoryCatalog) SaveRoom(ctx context.Context, room bloc.Room) error {
	c.rooms[room.ID] = room
	return nil
}

func (c *memoryCatalog) GetRoom(ctx context.Context, id string) (bloc.Room, error) {
	room, ok := c.rooms[id]
	if !ok {
		return bloc.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (c *memoryCatalog) ListRooms(ctx context.Context) ([]bloc.Room, error) {
	c.listCalls++
	out := make([]bloc.Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memoryCatalog) DeleteRoom(ctx context.Context, id string) error {
	if _, ok := c.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(c.rooms, id)
	return nil
}

func (c *memoryCatalog) SaveSector(ctx context.Context, sector bloc.Sector) error {
	c.sectors[sector.ID] = sector
	return nil
}

func (c *memoryCatalog) GetSector(ctx context.Context, id string) (bloc.Sector, error) {
	sector, ok := c.sectors[id]
	if !ok {
		return bloc.Sector{}, persistence.ErrNotFound
	}
	return sector, nil
}

func (c *memoryCatalog) ListSectors(ctx context.Context) ([]bloc.Sector, error) {
	out := make([]bloc.Sector, 0, len(c.sectors))
	for _, sector := range c.sectors {
		out = append(out, sector)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memoryCatalog) DeleteSector(ctx context.Context, id string) error {
	if _, ok := c.sectors[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(c.sectors, id)
	return nil
}

func (c *memoryCatalog) ListStaff(ctx context.Context) ([]bloc.StaffProfile, error) {
	return c.staff, nil
}

func (c *memoryCatalog) SaveSupervisionRule(ctx context.Context, rule rules.SupervisionRule) error {
	c.ruleSet[rule.ID] = rule
	return nil
}

func (c *memoryCatalog) ListSupervisionRules(ctx context.Context) ([]rules.SupervisionRule, error) {
	out := make([]rules.SupervisionRule, 0, len(c.ruleSet))
	for _, rule := range c.ruleSet {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *memoryCatalog) DeleteSupervisionRule(ctx context.Context, id string) error {
	if _, ok := c.ruleSet[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(c.ruleSet, id)
	return nil
}

// absenceStub returns a fixed absence list.
type absenceStub struct {
	absences []bloc.Absence
}

func (s *absenceStub) ListApprovedAbsences(ctx context.Context, userIDs, surgeonIDs []string, window bloc.DateRange) ([]bloc.Absence, error) {
	return s.absences, nil
}

// templateStub feeds the expander a fixed template list.
type templateStub struct {
	templates []bloc.Template
}

func (s *templateStub) ListTemplates(ctx context.Context, ids []string, siteID string) ([]bloc.Template, error) {
	return s.templates, nil
}

// seedCatalog populates one cardio sector with three ordered rooms and two
// available staff members.
func seedCatalog(catalog *memoryCatalog) {
	catalog.sectors["cardio"] = bloc.Sector{
		ID: "cardio", Name: "Cardiologie", Active: true,
		RoomIDs: []string{"r1", "r2", "r3"},
	}
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("r%d", i)
		catalog.rooms[id] = bloc.Room{
			ID: id, Number: fmt.Sprintf("%d", i), SectorID: "cardio", Active: true,
		}
	}
	catalog.staff = []bloc.StaffProfile{
		{UserID: "u1", SectorID: "cardio", Skills: []string{"cardio"}, Available: true},
		{UserID: "u2", SectorID: "cardio", Skills: []string{"cardio"}, Available: true},
	}
}
