package bloc

// Index provides the lookup structures the validator and mutation engine
// need. Entities reference each other by identifier only; the index is the
// single place cross-references are resolved, so no entity carries a mutable
// back-pointer.
type Index struct {
	rooms   map[string]Room
	sectors map[string]Sector
	staff   map[string]StaffProfile
	// roomPositions maps sectorID -> roomID -> position in the sector's
	// ordered room list.
	roomPositions map[string]map[string]int
}

// NewIndex builds an index over the given configuration entities.
func NewIndex(rooms []Room, sectors []Sector, staff []StaffProfile) *Index {
	idx := &Index{
		rooms:         make(map[string]Room, len(rooms)),
		sectors:       make(map[string]Sector, len(sectors)),
		staff:         make(map[string]StaffProfile, len(staff)),
		roomPositions: make(map[string]map[string]int, len(sectors)),
	}
	for _, room := range rooms {
		idx.rooms[room.ID] = room
	}
	for _, sector := range sectors {
		idx.sectors[sector.ID] = sector
		positions := make(map[string]int, len(sector.RoomIDs))
		for pos, roomID := range sector.RoomIDs {
			positions[roomID] = pos
		}
		idx.roomPositions[sector.ID] = positions
	}
	for _, profile := range staff {
		idx.staff[profile.UserID] = profile
	}
	return idx
}

// Room looks up a room by identifier.
func (idx *Index) Room(id string) (Room, bool) {
	room, ok := idx.rooms[id]
	return room, ok
}

// Sector looks up a sector by identifier.
func (idx *Index) Sector(id string) (Sector, bool) {
	sector, ok := idx.sectors[id]
	return sector, ok
}

// Staff looks up a staff profile by user identifier.
func (idx *Index) Staff(userID string) (StaffProfile, bool) {
	profile, ok := idx.staff[userID]
	return profile, ok
}

// RoomsInSector returns the sector's rooms in their configured order.
func (idx *Index) RoomsInSector(sectorID string) []Room {
	sector, ok := idx.sectors[sectorID]
	if !ok {
		return nil
	}
	rooms := make([]Room, 0, len(sector.RoomIDs))
	for _, roomID := range sector.RoomIDs {
		if room, exists := idx.rooms[roomID]; exists {
			rooms = append(rooms, room)
		}
	}
	return rooms
}

// RoomPosition returns the position of a room within its sector's ordering.
// The second result is false when the sector or room is unknown.
func (idx *Index) RoomPosition(sectorID, roomID string) (int, bool) {
	positions, ok := idx.roomPositions[sectorID]
	if !ok {
		return 0, false
	}
	pos, ok := positions[roomID]
	return pos, ok
}

// Contiguous reports whether the given rooms form one uninterrupted block in
// the sector's room ordering. Sets of zero or one room are contiguous.
func (idx *Index) Contiguous(sectorID string, roomIDs []string) bool {
	if len(roomIDs) <= 1 {
		return true
	}
	min, max := -1, -1
	for _, roomID := range roomIDs {
		pos, ok := idx.RoomPosition(sectorID, roomID)
		if !ok {
			return false
		}
		if min == -1 || pos < min {
			min = pos
		}
		if pos > max {
			max = pos
		}
	}
	return max-min+1 == len(roomIDs)
}
