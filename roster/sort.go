package roster

import (
	"fmt"
	"sort"

	"github.com/matrix-org/room-roster/internal"
)

const (
	SortByRecency     = "by_recency"
	SortByName        = "by_name"
	SortByUnreadCount = "by_unread_count"
)

// RoomFinder resolves a room id into the room's current state.
type RoomFinder interface {
	ReadOnlyRoom(roomID string) *Room
}

// SortableRooms represents a list of rooms which can be sorted and updated. Maintains mappings of
// room IDs to current index positions after sorting.
type SortableRooms struct {
	finder        RoomFinder
	roomIDs       []string
	roomIDToIndex map[string]int // room_id -> index in roomIDs
}

func NewSortableRooms(finder RoomFinder, roomIDs []string) *SortableRooms {
	sr := &SortableRooms{
		finder:        finder,
		roomIDToIndex: make(map[string]int, len(roomIDs)),
	}
	for _, roomID := range roomIDs {
		sr.Add(roomID)
	}
	return sr
}

func (s *SortableRooms) IndexOf(roomID string) (int, bool) {
	index, ok := s.roomIDToIndex[roomID]
	return index, ok
}

// RoomIDs returns a copy of the current ordering.
func (s *SortableRooms) RoomIDs() []string {
	roomIDs := make([]string, len(s.roomIDs))
	copy(roomIDs, s.roomIDs)
	return roomIDs
}

// Add a room to the end of the list. Returns true if the room was added,
// false if it was already present.
func (s *SortableRooms) Add(roomID string) bool {
	_, exists := s.roomIDToIndex[roomID]
	if exists {
		return false
	}
	s.roomIDs = append(s.roomIDs, roomID)
	s.roomIDToIndex[roomID] = len(s.roomIDs) - 1
	return true
}

func (s *SortableRooms) Get(index int) string {
	internal.Assert(fmt.Sprintf("index is within len(rooms) %v < %v", index, len(s.roomIDs)), index < len(s.roomIDs))
	return s.roomIDs[index]
}

// Remove splices out the room and reindexes everything after it. Returns the
// index the room occupied, or -1 if it wasn't in the list.
func (s *SortableRooms) Remove(roomID string) int {
	index, ok := s.roomIDToIndex[roomID]
	if !ok {
		return -1
	}
	delete(s.roomIDToIndex, roomID)
	s.roomIDs = append(s.roomIDs[:index], s.roomIDs[index+1:]...)
	for i := index; i < len(s.roomIDs); i++ {
		s.roomIDToIndex[s.roomIDs[i]] = i
	}
	return index
}

func (s *SortableRooms) Len() int {
	return len(s.roomIDs)
}

// Sort the list by the given orders, applied in priority order. The sort is
// stable: rooms which compare equal under every order keep their previous
// relative positions, which is what gives equal-timestamp rooms a
// deterministic order based on when they entered the list.
func (s *SortableRooms) Sort(sortBy []string) error {
	internal.Assert("sortBy is not empty", len(sortBy) != 0)
	comparators := []func(i, j int) int{}
	for _, sortOrder := range sortBy {
		switch sortOrder {
		case SortByRecency:
			comparators = append(comparators, s.comparatorSortByRecency)
		case SortByName:
			comparators = append(comparators, s.comparatorSortByName)
		case SortByUnreadCount:
			comparators = append(comparators, s.comparatorSortByUnreadCount)
		default:
			return fmt.Errorf("unknown sort order: %s", sortOrder)
		}
	}
	sort.SliceStable(s.roomIDs, func(i, j int) bool {
		for _, fn := range comparators {
			val := fn(i, j)
			if val == 1 {
				return true
			} else if val == -1 {
				return false
			}
			// continue to next comparator as these are equal
		}
		// the two items are identical
		return false
	})
	for i := range s.roomIDs {
		s.roomIDToIndex[s.roomIDs[i]] = i
	}

	return nil
}

// Comparator functions: -1 = false, +1 = true, 0 = match

func (s *SortableRooms) resolveRooms(i, j int) (ri, rj *Room) {
	ri = s.finder.ReadOnlyRoom(s.roomIDs[i])
	rj = s.finder.ReadOnlyRoom(s.roomIDs[j])
	return
}

// recencyTimestamp returns the timestamp a room sorts under: rooms with no
// message yet sort as timestamp 0, i.e last.
func recencyTimestamp(r *Room) uint64 {
	if r == nil || r.LastMessage.IsZero() {
		return 0
	}
	return r.LastMessage.Timestamp
}

func (s *SortableRooms) comparatorSortByRecency(i, j int) int {
	ri, rj := s.resolveRooms(i, j)
	tsRi := recencyTimestamp(ri)
	tsRj := recencyTimestamp(rj)
	if tsRi == tsRj {
		return 0
	}
	if tsRi > tsRj {
		return 1
	}
	return -1
}

func (s *SortableRooms) comparatorSortByName(i, j int) int {
	ri, rj := s.resolveRooms(i, j)
	if ri.Name == rj.Name {
		return 0
	}
	if ri.Name < rj.Name {
		return 1
	}
	return -1
}

func (s *SortableRooms) comparatorSortByUnreadCount(i, j int) int {
	ri, rj := s.resolveRooms(i, j)
	if ri.UnreadCount == rj.UnreadCount {
		return 0
	}
	if ri.UnreadCount > rj.UnreadCount {
		return 1
	}
	return -1
}
