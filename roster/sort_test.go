package roster

import (
	"reflect"
	"testing"
)

// finder implements RoomFinder over a fixed set of rooms.
type finder struct {
	rooms map[string]*Room
}

func newFinder(rooms []*Room) *finder {
	f := &finder{
		rooms: make(map[string]*Room, len(rooms)),
	}
	for _, r := range rooms {
		f.rooms[r.ID] = r
	}
	return f
}

func (f *finder) ReadOnlyRoom(roomID string) *Room {
	return f.rooms[roomID]
}

func ids(rooms []*Room) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.ID
	}
	return out
}

func TestSortByRecency(t *testing.T) {
	rooms := []*Room{
		{ID: "!idle:localhost"},
		{ID: "!old:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 100}},
		{ID: "!new:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 300}},
		{ID: "!mid:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 200}},
	}
	sr := NewSortableRooms(newFinder(rooms), ids(rooms))
	if err := sr.Sort([]string{SortByRecency}); err != nil {
		t.Fatalf("Sort: %s", err)
	}
	// most recent first, no-message rooms last
	want := []string{"!new:localhost", "!mid:localhost", "!old:localhost", "!idle:localhost"}
	if got := sr.RoomIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestSortByRecencyStableTies(t *testing.T) {
	rooms := []*Room{
		{ID: "!b:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 100}},
		{ID: "!a:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 100}},
		{ID: "!c:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 100}},
	}
	sr := NewSortableRooms(newFinder(rooms), ids(rooms))
	for i := 0; i < 3; i++ {
		if err := sr.Sort([]string{SortByRecency}); err != nil {
			t.Fatalf("Sort: %s", err)
		}
		// equal timestamps keep insertion order, and repeated sorts don't shuffle
		want := []string{"!b:localhost", "!a:localhost", "!c:localhost"}
		if got := sr.RoomIDs(); !reflect.DeepEqual(got, want) {
			t.Errorf("sort %d: got %v want %v", i, got, want)
		}
	}
}

func TestSortByName(t *testing.T) {
	rooms := []*Room{
		{ID: "!1:localhost", Name: "Citrus"},
		{ID: "!2:localhost", Name: "Apple"},
		{ID: "!3:localhost", Name: "Banana"},
	}
	sr := NewSortableRooms(newFinder(rooms), ids(rooms))
	if err := sr.Sort([]string{SortByName}); err != nil {
		t.Fatalf("Sort: %s", err)
	}
	want := []string{"!2:localhost", "!3:localhost", "!1:localhost"}
	if got := sr.RoomIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestSortByUnreadThenRecency(t *testing.T) {
	rooms := []*Room{
		{ID: "!read1:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 300}},
		{ID: "!unread:localhost", UnreadCount: 5, LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 100}},
		{ID: "!read2:localhost", LastMessage: DescInfo{SenderID: "@x:localhost", Timestamp: 200}},
	}
	sr := NewSortableRooms(newFinder(rooms), ids(rooms))
	if err := sr.Sort([]string{SortByUnreadCount, SortByRecency}); err != nil {
		t.Fatalf("Sort: %s", err)
	}
	want := []string{"!unread:localhost", "!read1:localhost", "!read2:localhost"}
	if got := sr.RoomIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestSortUnknownOrder(t *testing.T) {
	sr := NewSortableRooms(newFinder(nil), nil)
	if err := sr.Sort([]string{"by_moon_phase"}); err == nil {
		t.Fatalf("Sort with unknown order: got nil error")
	}
}

func TestAddRemoveReindexes(t *testing.T) {
	rooms := []*Room{
		{ID: "!a:localhost"},
		{ID: "!b:localhost"},
		{ID: "!c:localhost"},
	}
	sr := NewSortableRooms(newFinder(rooms), ids(rooms))
	if !sr.Add("!d:localhost") {
		t.Errorf("Add new room: got false want true")
	}
	if sr.Add("!a:localhost") {
		t.Errorf("Add duplicate room: got true want false")
	}
	if got := sr.Remove("!b:localhost"); got != 1 {
		t.Errorf("Remove: got index %d want 1", got)
	}
	if got := sr.Remove("!b:localhost"); got != -1 {
		t.Errorf("Remove absent room: got index %d want -1", got)
	}
	want := []string{"!a:localhost", "!c:localhost", "!d:localhost"}
	if got := sr.RoomIDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
	// indexes must track the splice
	for i, roomID := range want {
		index, ok := sr.IndexOf(roomID)
		if !ok || index != i {
			t.Errorf("IndexOf(%s): got (%d, %v) want (%d, true)", roomID, index, ok, i)
		}
	}
	if sr.Len() != 3 {
		t.Errorf("Len: got %d want 3", sr.Len())
	}
}
