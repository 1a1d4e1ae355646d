package roster

import (
	"reflect"
	"testing"
)

func TestAllowSetFilterUsesPresenceNotValue(t *testing.T) {
	rooms := map[string]*Room{
		"!a:localhost": {ID: "!a:localhost"},
		"!b:localhost": {ID: "!b:localhost"},
		"!c:localhost": {ID: "!c:localhost"},
	}
	// a false value is still presence: the room stays visible
	f := NewAllowSetFilter(map[string]bool{
		"!a:localhost": true,
		"!b:localhost": false,
	})
	got := ComputeVisibility(rooms, f)
	want := map[string]bool{
		"!a:localhost": true,
		"!b:localhost": true,
		"!c:localhost": false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestAllowAllFilter(t *testing.T) {
	rooms := map[string]*Room{
		"!a:localhost": {ID: "!a:localhost"},
		"!b:localhost": {ID: "!b:localhost", IsInvite: true},
	}
	got := ComputeVisibility(rooms, AllowAll())
	for roomID, visible := range got {
		if !visible {
			t.Errorf("room %s not visible under AllowAll", roomID)
		}
	}
	if len(got) != len(rooms) {
		t.Errorf("visibility map has %d entries, want %d", len(got), len(rooms))
	}
}

func TestEmptyAllowSetHidesEverything(t *testing.T) {
	rooms := map[string]*Room{
		"!a:localhost": {ID: "!a:localhost"},
	}
	got := ComputeVisibility(rooms, NewAllowSetFilter(nil))
	if got["!a:localhost"] {
		t.Errorf("room visible under empty allow-set")
	}
}
