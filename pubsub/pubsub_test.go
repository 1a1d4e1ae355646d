package pubsub

import (
	"reflect"
	"sync"
	"testing"
)

func TestPubSubDeliversInOrder(t *testing.T) {
	ps := NewPubSub(16)
	payloads := []Payload{
		&RoomAdded{RoomID: "!a:localhost"},
		&RoomUpdated{RoomID: "!a:localhost"},
		&RoomRemoved{RoomID: "!a:localhost"},
	}
	for _, p := range payloads {
		if err := ps.Notify(ChanRoster, p); err != nil {
			t.Fatalf("Notify: %s", err)
		}
	}

	var got []Payload
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ps.Listen(ChanRoster, func(p Payload) {
			got = append(got, p)
		})
	}()
	ps.Close()
	wg.Wait()
	if !reflect.DeepEqual(got, payloads) {
		t.Errorf("got %v want %v in publish order", got, payloads)
	}
}

func TestPubSubChannelsAreIndependent(t *testing.T) {
	ps := NewPubSub(16)
	if err := ps.Notify("other", &RoomAdded{RoomID: "!x:localhost"}); err != nil {
		t.Fatalf("Notify: %s", err)
	}
	var rosterPayloads []Payload
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ps.Listen(ChanRoster, func(p Payload) {
			rosterPayloads = append(rosterPayloads, p)
		})
	}()
	ps.Close()
	wg.Wait()
	if len(rosterPayloads) != 0 {
		t.Errorf("payload crossed channels: %v", rosterPayloads)
	}
}

// recordingListener counts typed callbacks.
type recordingListener struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingListener) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recordingListener) OnRoomAdded(p *RoomAdded)     { r.record("added:" + p.RoomID) }
func (r *recordingListener) OnRoomUpdated(p *RoomUpdated) { r.record("updated:" + p.RoomID) }
func (r *recordingListener) OnRoomRemoved(p *RoomRemoved) { r.record("removed:" + p.RoomID) }
func (r *recordingListener) OnSelectionChanged(p *SelectionChanged) {
	r.record("selected:" + p.RoomID)
}
func (r *recordingListener) OnTotalUnreadChanged(p *TotalUnreadChanged) { r.record("unread") }
func (r *recordingListener) OnAvatarChanged(p *AvatarChanged)           { r.record("avatar:" + p.RoomID) }
func (r *recordingListener) OnOrderChanged(p *OrderChanged)             { r.record("order") }
func (r *recordingListener) OnVisibilityChanged(p *VisibilityChanged)   { r.record("visibility") }

func TestRosterSubDemuxesPayloads(t *testing.T) {
	ps := NewPubSub(16)
	recv := &recordingListener{}
	sub := NewRosterSub(ps, recv)

	payloads := []Payload{
		&RoomAdded{RoomID: "!a:localhost"},
		&SelectionChanged{RoomID: "!a:localhost"},
		&TotalUnreadChanged{Count: 3},
		&OrderChanged{RoomIDs: []string{"!a:localhost"}},
		&VisibilityChanged{Visible: map[string]bool{"!a:localhost": true}},
		&AvatarChanged{RoomID: "!a:localhost"},
		&RoomRemoved{RoomID: "!a:localhost"},
	}
	for _, p := range payloads {
		if err := ps.Notify(ChanRoster, p); err != nil {
			t.Fatalf("Notify: %s", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sub.Listen()
	}()
	sub.Teardown()
	wg.Wait()

	want := []string{
		"added:!a:localhost",
		"selected:!a:localhost",
		"unread",
		"order",
		"visibility",
		"avatar:!a:localhost",
		"removed:!a:localhost",
	}
	recv.mu.Lock()
	defer recv.mu.Unlock()
	if !reflect.DeepEqual(recv.calls, want) {
		t.Errorf("got %v want %v", recv.calls, want)
	}
}
