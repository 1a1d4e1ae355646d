package roster

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/matrix-org/room-roster/pubsub"
)

// Snapshots let a client restore its room list immediately on startup,
// before the first sync lands. CBOR with integer keys keeps them compact;
// field numbers must never be reused.

type snapshotRoom struct {
	ID          string `cbor:"1,keyasint"`
	Name        string `cbor:"2,keyasint,omitempty"`
	AvatarURL   string `cbor:"3,keyasint,omitempty"`
	IsInvite    bool   `cbor:"4,keyasint,omitempty"`
	Sender      string `cbor:"5,keyasint,omitempty"`
	Body        string `cbor:"6,keyasint,omitempty"`
	Timestamp   uint64 `cbor:"7,keyasint,omitempty"`
	UnreadCount int    `cbor:"8,keyasint,omitempty"`
	Read        bool   `cbor:"9,keyasint,omitempty"`
}

type snapshotData struct {
	Rooms          []snapshotRoom `cbor:"1,keyasint,omitempty"`
	SelectedRoomID string         `cbor:"2,keyasint,omitempty"`
}

// Snapshot serialises the current roster state, rooms in display order.
func (r *Roster) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := snapshotData{
		SelectedRoomID: r.selectedRoomID,
	}
	for _, roomID := range r.displayOrderLocked() {
		room := r.rooms[roomID]
		snap.Rooms = append(snap.Rooms, snapshotRoom{
			ID:          room.ID,
			Name:        room.Name,
			AvatarURL:   room.AvatarURL,
			IsInvite:    room.IsInvite,
			Sender:      room.LastMessage.SenderID,
			Body:        room.LastMessage.Body,
			Timestamp:   room.LastMessage.Timestamp,
			UnreadCount: room.UnreadCount,
			Read:        room.Read,
		})
	}
	return cbor.Marshal(&snap)
}

// Restore replaces the roster with the snapshot's contents. The snapshot's
// selection is kept if that room survived, otherwise the first room in sort
// order is selected.
func (r *Roster) Restore(data []byte) error {
	var snap snapshotData
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]*Room, len(snap.Rooms))
	r.sorted = NewSortableRooms(r, nil)
	r.selectedRoomID = ""
	r.sortPending = false

	for _, sr := range snap.Rooms {
		if sr.ID == "" {
			logger.Warn().Msg("Restore: skipping snapshot room with empty id")
			continue
		}
		room := &Room{
			ID:        sr.ID,
			Name:      sr.Name,
			AvatarURL: sr.AvatarURL,
			IsInvite:  sr.IsInvite,
			LastMessage: DescInfo{
				SenderID:  sr.Sender,
				Body:      sr.Body,
				Timestamp: sr.Timestamp,
			},
			UnreadCount: sr.UnreadCount,
			Read:        sr.Read,
			Visible:     true,
		}
		r.rooms[sr.ID] = room
		if r.orderEligible(room) {
			r.sorted.Add(sr.ID)
		}
		r.requestAvatarLocked(room)
		r.publish(&pubsub.RoomAdded{RoomID: sr.ID, IsInvite: sr.IsInvite})
	}

	r.resortLocked()
	r.recalculateTotalUnreadLocked()

	if snap.SelectedRoomID != "" {
		if _, exists := r.rooms[snap.SelectedRoomID]; exists {
			r.selectedRoomID = snap.SelectedRoomID
			r.publish(&pubsub.SelectionChanged{RoomID: snap.SelectedRoomID})
			return nil
		}
	}
	if first := r.firstRoomLocked(); first != "" {
		r.selectedRoomID = first
		r.publish(&pubsub.SelectionChanged{RoomID: first})
	}
	return nil
}
