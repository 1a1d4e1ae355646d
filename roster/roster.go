package roster

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/matrix-org/room-roster/internal"
	"github.com/matrix-org/room-roster/pubsub"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

var (
	// ErrInvalidRoomID is returned when an operation is given a malformed (empty) room id.
	ErrInvalidRoomID = fmt.Errorf("invalid room id")
	// ErrRoomNotFound is returned when an operation references a room id absent from the
	// roster. It is never fatal: the roster state is unchanged.
	ErrRoomNotFound = fmt.Errorf("room not found")
)

// DefaultResortDelay is how long after hover-exit the deferred resort runs.
const DefaultResortDelay = 700 * time.Millisecond

// UpsertOp says what an Upsert call did.
type UpsertOp uint8

var (
	// The room was created
	UpsertCreated UpsertOp = 1
	// An existing room was updated in place
	UpsertUpdated UpsertOp = 2
)

// AvatarRequester asynchronously resolves a room avatar. Implementations must
// invoke deliver from a different goroutine than the caller's, and must
// swallow fetch failures (log only): the roster never sees them.
type AvatarRequester interface {
	Request(roomID, avatarURL string, deliver func(roomID string, avatar []byte))
}

// Config tunes roster policy knobs.
type Config struct {
	// SortBy is the comparator chain applied on every resort.
	// Defaults to [SortByRecency].
	SortBy []string
	// IncludeInvitesInOrder controls whether pending invites participate in
	// last-message ordering. Invites never receive description updates in the
	// normal sync path, so by default they are kept out of the ordered list
	// and trail joined rooms.
	IncludeInvitesInOrder bool
	// ResortDelay is the pause between hover-exit and the deferred resort.
	// Defaults to DefaultResortDelay.
	ResortDelay time.Duration
	// Schedule runs fn once after d. Defaults to time.AfterFunc. Tests inject
	// a synchronous scheduler here.
	Schedule func(d time.Duration, fn func())
}

// Roster is the in-memory registry of all known rooms (joined + invited) for
// the current session: the single source of truth for existence, order and
// visibility. Consumers subscribe to roster payloads on pubsub.ChanRoster.
//
// All mutation entry points are serialized on an internal mutex, so event
// sources on different goroutines (sync deltas, avatar deliveries, the resort
// timer) may call in directly; mutations are applied in lock-acquisition order.
type Roster struct {
	mu             sync.Mutex
	rooms          map[string]*Room
	sorted         *SortableRooms
	selectedRoomID string
	hovering       bool
	sortPending    bool
	totalUnread    int

	notifier pubsub.Notifier
	avatars  AvatarRequester

	sortBy         []string
	includeInvites bool
	resortDelay    time.Duration
	schedule       func(d time.Duration, fn func())
}

// New creates an empty roster. notifier may be nil (no events published),
// as may avatars (no avatar fetches requested).
func New(cfg Config, notifier pubsub.Notifier, avatars AvatarRequester) *Roster {
	if len(cfg.SortBy) == 0 {
		cfg.SortBy = []string{SortByRecency}
	}
	if cfg.ResortDelay == 0 {
		cfg.ResortDelay = DefaultResortDelay
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		}
	}
	r := &Roster{
		rooms:          make(map[string]*Room),
		notifier:       notifier,
		avatars:        avatars,
		sortBy:         cfg.SortBy,
		includeInvites: cfg.IncludeInvitesInOrder,
		resortDelay:    cfg.ResortDelay,
		schedule:       cfg.Schedule,
	}
	r.sorted = NewSortableRooms(r, nil)
	return r
}

// ReadOnlyRoom returns the underlying Room object. Returns a shared pointer,
// not a copy. It is only safe to read this data, never to write.
func (r *Roster) ReadOnlyRoom(roomID string) *Room {
	return r.rooms[roomID]
}

// Upsert creates or updates the room for this id. Creation publishes
// RoomAdded, update publishes RoomUpdated. An empty id is rejected with
// ErrInvalidRoomID and no state change.
func (r *Roster) Upsert(roomID string, info RoomInfo) (UpsertOp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(roomID, info)
}

func (r *Roster) upsertLocked(roomID string, info RoomInfo) (UpsertOp, error) {
	if roomID == "" {
		return 0, ErrInvalidRoomID
	}
	existing, exists := r.rooms[roomID]
	if !exists {
		room := &Room{
			ID:        roomID,
			Name:      info.Name,
			AvatarURL: info.AvatarURL,
			IsInvite:  info.IsInvite,
			Visible:   true,
		}
		r.rooms[roomID] = room
		if r.orderEligible(room) {
			r.sorted.Add(roomID)
		}
		r.requestAvatarLocked(room)
		r.publish(&pubsub.RoomAdded{RoomID: roomID, IsInvite: room.IsInvite})
		return UpsertCreated, nil
	}

	wasEligible := r.orderEligible(existing)
	existing.Name = info.Name
	existing.IsInvite = info.IsInvite
	existing.AvatarURL = info.AvatarURL
	if nowEligible := r.orderEligible(existing); nowEligible != wasEligible {
		// invite accepted or room retired from the ordering: fix list membership,
		// position is corrected on the next resort
		if nowEligible {
			r.sorted.Add(roomID)
		} else {
			r.sorted.Remove(roomID)
		}
	}
	r.requestAvatarLocked(existing)
	r.publish(&pubsub.RoomUpdated{RoomID: roomID})
	return UpsertUpdated, nil
}

// Remove unconditionally deletes the room. If the roster becomes empty the
// selection is cleared. Otherwise, if resetSelection is set, the first room
// in current sort order becomes selected and SelectionChanged is published.
func (r *Roster) Remove(roomID string, resetSelection bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, exists := r.rooms[roomID]; exists {
		delete(r.rooms, roomID)
		r.sorted.Remove(roomID)
		r.publish(&pubsub.RoomRemoved{RoomID: roomID})
		if !room.IsInvite && room.UnreadCount != 0 {
			r.recalculateTotalUnreadLocked()
		}
	}

	if len(r.rooms) == 0 {
		r.selectedRoomID = ""
		return
	}
	if !resetSelection {
		return
	}
	first := r.firstRoomLocked()
	if first == "" {
		return
	}
	r.selectedRoomID = first
	r.publish(&pubsub.SelectionChanged{RoomID: first})
}

// UpdateUnreadCount sets the unread message count for the room and publishes
// the recomputed roster-wide total. Unknown ids are logged and return
// ErrRoomNotFound without touching the total.
func (r *Roster) UpdateUnreadCount(roomID string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, exists := r.rooms[roomID]
	if !exists {
		logger.Warn().Str("room", roomID).Msg("UpdateUnreadCount: unknown room_id")
		return ErrRoomNotFound
	}
	room.UnreadCount = count
	r.recalculateTotalUnreadLocked()
	return nil
}

func (r *Roster) recalculateTotalUnreadLocked() {
	total := 0
	for _, room := range r.rooms {
		// invites never receive unread count updates so contribute 0
		if room.IsInvite {
			continue
		}
		total += room.UnreadCount
	}
	r.totalUnread = total
	r.publish(&pubsub.TotalUnreadChanged{Count: total})
}

// ReconcileInvites removes every pending invite whose id is not in
// stillPending. An empty set is an explicit no-op: callers must pass the full
// current pending set, not a delta, and a sync with no invite section must
// not wipe existing invites.
func (r *Roster) ReconcileInvites(stillPending map[string]bool) {
	if len(stillPending) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, room := range r.rooms {
		if !room.IsInvite {
			continue
		}
		if _, ok := stillPending[roomID]; ok {
			continue
		}
		delete(r.rooms, roomID)
		r.sorted.Remove(roomID)
		r.publish(&pubsub.RoomRemoved{RoomID: roomID})
	}
	if len(r.rooms) == 0 {
		r.selectedRoomID = ""
	}
}

// ApplyBatchUpdate applies a periodic sync delta: upsert each entry, then
// apply its last-message metadata. The resulting order depends only on each
// room's latest timestamp, never on map iteration order.
func (r *Roster) ApplyBatchUpdate(updates map[string]RoomInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, info := range updates {
		if _, err := r.upsertLocked(roomID, info); err != nil {
			logger.Warn().Err(err).Str("room", roomID).Msg("ApplyBatchUpdate: skipping entry")
			continue
		}
		if !info.LastMessage.IsZero() {
			r.setDescriptionLocked(roomID, info.LastMessage)
		}
	}
}

// Initialize replaces the entire roster. Rooms are inserted in a first pass
// and descriptions applied in a second, so recency ordering is meaningful
// once every entry exists. The first room in the resulting order is selected.
func (r *Roster) Initialize(info map[string]RoomInfo) {
	logger.Info().Int("rooms", len(info)).Msg("initialize room list")
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]*Room, len(info))
	r.sorted = NewSortableRooms(r, nil)
	r.selectedRoomID = ""
	r.sortPending = false
	r.totalUnread = 0

	for roomID, inf := range info {
		if _, err := r.upsertLocked(roomID, inf); err != nil {
			logger.Warn().Err(err).Str("room", roomID).Msg("Initialize: skipping entry")
		}
	}
	for roomID, inf := range info {
		if _, exists := r.rooms[roomID]; !exists {
			continue
		}
		if !inf.LastMessage.IsZero() {
			r.setDescriptionLocked(roomID, inf.LastMessage)
		}
	}

	if len(r.rooms) == 0 {
		return
	}
	first := r.firstRoomLocked()
	if first == "" {
		return
	}
	r.selectedRoomID = first
	r.publish(&pubsub.SelectionChanged{RoomID: first})
}

// SetReadState applies read/unread markers. Ids absent from the roster are
// silently skipped: receipts frequently race ahead of membership.
func (r *Roster) SetReadState(status map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, read := range status {
		room, exists := r.rooms[roomID]
		if !exists {
			continue
		}
		room.Read = read
		r.publish(&pubsub.RoomUpdated{RoomID: roomID})
	}
}

// UpdateDescription sets the room's last-message metadata and resorts the
// list, unless a hover is in progress in which case the resort is deferred.
func (r *Roster) UpdateDescription(roomID string, desc DescInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[roomID]; !exists {
		logger.Warn().Str("room", roomID).Str("body", desc.Body).Msg("description update on non-existent room_id")
		return ErrRoomNotFound
	}
	r.setDescriptionLocked(roomID, desc)
	return nil
}

func (r *Roster) setDescriptionLocked(roomID string, desc DescInfo) {
	r.rooms[roomID].LastMessage = desc
	if r.hovering {
		// when the pointer leaves the roster a sort will be triggered
		r.sortPending = true
		return
	}
	r.sortPending = false
	r.resortLocked()
}

func (r *Roster) resortLocked() {
	before := r.sorted.RoomIDs()
	if err := r.sorted.Sort(r.sortBy); err != nil {
		logger.Err(err).Strs("sort_by", r.sortBy).Msg("failed to sort")
		internal.GetSentryHubFromContextOrDefault(context.Background()).CaptureException(err)
		return
	}
	after := r.sorted.RoomIDs()
	if !slices.Equal(before, after) {
		r.publish(&pubsub.OrderChanged{RoomIDs: after})
	}
}

// MarkSortPending is called on hover-enter: resorts are deferred from now
// until FlushPendingSort, to avoid the list jumping under the pointer.
func (r *Roster) MarkSortPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hovering = true
}

// FlushPendingSort is called on hover-exit. If a resort was deferred it is
// scheduled to run once after ResortDelay. Every hover-exit while a sort is
// pending schedules another timer; a timer firing when no sort is pending is
// a no-op, so the stacking is harmless.
func (r *Roster) FlushPendingSort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hovering = false
	if !r.sortPending {
		return
	}
	r.schedule(r.resortDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.sortPending {
			return
		}
		r.sortPending = false
		r.resortLocked()
	})
}

// Select highlights the given room. SelectionChanged is published before the
// existence check, mirroring a click on a just-removed entry: consumers see
// the click, the roster keeps its previous selection.
func (r *Roster) Select(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publish(&pubsub.SelectionChanged{RoomID: roomID})
	if _, exists := r.rooms[roomID]; !exists {
		logger.Warn().Str("room", roomID).Msg("selected unknown room_id")
		return ErrRoomNotFound
	}
	r.selectedRoomID = roomID
	return nil
}

// ApplyFilter makes a room visible iff its id is a key of allow (values are
// ignored). If the current selection is filtered out, the first visible room
// in sort order becomes selected; an empty visible set leaves the selection
// alone.
func (r *Roster) ApplyFilter(allow map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	visible := ComputeVisibility(r.rooms, NewAllowSetFilter(allow))
	for roomID, room := range r.rooms {
		room.Visible = visible[roomID]
	}
	r.publish(&pubsub.VisibilityChanged{Visible: visible})

	// if the already selected room is part of the group there is nothing to do
	if r.selectedRoomID != "" && visible[r.selectedRoomID] {
		return
	}
	r.selectFirstVisibleLocked()
}

// RemoveFilter applies the identity filter: every room becomes visible. The
// selection is deliberately not re-evaluated.
func (r *Roster) RemoveFilter() {
	r.mu.Lock()
	defer r.mu.Unlock()
	visible := ComputeVisibility(r.rooms, AllowAll())
	for _, room := range r.rooms {
		room.Visible = true
	}
	r.publish(&pubsub.VisibilityChanged{Visible: visible})
}

func (r *Roster) selectFirstVisibleLocked() {
	for _, roomID := range r.displayOrderLocked() {
		room := r.rooms[roomID]
		if room != nil && room.Visible {
			r.selectedRoomID = roomID
			r.publish(&pubsub.SelectionChanged{RoomID: roomID})
			return
		}
	}
}

// UpdateAvatar attaches fetched avatar bytes to the room and republishes them
// for other consumers. Deliveries for rooms that have since disappeared are
// logged and dropped.
func (r *Roster) UpdateAvatar(roomID string, avatar []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, exists := r.rooms[roomID]
	if !exists {
		logger.Warn().Str("room", roomID).Msg("avatar update on non-existent room_id")
		return ErrRoomNotFound
	}
	room.Avatar = avatar
	r.publish(&pubsub.AvatarChanged{RoomID: roomID, Avatar: avatar})
	return nil
}

func (r *Roster) requestAvatarLocked(room *Room) {
	if r.avatars == nil || room.AvatarURL == "" {
		return
	}
	r.avatars.Request(room.ID, room.AvatarURL, func(roomID string, avatar []byte) {
		r.UpdateAvatar(roomID, avatar)
	})
}

// orderEligible says whether this room participates in the ordered list.
func (r *Roster) orderEligible(room *Room) bool {
	return !room.IsInvite || r.includeInvites
}

// displayOrderLocked is the full display order: the sorted list first, then
// any rooms excluded from ordering (pending invites) in lexicographic order
// so the trailing section is deterministic.
func (r *Roster) displayOrderLocked() []string {
	order := r.sorted.RoomIDs()
	if len(order) == len(r.rooms) {
		return order
	}
	var rest []string
	for roomID := range r.rooms {
		if _, inList := r.sorted.IndexOf(roomID); !inList {
			rest = append(rest, roomID)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func (r *Roster) firstRoomLocked() string {
	order := r.displayOrderLocked()
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

func (r *Roster) publish(p pubsub.Payload) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(pubsub.ChanRoster, p); err != nil {
		logger.Warn().Err(err).Str("payload", p.Type()).Msg("failed to notify roster listeners")
	}
}

// Accessors. All return copies and are safe to call from any goroutine.

// RoomIDs returns every room id in display order.
func (r *Roster) RoomIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayOrderLocked()
}

// Rooms returns a copy of every room in display order, visible or not.
func (r *Roster) Rooms() []Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.displayOrderLocked()
	rooms := make([]Room, 0, len(order))
	for _, roomID := range order {
		rooms = append(rooms, *r.rooms[roomID])
	}
	return rooms
}

func (r *Roster) SelectedRoomID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedRoomID
}

func (r *Roster) TotalUnread() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalUnread
}

func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
