package pubsub

// The channel which has Roster* payloads
const ChanRoster = "rosterch"

// RosterListener is implemented by anything which wants typed callbacks for
// roster updates e.g a rendering layer, an unread badge aggregator.
type RosterListener interface {
	OnRoomAdded(p *RoomAdded)
	OnRoomUpdated(p *RoomUpdated)
	OnRoomRemoved(p *RoomRemoved)
	OnSelectionChanged(p *SelectionChanged)
	OnTotalUnreadChanged(p *TotalUnreadChanged)
	OnAvatarChanged(p *AvatarChanged)
	OnOrderChanged(p *OrderChanged)
	OnVisibilityChanged(p *VisibilityChanged)
}

// RoomAdded is published when a room id appears in the roster for the first time.
type RoomAdded struct {
	RoomID   string
	IsInvite bool
}

func (r RoomAdded) Type() string { return "ra" }

// RoomUpdated is published when mutable fields of an existing room change.
type RoomUpdated struct {
	RoomID string
}

func (r RoomUpdated) Type() string { return "ru" }

type RoomRemoved struct {
	RoomID string
}

func (r RoomRemoved) Type() string { return "rr" }

// SelectionChanged carries the id of the newly highlighted room. It can name
// a room the consumer has never seen if a stale selection was clicked; the
// consumer should tolerate unknown ids.
type SelectionChanged struct {
	RoomID string
}

func (s SelectionChanged) Type() string { return "sc" }

type TotalUnreadChanged struct {
	Count int
}

func (t TotalUnreadChanged) Type() string { return "tu" }

type AvatarChanged struct {
	RoomID string
	Avatar []byte
}

func (a AvatarChanged) Type() string { return "av" }

// OrderChanged carries the full new order; diffing against the previous order
// is the consumer's concern.
type OrderChanged struct {
	RoomIDs []string
}

func (o OrderChanged) Type() string { return "oc" }

type VisibilityChanged struct {
	Visible map[string]bool
}

func (v VisibilityChanged) Type() string { return "vc" }

// RosterSub demuxes Payloads from a Listener onto a typed RosterListener.
type RosterSub struct {
	listener Listener
	receiver RosterListener
}

func NewRosterSub(l Listener, recv RosterListener) *RosterSub {
	return &RosterSub{
		listener: l,
		receiver: recv,
	}
}

func (s *RosterSub) Teardown() {
	s.listener.Close()
}

func (s *RosterSub) onMessage(p Payload) {
	switch p.Type() {
	case RoomAdded{}.Type():
		s.receiver.OnRoomAdded(p.(*RoomAdded))
	case RoomUpdated{}.Type():
		s.receiver.OnRoomUpdated(p.(*RoomUpdated))
	case RoomRemoved{}.Type():
		s.receiver.OnRoomRemoved(p.(*RoomRemoved))
	case SelectionChanged{}.Type():
		s.receiver.OnSelectionChanged(p.(*SelectionChanged))
	case TotalUnreadChanged{}.Type():
		s.receiver.OnTotalUnreadChanged(p.(*TotalUnreadChanged))
	case AvatarChanged{}.Type():
		s.receiver.OnAvatarChanged(p.(*AvatarChanged))
	case OrderChanged{}.Type():
		s.receiver.OnOrderChanged(p.(*OrderChanged))
	case VisibilityChanged{}.Type():
		s.receiver.OnVisibilityChanged(p.(*VisibilityChanged))
	}
}

func (s *RosterSub) Listen() error {
	return s.listener.Listen(ChanRoster, s.onMessage)
}
