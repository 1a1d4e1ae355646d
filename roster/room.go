package roster

// DescInfo is the last-message metadata shown underneath a room's name.
// A zero SenderID means the room has received no message yet: such rooms sort
// as if their timestamp were 0.
type DescInfo struct {
	SenderID  string
	Body      string
	Timestamp uint64 // ms since epoch
}

// IsZero reports whether no message has been received for this room.
func (d DescInfo) IsZero() bool {
	return d.SenderID == ""
}

// Room is a single entry in the roster, either joined or a pending invite.
// Avatar bytes are owned by the avatar collaborator and flow through here as
// an opaque reference for consumers.
type Room struct {
	ID          string
	Name        string
	AvatarURL   string
	Avatar      []byte
	IsInvite    bool
	LastMessage DescInfo
	UnreadCount int
	Read        bool
	Visible     bool
}

// RoomInfo is the shape of membership/invite data arriving from a sync
// delta. It carries every mutable field an Upsert may overwrite.
type RoomInfo struct {
	Name        string
	AvatarURL   string
	IsInvite    bool
	LastMessage DescInfo
}
