package roomroster

import (
	"github.com/matrix-org/room-roster/pubsub"
)

// DebugListener logs every roster payload. It stands in for a rendering
// layer when running headless, and keeps the pubsub channel drained.
type DebugListener struct{}

func (DebugListener) OnRoomAdded(p *pubsub.RoomAdded) {
	logger.Debug().Str("room", p.RoomID).Bool("invite", p.IsInvite).Msg("room added")
}

func (DebugListener) OnRoomUpdated(p *pubsub.RoomUpdated) {
	logger.Debug().Str("room", p.RoomID).Msg("room updated")
}

func (DebugListener) OnRoomRemoved(p *pubsub.RoomRemoved) {
	logger.Debug().Str("room", p.RoomID).Msg("room removed")
}

func (DebugListener) OnSelectionChanged(p *pubsub.SelectionChanged) {
	logger.Debug().Str("room", p.RoomID).Msg("selection changed")
}

func (DebugListener) OnTotalUnreadChanged(p *pubsub.TotalUnreadChanged) {
	logger.Debug().Int("count", p.Count).Msg("total unread changed")
}

func (DebugListener) OnAvatarChanged(p *pubsub.AvatarChanged) {
	logger.Debug().Str("room", p.RoomID).Int("bytes", len(p.Avatar)).Msg("avatar changed")
}

func (DebugListener) OnOrderChanged(p *pubsub.OrderChanged) {
	logger.Debug().Strs("order", p.RoomIDs).Msg("order changed")
}

func (DebugListener) OnVisibilityChanged(p *pubsub.VisibilityChanged) {
	logger.Debug().Int("rooms", len(p.Visible)).Msg("visibility changed")
}
