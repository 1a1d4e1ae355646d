package roster

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// NewDescInfoFromEvent extracts last-message metadata from a raw Matrix
// client event. Events without a sender produce a zero DescInfo, which sorts
// the room as if it had no activity.
func NewDescInfoFromEvent(event json.RawMessage) DescInfo {
	ev := gjson.ParseBytes(event)
	return DescInfo{
		SenderID:  ev.Get("sender").Str,
		Body:      ev.Get("content.body").Str,
		Timestamp: ev.Get("origin_server_ts").Uint(),
	}
}

// NewRoomInfoFromSync derives RoomInfo for one room from its sync response
// sections: state events set name/avatar, the newest m.room.message in the
// timeline becomes the description. Invite rooms pass their invite_state as
// stateEvents and typically have no timeline.
func NewRoomInfoFromSync(stateEvents, timelineEvents []json.RawMessage, isInvite bool) RoomInfo {
	info := RoomInfo{
		IsInvite: isInvite,
	}
	for _, ev := range stateEvents {
		j := gjson.ParseBytes(ev)
		switch j.Get("type").Str {
		case "m.room.name":
			info.Name = j.Get("content.name").Str
		case "m.room.canonical_alias":
			// the calculated name, if any, wins over the alias
			if info.Name == "" {
				info.Name = j.Get("content.alias").Str
			}
		case "m.room.avatar":
			info.AvatarURL = j.Get("content.url").Str
		}
	}
	for i := len(timelineEvents) - 1; i >= 0; i-- {
		j := gjson.ParseBytes(timelineEvents[i])
		if j.Get("type").Str != "m.room.message" {
			continue
		}
		info.LastMessage = DescInfo{
			SenderID:  j.Get("sender").Str,
			Body:      j.Get("content.body").Str,
			Timestamp: j.Get("origin_server_ts").Uint(),
		}
		break
	}
	return info
}
