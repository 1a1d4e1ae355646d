package testutils

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/tidwall/sjson"
)

var (
	eventIDCounter = 0
	eventIDMu      sync.Mutex
)

func generateEventID() string {
	eventIDMu.Lock()
	defer eventIDMu.Unlock()
	eventIDCounter++
	return fmt.Sprintf("$event_%d", eventIDCounter)
}

func setFields(t *testing.T, fields map[string]interface{}) json.RawMessage {
	t.Helper()
	event := []byte(`{}`)
	var err error
	for path, value := range fields {
		event, err = sjson.SetBytes(event, path, value)
		if err != nil {
			t.Fatalf("failed to make event JSON: %s", err)
		}
	}
	return event
}

// NewMessageEvent builds an m.room.message timeline event.
func NewMessageEvent(t *testing.T, sender, body string, ts uint64) json.RawMessage {
	t.Helper()
	return setFields(t, map[string]interface{}{
		"type":             "m.room.message",
		"sender":           sender,
		"content.msgtype":  "m.text",
		"content.body":     body,
		"origin_server_ts": ts,
		"event_id":         generateEventID(),
	})
}

// NewStateEvent builds a state event with the given content fields, where
// keys are sjson paths relative to content e.g "name" or "url".
func NewStateEvent(t *testing.T, evType, stateKey, sender string, content map[string]interface{}) json.RawMessage {
	t.Helper()
	fields := map[string]interface{}{
		"type":      evType,
		"state_key": stateKey,
		"sender":    sender,
		"event_id":  generateEventID(),
	}
	for path, value := range content {
		fields["content."+path] = value
	}
	return setFields(t, fields)
}
