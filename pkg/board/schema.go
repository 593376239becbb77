package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by room name so several
// boards can share one Redis server.
//
// Key pattern: aura:{room}:{entity}[:{id}]
// Channel pattern: aura:{room}:{event_type}_events

// AnchorSetKey returns the Redis key for the set of anchor IDs in a room.
// Pattern: aura:{room}:anchors
func AnchorSetKey(room string) string {
	return fmt.Sprintf("aura:%s:anchors", room)
}

// AnchorKey returns the Redis key for an anchor hash.
// Pattern: aura:{room}:anchor:{anchor_id}
func AnchorKey(room, anchorID string) string {
	return fmt.Sprintf("aura:%s:anchor:%s", room, anchorID)
}

// BoardConfigKey returns the Redis key for the room's board configuration.
// Pattern: aura:{room}:board
func BoardConfigKey(room string) string {
	return fmt.Sprintf("aura:%s:board", room)
}

// AnchorEventsChannel returns the Pub/Sub channel carrying the full anchor
// set after every anchor mutation.
// Pattern: aura:{room}:anchor_events
func AnchorEventsChannel(room string) string {
	return fmt.Sprintf("aura:%s:anchor_events", room)
}

// BoardEventsChannel returns the Pub/Sub channel carrying the board
// configuration after every change.
// Pattern: aura:{room}:board_events
func BoardEventsChannel(room string) string {
	return fmt.Sprintf("aura:%s:board_events", room)
}
