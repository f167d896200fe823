package event

// Event names fanned out to room observers. Delivery and ordering are the
// sink's concern, not the engine's.
const (
	RoundWaiting     = "ROUND_WAITING"
	RoundStart       = "ROUND_START"
	RoundUpdate      = "ROUND_UPDATE"
	BetAccepted      = "BET_ACCEPTED"
	RoundEnd         = "ROUND_END"
	PlayerSettlement = "PLAYER_SETTLEMENT"
	PlayerJoinedRoom = "PLAYER_JOINED_ROOM"
	PlayerLeftRoom   = "PLAYER_LEFT_ROOM"
	RoomClosed       = "ROOM_CLOSED"
)

type Sink interface {
	Emit(channel string, event string, data map[string]interface{}) error
}

// RoomChannel is the fan-out channel for a single room.
func RoomChannel(roomID string) string {
	return "room-" + roomID
}

// PlayerChannel carries personal notifications such as settlements.
func PlayerChannel(playerID string) string {
	return "player-" + playerID
}

// NopSink discards every event. Used in tests and when no transport is
// configured.
type NopSink struct{}

func (NopSink) Emit(string, string, map[string]interface{}) error { return nil }
