package domain

import "time"

// Event types published on the bus
const (
	EventTeamChange   = "team_change"
	EventPlayerJoin   = "player_join"
	EventPlayerLeave  = "player_leave"
	EventServerUpdate = "server_update"
)

// Event is the envelope for bus and WebSocket delivery. Exactly one of
// the payload pointers is set, matching Type, so the envelope stays
// decodable on the receiving side without type assertions on interface{}.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"event"`
	ServerID  int64     `json:"server_id"`
	Timestamp time.Time `json:"timestamp"`

	TeamChange  *TeamChangeEvent  `json:"team_change,omitempty"`
	PlayerJoin  *PlayerJoinEvent  `json:"player_join,omitempty"`
	PlayerLeave *PlayerLeaveEvent `json:"player_leave,omitempty"`
	Status      *ServerStatus     `json:"status,omitempty"`
}

// TeamChangeEvent is raised when a player switches party on a server.
// Slot is the player's live connection slot; the watcher resolves it to
// an identity when the event is handled, not when it is emitted.
type TeamChangeEvent struct {
	Slot       int    `json:"slot"`
	Team       Team   `json:"team"`
	PlayerName string `json:"player_name,omitempty"`
}

// PlayerJoinEvent is raised when a player has finished connecting
type PlayerJoinEvent struct {
	Slot       int    `json:"slot"`
	PlayerName string `json:"player_name,omitempty"`
}

// PlayerLeaveEvent is raised when a player disconnects
type PlayerLeaveEvent struct {
	Slot       int    `json:"slot"`
	PlayerName string `json:"player_name,omitempty"`
}
