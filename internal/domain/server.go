package domain

import "time"

// GameServer represents a game server being watched
type GameServer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	LogPath   string    `json:"log_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerStatus is the current in-memory view of a watched server,
// rebuilt from its log events rather than queried from the server
type ServerStatus struct {
	ServerID    int64          `json:"server_id"`
	Name        string         `json:"name"`
	Address     string         `json:"address"`
	Online      bool           `json:"online"`
	Players     []PlayerStatus `json:"players"`
	PlayerCount int            `json:"player_count"`
	LastEvent   time.Time      `json:"last_event,omitempty"`
}

// PlayerStatus is a connected player's live state on a server
type PlayerStatus struct {
	Slot     int       `json:"slot"`
	Name     string    `json:"name"`
	Team     Team      `json:"team"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
}
