// Package pack provides the runtime a game integration embeds to speak the
// host protocol: domain types, the Handler interface, and the Runner loop
// that bridges transport traffic to both.
package pack

import "encoding/json"

// ProtocolVersion is bumped on breaking protocol changes.
const ProtocolVersion = 1

// GameEvent is a game occurrence that can trigger clip capture.
type GameEvent struct {
	// EventType identifies the event (e.g. "ChampionKill", "DragonKill").
	EventType string `json:"eventType"`
	// TimestampSecs is measured from game start.
	TimestampSecs float64 `json:"timestampSecs"`
	// Data carries game-specific event details.
	Data json.RawMessage `json:"data"`
	// PreCaptureSecs and PostCaptureSecs override the default capture
	// window when set.
	PreCaptureSecs  *float64 `json:"preCaptureSecs,omitempty"`
	PostCaptureSecs *float64 `json:"postCaptureSecs,omitempty"`
}

// GameStatus describes the current connection to the game client.
type GameStatus struct {
	Connected        bool   `json:"connected"`
	ConnectionStatus string `json:"connectionStatus"`
	GamePhase        string `json:"gamePhase,omitempty"`
	IsInGame         bool   `json:"isInGame"`
}

// StatusDisconnected returns the canonical not-connected status.
func StatusDisconnected() GameStatus {
	return GameStatus{ConnectionStatus: "Not connected"}
}

// StatusConnected returns a connected status with the given description.
func StatusConnected(status string) GameStatus {
	return GameStatus{Connected: true, ConnectionStatus: status}
}

// MatchProgress answers a stale-match recovery check. When the match has
// ended, FinalData may carry the closing stats the host missed.
type MatchProgress struct {
	InProgress bool            `json:"inProgress"`
	FinalData  json.RawMessage `json:"finalData,omitempty"`
}

// TimelineQuery selects match timeline entries during recovery. Zero
// EntryTypes means all types; zero Limit means no cap.
type TimelineQuery struct {
	Subpack         int
	ExternalMatchID string
	EntryTypes      []string
	Limit           int
}

// MatchData is the record produced when a game session ends.
type MatchData struct {
	GameSlug string          `json:"gameSlug"`
	GameID   string          `json:"gameId"`
	Result   string          `json:"result"`
	Details  json.RawMessage `json:"details"`
}

// Identity names a pack when it connects to the host.
type Identity struct {
	GameID          string `json:"gameId"`
	Slug            string `json:"slug"`
	ProtocolVersion int    `json:"protocolVersion"`
}
