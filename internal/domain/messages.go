package domain

import "encoding/json"

// Inbound message types
const (
	MsgCreateRoom = "create-room"
	MsgJoinRoom   = "join-room"
	MsgRejoinRoom = "rejoin-room"
	MsgStartRace  = "start-race"
	MsgClick      = "click"
	MsgResetRoom  = "reset-room"
	MsgLeaveRoom  = "leave-room"
)

// Outbound message types
const (
	MsgRoomCreated            = "room-created"
	MsgRoomJoined             = "room-joined"
	MsgRejoinFailed           = "rejoin-failed"
	MsgJoinError              = "join-error"
	MsgPlayerJoined           = "player-joined"
	MsgRaceStarted            = "race-started"
	MsgStartError             = "start-error"
	MsgProgressUpdate         = "progress-update"
	MsgPlayerFinished         = "player-finished"
	MsgFirstFinisherCountdown = "first-finisher-countdown"
	MsgRaceFinished           = "race-finished"
	MsgRoomReset              = "room-reset"
	MsgPlayerLeft             = "player-left"
	MsgHostChanged            = "host-changed"
)

// Envelope is the wire frame for inbound client messages. Data is decoded
// per message type by the game service.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is the wire frame for outbound server messages
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// PlayerInfo is the public view of a player sent to clients
type PlayerInfo struct {
	SocketID string `json:"socketId"`
	Name     string `json:"name"`
	CarModel string `json:"carModel"`
	CarColor string `json:"carColor"`
	Progress int    `json:"progress"`
}

// CreateRoomRequest asks for a fresh room with the sender as host
type CreateRoomRequest struct {
	Name     string `json:"name"`
	CarModel string `json:"carModel"`
}

// JoinRoomRequest is sent for both join-room and rejoin-room
type JoinRoomRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	CarModel string `json:"carModel"`
}

// RoomRequest carries just a room code (start-race, click, reset-room)
type RoomRequest struct {
	RoomCode string `json:"roomCode"`
}

// RoomCreated is sent to the creator
type RoomCreated struct {
	Code   string     `json:"code"`
	Player PlayerInfo `json:"player"`
}

// RoomJoined is sent to a joining or rejoining connection
type RoomJoined struct {
	Code    string       `json:"code"`
	Players []PlayerInfo `json:"players"`
	HostID  string       `json:"hostId"`
}

// PlayerJoined is broadcast to the rest of the room on arrival
type PlayerJoined struct {
	Player PlayerInfo `json:"player"`
}

// ErrorReason carries a human-readable failure reason for user-initiated
// actions (join-error, rejoin-failed, start-error)
type ErrorReason struct {
	Reason string `json:"reason"`
}

// RaceStarted announces the scheduled race start, epoch milliseconds
type RaceStarted struct {
	StartTime int64 `json:"startTime"`
}

// ProgressEntry is one player's progress within a progress-update
type ProgressEntry struct {
	SocketID string `json:"socketId"`
	Progress int    `json:"progress"`
}

// ProgressUpdate is pushed at a fixed interval while racing
type ProgressUpdate struct {
	Updates []ProgressEntry `json:"updates"`
}

// PlayerFinished is broadcast once when a player reaches full progress.
// Time is elapsed milliseconds since race start.
type PlayerFinished struct {
	SocketID string `json:"socketId"`
	Rank     int    `json:"rank"`
	Time     int64  `json:"time"`
}

// FirstFinisherCountdown is broadcast once, when the first player finishes.
// EndsAt is the epoch-millisecond instant the race will be cut off.
type FirstFinisherCountdown struct {
	EndsAt int64 `json:"endsAt"`
}

// RaceResult is one row of the final standings
type RaceResult struct {
	SocketID   string `json:"socketId"`
	Name       string `json:"name"`
	CarModel   string `json:"carModel"`
	CarColor   string `json:"carColor"`
	Rank       int    `json:"rank"`
	FinishTime *int64 `json:"finishTime"` // elapsed ms, null for DNF
	DNF        bool   `json:"dnf"`
}

// RaceFinished carries the final standings, ordered by rank
type RaceFinished struct {
	Results []RaceResult `json:"results"`
}

// RoomReset is broadcast when the host returns a finished room to the lobby
type RoomReset struct {
	Players []PlayerInfo `json:"players"`
	HostID  string       `json:"hostId"`
}

// PlayerLeft is broadcast when a player leaves or disconnects.
// NewHostID is set only when host privileges migrated as a result.
type PlayerLeft struct {
	SocketID  string `json:"socketId"`
	NewHostID string `json:"newHostId,omitempty"`
}

// HostChanged is broadcast when host privileges migrate without the
// player record being removed (disconnect while racing)
type HostChanged struct {
	NewHostID string `json:"newHostId"`
}
