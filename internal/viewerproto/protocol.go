package viewerproto

import "gridreplay.ai/internal/game"

// Version is the viewer protocol version.
const Version = "0.1"

const (
	TypeJump     = "JUMP"
	TypeNext     = "NEXT"
	TypeSnapshot = "SNAPSHOT"
	TypeEnd      = "END"
	TypeError    = "ERROR"
)

// Client -> Server. JUMP moves to (Round, ActionIndex); NEXT advances one action.
type ControlMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Round           int    `json:"round,omitempty"`
	ActionIndex     int    `json:"action_index,omitempty"`
}

// HTTP response for GET /v1/replays/{id}.
type BootstrapResponse struct {
	ProtocolVersion string  `json:"protocol_version"`
	ReplayID        int64   `json:"replay_id"`
	GridSize        int     `json:"grid_size"`
	Terrain         string  `json:"terrain"`
	Rounds          int     `json:"rounds"`
	Snapshots       int     `json:"snapshots"`
	Outcome         Outcome `json:"outcome"`
}

type Outcome struct {
	Ended  bool   `json:"ended"`
	Winner int    `json:"winner"`
	Reason string `json:"reason,omitempty"`
}

// Action is one row of the action table as sent to viewers.
type Action struct {
	Round       int     `json:"round"`
	ActionIndex int     `json:"action_index"`
	Player      int     `json:"player"`
	Code        int     `json:"action_type"`
	Description string  `json:"description"`
	Params      []int   `json:"raw_params"`
	RemainCoins *int    `json:"remain_coins"`
	UnitID      int     `json:"unit_id"`
	Target      *[2]int `json:"target,omitempty"`
}

// HTTP response for GET /v1/replays/{id}/actions.
type ActionsResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	ReplayID        int64    `json:"replay_id"`
	Actions         []Action `json:"actions"`
}

// Server -> Client. Sent on connect and after every accepted JUMP or NEXT.
type SnapshotMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	ReplayID        int64         `json:"replay_id"`
	Action          Action        `json:"action"`
	Snapshot        game.Snapshot `json:"snapshot"`
}

// Server -> Client. Sent in reply to NEXT at the last navigable state.
type EndMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReplayID        int64   `json:"replay_id"`
	Outcome         Outcome `json:"outcome"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Message         string `json:"message"`
}
