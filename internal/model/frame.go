package model

import (
	"encoding/json"
	"fmt"
)

// Stream roles a socket can hold within a room.
const (
	RoleUnassigned = "unassigned"
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
)

// Control actions sent to the publisher.
const (
	ControlStart = "start"
	ControlPause = "pause"
)

// RoleFrame is the only client frame the coordinator accepts:
// {"type":"role","role":"publisher"|"subscriber"}.
type RoleFrame struct {
	Role string
}

// ControlFrame is sent to the current publisher.
type ControlFrame struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// ErrorFrame is sent on the offending socket; the connection stays open
// unless the error is a publisher conflict.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewControlFrame builds a control frame for the given action.
func NewControlFrame(action string) ControlFrame {
	return ControlFrame{Type: "control", Action: action}
}

// NewErrorFrame builds an error frame.
func NewErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: "error", Message: msg}
}

// DecodeRoleFrame decodes a client frame strictly. Anything that is not a
// well-formed role frame with a known role is rejected.
func DecodeRoleFrame(data []byte) (*RoleFrame, error) {
	var raw struct {
		Type string `json:"type"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if raw.Type != "role" {
		return nil, fmt.Errorf("unknown frame type %q", raw.Type)
	}
	if raw.Role != RolePublisher && raw.Role != RoleSubscriber {
		return nil, fmt.Errorf("unknown role %q", raw.Role)
	}
	return &RoleFrame{Role: raw.Role}, nil
}
