package chat

import (
	"errors"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyInput signals that a request carried no usable message content.
var ErrEmptyInput = errors.New("no usable message content")

// Turn is a single conversational message tagged with its speaker role.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Window is an ordered conversation history, oldest turn first.
type Window []Turn

// Normalize reconciles the two request shapes the chat endpoint accepts into
// one canonical window: a turn array when present, otherwise the legacy single
// message wrapped as a user turn. The merged window is truncated to the
// trailing maxTurns entries so upstream requests stay bounded.
//
// Roles and ordering inside a caller-supplied turn array are the caller's
// responsibility; Normalize does not validate them.
func Normalize(legacy string, turns []Turn, maxTurns int) (Window, error) {
	var w Window
	switch {
	case len(turns) > 0:
		w = append(w, turns...)
	case strings.TrimSpace(legacy) != "":
		w = Window{{Role: RoleUser, Content: legacy}}
	default:
		return nil, ErrEmptyInput
	}
	return w.Truncate(maxTurns), nil
}

// Truncate returns the trailing max turns of the window, discarding the oldest
// first. A non-positive max returns the window unchanged.
func (w Window) Truncate(max int) Window {
	if max <= 0 || len(w) <= max {
		return w
	}
	return w[len(w)-max:]
}
