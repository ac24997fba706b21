// Package panel implements the copilot panel: its Hidden / Visible /
// AwaitingResponse state machine, the transcript, the worker that runs
// submissions off the UI loop, and the panel's placement on the host.
//
// A Machine is owned by the host's UI loop and is not safe for concurrent
// use. Only the Worker runs on its own goroutine, and it communicates with
// the loop through channels.
package panel

import "fmt"

// State is the panel's visibility state.
type State int

const (
	StateHidden State = iota
	StateVisible
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateVisible:
		return "visible"
	case StateAwaitingResponse:
		return "awaiting_response"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Role identifies who produced a transcript entry.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

func (r Role) String() string {
	if r == RoleUser {
		return "user"
	}
	return "assistant"
}

// Entry is one transcript line. Sequence strictly increases across entries.
type Entry struct {
	Role     Role
	Text     string
	Sequence int64
}

// Key is an editing key the panel reacts to.
type Key int

const (
	KeyEnter Key = iota
	KeyEscape
)
