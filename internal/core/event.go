package core

import "github.com/vovakirdan/coedit-server/internal/presence"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoin notifies peers that a user entered the room.
	EventJoin EventKind = iota
	// EventLeave notifies peers that a user left the room.
	EventLeave
	// EventParticipants delivers the room roster to a newly joined client.
	EventParticipants
	// EventCodeChange relays a document snapshot.
	EventCodeChange
	// EventCursorMove relays a caret position.
	EventCursorMove
	// EventFileChange relays a file content update.
	EventFileChange
	// EventChat relays a chat message.
	EventChat
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventParticipants:
		return "participantsList"
	case EventCodeChange:
		return "codeChange"
	case EventCursorMove:
		return "cursorMove"
	case EventFileChange:
		return "fileChange"
	case EventChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in a room. Exactly one
// payload field is set, matching Kind; join and leave carry none.
type Event struct {
	Kind EventKind
	Room string
	From Identity

	CodeChange   *CodeChange
	Cursor       *CursorMove
	FileChange   *FileChange
	Chat         *Chat
	Participants []presence.Member
}
