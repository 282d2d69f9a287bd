package core

import "github.com/vovakirdan/coedit-server/internal/ot"

// Command is an action requested by a client. The set of implementations is
// closed: Join, Leave, CodeChange, CursorMove, FileChange and Chat.
type Command interface {
	command()
}

// Join binds an unjoined connection to a room.
type Join struct {
	UserID   string
	Username string
	Room     string
}

// Leave ends the connection's membership.
type Leave struct{}

// CodeChange replaces the room document with Content. Changes and Version
// are relayed unchanged.
type CodeChange struct {
	Content string
	Changes []ot.Operation
	Version int
}

// CursorMove reports the sender's caret, 1-based.
type CursorMove struct {
	Line   int
	Column int
}

// FileChange replaces the content of one file. FileID 0 means the sender did
// not name a file, so nothing is persisted.
type FileChange struct {
	FileID  int64
	Content string
}

// Chat is a free-form text message.
type Chat struct {
	Text string
}

func (Join) command()       {}
func (Leave) command()      {}
func (CodeChange) command() {}
func (CursorMove) command() {}
func (FileChange) command() {}
func (Chat) command()       {}
