// Package proto defines the JSON messages exchanged over the websocket.
package proto

import (
	"encoding/json"

	"github.com/vovakirdan/coedit-server/internal/ot"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Username string          `json:"username,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
}

const (
	KindJoin       = "join"
	KindLeave      = "leave"
	KindCodeChange = "codeChange"
	KindCursorMove = "cursorMove"
	KindFileChange = "fileChange"
	KindChat       = "chat"

	// KindParticipants is only sent by the server.
	KindParticipants = "participantsList"
)

// legacyKinds maps kind names used by older browser clients.
var legacyKinds = map[string]string{
	"userJoin":  KindJoin,
	"userLeave": KindLeave,
}

// CodeChange carries the full document after an edit.
type CodeChange struct {
	Content string         `json:"content"`
	Changes []ot.Operation `json:"changes,omitempty"`
	Version int            `json:"version,omitempty"`
}

// CursorMove is a 1-based caret position.
type CursorMove struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// FileChange replaces one file's content. FileID is optional.
type FileChange struct {
	FileID  int64  `json:"fileId,omitempty"`
	Content string `json:"content"`
}

// Chat is a text message.
type Chat struct {
	Text string `json:"text"`
}

// Presence is the payload of join and leave broadcasts.
type Presence struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color,omitempty"`
}

// Participant is one entry of a participantsList payload.
type Participant struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Color    string      `json:"color"`
	Cursor   *CursorMove `json:"cursor,omitempty"`
}
