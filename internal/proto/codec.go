package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/presence"
)

var (
	// ErrMalformed wraps frames that are not valid messages.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownKind is returned for message kinds the server does not handle.
	ErrUnknownKind = errors.New("unknown message kind")
)

// Decode parses one frame. Frames from older clients that carry the kind
// under "type" or use userJoin/userLeave are accepted too.
func Decode(data []byte) (Message, error) {
	var frame struct {
		Message
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg := frame.Message
	if msg.Kind == "" {
		msg.Kind = frame.Type
	}
	if kind, ok := legacyKinds[msg.Kind]; ok {
		msg.Kind = kind
	}
	if msg.Kind == "" {
		return Message{}, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	return msg, nil
}

// ToCommand maps an inbound message to a hub command.
func ToCommand(msg Message) (core.Command, error) {
	switch msg.Kind {
	case KindJoin:
		if msg.RoomID == "" || msg.UserID == "" {
			return nil, fmt.Errorf("%w: join requires roomId and userId", ErrMalformed)
		}
		return core.Join{UserID: msg.UserID, Username: msg.Username, Room: msg.RoomID}, nil
	case KindLeave:
		return core.Leave{}, nil
	case KindCodeChange:
		var p CodeChange
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return core.CodeChange{Content: p.Content, Changes: p.Changes, Version: p.Version}, nil
	case KindCursorMove:
		var p CursorMove
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if p.Line < 1 || p.Column < 1 {
			return nil, fmt.Errorf("%w: cursor position must be 1-based", ErrMalformed)
		}
		return core.CursorMove{Line: p.Line, Column: p.Column}, nil
	case KindFileChange:
		var p FileChange
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return core.FileChange{FileID: p.FileID, Content: p.Content}, nil
	case KindChat:
		var p Chat
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return core.Chat{Text: p.Text}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
}

func decodePayload(msg Message, dst any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformed, msg.Kind)
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, msg.Kind, err)
	}
	return nil
}

// FromEvent renders a hub event as an outbound message.
func FromEvent(ev *core.Event) (Message, error) {
	msg := Message{
		Kind:     ev.Kind.String(),
		UserID:   ev.From.UserID,
		Username: ev.From.Username,
		RoomID:   ev.Room,
	}

	var payload any
	switch ev.Kind {
	case core.EventJoin:
		payload = Presence{UserID: ev.From.UserID, Username: ev.From.Username, Color: ev.From.Color}
	case core.EventLeave:
		payload = Presence{UserID: ev.From.UserID, Username: ev.From.Username}
	case core.EventParticipants:
		list := make([]Participant, 0, len(ev.Participants))
		for _, m := range ev.Participants {
			p := Participant{UserID: m.UserID, Username: m.Username, Color: m.Color}
			if m.Cursor != nil {
				p.Cursor = &CursorMove{Line: m.Cursor.Line, Column: m.Cursor.Column}
			}
			list = append(list, p)
		}
		payload = list
	case core.EventCodeChange:
		payload = CodeChange{Content: ev.CodeChange.Content, Changes: ev.CodeChange.Changes, Version: ev.CodeChange.Version}
	case core.EventCursorMove:
		payload = CursorMove{Line: ev.Cursor.Line, Column: ev.Cursor.Column}
	case core.EventFileChange:
		payload = FileChange{FileID: ev.FileChange.FileID, Content: ev.FileChange.Content}
	case core.EventChat:
		payload = Chat{Text: ev.Chat.Text}
	default:
		return Message{}, fmt.Errorf("%w: event %d", ErrUnknownKind, ev.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msg.Kind, err)
	}
	msg.Payload = raw
	return msg, nil
}

// ToEvent is the inverse of FromEvent. It is used to replay events received
// from another instance.
func ToEvent(msg Message) (*core.Event, error) {
	ev := &core.Event{
		Room: msg.RoomID,
		From: core.Identity{UserID: msg.UserID, Username: msg.Username, Room: msg.RoomID},
	}

	switch msg.Kind {
	case KindJoin, KindLeave:
		var p Presence
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		ev.Kind = core.EventJoin
		if msg.Kind == KindLeave {
			ev.Kind = core.EventLeave
		}
		ev.From.Color = p.Color
	case KindParticipants:
		var list []Participant
		if err := decodePayload(msg, &list); err != nil {
			return nil, err
		}
		ev.Kind = core.EventParticipants
		ev.Participants = make([]presence.Member, 0, len(list))
		for _, p := range list {
			m := presence.Member{UserID: p.UserID, Username: p.Username, Color: p.Color}
			if p.Cursor != nil {
				m.Cursor = &presence.Cursor{Line: p.Cursor.Line, Column: p.Cursor.Column}
			}
			ev.Participants = append(ev.Participants, m)
		}
	default:
		cmd, err := ToCommand(msg)
		if err != nil {
			return nil, err
		}
		switch cmd := cmd.(type) {
		case core.CodeChange:
			ev.Kind, ev.CodeChange = core.EventCodeChange, &cmd
		case core.CursorMove:
			ev.Kind, ev.Cursor = core.EventCursorMove, &cmd
		case core.FileChange:
			ev.Kind, ev.FileChange = core.EventFileChange, &cmd
		case core.Chat:
			ev.Kind, ev.Chat = core.EventChat, &cmd
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
		}
	}
	return ev, nil
}
