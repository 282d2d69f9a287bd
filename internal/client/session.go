// Package client is a Go counterpart of the browser editor: it joins a room
// over the websocket, keeps the room state it hears about, and reconnects
// when the connection drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/ot"
	"github.com/vovakirdan/coedit-server/internal/proto"
)

// DefaultReconnectDelay is the pause between reconnect attempts.
const DefaultReconnectDelay = 3 * time.Second

// ErrNotConnected is returned by Send* while no connection is up.
var ErrNotConnected = errors.New("not connected")

// Options configures a Session.
type Options struct {
	URL            string
	RoomID         string
	UserID         string
	Username       string
	ReconnectDelay time.Duration
	Logger         *zerolog.Logger

	// OnMessage, if set, sees every inbound message after state is updated.
	// It runs on the read goroutine.
	OnMessage func(proto.Message)
}

// User is someone present in the room.
type User struct {
	UserID   string
	Username string
	Color    string
}

// Session is one user's view of a room.
type Session struct {
	opts Options
	log  *zerolog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	conn    *websocket.Conn
	users   []User
	code    string
	seeded  bool
	version int
	cursors map[string]ot.Cursor
}

// New validates opts and returns an idle session. Call Run to connect.
func New(opts Options) (*Session, error) {
	if opts.URL == "" || opts.RoomID == "" || opts.UserID == "" {
		return nil, errors.New("client: URL, RoomID and UserID are required")
	}
	if opts.Username == "" {
		opts.Username = opts.UserID
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{
		opts:    opts,
		log:     logger,
		cursors: make(map[string]ot.Cursor),
	}, nil
}

// Run connects, joins and keeps reconnecting with a fixed delay until ctx is
// canceled. It always returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(s.opts.ReconnectDelay), ctx)

	_ = backoff.RetryNotify(func() error {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("connection closed")
		}
		return err
	}, b, func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Dur("retry_in", wait).Str("room_id", s.opts.RoomID).Msg("disconnected, reconnecting")
	})
	return ctx.Err()
}

func (s *Session) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer s.disconnect()

	if err := s.send(ctx, proto.KindJoin, struct{}{}); err != nil {
		return err
	}
	s.log.Info().Str("room_id", s.opts.RoomID).Str("user_id", s.opts.UserID).Msg("joined")

	for {
		var msg proto.Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		if err := s.handle(msg); err != nil {
			s.log.Warn().Err(err).Str("kind", msg.Kind).Msg("bad message from server")
			continue
		}
		if s.opts.OnMessage != nil {
			s.opts.OnMessage(msg)
		}
	}
}

func (s *Session) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
	s.seeded = false
	s.users = nil
	s.cursors = make(map[string]ot.Cursor)
}

func (s *Session) handle(msg proto.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case proto.KindParticipants:
		var list []proto.Participant
		if err := json.Unmarshal(msg.Payload, &list); err != nil {
			return err
		}
		s.users = s.users[:0]
		for _, p := range list {
			s.users = append(s.users, User{UserID: p.UserID, Username: p.Username, Color: p.Color})
			if p.Cursor != nil {
				s.cursors[p.UserID] = ot.Cursor{Line: p.Cursor.Line, Column: p.Cursor.Column}
			}
		}
	case proto.KindJoin:
		var p proto.Presence
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.removeUser(p.UserID)
		s.users = append(s.users, User{UserID: p.UserID, Username: p.Username, Color: p.Color})
	case proto.KindLeave:
		s.removeUser(msg.UserID)
		delete(s.cursors, msg.UserID)
	case proto.KindCodeChange:
		var p proto.CodeChange
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.applyRemote(p)
	case proto.KindCursorMove:
		var p proto.CursorMove
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.cursors[msg.UserID] = ot.Cursor{Line: p.Line, Column: p.Column}
	}
	return nil
}

// applyRemote replaces the document and shifts known cursors by the edit.
// The first snapshot after connecting only seeds the document: cursors from
// the participant list already refer to it.
func (s *Session) applyRemote(p proto.CodeChange) {
	old, seeded := s.code, s.seeded
	s.code = p.Content
	s.seeded = true
	if p.Version > s.version {
		s.version = p.Version
	}
	if !seeded {
		return
	}

	op, ok := ot.GenerateOperationFromChange(old, p.Content)
	if !ok {
		return
	}
	for id, c := range s.cursors {
		s.cursors[id] = ot.TransformCursorPosition(c, op, old)
	}
}

func (s *Session) removeUser(userID string) {
	for i, u := range s.users {
		if u.UserID == userID {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return
		}
	}
}

func (s *Session) send(ctx context.Context, kind string, payload any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	msg := proto.Message{
		Kind:     kind,
		Payload:  raw,
		UserID:   s.opts.UserID,
		Username: s.opts.Username,
		RoomID:   s.opts.RoomID,
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

// SendCodeChange publishes the full new document along with the operation
// that turns the previous local copy into it.
func (s *Session) SendCodeChange(ctx context.Context, content string) error {
	s.mu.Lock()
	old := s.code
	s.code = content
	s.seeded = true
	s.version++
	payload := proto.CodeChange{Content: content, Version: s.version}
	s.mu.Unlock()

	if op, ok := ot.GenerateOperationFromChange(old, content); ok {
		payload.Changes = []ot.Operation{op.WithSite(s.opts.UserID)}
	}
	return s.send(ctx, proto.KindCodeChange, payload)
}

// SendCursor publishes the local caret, 1-based.
func (s *Session) SendCursor(ctx context.Context, line, column int) error {
	return s.send(ctx, proto.KindCursorMove, proto.CursorMove{Line: line, Column: column})
}

// SendChat posts a chat message to the room.
func (s *Session) SendChat(ctx context.Context, text string) error {
	return s.send(ctx, proto.KindChat, proto.Chat{Text: text})
}

// Connected reports whether a connection is currently up.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// Users returns the people in the room, self included, in join order.
func (s *Session) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// Code returns the last known document.
func (s *Session) Code() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// Cursors returns the last known caret of each other user.
func (s *Session) Cursors() map[string]ot.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ot.Cursor, len(s.cursors))
	for k, v := range s.cursors {
		out[k] = v
	}
	return out
}
