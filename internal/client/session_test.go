package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/config"
	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/ot"
	"github.com/vovakirdan/coedit-server/internal/proto"
	"github.com/vovakirdan/coedit-server/internal/store"
	"github.com/vovakirdan/coedit-server/internal/store/memory"
	transporthttp "github.com/vovakirdan/coedit-server/internal/transport/http"
)

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

// startServer runs a full hub and HTTP stack and returns the websocket URL and
// the seeded room id.
func startServer(t *testing.T) (string, string) {
	t.Helper()

	st := memory.New()
	room, err := st.CreateRoom(context.Background(), &store.Room{Name: "Main Room", IsPublic: true})
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}

	cfg := config.Default()
	logger := zerolog.Nop()
	hub := core.NewHub(st, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(transporthttp.NewServer(hub, st, &cfg, &logger).Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws", strconv.FormatInt(room.ID, 10)
}

func startSession(t *testing.T, url, room, user string) *Session {
	t.Helper()

	s, err := New(Options{URL: url, RoomID: room, UserID: user, Username: user, ReconnectDelay: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	eventually(t, s.Connected, user+" connected")
	return s
}

func hasUser(s *Session, userID string) bool {
	for _, u := range s.Users() {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{URL: "ws://x", RoomID: "1"}); err == nil {
		t.Fatal("expected error without user id")
	}

	s, err := New(Options{URL: "ws://x", RoomID: "1", UserID: "u1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.opts.ReconnectDelay != DefaultReconnectDelay {
		t.Errorf("expected default delay, got %v", s.opts.ReconnectDelay)
	}
	if s.opts.Username != "u1" {
		t.Errorf("expected username to default to user id, got %q", s.opts.Username)
	}
	if err := s.SendChat(context.Background(), "hi"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestFirstSnapshotKeepsListedCursors(t *testing.T) {
	s, err := New(Options{URL: "ws://x", RoomID: "1", UserID: "bob"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frames := []proto.Message{
		{Kind: proto.KindParticipants, Payload: []byte(`[{"userId":"alice","username":"alice","color":"#FF6B6B","cursor":{"line":1,"column":3}}]`)},
		{Kind: proto.KindCodeChange, UserID: "alice", Payload: []byte(`{"content":"hello"}`)},
	}
	for _, m := range frames {
		if err := s.handle(m); err != nil {
			t.Fatalf("handle %s: %v", m.Kind, err)
		}
	}
	if got := s.Cursors()["alice"]; got != (ot.Cursor{Line: 1, Column: 3}) {
		t.Fatalf("expected cursor to stay at 1:3 after first snapshot, got %+v", got)
	}

	if err := s.handle(proto.Message{Kind: proto.KindCodeChange, UserID: "alice", Payload: []byte(`{"content":"xxhello"}`)}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := s.Cursors()["alice"]; got != (ot.Cursor{Line: 1, Column: 5}) {
		t.Fatalf("expected cursor shifted to 1:5, got %+v", got)
	}
}

func TestSessionsSeeEachOther(t *testing.T) {
	url, room := startServer(t)

	alice := startSession(t, url, room, "alice")
	eventually(t, func() bool { return hasUser(alice, "alice") }, "alice sees herself")

	bob := startSession(t, url, room, "bob")
	eventually(t, func() bool { return hasUser(alice, "bob") }, "alice sees bob")
	eventually(t, func() bool { return hasUser(bob, "alice") && hasUser(bob, "bob") }, "bob sees both")

	for _, u := range alice.Users() {
		if u.Color == "" {
			t.Errorf("expected color for %s", u.UserID)
		}
	}
}

func TestCodeChangeAndCursorRemap(t *testing.T) {
	url, room := startServer(t)

	alice := startSession(t, url, room, "alice")
	bob := startSession(t, url, room, "bob")
	eventually(t, func() bool { return hasUser(alice, "bob") }, "alice sees bob")

	ctx := context.Background()
	if err := alice.SendCodeChange(ctx, "abc"); err != nil {
		t.Fatalf("SendCodeChange: %v", err)
	}
	eventually(t, func() bool { return bob.Code() == "abc" }, "bob receives code")

	if err := alice.SendCursor(ctx, 1, 4); err != nil {
		t.Fatalf("SendCursor: %v", err)
	}
	eventually(t, func() bool { return bob.Cursors()["alice"] == ot.Cursor{Line: 1, Column: 4} }, "bob sees alice's cursor")

	if err := alice.SendCodeChange(ctx, "xxabc"); err != nil {
		t.Fatalf("SendCodeChange: %v", err)
	}
	eventually(t, func() bool { return bob.Code() == "xxabc" }, "bob receives second edit")

	if got := bob.Cursors()["alice"]; got != (ot.Cursor{Line: 1, Column: 6}) {
		t.Errorf("expected cursor shifted to 1:6, got %+v", got)
	}
}

func TestChatDeliveredToCallback(t *testing.T) {
	url, room := startServer(t)

	var got atomic.Value
	bob, err := New(Options{
		URL:    url,
		RoomID: room,
		UserID: "bob",
		OnMessage: func(m proto.Message) {
			if m.Kind == proto.KindChat {
				got.Store(string(m.Payload))
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bob.Run(ctx)
	eventually(t, func() bool { return hasUser(bob, "bob") }, "bob joined")

	alice := startSession(t, url, room, "alice")
	eventually(t, func() bool { return hasUser(bob, "alice") }, "bob sees alice")

	if err := alice.SendChat(context.Background(), "hello"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	eventually(t, func() bool {
		v, _ := got.Load().(string)
		return strings.Contains(v, "hello")
	}, "bob receives chat")
}

func TestLeaveRemovesUser(t *testing.T) {
	url, room := startServer(t)

	alice := startSession(t, url, room, "alice")

	bob, err := New(Options{URL: url, RoomID: room, UserID: "bob"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		bob.Run(ctx)
	}()
	eventually(t, func() bool { return hasUser(alice, "bob") }, "alice sees bob")

	cancel()
	<-done
	if bob.Connected() {
		t.Error("expected bob disconnected after Run returns")
	}
	eventually(t, func() bool { return !hasUser(alice, "bob") }, "alice drops bob")
}

func TestSessionReconnects(t *testing.T) {
	var joins atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		var msg proto.Message
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil || msg.Kind != proto.KindJoin {
			return
		}
		if joins.Add(1) == 1 {
			conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		conn.Read(r.Context())
	}))
	defer ts.Close()

	s, err := New(Options{
		URL:            strings.Replace(ts.URL, "http", "ws", 1),
		RoomID:         "1",
		UserID:         "u1",
		ReconnectDelay: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	eventually(t, func() bool { return joins.Load() >= 2 && s.Connected() }, "session rejoined")

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
