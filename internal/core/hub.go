package core

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/presence"
	"github.com/vovakirdan/coedit-server/internal/store"
)

const (
	defaultPersistTimeout = 5 * time.Second
	defaultPersistQueue   = 256
)

type inbound struct {
	client *Client
	cmd    Command
}

// Hub coordinates clients and rooms. All connection state is mutated by the
// goroutine running Run.
type Hub struct {
	store    store.Store
	log      *zerolog.Logger
	registry *Registry
	presence *presence.Tracker
	colors   presence.ColorPicker
	mirror   Mirror

	persistTimeout time.Duration
	persistQueue   int
	persist        *taskQueue
	publish        *taskQueue

	register   chan *Client
	unregister chan *Client
	inbox      chan inbound
	remote     chan *Event
	done       chan struct{}

	clients map[string]*Client
}

// Option customizes a Hub.
type Option func(*Hub)

// WithColorPicker sets how join colors are chosen.
func WithColorPicker(p presence.ColorPicker) Option {
	return func(h *Hub) { h.colors = p }
}

// WithMirror relays room events to and from other instances.
func WithMirror(m Mirror) Option {
	return func(h *Hub) { h.mirror = m }
}

// WithPersistTimeout bounds every store write.
func WithPersistTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.persistTimeout = d
		}
	}
}

// WithPersistQueue sets how many pending writes are buffered before new ones
// are dropped.
func WithPersistQueue(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.persistQueue = n
		}
	}
}

// NewHub creates a hub. st may be nil, in which case nothing is persisted.
func NewHub(st store.Store, logger *zerolog.Logger, opts ...Option) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		store:          st,
		log:            logger,
		registry:       NewRegistry(),
		presence:       presence.NewTracker(),
		colors:         presence.NewColorPicker(presence.ColorRandom),
		persistTimeout: defaultPersistTimeout,
		persistQueue:   defaultPersistQueue,
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		inbox:          make(chan inbound, 64),
		remote:         make(chan *Event, 64),
		done:           make(chan struct{}),
		clients:        make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.persist = newTaskQueue("persist", h.persistQueue, h.persistTimeout, h.log)
	h.publish = newTaskQueue("mirror", h.persistQueue, h.persistTimeout, h.log)
	return h
}

// Registry exposes the live room membership for read-only observers.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Presence exposes the presence tracker for read-only observers.
func (h *Hub) Presence() *presence.Tracker {
	return h.presence
}

// Run processes hub events until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	// Workers outlive ctx so the leaves queued by shutdown still reach the store.
	workCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		h.persist.run(workCtx)
	}()
	go func() {
		defer workers.Done()
		h.publish.run(workCtx)
	}()
	defer workers.Wait()
	defer stopWorkers()
	h.subscribeMirror(ctx)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.clients[c.ID] = c
			h.log.Debug().Str("conn_id", c.ID).Msg("client registered")
		case c := <-h.unregister:
			h.leave(c)
			delete(h.clients, c.ID)
			h.log.Debug().Str("conn_id", c.ID).Msg("client unregistered")
		case in := <-h.inbox:
			h.dispatch(in.client, in.cmd)
		case ev := <-h.remote:
			h.registry.Broadcast(ev.Room, ev, "")
		}
	}
}

// RegisterClient attaches c to the hub and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case h.register <- c:
	case <-h.done:
		return ErrClosed
	}
	go h.pump(c)
	return nil
}

// UnregisterClient runs the leave path for c if it has not run yet.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			select {
			case h.inbox <- inbound{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.done:
				return
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) dispatch(c *Client, cmd Command) {
	if join, ok := cmd.(Join); ok {
		h.join(c, join)
		return
	}

	if c.state != StateActive {
		h.log.Debug().Err(ErrNotJoined).Str("conn_id", c.ID).Str("state", c.state.String()).Msg("command dropped")
		return
	}

	switch cmd := cmd.(type) {
	case Leave:
		h.leave(c)
	case CodeChange:
		h.codeChange(c, cmd)
	case CursorMove:
		h.cursorMove(c, cmd)
	case FileChange:
		h.fileChange(c, cmd)
	case Chat:
		h.relay(c, &Event{Kind: EventChat, Room: c.identity.Room, From: c.identity, Chat: &cmd})
	default:
		h.log.Debug().Str("conn_id", c.ID).Msgf("unhandled command %T", cmd)
	}
}

func (h *Hub) join(c *Client, cmd Join) {
	if c.state != StateUnjoined {
		h.log.Debug().Err(ErrAlreadyJoined).Str("conn_id", c.ID).Str("state", c.state.String()).Msg("join ignored")
		return
	}
	if cmd.Room == "" || cmd.UserID == "" {
		h.log.Debug().Str("conn_id", c.ID).Msg("join without room or user ignored")
		return
	}

	username := cmd.Username
	if username == "" {
		username = cmd.UserID
	}
	// A user already present keeps the color peers were told about.
	existing, returning := h.presence.Member(cmd.Room, cmd.UserID)
	color := existing.Color
	if !returning {
		color = h.colors.Pick(cmd.UserID)
	}
	c.identity = Identity{
		ConnID:   c.ID,
		UserID:   cmd.UserID,
		Username: username,
		Color:    color,
		Room:     cmd.Room,
	}
	c.state = StateActive

	h.registry.Add(cmd.Room, c)
	h.presence.Join(cmd.Room, presence.Member{
		ConnID:   c.ID,
		UserID:   c.identity.UserID,
		Username: c.identity.Username,
		Color:    c.identity.Color,
		JoinedAt: time.Now().UTC(),
	})

	id := c.identity
	h.persistRoom(id.Room, "add_participant", func(ctx context.Context, roomID int64) error {
		return h.store.AddParticipant(ctx, &store.Participant{
			RoomID:   roomID,
			UserID:   id.UserID,
			Username: id.Username,
			Color:    id.Color,
		})
	})

	h.log.Info().Str("conn_id", c.ID).Str("user_id", id.UserID).Str("room_id", id.Room).Msg("user joined")

	if !returning {
		h.relay(c, &Event{Kind: EventJoin, Room: id.Room, From: id})
	}
	c.send(&Event{
		Kind:         EventParticipants,
		Room:         id.Room,
		From:         id,
		Participants: h.presence.Members(id.Room),
	})
}

func (h *Hub) leave(c *Client) {
	if c.state == StateClosed {
		return
	}
	wasActive := c.state == StateActive
	c.state = StateClosed
	close(c.done)
	if !wasActive {
		return
	}

	id := c.identity
	h.registry.Remove(id.Room, c.ID)
	h.presence.Leave(id.Room, c.ID)

	if h.presence.HasUser(id.Room, id.UserID) {
		h.log.Debug().Str("conn_id", c.ID).Str("user_id", id.UserID).Msg("user still connected elsewhere")
		return
	}

	h.persistRoom(id.Room, "remove_participant", func(ctx context.Context, roomID int64) error {
		return h.store.RemoveParticipant(ctx, roomID, id.UserID)
	})

	h.log.Info().Str("conn_id", c.ID).Str("user_id", id.UserID).Str("room_id", id.Room).Msg("user left")
	h.relay(c, &Event{Kind: EventLeave, Room: id.Room, From: id})
}

func (h *Hub) codeChange(c *Client, cmd CodeChange) {
	h.persistRoom(c.identity.Room, "update_code", func(ctx context.Context, roomID int64) error {
		_, err := h.store.UpdateRoomCode(ctx, roomID, cmd.Content)
		return err
	})
	h.relay(c, &Event{Kind: EventCodeChange, Room: c.identity.Room, From: c.identity, CodeChange: &cmd})
}

func (h *Hub) cursorMove(c *Client, cmd CursorMove) {
	h.presence.MoveCursor(c.identity.Room, c.identity.UserID, presence.Cursor{Line: cmd.Line, Column: cmd.Column})
	h.relay(c, &Event{Kind: EventCursorMove, Room: c.identity.Room, From: c.identity, Cursor: &cmd})
}

func (h *Hub) fileChange(c *Client, cmd FileChange) {
	if cmd.FileID != 0 && h.store != nil {
		h.persist.enqueue("update_file", func(ctx context.Context) error {
			_, err := h.store.UpdateFile(ctx, cmd.FileID, cmd.Content)
			return err
		})
	}
	h.relay(c, &Event{Kind: EventFileChange, Room: c.identity.Room, From: c.identity, FileChange: &cmd})
}

// relay delivers ev to every local peer of c and forwards it to the mirror.
func (h *Hub) relay(c *Client, ev *Event) {
	n := h.registry.Broadcast(ev.Room, ev, c.ID)
	h.log.Debug().Str("conn_id", c.ID).Str("room_id", ev.Room).Str("kind", ev.Kind.String()).Int("delivered", n).Msg("relayed")

	if h.mirror != nil {
		h.publish.enqueue(ev.Kind.String(), func(ctx context.Context) error {
			return h.mirror.Publish(ctx, ev)
		})
	}
}

// persistRoom schedules fn when the room id names a stored room. Rooms that
// exist only in memory have non-numeric ids.
func (h *Hub) persistRoom(room, kind string, fn func(ctx context.Context, roomID int64) error) {
	if h.store == nil {
		return
	}
	roomID, err := strconv.ParseInt(room, 10, 64)
	if err != nil {
		return
	}
	h.persist.enqueue(kind, func(ctx context.Context) error {
		return fn(ctx, roomID)
	})
}

func (h *Hub) subscribeMirror(ctx context.Context) {
	if h.mirror == nil {
		return
	}
	events, err := h.mirror.Subscribe(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("mirror subscribe failed, running standalone")
		return
	}
	go func() {
		for ev := range events {
			select {
			case h.remote <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
}

// shutdown runs the leave path for every connection still open.
func (h *Hub) shutdown() {
	for _, c := range h.clients {
		h.leave(c)
	}
	h.log.Info().Int("clients", len(h.clients)).Msg("hub stopped")
}
