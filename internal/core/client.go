package core

import "github.com/google/uuid"

// State is where a connection is in its lifecycle.
type State int

const (
	// StateUnjoined accepts only a join.
	StateUnjoined State = iota
	// StateActive is a connection registered in exactly one room.
	StateActive
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Identity is who a connection speaks for once it has joined.
type Identity struct {
	ConnID   string
	UserID   string
	Username string
	Color    string
	Room     string
}

// Client is one live connection as seen by the hub.
//
// Transport code writes to Commands and reads from Events until Done is
// closed. Events is never closed.
type Client struct {
	ID       string
	Commands chan Command
	Events   chan *Event

	done chan struct{}

	// owned by the hub goroutine
	state    State
	identity Identity
}

// NewClient constructs a client with initialized channels. An empty id is
// replaced with a random UUID.
func NewClient(id string) *Client {
	if id == "" {
		id = uuid.NewString()
	}
	return &Client{
		ID:       id,
		Commands: make(chan Command, 16),
		Events:   make(chan *Event, 64),
		done:     make(chan struct{}),
	}
}

// Done is closed once the hub has run the leave path for this client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// send delivers ev without blocking. Slow consumers lose the event.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
