// Package presence tracks who is connected to each room, the color they were
// given, and where their cursor last was.
package presence

import (
	"sync"
	"time"
)

// Cursor is the last reported caret of a user.
type Cursor struct {
	Line   int
	Column int
}

// Member is one connection present in a room.
type Member struct {
	ConnID   string
	UserID   string
	Username string
	Color    string
	JoinedAt time.Time
	Cursor   *Cursor
}

type roomPresence struct {
	members []Member // join order
	cursors map[string]Cursor
}

// Tracker holds presence for every room of one hub.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]*roomPresence
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{rooms: make(map[string]*roomPresence)}
}

// Join records m as present in room.
func (t *Tracker) Join(room string, m Member) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rp, ok := t.rooms[room]
	if !ok {
		rp = &roomPresence{cursors: make(map[string]Cursor)}
		t.rooms[room] = rp
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	m.Cursor = nil
	rp.members = append(rp.members, m)
}

// Leave removes the connection from room and returns what was recorded for it.
// The user's cursor is dropped once none of their connections remain.
func (t *Tracker) Leave(room, connID string) (Member, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rp, ok := t.rooms[room]
	if !ok {
		return Member{}, false
	}
	idx := -1
	for i, m := range rp.members {
		if m.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Member{}, false
	}
	left := rp.members[idx]
	rp.members = append(rp.members[:idx], rp.members[idx+1:]...)

	if !rp.hasUser(left.UserID) {
		delete(rp.cursors, left.UserID)
	}
	if len(rp.members) == 0 {
		delete(t.rooms, room)
	}
	return left, true
}

// MoveCursor stores the last cursor of a user present in room.
func (t *Tracker) MoveCursor(room, userID string, c Cursor) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rp, ok := t.rooms[room]
	if !ok || !rp.hasUser(userID) {
		return false
	}
	rp.cursors[userID] = c
	return true
}

// Members lists users present in room, one entry per user id in join order.
func (t *Tracker) Members(room string) []Member {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rp, ok := t.rooms[room]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(rp.members))
	out := make([]Member, 0, len(rp.members))
	for _, m := range rp.members {
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		if c, ok := rp.cursors[m.UserID]; ok {
			m.Cursor = &c
		}
		out = append(out, m)
	}
	return out
}

// Member returns the earliest connection of userID in room.
func (t *Tracker) Member(room, userID string) (Member, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rp, ok := t.rooms[room]
	if !ok {
		return Member{}, false
	}
	for _, m := range rp.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// HasUser reports whether any connection of userID is present in room.
func (t *Tracker) HasUser(room, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rp, ok := t.rooms[room]
	return ok && rp.hasUser(userID)
}

// Rooms returns the number of rooms with at least one member.
func (t *Tracker) Rooms() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

func (rp *roomPresence) hasUser(userID string) bool {
	for _, m := range rp.members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
