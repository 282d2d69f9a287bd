// Package memory is a process-local store.Store used for tests and for
// running without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vovakirdan/coedit-server/internal/store"
)

// Store keeps every entity in maps guarded by one mutex.
type Store struct {
	mu           sync.RWMutex
	rooms        map[int64]*store.Room
	participants map[int64]*store.Participant
	files        map[int64]*store.File
	versions     map[int64]*store.Version

	nextRoomID        int64
	nextParticipantID int64
	nextFileID        int64
	nextVersionID     int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:             make(map[int64]*store.Room),
		participants:      make(map[int64]*store.Participant),
		files:             make(map[int64]*store.File),
		versions:          make(map[int64]*store.Version),
		nextRoomID:        1,
		nextParticipantID: 1,
		nextFileID:        1,
		nextVersionID:     1,
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) CreateRoom(_ context.Context, room *store.Room) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		if r.Name == room.Name {
			return nil, fmt.Errorf("room %q: %w", room.Name, store.ErrConflict)
		}
	}

	r := *room
	r.ID = s.nextRoomID
	s.nextRoomID++
	if r.Language == "" {
		r.Language = store.DefaultLanguage
	}
	r.CreatedAt = time.Now().UTC()
	s.rooms[r.ID] = &r

	out := r
	return &out, nil
}

func (s *Store) GetRoom(_ context.Context, id int64) (*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
	}
	out := *r
	return &out, nil
}

func (s *Store) GetRoomByName(_ context.Context, name string) (*store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.Name == name {
			out := *r
			return &out, nil
		}
	}
	return nil, fmt.Errorf("room %q: %w", name, store.ErrNotFound)
}

func (s *Store) UpdateRoomCode(_ context.Context, id int64, code string) (*store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
	}
	r.Code = code
	out := *r
	return &out, nil
}

func (s *Store) AddParticipant(_ context.Context, p *store.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.participants {
		if existing.RoomID == p.RoomID && existing.UserID == p.UserID {
			return nil
		}
	}

	row := *p
	row.ID = s.nextParticipantID
	s.nextParticipantID++
	row.JoinedAt = time.Now().UTC()
	s.participants[row.ID] = &row
	return nil
}

func (s *Store) GetParticipants(_ context.Context, roomID int64) ([]*store.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Participant, 0)
	for _, p := range s.participants {
		if p.RoomID == roomID {
			row := *p
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) RemoveParticipant(_ context.Context, roomID int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.participants {
		if p.RoomID == roomID && p.UserID == userID {
			delete(s.participants, id)
		}
	}
	return nil
}

func (s *Store) CreateFile(_ context.Context, f *store.File) (*store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *f
	row.ID = s.nextFileID
	s.nextFileID++
	if row.Language == "" {
		row.Language = store.DefaultLanguage
	}
	s.files[row.ID] = &row

	out := row
	return &out, nil
}

func (s *Store) GetFiles(_ context.Context, roomID int64) ([]*store.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.File, 0)
	for _, f := range s.files {
		if f.RoomID == roomID {
			row := *f
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateFile(_ context.Context, id int64, content string) (*store.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file %d: %w", id, store.ErrNotFound)
	}
	f.Content = content
	out := *f
	return &out, nil
}

func (s *Store) DeleteFile(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.files, id)
	return nil
}

func (s *Store) SaveVersion(_ context.Context, v *store.Version) (*store.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *v
	row.ID = s.nextVersionID
	s.nextVersionID++
	row.CreatedAt = time.Now().UTC()
	s.versions[row.ID] = &row

	out := row
	return &out, nil
}

func (s *Store) GetVersions(_ context.Context, roomID int64) ([]*store.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Version, 0)
	for _, v := range s.versions {
		if v.RoomID == roomID {
			row := *v
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
