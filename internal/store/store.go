package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
)

// Room is a collaboration session holding one document.
type Room struct {
	ID        int64
	Name      string
	Code      string
	Language  string
	IsPublic  bool
	CreatedAt time.Time
}

// Participant is the durable membership row of a user in a room.
type Participant struct {
	ID       int64
	RoomID   int64
	UserID   string
	Username string
	Color    string
	IsOwner  bool
	JoinedAt time.Time
}

// File is an entry of a room's file tree.
type File struct {
	ID       int64
	RoomID   int64
	Name     string
	Content  string
	Language string
	Path     string
	IsFolder bool
	ParentID *int64
}

// Version is a saved snapshot of a room's document.
type Version struct {
	ID        int64
	RoomID    int64
	Code      string
	CreatedBy string
	CreatedAt time.Time
}

// Defaults applied when a room or file is created without them.
const (
	DefaultLanguage = "javascript"
)

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts room and returns the stored row.
	CreateRoom(ctx context.Context, room *Room) (*Room, error)

	// GetRoom retrieves a room by ID.
	GetRoom(ctx context.Context, id int64) (*Room, error)

	// GetRoomByName retrieves a room by name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// UpdateRoomCode replaces the room's document snapshot.
	UpdateRoomCode(ctx context.Context, id int64, code string) (*Room, error)
}

// ParticipantStore handles room membership persistence.
type ParticipantStore interface {
	// AddParticipant records membership. Adding an existing (room, user) pair is a no-op.
	AddParticipant(ctx context.Context, p *Participant) error

	// GetParticipants lists members of a room in join order.
	GetParticipants(ctx context.Context, roomID int64) ([]*Participant, error)

	// RemoveParticipant deletes the membership row, if any.
	RemoveParticipant(ctx context.Context, roomID int64, userID string) error
}

// FileStore handles file tree persistence.
type FileStore interface {
	CreateFile(ctx context.Context, f *File) (*File, error)
	GetFiles(ctx context.Context, roomID int64) ([]*File, error)
	UpdateFile(ctx context.Context, id int64, content string) (*File, error)
	DeleteFile(ctx context.Context, id int64) error
}

// VersionStore handles saved document versions.
type VersionStore interface {
	// SaveVersion stores a snapshot and returns it with ID and timestamp set.
	SaveVersion(ctx context.Context, v *Version) (*Version, error)

	// GetVersions lists a room's versions, newest first.
	GetVersions(ctx context.Context, roomID int64) ([]*Version, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	ParticipantStore
	FileStore
	VersionStore

	// Close releases the underlying connection.
	Close() error
}
