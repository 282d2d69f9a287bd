package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/coedit-server/internal/store"
)

// Schema creates every table the store needs. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	code       TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT 'javascript',
	is_public  BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_participants (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id   INTEGER NOT NULL,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	color     TEXT NOT NULL,
	is_owner  BOOLEAN NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS files (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id   INTEGER NOT NULL,
	name      TEXT NOT NULL,
	content   TEXT NOT NULL DEFAULT '',
	language  TEXT NOT NULL DEFAULT 'javascript',
	path      TEXT NOT NULL,
	is_folder BOOLEAN NOT NULL DEFAULT 0,
	parent_id INTEGER
);

CREATE TABLE IF NOT EXISTS code_versions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    INTEGER NOT NULL,
	code       TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_room_participants_room ON room_participants(room_id);
CREATE INDEX IF NOT EXISTS idx_files_room ON files(room_id);
CREATE INDEX IF NOT EXISTS idx_code_versions_room ON code_versions(room_id, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies Schema to db.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) (*store.Room, error) {
	language := room.Language
	if language == "" {
		language = store.DefaultLanguage
	}

	query := `
		INSERT INTO rooms (name, code, language, is_public)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, room.Name, room.Code, language, room.IsPublic)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("room %q: %w", room.Name, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, id int64) (*store.Room, error) {
	query := `
		SELECT id, name, code, language, is_public, created_at
		FROM rooms
		WHERE id = ?
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, id))
}

// GetRoomByName retrieves a room by name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	query := `
		SELECT id, name, code, language, is_public, created_at
		FROM rooms
		WHERE name = ?
	`
	return s.scanRoom(s.db.QueryRowContext(ctx, query, name))
}

// UpdateRoomCode replaces the document snapshot of a room.
func (s *SQLiteStore) UpdateRoomCode(ctx context.Context, id int64, code string) (*store.Room, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE rooms SET code = ? WHERE id = ?`, code, id)
	if err != nil {
		return nil, fmt.Errorf("update room code: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("room %d: %w", id, store.ErrNotFound)
	}
	return s.GetRoom(ctx, id)
}

func (s *SQLiteStore) scanRoom(row *sql.Row) (*store.Room, error) {
	var room store.Room
	err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Code,
		&room.Language,
		&room.IsPublic,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// ==== ParticipantStore implementation ====

// AddParticipant inserts the membership row; an existing (room, user) pair is left untouched.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *store.Participant) error {
	query := `
		INSERT OR IGNORE INTO room_participants (room_id, user_id, username, color, is_owner, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, p.RoomID, p.UserID, p.Username, p.Color, p.IsOwner, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// GetParticipants lists members of a room in join order.
func (s *SQLiteStore) GetParticipants(ctx context.Context, roomID int64) ([]*store.Participant, error) {
	query := `
		SELECT id, room_id, user_id, username, color, is_owner, joined_at
		FROM room_participants
		WHERE room_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*store.Participant, 0)
	for rows.Next() {
		var p store.Participant
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &p.Username, &p.Color, &p.IsOwner, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, &p)
	}

	return participants, rows.Err()
}

// RemoveParticipant deletes a membership row.
func (s *SQLiteStore) RemoveParticipant(ctx context.Context, roomID int64, userID string) error {
	query := `
		DELETE FROM room_participants
		WHERE room_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// ==== FileStore implementation ====

// CreateFile inserts a file or folder entry.
func (s *SQLiteStore) CreateFile(ctx context.Context, f *store.File) (*store.File, error) {
	language := f.Language
	if language == "" {
		language = store.DefaultLanguage
	}

	query := `
		INSERT INTO files (room_id, name, content, language, path, is_folder, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, f.RoomID, f.Name, f.Content, language, f.Path, f.IsFolder, f.ParentID)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getFile(ctx, id)
}

// GetFiles lists the file tree of a room.
func (s *SQLiteStore) GetFiles(ctx context.Context, roomID int64) ([]*store.File, error) {
	query := `
		SELECT id, room_id, name, content, language, path, is_folder, parent_id
		FROM files
		WHERE room_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	files := make([]*store.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// UpdateFile replaces a file's content.
func (s *SQLiteStore) UpdateFile(ctx context.Context, id int64, content string) (*store.File, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE files SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return nil, fmt.Errorf("update file: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("file %d: %w", id, store.ErrNotFound)
	}
	return s.getFile(ctx, id)
}

// DeleteFile removes a file entry.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getFile(ctx context.Context, id int64) (*store.File, error) {
	query := `
		SELECT id, room_id, name, content, language, path, is_folder, parent_id
		FROM files
		WHERE id = ?
	`
	f, err := scanFile(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*store.File, error) {
	var f store.File
	var parentID sql.NullInt64
	if err := row.Scan(&f.ID, &f.RoomID, &f.Name, &f.Content, &f.Language, &f.Path, &f.IsFolder, &parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if parentID.Valid {
		f.ParentID = &parentID.Int64
	}
	return &f, nil
}

// ==== VersionStore implementation ====

// SaveVersion stores a document snapshot.
func (s *SQLiteStore) SaveVersion(ctx context.Context, v *store.Version) (*store.Version, error) {
	createdAt := time.Now().UTC()
	query := `
		INSERT INTO code_versions (room_id, code, created_by, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, v.RoomID, v.Code, v.CreatedBy, createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	saved := *v
	saved.ID = id
	saved.CreatedAt = createdAt
	return &saved, nil
}

// GetVersions lists versions of a room, newest first.
func (s *SQLiteStore) GetVersions(ctx context.Context, roomID int64) ([]*store.Version, error) {
	query := `
		SELECT id, room_id, code, created_by, created_at
		FROM code_versions
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]*store.Version, 0)
	for rows.Next() {
		var v store.Version
		if err := rows.Scan(&v.ID, &v.RoomID, &v.Code, &v.CreatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &v)
	}

	return versions, rows.Err()
}
