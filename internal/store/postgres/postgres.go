// Package postgres implements store.Store on PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vovakirdan/coedit-server/internal/store"
)

// Schema creates every table the store needs. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	code       TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT 'javascript',
	is_public  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS room_participants (
	id        BIGSERIAL PRIMARY KEY,
	room_id   BIGINT NOT NULL,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	color     TEXT NOT NULL,
	is_owner  BOOLEAN NOT NULL DEFAULT FALSE,
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS files (
	id        BIGSERIAL PRIMARY KEY,
	room_id   BIGINT NOT NULL,
	name      TEXT NOT NULL,
	content   TEXT NOT NULL DEFAULT '',
	language  TEXT NOT NULL DEFAULT 'javascript',
	path      TEXT NOT NULL,
	is_folder BOOLEAN NOT NULL DEFAULT FALSE,
	parent_id BIGINT
);

CREATE TABLE IF NOT EXISTS code_versions (
	id         BIGSERIAL PRIMARY KEY,
	room_id    BIGINT NOT NULL,
	code       TEXT NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_room_participants_room ON room_participants(room_id);
CREATE INDEX IF NOT EXISTS idx_files_room ON files(room_id);
CREATE INDEX IF NOT EXISTS idx_code_versions_room ON code_versions(room_id, created_at DESC);
`

const uniqueViolation = "23505"

// PostgresStore implements store.Store for PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and applies Schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", what, err)
}

// ==== RoomStore implementation ====

func (s *PostgresStore) CreateRoom(ctx context.Context, room *store.Room) (*store.Room, error) {
	language := room.Language
	if language == "" {
		language = store.DefaultLanguage
	}

	query := `
		INSERT INTO rooms (name, code, language, is_public)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, code, language, is_public, created_at
	`
	out, err := scanRoom(s.pool.QueryRow(ctx, query, room.Name, room.Code, language, room.IsPublic))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("room %q: %w", room.Name, store.ErrConflict)
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT id, name, code, language, is_public, created_at FROM rooms WHERE id = $1`
	room, err := scanRoom(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "room")
	}
	return room, nil
}

func (s *PostgresStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	query := `SELECT id, name, code, language, is_public, created_at FROM rooms WHERE name = $1`
	room, err := scanRoom(s.pool.QueryRow(ctx, query, name))
	if err != nil {
		return nil, notFound(err, "room")
	}
	return room, nil
}

func (s *PostgresStore) UpdateRoomCode(ctx context.Context, id int64, code string) (*store.Room, error) {
	query := `
		UPDATE rooms SET code = $2 WHERE id = $1
		RETURNING id, name, code, language, is_public, created_at
	`
	room, err := scanRoom(s.pool.QueryRow(ctx, query, id, code))
	if err != nil {
		return nil, notFound(err, "room")
	}
	return room, nil
}

func scanRoom(row pgx.Row) (*store.Room, error) {
	var r store.Room
	if err := row.Scan(&r.ID, &r.Name, &r.Code, &r.Language, &r.IsPublic, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// ==== ParticipantStore implementation ====

func (s *PostgresStore) AddParticipant(ctx context.Context, p *store.Participant) error {
	query := `
		INSERT INTO room_participants (room_id, user_id, username, color, is_owner)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, p.RoomID, p.UserID, p.Username, p.Color, p.IsOwner); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetParticipants(ctx context.Context, roomID int64) ([]*store.Participant, error) {
	query := `
		SELECT id, room_id, user_id, username, color, is_owner, joined_at
		FROM room_participants
		WHERE room_id = $1
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query, roomID)
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

func (s *PostgresStore) RemoveParticipant(ctx context.Context, roomID int64, userID string) error {
	query := `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`
	if _, err := s.pool.Exec(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// ==== FileStore implementation ====

const fileColumns = `id, room_id, name, content, language, path, is_folder, parent_id`

func (s *PostgresStore) CreateFile(ctx context.Context, f *store.File) (*store.File, error) {
	language := f.Language
	if language == "" {
		language = store.DefaultLanguage
	}

	query := `
		INSERT INTO files (room_id, name, content, language, path, is_folder, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + fileColumns
	out, err := scanFile(s.pool.QueryRow(ctx, query, f.RoomID, f.Name, f.Content, language, f.Path, f.IsFolder, f.ParentID))
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetFiles(ctx context.Context, roomID int64) ([]*store.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE room_id = $1 ORDER BY id ASC`
	rows, err := s.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	files := make([]*store.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *PostgresStore) UpdateFile(ctx context.Context, id int64, content string) (*store.File, error) {
	query := `UPDATE files SET content = $2 WHERE id = $1 RETURNING ` + fileColumns
	f, err := scanFile(s.pool.QueryRow(ctx, query, id, content))
	if err != nil {
		return nil, notFound(err, "file")
	}
	return f, nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func scanFile(row pgx.Row) (*store.File, error) {
	var f store.File
	if err := row.Scan(&f.ID, &f.RoomID, &f.Name, &f.Content, &f.Language, &f.Path, &f.IsFolder, &f.ParentID); err != nil {
		return nil, err
	}
	return &f, nil
}

// ==== VersionStore implementation ====

func (s *PostgresStore) SaveVersion(ctx context.Context, v *store.Version) (*store.Version, error) {
	query := `
		INSERT INTO code_versions (room_id, code, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	saved := *v
	if err := s.pool.QueryRow(ctx, query, v.RoomID, v.Code, v.CreatedBy).Scan(&saved.ID, &saved.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	return &saved, nil
}

func (s *PostgresStore) GetVersions(ctx context.Context, roomID int64) ([]*store.Version, error) {
	query := `
		SELECT id, room_id, code, created_by, created_at
		FROM code_versions
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.pool.Query(ctx, query, roomID)
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
