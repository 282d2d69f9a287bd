// Package storetest holds a behaviour suite shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/coedit-server/internal/store"
)

// Run exercises newStore against the store.Store contract. Each subtest gets
// a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("Rooms", func(t *testing.T) { testRooms(t, newStore(t)) })
	t.Run("Participants", func(t *testing.T) { testParticipants(t, newStore(t)) })
	t.Run("Files", func(t *testing.T) { testFiles(t, newStore(t)) })
	t.Run("Versions", func(t *testing.T) { testVersions(t, newStore(t)) })
}

func testRooms(t *testing.T, s store.Store) {
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, &store.Room{Name: "main", IsPublic: true})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if room.ID == 0 {
		t.Fatal("expected non-zero room ID")
	}
	if room.Language != store.DefaultLanguage {
		t.Errorf("expected default language %q, got %q", store.DefaultLanguage, room.Language)
	}

	if _, err := s.CreateRoom(ctx, &store.Room{Name: "main"}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate name, got %v", err)
	}

	byID, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if byID.Name != "main" || !byID.IsPublic {
		t.Errorf("unexpected room: %+v", byID)
	}

	byName, err := s.GetRoomByName(ctx, "main")
	if err != nil {
		t.Fatalf("GetRoomByName failed: %v", err)
	}
	if byName.ID != room.ID {
		t.Errorf("expected ID %d, got %d", room.ID, byName.ID)
	}

	updated, err := s.UpdateRoomCode(ctx, room.ID, "let x = 1;")
	if err != nil {
		t.Fatalf("UpdateRoomCode failed: %v", err)
	}
	if updated.Code != "let x = 1;" {
		t.Errorf("expected updated code, got %q", updated.Code)
	}

	if _, err := s.GetRoom(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetRoomByName(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateRoomCode(ctx, 9999, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func testParticipants(t *testing.T, s store.Store) {
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, &store.Room{Name: "p"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	alice := &store.Participant{RoomID: room.ID, UserID: "u1", Username: "alice", Color: "#FF6B6B"}
	bob := &store.Participant{RoomID: room.ID, UserID: "u2", Username: "bob", Color: "#4ECDC4"}

	for _, p := range []*store.Participant{alice, bob, alice} {
		if err := s.AddParticipant(ctx, p); err != nil {
			t.Fatalf("AddParticipant failed: %v", err)
		}
	}

	list, err := s.GetParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(list))
	}
	if list[0].UserID != "u1" || list[1].UserID != "u2" {
		t.Errorf("expected join order u1,u2, got %s,%s", list[0].UserID, list[1].UserID)
	}
	if list[0].Color != "#FF6B6B" || list[0].Username != "alice" {
		t.Errorf("unexpected participant: %+v", list[0])
	}

	if err := s.RemoveParticipant(ctx, room.ID, "u1"); err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}
	if err := s.RemoveParticipant(ctx, room.ID, "u1"); err != nil {
		t.Fatalf("second RemoveParticipant should be a no-op, got %v", err)
	}

	list, err = s.GetParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetParticipants failed: %v", err)
	}
	if len(list) != 1 || list[0].UserID != "u2" {
		t.Errorf("expected only u2 left, got %+v", list)
	}

	empty, err := s.GetParticipants(ctx, 9999)
	if err != nil {
		t.Fatalf("GetParticipants on unknown room failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list, got %d", len(empty))
	}
}

func testFiles(t *testing.T, s store.Store) {
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, &store.Room{Name: "f"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	dir, err := s.CreateFile(ctx, &store.File{RoomID: room.ID, Name: "src", Path: "/src", IsFolder: true})
	if err != nil {
		t.Fatalf("CreateFile(dir) failed: %v", err)
	}
	file, err := s.CreateFile(ctx, &store.File{
		RoomID:   room.ID,
		Name:     "main.go",
		Path:     "/src/main.go",
		Content:  "package main",
		Language: "go",
		ParentID: &dir.ID,
	})
	if err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	if dir.Language != store.DefaultLanguage {
		t.Errorf("expected default language on folder, got %q", dir.Language)
	}

	files, err := s.GetFiles(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if !files[0].IsFolder || files[0].ParentID != nil {
		t.Errorf("unexpected folder row: %+v", files[0])
	}
	if files[1].ParentID == nil || *files[1].ParentID != dir.ID {
		t.Errorf("expected parent %d, got %v", dir.ID, files[1].ParentID)
	}

	updated, err := s.UpdateFile(ctx, file.ID, "package main\n\nfunc main() {}")
	if err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if updated.Content != "package main\n\nfunc main() {}" || updated.Language != "go" {
		t.Errorf("unexpected updated file: %+v", updated)
	}
	if _, err := s.UpdateFile(ctx, 9999, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteFile(ctx, file.ID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	files, err = s.GetFiles(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].ID != dir.ID {
		t.Errorf("expected only the folder left, got %+v", files)
	}
}

func testVersions(t *testing.T, s store.Store) {
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, &store.Room{Name: "v"})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	first, err := s.SaveVersion(ctx, &store.Version{RoomID: room.ID, Code: "v1", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("SaveVersion failed: %v", err)
	}
	if first.ID == 0 || first.CreatedAt.IsZero() {
		t.Errorf("expected ID and timestamp set, got %+v", first)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := s.SaveVersion(ctx, &store.Version{RoomID: room.ID, Code: "v2", CreatedBy: "u2"}); err != nil {
		t.Fatalf("SaveVersion failed: %v", err)
	}

	versions, err := s.GetVersions(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].Code != "v2" || versions[1].Code != "v1" {
		t.Errorf("expected newest first, got %q then %q", versions[0].Code, versions[1].Code)
	}
	if versions[1].CreatedBy != "u1" {
		t.Errorf("expected creator u1, got %q", versions[1].CreatedBy)
	}
}
