package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/coedit-server/internal/proto"
)

func doJSON(t *testing.T, env *testEnv, method, path, body string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, env.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndGetRoom(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(t, env, http.MethodPost, "/api/rooms", `{"name":"pairing","language":"go"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created RoomResponse
	decode(t, resp, &created)
	if created.Name != "pairing" || created.Language != "go" || !created.IsPublic {
		t.Fatalf("unexpected room: %+v", created)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/rooms", `{"name":"pairing"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/rooms", `{"language":"go"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without name, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/rooms/"+strconv.FormatInt(created.ID, 10), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var fetched RoomResponse
	decode(t, resp, &fetched)
	if fetched.ID != created.ID {
		t.Fatalf("expected room %d, got %+v", created.ID, fetched)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/rooms/name/pairing", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 by name, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/rooms/999", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var errResp ErrorResponse
	decode(t, resp, &errResp)
	if errResp.Error == "" {
		t.Fatalf("expected error message")
	}

	resp = doJSON(t, env, http.MethodGet, "/api/rooms/abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}
}

func TestFileEndpoints(t *testing.T) {
	env := startTestServer(t)
	base := "/api/rooms/" + env.roomKey() + "/files"

	resp := doJSON(t, env, http.MethodPost, base, `{"name":"index.js","path":"/index.js","content":"// hi"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var file FileResponse
	decode(t, resp, &file)
	if file.RoomID != env.room.ID || file.Language != "javascript" {
		t.Fatalf("unexpected file: %+v", file)
	}

	resp = doJSON(t, env, http.MethodPost, base, `{"name":"missing-path"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	fileURL := "/api/files/" + strconv.FormatInt(file.ID, 10)
	resp = doJSON(t, env, http.MethodPut, fileURL, `{"content":"// updated"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated FileResponse
	decode(t, resp, &updated)
	if updated.Content != "// updated" {
		t.Fatalf("unexpected content: %q", updated.Content)
	}

	resp = doJSON(t, env, http.MethodPut, "/api/files/999", `{"content":"x"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp = doJSON(t, env, http.MethodPut, fileURL, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without content, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodGet, base, "")
	var files []FileResponse
	decode(t, resp, &files)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}

	resp = doJSON(t, env, http.MethodDelete, fileURL, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = doJSON(t, env, http.MethodGet, base, "")
	decode(t, resp, &files)
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestVersionEndpoints(t *testing.T) {
	env := startTestServer(t)
	base := "/api/rooms/" + env.roomKey() + "/versions"

	for _, code := range []string{"v1", "v2"} {
		resp := doJSON(t, env, http.MethodPost, base, `{"code":"`+code+`","createdBy":"u1"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp := doJSON(t, env, http.MethodPost, base, `{"code":"v3"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without createdBy, got %d", resp.StatusCode)
	}

	resp = doJSON(t, env, http.MethodGet, base, "")
	var versions []VersionResponse
	decode(t, resp, &versions)
	if len(versions) != 2 || versions[0].Code != "v2" || versions[1].Code != "v1" {
		t.Fatalf("expected newest first, got %+v", versions)
	}
}

func TestParticipantsAndPresenceEndpoints(t *testing.T) {
	env := startTestServer(t)
	room := env.roomKey()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, env)
	send(t, ctx, conn, proto.KindJoin, struct{}{}, "u1", room)
	readKind(t, ctx, conn, proto.KindParticipants)
	send(t, ctx, conn, proto.KindCursorMove, proto.CursorMove{Line: 4, Column: 2}, "u1", room)

	eventually(t, func() bool {
		resp := doJSON(t, env, http.MethodGet, "/api/rooms/"+room+"/presence", "")
		var presence PresenceResponse
		decode(t, resp, &presence)
		return presence.Connections == 1 && len(presence.Users) == 1 &&
			presence.Users[0].Cursor != nil && presence.Users[0].Cursor.Line == 4
	}, "presence reports the live connection with its cursor")

	eventually(t, func() bool {
		resp := doJSON(t, env, http.MethodGet, "/api/rooms/"+room+"/participants", "")
		var participants []ParticipantResponse
		decode(t, resp, &participants)
		return len(participants) == 1 && participants[0].UserID == "u1"
	}, "participant stored")

	conn.Close(websocket.StatusNormalClosure, "bye")

	eventually(t, func() bool {
		resp := doJSON(t, env, http.MethodGet, "/api/rooms/"+room+"/presence", "")
		var presence PresenceResponse
		decode(t, resp, &presence)
		return presence.Connections == 0 && len(presence.Users) == 0
	}, "presence cleared after disconnect")
}
