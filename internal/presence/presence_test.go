package presence

import (
	"slices"
	"testing"
)

func TestTrackerJoinLeave(t *testing.T) {
	tr := NewTracker()
	tr.Join("r1", Member{ConnID: "c1", UserID: "u1", Username: "alice", Color: "#FF6B6B"})
	tr.Join("r1", Member{ConnID: "c2", UserID: "u2", Username: "bob", Color: "#4ECDC4"})

	members := tr.Members("r1")
	if len(members) != 2 || members[0].UserID != "u1" || members[1].UserID != "u2" {
		t.Fatalf("unexpected members: %+v", members)
	}

	left, ok := tr.Leave("r1", "c1")
	if !ok || left.UserID != "u1" {
		t.Fatalf("unexpected leave result: %+v %v", left, ok)
	}
	if tr.HasUser("r1", "u1") {
		t.Fatalf("u1 should be gone")
	}

	if _, ok := tr.Leave("r1", "c1"); ok {
		t.Fatalf("second leave must be a no-op")
	}

	tr.Leave("r1", "c2")
	if tr.Rooms() != 0 {
		t.Fatalf("empty room should be dropped")
	}
}

func TestTrackerMemberReturnsEarliestConnection(t *testing.T) {
	tr := NewTracker()
	tr.Join("r1", Member{ConnID: "c1", UserID: "u1", Color: "#FF6B6B"})
	tr.Join("r1", Member{ConnID: "c2", UserID: "u1", Color: "#4ECDC4"})

	m, ok := tr.Member("r1", "u1")
	if !ok || m.ConnID != "c1" || m.Color != "#FF6B6B" {
		t.Fatalf("unexpected member: %+v %v", m, ok)
	}
	if _, ok := tr.Member("r1", "u2"); ok {
		t.Fatalf("u2 is not present")
	}
	if _, ok := tr.Member("r2", "u1"); ok {
		t.Fatalf("r2 does not exist")
	}
}

func TestTrackerDeduplicatesUsers(t *testing.T) {
	tr := NewTracker()
	tr.Join("r1", Member{ConnID: "c1", UserID: "u1", Username: "alice"})
	tr.Join("r1", Member{ConnID: "c2", UserID: "u1", Username: "alice"})

	if got := len(tr.Members("r1")); got != 1 {
		t.Fatalf("expected one entry per user, got %d", got)
	}

	tr.Leave("r1", "c1")
	if !tr.HasUser("r1", "u1") {
		t.Fatalf("u1 still has a connection")
	}
}

func TestTrackerCursorDroppedOnLastLeave(t *testing.T) {
	tr := NewTracker()
	tr.Join("r1", Member{ConnID: "c1", UserID: "u1"})
	tr.Join("r1", Member{ConnID: "c2", UserID: "u2"})

	if !tr.MoveCursor("r1", "u1", Cursor{Line: 3, Column: 7}) {
		t.Fatalf("cursor for present user should be stored")
	}
	if tr.MoveCursor("r1", "ghost", Cursor{Line: 1, Column: 1}) {
		t.Fatalf("cursor for absent user must be rejected")
	}

	members := tr.Members("r1")
	if members[0].Cursor == nil || *members[0].Cursor != (Cursor{Line: 3, Column: 7}) {
		t.Fatalf("expected cursor on u1, got %+v", members[0])
	}

	tr.Leave("r1", "c1")
	tr.Join("r1", Member{ConnID: "c3", UserID: "u1"})
	for _, m := range tr.Members("r1") {
		if m.UserID == "u1" && m.Cursor != nil {
			t.Fatalf("stale cursor survived rejoin: %+v", m.Cursor)
		}
	}
}

func TestColorPickers(t *testing.T) {
	random := NewColorPicker(ColorRandom)
	for range 20 {
		if c := random.Pick("u1"); !slices.Contains(Palette, c) {
			t.Fatalf("color %q not in palette", c)
		}
	}

	stable := NewColorPicker(ColorStable)
	first := stable.Pick("user-42")
	for range 5 {
		if got := stable.Pick("user-42"); got != first {
			t.Fatalf("stable color changed: %q vs %q", got, first)
		}
	}
}
