package ot

import "testing"

func converge(t *testing.T, text string, a, b Operation) (string, string) {
	t.Helper()
	ap, bp := Transform(a, b)
	return Apply(Apply(text, a), bp), Apply(Apply(text, b), ap)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		text string
		op   Operation
		want string
	}{
		{"insert middle", "abc", Insert(1, "X"), "aXbc"},
		{"insert end", "abc", Insert(3, "!"), "abc!"},
		{"insert past end clamps", "abc", Insert(10, "!"), "abc!"},
		{"delete inside bounds", "0123456789", Delete(5, 3), "0123489"},
		{"delete prefix", "0123456789", Delete(0, 4), "456789"},
		{"delete past end clamps", "abc", Delete(1, 10), "a"},
		{"delete from past end", "abc", Delete(7, 2), "abc"},
		{"retain", "abc", Retain(), "abc"},
		{"multibyte", "héllo", Insert(2, "ü"), "héüllo"},
		{"multibyte delete", "héllo", Delete(1, 1), "hllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Apply(tt.text, tt.op); got != tt.want {
				t.Fatalf("Apply(%q, %v) = %q, want %q", tt.text, tt.op, got, tt.want)
			}
		})
	}
}

func TestTransformConverges(t *testing.T) {
	const digits = "0123456789"
	tests := []struct {
		name string
		text string
		a, b Operation
	}{
		{"insert/insert apart", "hello", Insert(1, "X"), Insert(3, "YY")},
		{"insert/insert same position by site", "hello", Insert(2, "X").WithSite("u1"), Insert(2, "Y").WithSite("u2")},
		{"insert/insert same position no site", "hello", Insert(2, "X"), Insert(2, "Y")},
		{"insert/insert identical", "hello", Insert(2, "X"), Insert(2, "X")},
		{"delete/delete disjoint", digits, Delete(1, 2), Delete(5, 3)},
		{"delete/delete adjacent", digits, Delete(1, 2), Delete(3, 3)},
		{"delete/delete overlap", digits, Delete(2, 4), Delete(4, 4)},
		{"delete/delete contained", digits, Delete(1, 8), Delete(3, 2)},
		{"delete/delete identical", digits, Delete(3, 3), Delete(3, 3)},
		{"insert before delete", digits, Insert(1, "ab"), Delete(4, 3)},
		{"insert at delete start", digits, Insert(4, "ab"), Delete(4, 3)},
		{"insert after delete", digits, Insert(8, "ab"), Delete(2, 3)},
		{"insert inside delete", digits, Insert(5, "ab"), Delete(3, 4)},
		{"delete then insert", digits, Delete(2, 3), Insert(7, "Z")},
		{"retain", digits, Retain(), Delete(2, 3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, right := converge(t, tt.text, tt.a, tt.b)
			if left != right {
				t.Fatalf("diverged: a then b' = %q, b then a' = %q", left, right)
			}
			// Swapping the arguments must not change the outcome either.
			swappedLeft, swappedRight := converge(t, tt.text, tt.b, tt.a)
			if swappedLeft != swappedRight || swappedLeft != left {
				t.Fatalf("argument order changed result: %q / %q vs %q", swappedLeft, swappedRight, left)
			}
		})
	}
}

func TestConcurrentInsertsAtSamePosition(t *testing.T) {
	base := "abc"
	a := Insert(1, "X").WithSite("conn-a")
	b := Insert(1, "Y").WithSite("conn-b")

	// Peer A applied its own insert first, then receives b.
	_, bp := Transform(a, b)
	peerA := Apply(Apply(base, a), bp)

	// Peer B holds the pair the other way round.
	_, ap := Transform(b, a)
	peerB := Apply(Apply(base, b), ap)

	if peerA != peerB {
		t.Fatalf("peers diverged: %q vs %q", peerA, peerB)
	}
	if peerA != "aXYbc" {
		t.Fatalf("expected smaller site first, got %q", peerA)
	}
}

func TestInsertInsideDeleteIsClamped(t *testing.T) {
	ins, del := Transform(Insert(5, "ab"), Delete(3, 4))
	if ins.Position != 3 || ins.Content != "" {
		t.Fatalf("unexpected insert': %v", ins)
	}
	if del.Position != 3 || del.Length != 6 {
		t.Fatalf("unexpected delete': %v", del)
	}
}

func TestDeleteDeleteNeverGoesNegative(t *testing.T) {
	a, b := Transform(Delete(0, 5), Delete(1, 2))
	if a.Position < 0 || a.Length < 0 || b.Position < 0 || b.Length < 0 {
		t.Fatalf("negative result: %v %v", a, b)
	}
	if b.Length != 0 {
		t.Fatalf("contained delete should vanish, got %v", b)
	}
}

func TestTransformBatchConverges(t *testing.T) {
	base := "abcdef"
	a := []Operation{Insert(0, "X"), Delete(3, 2)}
	b := []Operation{Delete(1, 1), Insert(2, "Z")}

	ap, bp := TransformBatch(a, b)
	left := Batch{Ops: bp}.Apply(Batch{Ops: a}.Apply(base))
	right := Batch{Ops: ap}.Apply(Batch{Ops: b}.Apply(base))
	if left != right {
		t.Fatalf("batches diverged: %q vs %q", left, right)
	}
	if left != "Xaef" {
		t.Fatalf("unexpected result %q", left)
	}
}

func TestGenerateOperationFromChange(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"append", "abc", "abcdef"},
		{"prepend", "abc", "xyabc"},
		{"insert middle", "abc", "aXXbc"},
		{"insert into repeated run", "aaa", "aaaa"},
		{"delete middle", "abcdef", "abef"},
		{"delete all", "abc", ""},
		{"insert into empty", "", "hello"},
		{"multibyte", "héllo", "hé--llo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, ok := GenerateOperationFromChange(tt.old, tt.new)
			if !ok {
				t.Fatalf("expected an operation")
			}
			if err := op.Validate(len([]rune(tt.old))); err != nil {
				t.Fatalf("generated invalid op %v: %v", op, err)
			}
			if got := Apply(tt.old, op); got != tt.new {
				t.Fatalf("Apply(%q, %v) = %q, want %q", tt.old, op, got, tt.new)
			}
		})
	}
}

func TestGenerateOperationFromChangeEdgeCases(t *testing.T) {
	if _, ok := GenerateOperationFromChange("same", "same"); ok {
		t.Fatalf("equal texts must not produce an operation")
	}

	// Replacements only keep the inserted half.
	op, ok := GenerateOperationFromChange("abc", "axc")
	if !ok {
		t.Fatalf("expected an operation")
	}
	if op != Insert(1, "x") {
		t.Fatalf("unexpected replacement op: %v", op)
	}
}

func TestTransformCursorPosition(t *testing.T) {
	const text = "hello\nworld"
	tests := []struct {
		name   string
		cursor Cursor
		op     Operation
		want   Cursor
	}{
		{"retain", Cursor{2, 3}, Retain(), Cursor{2, 3}},
		{"insert on earlier line", Cursor{2, 3}, Insert(0, "ab"), Cursor{2, 3}},
		{"insert before on same line", Cursor{2, 3}, Insert(6, "ab"), Cursor{2, 5}},
		{"insert newline before", Cursor{2, 3}, Insert(6, "\n"), Cursor{3, 3}},
		{"insert after cursor", Cursor{1, 2}, Insert(4, "zz"), Cursor{1, 2}},
		{"insert at cursor", Cursor{1, 2}, Insert(1, "zz"), Cursor{1, 4}},
		{"delete before", Cursor{1, 5}, Delete(0, 3), Cursor{1, 2}},
		{"delete spanning cursor", Cursor{2, 1}, Delete(2, 5), Cursor{1, 3}},
		{"delete after cursor", Cursor{1, 2}, Delete(3, 2), Cursor{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TransformCursorPosition(tt.cursor, tt.op, text); got != tt.want {
				t.Fatalf("TransformCursorPosition(%v, %v) = %v, want %v", tt.cursor, tt.op, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := Insert(4, "x").Validate(3); err == nil {
		t.Fatalf("expected out of range insert")
	}
	if err := Delete(2, 2).Validate(3); err == nil {
		t.Fatalf("expected out of range delete")
	}
	if err := Delete(1, 2).Validate(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Operation{Type: "move"}).Validate(3); err == nil {
		t.Fatalf("expected unknown type error")
	}
}
