package ot

// Transform derives the bottom two sides of the OT diamond: given a and b
// generated against the same text, it returns a' (to apply after b) and b'
// (to apply after a) such that both orders produce the same text.
//
// Two inserts at the same position are ordered by Site, then by Content, so
// every participant resolves the tie the same way regardless of which
// operation it holds as a.
//
// The guarantee is pairwise only. Three or more concurrent operations need a
// sequencing point, which the relay does not provide.
func Transform(a, b Operation) (Operation, Operation) {
	switch {
	case a.Type == OpRetain || b.Type == OpRetain:
		return a, b
	case a.Type == OpInsert && b.Type == OpInsert:
		return transformInserts(a, b)
	case a.Type == OpInsert && b.Type == OpDelete:
		return transformInsertDelete(a, b)
	case a.Type == OpDelete && b.Type == OpInsert:
		ins, del := transformInsertDelete(b, a)
		return del, ins
	case a.Type == OpDelete && b.Type == OpDelete:
		return transformDeletes(a, b)
	}
	return a, b
}

// TransformBatch transforms two concurrent operation sequences against each
// other. The results apply after the opposite sequence.
func TransformBatch(a, b []Operation) ([]Operation, []Operation) {
	aNew := make([]Operation, len(a))
	bNew := make([]Operation, len(b))
	copy(aNew, a)
	for i, bOp := range b {
		for j, aOp := range aNew {
			aNew[j], bOp = Transform(aOp, bOp)
		}
		bNew[i] = bOp
	}
	return aNew, bNew
}

func transformInserts(a, b Operation) (Operation, Operation) {
	aLen, bLen := a.Size(), b.Size()
	switch {
	case a.Position < b.Position, a.Position == b.Position && insertsBefore(a, b):
		b.Position += aLen
	case b.Position < a.Position, insertsBefore(b, a):
		a.Position += bLen
	default:
		// Identical inserts: both land, one after the other.
		a.Position += bLen
		b.Position += aLen
	}
	return a, b
}

// insertsBefore is the canonical order for inserts at the same position.
func insertsBefore(a, b Operation) bool {
	if a.Site != b.Site {
		return a.Site < b.Site
	}
	return a.Content < b.Content
}

// transformInsertDelete returns (ins', del').
func transformInsertDelete(ins, del Operation) (Operation, Operation) {
	switch {
	case ins.Position <= del.Position:
		del.Position += ins.Size()
		return ins, del
	case ins.Position >= del.Position+del.Length:
		ins.Position -= del.Length
		return ins, del
	default:
		// Insert lands inside the deleted range: the insert collapses onto the
		// delete's position and the delete grows to swallow it.
		del.Length += ins.Size()
		ins.Position = del.Position
		ins.Content = ""
		return ins, del
	}
}

func transformDeletes(a, b Operation) (Operation, Operation) {
	aEnd, bEnd := a.Position+a.Length, b.Position+b.Length
	switch {
	case aEnd <= b.Position:
		b.Position -= a.Length
	case bEnd <= a.Position:
		a.Position -= b.Length
	default:
		pos := min(a.Position, b.Position)
		overlap := max(0, min(aEnd, bEnd)-max(a.Position, b.Position))
		a.Position, a.Length = pos, a.Length-overlap
		b.Position, b.Length = pos, b.Length-overlap
	}
	return a, b
}
