// Package ot implements the two-party text transform used by editor clients
// to reconcile concurrent edits and remap cursors.
//
// Positions and lengths count Unicode code points, not bytes.
package ot

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// OpType names the kind of an Operation.
type OpType string

const (
	OpInsert OpType = "insert"
	OpDelete OpType = "delete"
	OpRetain OpType = "retain"
)

// ErrOutOfRange reports an operation that does not fit the text it targets.
var ErrOutOfRange = errors.New("operation out of range")

// Operation is a single edit against a text snapshot.
//
// Site identifies the participant that generated the operation. It is only
// consulted to order two inserts at the same position.
type Operation struct {
	Type     OpType `json:"type"`
	Position int    `json:"position"`
	Content  string `json:"content,omitempty"`
	Length   int    `json:"length,omitempty"`
	Site     string `json:"site,omitempty"`
}

// Insert builds an insert of content at pos.
func Insert(pos int, content string) Operation {
	return Operation{Type: OpInsert, Position: pos, Content: content}
}

// Delete builds a deletion of length characters starting at pos.
func Delete(pos, length int) Operation {
	return Operation{Type: OpDelete, Position: pos, Length: length}
}

// Retain builds the no-op operation.
func Retain() Operation {
	return Operation{Type: OpRetain}
}

// WithSite returns a copy of op tagged with site.
func (op Operation) WithSite(site string) Operation {
	op.Site = site
	return op
}

// Size is the number of characters the operation adds or removes.
func (op Operation) Size() int {
	switch op.Type {
	case OpInsert:
		return utf8.RuneCountInString(op.Content)
	case OpDelete:
		return op.Length
	default:
		return 0
	}
}

// Validate checks op against a text of textLen characters.
func (op Operation) Validate(textLen int) error {
	switch op.Type {
	case OpRetain:
		return nil
	case OpInsert:
		if op.Position < 0 || op.Position > textLen {
			return fmt.Errorf("insert at %d of %d: %w", op.Position, textLen, ErrOutOfRange)
		}
		return nil
	case OpDelete:
		if op.Length < 0 || op.Position < 0 || op.Position+op.Length > textLen {
			return fmt.Errorf("delete %d+%d of %d: %w", op.Position, op.Length, textLen, ErrOutOfRange)
		}
		return nil
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

func (op Operation) String() string {
	switch op.Type {
	case OpInsert:
		return fmt.Sprintf("insert(%d,%q)", op.Position, op.Content)
	case OpDelete:
		return fmt.Sprintf("delete(%d,%d)", op.Position, op.Length)
	default:
		return string(op.Type)
	}
}

// Apply returns text with op applied. Out-of-range positions are clamped.
func Apply(text string, op Operation) string {
	switch op.Type {
	case OpInsert:
		runes := []rune(text)
		pos := clamp(op.Position, 0, len(runes))
		return string(runes[:pos]) + op.Content + string(runes[pos:])
	case OpDelete:
		runes := []rune(text)
		pos := clamp(op.Position, 0, len(runes))
		end := clamp(pos+max(op.Length, 0), pos, len(runes))
		return string(runes[:pos]) + string(runes[end:])
	default:
		return text
	}
}

// Batch is an ordered sequence of operations with the sender's version
// counter. The version is carried for clients; nothing here enforces it.
type Batch struct {
	Ops     []Operation `json:"ops"`
	Version int         `json:"version"`
}

// Apply applies every operation in order.
func (b Batch) Apply(text string) string {
	for _, op := range b.Ops {
		text = Apply(text, op)
	}
	return text
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
