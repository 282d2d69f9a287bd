package ot

import (
	"strings"
	"unicode/utf8"
)

// GenerateOperationFromChange finds the single edit between two snapshots by
// trimming their common prefix and suffix. It reports false when the texts
// are equal.
//
// Pure insertions and deletions are reproduced exactly. A replacement is
// reported as an insert of the new span only: the replaced characters are not
// described by the result. Callers that need both halves must diff themselves.
func GenerateOperationFromChange(oldText, newText string) (Operation, bool) {
	if oldText == newText {
		return Operation{}, false
	}
	oldRunes, newRunes := []rune(oldText), []rune(newText)

	start := 0
	for start < len(oldRunes) && start < len(newRunes) && oldRunes[start] == newRunes[start] {
		start++
	}

	oldEnd, newEnd := len(oldRunes), len(newRunes)
	for oldEnd > start && newEnd > start && oldRunes[oldEnd-1] == newRunes[newEnd-1] {
		oldEnd--
		newEnd--
	}

	switch {
	case oldEnd == start && newEnd == start:
		return Operation{}, false
	case oldEnd == start:
		return Insert(start, string(newRunes[start:newEnd])), true
	case newEnd == start:
		return Delete(start, oldEnd-start), true
	default:
		return Insert(start, string(newRunes[start:newEnd])), true
	}
}

// Cursor is a 1-based line/column position.
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// TransformCursorPosition moves cursor, expressed against text, across op.
// The result is expressed against the text op produces.
func TransformCursorPosition(cursor Cursor, op Operation, text string) Cursor {
	if op.Type == OpRetain {
		return cursor
	}

	offset := cursorOffset(cursor, text)
	switch op.Type {
	case OpInsert:
		if op.Position <= offset {
			offset += op.Size()
		}
	case OpDelete:
		if op.Position < offset {
			offset = max(offset-op.Length, op.Position)
		}
	}

	return offsetCursor(offset, Apply(text, op))
}

func cursorOffset(cursor Cursor, text string) int {
	lines := strings.Split(text, "\n")
	offset := 0
	for i := 0; i < cursor.Line-1 && i < len(lines); i++ {
		offset += utf8.RuneCountInString(lines[i]) + 1
	}
	offset += cursor.Column - 1
	return clamp(offset, 0, utf8.RuneCountInString(text))
}

func offsetCursor(offset int, text string) Cursor {
	current := 0
	for i, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if current+n >= offset {
			return Cursor{Line: i + 1, Column: offset - current + 1}
		}
		current += n + 1
	}
	return Cursor{Line: 1, Column: 1}
}
