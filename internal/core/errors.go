package core

import "errors"

var (
	// ErrNotJoined is logged when a non-join command arrives before join.
	ErrNotJoined = errors.New("connection has not joined a room")
	// ErrAlreadyJoined is logged when a second join arrives.
	ErrAlreadyJoined = errors.New("connection already joined")
	// ErrClosed is returned when the hub is no longer running.
	ErrClosed = errors.New("hub closed")
)
