// Package domain contains entities without logic, just meta-data
package domain

import "errors"

const (
	MaxUsernameLen = 36
	MaxRoomLen     = 36
)

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
	ErrRoomEmpty       = errors.New("room empty")
	ErrRoomTooLong     = errors.New("room too long")
)

// Connection binds a live transport connection to its username and room.
// One record per transport connection; created on join, deleted on
// disconnect.
type Connection struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Room     string `json:"chatroom"`
}

// NewConnection is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewConnection(id, username, room string) (Connection, error) {
	if len(username) == 0 {
		return Connection{}, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return Connection{}, ErrUsernameTooLong
	}
	if len(room) == 0 {
		return Connection{}, ErrRoomEmpty
	}
	if len(room) > MaxRoomLen {
		return Connection{}, ErrRoomTooLong
	}
	return Connection{ID: id, Username: username, Room: room}, nil
}
