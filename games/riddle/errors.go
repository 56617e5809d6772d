/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidUsername = errors.New("invalid username")
	ErrNotAuthorized   = errors.New("only the host can do that")
	ErrRegistryFull    = errors.New("no room codes available")
	ErrEmptyBank       = errors.New("question bank is empty")
)

// errorCode maps caller-scoped errors to the code sent over the wire.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrInvalidUsername):
		return "invalid_username"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrRegistryFull):
		return "registry_full"
	default:
		return "internal"
	}
}
