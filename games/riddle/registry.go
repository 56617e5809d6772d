/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultCodeLength = 4
	minCodeLength     = 4
	maxCodeLength     = 9
	maxCodeAttempts   = 1000
)

// Registry maps room codes to rooms and connections to the room they are in.
// Like Room, it is owned by a single goroutine.
type Registry struct {
	bank       *Bank
	timers     TimerFunc
	now        func() time.Time
	codeLength int
	newCode    func() (string, error)

	rooms map[string]*Room
	conns map[string]string
}

type RegistryOption func(*Registry)

// WithCodeLength sets the number of digits in generated room codes, clamped
// to 4..9.
func WithCodeLength(n int) RegistryOption {
	return func(r *Registry) {
		r.codeLength = min(max(n, minCodeLength), maxCodeLength)
	}
}

// WithTimers sets how rooms schedule round expiry. Without it rounds only end
// by answers.
func WithTimers(f TimerFunc) RegistryOption {
	return func(r *Registry) {
		r.timers = f
	}
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(f func() (string, error)) RegistryOption {
	return func(r *Registry) {
		r.newCode = f
	}
}

func NewRegistry(bank *Bank, opts ...RegistryOption) *Registry {
	r := &Registry{
		bank:       bank,
		now:        time.Now,
		codeLength: DefaultCodeLength,
		rooms:      make(map[string]*Room),
		conns:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.newCode == nil {
		r.newCode = func() (string, error) {
			return numericCode(r.codeLength)
		}
	}
	return r
}

// numericCode returns a uniformly random n-digit code without a leading zero.
func numericCode(n int) (string, error) {
	low := pow10(n - 1)
	v, err := crand.Int(crand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", v.Int64()+low), nil
}

func pow10(n int) int64 {
	v := int64(1)
	for range n {
		v *= 10
	}
	return v
}

func (r *Registry) codeSpace() int64 {
	return 9 * pow10(r.codeLength-1)
}

// Create allocates an empty lobby under a fresh code.
func (r *Registry) Create() (*Room, error) {
	if int64(len(r.rooms)) >= r.codeSpace() {
		return nil, ErrRegistryFull
	}

	for range maxCodeAttempts {
		code, err := r.newCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}

		room := newRoom(code, r.bank, r.timers, r.now)
		r.rooms[code] = room
		return room, nil
	}

	return nil, ErrRegistryFull
}

func (r *Registry) Lookup(code string) (*Room, bool) {
	room, ok := r.rooms[code]
	return room, ok
}

// RoomOf returns the room conn is a member of.
func (r *Registry) RoomOf(conn string) (*Room, bool) {
	code, ok := r.conns[conn]
	if !ok {
		return nil, false
	}
	return r.Lookup(code)
}

func (r *Registry) Len() int {
	return len(r.rooms)
}

// Join adds conn to the room with the given code, leaving any other room
// first. The returned events cover both rooms.
func (r *Registry) Join(code, conn, username string) ([]Event, error) {
	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if cleanUsername(username) == "" {
		return nil, ErrInvalidUsername
	}

	var events []Event
	if prev, ok := r.conns[conn]; ok && prev != code {
		events = append(events, r.Leave(conn)...)
	}

	joined, err := room.Join(conn, username)
	if err != nil {
		return events, err
	}
	r.conns[conn] = code

	return append(events, joined...), nil
}

// Leave removes conn from its room and drops the room once it is empty.
func (r *Registry) Leave(conn string) []Event {
	code, ok := r.conns[conn]
	if !ok {
		return nil
	}
	delete(r.conns, conn)

	room, ok := r.rooms[code]
	if !ok {
		return nil
	}

	events := room.Leave(conn)
	r.RemoveIfEmpty(code)

	return events
}

// RemoveIfEmpty deletes the room if it has no members, releasing its code.
func (r *Registry) RemoveIfEmpty(code string) bool {
	room, ok := r.rooms[code]
	if !ok || room.Len() > 0 {
		return false
	}

	room.stopTimer()
	delete(r.rooms, code)

	return true
}

// Reap removes empty rooms that have been idle since before cutoff, such as
// rooms that were created but never joined.
func (r *Registry) Reap(cutoff time.Time) []string {
	var reaped []string
	for code, room := range r.rooms {
		if room.Len() == 0 && room.lastActive.Before(cutoff) {
			room.stopTimer()
			delete(r.rooms, code)
			reaped = append(reaped, code)
		}
	}
	return reaped
}

// Close stops every pending round timer.
func (r *Registry) Close() {
	for _, room := range r.rooms {
		room.stopTimer()
	}
}
