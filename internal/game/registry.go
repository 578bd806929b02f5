package game

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Room codes avoid characters that read ambiguously when shared out loud or
// scribbled down (0/O, 1/I).
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// Registry maps room codes to rooms. It is owned by the Service and only
// touched from the game loop, so it carries no locking of its own.
type Registry struct {
	rooms map[string]*Room
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create allocates a fresh room with a collision-checked code
func (g *Registry) Create(now time.Time) (*Room, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, taken := g.rooms[code]; taken {
			continue
		}
		room := newRoom(code, now)
		g.rooms[code] = room
		return room, nil
	}
	return nil, fmt.Errorf("room code space exhausted")
}

// Lookup finds a room by code. Codes are case-insensitive.
func (g *Registry) Lookup(code string) (*Room, bool) {
	room, ok := g.rooms[strings.ToUpper(code)]
	return room, ok
}

// Remove deletes a room after cancelling its scheduled work
func (g *Registry) Remove(code string) {
	if room, ok := g.rooms[code]; ok {
		room.CancelTasks()
		delete(g.rooms, code)
	}
}

// Len returns the number of live rooms
func (g *Registry) Len() int {
	return len(g.rooms)
}

// SweepExpired purges every room older than maxAge, regardless of phase, and
// returns how many were removed. Scheduled work is cancelled before removal
// so no timer can fire against a deleted room.
func (g *Registry) SweepExpired(now time.Time, maxAge time.Duration) int {
	var expired []string
	for code, room := range g.rooms {
		if room.Expired(now, maxAge) {
			expired = append(expired, code)
		}
	}
	for _, code := range expired {
		g.Remove(code)
	}
	return len(expired)
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}
