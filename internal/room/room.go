// Package room holds the fixed set of chat rooms and their memberships.
// Rooms are allocated once at startup and never destroyed.
package room

import (
	"errors"
	"fmt"

	"github.com/tylerwon/go-chat-rooms/internal/user"
)

// Invalid is the sentinel room id meaning "not in any room".
const Invalid = 0

// Defaults matching the provisioned deployment.
const (
	DefaultNumRooms = 5
	DefaultCapacity = 25
)

var (
	ErrNotFound  = errors.New("room: no such room")
	ErrFull      = errors.New("room: room is full")
	ErrNotMember = errors.New("room: user not in room")
)

// Room is one broadcast group. Membership order is insertion order until a
// removal rewrites it (swap-with-last).
type Room struct {
	id      int
	members []uint64
	cap     int
}

// ID returns the stable room id (1-based).
func (r *Room) ID() int { return r.id }

// Members returns the member uids in their current order. The slice is the
// room's backing store; callers must not mutate or retain it across
// registry calls.
func (r *Room) Members() []uint64 { return r.members }

// Len returns the current member count.
func (r *Room) Len() int { return len(r.members) }

// Registry is the fixed-size collection of rooms, ids 1..NumRooms.
type Registry struct {
	rooms []*Room
}

// NewRegistry allocates numRooms rooms each capped at capacity members.
// Zero or negative arguments fall back to the defaults.
func NewRegistry(numRooms, capacity int) *Registry {
	if numRooms <= 0 {
		numRooms = DefaultNumRooms
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	rooms := make([]*Room, numRooms)
	for i := range rooms {
		rooms[i] = &Room{id: i + 1, cap: capacity}
	}
	return &Registry{rooms: rooms}
}

// Len returns the number of provisioned rooms.
func (g *Registry) Len() int { return len(g.rooms) }

// Get returns the room with the given id.
func (g *Registry) Get(id int) (*Room, error) {
	if id < 1 || id > len(g.rooms) {
		return nil, fmt.Errorf("%w (%d)", ErrNotFound, id)
	}
	return g.rooms[id-1], nil
}

// AddUser appends u to r and records the membership on the user.
func (g *Registry) AddUser(r *Room, u *user.User) error {
	if len(r.members) == r.cap {
		return fmt.Errorf("%w (%d)", ErrFull, r.id)
	}
	r.members = append(r.members, u.UID)
	u.Room = r.id
	return nil
}

// RemoveUser removes u from r by swap-with-last and clears the user's room.
func (g *Registry) RemoveUser(r *Room, u *user.User) error {
	if u.Room != r.id {
		return fmt.Errorf("%w (user %d, room %d)", ErrNotMember, u.UID, r.id)
	}
	for i, uid := range r.members {
		if uid == u.UID {
			last := len(r.members) - 1
			r.members[i] = r.members[last]
			r.members = r.members[:last]
			u.Room = Invalid
			return nil
		}
	}
	return fmt.Errorf("%w (user %d, room %d)", ErrNotMember, u.UID, r.id)
}
