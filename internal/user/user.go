// Package user maps connection identities to per-user chat state.
package user

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicate = errors.New("user: already registered")
	ErrNotFound  = errors.New("user: no such user")
)

// User is the server-side state for one live connection. UID doubles as the
// connection identity; Room is the id of the containing room, 0 when none.
type User struct {
	UID  uint64
	Name string
	Room int
}

// Table is the uid-to-user registry. It is owned by the dispatcher and needs
// no locking.
type Table struct {
	users map[uint64]*User
}

func NewTable() *Table {
	return &Table{users: make(map[uint64]*User)}
}

// Add registers a new user with the default display name and no room.
func (t *Table) Add(uid uint64, defaultName string) (*User, error) {
	if _, ok := t.users[uid]; ok {
		return nil, fmt.Errorf("%w (%d)", ErrDuplicate, uid)
	}
	u := &User{UID: uid, Name: defaultName}
	t.users[uid] = u
	return u, nil
}

// Find returns the user for uid.
func (t *Table) Find(uid uint64) (*User, error) {
	u, ok := t.users[uid]
	if !ok {
		return nil, fmt.Errorf("%w (%d)", ErrNotFound, uid)
	}
	return u, nil
}

// Delete removes the user for uid.
func (t *Table) Delete(uid uint64) error {
	if _, ok := t.users[uid]; !ok {
		return fmt.Errorf("%w (%d)", ErrNotFound, uid)
	}
	delete(t.users, uid)
	return nil
}

// Len returns the number of registered users.
func (t *Table) Len() int { return len(t.users) }
