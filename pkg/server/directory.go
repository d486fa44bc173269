package server

import (
	"sync"

	"github.com/samber/lo"
)

// Directory maps usernames to their current live connection. At most one
// connection is bound per username; the most recent login wins.
type Directory struct {
	mu     sync.RWMutex
	byUser map[string]*Conn
}

func NewDirectory() *Directory {
	return &Directory{byUser: make(map[string]*Conn)}
}

// Bind registers c for username and returns the connection it replaced, if any.
func (d *Directory) Bind(username string, c *Conn) *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.byUser[username]
	d.byUser[username] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unbind removes the mapping only while it still points at c, so a superseded
// connection closing late cannot evict a newer login.
func (d *Directory) Unbind(username string, c *Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.byUser[username]; ok && cur == c {
		delete(d.byUser, username)
		return true
	}
	return false
}

// Lookup returns the live connection for username, or nil.
func (d *Directory) Lookup(username string) *Conn {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byUser[username]
}

// Online filters usernames down to those with a live connection, keeping order.
func (d *Directory) Online(usernames []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Filter(usernames, func(u string, _ int) bool {
		_, ok := d.byUser[u]
		return ok
	})
}

// Count returns the number of bound usernames.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byUser)
}
