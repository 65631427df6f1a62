// Package presence tracks which user is online on which connection and
// delivers events to online users. Each user id is a topic with at most one
// subscriber: the connection that identified as that user most recently.
package presence

import (
	"sort"
	"sync"

	"zorssms/models"
)

// Conn is a connection that can receive events.
type Conn interface {
	ID() string
	Send(ev models.Event) error
}

type Registry struct {
	mu     sync.RWMutex
	online map[string]Conn   // user id -> connection
	byConn map[string]string // connection id -> user id
}

func NewRegistry() *Registry {
	return &Registry{
		online: make(map[string]Conn),
		byConn: make(map[string]string),
	}
}

// Bind subscribes c to userID, replacing any earlier connection for that user.
// The replaced connection is returned but neither closed nor notified.
func (r *Registry) Bind(userID string, c Conn) (replaced Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.online[userID]; ok && prev.ID() != c.ID() {
		delete(r.byConn, prev.ID())
		replaced = prev
	}
	if prevUser, ok := r.byConn[c.ID()]; ok && prevUser != userID {
		delete(r.online, prevUser)
	}
	r.online[userID] = c
	r.byConn[c.ID()] = userID
	return replaced
}

// Unbind removes c from the registry. ok is false when c no longer owns any
// entry, for example after a newer connection took over its user.
func (r *Registry) Unbind(c Conn) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.byConn[c.ID()]
	if !ok {
		return "", false
	}
	delete(r.byConn, c.ID())
	if cur, exists := r.online[userID]; exists && cur.ID() == c.ID() {
		delete(r.online, userID)
		return userID, true
	}
	return "", false
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.online[userID]
	return ok
}

func (r *Registry) Conn(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.online[userID]
	return c, ok
}

// Publish sends ev to userID if online. It reports whether a connection
// accepted the event.
func (r *Registry) Publish(userID string, ev models.Event) bool {
	c, ok := r.Conn(userID)
	if !ok {
		return false
	}
	return c.Send(ev) == nil
}

// PublishAll sends ev to every online user in userIDs and returns the number
// of deliveries.
func (r *Registry) PublishAll(userIDs []string, ev models.Event) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(userIDs))
	for _, id := range userIDs {
		if c, ok := r.online[id]; ok {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(ev) == nil {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.online)
}

// Users returns the online user ids, sorted.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.online))
	for id := range r.online {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
