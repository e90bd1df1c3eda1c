package app

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ConnID identifies one live connection for its lifetime.
type ConnID string

// EventSink receives outbound events for one connection. Sends must
// never block; a slow consumer loses the event.
type EventSink interface {
	Send(event any) error
}

// Presence is one distinct user currently in a room.
type Presence struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type connection struct {
	userID      string
	displayName string
	sink        EventSink
	projectID   string // empty when the connection is in no room
}

// LeaveResult describes a leave for notification purposes. LastOfUser
// is true when no other connection of the same user remains in the
// room, i.e. the user is gone for presence-list purposes.
type LeaveResult struct {
	ProjectID   string
	UserID      string
	DisplayName string
	LastOfUser  bool
}

// SinkSnap pairs a connection with its sink for a broadcast pass.
type SinkSnap struct {
	Conn ConnID
	Sink EventSink
}

// Registry is the process-wide table of live connections and project
// rooms. A connection belongs to at most one room at a time. All
// state transitions happen under one mutex so a concurrent broadcast
// never observes a half-applied join or leave.
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]*connection
	rooms map[string]map[ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[ConnID]*connection),
		rooms: make(map[string]map[ConnID]struct{}),
	}
}

// Register adds a connection with no room association yet.
func (r *Registry) Register(conn ConnID, userID, displayName string, sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn] = &connection{userID: userID, displayName: displayName, sink: sink}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Str("user", userID).Msg("registered connection")
}

// Unregister removes the connection entirely, leaving its room first.
// The returned LeaveResult is valid when the connection was in a room.
func (r *Registry) Unregister(conn ConnID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, inRoom := r.leaveLocked(conn)
	delete(r.conns, conn)
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Msg("unregistered connection")
	return res, inRoom
}

// Join moves the connection into the project's room, removing it from
// any prior room. Returns false for unknown connections. The prior
// room's LeaveResult is returned when the connection switched rooms.
func (r *Registry) Join(conn ConnID, projectID string) (prior LeaveResult, switched, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, found := r.conns[conn]
	if !found {
		return LeaveResult{}, false, false
	}
	prior, switched = r.leaveLocked(conn)
	room, found := r.rooms[projectID]
	if !found {
		room = make(map[ConnID]struct{})
		r.rooms[projectID] = room
	}
	room[conn] = struct{}{}
	entry.projectID = projectID
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Str("project", projectID).Msg("joined room")
	return prior, switched, true
}

// Leave removes the connection from its room, keeping the connection
// registered. Returns false when the connection was in no room.
func (r *Registry) Leave(conn ConnID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conn)
}

func (r *Registry) leaveLocked(conn ConnID) (LeaveResult, bool) {
	entry, found := r.conns[conn]
	if !found || entry.projectID == "" {
		return LeaveResult{}, false
	}
	projectID := entry.projectID
	entry.projectID = ""
	room := r.rooms[projectID]
	delete(room, conn)
	if len(room) == 0 {
		delete(r.rooms, projectID)
	}

	last := true
	for other := range room {
		if r.conns[other] != nil && r.conns[other].userID == entry.userID {
			last = false
			break
		}
	}
	return LeaveResult{
		ProjectID:   projectID,
		UserID:      entry.userID,
		DisplayName: entry.displayName,
		LastOfUser:  last,
	}, true
}

// ProjectOf is the reverse lookup from connection to room.
func (r *Registry) ProjectOf(conn ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, found := r.conns[conn]
	if !found || entry.projectID == "" {
		return "", false
	}
	return entry.projectID, true
}

// Identity returns the user behind a connection.
func (r *Registry) Identity(conn ConnID) (userID, displayName string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, found := r.conns[conn]
	if !found {
		return "", "", false
	}
	return entry.userID, entry.displayName, true
}

// ListUsers returns the distinct users present in the room; a user
// with several connections counts once.
func (r *Registry) ListUsers(projectID string) []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	out := []Presence{}
	for conn := range r.rooms[projectID] {
		entry := r.conns[conn]
		if entry == nil || seen[entry.userID] {
			continue
		}
		seen[entry.userID] = true
		out = append(out, Presence{UserID: entry.userID, DisplayName: entry.displayName})
	}
	return out
}

// Sinks snapshots the room's sinks for a broadcast. skip may be empty.
func (r *Registry) Sinks(projectID string, skip ConnID) []SinkSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SinkSnap, 0, len(r.rooms[projectID]))
	for conn := range r.rooms[projectID] {
		if conn == skip {
			continue
		}
		if entry := r.conns[conn]; entry != nil {
			out = append(out, SinkSnap{Conn: conn, Sink: entry.sink})
		}
	}
	return out
}

// Sink returns the sink of one connection.
func (r *Registry) Sink(conn ConnID) (EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, found := r.conns[conn]
	if !found {
		return nil, false
	}
	return entry.sink, true
}
