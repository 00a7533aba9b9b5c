package core

import (
	"sort"
	"sync"
)

// room groups sessions subscribed to the same key.
// A room marked dead has been emptied and unlinked; joiners must retry.
type room struct {
	key     string
	mu      sync.RWMutex
	members map[*Session]struct{}
	dead    bool
}

// RoomInfo is a point-in-time view of an active room.
type RoomInfo struct {
	Key     string
	Members int
}

// Registry maps room keys to the sessions currently joined to them.
// Rooms are created on first join and removed when their last member leaves.
//
// The registry mutex only guards the map itself; member sets are guarded by
// the per-room mutex so unrelated rooms never contend.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (g *Registry) lookup(key string, create bool) *room {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rooms[key]
	if (!ok || r.dead) && create {
		r = &room{key: key, members: make(map[*Session]struct{})}
		g.rooms[key] = r
	}
	return r
}

// unlink drops r from the map unless a fresh room already replaced it.
func (g *Registry) unlink(r *room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.rooms[r.key]; ok && cur == r {
		delete(g.rooms, r.key)
	}
}

// Join registers s under key. Joining the same room twice is a no-op.
// It returns ErrSessionClosed for a disconnected session.
func (g *Registry) Join(s *Session, key string) error {
	for {
		r := g.lookup(key, true)

		r.mu.Lock()
		if r.dead {
			// Lost the race with the last member leaving; pick up the
			// replacement room.
			r.mu.Unlock()
			continue
		}
		if !s.addRoom(key) {
			empty := len(r.members) == 0
			if empty {
				r.dead = true
			}
			r.mu.Unlock()
			if empty {
				g.unlink(r)
			}
			return ErrSessionClosed
		}
		r.members[s] = struct{}{}
		r.mu.Unlock()
		return nil
	}
}

// Leave removes s from key. It reports whether s was a member.
func (g *Registry) Leave(s *Session, key string) bool {
	r := g.lookup(key, false)
	if r == nil {
		s.removeRoom(key)
		return false
	}

	r.mu.Lock()
	_, ok := r.members[s]
	if ok {
		delete(r.members, s)
	}
	empty := len(r.members) == 0 && !r.dead
	if empty {
		r.dead = true
	}
	// Drop the session side while still holding the room lock so a
	// concurrent Join of the same pair cannot interleave.
	s.removeRoom(key)
	r.mu.Unlock()

	if empty {
		g.unlink(r)
	}
	return ok
}

// LeaveAll removes s from every room it belongs to.
func (g *Registry) LeaveAll(s *Session) {
	for _, key := range s.Rooms() {
		g.Leave(s, key)
	}
}

// Members returns a snapshot of the sessions joined to key, in no
// particular order. Later membership changes do not affect the snapshot.
func (g *Registry) Members(key string) []*Session {
	r := g.lookup(key, false)
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Session, 0, len(r.members))
	for s := range r.members {
		members = append(members, s)
	}
	return members
}

// IsMember reports whether s is currently joined to key.
func (g *Registry) IsMember(s *Session, key string) bool {
	r := g.lookup(key, false)
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[s]
	return ok
}

// Rooms lists active rooms sorted by key.
func (g *Registry) Rooms() []RoomInfo {
	g.mu.Lock()
	rooms := make([]*room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		r.mu.RLock()
		n, dead := len(r.members), r.dead
		r.mu.RUnlock()
		if dead || n == 0 {
			continue
		}
		infos = append(infos, RoomInfo{Key: r.key, Members: n})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// RoomCount returns the number of rooms currently tracked.
func (g *Registry) RoomCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
