package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry owns every room of the office, keyed by room id. It is built
// once at process start and handed to whatever needs room lookup.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[int]*Room
	observers []Observer
	roomOpts  []RoomOption
}

// NewRegistry returns an empty registry. opts are applied to every room it
// creates.
func NewRegistry(opts ...RoomOption) *Registry {
	return &Registry{
		rooms:    make(map[int]*Room),
		roomOpts: opts,
	}
}

// Configure makes sure rooms 1..count exist. Existing rooms keep their
// state; missing ones start with no capacity.
func (g *Registry) Configure(count int) error {
	if count < 1 {
		return fmt.Errorf("%d rooms: %w", count, ErrInvalidRoomCount)
	}
	for id := 1; id <= count; id++ {
		if _, err := g.AddRoom(id, 0); err != nil && !errors.Is(err, ErrRoomExists) {
			return err
		}
	}
	return nil
}

// AddRoom creates the room with the given id. An existing room is never
// replaced: it is returned together with ErrRoomExists.
func (g *Registry) AddRoom(id, capacity int) (*Room, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("room %d: capacity %d: %w", id, capacity, ErrInvalidCapacity)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.rooms[id]; ok {
		return existing, fmt.Errorf("room %d: %w", id, ErrRoomExists)
	}
	room := NewRoom(id, capacity, g.roomOpts...)
	for _, o := range g.observers {
		room.AddObserver(o)
	}
	g.rooms[id] = room
	return room, nil
}

func (g *Registry) Room(id int) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, ErrRoomNotFound)
	}
	return room, nil
}

// Rooms returns all rooms ordered by id.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID() < rooms[j].ID() })
	return rooms
}

func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// AttachAll attaches o to every current room and to rooms added later.
func (g *Registry) AttachAll(o Observer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.observers {
		if sameObserver(existing, o) {
			return
		}
	}
	g.observers = append(g.observers, o)
	for _, room := range g.rooms {
		room.AddObserver(o)
	}
}

// Stats returns a snapshot of every room ordered by id.
func (g *Registry) Stats() []RoomStats {
	rooms := g.Rooms()
	stats := make([]RoomStats, 0, len(rooms))
	for _, room := range rooms {
		stats = append(stats, room.Stats())
	}
	return stats
}
