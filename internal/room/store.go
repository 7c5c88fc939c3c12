// internal/room/store.go
package room

import (
	"context"
	"log"
	"sync"
	"time"
)

// Store manages the live rooms in memory. Rooms are created on first join
// and reaped after sitting idle past the configured timeout.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*Room

	settings    Settings
	idleTimeout time.Duration
	onGameEnd   OnGameEndFunc
}

// NewStore returns an in-memory store. idleTimeout <= 0 falls back to ten
// minutes.
func NewStore(settings Settings, idleTimeout time.Duration, onGameEnd OnGameEndFunc) *Store {
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	return &Store{
		rooms:       make(map[string]*Room),
		settings:    settings,
		idleTimeout: idleTimeout,
		onGameEnd:   onGameEnd,
	}
}

// GetOrCreate retrieves the room, creating an empty one under the given ID
// if none exists.
func (s *Store) GetOrCreate(id string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r
	}
	r := NewRoom(id, s.settings, s.onGameEnd)
	s.rooms[id] = r
	return r
}

// Get retrieves a room if it exists.
func (s *Store) Get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Delete removes the room from memory.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// Len reports how many rooms are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// SweepIdle expires and deletes every room whose last activity is older
// than the idle timeout, returning the IDs it removed.
func (s *Store) SweepIdle() []string {
	cutoff := time.Now().Add(-s.idleTimeout)

	s.mu.Lock()
	var stale []*Room
	for _, r := range s.rooms {
		if r.LastActiveAt().Before(cutoff) {
			stale = append(stale, r)
		}
	}
	s.mu.Unlock()

	removed := make([]string, 0, len(stale))
	for _, r := range stale {
		r.Expire("idle timeout")
		s.Delete(r.ID())
		removed = append(removed, r.ID())
	}
	return removed
}

// StartReaper sweeps idle rooms on the given interval until ctx is done.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.SweepIdle(); len(removed) > 0 {
					log.Printf("reaped %d idle rooms: %v", len(removed), removed)
				}
			}
		}
	}()
}
