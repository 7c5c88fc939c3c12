// internal/room/snapshot.go
package room

// PublicSnapshot is the masked, room-wide view of a Room. It is the only
// representation ever broadcast to everyone: hands appear as counts, never
// faces. Clients discard any snapshot whose Version is not strictly newer
// than the last one they applied.
type PublicSnapshot struct {
	RoomID     string          `json:"roomId"`
	Players    []string        `json:"players"`
	Host       string          `json:"host"`
	Ready      map[string]bool `json:"ready"`
	CardCounts map[string]int  `json:"cardCounts"`
	TurnIndex  int             `json:"turnIndex"`
	GameActive bool            `json:"gameActive"`
	Locked     bool            `json:"locked"`
	LastPass   *PassRecord     `json:"lastPass,omitempty"`
	Revealed   []string        `json:"revealed,omitempty"`
	Version    uint64          `json:"version"`
}

// snapshotLocked projects the masked view. Lock must be held.
func (r *Room) snapshotLocked() PublicSnapshot {
	snap := PublicSnapshot{
		RoomID:     r.id,
		Players:    append([]string(nil), r.players...),
		Host:       r.host,
		Ready:      make(map[string]bool, len(r.ready)),
		CardCounts: make(map[string]int, len(r.players)),
		TurnIndex:  r.turnIndex,
		GameActive: r.gameActive,
		Locked:     r.locked,
		Version:    r.version,
	}
	for p, ok := range r.ready {
		snap.Ready[p] = ok
	}
	for _, p := range r.players {
		snap.CardCounts[p] = len(r.hands[p])
	}
	if r.lastPass != nil {
		lp := *r.lastPass
		snap.LastPass = &lp
	}
	if len(r.revealed) > 0 {
		snap.Revealed = append([]string(nil), r.revealed...)
	}
	return snap
}

// Snapshot returns the current masked public view.
func (r *Room) Snapshot() PublicSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}
