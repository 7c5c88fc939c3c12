// internal/room/events.go
package room

import "time"

// EventType names an outbound notification. The values are the wire-level
// message types clients switch on.
type EventType string

const (
	EventUpdateLobby   EventType = "updateLobby"   // roster/host/ready changed
	EventCountdown     EventType = "countdown"     // one tick of the start countdown
	EventUpdateGame    EventType = "updateGame"    // canonical masked snapshot broadcast
	EventPassAnimation EventType = "passAnimation" // public pass notice, face withheld
	EventReceiveCard   EventType = "receiveCard"   // private: the passed face, recipient only
	EventInitHand      EventType = "initHand"      // private: full hand after a deal
	EventSyncHand      EventType = "syncHand"      // private: full hand re-send on rejoin/request
	EventSignalSent    EventType = "signalSent"    // a signal window opened
	EventRevealCards   EventType = "revealCards"   // a suspected player's hand went public
	EventGameOver      EventType = "gameOver"      // hand resolved; all hands revealed
	EventKicked        EventType = "kicked"        // private: you were removed
	EventRoomExpired   EventType = "roomExpired"   // idle reaper destroyed the room
	EventChat          EventType = "chat"          // room chat message
	EventError         EventType = "error"         // private: rejected action echo
)

// LobbyInfo is the payload of updateLobby.
type LobbyInfo struct {
	Players []string        `json:"players"`
	Host    string          `json:"host"`
	Ready   map[string]bool `json:"ready"`
	Version uint64          `json:"version"`
}

// PassRecord is the public trace of the most recent pass. The face is
// deliberately absent.
type PassRecord struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"ts"`
}

// CardDelivery is the private receiveCard payload; the only place a passed
// face travels in the clear.
type CardDelivery struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Card    Card   `json:"card"`
	Version uint64 `json:"version"`
}

// HandSync carries a player's own full hand, version-tagged so stale
// deliveries can be discarded client-side.
type HandSync struct {
	Hand    []Card `json:"hand"`
	Version uint64 `json:"version"`
}

// SignalInfo announces an open signal window.
type SignalInfo struct {
	Signer  string `json:"signer"`
	Ally    string `json:"ally"`
	Version uint64 `json:"version"`
}

// RevealInfo discloses hands of players in the reveal set.
type RevealInfo struct {
	Target string            `json:"target"`
	Hands  map[string][]Card `json:"hands"`
}

// GameResult is the gameOver payload and the record handed to OnGameEnd.
type GameResult struct {
	Won         bool              `json:"won"`
	Winners     []string          `json:"winners"`
	WinningTeam string            `json:"winningTeam"`
	Hands       map[string][]Card `json:"hands"`
	EndedBy     string            `json:"endedBy"` // "jackwhot" or "suspect"
}

// ChatMessage is a relayed room chat line.
type ChatMessage struct {
	From      string    `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}

// Event is the single envelope for every outbound notification. Exactly one
// payload pointer is set per event; omitempty keeps the frames small.
type Event struct {
	Type      EventType       `json:"type"`
	Lobby     *LobbyInfo      `json:"lobby,omitempty"`
	Remaining *int            `json:"remaining,omitempty"`
	Snapshot  *PublicSnapshot `json:"snapshot,omitempty"`
	Pass      *PassRecord     `json:"pass,omitempty"`
	Card      *CardDelivery   `json:"card,omitempty"`
	Hand      *HandSync       `json:"hand,omitempty"`
	Signal    *SignalInfo     `json:"signal,omitempty"`
	Reveal    *RevealInfo     `json:"reveal,omitempty"`
	Result    *GameResult     `json:"result,omitempty"`
	Chat      *ChatMessage    `json:"chat,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Route is an opaque delivery address for one player's private messages.
// The transport layer implements it; the engine only ever calls Deliver.
// Deliver must not block: the engine invokes it while holding the room lock.
type Route interface {
	Deliver(ev Event)
}
