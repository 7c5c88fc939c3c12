// internal/room/result.go
package room

// Reason classifies why an operation was rejected. Surfacing the reason
// lets callers and tests distinguish a no-op from a success without waiting
// for the next snapshot.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonUnknownPlayer  Reason = "unknown_player"
	ReasonNotYourTurn    Reason = "not_your_turn"
	ReasonBadIndex       Reason = "bad_index"
	ReasonBadPlayerCount Reason = "bad_player_count"
	ReasonNotReady       Reason = "not_ready"
	ReasonLocked         Reason = "locked"
	ReasonGameActive     Reason = "game_active"
	ReasonGameInactive   Reason = "game_inactive"
	ReasonNoSignal       Reason = "no_signal"
	ReasonNotAlly        Reason = "not_ally"
	ReasonSignalExpired  Reason = "signal_expired"
	ReasonOutOfRange     Reason = "out_of_range"
)

// Result is the outcome of a single room operation. Applied carries the
// version the mutation produced; a rejection leaves the room untouched and
// names why.
type Result struct {
	Applied bool
	Version uint64
	Reason  Reason
}

func applied(version uint64) Result {
	return Result{Applied: true, Version: version}
}

func rejected(r Reason) Result {
	return Result{Reason: r}
}
