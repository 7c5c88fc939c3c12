// internal/room/room.go
package room

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// OnGameEndFunc receives the result of a finished hand so the calling layer
// can award points, publish records, etc. It runs outside the room lock.
type OnGameEndFunc func(roomID string, res GameResult)

// PendingSignal is an open accusation window. Only the named ally may call
// jackwhot, and only before ExpiresAt.
type PendingSignal struct {
	Signer    string
	Ally      string
	ExpiresAt time.Time
}

// Settings carries the tunable timers for a Room. Zero values fall back to
// the production defaults; tests shorten the tick.
type Settings struct {
	CountdownSeconds int
	CountdownTick    time.Duration
	SignalWindow     time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.CountdownSeconds <= 0 {
		s.CountdownSeconds = 5
	}
	if s.CountdownTick <= 0 {
		s.CountdownTick = time.Second
	}
	if s.SignalWindow <= 0 {
		s.SignalWindow = 3 * time.Second
	}
	return s
}

// Room holds the entire state of a single game session. Every mutating
// operation acquires mu for its full duration, bumps the version counter,
// and refreshes the activity timestamp; the countdown goroutine and the
// idle reaper take the same lock before touching anything.
type Room struct {
	mu sync.Mutex

	id        string
	players   []string // seating order; the sole source of team/neighbor semantics
	host      string
	ready     map[string]bool
	hands     map[string][]Card
	deck      []Card
	turnIndex int

	pendingSignal *PendingSignal
	revealed      []string
	lastPass      *PassRecord
	gameActive    bool
	locked        bool // a countdown is running

	version      uint64
	lastActiveAt time.Time

	routes map[string]Route

	rng      *rand.Rand
	settings Settings

	onGameEnd OnGameEndFunc
}

// NewRoom builds an empty lobby-phase room.
func NewRoom(id string, settings Settings, onGameEnd OnGameEndFunc) *Room {
	return &Room{
		id:           id,
		ready:        make(map[string]bool),
		hands:        make(map[string][]Card),
		routes:       make(map[string]Route),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		settings:     settings.withDefaults(),
		lastActiveAt: time.Now(),
		onGameEnd:    onGameEnd,
	}
}

// ID returns the room's opaque identifier.
func (r *Room) ID() string { return r.id }

// Version returns the current mutation counter.
func (r *Room) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// LastActiveAt returns the timestamp of the most recent mutation.
func (r *Room) LastActiveAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActiveAt
}

// touchLocked registers a mutation: the version strictly increases and the
// idle clock restarts. Lock must be held.
func (r *Room) touchLocked() {
	r.version++
	r.lastActiveAt = time.Now()
}

func (r *Room) indexOfLocked(player string) int {
	for i, p := range r.players {
		if p == player {
			return i
		}
	}
	return -1
}

// broadcastLocked delivers an event to every routed player. Lock must be
// held; Route.Deliver is required to be non-blocking.
func (r *Room) broadcastLocked(ev Event) {
	for _, rt := range r.routes {
		rt.Deliver(ev)
	}
}

// deliverLocked sends a private event to one player, if routed.
func (r *Room) deliverLocked(player string, ev Event) {
	if rt, ok := r.routes[player]; ok {
		rt.Deliver(ev)
	}
}

func (r *Room) lobbyInfoLocked() *LobbyInfo {
	info := &LobbyInfo{
		Players: append([]string(nil), r.players...),
		Host:    r.host,
		Ready:   make(map[string]bool, len(r.ready)),
		Version: r.version,
	}
	for p, ok := range r.ready {
		info.Ready[p] = ok
	}
	return info
}

func (r *Room) broadcastLobbyLocked() {
	r.broadcastLocked(Event{Type: EventUpdateLobby, Lobby: r.lobbyInfoLocked()})
}

func (r *Room) broadcastGameLocked() {
	snap := r.snapshotLocked()
	r.broadcastLocked(Event{Type: EventUpdateGame, Snapshot: &snap})
}

// AttachRoute rebinds where private messages for player are delivered. It is
// called on every join and rejoin since the underlying connection may have
// changed.
func (r *Room) AttachRoute(player string, route Route) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfLocked(player) == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	r.routes[player] = route
	return applied(r.version)
}

// DetachRoute removes the player's delivery address, but only if it is
// still the given one: a reconnect may already have rebound it.
func (r *Room) DetachRoute(player string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.routes[player]; ok && cur == route {
		delete(r.routes, player)
	}
}

// Join appends a player to the roster. It is idempotent: joining twice
// leaves the roster untouched and reports Applied=false with no reason.
func (r *Room) Join(player string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if player == "" {
		return rejected(ReasonUnknownPlayer)
	}
	if r.indexOfLocked(player) != -1 {
		return Result{Applied: false, Version: r.version}
	}
	r.players = append(r.players, player)
	r.ready[player] = false
	if r.host == "" {
		r.host = player
	}
	r.touchLocked()
	r.broadcastLobbyLocked()
	return applied(r.version)
}

// removeLocked strips a player from the roster, hands, ready map, and
// routes, reassigning the host if needed. Lock must be held.
func (r *Room) removeLocked(player string, idx int) {
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.hands, player)
	delete(r.ready, player)
	delete(r.routes, player)
	if r.host == player {
		if len(r.players) > 0 {
			r.host = r.players[0]
		} else {
			r.host = ""
		}
	}
}

// Leave removes a player. A departure while a hand is live aborts the hand:
// a shrunk ring leaves turnIndex unplayable, so the room drops back to the
// lobby with no winner.
func (r *Room) Leave(player string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOfLocked(player)
	if idx == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	r.removeLocked(player, idx)
	if r.gameActive {
		r.abortHandLocked()
	}
	r.touchLocked()
	r.broadcastLobbyLocked()
	return applied(r.version)
}

// Kick has leave semantics plus a private notice routed to the target
// before removal.
func (r *Room) Kick(player string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOfLocked(player)
	if idx == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	r.deliverLocked(player, Event{Type: EventKicked, Reason: "removed from the room"})
	r.removeLocked(player, idx)
	if r.gameActive {
		r.abortHandLocked()
	}
	r.touchLocked()
	r.broadcastLobbyLocked()
	return applied(r.version)
}

// Swap exchanges two seat positions and repoints the host at the new
// players[0]. Out-of-range indices reject without state change.
func (r *Room) Swap(i, j int) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.players)
	if i < 0 || j < 0 || i >= n || j >= n {
		return rejected(ReasonOutOfRange)
	}
	r.players[i], r.players[j] = r.players[j], r.players[i]
	r.host = r.players[0]
	r.touchLocked()
	r.broadcastLobbyLocked()
	return applied(r.version)
}

// SetReady flips a player's ready flag. Readiness carries no game-phase
// validation; a flag set mid-hand simply waits for the next start.
func (r *Room) SetReady(player string, ready bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfLocked(player) == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	r.ready[player] = ready
	r.touchLocked()
	r.broadcastLobbyLocked()
	return applied(r.version)
}

func (r *Room) allReadyLocked() bool {
	if len(r.ready) == 0 {
		return false
	}
	for _, ok := range r.ready {
		if !ok {
			return false
		}
	}
	return true
}

// StartGame enters the counting phase. The guard: 2-4 players, and either
// everyone is ready or the requester is the host. Re-entrant starts while a
// countdown runs are rejected, which keeps at most one timer per room.
func (r *Room) StartGame(requester string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return rejected(ReasonLocked)
	}
	if r.gameActive {
		return rejected(ReasonGameActive)
	}
	n := len(r.players)
	if n < 2 || n > 4 {
		return rejected(ReasonBadPlayerCount)
	}
	if !r.allReadyLocked() && requester != r.host {
		return rejected(ReasonNotReady)
	}
	r.locked = true
	r.touchLocked()
	remaining := r.settings.CountdownSeconds
	r.broadcastLocked(Event{Type: EventCountdown, Remaining: &remaining})
	go r.runCountdown(remaining)
	return applied(r.version)
}

// runCountdown ticks the start timer down to zero and performs the deal.
// Each tick re-acquires the lock and re-checks the locked flag so a
// cancellation (reaper, shutdown) simply lets the goroutine drain out.
func (r *Room) runCountdown(from int) {
	ticker := time.NewTicker(r.settings.CountdownTick)
	defer ticker.Stop()
	remaining := from
	for range ticker.C {
		r.mu.Lock()
		if !r.locked {
			r.mu.Unlock()
			return
		}
		remaining--
		n := remaining
		r.broadcastLocked(Event{Type: EventCountdown, Remaining: &n})
		if remaining <= 0 {
			r.locked = false
			r.dealLocked()
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
}

// CancelCountdown stops a running countdown, if any. The ticking goroutine
// notices the cleared flag on its next tick and exits.
func (r *Room) CancelCountdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = false
}

// dealLocked shuffles a fresh deck and distributes all 17 cards. With four
// players one uniformly random seat receives five cards and starts the
// first pass; otherwise the first 17 mod n seats get the extra card and
// seat 0 starts. Lock must be held.
func (r *Room) dealLocked() {
	n := len(r.players)
	if n < 2 || n > 4 {
		// roster shrank out of range during the countdown; abandon the deal
		log.Printf("room %s: deal abandoned, %d players", r.id, n)
		r.broadcastLobbyLocked()
		return
	}

	deck := NewDeck()
	ShuffleDeck(r.rng, deck)

	fiveIdx := -1
	if n == 4 {
		fiveIdx = r.rng.Intn(4)
	}

	r.hands = make(map[string][]Card, n)
	for idx, p := range r.players {
		count := 4
		if n == 4 {
			if idx == fiveIdx {
				count = 5
			}
		} else {
			count = DeckSize / n
			if idx < DeckSize%n {
				count++
			}
		}
		r.hands[p] = append([]Card(nil), deck[:count]...)
		deck = deck[count:]
	}
	r.deck = deck // always empty: the deal is lossless

	if fiveIdx >= 0 {
		r.turnIndex = fiveIdx
	} else {
		r.turnIndex = 0
	}
	r.gameActive = true
	r.lastPass = nil
	r.pendingSignal = nil
	r.revealed = nil
	r.touchLocked()

	for _, p := range r.players {
		hand := append([]Card(nil), r.hands[p]...)
		r.deliverLocked(p, Event{Type: EventInitHand, Hand: &HandSync{Hand: hand, Version: r.version}})
	}
	r.broadcastGameLocked()
}

// Rematch re-runs the deal immediately against the current roster, skipping
// the countdown. The requester must be seated.
func (r *Room) Rematch(requester string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfLocked(requester) == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	if r.locked {
		return rejected(ReasonLocked)
	}
	n := len(r.players)
	if n < 2 || n > 4 {
		return rejected(ReasonBadPlayerCount)
	}
	r.dealLocked()
	return applied(r.version)
}

// PassCard moves the card at cardIndex from the current player's hand to
// the previous seat in the ring (anticlockwise), records the public pass
// trace, and hands the turn to the recipient.
func (r *Room) PassCard(from string, cardIndex int) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gameActive {
		return rejected(ReasonGameInactive)
	}
	if r.players[r.turnIndex] != from {
		return rejected(ReasonNotYourTurn)
	}
	hand := r.hands[from]
	if cardIndex < 0 || cardIndex >= len(hand) {
		return rejected(ReasonBadIndex)
	}

	card := hand[cardIndex]
	r.hands[from] = append(hand[:cardIndex], hand[cardIndex+1:]...)

	n := len(r.players)
	nextIndex := (r.turnIndex + n - 1) % n
	recipient := r.players[nextIndex]
	r.hands[recipient] = append(r.hands[recipient], card)

	r.lastPass = &PassRecord{From: from, To: recipient, Timestamp: time.Now()}
	r.turnIndex = nextIndex
	r.touchLocked()

	pass := *r.lastPass
	r.broadcastLocked(Event{Type: EventPassAnimation, Pass: &pass})
	r.deliverLocked(recipient, Event{Type: EventReceiveCard, Card: &CardDelivery{
		From:    from,
		To:      recipient,
		Card:    card,
		Version: r.version,
	}})
	r.broadcastGameLocked()
	return applied(r.version)
}

// SendSignal opens a short accusation window naming the signer's partner,
// the seat two positions away in the ring, as the only player allowed to
// call jackwhot.
func (r *Room) SendSignal(signer string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gameActive {
		return rejected(ReasonGameInactive)
	}
	if len(r.players) < 2 {
		return rejected(ReasonBadPlayerCount)
	}
	signerIdx := r.indexOfLocked(signer)
	if signerIdx == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	allyIdx := (signerIdx + 2) % len(r.players)
	ally := r.players[allyIdx]
	r.pendingSignal = &PendingSignal{
		Signer:    signer,
		Ally:      ally,
		ExpiresAt: time.Now().Add(r.settings.SignalWindow),
	}
	r.touchLocked()
	r.broadcastLocked(Event{Type: EventSignalSent, Signal: &SignalInfo{
		Signer:  signer,
		Ally:    ally,
		Version: r.version,
	}})
	return applied(r.version)
}

// CallJackwhot resolves an open signal window. Only the named ally may
// call; a call after the window expired clears the dead window (the one
// rejection path that mutates) and reports signal_expired. The ally's own
// hand decides the hand: four of a kind wins it for the signalling team.
func (r *Room) CallJackwhot(caller string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gameActive {
		return rejected(ReasonGameInactive)
	}
	if r.pendingSignal == nil {
		return rejected(ReasonNoSignal)
	}
	if caller != r.pendingSignal.Ally {
		return rejected(ReasonNotAlly)
	}
	if time.Now().After(r.pendingSignal.ExpiresAt) {
		r.pendingSignal = nil
		r.touchLocked()
		return rejected(ReasonSignalExpired)
	}

	allyIdx := r.indexOfLocked(caller)
	won := hasFourOfAKind(r.hands[caller])

	var winners []string
	var team string
	if won {
		winners, team = r.teamOfLocked(allyIdx)
	} else {
		winners, team = r.opponentsOfLocked(allyIdx)
	}
	r.finishHandLocked(GameResult{
		Won:         won,
		Winners:     winners,
		WinningTeam: team,
		EndedBy:     "jackwhot",
	})
	return applied(r.version)
}

// Suspect immediately reveals the target's hand to everyone and resolves
// the hand: four of a kind vindicates the accuser's team, anything else
// hands the win to the target's team.
func (r *Room) Suspect(accuser, target string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gameActive {
		return rejected(ReasonGameInactive)
	}
	accuserIdx := r.indexOfLocked(accuser)
	targetIdx := r.indexOfLocked(target)
	if accuserIdx == -1 || targetIdx == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	if _, ok := r.hands[target]; !ok {
		return rejected(ReasonUnknownPlayer)
	}

	if !r.containsRevealedLocked(target) {
		r.revealed = append(r.revealed, target)
	}
	revealedHands := make(map[string][]Card, len(r.revealed))
	for _, p := range r.revealed {
		revealedHands[p] = append([]Card(nil), r.hands[p]...)
	}
	r.broadcastLocked(Event{Type: EventRevealCards, Reveal: &RevealInfo{
		Target: target,
		Hands:  revealedHands,
	}})

	won := hasFourOfAKind(r.hands[target])
	var winners []string
	var team string
	if won {
		winners, team = r.teamOfLocked(accuserIdx)
	} else {
		winners, team = r.teamOfLocked(targetIdx)
	}
	r.finishHandLocked(GameResult{
		Won:         won,
		Winners:     winners,
		WinningTeam: team,
		EndedBy:     "suspect",
	})
	return applied(r.version)
}

func (r *Room) containsRevealedLocked(player string) bool {
	for _, p := range r.revealed {
		if p == player {
			return true
		}
	}
	return false
}

// teamOfLocked returns the seat-parity team of the given index. With four
// players even seats are team A and odd seats team B; smaller rings treat
// the single player as their own team A.
func (r *Room) teamOfLocked(idx int) ([]string, string) {
	n := len(r.players)
	if n >= 4 {
		start := idx % 2
		winners := make([]string, 0, 2)
		for i := start; i < n; i += 2 {
			winners = append(winners, r.players[i])
		}
		team := "A"
		if start == 1 {
			team = "B"
		}
		return winners, team
	}
	return []string{r.players[idx]}, "A"
}

// opponentsOfLocked is the losing-call counterpart: the opposing parity
// team, or everyone but the caller in small rings.
func (r *Room) opponentsOfLocked(idx int) ([]string, string) {
	n := len(r.players)
	if n >= 4 {
		return r.teamOfLocked(idx + 1)
	}
	winners := make([]string, 0, n-1)
	for i, p := range r.players {
		if i != idx {
			winners = append(winners, p)
		}
	}
	return winners, "B"
}

// finishHandLocked broadcasts the reveal-everything gameOver, resets the
// room to the lobby phase, and dispatches the result to OnGameEnd off the
// lock. Lock must be held.
func (r *Room) finishHandLocked(res GameResult) {
	res.Hands = make(map[string][]Card, len(r.hands))
	for p, h := range r.hands {
		res.Hands[p] = append([]Card(nil), h...)
	}

	r.gameActive = false
	r.pendingSignal = nil
	r.touchLocked()

	r.broadcastLocked(Event{Type: EventGameOver, Result: &res})

	r.hands = make(map[string][]Card)
	r.deck = nil
	r.lastPass = nil
	r.revealed = nil
	r.turnIndex = 0
	r.broadcastLobbyLocked()

	if r.onGameEnd != nil {
		go r.onGameEnd(r.id, res)
	}
}

// abortHandLocked drops a live hand with no winner (mid-hand departure).
// Lock must be held.
func (r *Room) abortHandLocked() {
	r.gameActive = false
	r.locked = false
	r.pendingSignal = nil
	r.hands = make(map[string][]Card)
	r.deck = nil
	r.lastPass = nil
	r.revealed = nil
	r.turnIndex = 0
}

// Rejoin re-sends the current public snapshot plus the player's exact hand,
// both tagged with the current version. It reads state and replies; the
// version is not bumped, but the activity clock restarts so a room with a
// reconnecting player is not reaped.
func (r *Room) Rejoin(player string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfLocked(player) == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	r.lastActiveAt = time.Now()
	snap := r.snapshotLocked()
	r.deliverLocked(player, Event{Type: EventUpdateGame, Snapshot: &snap})
	hand := append([]Card(nil), r.hands[player]...)
	r.deliverLocked(player, Event{Type: EventSyncHand, Hand: &HandSync{Hand: hand, Version: r.version}})
	return applied(r.version)
}

// RequestHand privately re-sends the player's own hand.
func (r *Room) RequestHand(player string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfLocked(player) == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	hand := append([]Card(nil), r.hands[player]...)
	r.deliverLocked(player, Event{Type: EventSyncHand, Hand: &HandSync{Hand: hand, Version: r.version}})
	return applied(r.version)
}

// Chat relays a message to the whole room. Chat is not game state: no
// version bump, but it counts as activity.
func (r *Room) Chat(from, message string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOfLocked(from) == -1 {
		return rejected(ReasonUnknownPlayer)
	}
	r.lastActiveAt = time.Now()
	r.broadcastLocked(Event{Type: EventChat, Chat: &ChatMessage{
		From:      from,
		Message:   message,
		Timestamp: time.Now(),
	}})
	return applied(r.version)
}

// Expire is the reaper's exit path: cancel any countdown and tell everyone
// the room is gone. The store deletes the room right after.
func (r *Room) Expire(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = false
	r.broadcastLocked(Event{Type: EventRoomExpired, Reason: reason})
}

// Players returns a copy of the seating order.
func (r *Room) Players() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.players...)
}

// Host returns the current host, or "" for an empty room.
func (r *Room) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}
