// internal/room/room_test.go
package room

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoute collects delivered events instead of sending them over WS.
type mockRoute struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockRoute) Deliver(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockRoute) byType(t EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (m *mockRoute) last() *Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return &m.events[len(m.events)-1]
}

func (m *mockRoute) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// setupTestRoom joins n players (p0..pn-1) with routes attached and a
// deterministic shuffle source.
func setupTestRoom(t *testing.T, n int, settings Settings) (*Room, []string, map[string]*mockRoute) {
	t.Helper()
	r := NewRoom("test-room", settings, nil)
	r.rng = rand.New(rand.NewSource(7))

	players := make([]string, n)
	routes := make(map[string]*mockRoute, n)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("p%d", i)
		players[i] = p
		require.True(t, r.Join(p).Applied)
		rt := &mockRoute{}
		routes[p] = rt
		require.True(t, r.AttachRoute(p, rt).Applied)
	}
	return r, players, routes
}

// dealNow deals via Rematch, skipping the countdown.
func dealNow(t *testing.T, r *Room, requester string) {
	t.Helper()
	res := r.Rematch(requester)
	require.True(t, res.Applied, "rematch rejected: %s", res.Reason)
	require.True(t, r.Snapshot().GameActive)
}

func handTotal(r *Room) int {
	total := 0
	for _, n := range r.Snapshot().CardCounts {
		total += n
	}
	return total
}

func TestJoinAssignsHostAndBroadcasts(t *testing.T) {
	r, players, routes := setupTestRoom(t, 3, Settings{})
	assert.Equal(t, players[0], r.Host())
	assert.Equal(t, players, r.Players())

	// the first player saw every roster change
	lobbies := routes["p0"].byType(EventUpdateLobby)
	require.Len(t, lobbies, 2)
	last := lobbies[len(lobbies)-1]
	assert.Equal(t, players, last.Lobby.Players)
	assert.Equal(t, "p0", last.Lobby.Host)
	assert.False(t, last.Lobby.Ready["p2"])
}

func TestJoinIdempotent(t *testing.T) {
	r, players, _ := setupTestRoom(t, 2, Settings{})
	v := r.Version()

	res := r.Join("p0")
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonNone, res.Reason)
	assert.Equal(t, players, r.Players())
	assert.Equal(t, v, r.Version(), "re-join must not bump the version")
}

func TestVersionStrictlyIncreases(t *testing.T) {
	r, _, _ := setupTestRoom(t, 4, Settings{})
	prev := r.Version()
	for _, op := range []func() Result{
		func() Result { return r.SetReady("p0", true) },
		func() Result { return r.SetReady("p1", true) },
		func() Result { return r.Swap(0, 1) },
		func() Result { return r.Rematch("p0") },
	} {
		res := op()
		require.True(t, res.Applied)
		assert.Greater(t, res.Version, prev)
		prev = res.Version
	}
}

func TestStartGameGuards(t *testing.T) {
	r, _, _ := setupTestRoom(t, 1, Settings{})
	assert.Equal(t, ReasonBadPlayerCount, r.StartGame("p0").Reason)

	r2, _, _ := setupTestRoom(t, 3, Settings{})
	// nobody ready and requester is not host
	res := r2.StartGame("p1")
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonNotReady, res.Reason)

	// host may force the start
	res = r2.StartGame("p0")
	assert.True(t, res.Applied)
	assert.True(t, r2.Snapshot().Locked)
	r2.CancelCountdown()
}

func TestStartGameCountdownDeals(t *testing.T) {
	r, players, routes := setupTestRoom(t, 4, Settings{
		CountdownSeconds: 3,
		CountdownTick:    5 * time.Millisecond,
	})
	for _, p := range players {
		require.True(t, r.SetReady(p, true).Applied)
	}

	res := r.StartGame("p2")
	require.True(t, res.Applied)

	require.Eventually(t, func() bool {
		return r.Snapshot().GameActive
	}, time.Second, 5*time.Millisecond)

	// every player heard the full countdown, 3 down to 0
	ticks := routes["p1"].byType(EventCountdown)
	require.Len(t, ticks, 4)
	assert.Equal(t, 3, *ticks[0].Remaining)
	assert.Equal(t, 0, *ticks[3].Remaining)

	snap := r.Snapshot()
	assert.False(t, snap.Locked)

	// exactly one player holds five cards and owns the first turn
	fives := 0
	starter := ""
	for p, n := range snap.CardCounts {
		if n == 5 {
			fives++
			starter = p
		} else {
			assert.Equal(t, 4, n)
		}
	}
	assert.Equal(t, 1, fives)
	assert.Equal(t, starter, snap.Players[snap.TurnIndex])
	assert.Equal(t, DeckSize, handTotal(r))

	// each player privately received exactly their own dealt hand
	for p, n := range snap.CardCounts {
		inits := routes[p].byType(EventInitHand)
		require.Len(t, inits, 1)
		assert.Len(t, inits[0].Hand.Hand, n)
	}
}

func TestStartGameWhileCountingIsRejected(t *testing.T) {
	r, players, _ := setupTestRoom(t, 4, Settings{
		CountdownTick: 50 * time.Millisecond,
	})
	for _, p := range players {
		require.True(t, r.SetReady(p, true).Applied)
	}

	first := r.StartGame("p0")
	require.True(t, first.Applied)

	second := r.StartGame("p1")
	assert.False(t, second.Applied)
	assert.Equal(t, ReasonLocked, second.Reason)
	assert.Equal(t, first.Version, r.Version(), "rejected start must not change state")

	r.CancelCountdown()
}

func TestDealThreePlayers(t *testing.T) {
	r, _, _ := setupTestRoom(t, 3, Settings{})
	dealNow(t, r, "p0")

	snap := r.Snapshot()
	assert.Equal(t, 0, snap.TurnIndex, "sub-4 rings always start at seat 0")
	assert.Equal(t, 6, snap.CardCounts["p0"])
	assert.Equal(t, 6, snap.CardCounts["p1"])
	assert.Equal(t, 5, snap.CardCounts["p2"])
	assert.Equal(t, DeckSize, handTotal(r))
}

func TestPassCardAnticlockwise(t *testing.T) {
	r, players, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	snap := r.Snapshot()
	fromIdx := snap.TurnIndex
	from := players[fromIdx]
	toIdx := (fromIdx + 3) % 4
	to := players[toIdx]
	fromCount := snap.CardCounts[from]
	toCount := snap.CardCounts[to]

	passed := r.hands[from][0]
	res := r.PassCard(from, 0)
	require.True(t, res.Applied)

	snap = r.Snapshot()
	assert.Equal(t, toIdx, snap.TurnIndex, "turn follows the card")
	assert.Equal(t, fromCount-1, snap.CardCounts[from])
	assert.Equal(t, toCount+1, snap.CardCounts[to])
	require.NotNil(t, snap.LastPass)
	assert.Equal(t, from, snap.LastPass.From)
	assert.Equal(t, to, snap.LastPass.To)

	// public animation carries no face; the private delivery does
	anims := routes["p0"].byType(EventPassAnimation)
	require.NotEmpty(t, anims)
	assert.Equal(t, from, anims[0].Pass.From)

	recvs := routes[to].byType(EventReceiveCard)
	require.Len(t, recvs, 1)
	assert.Equal(t, passed, recvs[0].Card.Card)
	for p, rt := range routes {
		if p != to {
			assert.Empty(t, rt.byType(EventReceiveCard))
		}
	}
}

func TestPassCardRejections(t *testing.T) {
	r, players, _ := setupTestRoom(t, 4, Settings{})

	assert.Equal(t, ReasonGameInactive, r.PassCard("p0", 0).Reason)

	dealNow(t, r, "p0")
	snap := r.Snapshot()
	current := players[snap.TurnIndex]
	other := players[(snap.TurnIndex+1)%4]
	v := r.Version()

	res := r.PassCard(other, 0)
	assert.Equal(t, ReasonNotYourTurn, res.Reason)
	assert.Equal(t, v, r.Version())

	res = r.PassCard(current, -1)
	assert.Equal(t, ReasonBadIndex, res.Reason)
	res = r.PassCard(current, len(r.hands[current]))
	assert.Equal(t, ReasonBadIndex, res.Reason)
	assert.Equal(t, v, r.Version())
	assert.Equal(t, DeckSize, handTotal(r))
}

func TestConservationAcrossManyPasses(t *testing.T) {
	r, players, _ := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 100; i++ {
		snap := r.Snapshot()
		current := players[snap.TurnIndex]
		idx := rng.Intn(snap.CardCounts[current])
		require.True(t, r.PassCard(current, idx).Applied)
		require.Equal(t, DeckSize, handTotal(r))
	}
}

func TestSignalNamesAllyAcrossTheTable(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	res := r.SendSignal("p1")
	require.True(t, res.Applied)

	sigs := routes["p3"].byType(EventSignalSent)
	require.Len(t, sigs, 1)
	assert.Equal(t, "p1", sigs[0].Signal.Signer)
	assert.Equal(t, "p3", sigs[0].Signal.Ally)
}

func TestCallJackwhotWin(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	r.mu.Lock()
	r.hands["p2"] = []Card{FaceHeart, FaceHeart, FaceHeart, FaceHeart}
	r.mu.Unlock()

	require.True(t, r.SendSignal("p0").Applied) // ally is p2

	assert.Equal(t, ReasonNotAlly, r.CallJackwhot("p1").Reason)

	res := r.CallJackwhot("p2")
	require.True(t, res.Applied)

	overs := routes["p3"].byType(EventGameOver)
	require.Len(t, overs, 1)
	result := overs[0].Result
	assert.True(t, result.Won)
	assert.Equal(t, []string{"p0", "p2"}, result.Winners)
	assert.Equal(t, "A", result.WinningTeam)
	assert.Equal(t, "jackwhot", result.EndedBy)
	assert.Len(t, result.Hands, 4)

	// the room is back in the lobby phase, hands cleared
	snap := r.Snapshot()
	assert.False(t, snap.GameActive)
	assert.Equal(t, 0, handTotal(r))
	assert.Equal(t, 0, snap.TurnIndex)
}

func TestCallJackwhotLoss(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	r.mu.Lock()
	r.hands["p3"] = []Card{FaceHeart, FaceCross, FaceCircle, FaceSquare}
	r.mu.Unlock()

	require.True(t, r.SendSignal("p1").Applied) // ally is p3
	res := r.CallJackwhot("p3")
	require.True(t, res.Applied)

	overs := routes["p0"].byType(EventGameOver)
	require.Len(t, overs, 1)
	result := overs[0].Result
	assert.False(t, result.Won)
	assert.Equal(t, []string{"p0", "p2"}, result.Winners, "a failed call hands the win to the opponents")
	assert.Equal(t, "A", result.WinningTeam)
}

func TestCallJackwhotWithoutSignal(t *testing.T) {
	r, _, _ := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")
	assert.Equal(t, ReasonNoSignal, r.CallJackwhot("p2").Reason)
}

func TestCallJackwhotExpiredWindow(t *testing.T) {
	r, _, _ := setupTestRoom(t, 4, Settings{SignalWindow: time.Millisecond})
	dealNow(t, r, "p0")

	require.True(t, r.SendSignal("p0").Applied)
	v := r.Version()
	time.Sleep(5 * time.Millisecond)

	res := r.CallJackwhot("p2")
	assert.False(t, res.Applied)
	assert.Equal(t, ReasonSignalExpired, res.Reason)
	assert.Greater(t, r.Version(), v, "clearing the dead window is a visible mutation")

	// the window is gone; a repeat call sees no signal at all
	assert.Equal(t, ReasonNoSignal, r.CallJackwhot("p2").Reason)
	assert.True(t, r.Snapshot().GameActive, "an expired call never ends the hand")
}

func TestSuspectVindicated(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	r.mu.Lock()
	r.hands["p0"] = []Card{FaceCross, FaceCross, FaceCross, FaceCross}
	r.mu.Unlock()

	res := r.Suspect("p1", "p0")
	require.True(t, res.Applied)

	reveals := routes["p2"].byType(EventRevealCards)
	require.Len(t, reveals, 1)
	assert.Equal(t, "p0", reveals[0].Reveal.Target)
	assert.Len(t, reveals[0].Reveal.Hands["p0"], 4)

	overs := routes["p2"].byType(EventGameOver)
	require.Len(t, overs, 1)
	result := overs[0].Result
	assert.True(t, result.Won)
	assert.Equal(t, []string{"p1", "p3"}, result.Winners)
	assert.Equal(t, "B", result.WinningTeam)
	assert.Equal(t, "suspect", result.EndedBy)
}

func TestSuspectBackfires(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")

	r.mu.Lock()
	r.hands["p2"] = []Card{FaceHeart, FaceCross, FaceCircle, FaceSquare}
	r.mu.Unlock()

	res := r.Suspect("p1", "p2")
	require.True(t, res.Applied)

	overs := routes["p0"].byType(EventGameOver)
	require.Len(t, overs, 1)
	result := overs[0].Result
	assert.False(t, result.Won)
	assert.Equal(t, []string{"p0", "p2"}, result.Winners, "a wrong accusation hands the win to the target's team")
	assert.Equal(t, "A", result.WinningTeam)
}

func TestSuspectUnknownTarget(t *testing.T) {
	r, _, _ := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")
	assert.Equal(t, ReasonUnknownPlayer, r.Suspect("p1", "ghost").Reason)
	assert.True(t, r.Snapshot().GameActive)
}

func TestTwoPlayerEndgameTeams(t *testing.T) {
	r, _, routes := setupTestRoom(t, 2, Settings{})
	dealNow(t, r, "p0")

	r.mu.Lock()
	r.hands["p0"] = []Card{FaceHeart, FaceHeart, FaceHeart, FaceHeart}
	r.mu.Unlock()

	// with two seats the signal wraps back to the signer
	require.True(t, r.SendSignal("p0").Applied)
	require.True(t, r.CallJackwhot("p0").Applied)

	overs := routes["p1"].byType(EventGameOver)
	require.Len(t, overs, 1)
	result := overs[0].Result
	assert.True(t, result.Won)
	assert.Equal(t, []string{"p0"}, result.Winners)
	assert.Equal(t, "A", result.WinningTeam)
}

func TestLeaveMidHandAbortsTheHand(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")
	routes["p1"].clear()

	res := r.Leave("p3")
	require.True(t, res.Applied)

	snap := r.Snapshot()
	assert.False(t, snap.GameActive)
	assert.Equal(t, 0, handTotal(r))
	assert.Equal(t, []string{"p0", "p1", "p2"}, snap.Players)

	// survivors see the lobby, not a gameOver
	assert.Empty(t, routes["p1"].byType(EventGameOver))
	assert.NotEmpty(t, routes["p1"].byType(EventUpdateLobby))
}

func TestLeaveReassignsHost(t *testing.T) {
	r, _, _ := setupTestRoom(t, 3, Settings{})
	require.True(t, r.Leave("p0").Applied)
	assert.Equal(t, "p1", r.Host())

	require.True(t, r.Leave("p1").Applied)
	require.True(t, r.Leave("p2").Applied)
	assert.Equal(t, "", r.Host())
	assert.Empty(t, r.Players())
}

func TestKickDeliversPrivateNotice(t *testing.T) {
	r, _, routes := setupTestRoom(t, 3, Settings{})
	res := r.Kick("p2")
	require.True(t, res.Applied)

	kicked := routes["p2"].byType(EventKicked)
	require.Len(t, kicked, 1)
	assert.Equal(t, []string{"p0", "p1"}, r.Players())
	for _, p := range []string{"p0", "p1"} {
		assert.Empty(t, routes[p].byType(EventKicked))
	}
}

func TestSwapRepointsHost(t *testing.T) {
	r, _, _ := setupTestRoom(t, 3, Settings{})
	require.True(t, r.Swap(0, 2).Applied)
	assert.Equal(t, []string{"p2", "p1", "p0"}, r.Players())
	assert.Equal(t, "p2", r.Host())

	assert.Equal(t, ReasonOutOfRange, r.Swap(0, 5).Reason)
	assert.Equal(t, ReasonOutOfRange, r.Swap(-1, 1).Reason)
}

func TestRejoinResyncsWithoutVersionBump(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")
	v := r.Version()
	handLen := len(r.hands["p1"])
	routes["p1"].clear()

	res := r.Rejoin("p1")
	require.True(t, res.Applied)
	assert.Equal(t, v, r.Version(), "rejoin reads, it does not mutate")

	games := routes["p1"].byType(EventUpdateGame)
	require.Len(t, games, 1)
	assert.Equal(t, v, games[0].Snapshot.Version)

	hands := routes["p1"].byType(EventSyncHand)
	require.Len(t, hands, 1)
	assert.Len(t, hands[0].Hand.Hand, handLen)
	assert.Equal(t, v, hands[0].Hand.Version)

	// nobody else heard anything
	assert.Empty(t, routes["p2"].byType(EventSyncHand))
}

func TestRequestHandIsPrivate(t *testing.T) {
	r, _, routes := setupTestRoom(t, 4, Settings{})
	dealNow(t, r, "p0")
	routes["p0"].clear()

	require.True(t, r.RequestHand("p0").Applied)
	hands := routes["p0"].byType(EventSyncHand)
	require.Len(t, hands, 1)
	assert.Empty(t, routes["p1"].byType(EventSyncHand))
}

func TestChatRelaysWithoutVersionBump(t *testing.T) {
	r, _, routes := setupTestRoom(t, 2, Settings{})
	v := r.Version()

	require.True(t, r.Chat("p0", "hello").Applied)
	assert.Equal(t, v, r.Version())

	msgs := routes["p1"].byType(EventChat)
	require.Len(t, msgs, 1)
	assert.Equal(t, "p0", msgs[0].Chat.From)
	assert.Equal(t, "hello", msgs[0].Chat.Message)

	assert.Equal(t, ReasonUnknownPlayer, r.Chat("ghost", "hi").Reason)
}

func TestOnGameEndReceivesResult(t *testing.T) {
	var mu sync.Mutex
	var got *GameResult
	r := NewRoom("cb-room", Settings{}, func(roomID string, res GameResult) {
		mu.Lock()
		defer mu.Unlock()
		got = &res
	})
	r.rng = rand.New(rand.NewSource(3))

	for _, p := range []string{"p0", "p1", "p2", "p3"} {
		require.True(t, r.Join(p).Applied)
	}
	dealNow(t, r, "p0")

	r.mu.Lock()
	r.hands["p2"] = []Card{FaceSquare, FaceSquare, FaceSquare, FaceSquare}
	r.mu.Unlock()

	require.True(t, r.SendSignal("p0").Applied)
	require.True(t, r.CallJackwhot("p2").Applied)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got.Won)
	assert.Equal(t, []string{"p0", "p2"}, got.Winners)
}
