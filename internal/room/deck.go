// internal/room/deck.go
package room

import "math/rand"

// Card is a single card face. The Jackwhot deck has no suits or values,
// only four shapes.
type Card string

const (
	FaceCircle Card = "Circle"
	FaceSquare Card = "Square"
	FaceCross  Card = "Cross"
	FaceHeart  Card = "Heart"
)

// DeckSize is the fixed number of cards in play: 5 Circles plus 4 each of
// the other three faces.
const DeckSize = 17

// faceCounts is the deck composition. Circle is the majority face; whoever
// collects four of a kind still only needs four, so the extra Circle keeps
// the 4-player deal uneven by exactly one card.
var faceCounts = []struct {
	face  Card
	count int
}{
	{FaceCircle, 5},
	{FaceSquare, 4},
	{FaceCross, 4},
	{FaceHeart, 4},
}

// NewDeck returns the fixed 17-card multiset in composition order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, fc := range faceCounts {
		for i := 0; i < fc.count; i++ {
			deck = append(deck, fc.face)
		}
	}
	return deck
}

// ShuffleDeck permutes deck in place using the provided source.
func ShuffleDeck(r *rand.Rand, deck []Card) {
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// hasFourOfAKind reports whether any face appears at least four times in the
// hand. This is the single win condition inspected by both the jackwhot call
// and the suspect accusation.
func hasFourOfAKind(hand []Card) bool {
	counts := make(map[Card]int, 4)
	for _, c := range hand {
		counts[c]++
		if counts[c] >= 4 {
			return true
		}
	}
	return false
}
