package views

import (
	"fmt"
	"time"

	"study-companion/internal/models"
)

const FlashcardsPlaceholder = "No flashcards were generated. Try a different image or prompt."

// FlashcardsView is a cursor over a deck plus a revealed flag. Moving away
// from a revealed card first hides it and only lands on the new card once
// the flip-back animation has had time to finish.
type FlashcardsView struct {
	cursor   int
	revealed bool

	pending  bool
	target   int
	settleAt time.Time

	delay time.Duration
	now   func() time.Time
}

func NewFlashcardsView(delay time.Duration) *FlashcardsView {
	return &FlashcardsView{delay: delay, now: time.Now}
}

type FlashcardsState struct {
	Empty         bool   `json:"empty"`
	Placeholder   string `json:"placeholder,omitempty"`
	Index         int    `json:"index"`
	Total         int    `json:"total"`
	Position      string `json:"position,omitempty"`
	Term          string `json:"term,omitempty"`
	Definition    string `json:"definition,omitempty"`
	Revealed      bool   `json:"revealed"`
	Transitioning bool   `json:"transitioning"`
	// SettleMillis is how long until a pending move lands, 0 otherwise.
	SettleMillis int64 `json:"settle_ms,omitempty"`
	CanNavigate   bool   `json:"can_navigate"`
}

func (v *FlashcardsView) Reset() {
	v.cursor = 0
	v.revealed = false
	v.pending = false
	v.target = 0
}

// Flip toggles the current card. A pending move is completed first so the
// flip applies to the card the user is about to see.
func (v *FlashcardsView) Flip(n int) {
	if n == 0 {
		return
	}
	v.finishPending()
	v.revealed = !v.revealed
}

func (v *FlashcardsView) Next(n int) {
	if n == 0 {
		return
	}
	v.goTo((v.origin() + 1) % n)
}

func (v *FlashcardsView) Prev(n int) {
	if n == 0 {
		return
	}
	v.goTo((v.origin() - 1 + n) % n)
}

func (v *FlashcardsView) State(cards []models.Flashcard) FlashcardsState {
	n := len(cards)
	if n == 0 {
		return FlashcardsState{Empty: true, Placeholder: FlashcardsPlaceholder}
	}

	v.settle()
	if v.cursor >= n {
		v.Reset()
	}

	card := cards[v.cursor]
	state := FlashcardsState{
		Index:         v.cursor,
		Total:         n,
		Position:      fmt.Sprintf("%d / %d", v.cursor+1, n),
		Term:          card.Term,
		Definition:    card.Definition,
		Revealed:      v.revealed,
		Transitioning: v.pending,
		CanNavigate:   n > 1,
	}
	if v.pending {
		remaining := v.settleAt.Sub(v.now())
		state.SettleMillis = int64((remaining + time.Millisecond - 1) / time.Millisecond)
	}
	return state
}

// origin is where the next move starts from: the pending target if a
// transition is still running.
func (v *FlashcardsView) origin() int {
	v.settle()
	if v.pending {
		return v.target
	}
	return v.cursor
}

func (v *FlashcardsView) goTo(index int) {
	if v.revealed {
		v.revealed = false
		v.pending = true
		v.target = index
		v.settleAt = v.now().Add(v.delay)
		return
	}
	v.cursor = index
	v.pending = false
}

func (v *FlashcardsView) settle() {
	if v.pending && !v.now().Before(v.settleAt) {
		v.finishPending()
	}
}

func (v *FlashcardsView) finishPending() {
	if v.pending {
		v.cursor = v.target
		v.pending = false
	}
}
