package game

import (
	"fmt"
	"slices"
	"time"
)

type Status string

const (
	StatusWaiting         Status = "waiting"
	StatusPromptSelection Status = "prompt_selection"
	StatusInProgress      Status = "in_progress"
	StatusRoundFinished   Status = "round_finished"
	StatusFinished        Status = "finished"
)

type TurnType string

const (
	TurnSketch TurnType = "sketch"
	TurnText   TurnType = "text"
)

// Turn 1 is the prompt page written when a book is created.
const firstLiveTurn = 2

// Game is the per-room state machine. It is keyed by room id.
type Game struct {
	RoomID        string
	Status        Status
	CurrentRound  int
	CurrentTurn   int
	TurnType      TurnType
	TurnStartedAt time.Time
	HolderMap     map[uint]string

	// DiceResult is 0 until the die is rolled during prompt selection.
	DiceResult        int
	DiceRolledBy      string
	AwaitingFreeInput bool
	FreeInputGenre    string

	// FreeInputPending lists the members who still owe their own phrase for
	// a free-input prompt. CustomPrompts holds the phrases received so far,
	// keyed by user id.
	FreeInputPending []string
	CustomPrompts    map[string]string
}

func NewGame(roomID string) *Game {
	return &Game{
		RoomID:       roomID,
		Status:       StatusWaiting,
		CurrentRound: 1,
		CurrentTurn:  1,
		TurnType:     TurnSketch,
		HolderMap:    make(map[uint]string),
	}
}

// TurnTypeFor returns the page type expected on a turn: even turns are
// drawn, odd turns are written.
func TurnTypeFor(turn int) TurnType {
	if turn%2 == 0 {
		return TurnSketch
	}
	return TurnText
}

func (g *Game) Rolled() bool {
	return g.DiceResult != 0
}

func (g *Game) Done() bool {
	return g.Status == StatusFinished || g.Status == StatusRoundFinished
}

func (g *Game) StartPromptSelection() error {
	if g.Status != StatusWaiting {
		return phaseError("start prompt selection", g.Status)
	}
	g.Status = StatusPromptSelection
	return nil
}

func (g *Game) RollDice(face int) error {
	if g.Status != StatusPromptSelection {
		return ErrNotInSelectionPhase
	}
	if g.Rolled() {
		return ErrAlreadyRolled
	}
	if face < 1 || face > 6 {
		return validationError("dice face %d out of range", face)
	}
	g.DiceResult = face
	return nil
}

// Start seeds the holder map and opens live play on turn 2 of round 1.
func (g *Game) Start(holders map[uint]string, at time.Time) error {
	if g.Status != StatusWaiting && g.Status != StatusPromptSelection {
		return phaseError("start", g.Status)
	}
	g.Status = StatusInProgress
	g.CurrentRound = 1
	g.CurrentTurn = firstLiveTurn
	g.TurnType = TurnTypeFor(firstLiveTurn)
	g.TurnStartedAt = at
	g.HolderMap = copyHolders(holders)
	g.AwaitingFreeInput = false
	g.FreeInputPending = nil
	g.CustomPrompts = nil
	return nil
}

// OwesFreeInput reports whether userID still has to write their own prompt.
func (g *Game) OwesFreeInput(userID string) bool {
	return slices.Contains(g.FreeInputPending, userID)
}

// AcceptFreeInput records the phrase of a member who owes one. The game
// keeps waiting while anyone else still owes theirs.
func (g *Game) AcceptFreeInput(userID, text string) error {
	if !g.OwesFreeInput(userID) {
		return ErrFreeInputNotOwed
	}
	g.SetCustomPrompt(userID, text)
	return nil
}

// SetCustomPrompt replaces the prompt of userID's book, whether or not the
// card asked for one.
func (g *Game) SetCustomPrompt(userID, text string) {
	if g.CustomPrompts == nil {
		g.CustomPrompts = make(map[string]string)
	}
	g.CustomPrompts[userID] = text
	g.FreeInputPending = slices.DeleteFunc(g.FreeInputPending, func(id string) bool { return id == userID })
	if len(g.FreeInputPending) == 0 {
		g.FreeInputPending = nil
	}
	g.AwaitingFreeInput = len(g.FreeInputPending) > 0
}

func (g *Game) NextTurn(at time.Time) error {
	if g.Status != StatusInProgress {
		return phaseError("advance turn", g.Status)
	}
	g.CurrentTurn++
	g.TurnType = TurnTypeFor(g.CurrentTurn)
	g.TurnStartedAt = at
	return nil
}

func (g *Game) FinishRound() error {
	if g.Status != StatusInProgress {
		return phaseError("finish round", g.Status)
	}
	g.Status = StatusRoundFinished
	return nil
}

func (g *Game) NextRound(at time.Time) error {
	if g.Status != StatusRoundFinished {
		return phaseError("start next round", g.Status)
	}
	g.Status = StatusInProgress
	g.CurrentRound++
	g.CurrentTurn = 1
	g.TurnType = TurnSketch
	g.TurnStartedAt = at
	return nil
}

func (g *Game) Finish(totalRounds int) error {
	if g.Status != StatusRoundFinished {
		return phaseError("finish", g.Status)
	}
	if g.CurrentRound != totalRounds {
		return fmt.Errorf("%w: round %d of %d still pending", ErrInvalidPhase, g.CurrentRound, totalRounds)
	}
	g.Status = StatusFinished
	return nil
}

// RotateHolders passes every book to the circular successor of its holder.
func (g *Game) RotateHolders(order []string) error {
	if len(order) == 0 {
		return integrityError("empty member order")
	}
	index := make(map[string]int, len(order))
	for i, name := range order {
		index[name] = i
	}
	rotated := make(map[uint]string, len(g.HolderMap))
	for bookID, holder := range g.HolderMap {
		i, ok := index[holder]
		if !ok {
			return integrityError("holder %q of sketchbook %d is not a member", holder, bookID)
		}
		rotated[bookID] = order[(i+1)%len(order)]
	}
	g.HolderMap = rotated
	return nil
}

func (g *Game) Holder(bookID uint) (string, bool) {
	holder, ok := g.HolderMap[bookID]
	return holder, ok
}

func (g *Game) AllBooksReturned(books []SketchBook) bool {
	for _, book := range books {
		if g.HolderMap[book.ID] != book.OwnerName {
			return false
		}
	}
	return true
}

// BookHeldBy finds the book the named member holds.
func (g *Game) BookHeldBy(name string) (uint, bool) {
	for bookID, holder := range g.HolderMap {
		if holder == name {
			return bookID, true
		}
	}
	return 0, false
}

func copyHolders(holders map[uint]string) map[uint]string {
	out := make(map[uint]string, len(holders))
	for k, v := range holders {
		out[k] = v
	}
	return out
}

func phaseError(action string, status Status) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidPhase, action, status)
}
