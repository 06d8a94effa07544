package game

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// StartPromptSelection deals a distinct card to every member of a full room
// and waits for the dice roll.
func (m *Manager) StartPromptSelection(ctx context.Context, roomID string) error {
	unlock := m.locks.lock(roomID)
	var notices outbox
	defer func() {
		unlock()
		m.flush(notices)
	}()

	room, err := m.entities.Room(ctx, roomID)
	if err != nil {
		return err
	}
	return m.startPromptSelectionLocked(ctx, room, &notices)
}

func (m *Manager) startPromptSelectionLocked(ctx context.Context, room *Room, notices *outbox) error {
	if !room.Full() {
		return ErrRoomNotFull
	}
	game, err := m.loadGame(ctx, room.ID)
	if err != nil {
		return err
	}
	if game.Status != StatusWaiting {
		return ErrGameStarted
	}
	users, err := m.loadMembers(ctx, room)
	if err != nil {
		return err
	}
	if err := m.assignCards(ctx, users); err != nil {
		return err
	}
	if err := game.StartPromptSelection(); err != nil {
		return err
	}
	for _, user := range users {
		if err := m.entities.SaveUser(ctx, user); err != nil {
			return err
		}
	}
	if err := m.entities.SaveGame(ctx, game); err != nil {
		return err
	}

	m.record(ctx, room.ID, "prompt_selection_started", nil)
	log.Info().Str("room_id", room.ID).Msg("prompt_selection_started")
	notices.add(RoomChannel(room.ID), Notice{Type: NoticeReload})
	return nil
}

type DiceOutcome struct {
	Face           int
	NeedsFreeInput bool
	Genre          string
	// Pending counts the members, roller included, who must write their
	// own prompt before play starts.
	Pending int
}

// RollDice rolls once for the whole room. Every member whose card is
// free-input at the rolled face owes a phrase through SubmitFreePrompt and
// the game waits for all of them; otherwise the game starts right away.
func (m *Manager) RollDice(ctx context.Context, roomID, userID string) (*DiceOutcome, error) {
	unlock := m.locks.lock(roomID)
	var notices outbox
	defer func() {
		unlock()
		m.flush(notices)
	}()

	room, err := m.entities.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	roller, err := m.memberUser(ctx, room, userID)
	if err != nil {
		return nil, err
	}
	game, err := m.loadGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if game.Status != StatusPromptSelection {
		return nil, ErrNotInSelectionPhase
	}
	if game.Rolled() {
		return nil, ErrAlreadyRolled
	}
	users, err := m.loadMembers(ctx, room)
	if err != nil {
		return nil, err
	}

	face := m.dice.Roll()
	plans, err := m.planBooks(ctx, users, face, nil)
	if err != nil {
		return nil, err
	}
	if err := game.RollDice(face); err != nil {
		return nil, err
	}
	game.DiceRolledBy = roller.ID
	outcome := &DiceOutcome{Face: face}
	var pending []string
	for _, plan := range plans {
		free, genre := plan.prompt.FreeInput()
		if !free {
			continue
		}
		pending = append(pending, plan.owner.ID)
		if plan.owner.ID == roller.ID {
			outcome.NeedsFreeInput, outcome.Genre = true, genre
		}
	}
	outcome.Pending = len(pending)

	m.record(ctx, roomID, "dice_rolled", map[string]any{"user_id": roller.ID, "dice_result": face, "free_inputs": len(pending)})
	log.Info().Str("room_id", roomID).Str("user_id", roller.ID).Int("dice_result", face).Int("free_inputs", len(pending)).Msg("dice_rolled")
	notices.add(RoomChannel(roomID), Notice{Type: NoticeDice, Result: face})

	if len(pending) > 0 {
		game.AwaitingFreeInput = true
		game.FreeInputGenre = outcome.Genre
		game.FreeInputPending = pending
		if err := m.entities.SaveGame(ctx, game); err != nil {
			return nil, err
		}
		notices.add(RoomChannel(roomID), Notice{Type: NoticeReload})
		return outcome, nil
	}
	if err := m.finalizeLocked(ctx, room, game, users, &notices); err != nil {
		return nil, err
	}
	return outcome, nil
}

// SubmitFreePrompt records a member's own phrase for their free-input
// prompt. The last missing phrase starts the game.
func (m *Manager) SubmitFreePrompt(ctx context.Context, roomID, userID, text string) error {
	unlock := m.locks.lock(roomID)
	var notices outbox
	defer func() {
		unlock()
		m.flush(notices)
	}()

	room, err := m.entities.Room(ctx, roomID)
	if err != nil {
		return err
	}
	if _, err := m.memberUser(ctx, room, userID); err != nil {
		return err
	}
	game, err := m.loadGame(ctx, roomID)
	if err != nil {
		return err
	}
	if game.Status != StatusPromptSelection {
		return ErrNotInSelectionPhase
	}
	if !game.Rolled() {
		return ErrDiceNotRolled
	}
	text, err = cleanPrompt(text)
	if err != nil {
		return err
	}
	if !game.AwaitingFreeInput {
		return ErrNoFreeInputPending
	}
	if err := game.AcceptFreeInput(userID, text); err != nil {
		return err
	}
	log.Info().Str("room_id", roomID).Str("user_id", userID).Int("still_pending", len(game.FreeInputPending)).Msg("free_prompt_submitted")

	if game.AwaitingFreeInput {
		if err := m.entities.SaveGame(ctx, game); err != nil {
			return err
		}
		notices.add(RoomChannel(roomID), Notice{Type: NoticeReload})
		return nil
	}
	users, err := m.loadMembers(ctx, room)
	if err != nil {
		return err
	}
	return m.finalizeLocked(ctx, room, game, users, &notices)
}

func cleanPrompt(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", validationError("prompt text is required")
	}
	if utf8.RuneCountInString(text) > MaxPromptLength {
		return "", validationError("prompt must be %d characters or fewer", MaxPromptLength)
	}
	return text, nil
}
