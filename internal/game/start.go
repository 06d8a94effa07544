package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// StartGame starts a full room directly, rolling the die internally.
func (m *Manager) StartGame(ctx context.Context, roomID string) error {
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
	return m.startGameLocked(ctx, room, &notices)
}

func (m *Manager) startGameLocked(ctx context.Context, room *Room, notices *outbox) error {
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
	game.DiceResult = m.dice.Roll()
	return m.finalizeLocked(ctx, room, game, users, notices)
}

// FinalizeGameStart ends prompt selection with the given face. The face
// must match the roll if there was one. A non-nil customPrompt replaces the
// prompt of the player who rolled, or of the room creator when nobody did.
func (m *Manager) FinalizeGameStart(ctx context.Context, roomID string, face int, customPrompt *string) error {
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
	game, err := m.loadGame(ctx, roomID)
	if err != nil {
		return err
	}
	if game.Status != StatusPromptSelection {
		return ErrNotInSelectionPhase
	}
	if face < 1 || face > cardSize {
		return validationError("dice face %d out of range", face)
	}
	if game.Rolled() && game.DiceResult != face {
		return fmt.Errorf("%w: the die already shows %d", ErrAlreadyRolled, game.DiceResult)
	}
	users, err := m.loadMembers(ctx, room)
	if err != nil {
		return err
	}
	game.DiceResult = face
	if customPrompt != nil {
		text, err := cleanPrompt(*customPrompt)
		if err != nil {
			return err
		}
		customFor := game.DiceRolledBy
		if customFor == "" {
			if creator, ok := room.Creator(); ok {
				customFor = creator.UserID
			}
		}
		game.SetCustomPrompt(customFor, text)
	}
	return m.finalizeLocked(ctx, room, game, users, &notices)
}

// finalizeLocked creates the first round's books and puts the game in
// progress. Every prompt is resolved before anything is written.
func (m *Manager) finalizeLocked(ctx context.Context, room *Room, game *Game, users []*User, notices *outbox) error {
	plans, err := m.planBooks(ctx, users, game.DiceResult, game.CustomPrompts)
	if err != nil {
		return err
	}
	books, err := m.createBooks(ctx, room.ID, 1, plans)
	if err != nil {
		return err
	}
	if err := game.Start(initialHolders(room.MemberNames(), books), m.now()); err != nil {
		return err
	}
	if err := m.seatPlayers(ctx, game, users, books); err != nil {
		return err
	}
	if err := m.entities.SaveGame(ctx, game); err != nil {
		return err
	}

	m.record(ctx, room.ID, "game_started", map[string]any{"dice_result": game.DiceResult, "books": len(books)})
	log.Info().Str("room_id", room.ID).Int("dice_result", game.DiceResult).Int("players", len(users)).Msg("game_started")
	notices.add(RoomChannel(room.ID), Notice{Type: NoticeRedirect, URL: nextURL(room.ID)})
	return nil
}

// StartNextRound opens round r+1 after a finished round: fresh cards, a
// fresh roll, new books and reseeded holders. The prompt turn is closed
// immediately so play resumes with a sketch turn.
func (m *Manager) StartNextRound(ctx context.Context, roomID string) error {
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
	game, err := m.entities.Game(ctx, roomID)
	if err != nil {
		return err
	}
	if err := game.NextRound(m.now()); err != nil {
		return err
	}
	users, err := m.loadMembers(ctx, room)
	if err != nil {
		return err
	}
	if err := m.assignCards(ctx, users); err != nil {
		return err
	}
	game.DiceResult = m.dice.Roll()
	game.DiceRolledBy = ""
	game.AwaitingFreeInput = false
	game.FreeInputGenre = ""
	game.FreeInputPending = nil
	game.CustomPrompts = nil

	plans, err := m.planBooks(ctx, users, game.DiceResult, nil)
	if err != nil {
		return err
	}
	books, err := m.createBooks(ctx, roomID, game.CurrentRound, plans)
	if err != nil {
		return err
	}
	game.HolderMap = initialHolders(room.MemberNames(), books)
	if err := game.NextTurn(m.now()); err != nil {
		return err
	}
	if err := m.seatPlayers(ctx, game, users, books); err != nil {
		return err
	}
	if err := m.entities.SaveGame(ctx, game); err != nil {
		return err
	}

	m.record(ctx, roomID, "round_started", map[string]any{"round": game.CurrentRound, "dice_result": game.DiceResult})
	log.Info().Str("room_id", roomID).Int("round", game.CurrentRound).Msg("round_started")
	notices.add(RoomChannel(roomID), Notice{Type: NoticeRedirect, URL: nextURL(roomID)})
	return nil
}

type bookPlan struct {
	owner  *User
	prompt *Prompt
	text   string
}

// planBooks resolves every member's prompt at face. customs maps user ids
// to phrases that replace the card's word.
func (m *Manager) planBooks(ctx context.Context, users []*User, face int, customs map[string]string) ([]bookPlan, error) {
	plans := make([]bookPlan, 0, len(users))
	for _, user := range users {
		if user.AssignedCardNum == nil {
			return nil, integrityError("player %q has no prompt card", user.Name)
		}
		prompt, err := m.catalog.PromptAt(ctx, *user.AssignedCardNum, face)
		if err != nil {
			return nil, fmt.Errorf("%w: card %d face %d: %v", ErrDataIntegrity, *user.AssignedCardNum, face, err)
		}
		text := prompt.Word
		if free, genre := prompt.FreeInput(); free {
			text = freeInputPlaceholder(genre)
		}
		if custom, ok := customs[user.ID]; ok {
			text = custom
		}
		plans = append(plans, bookPlan{owner: user, prompt: prompt, text: text})
	}
	return plans, nil
}

// createBooks writes one book per plan for the round. Books left over from
// an earlier attempt at the same round are dropped in the same transaction,
// so a start that failed after this step can simply be retried.
func (m *Manager) createBooks(ctx context.Context, roomID string, round int, plans []bookPlan) ([]SketchBook, error) {
	books := make([]SketchBook, 0, len(plans))
	err := m.books.WithinTx(ctx, func(tx Books) error {
		stale, err := tx.DeleteRound(ctx, roomID, round)
		if err != nil {
			return err
		}
		if stale > 0 {
			log.Warn().Str("room_id", roomID).Int("round", round).Int("books", stale).Msg("stale_books_replaced")
		}
		for _, plan := range plans {
			book := &SketchBook{
				RoomID:     roomID,
				OwnerName:  plan.owner.Name,
				PromptID:   plan.prompt.ID,
				PromptText: plan.text,
				Round:      round,
			}
			page := &Page{
				PageNumber: 1,
				PageType:   PagePrompt,
				Content:    plan.text,
				AuthorName: plan.owner.Name,
			}
			if err := tx.CreateBook(ctx, book, page); err != nil {
				return err
			}
			book.PageCount = 1
			books = append(books, *book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// initialHolders hands each book to its owner when the group is even and to
// the owner's successor when it is odd.
func initialHolders(order []string, books []SketchBook) map[uint]string {
	holders := make(map[uint]string, len(books))
	n := len(order)
	for _, book := range books {
		holders[book.ID] = book.OwnerName
		if n%2 == 1 {
			for i, name := range order {
				if name == book.OwnerName {
					holders[book.ID] = order[(i+1)%n]
					break
				}
			}
		}
	}
	return holders
}

// seatPlayers points every user at the book they own and the book they hold.
func (m *Manager) seatPlayers(ctx context.Context, game *Game, users []*User, books []SketchBook) error {
	for _, user := range users {
		for _, book := range books {
			if book.OwnerName == user.Name {
				user.OwnedSketchBookID = ptr(book.ID)
			}
		}
		if err := m.holdCurrentBook(ctx, game, user); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) holdCurrentBook(ctx context.Context, game *Game, user *User) error {
	user.CurrentSketchBookID = nil
	if bookID, ok := game.BookHeldBy(user.Name); ok {
		user.CurrentSketchBookID = ptr(bookID)
	}
	return m.entities.SaveUser(ctx, user)
}

func (m *Manager) assignCards(ctx context.Context, users []*User) error {
	cards, err := m.catalog.CardNumbers(ctx)
	if err != nil {
		return err
	}
	if len(cards) < len(users) {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughCards, len(cards), len(users))
	}
	m.rngMu.Lock()
	perm := m.rng.Perm(len(cards))
	m.rngMu.Unlock()
	for i, user := range users {
		user.AssignedCardNum = ptr(cards[perm[i]])
	}
	return nil
}

func nextURL(roomID string) string {
	return "/api/rooms/" + roomID + "/next"
}

func resultsURL(roomID string) string {
	return "/api/rooms/" + roomID + "/results"
}

func roomURL(roomID string) string {
	return "/api/rooms/" + roomID
}
