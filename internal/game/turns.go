package game

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type OutcomeKind string

const (
	OutcomeWaiting       OutcomeKind = "waiting"
	OutcomeAdvanced      OutcomeKind = "advanced"
	OutcomeRoundFinished OutcomeKind = "round_finished"
	OutcomeGameFinished  OutcomeKind = "game_finished"
)

type PageSubmission struct {
	BookID  uint
	UserID  string
	Content string
	Image   []byte
}

// Outcome describes what a submission did to the game. Completed and Total
// count the books that have a page for the turn just played.
type Outcome struct {
	Kind       OutcomeKind
	Turn       int
	Completed  int
	Total      int
	NextBookID uint
}

// SubmitPage stores the holder's page for the current turn and then decides,
// under the room lock, whether to wait for the others, pass the books on,
// finish the round or finish the game.
func (m *Manager) SubmitPage(ctx context.Context, sub PageSubmission) (*Outcome, error) {
	user, err := m.entities.User(ctx, sub.UserID)
	if err != nil {
		return nil, err
	}
	book, err := m.books.Book(ctx, sub.BookID)
	if err != nil {
		return nil, err
	}
	if book.RoomID != user.RoomID {
		return nil, ErrBookNotFound
	}

	unlock := m.locks.lock(book.RoomID)
	var notices outbox
	defer func() {
		unlock()
		m.flush(notices)
	}()

	room, err := m.entities.Room(ctx, book.RoomID)
	if err != nil {
		return nil, err
	}
	game, err := m.entities.Game(ctx, book.RoomID)
	if err != nil {
		return nil, err
	}
	if game.Done() {
		return finishedOutcome(game), nil
	}
	if game.Status != StatusInProgress {
		return nil, phaseError("submit a page", game.Status)
	}
	if book.Round != game.CurrentRound {
		return nil, fmt.Errorf("%w: sketchbook belongs to round %d", ErrInvalidPhase, book.Round)
	}
	if holder, ok := game.Holder(book.ID); !ok || holder != user.Name {
		return nil, ErrNotHolder
	}

	page := &Page{
		SketchBookID: book.ID,
		PageNumber:   game.CurrentTurn,
		PageType:     PageType(game.TurnType),
		Content:      sub.Content,
		Image:        sub.Image,
		AuthorName:   user.Name,
	}
	if page.PageType == PageSketch {
		page.Content = ""
	} else {
		page.Image = nil
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	exists, err := m.books.HasPage(ctx, book.ID, page.PageNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		// The page landed but the turn was never advanced past it. With
		// every page of the turn in place the advance is replayed instead
		// of leaving the room stuck on a finished turn.
		stalled, err := m.turnStalled(ctx, room.ID, game)
		if err != nil {
			return nil, err
		}
		if !stalled {
			return nil, ErrDuplicatePage
		}
		log.Warn().Str("room_id", room.ID).Int("turn", game.CurrentTurn).Msg("stalled_turn_resumed")
	} else {
		if err := m.books.AddPage(ctx, page); err != nil {
			return nil, err
		}
		m.record(ctx, room.ID, "page_added", map[string]any{"sketch_book_id": book.ID, "page_number": page.PageNumber, "author": user.Name})
		log.Info().Str("room_id", room.ID).Uint("sketch_book_id", book.ID).Int("turn", page.PageNumber).Str("author", user.Name).Msg("page_added")
	}

	outcome, err := m.advanceLocked(ctx, room, game, &notices)
	if err != nil {
		return nil, err
	}
	if outcome.Kind == OutcomeAdvanced {
		outcome.NextBookID, _ = game.BookHeldBy(user.Name)
	}
	return outcome, nil
}

func (m *Manager) turnStalled(ctx context.Context, roomID string, game *Game) (bool, error) {
	books, err := m.books.BooksForRound(ctx, roomID, game.CurrentRound)
	if err != nil {
		return false, err
	}
	completed, total := turnProgress(books, game.CurrentTurn)
	return completed == total, nil
}

func finishedOutcome(game *Game) *Outcome {
	if game.Status == StatusFinished {
		return &Outcome{Kind: OutcomeGameFinished, Turn: game.CurrentTurn}
	}
	return &Outcome{Kind: OutcomeRoundFinished, Turn: game.CurrentTurn}
}

func (m *Manager) advanceLocked(ctx context.Context, room *Room, game *Game, notices *outbox) (*Outcome, error) {
	books, err := m.books.BooksForRound(ctx, room.ID, game.CurrentRound)
	if err != nil {
		return nil, err
	}
	turn := game.CurrentTurn
	completed, total := turnProgress(books, turn)
	outcome := &Outcome{Turn: turn, Completed: completed, Total: total}
	if completed < total {
		outcome.Kind = OutcomeWaiting
		notices.add(GameChannel(room.ID), Notice{Type: NoticeWaiting, Completed: completed, Total: total})
		return outcome, nil
	}

	if err := game.RotateHolders(room.MemberNames()); err != nil {
		return nil, err
	}
	returned := game.AllBooksReturned(books)
	enoughTurns := turn >= room.EnteringCount()

	if returned && enoughTurns {
		if err := m.books.MarkCompleted(ctx, room.ID, game.CurrentRound); err != nil {
			return nil, err
		}
		if err := game.FinishRound(); err != nil {
			return nil, err
		}
		outcome.Kind = OutcomeRoundFinished
		url := roomURL(room.ID)
		if game.CurrentRound >= room.TotalRounds {
			if err := game.Finish(room.TotalRounds); err != nil {
				return nil, err
			}
			outcome.Kind = OutcomeGameFinished
			url = resultsURL(room.ID)
		}
		if err := m.entities.SaveGame(ctx, game); err != nil {
			return nil, err
		}
		m.record(ctx, room.ID, string(outcome.Kind), map[string]any{"round": game.CurrentRound, "turn": turn})
		log.Info().Str("room_id", room.ID).Int("round", game.CurrentRound).Int("turn", turn).Msg(string(outcome.Kind))
		notices.add(GameChannel(room.ID), Notice{Type: NoticeRedirect, URL: url})
		notices.add(RoomChannel(room.ID), Notice{Type: NoticeReload})
		return outcome, nil
	}

	if err := game.NextTurn(m.now()); err != nil {
		return nil, err
	}
	users, err := m.loadMembers(ctx, room)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if err := m.holdCurrentBook(ctx, game, user); err != nil {
			return nil, err
		}
	}
	if err := m.entities.SaveGame(ctx, game); err != nil {
		return nil, err
	}
	outcome.Kind = OutcomeAdvanced
	m.record(ctx, room.ID, "turn_advanced", map[string]any{"round": game.CurrentRound, "turn": game.CurrentTurn, "turn_type": string(game.TurnType)})
	log.Info().Str("room_id", room.ID).Int("turn", game.CurrentTurn).Str("turn_type", string(game.TurnType)).Msg("turn_advanced")
	notices.add(GameChannel(room.ID), Notice{Type: NoticeRedirect, URL: nextURL(room.ID)})
	return outcome, nil
}
