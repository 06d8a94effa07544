package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	MaxMemberLimit  = 20
	MaxTotalRounds  = 10
	MaxNameLength   = 20
	MaxPromptLength = 100
)

// Manager orchestrates rooms and games. It holds no game state itself; every
// operation loads what it needs from the stores and writes it back while
// holding the room's lock.
type Manager struct {
	entities    Entities
	books       Books
	catalog     Catalog
	broadcaster Broadcaster
	journal     Journal
	dice        Dice
	rngMu       sync.Mutex
	rng         *rand.Rand
	now         func() time.Time
	newID       func() string
	selection   bool
	locks       *roomLocks
}

type Option func(*Manager)

func WithBroadcaster(b Broadcaster) Option {
	return func(m *Manager) { m.broadcaster = b }
}

func WithJournal(j Journal) Option {
	return func(m *Manager) { m.journal = j }
}

func WithDice(d Dice) Option {
	return func(m *Manager) { m.dice = d }
}

// WithRand seeds card distribution.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// WithPromptSelection controls what happens when a room fills: a dice-roll
// prompt selection phase when enabled, an immediate start otherwise.
func WithPromptSelection(enabled bool) Option {
	return func(m *Manager) { m.selection = enabled }
}

func NewManager(entities Entities, books Books, catalog Catalog, opts ...Option) *Manager {
	m := &Manager{
		entities:    entities,
		books:       books,
		catalog:     catalog,
		broadcaster: nopBroadcaster{},
		journal:     nopJournal{},
		dice:        randomDice{},
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		selection:   true,
		locks:       newRoomLocks(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type outbox []outgoing

type outgoing struct {
	channel string
	notice  Notice
}

func (o *outbox) add(channel string, notice Notice) {
	*o = append(*o, outgoing{channel: channel, notice: notice})
}

// flush delivers notices off the request path.
func (m *Manager) flush(o outbox) {
	if len(o) == 0 {
		return
	}
	go func() {
		for _, msg := range o {
			m.broadcaster.Publish(msg.channel, msg.notice)
		}
	}()
}

func (m *Manager) record(ctx context.Context, roomID, eventType string, payload map[string]any) {
	if err := m.journal.Record(ctx, roomID, eventType, payload); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("event", eventType).Msg("journal_record_failed")
	}
}

func (m *Manager) CreateRoom(ctx context.Context, memberLimit, totalRounds int) (*Room, error) {
	if memberLimit < 1 || memberLimit > MaxMemberLimit {
		return nil, validationError("member limit must be between 1 and %d", MaxMemberLimit)
	}
	if totalRounds < 1 || totalRounds > MaxTotalRounds {
		return nil, validationError("total rounds must be between 1 and %d", MaxTotalRounds)
	}
	room := NewRoom(m.newID(), memberLimit, totalRounds)
	if err := m.entities.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	m.record(ctx, room.ID, "room_created", map[string]any{"member_limit": memberLimit, "total_rounds": totalRounds})
	log.Info().Str("room_id", room.ID).Int("member_limit", memberLimit).Int("total_rounds", totalRounds).Msg("room_created")
	return room, nil
}

// Join adds a named player. The join that fills the room starts prompt
// selection, or the game itself when selection is disabled. A failed
// automatic start is logged and left for an explicit start request.
func (m *Manager) Join(ctx context.Context, roomID, name string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, validationError("name must be %d characters or fewer", MaxNameLength)
	}

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
	if game, err := m.loadGame(ctx, roomID); err != nil {
		return nil, err
	} else if game.Status != StatusWaiting {
		return nil, ErrGameStarted
	}
	if room.Full() {
		return nil, ErrRoomFull
	}
	if room.NameTaken(name) {
		return nil, ErrNameTaken
	}

	user := &User{ID: m.newID(), RoomID: roomID, Name: name}
	room.AddMember(user.ID, user.Name)
	if err := m.entities.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := m.entities.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	m.record(ctx, roomID, "player_joined", map[string]any{"user_id": user.ID, "name": name})
	log.Info().Str("room_id", roomID).Str("user_id", user.ID).Int("members", room.EnteringCount()).Msg("player_joined")
	notices.add(RoomChannel(roomID), Notice{Type: NoticeReload})

	if room.Full() {
		var startErr error
		if m.selection {
			startErr = m.startPromptSelectionLocked(ctx, room, &notices)
		} else {
			startErr = m.startGameLocked(ctx, room, &notices)
		}
		if startErr != nil {
			log.Error().Err(startErr).Str("room_id", roomID).Msg("auto_start_failed")
		}
	}
	return user, nil
}

// loadGame returns the room's game, or a fresh waiting game when none was
// created yet.
func (m *Manager) loadGame(ctx context.Context, roomID string) (*Game, error) {
	game, err := m.entities.Game(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return NewGame(roomID), nil
	}
	return game, err
}

// loadMembers fetches the user record of every member in join order.
func (m *Manager) loadMembers(ctx context.Context, room *Room) ([]*User, error) {
	users := make([]*User, 0, len(room.JoinOrder))
	for _, member := range room.JoinOrder {
		user, err := m.entities.User(ctx, member.UserID)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (m *Manager) memberUser(ctx context.Context, room *Room, userID string) (*User, error) {
	if !room.HasMember(userID) {
		return nil, ErrUserNotFound
	}
	return m.entities.User(ctx, userID)
}

// Snapshot is a polling view of a room.
type Snapshot struct {
	Room      *Room
	Game      *Game
	Completed int
	Total     int
}

func (m *Manager) Status(ctx context.Context, roomID string) (*Snapshot, error) {
	room, err := m.entities.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	game, err := m.loadGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Room: room, Game: game}
	if game.Status == StatusInProgress {
		books, err := m.books.BooksForRound(ctx, roomID, game.CurrentRound)
		if err != nil {
			return nil, err
		}
		snap.Completed, snap.Total = turnProgress(books, game.CurrentTurn)
	}
	return snap, nil
}

type Destination string

const (
	DestinationRoom    Destination = "room"
	DestinationBook    Destination = "sketchbook"
	DestinationResults Destination = "results"
)

type NextStep struct {
	Destination Destination
	BookID      uint
}

// NextBook tells a player where to go after a notice: their current book
// while a round is live, the results once the game is over, the room
// otherwise.
func (m *Manager) NextBook(ctx context.Context, roomID, userID string) (*NextStep, error) {
	room, err := m.entities.Room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	user, err := m.memberUser(ctx, room, userID)
	if err != nil {
		return nil, err
	}
	game, err := m.loadGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	switch game.Status {
	case StatusFinished:
		return &NextStep{Destination: DestinationResults}, nil
	case StatusInProgress:
		if user.CurrentSketchBookID != nil {
			return &NextStep{Destination: DestinationBook, BookID: *user.CurrentSketchBookID}, nil
		}
		if bookID, ok := game.BookHeldBy(user.Name); ok {
			return &NextStep{Destination: DestinationBook, BookID: bookID}, nil
		}
	}
	return &NextStep{Destination: DestinationRoom}, nil
}

// BookView is what the current holder sees: only the latest page.
type BookView struct {
	Book           *SketchBook
	LatestPage     *Page
	NextPageNumber int
	TurnType       TurnType
	Holding        bool
	Submitted      bool
}

func (m *Manager) ViewBook(ctx context.Context, bookID uint, userID string) (*BookView, error) {
	book, err := m.books.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	user, err := m.entities.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.RoomID != book.RoomID {
		return nil, ErrBookNotFound
	}
	game, err := m.loadGame(ctx, book.RoomID)
	if err != nil {
		return nil, err
	}
	pages, err := m.books.Pages(ctx, bookID)
	if err != nil {
		return nil, err
	}
	view := &BookView{
		Book:           book,
		NextPageNumber: game.CurrentTurn,
		TurnType:       game.TurnType,
	}
	if len(pages) > 0 {
		view.LatestPage = &pages[len(pages)-1]
	}
	if holder, ok := game.Holder(bookID); ok && book.Round == game.CurrentRound {
		view.Holding = holder == user.Name
	}
	for _, page := range pages {
		if page.PageNumber == game.CurrentTurn && book.Round == game.CurrentRound {
			view.Submitted = true
		}
	}
	return view, nil
}

// Results lists every completed book of the room with all of its pages.
func (m *Manager) Results(ctx context.Context, roomID string) ([]BookWithPages, error) {
	game, err := m.entities.Game(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if game.Status != StatusFinished {
		return nil, ErrGameNotFinished
	}
	books, err := m.books.CompletedBooks(ctx, roomID)
	if err != nil {
		return nil, err
	}
	results := make([]BookWithPages, 0, len(books))
	for _, book := range books {
		pages, err := m.books.Pages(ctx, book.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, BookWithPages{SketchBook: book, Pages: pages})
	}
	return results, nil
}

// ClearUserGame forgets a user's books and card once they have seen the
// results.
func (m *Manager) ClearUserGame(ctx context.Context, userID string) error {
	user, err := m.entities.User(ctx, userID)
	if err != nil {
		return err
	}
	user.ClearGame()
	return m.entities.SaveUser(ctx, user)
}

func (m *Manager) Events(ctx context.Context, roomID string) ([]JournalEntry, error) {
	if _, err := m.entities.Room(ctx, roomID); err != nil {
		return nil, err
	}
	return m.journal.Entries(ctx, roomID)
}

// CardPrompts returns the six prompts of the card assigned to the user.
func (m *Manager) CardPrompts(ctx context.Context, userID string) ([]Prompt, error) {
	user, err := m.entities.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.AssignedCardNum == nil {
		return nil, ErrNotInSelectionPhase
	}
	return m.catalog.Card(ctx, *user.AssignedCardNum)
}

func turnProgress(books []SketchBook, turn int) (completed, total int) {
	for _, book := range books {
		if book.PageCount >= turn {
			completed++
		}
	}
	return completed, len(books)
}
