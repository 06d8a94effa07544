package game

import (
	"context"
	"math/rand/v2"
	"time"
)

// Entities is the ephemeral store of rooms, users and games. Lookups of
// absent or expired entries return an error wrapping ErrNotFound.
type Entities interface {
	SaveRoom(ctx context.Context, room *Room) error
	Room(ctx context.Context, id string) (*Room, error)
	DeleteRoom(ctx context.Context, id string) error

	SaveUser(ctx context.Context, user *User) error
	User(ctx context.Context, id string) (*User, error)
	DeleteUser(ctx context.Context, id string) error

	SaveGame(ctx context.Context, game *Game) error
	Game(ctx context.Context, roomID string) (*Game, error)
	DeleteGame(ctx context.Context, roomID string) error
}

// Books is the durable sketchbook store. AddPage must reject a second page
// with the same book and page number with ErrDuplicatePage.
type Books interface {
	CreateBook(ctx context.Context, book *SketchBook, promptPage *Page) error
	Book(ctx context.Context, id uint) (*SketchBook, error)
	BooksForRound(ctx context.Context, roomID string, round int) ([]SketchBook, error)
	AddPage(ctx context.Context, page *Page) error
	HasPage(ctx context.Context, bookID uint, pageNumber int) (bool, error)
	Pages(ctx context.Context, bookID uint) ([]Page, error)
	MarkCompleted(ctx context.Context, roomID string, round int) error
	CompletedBooks(ctx context.Context, roomID string) ([]SketchBook, error)
	// DeleteRound removes the books of a round with their pages and reports
	// how many books went.
	DeleteRound(ctx context.Context, roomID string, round int) (int, error)
	WithinTx(ctx context.Context, fn func(Books) error) error
}

type Catalog interface {
	CardNumbers(ctx context.Context) ([]int, error)
	PromptAt(ctx context.Context, cardNum, order int) (*Prompt, error)
	Card(ctx context.Context, cardNum int) ([]Prompt, error)
}

// Notice is pushed to subscribers of a room or game channel.
type Notice struct {
	Type      string `json:"type"`
	URL       string `json:"url,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Total     int    `json:"total,omitempty"`
	Result    int    `json:"result,omitempty"`
}

const (
	NoticeReload   = "reload"
	NoticeRedirect = "redirect"
	NoticeWaiting  = "waiting"
	NoticeDice     = "dice"
)

func RoomChannel(roomID string) string { return "room_" + roomID }
func GameChannel(roomID string) string { return "game_" + roomID }

// Broadcaster delivers notices best effort. Publish must not block on slow
// subscribers.
type Broadcaster interface {
	Publish(channel string, notice Notice)
}

type JournalEntry struct {
	ID        uint           `json:"id"`
	RoomID    string         `json:"room_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Journal interface {
	Record(ctx context.Context, roomID, eventType string, payload map[string]any) error
	Entries(ctx context.Context, roomID string) ([]JournalEntry, error)
}

type Dice interface {
	Roll() int
}

// DiceFunc adapts a plain function to Dice.
type DiceFunc func() int

func (f DiceFunc) Roll() int { return f() }

type randomDice struct{}

func (randomDice) Roll() int { return rand.IntN(6) + 1 }

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(string, Notice) {}

type nopJournal struct{}

func (nopJournal) Record(context.Context, string, string, map[string]any) error { return nil }

func (nopJournal) Entries(context.Context, string) ([]JournalEntry, error) { return nil, nil }
