package game

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryBooks is a process-local Books used when no database is configured.
type MemoryBooks struct {
	mu         sync.Mutex
	nextID     uint
	nextPageID uint
	books      map[uint]SketchBook
	pages      map[uint][]Page
	now        func() time.Time
}

func NewMemoryBooks() *MemoryBooks {
	return &MemoryBooks{
		nextID:     1,
		nextPageID: 1,
		books:      make(map[uint]SketchBook),
		pages:      make(map[uint][]Page),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryBooks) CreateBook(_ context.Context, book *SketchBook, promptPage *Page) error {
	if err := promptPage.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	book.ID = s.nextID
	s.nextID++
	book.CreatedAt = s.now()
	stored := *book
	stored.PageCount = 0
	s.books[book.ID] = stored

	promptPage.SketchBookID = book.ID
	return s.addPageLocked(promptPage)
}

func (s *MemoryBooks) Book(_ context.Context, id uint) (*SketchBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	book.PageCount = len(s.pages[id])
	return &book, nil
}

func (s *MemoryBooks) BooksForRound(_ context.Context, roomID string, round int) ([]SketchBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(b SketchBook) bool { return b.RoomID == roomID && b.Round == round }), nil
}

func (s *MemoryBooks) CompletedBooks(_ context.Context, roomID string) ([]SketchBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterLocked(func(b SketchBook) bool { return b.RoomID == roomID && b.Completed }), nil
}

func (s *MemoryBooks) filterLocked(keep func(SketchBook) bool) []SketchBook {
	var out []SketchBook
	for _, id := range slices.Sorted(maps.Keys(s.books)) {
		book := s.books[id]
		if keep(book) {
			book.PageCount = len(s.pages[id])
			out = append(out, book)
		}
	}
	return out
}

func (s *MemoryBooks) AddPage(_ context.Context, page *Page) error {
	if err := page.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[page.SketchBookID]; !ok {
		return ErrBookNotFound
	}
	return s.addPageLocked(page)
}

func (s *MemoryBooks) addPageLocked(page *Page) error {
	for _, existing := range s.pages[page.SketchBookID] {
		if existing.PageNumber == page.PageNumber {
			return ErrDuplicatePage
		}
	}
	page.ID = s.nextPageID
	s.nextPageID++
	page.CreatedAt = s.now()
	s.pages[page.SketchBookID] = append(s.pages[page.SketchBookID], *page)
	slices.SortFunc(s.pages[page.SketchBookID], func(a, b Page) int { return a.PageNumber - b.PageNumber })
	return nil
}

func (s *MemoryBooks) HasPage(_ context.Context, bookID uint, pageNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.pages[bookID], func(p Page) bool { return p.PageNumber == pageNumber }), nil
}

func (s *MemoryBooks) Pages(_ context.Context, bookID uint) ([]Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[bookID]; !ok {
		return nil, ErrBookNotFound
	}
	return slices.Clone(s.pages[bookID]), nil
}

func (s *MemoryBooks) MarkCompleted(_ context.Context, roomID string, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, book := range s.books {
		if book.RoomID == roomID && book.Round == round {
			book.Completed = true
			s.books[id] = book
		}
	}
	return nil
}

func (s *MemoryBooks) DeleteRound(_ context.Context, roomID string, round int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, book := range s.books {
		if book.RoomID == roomID && book.Round == round {
			delete(s.books, id)
			delete(s.pages, id)
			removed++
		}
	}
	return removed, nil
}

// WithinTx restores the previous contents when fn fails. It does not isolate
// fn from concurrent writers.
func (s *MemoryBooks) WithinTx(_ context.Context, fn func(Books) error) error {
	s.mu.Lock()
	nextID := s.nextID
	books := maps.Clone(s.books)
	pages := make(map[uint][]Page, len(s.pages))
	for id, list := range s.pages {
		pages[id] = slices.Clone(list)
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.nextID, s.books, s.pages = nextID, books, pages
		s.mu.Unlock()
		return err
	}
	return nil
}

// MemoryCatalog serves prompt cards from a fixed list.
type MemoryCatalog struct {
	prompts []Prompt
}

func NewMemoryCatalog(prompts []Prompt) *MemoryCatalog {
	return &MemoryCatalog{prompts: slices.Clone(prompts)}
}

func (c *MemoryCatalog) CardNumbers(context.Context) ([]int, error) {
	var cards []int
	for _, p := range c.prompts {
		if !slices.Contains(cards, p.CardNum) {
			cards = append(cards, p.CardNum)
		}
	}
	slices.Sort(cards)
	return cards, nil
}

func (c *MemoryCatalog) PromptAt(_ context.Context, cardNum, order int) (*Prompt, error) {
	for _, p := range c.prompts {
		if p.CardNum == cardNum && p.Order == order {
			prompt := p
			return &prompt, nil
		}
	}
	return nil, ErrPromptNotFound
}

func (c *MemoryCatalog) Card(_ context.Context, cardNum int) ([]Prompt, error) {
	var card []Prompt
	for _, p := range c.prompts {
		if p.CardNum == cardNum {
			card = append(card, p)
		}
	}
	if len(card) == 0 {
		return nil, ErrPromptNotFound
	}
	slices.SortFunc(card, func(a, b Prompt) int { return a.Order - b.Order })
	return card, nil
}

type MemoryJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(_ context.Context, roomID, eventType string, payload map[string]any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, JournalEntry{
		ID:        uint(len(j.entries) + 1),
		RoomID:    roomID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (j *MemoryJournal) Entries(_ context.Context, roomID string) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []JournalEntry
	for _, entry := range j.entries {
		if entry.RoomID == roomID {
			out = append(out, entry)
		}
	}
	return out, nil
}
