package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sketchbook/internal/game"
)

// Repository is the Postgres-backed sketchbook store, prompt catalog and
// event journal.
type Repository struct {
	conn *gorm.DB
}

var (
	_ game.Books   = (*Repository)(nil)
	_ game.Catalog = (*Repository)(nil)
	_ game.Journal = (*Repository)(nil)
)

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{conn: conn}
}

func (r *Repository) WithinTx(ctx context.Context, fn func(game.Books) error) error {
	return r.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{conn: tx})
	})
}

func (r *Repository) CreateBook(ctx context.Context, book *game.SketchBook, promptPage *game.Page) error {
	if err := promptPage.Validate(); err != nil {
		return err
	}
	return r.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := SketchBook{
			RoomID:     book.RoomID,
			Round:      book.Round,
			OwnerName:  book.OwnerName,
			PromptID:   book.PromptID,
			PromptText: book.PromptText,
			Completed:  book.Completed,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		book.ID = record.ID
		book.CreatedAt = record.CreatedAt

		promptPage.SketchBookID = record.ID
		return createPage(tx, promptPage)
	})
}

func (r *Repository) AddPage(ctx context.Context, page *game.Page) error {
	if err := page.Validate(); err != nil {
		return err
	}
	return createPage(r.conn.WithContext(ctx), page)
}

func createPage(tx *gorm.DB, page *game.Page) error {
	record := Page{
		SketchBookID: page.SketchBookID,
		PageNumber:   page.PageNumber,
		PageType:     string(page.PageType),
		Content:      page.Content,
		Image:        page.Image,
		AuthorName:   page.AuthorName,
	}
	if err := tx.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return game.ErrDuplicatePage
		}
		return err
	}
	page.ID = record.ID
	page.CreatedAt = record.CreatedAt
	return nil
}

type bookRow struct {
	ID         uint
	RoomID     string
	Round      int
	OwnerName  string
	PromptID   uint
	PromptText string
	Completed  bool
	CreatedAt  time.Time
	PageCount  int
}

func (row bookRow) toGame() game.SketchBook {
	return game.SketchBook{
		ID:         row.ID,
		RoomID:     row.RoomID,
		OwnerName:  row.OwnerName,
		PromptID:   row.PromptID,
		PromptText: row.PromptText,
		Round:      row.Round,
		Completed:  row.Completed,
		PageCount:  row.PageCount,
		CreatedAt:  row.CreatedAt,
	}
}

func (r *Repository) booksQuery(ctx context.Context) *gorm.DB {
	return r.conn.WithContext(ctx).Model(&SketchBook{}).
		Select("sketch_books.id, sketch_books.room_id, sketch_books.round, sketch_books.owner_name, " +
			"sketch_books.prompt_id, sketch_books.prompt_text, sketch_books.completed, sketch_books.created_at, " +
			"(SELECT COUNT(*) FROM pages WHERE pages.sketch_book_id = sketch_books.id) AS page_count").
		Order("sketch_books.id")
}

func (r *Repository) Book(ctx context.Context, id uint) (*game.SketchBook, error) {
	var rows []bookRow
	if err := r.booksQuery(ctx).Where("sketch_books.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, game.ErrBookNotFound
	}
	book := rows[0].toGame()
	return &book, nil
}

func (r *Repository) BooksForRound(ctx context.Context, roomID string, round int) ([]game.SketchBook, error) {
	var rows []bookRow
	err := r.booksQuery(ctx).
		Where("sketch_books.room_id = ? AND sketch_books.round = ?", roomID, round).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toGameBooks(rows), nil
}

func (r *Repository) CompletedBooks(ctx context.Context, roomID string) ([]game.SketchBook, error) {
	var rows []bookRow
	err := r.booksQuery(ctx).
		Where("sketch_books.room_id = ? AND sketch_books.completed = ?", roomID, true).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toGameBooks(rows), nil
}

func toGameBooks(rows []bookRow) []game.SketchBook {
	books := make([]game.SketchBook, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toGame())
	}
	return books
}

func (r *Repository) HasPage(ctx context.Context, bookID uint, pageNumber int) (bool, error) {
	var count int64
	err := r.conn.WithContext(ctx).Model(&Page{}).
		Where("sketch_book_id = ? AND page_number = ?", bookID, pageNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) Pages(ctx context.Context, bookID uint) ([]game.Page, error) {
	if _, err := r.Book(ctx, bookID); err != nil {
		return nil, err
	}
	var records []Page
	if err := r.conn.WithContext(ctx).Where("sketch_book_id = ?", bookID).Order("page_number").Find(&records).Error; err != nil {
		return nil, err
	}
	pages := make([]game.Page, 0, len(records))
	for _, record := range records {
		pages = append(pages, game.Page{
			ID:           record.ID,
			SketchBookID: record.SketchBookID,
			PageNumber:   record.PageNumber,
			PageType:     game.PageType(record.PageType),
			Content:      record.Content,
			Image:        record.Image,
			AuthorName:   record.AuthorName,
			CreatedAt:    record.CreatedAt,
		})
	}
	return pages, nil
}

func (r *Repository) MarkCompleted(ctx context.Context, roomID string, round int) error {
	return r.conn.WithContext(ctx).Model(&SketchBook{}).
		Where("room_id = ? AND round = ?", roomID, round).
		Update("completed", true).Error
}

func (r *Repository) DeleteRound(ctx context.Context, roomID string, round int) (int, error) {
	conn := r.conn.WithContext(ctx)
	var ids []uint
	if err := conn.Model(&SketchBook{}).Where("room_id = ? AND round = ?", roomID, round).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := conn.Where("sketch_book_id IN ?", ids).Delete(&Page{}).Error; err != nil {
		return 0, err
	}
	if err := conn.Delete(&SketchBook{}, ids).Error; err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (r *Repository) CardNumbers(ctx context.Context) ([]int, error) {
	var cards []int
	err := r.conn.WithContext(ctx).Model(&Prompt{}).
		Distinct("card_num").
		Order("card_num").
		Pluck("card_num", &cards).Error
	return cards, err
}

func (r *Repository) PromptAt(ctx context.Context, cardNum, order int) (*game.Prompt, error) {
	var record Prompt
	err := r.conn.WithContext(ctx).
		Where("card_num = ? AND sort_order = ?", cardNum, order).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrPromptNotFound
	}
	if err != nil {
		return nil, err
	}
	prompt := toGamePrompt(record)
	return &prompt, nil
}

func (r *Repository) Card(ctx context.Context, cardNum int) ([]game.Prompt, error) {
	var records []Prompt
	if err := r.conn.WithContext(ctx).Where("card_num = ?", cardNum).Order("sort_order").Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, game.ErrPromptNotFound
	}
	prompts := make([]game.Prompt, 0, len(records))
	for _, record := range records {
		prompts = append(prompts, toGamePrompt(record))
	}
	return prompts, nil
}

func toGamePrompt(record Prompt) game.Prompt {
	return game.Prompt{ID: record.ID, Word: record.Word, Order: record.Order, CardNum: record.CardNum}
}

func (r *Repository) Record(ctx context.Context, roomID, eventType string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.conn.WithContext(ctx).Create(&Event{
		RoomID:  roomID,
		Type:    eventType,
		Payload: datatypes.JSON(data),
	}).Error
}

func (r *Repository) Entries(ctx context.Context, roomID string) ([]game.JournalEntry, error) {
	var records []Event
	if err := r.conn.WithContext(ctx).Where("room_id = ?", roomID).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	entries := make([]game.JournalEntry, 0, len(records))
	for _, record := range records {
		entry := game.JournalEntry{
			ID:        record.ID,
			RoomID:    record.RoomID,
			Type:      record.Type,
			CreatedAt: record.CreatedAt,
		}
		if len(record.Payload) > 0 {
			if err := json.Unmarshal(record.Payload, &entry.Payload); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
