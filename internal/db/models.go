package db

import (
	"time"

	"gorm.io/datatypes"
)

// Prompt is one entry of a prompt card. "order" is reserved in SQL, so the
// dice face lives in sort_order.
type Prompt struct {
	ID        uint      `gorm:"primaryKey"`
	CardNum   int       `gorm:"not null;uniqueIndex:idx_prompts_card_order"`
	Order     int       `gorm:"column:sort_order;not null;uniqueIndex:idx_prompts_card_order"`
	Word      string    `gorm:"size:100;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type SketchBook struct {
	ID         uint      `gorm:"primaryKey"`
	RoomID     string    `gorm:"size:64;not null;index:idx_sketch_books_room_round"`
	Round      int       `gorm:"not null;index:idx_sketch_books_room_round"`
	OwnerName  string    `gorm:"size:64;not null"`
	PromptID   uint      `gorm:"index"`
	PromptText string    `gorm:"size:280;not null"`
	Completed  bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	Pages      []Page
}

type Page struct {
	ID           uint      `gorm:"primaryKey"`
	SketchBookID uint      `gorm:"not null;uniqueIndex:idx_pages_book_number"`
	PageNumber   int       `gorm:"not null;uniqueIndex:idx_pages_book_number"`
	PageType     string    `gorm:"size:16;not null"`
	Content      string    `gorm:"type:text"`
	Image        []byte    `gorm:"type:bytea"`
	AuthorName   string    `gorm:"size:64;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    string         `gorm:"size:64;index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
