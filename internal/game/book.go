package game

import "time"

type PageType string

const (
	PagePrompt PageType = "prompt"
	PageSketch PageType = "sketch"
	PageText   PageType = "text"
)

// SketchBook is durable. PageCount is filled by the store on reads.
type SketchBook struct {
	ID         uint
	RoomID     string
	OwnerName  string
	PromptID   uint
	PromptText string
	Round      int
	Completed  bool
	PageCount  int
	CreatedAt  time.Time
}

type Page struct {
	ID           uint
	SketchBookID uint
	PageNumber   int
	PageType     PageType
	Content      string
	Image        []byte
	AuthorName   string
	CreatedAt    time.Time
}

func (p Page) Validate() error {
	if p.PageNumber < 1 {
		return validationError("page number must be positive")
	}
	if p.AuthorName == "" {
		return validationError("page author is required")
	}
	switch p.PageType {
	case PageSketch:
		if len(p.Image) == 0 {
			return validationError("sketch pages need an image")
		}
	case PageText, PagePrompt:
		if p.Content == "" {
			return validationError("%s pages need content", p.PageType)
		}
	default:
		return validationError("unknown page type %q", p.PageType)
	}
	return nil
}

// BookWithPages is a finished book as shown on the results screen.
type BookWithPages struct {
	SketchBook
	Pages []Page
}
