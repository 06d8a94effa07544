package server

import (
	"time"

	"sketchbook/internal/game"
)

type statusResponse struct {
	RoomID            string   `json:"room_id"`
	MemberLimit       int      `json:"member_limit"`
	TotalRounds       int      `json:"total_rounds"`
	EnteringCount     int      `json:"entering_count"`
	Members           []string `json:"members"`
	Full              bool     `json:"full"`
	Status            string   `json:"status"`
	CurrentRound      int      `json:"current_round"`
	CurrentTurn       int      `json:"current_turn"`
	TurnType          string   `json:"turn_type"`
	TurnStartedAt     string   `json:"turn_started_at,omitempty"`
	DiceResult        int      `json:"dice_result,omitempty"`
	AwaitingFreeInput bool     `json:"awaiting_free_input"`
	FreeInputGenre    string   `json:"free_input_genre,omitempty"`
	FreeInputPending  []string `json:"free_input_pending,omitempty"`
	Completed         int      `json:"completed"`
	Total             int      `json:"total"`
}

func statusPayload(snap *game.Snapshot) statusResponse {
	room, g := snap.Room, snap.Game
	resp := statusResponse{
		RoomID:            room.ID,
		MemberLimit:       room.MemberLimit,
		TotalRounds:       room.TotalRounds,
		EnteringCount:     room.EnteringCount(),
		Members:           room.MemberNames(),
		Full:              room.Full(),
		Status:            string(g.Status),
		CurrentRound:      g.CurrentRound,
		CurrentTurn:       g.CurrentTurn,
		TurnType:          string(g.TurnType),
		DiceResult:        g.DiceResult,
		AwaitingFreeInput: g.AwaitingFreeInput,
		FreeInputGenre:    g.FreeInputGenre,
		Completed:         snap.Completed,
		Total:             snap.Total,
	}
	for _, userID := range g.FreeInputPending {
		if member, ok := room.Member(userID); ok {
			resp.FreeInputPending = append(resp.FreeInputPending, member.UserName)
		}
	}
	if !g.TurnStartedAt.IsZero() {
		resp.TurnStartedAt = g.TurnStartedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type pageResponse struct {
	PageNumber int    `json:"page_number"`
	PageType   string `json:"page_type"`
	Content    string `json:"content,omitempty"`
	ImageData  string `json:"image_data,omitempty"`
	AuthorName string `json:"author_name"`
}

func pagePayload(page game.Page) pageResponse {
	return pageResponse{
		PageNumber: page.PageNumber,
		PageType:   string(page.PageType),
		Content:    page.Content,
		ImageData:  encodeImageData(page.Image),
		AuthorName: page.AuthorName,
	}
}

type bookResponse struct {
	ID         uint           `json:"id"`
	OwnerName  string         `json:"owner_name"`
	PromptText string         `json:"prompt_text"`
	Round      int            `json:"round"`
	Completed  bool           `json:"completed"`
	PageCount  int            `json:"page_count"`
	Pages      []pageResponse `json:"pages,omitempty"`
}

func bookPayload(book game.SketchBook, pages []game.Page) bookResponse {
	resp := bookResponse{
		ID:         book.ID,
		OwnerName:  book.OwnerName,
		PromptText: book.PromptText,
		Round:      book.Round,
		Completed:  book.Completed,
		PageCount:  book.PageCount,
	}
	for _, page := range pages {
		resp.Pages = append(resp.Pages, pagePayload(page))
	}
	return resp
}

type bookViewResponse struct {
	Book           bookResponse  `json:"sketch_book"`
	LatestPage     *pageResponse `json:"latest_page,omitempty"`
	NextPageNumber int           `json:"next_page_number"`
	TurnType       string        `json:"turn_type"`
	Holding        bool          `json:"holding"`
	Submitted      bool          `json:"submitted"`
}

// bookViewPayload hides the prompt of a book from everyone but its holder
// during play; they only see the latest page.
func bookViewPayload(view *game.BookView) bookViewResponse {
	resp := bookViewResponse{
		Book:           bookPayload(*view.Book, nil),
		NextPageNumber: view.NextPageNumber,
		TurnType:       string(view.TurnType),
		Holding:        view.Holding,
		Submitted:      view.Submitted,
	}
	if !view.Book.Completed {
		resp.Book.PromptText = ""
	}
	if view.LatestPage != nil && view.Holding {
		page := pagePayload(*view.LatestPage)
		resp.LatestPage = &page
	}
	return resp
}

type outcomeResponse struct {
	Kind       string `json:"kind"`
	Turn       int    `json:"turn"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	NextBookID uint   `json:"next_sketch_book_id,omitempty"`
}

func outcomePayload(outcome *game.Outcome) outcomeResponse {
	return outcomeResponse{
		Kind:       string(outcome.Kind),
		Turn:       outcome.Turn,
		Completed:  outcome.Completed,
		Total:      outcome.Total,
		NextBookID: outcome.NextBookID,
	}
}
