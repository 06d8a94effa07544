package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sketchbook/internal/game"
)

type roomURI struct {
	ID string `uri:"id" binding:"required"`
}

type bookURI struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

type userQuery struct {
	UserID string `form:"user_id"`
}

type createRoomRequest struct {
	MemberLimit int `json:"member_limit" binding:"required,min=1,max=20"`
	TotalRounds int `json:"total_rounds" binding:"required,min=1,max=10"`
}

type joinRequest struct {
	Name string `json:"name" binding:"required,name"`
}

type userRequest struct {
	UserID string `json:"user_id"`
}

type freePromptRequest struct {
	UserID     string `json:"user_id"`
	PromptText string `json:"prompt_text" binding:"required,prompt"`
}

type pageRequest struct {
	UserID    string `json:"user_id"`
	Content   string `json:"content"`
	ImageData string `json:"image_data"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	if !s.enforceRateLimit(c, "create") {
		return
	}
	var req createRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := s.manager.CreateRoom(c.Request.Context(), req.MemberLimit, req.TotalRounds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"room_id":  room.ID,
		"join_url": s.roomLink(c, room.ID),
		"qr_url":   "/api/rooms/" + room.ID + "/qr",
	})
}

func (s *Server) handleRoomStatus(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	snap, err := s.manager.Status(c.Request.Context(), uri.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusPayload(snap))
}

func (s *Server) handleJoin(c *gin.Context) {
	if !s.enforceRateLimit(c, "join") {
		return
	}
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req joinRequest
	if !bindJSON(c, &req) {
		return
	}
	name, _ := validateName(req.Name)
	user, err := s.manager.Join(c.Request.Context(), uri.ID, name)
	if err != nil {
		writeError(c, err)
		return
	}
	setUserCookie(c, user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"user_id": user.ID,
		"room_id": user.RoomID,
		"name":    user.Name,
	})
}

func (s *Server) handleStartPromptSelection(c *gin.Context) {
	s.roomAction(c, "prompt_selection", func(c *gin.Context, roomID string) error {
		return s.manager.StartPromptSelection(c.Request.Context(), roomID)
	})
}

func (s *Server) handleStartGame(c *gin.Context) {
	s.roomAction(c, "start", func(c *gin.Context, roomID string) error {
		return s.manager.StartGame(c.Request.Context(), roomID)
	})
}

func (s *Server) handleNextRound(c *gin.Context) {
	s.roomAction(c, "next_round", func(c *gin.Context, roomID string) error {
		return s.manager.StartNextRound(c.Request.Context(), roomID)
	})
}

// roomAction runs a member-only action that takes no input besides the
// user id and answers with the fresh room status.
func (s *Server) roomAction(c *gin.Context, action string, run func(*gin.Context, string) error) {
	if !s.enforceRateLimit(c, action) {
		return
	}
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req userRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	if _, ok := s.requireMember(c, uri.ID, requestUserID(c, req.UserID)); !ok {
		return
	}
	if err := run(c, uri.ID); err != nil {
		writeError(c, err)
		return
	}
	snap, err := s.manager.Status(c.Request.Context(), uri.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusPayload(snap))
}

func (s *Server) handleCardPrompts(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var query userQuery
	if !bindQuery(c, &query) {
		return
	}
	userID := requestUserID(c, query.UserID)
	if _, ok := s.requireMember(c, uri.ID, userID); !ok {
		return
	}
	prompts, err := s.manager.CardPrompts(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	type promptResponse struct {
		Order int    `json:"order"`
		Word  string `json:"word"`
	}
	resp := make([]promptResponse, 0, len(prompts))
	for _, prompt := range prompts {
		resp = append(resp, promptResponse{Order: prompt.Order, Word: prompt.Word})
	}
	c.JSON(http.StatusOK, gin.H{"card_num": prompts[0].CardNum, "prompts": resp})
}

func (s *Server) handleRollDice(c *gin.Context) {
	if !s.enforceRateLimit(c, "dice") {
		return
	}
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req userRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	outcome, err := s.manager.RollDice(c.Request.Context(), uri.ID, requestUserID(c, req.UserID))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dice_result":         outcome.Face,
		"needs_free_input":    outcome.NeedsFreeInput,
		"genre":               outcome.Genre,
		"pending_free_inputs": outcome.Pending,
	})
}

func (s *Server) handleFreePrompt(c *gin.Context) {
	if !s.enforceRateLimit(c, "free_prompt") {
		return
	}
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var req freePromptRequest
	if !bindJSON(c, &req) {
		return
	}
	text, _ := validatePrompt(req.PromptText)
	if err := s.manager.SubmitFreePrompt(c.Request.Context(), uri.ID, requestUserID(c, req.UserID), text); err != nil {
		writeError(c, err)
		return
	}
	snap, err := s.manager.Status(c.Request.Context(), uri.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"status": string(snap.Game.Status), "pending_free_inputs": len(snap.Game.FreeInputPending)}
	if snap.Game.Status == game.StatusInProgress {
		resp["next_url"] = "/api/rooms/" + uri.ID + "/next"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNext(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var query userQuery
	if !bindQuery(c, &query) {
		return
	}
	step, err := s.manager.NextBook(c.Request.Context(), uri.ID, requestUserID(c, query.UserID))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"destination": string(step.Destination)}
	switch step.Destination {
	case game.DestinationBook:
		resp["sketch_book_id"] = step.BookID
		resp["url"] = "/api/sketchbooks/" + uintString(step.BookID)
	case game.DestinationResults:
		resp["url"] = "/api/rooms/" + uri.ID + "/results"
	default:
		resp["url"] = "/api/rooms/" + uri.ID
	}
	c.JSON(http.StatusOK, resp)
}

// handleResults lists the finished books. Passing the user_id of a room
// member also clears that user's game pointers, as leaving the results
// screen does. Other ids are ignored.
func (s *Server) handleResults(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	var query userQuery
	if !bindQuery(c, &query) {
		return
	}
	results, err := s.manager.Results(c.Request.Context(), uri.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	books := make([]bookResponse, 0, len(results))
	for _, book := range results {
		books = append(books, bookPayload(book.SketchBook, book.Pages))
	}
	if query.UserID != "" {
		s.clearMemberGame(c, uri.ID, query.UserID)
	}
	c.JSON(http.StatusOK, gin.H{"room_id": uri.ID, "sketch_books": books})
}

func (s *Server) clearMemberGame(c *gin.Context, roomID, userID string) {
	snap, err := s.manager.Status(c.Request.Context(), roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("clear_user_game_failed")
		return
	}
	if !snap.Room.HasMember(userID) {
		log.Warn().Str("room_id", roomID).Str("user_id", userID).Msg("clear_user_game_not_member")
		return
	}
	if err := s.manager.ClearUserGame(c.Request.Context(), userID); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("clear_user_game_failed")
	}
}

func (s *Server) handleViewBook(c *gin.Context) {
	var uri bookURI
	if !bindURI(c, &uri) {
		return
	}
	var query userQuery
	if !bindQuery(c, &query) {
		return
	}
	userID := requestUserID(c, query.UserID)
	if userID == "" {
		writeMessage(c, http.StatusUnauthorized, "user_id is required")
		return
	}
	view, err := s.manager.ViewBook(c.Request.Context(), uri.ID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookViewPayload(view))
}

func (s *Server) handleSubmitPage(c *gin.Context) {
	if !s.enforceRateLimit(c, "pages") {
		return
	}
	var uri bookURI
	if !bindURI(c, &uri) {
		return
	}
	var req pageRequest
	if !bindJSON(c, &req) {
		return
	}
	userID := requestUserID(c, req.UserID)
	if userID == "" {
		writeMessage(c, http.StatusUnauthorized, "user_id is required")
		return
	}
	sub := game.PageSubmission{BookID: uri.ID, UserID: userID}
	if req.ImageData != "" {
		image, err := decodeImageData(req.ImageData)
		if err != nil {
			writeMessage(c, http.StatusBadRequest, "invalid image data: "+err.Error())
			return
		}
		sub.Image = image
	}
	content, err := validateContent(req.Content)
	if err != nil {
		writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}
	sub.Content = content

	outcome, err := s.manager.SubmitPage(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcomePayload(outcome))
}
