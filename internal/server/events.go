package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sketchbook/internal/game"
)

func (s *Server) handleEvents(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	entries, err := s.manager.Events(c.Request.Context(), uri.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []game.JournalEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"room_id": uri.ID,
		"events":  entries,
	})
}
