package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sketchbook/internal/game"
)

func statusFor(err error) int {
	switch game.Kind(err) {
	case game.ErrNotFound:
		return http.StatusNotFound
	case game.ErrConflict:
		return http.StatusConflict
	case game.ErrInvalidPhase, game.ErrValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a manager error to its status. Server-side failures are
// logged and reported without detail.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request_failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
