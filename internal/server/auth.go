package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sketchbook/internal/game"
)

const userCookie = "sketchbook_user"

// requestUserID resolves the opaque user id from the body, the query, the
// X-User-ID header or the session cookie, in that order.
func requestUserID(c *gin.Context, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.Query("user_id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-User-ID")); id != "" {
		return id
	}
	if id, err := c.Cookie(userCookie); err == nil {
		return strings.TrimSpace(id)
	}
	return ""
}

func setUserCookie(c *gin.Context, userID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(userCookie, userID, 24*60*60, "/", "", false, true)
}

// requireMember writes 401 or 403 and returns false unless userID belongs to
// the room.
func (s *Server) requireMember(c *gin.Context, roomID, userID string) (*game.Snapshot, bool) {
	if userID == "" {
		writeMessage(c, http.StatusUnauthorized, "user_id is required")
		return nil, false
	}
	snap, err := s.manager.Status(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if !snap.Room.HasMember(userID) {
		writeMessage(c, http.StatusForbidden, "not a member of this room")
		return nil, false
	}
	return snap, true
}
