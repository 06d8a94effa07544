package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// roomLink is the public URL players open to join a room. PUBLIC_BASE_URL
// wins; otherwise the scheme follows TLS and X-Forwarded-Proto.
func (s *Server) roomLink(c *gin.Context, roomID string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/rooms/" + roomID
}

func (s *Server) handleQR(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	if _, err := s.manager.Status(c.Request.Context(), uri.ID); err != nil {
		writeError(c, err)
		return
	}
	png, err := qrcode.Encode(s.roomLink(c, uri.ID), qrcode.Medium, qrSize)
	if err != nil {
		writeMessage(c, http.StatusInternalServerError, "qr generation failed")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
