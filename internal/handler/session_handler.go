package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tramites-gateway/pkg/response"
)

type sessionForgetter interface {
	ForgetSession(sessionID string)
}

// SessionHandler releases per-session gateway state when the UI logs out.
type SessionHandler struct {
	forgetters []sessionForgetter
}

// NewSessionHandler builds a new handler.
func NewSessionHandler(forgetters ...sessionForgetter) *SessionHandler {
	return &SessionHandler{forgetters: forgetters}
}

// End godoc
// @Summary End the caller's gateway session
// @Description Clears the reconciliation seen-set and the remembered search filter of the session.
// @Tags Session
// @Success 204
// @Router /session [delete]
func (h *SessionHandler) End(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	sessionID := actor.SessionID
	if sessionID == "" {
		sessionID = actor.UserID
	}
	for _, f := range h.forgetters {
		f.ForgetSession(sessionID)
	}
	response.NoContent(c)
}
