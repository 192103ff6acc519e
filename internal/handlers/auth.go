package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/requestdata"
	"github.com/agritrace/agritrace-backend/internal/services"
)

type AuthHandler struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		log:         log.With("handler", "AuthHandler"),
		authService: authService,
	}
}

type tokenRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	actorID, err := uuid.Parse(req.ActorID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	token, err := h.authService.IssueToken(c.Request.Context(), actorID, requestdata.Role(req.Role))
	if err != nil {
		h.log.Warn("IssueToken failed", "actor_id", actorID, "error", err)
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"token":      token,
		"expires_in": int(h.authService.GetAccessTTL().Seconds()),
	})
}
