package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/requestdata"
	"github.com/agritrace/agritrace-backend/internal/services"
)

type ClientHandler struct {
	log           *logger.Logger
	clientService services.ClientService
}

func NewClientHandler(log *logger.Logger, clientService services.ClientService) *ClientHandler {
	return &ClientHandler{
		log:           log.With("handler", "ClientHandler"),
		clientService: clientService,
	}
}

func clientFromContext(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.ActorID == uuid.Nil || rd.Role != requestdata.RoleClient {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.ActorID, true
}

func (h *ClientHandler) GetHistory(c *gin.Context) {
	clientID, ok := clientFromContext(c)
	if !ok {
		return
	}
	history, err := h.clientService.GetHistory(c.Request.Context(), clientID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"history": history})
}

func (h *ClientHandler) RetryPurchaseAppend(c *gin.Context) {
	clientID, ok := clientFromContext(c)
	if !ok {
		return
	}
	unitID, ok := pathUUID(c, "unitId")
	if !ok {
		return
	}
	purchase, err := h.clientService.RetryPurchaseAppend(c.Request.Context(), clientID, unitID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"purchase": purchase})
}
