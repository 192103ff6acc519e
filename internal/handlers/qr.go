package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/requestdata"
	"github.com/agritrace/agritrace-backend/internal/services"
)

type QRHandler struct {
	log               *logger.Logger
	qrService         services.QRService
	incognitoClientID uuid.UUID
}

// incognitoClientID is the fallback identity for anonymous scans from the
// public provenance page.
func NewQRHandler(log *logger.Logger, qrService services.QRService, incognitoClientID uuid.UUID) *QRHandler {
	return &QRHandler{
		log:               log.With("handler", "QRHandler"),
		qrService:         qrService,
		incognitoClientID: incognitoClientID,
	}
}

type exportRequest struct {
	ExportTxRef string             `json:"export_tx_ref"`
	Allocations []exportAllocation `json:"allocations"`
}

type exportAllocation struct {
	DistributorID string   `json:"distributor_id"`
	Quantity      int      `json:"quantity"`
	PrivateIDs    []string `json:"private_ids"`
}

func (h *QRHandler) Export(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	outputID, ok := pathUUID(c, "outputId")
	if !ok {
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	allocations := make([]services.ExportAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		distributorID, err := uuid.Parse(a.DistributorID)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
		allocations = append(allocations, services.ExportAllocation{
			DistributorID: distributorID,
			Quantity:      a.Quantity,
			PrivateIDs:    a.PrivateIDs,
		})
	}
	result, err := h.qrService.ExportBatch(c.Request.Context(), farmID, projectID, outputID, req.ExportTxRef, allocations)
	if err != nil {
		h.log.Error("Export failed", "project_id", projectID, "output_id", outputID, "error", err)
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"export": result})
}

type scanRequest struct {
	ProjectID string `json:"project_id"`
	PrivateID string `json:"private_id"`
}

// Scan is public: an authenticated client redeems under their own
// identity, everyone else under the shared incognito client.
func (h *QRHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	if req.PrivateID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_input", nil)
		return
	}

	clientID := h.incognitoClientID
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil && rd.Role == requestdata.RoleClient && rd.ActorID != uuid.Nil {
		clientID = rd.ActorID
	}

	result, err := h.qrService.Redeem(c.Request.Context(), projectID, clientID, req.PrivateID)
	if err != nil {
		h.log.Warn("Scan failed", "project_id", projectID, "error", err)
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

func (h *QRHandler) ListByProject(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	units, err := h.qrService.ListByProject(c.Request.Context(), farmID, projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"units": units})
}

func (h *QRHandler) Stats(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	stats, err := h.qrService.StatsByFarm(c.Request.Context(), farmID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"stats": stats})
}
