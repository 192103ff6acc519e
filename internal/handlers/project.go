package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/requestdata"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/types"
)

type ProjectHandler struct {
	log            *logger.Logger
	projectService services.ProjectService
}

func NewProjectHandler(log *logger.Logger, projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		log:            log.With("handler", "ProjectHandler"),
		projectService: projectService,
	}
}

func farmFromContext(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.ActorID == uuid.Nil || rd.Role != requestdata.RoleFarm {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return uuid.Nil, false
	}
	return rd.ActorID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return uuid.Nil, false
	}
	return id, true
}

type projectRequest struct {
	PlantID           string     `json:"plant_id"`
	SeedID            string     `json:"seed_id"`
	StartDate         time.Time  `json:"start_date"`
	ExpectedEndDate   *time.Time `json:"expected_end_date"`
	Square            float64    `json:"square"`
	ExpectedOutput    float64    `json:"expected_output"`
	TxHash            string     `json:"tx_hash"`
	Description       string     `json:"description"`
	CultivationPlanID *string    `json:"cultivation_plan_id"`
	Images            []string   `json:"images"`
	VideoURLs         []string   `json:"video_urls"`
}

func (h *ProjectHandler) Initiate(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	plantID, err := uuid.Parse(req.PlantID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	seedID, err := uuid.Parse(req.SeedID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	input := services.ProjectInput{
		PlantID:         plantID,
		SeedID:          seedID,
		StartDate:       req.StartDate,
		ExpectedEndDate: req.ExpectedEndDate,
		Square:          req.Square,
		ExpectedOutput:  req.ExpectedOutput,
		TxHash:          req.TxHash,
		Description:     req.Description,
		Images:          req.Images,
		VideoURLs:       req.VideoURLs,
	}
	if req.CultivationPlanID != nil {
		planID, err := uuid.Parse(*req.CultivationPlanID)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
		input.CultivationPlanID = &planID
	}
	project, err := h.projectService.InitiateProject(c.Request.Context(), farmID, input)
	if err != nil {
		h.log.Error("Initiate failed", "farm_id", farmID, "error", err)
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	project, err := h.projectService.GetProject(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (h *ProjectHandler) GetByIndex(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("projectIndex"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	project, err := h.projectService.GetProjectByIndex(c.Request.Context(), index)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (h *ProjectHandler) List(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	projects, err := h.projectService.ListProjectsByFarm(c.Request.Context(), farmID, limit, offset)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": projects})
}

type projectInfoPatchRequest struct {
	SeedID          *string    `json:"seed_id"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	ExpectedEndDate *time.Time `json:"expected_end_date"`
	Square          *float64   `json:"square"`
	ExpectedOutput  *float64   `json:"expected_output"`
	TxHash          *string    `json:"tx_hash"`
	Description     *string    `json:"description"`
	Status          *string    `json:"status"`
}

func (h *ProjectHandler) UpdateInfo(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	var req projectInfoPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	patch := services.ProjectInfoPatch{
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		ExpectedEndDate: req.ExpectedEndDate,
		Square:          req.Square,
		ExpectedOutput:  req.ExpectedOutput,
		TxHash:          req.TxHash,
		Description:     req.Description,
	}
	if req.SeedID != nil {
		seedID, err := uuid.Parse(*req.SeedID)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
		patch.SeedID = &seedID
	}
	if req.Status != nil {
		status := types.ProjectStatus(*req.Status)
		patch.Status = &status
	}
	project, err := h.projectService.UpdateProjectInfo(c.Request.Context(), farmID, projectID, patch)
	if err != nil {
		h.log.Error("UpdateInfo failed", "project_id", projectID, "error", err)
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProject(c.Request.Context(), farmID, projectID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

type processRequest struct {
	Tx             string                        `json:"tx"`
	Time           time.Time                     `json:"time"`
	Type           string                        `json:"type"`
	Cultivation    *types.CultivationActivity    `json:"cultivation_activity"`
	Planting       *types.PlantingActivity       `json:"planting_activity"`
	Fertilization  *types.FertilizationActivity  `json:"fertilization_activity"`
	PestAndDisease *types.PestAndDiseaseActivity `json:"pest_and_disease_activity"`
	Other          *types.OtherActivity          `json:"other_activity"`
}

func (r processRequest) toInput() services.ProcessInput {
	return services.ProcessInput{
		Tx:             r.Tx,
		Time:           r.Time,
		Type:           types.ProcessType(r.Type),
		Cultivation:    r.Cultivation,
		Planting:       r.Planting,
		Fertilization:  r.Fertilization,
		PestAndDisease: r.PestAndDisease,
		Other:          r.Other,
	}
}

func (h *ProjectHandler) AddProcess(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	process, err := h.projectService.AddProcess(c.Request.Context(), farmID, projectID, req.toInput())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"process": process})
}

func (h *ProjectHandler) UpdateProcess(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	processID, ok := pathUUID(c, "processId")
	if !ok {
		return
	}
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	process, err := h.projectService.UpdateProcess(c.Request.Context(), farmID, projectID, processID, req.toInput())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"process": process})
}

func (h *ProjectHandler) DeleteProcess(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	processID, ok := pathUUID(c, "processId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteProcess(c.Request.Context(), farmID, projectID, processID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (h *ProjectHandler) ListProcesses(c *gin.Context) {
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	processes, err := h.projectService.ListProcesses(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"processes": processes})
}

type expectationRequest struct {
	Tx     string    `json:"tx"`
	Time   time.Time `json:"time"`
	Amount float64   `json:"amount"`
	Note   string    `json:"note"`
}

func (h *ProjectHandler) AddExpectation(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	var req expectationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	expectation, err := h.projectService.AddExpectation(c.Request.Context(), farmID, projectID, services.ExpectationInput(req))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"expectation": expectation})
}

func (h *ProjectHandler) UpdateExpectation(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	expectationID, ok := pathUUID(c, "expectationId")
	if !ok {
		return
	}
	var req expectationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	expectation, err := h.projectService.UpdateExpectation(c.Request.Context(), farmID, projectID, expectationID, services.ExpectationInput(req))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"expectation": expectation})
}

func (h *ProjectHandler) DeleteExpectation(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	expectationID, ok := pathUUID(c, "expectationId")
	if !ok {
		return
	}
	if err := h.projectService.DeleteExpectation(c.Request.Context(), farmID, projectID, expectationID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (h *ProjectHandler) ListExpectations(c *gin.Context) {
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	expectations, err := h.projectService.ListExpectations(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"expectations": expectations})
}

type outputRequest struct {
	Tx          string           `json:"tx"`
	Time        time.Time        `json:"time"`
	Amount      float64          `json:"amount"`
	Quantity    int              `json:"quantity"`
	Images      []string         `json:"images"`
	Allocations []allocationItem `json:"allocations"`
}

type allocationItem struct {
	DistributorID string `json:"distributor_id"`
	Quantity      int    `json:"quantity"`
}

func (r outputRequest) toInput() (services.OutputInput, error) {
	input := services.OutputInput{
		Tx:       r.Tx,
		Time:     r.Time,
		Amount:   r.Amount,
		Quantity: r.Quantity,
		Images:   r.Images,
	}
	for _, a := range r.Allocations {
		distributorID, err := uuid.Parse(a.DistributorID)
		if err != nil {
			return input, err
		}
		input.Allocations = append(input.Allocations, types.DistributorAllocation{
			DistributorID: distributorID,
			Quantity:      a.Quantity,
		})
	}
	return input, nil
}

func (h *ProjectHandler) AddOutput(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	var req outputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	output, err := h.projectService.AddOutput(c.Request.Context(), farmID, projectID, input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"output": output})
}

func (h *ProjectHandler) UpdateOutput(c *gin.Context) {
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
	var req outputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	output, err := h.projectService.UpdateOutput(c.Request.Context(), farmID, projectID, outputID, input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"output": output})
}

func (h *ProjectHandler) DeleteOutput(c *gin.Context) {
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
	if err := h.projectService.DeleteOutput(c.Request.Context(), farmID, projectID, outputID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (h *ProjectHandler) ListOutputs(c *gin.Context) {
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	outputs, err := h.projectService.ListOutputs(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"outputs": outputs})
}

func (h *ProjectHandler) ListDeletedItems(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	items, err := h.projectService.ListDeletedItems(c.Request.Context(), farmID, projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted_items": items})
}

type assignCamerasRequest struct {
	CameraIDs []string `json:"camera_ids"`
}

func (h *ProjectHandler) AssignCameras(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	var req assignCamerasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	cameraIDs := make([]uuid.UUID, 0, len(req.CameraIDs))
	for _, raw := range req.CameraIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_input", err)
			return
		}
		cameraIDs = append(cameraIDs, id)
	}
	project, err := h.projectService.AssignCameras(c.Request.Context(), farmID, projectID, cameraIDs)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

type attachPlanRequest struct {
	CultivationPlanID string `json:"cultivation_plan_id"`
}

func (h *ProjectHandler) AttachCultivationPlan(c *gin.Context) {
	farmID, ok := farmFromContext(c)
	if !ok {
		return
	}
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	var req attachPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	planID, err := uuid.Parse(req.CultivationPlanID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	project, err := h.projectService.AttachCultivationPlan(c.Request.Context(), farmID, projectID, planID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (h *ProjectHandler) GetCultivationPlan(c *gin.Context) {
	projectID, ok := pathUUID(c, "projectId")
	if !ok {
		return
	}
	plan, err := h.projectService.GetCultivationPlan(c.Request.Context(), projectID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"cultivation_plan": plan})
}
