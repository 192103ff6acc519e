package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/apperr"
	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/types"
	"github.com/agritrace/agritrace-backend/internal/versioning"
)

type ProjectService interface {
	InitiateProject(ctx context.Context, farmID uuid.UUID, input ProjectInput) (*types.Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error)
	GetProjectByIndex(ctx context.Context, projectIndex int) (*types.Project, error)
	ListProjectsByFarm(ctx context.Context, farmID uuid.UUID, limit, offset int) ([]*types.Project, error)
	UpdateProjectInfo(ctx context.Context, farmID, projectID uuid.UUID, patch ProjectInfoPatch) (*types.Project, error)
	DeleteProject(ctx context.Context, farmID, projectID uuid.UUID) error

	AddProcess(ctx context.Context, farmID, projectID uuid.UUID, input ProcessInput) (*types.Process, error)
	UpdateProcess(ctx context.Context, farmID, projectID, processID uuid.UUID, input ProcessInput) (*types.Process, error)
	DeleteProcess(ctx context.Context, farmID, projectID, processID uuid.UUID) error
	ListProcesses(ctx context.Context, projectID uuid.UUID) ([]types.Process, error)

	AddExpectation(ctx context.Context, farmID, projectID uuid.UUID, input ExpectationInput) (*types.Expectation, error)
	UpdateExpectation(ctx context.Context, farmID, projectID, expectationID uuid.UUID, input ExpectationInput) (*types.Expectation, error)
	DeleteExpectation(ctx context.Context, farmID, projectID, expectationID uuid.UUID) error
	ListExpectations(ctx context.Context, projectID uuid.UUID) ([]types.Expectation, error)

	AddOutput(ctx context.Context, farmID, projectID uuid.UUID, input OutputInput) (*types.Output, error)
	UpdateOutput(ctx context.Context, farmID, projectID, outputID uuid.UUID, input OutputInput) (*types.Output, error)
	DeleteOutput(ctx context.Context, farmID, projectID, outputID uuid.UUID) error
	ListOutputs(ctx context.Context, projectID uuid.UUID) ([]types.Output, error)

	ListDeletedItems(ctx context.Context, farmID, projectID uuid.UUID) (*DeletedItems, error)
	AssignCameras(ctx context.Context, farmID, projectID uuid.UUID, cameraIDs []uuid.UUID) (*types.Project, error)
	AttachCultivationPlan(ctx context.Context, farmID, projectID, planID uuid.UUID) (*types.Project, error)
	GetCultivationPlan(ctx context.Context, projectID uuid.UUID) (*types.CultivationPlan, error)
}

type ProjectInput struct {
	PlantID           uuid.UUID
	SeedID            uuid.UUID
	StartDate         time.Time
	ExpectedEndDate   *time.Time
	Square            float64
	ExpectedOutput    float64
	TxHash            string
	Description       string
	CultivationPlanID *uuid.UUID
	Images            []string
	VideoURLs         []string
}

// ProjectInfoPatch is a sparse update: nil fields keep their current value.
type ProjectInfoPatch struct {
	SeedID          *uuid.UUID
	StartDate       *time.Time
	EndDate         *time.Time
	ExpectedEndDate *time.Time
	Square          *float64
	ExpectedOutput  *float64
	TxHash          *string
	Description     *string
	Status          *types.ProjectStatus
}

type ProcessInput struct {
	Tx             string
	Time           time.Time
	Type           types.ProcessType
	Cultivation    *types.CultivationActivity
	Planting       *types.PlantingActivity
	Fertilization  *types.FertilizationActivity
	PestAndDisease *types.PestAndDiseaseActivity
	Other          *types.OtherActivity
}

type ExpectationInput struct {
	Tx     string
	Time   time.Time
	Amount float64
	Note   string
}

type OutputInput struct {
	Tx          string
	Time        time.Time
	Amount      float64
	Quantity    int
	Images      []string
	Allocations []types.DistributorAllocation
}

// DeletedItems collects the tombstoned records of all three embedded
// collections for the audit view.
type DeletedItems struct {
	Processes    []types.Process     `json:"processes"`
	Expectations []types.Expectation `json:"expectations"`
	Outputs      []types.Output      `json:"outputs"`
}

type projectService struct {
	db            *gorm.DB
	log           *logger.Logger
	projectRepo   repos.ProjectRepo
	referenceRepo repos.ReferenceRepo
}

func NewProjectService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	referenceRepo repos.ReferenceRepo,
) ProjectService {
	serviceLog := baseLog.With("service", "ProjectService")
	return &projectService{
		db:            db,
		log:           serviceLog,
		projectRepo:   projectRepo,
		referenceRepo: referenceRepo,
	}
}

func (s *projectService) InitiateProject(ctx context.Context, farmID uuid.UUID, input ProjectInput) (*types.Project, error) {
	s.log.Info("InitiateProject", "farm_id", farmID, "plant_id", input.PlantID)

	farm, err := s.referenceRepo.GetFarm(ctx, nil, farmID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if farm == nil {
		return nil, apperr.NotFound("farm %s not found", farmID)
	}
	plant, err := s.referenceRepo.GetPlant(ctx, nil, input.PlantID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if plant == nil {
		return nil, apperr.NotFound("plant %s not found", input.PlantID)
	}
	seed, err := s.referenceRepo.GetSeed(ctx, nil, input.SeedID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if seed == nil {
		return nil, apperr.NotFound("seed %s not found", input.SeedID)
	}
	if seed.PlantID != plant.ID {
		return nil, apperr.InvalidInput("seed %s does not belong to plant %s", seed.ID, plant.ID)
	}
	if input.StartDate.IsZero() {
		return nil, apperr.InvalidInput("start date is required")
	}

	planID := input.CultivationPlanID
	if planID == nil {
		defaultPlan, err := s.referenceRepo.GetDefaultCultivationPlan(ctx, nil, plant.ID, seed.ID)
		if err != nil {
			return nil, apperr.PersistenceFailure(err)
		}
		if defaultPlan != nil {
			planID = &defaultPlan.ID
		}
	} else {
		plan, err := s.referenceRepo.GetCultivationPlan(ctx, nil, *planID)
		if err != nil {
			return nil, apperr.PersistenceFailure(err)
		}
		if plan == nil {
			return nil, apperr.NotFound("cultivation plan %s not found", *planID)
		}
	}

	project := &types.Project{
		FarmID:            farmID,
		PlantID:           plant.ID,
		SeedID:            seed.ID,
		CultivationPlanID: planID,
		TxHash:            input.TxHash,
		StartDate:         input.StartDate,
		ExpectedEndDate:   input.ExpectedEndDate,
		Square:            input.Square,
		ExpectedOutput:    input.ExpectedOutput,
		Description:       input.Description,
		Status:            types.StatusInProgress,
		CreatedAtTime:     time.Now(),
		Images:            datatypes.NewJSONSlice(input.Images),
		VideoURLs:         datatypes.NewJSONSlice(input.VideoURLs),
	}
	created, err := s.projectRepo.Create(ctx, nil, project)
	if err != nil {
		s.log.Error("InitiateProject failed", "error", err)
		return nil, apperr.PersistenceFailure(err)
	}
	return created, nil
}

func (s *projectService) GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if project == nil {
		return nil, apperr.NotFound("project %s not found", projectID)
	}
	return project, nil
}

func (s *projectService) GetProjectByIndex(ctx context.Context, projectIndex int) (*types.Project, error) {
	project, err := s.projectRepo.GetByProjectIndex(ctx, nil, projectIndex)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if project == nil {
		return nil, apperr.NotFound("project with index %d not found", projectIndex)
	}
	return project, nil
}

func (s *projectService) ListProjectsByFarm(ctx context.Context, farmID uuid.UUID, limit, offset int) ([]*types.Project, error) {
	projects, err := s.projectRepo.ListByFarm(ctx, nil, farmID, limit, offset)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	return projects, nil
}

func (s *projectService) UpdateProjectInfo(ctx context.Context, farmID, projectID uuid.UUID, patch ProjectInfoPatch) (*types.Project, error) {
	s.log.Info("UpdateProjectInfo", "farm_id", farmID, "project_id", projectID)

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.InvalidInput("unknown project status %q", *patch.Status)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockOwnedProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		if project.Status.Terminal() {
			return apperr.InvalidInput("project %s is %s and can no longer be updated", projectID, project.Status)
		}
		if patch.SeedID != nil {
			seed, err := s.referenceRepo.GetSeed(ctx, tx, *patch.SeedID)
			if err != nil {
				return apperr.PersistenceFailure(err)
			}
			if seed == nil {
				return apperr.NotFound("seed %s not found", *patch.SeedID)
			}
			if seed.PlantID != project.PlantID {
				return apperr.InvalidInput("seed %s does not belong to plant %s", seed.ID, project.PlantID)
			}
		}

		now := time.Now()
		history := append([]types.ProjectInfoSnapshot(project.InfoHistory), project.InfoSnapshot(now))
		updates := map[string]interface{}{
			"info_history":   datatypes.NewJSONSlice(history),
			"is_info_edited": true,
		}
		if patch.SeedID != nil {
			updates["seed_id"] = *patch.SeedID
		}
		if patch.StartDate != nil {
			updates["start_date"] = *patch.StartDate
		}
		if patch.EndDate != nil {
			updates["end_date"] = *patch.EndDate
		}
		if patch.ExpectedEndDate != nil {
			updates["expected_end_date"] = *patch.ExpectedEndDate
		}
		if patch.Square != nil {
			updates["square"] = *patch.Square
		}
		if patch.ExpectedOutput != nil {
			updates["expected_output"] = *patch.ExpectedOutput
		}
		if patch.TxHash != nil {
			updates["tx_hash"] = *patch.TxHash
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Status != nil {
			updates["status"] = *patch.Status
			// Closing the lot stamps its end date unless the caller set one.
			if patch.Status.Terminal() && patch.EndDate == nil && project.EndDate == nil {
				updates["end_date"] = now
			}
		}

		if err := s.projectRepo.UpdateInfo(ctx, tx, projectID, updates); err != nil {
			s.log.Error("UpdateProjectInfo failed", "error", err)
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return s.GetProject(ctx, projectID)
}

func (s *projectService) DeleteProject(ctx context.Context, farmID, projectID uuid.UUID) error {
	s.log.Info("DeleteProject", "farm_id", farmID, "project_id", projectID)
	if _, err := s.getOwnedProject(ctx, farmID, projectID); err != nil {
		return err
	}
	if err := s.projectRepo.SoftDelete(ctx, nil, projectID); err != nil {
		return apperr.PersistenceFailure(err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Processes

func (s *projectService) AddProcess(ctx context.Context, farmID, projectID uuid.UUID, input ProcessInput) (*types.Process, error) {
	s.log.Info("AddProcess", "farm_id", farmID, "project_id", projectID, "type", input.Type)

	process := types.Process{
		ID:             uuid.New(),
		Tx:             input.Tx,
		Time:           input.Time,
		Type:           input.Type,
		Cultivation:    input.Cultivation,
		Planting:       input.Planting,
		Fertilization:  input.Fertilization,
		PestAndDisease: input.PestAndDisease,
		Other:          input.Other,
	}
	process.CreatedAtTime = time.Now()
	if err := process.Validate(); err != nil {
		return nil, apperr.InvalidInput("invalid process: %v", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		processes := append([]types.Process(project.Processes), process)
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"processes": datatypes.NewJSONSlice(processes),
		}); err != nil {
			s.log.Error("AddProcess failed", "error", err)
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return &process, nil
}

func (s *projectService) UpdateProcess(ctx context.Context, farmID, projectID, processID uuid.UUID, input ProcessInput) (*types.Process, error) {
	s.log.Info("UpdateProcess", "farm_id", farmID, "project_id", projectID, "process_id", processID)

	var updated *types.Process
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		processes := []types.Process(project.Processes)
		idx := indexOfProcess(processes, processID)
		if idx < 0 {
			return apperr.NotFound("process %s not found in project %s", processID, projectID)
		}
		process := &processes[idx]

		candidate := *process
		candidate.Tx = input.Tx
		candidate.Time = input.Time
		candidate.Type = input.Type
		candidate.Cultivation = input.Cultivation
		candidate.Planting = input.Planting
		candidate.Fertilization = input.Fertilization
		candidate.PestAndDisease = input.PestAndDisease
		candidate.Other = input.Other
		if err := candidate.Validate(); err != nil {
			return apperr.InvalidInput("invalid process: %v", err)
		}

		now := time.Now()
		err = versioning.Update(&process.Versioned,
			func() { process.History = append(process.History, process.Snapshot(now)) },
			func() {
				process.Tx = input.Tx
				process.Time = input.Time
				process.Type = input.Type
				process.Cultivation = input.Cultivation
				process.Planting = input.Planting
				process.Fertilization = input.Fertilization
				process.PestAndDisease = input.PestAndDisease
				process.Other = input.Other
			})
		if errors.Is(err, versioning.ErrAlreadyDeleted) {
			return apperr.AlreadyDeleted("process %s is deleted", processID)
		}
		if err != nil {
			return apperr.PersistenceFailure(err)
		}

		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"processes": datatypes.NewJSONSlice(processes),
		}); err != nil {
			s.log.Error("UpdateProcess failed", "error", err)
			return apperr.PersistenceFailure(err)
		}
		updated = process
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return updated, nil
}

func (s *projectService) DeleteProcess(ctx context.Context, farmID, projectID, processID uuid.UUID) error {
	s.log.Info("DeleteProcess", "farm_id", farmID, "project_id", projectID, "process_id", processID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		processes := []types.Process(project.Processes)
		idx := indexOfProcess(processes, processID)
		if idx < 0 {
			return apperr.NotFound("process %s not found in project %s", processID, projectID)
		}
		if err := versioning.Delete(&processes[idx].Versioned, time.Now()); err != nil {
			return apperr.AlreadyDeleted("process %s is deleted", processID)
		}
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"processes": datatypes.NewJSONSlice(processes),
		}); err != nil {
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	return asAppError(err)
}

func (s *projectService) ListProcesses(ctx context.Context, projectID uuid.UUID) ([]types.Process, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	live := make([]types.Process, 0, len(project.Processes))
	for _, p := range project.Processes {
		if !p.IsDeleted {
			live = append(live, p)
		}
	}
	return live, nil
}

// ---------------------------------------------------------------------------
// Expectations

func (s *projectService) AddExpectation(ctx context.Context, farmID, projectID uuid.UUID, input ExpectationInput) (*types.Expectation, error) {
	s.log.Info("AddExpectation", "farm_id", farmID, "project_id", projectID)

	if input.Amount <= 0 {
		return nil, apperr.InvalidInput("expectation amount must be positive")
	}
	expectation := types.Expectation{
		ID:     uuid.New(),
		Tx:     input.Tx,
		Time:   input.Time,
		Amount: input.Amount,
		Note:   input.Note,
	}
	expectation.CreatedAtTime = time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		expectations := append([]types.Expectation(project.Expectations), expectation)
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"expectations": datatypes.NewJSONSlice(expectations),
		}); err != nil {
			s.log.Error("AddExpectation failed", "error", err)
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return &expectation, nil
}

func (s *projectService) UpdateExpectation(ctx context.Context, farmID, projectID, expectationID uuid.UUID, input ExpectationInput) (*types.Expectation, error) {
	s.log.Info("UpdateExpectation", "farm_id", farmID, "project_id", projectID, "expectation_id", expectationID)

	if input.Amount <= 0 {
		return nil, apperr.InvalidInput("expectation amount must be positive")
	}
	var updated *types.Expectation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		expectations := []types.Expectation(project.Expectations)
		idx := indexOfExpectation(expectations, expectationID)
		if idx < 0 {
			return apperr.NotFound("expectation %s not found in project %s", expectationID, projectID)
		}
		expectation := &expectations[idx]

		now := time.Now()
		err = versioning.Update(&expectation.Versioned,
			func() { expectation.History = append(expectation.History, expectation.Snapshot(now)) },
			func() {
				expectation.Tx = input.Tx
				expectation.Time = input.Time
				expectation.Amount = input.Amount
				expectation.Note = input.Note
			})
		if errors.Is(err, versioning.ErrAlreadyDeleted) {
			return apperr.AlreadyDeleted("expectation %s is deleted", expectationID)
		}
		if err != nil {
			return apperr.PersistenceFailure(err)
		}

		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"expectations": datatypes.NewJSONSlice(expectations),
		}); err != nil {
			return apperr.PersistenceFailure(err)
		}
		updated = expectation
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return updated, nil
}

func (s *projectService) DeleteExpectation(ctx context.Context, farmID, projectID, expectationID uuid.UUID) error {
	s.log.Info("DeleteExpectation", "farm_id", farmID, "project_id", projectID, "expectation_id", expectationID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		expectations := []types.Expectation(project.Expectations)
		idx := indexOfExpectation(expectations, expectationID)
		if idx < 0 {
			return apperr.NotFound("expectation %s not found in project %s", expectationID, projectID)
		}
		if err := versioning.Delete(&expectations[idx].Versioned, time.Now()); err != nil {
			return apperr.AlreadyDeleted("expectation %s is deleted", expectationID)
		}
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"expectations": datatypes.NewJSONSlice(expectations),
		}); err != nil {
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	return asAppError(err)
}

func (s *projectService) ListExpectations(ctx context.Context, projectID uuid.UUID) ([]types.Expectation, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	live := make([]types.Expectation, 0, len(project.Expectations))
	for _, e := range project.Expectations {
		if !e.IsDeleted {
			live = append(live, e)
		}
	}
	return live, nil
}

// ---------------------------------------------------------------------------
// Outputs

func (s *projectService) AddOutput(ctx context.Context, farmID, projectID uuid.UUID, input OutputInput) (*types.Output, error) {
	s.log.Info("AddOutput", "farm_id", farmID, "project_id", projectID)

	if err := s.validateAllocations(ctx, input.Quantity, input.Allocations); err != nil {
		return nil, err
	}
	output := types.Output{
		ID:          uuid.New(),
		Tx:          input.Tx,
		Time:        input.Time,
		Amount:      input.Amount,
		Quantity:    input.Quantity,
		Images:      input.Images,
		Allocations: input.Allocations,
	}
	output.CreatedAtTime = time.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		outputs := append([]types.Output(project.Outputs), output)
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"outputs": datatypes.NewJSONSlice(outputs),
		}); err != nil {
			s.log.Error("AddOutput failed", "error", err)
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return &output, nil
}

func (s *projectService) UpdateOutput(ctx context.Context, farmID, projectID, outputID uuid.UUID, input OutputInput) (*types.Output, error) {
	s.log.Info("UpdateOutput", "farm_id", farmID, "project_id", projectID, "output_id", outputID)

	if err := s.validateAllocations(ctx, input.Quantity, input.Allocations); err != nil {
		return nil, err
	}
	var updated *types.Output
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		outputs := []types.Output(project.Outputs)
		idx := indexOfOutput(outputs, outputID)
		if idx < 0 {
			return apperr.NotFound("output %s not found in project %s", outputID, projectID)
		}
		output := &outputs[idx]
		if output.ExportQR {
			return apperr.InvalidInput("output %s already has QR units issued and cannot change", outputID)
		}

		now := time.Now()
		err = versioning.Update(&output.Versioned,
			func() { output.History = append(output.History, output.Snapshot(now)) },
			func() {
				output.Tx = input.Tx
				output.Time = input.Time
				output.Amount = input.Amount
				output.Quantity = input.Quantity
				output.Images = input.Images
				output.Allocations = input.Allocations
			})
		if errors.Is(err, versioning.ErrAlreadyDeleted) {
			return apperr.AlreadyDeleted("output %s is deleted", outputID)
		}
		if err != nil {
			return apperr.PersistenceFailure(err)
		}

		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"outputs": datatypes.NewJSONSlice(outputs),
		}); err != nil {
			return apperr.PersistenceFailure(err)
		}
		updated = output
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return updated, nil
}

func (s *projectService) DeleteOutput(ctx context.Context, farmID, projectID, outputID uuid.UUID) error {
	s.log.Info("DeleteOutput", "farm_id", farmID, "project_id", projectID, "output_id", outputID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.lockWritableProject(ctx, tx, farmID, projectID)
		if err != nil {
			return err
		}
		outputs := []types.Output(project.Outputs)
		idx := indexOfOutput(outputs, outputID)
		if idx < 0 {
			return apperr.NotFound("output %s not found in project %s", outputID, projectID)
		}
		if outputs[idx].ExportQR {
			return apperr.InvalidInput("output %s already has QR units issued and cannot be deleted", outputID)
		}
		if err := versioning.Delete(&outputs[idx].Versioned, time.Now()); err != nil {
			return apperr.AlreadyDeleted("output %s is deleted", outputID)
		}
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"outputs": datatypes.NewJSONSlice(outputs),
		}); err != nil {
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	return asAppError(err)
}

func (s *projectService) ListOutputs(ctx context.Context, projectID uuid.UUID) ([]types.Output, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	live := make([]types.Output, 0, len(project.Outputs))
	for _, o := range project.Outputs {
		if !o.IsDeleted {
			live = append(live, o)
		}
	}
	return live, nil
}

// ---------------------------------------------------------------------------
// Audit and references

func (s *projectService) ListDeletedItems(ctx context.Context, farmID, projectID uuid.UUID) (*DeletedItems, error) {
	project, err := s.getOwnedProject(ctx, farmID, projectID)
	if err != nil {
		return nil, err
	}
	items := &DeletedItems{
		Processes:    []types.Process{},
		Expectations: []types.Expectation{},
		Outputs:      []types.Output{},
	}
	for _, p := range project.Processes {
		if p.IsDeleted {
			items.Processes = append(items.Processes, p)
		}
	}
	for _, e := range project.Expectations {
		if e.IsDeleted {
			items.Expectations = append(items.Expectations, e)
		}
	}
	for _, o := range project.Outputs {
		if o.IsDeleted {
			items.Outputs = append(items.Outputs, o)
		}
	}
	return items, nil
}

func (s *projectService) AssignCameras(ctx context.Context, farmID, projectID uuid.UUID, cameraIDs []uuid.UUID) (*types.Project, error) {
	s.log.Info("AssignCameras", "farm_id", farmID, "project_id", projectID, "count", len(cameraIDs))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockOwnedProject(ctx, tx, farmID, projectID); err != nil {
			return err
		}
		cameras, err := s.referenceRepo.GetCameras(ctx, tx, cameraIDs)
		if err != nil {
			return apperr.PersistenceFailure(err)
		}
		if len(cameras) != len(cameraIDs) {
			return apperr.NotFound("one or more cameras not found")
		}
		if err := s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"camera_ids": datatypes.NewJSONSlice(cameraIDs),
		}); err != nil {
			return apperr.PersistenceFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return s.GetProject(ctx, projectID)
}

func (s *projectService) AttachCultivationPlan(ctx context.Context, farmID, projectID, planID uuid.UUID) (*types.Project, error) {
	s.log.Info("AttachCultivationPlan", "farm_id", farmID, "project_id", projectID, "plan_id", planID)

	project, err := s.getOwnedProject(ctx, farmID, projectID)
	if err != nil {
		return nil, err
	}
	plan, err := s.referenceRepo.GetCultivationPlan(ctx, nil, planID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if plan == nil {
		return nil, apperr.NotFound("cultivation plan %s not found", planID)
	}
	if plan.PlantID != project.PlantID {
		return nil, apperr.InvalidInput("cultivation plan %s targets a different plant", planID)
	}
	if err := s.projectRepo.UpdateInfo(ctx, nil, projectID, map[string]interface{}{
		"cultivation_plan_id": planID,
	}); err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	return s.GetProject(ctx, projectID)
}

func (s *projectService) GetCultivationPlan(ctx context.Context, projectID uuid.UUID) (*types.CultivationPlan, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.CultivationPlanID == nil {
		return nil, apperr.NotFound("project %s has no cultivation plan", projectID)
	}
	plan, err := s.referenceRepo.GetCultivationPlan(ctx, nil, *project.CultivationPlanID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if plan == nil {
		return nil, apperr.NotFound("cultivation plan %s not found", *project.CultivationPlanID)
	}
	return plan, nil
}

// ---------------------------------------------------------------------------
// Helpers

func (s *projectService) getOwnedProject(ctx context.Context, farmID, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if project == nil {
		return nil, apperr.NotFound("project %s not found", projectID)
	}
	if project.FarmID != farmID {
		return nil, apperr.PermissionDenied("project %s does not belong to farm %s", projectID, farmID)
	}
	return project, nil
}

// lockOwnedProject is the transactional variant: it takes the row lock all
// read-modify-writes of the embedded collections serialize on.
func (s *projectService) lockOwnedProject(ctx context.Context, tx *gorm.DB, farmID, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.projectRepo.GetByIDForUpdate(ctx, tx, projectID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if project == nil {
		return nil, apperr.NotFound("project %s not found", projectID)
	}
	if project.FarmID != farmID {
		return nil, apperr.PermissionDenied("project %s does not belong to farm %s", projectID, farmID)
	}
	return project, nil
}

func (s *projectService) lockWritableProject(ctx context.Context, tx *gorm.DB, farmID, projectID uuid.UUID) (*types.Project, error) {
	project, err := s.lockOwnedProject(ctx, tx, farmID, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status.Terminal() {
		return nil, apperr.InvalidInput("project %s is %s and no longer accepts records", projectID, project.Status)
	}
	return project, nil
}

// asAppError keeps taxonomy errors intact across a gorm transaction and
// wraps anything else as a persistence failure. Passes nil through.
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.PersistenceFailure(err)
}

func (s *projectService) validateAllocations(ctx context.Context, quantity int, allocations []types.DistributorAllocation) error {
	if quantity <= 0 {
		return apperr.InvalidInput("output quantity must be positive")
	}
	if len(allocations) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(allocations))
	seen := map[uuid.UUID]bool{}
	total := 0
	for _, a := range allocations {
		if a.Quantity <= 0 {
			return apperr.InvalidInput("allocation quantity for distributor %s must be positive", a.DistributorID)
		}
		if seen[a.DistributorID] {
			return apperr.InvalidInput("distributor %s allocated twice", a.DistributorID)
		}
		seen[a.DistributorID] = true
		ids = append(ids, a.DistributorID)
		total += a.Quantity
	}
	if total > quantity {
		return apperr.InvalidInput("allocated %d units but output quantity is %d", total, quantity)
	}
	distributors, err := s.referenceRepo.GetDistributors(ctx, nil, ids)
	if err != nil {
		return apperr.PersistenceFailure(err)
	}
	if len(distributors) != len(ids) {
		return apperr.NotFound("one or more distributors not found")
	}
	return nil
}

func indexOfProcess(list []types.Process, id uuid.UUID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfExpectation(list []types.Expectation, id uuid.UUID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfOutput(list []types.Output, id uuid.UUID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
