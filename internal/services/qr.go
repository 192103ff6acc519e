package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/apperr"
	"github.com/agritrace/agritrace-backend/internal/ledger"
	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/types"
)

const pgUniqueViolation = "23505"

type QRService interface {
	// ExportBatch issues QR units against one harvest output. All
	// allocations are validated before anything is written; a batch either
	// creates every unit or none.
	ExportBatch(ctx context.Context, farmID, projectID, outputID uuid.UUID, exportTxRef string, allocations []ExportAllocation) (*ExportResult, error)

	// Redeem marks one unit scanned after the ledger has finalized the
	// redemption. Scanning the same unit again returns the stored result.
	Redeem(ctx context.Context, projectID, clientID uuid.UUID, privateID string) (*RedeemResult, error)

	ListByProject(ctx context.Context, farmID, projectID uuid.UUID) ([]*types.QRUnit, error)
	StatsByFarm(ctx context.Context, farmID uuid.UUID) (*FarmQRStats, error)
}

type ExportAllocation struct {
	DistributorID uuid.UUID
	Quantity      int
	PrivateIDs    []string
}

type ExportCreated struct {
	DistributorID uuid.UUID `json:"distributor_id"`
	Count         int       `json:"count"`
}

type ExportResult struct {
	OutputID    uuid.UUID       `json:"output_id"`
	ExportTxRef string          `json:"export_tx_ref"`
	Total       int             `json:"total"`
	Created     []ExportCreated `json:"created"`
}

type RedeemResult struct {
	Unit                 *types.QRUnit `json:"unit"`
	AlreadyScanned       bool          `json:"already_scanned"`
	LedgerConfirmedPrior bool          `json:"ledger_confirmed_prior"`
}

type DistributorStats struct {
	DistributorID uuid.UUID `json:"distributor_id"`
	Name          string    `json:"name"`
	Total         int       `json:"total"`
	Scanned       int       `json:"scanned"`
}

type FarmQRStats struct {
	Total        int                `json:"total"`
	Scanned      int                `json:"scanned"`
	Distributors []DistributorStats `json:"distributors"`
}

type qrService struct {
	db            *gorm.DB
	log           *logger.Logger
	qrRepo        repos.QRRepo
	projectRepo   repos.ProjectRepo
	clientRepo    repos.ClientRepo
	referenceRepo repos.ReferenceRepo
	ledger        ledger.Ledger
}

func NewQRService(
	db *gorm.DB,
	baseLog *logger.Logger,
	qrRepo repos.QRRepo,
	projectRepo repos.ProjectRepo,
	clientRepo repos.ClientRepo,
	referenceRepo repos.ReferenceRepo,
	ledgerClient ledger.Ledger,
) QRService {
	serviceLog := baseLog.With("service", "QRService")
	return &qrService{
		db:            db,
		log:           serviceLog,
		qrRepo:        qrRepo,
		projectRepo:   projectRepo,
		clientRepo:    clientRepo,
		referenceRepo: referenceRepo,
		ledger:        ledgerClient,
	}
}

func (s *qrService) ExportBatch(ctx context.Context, farmID, projectID, outputID uuid.UUID, exportTxRef string, allocations []ExportAllocation) (*ExportResult, error) {
	s.log.Info("ExportBatch", "farm_id", farmID, "project_id", projectID, "output_id", outputID)

	if len(allocations) == 0 {
		return nil, apperr.InvalidInput("at least one allocation is required")
	}
	seenHashes := map[string]bool{}
	for _, a := range allocations {
		if a.Quantity <= 0 {
			return nil, apperr.InvalidInput("allocation quantity for distributor %s must be positive", a.DistributorID)
		}
		if len(a.PrivateIDs) != a.Quantity {
			return nil, apperr.InvalidInput("distributor %s: %d private ids for quantity %d", a.DistributorID, len(a.PrivateIDs), a.Quantity)
		}
		distributor, err := s.referenceRepo.GetDistributor(ctx, nil, a.DistributorID)
		if err != nil {
			return nil, apperr.PersistenceFailure(err)
		}
		if distributor == nil {
			return nil, apperr.NotFound("distributor %s not found", a.DistributorID)
		}
		for _, raw := range a.PrivateIDs {
			if raw == "" {
				return nil, apperr.InvalidInput("empty private id in batch")
			}
			hashed := types.HashPrivateID(raw)
			if seenHashes[hashed] {
				return nil, apperr.InvalidInput("duplicate private id in batch")
			}
			seenHashes[hashed] = true
		}
	}

	// Hash and assemble units per allocation concurrently. Only the
	// assembly is parallel; the insert is one transaction.
	now := time.Now()
	batches := make([][]*types.QRUnit, len(allocations))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range allocations {
		i, a := i, a
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			units := make([]*types.QRUnit, len(a.PrivateIDs))
			for j, raw := range a.PrivateIDs {
				units[j] = &types.QRUnit{
					ProjectID:       projectID,
					OutputID:        outputID,
					DistributorID:   a.DistributorID,
					HashedPrivateID: types.HashPrivateID(raw),
					IssuedAt:        now,
					ExportTxRef:     exportTxRef,
				}
			}
			batches[i] = units
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.PersistenceFailure(err)
	}

	all := make([]*types.QRUnit, 0, len(seenHashes))
	for _, b := range batches {
		all = append(all, b...)
	}

	// The output checks, the insert, and the ExportQR flip share one
	// transaction over the locked project row, so two exports against the
	// same output cannot both pass the not-yet-exported check.
	var projectIndex int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := s.projectRepo.GetByIDForUpdate(ctx, tx, projectID)
		if err != nil {
			return apperr.PersistenceFailure(err)
		}
		if project == nil {
			return apperr.NotFound("project %s not found", projectID)
		}
		if project.FarmID != farmID {
			return apperr.PermissionDenied("project %s does not belong to farm %s", projectID, farmID)
		}
		projectIndex = project.ProjectIndex

		outputs := []types.Output(project.Outputs)
		idx := indexOfOutput(outputs, outputID)
		if idx < 0 {
			return apperr.NotFound("output %s not found in project %s", outputID, projectID)
		}
		output := &outputs[idx]
		if output.IsDeleted {
			return apperr.AlreadyDeleted("output %s is deleted", outputID)
		}
		if output.ExportQR {
			return apperr.InvalidInput("output %s already has QR units issued", outputID)
		}
		if err := reconcileExportAllocations(output, allocations); err != nil {
			return err
		}

		if _, err := s.qrRepo.CreateBatch(ctx, tx, all); err != nil {
			return err
		}
		output.ExportQR = true
		return s.projectRepo.SaveSubResources(ctx, tx, projectID, map[string]interface{}{
			"outputs": datatypes.NewJSONSlice(outputs),
		})
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperr.InvalidInput("private id already issued for project %s", projectID)
		}
		s.log.Error("ExportBatch failed", "error", err)
		return nil, apperr.PersistenceFailure(err)
	}

	// Anchor the issuance on the ledger. Best effort: redemption never
	// depends on this entry.
	issuanceNote := fmt.Sprintf("issued %d QR units for output %s of project %d", len(all), outputID, projectIndex)
	if _, err := s.ledger.SubmitIssuance(ctx, projectID, issuanceNote); err != nil {
		s.log.Warn("Issuance anchoring failed", "project_id", projectID, "error", err)
	}

	result := &ExportResult{
		OutputID:    outputID,
		ExportTxRef: exportTxRef,
		Total:       len(all),
		Created:     make([]ExportCreated, 0, len(allocations)),
	}
	for i, a := range allocations {
		result.Created = append(result.Created, ExportCreated{
			DistributorID: a.DistributorID,
			Count:         len(batches[i]),
		})
	}
	return result, nil
}

// reconcileExportAllocations checks the requested batch against the output
// it draws from. An output with planned distributor allocations must be
// exported exactly as planned; one without a plan is only capped by its
// quantity.
func reconcileExportAllocations(output *types.Output, allocations []ExportAllocation) error {
	if len(output.Allocations) == 0 {
		total := 0
		for _, a := range allocations {
			total += a.Quantity
		}
		if total > output.Quantity {
			return apperr.InvalidInput("requested %d units but output quantity is %d", total, output.Quantity)
		}
		return nil
	}

	planned := make(map[uuid.UUID]int, len(output.Allocations))
	for _, a := range output.Allocations {
		planned[a.DistributorID] = a.Quantity
	}
	if len(allocations) != len(planned) {
		return apperr.InvalidInput("output %s plans %d distributor allocations, got %d", output.ID, len(planned), len(allocations))
	}
	for _, a := range allocations {
		want, ok := planned[a.DistributorID]
		if !ok {
			return apperr.InvalidInput("distributor %s is not allocated on output %s", a.DistributorID, output.ID)
		}
		if a.Quantity != want {
			return apperr.InvalidInput("distributor %s is allocated %d units on output %s, got %d", a.DistributorID, want, output.ID, a.Quantity)
		}
		delete(planned, a.DistributorID)
	}
	return nil
}

func (s *qrService) Redeem(ctx context.Context, projectID, clientID uuid.UUID, privateID string) (*RedeemResult, error) {
	s.log.Info("Redeem", "project_id", projectID, "client_id", clientID)

	client, err := s.clientRepo.GetByID(ctx, nil, clientID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if client == nil {
		return nil, apperr.NotFound("client %s not found", clientID)
	}

	hashed := types.HashPrivateID(privateID)
	unit, err := s.qrRepo.GetByProjectAndHash(ctx, nil, projectID, hashed)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if unit == nil {
		return nil, apperr.NotFound("no QR unit for project %s with that id", projectID)
	}

	if unit.IsScanned {
		return &RedeemResult{Unit: unit, AlreadyScanned: true}, nil
	}

	project, err := s.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if project == nil {
		return nil, apperr.NotFound("project %s not found", projectID)
	}

	confirmedPrior, err := s.ledger.CheckRedemption(ctx, projectID, hashed)
	if err != nil {
		s.log.Warn("Ledger check failed", "project_id", projectID, "error", err)
		return nil, apperr.LedgerUnavailable(err)
	}

	now := time.Now()
	note := buildProvenanceNote(project, unit, client, now)

	scanTxRef := ""
	if !confirmedPrior {
		// Record intent before the long wait so a crash in the window
		// leaves a trace to reconcile from.
		if err := s.qrRepo.MarkSubmitted(ctx, nil, unit.ID, now); err != nil {
			return nil, apperr.PersistenceFailure(err)
		}
		ref, err := s.ledger.SubmitRedemption(ctx, projectID, hashed, note)
		if errors.Is(err, ledger.ErrCommitTimeout) {
			return nil, apperr.LedgerIndeterminate(err)
		}
		if err != nil {
			return nil, apperr.LedgerUnavailable(err)
		}
		scanTxRef = ref.Hash
	}

	won, err := s.qrRepo.MarkScanned(ctx, nil, unit.ID, clientID, scanTxRef, note, now)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if !won {
		existing, err := s.qrRepo.GetByID(ctx, nil, unit.ID)
		if err != nil {
			return nil, apperr.PersistenceFailure(err)
		}
		return &RedeemResult{Unit: existing, AlreadyScanned: true}, nil
	}

	scanned, err := s.qrRepo.GetByID(ctx, nil, unit.ID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}

	// The scanned unit is the source of truth; a failed history append is
	// retried later via ClientService.RetryPurchaseAppend.
	purchase := &types.ClientPurchase{
		ClientID:     clientID,
		QRUnitID:     unit.ID,
		Time:         now,
		PurchaseInfo: note,
	}
	if _, err := s.clientRepo.CreatePurchase(ctx, nil, purchase); err != nil {
		s.log.Warn("Purchase history append failed", "client_id", clientID, "qr_unit_id", unit.ID, "error", err)
	}

	return &RedeemResult{Unit: scanned, LedgerConfirmedPrior: confirmedPrior}, nil
}

func (s *qrService) ListByProject(ctx context.Context, farmID, projectID uuid.UUID) ([]*types.QRUnit, error) {
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
	units, err := s.qrRepo.ListByProject(ctx, nil, projectID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	return units, nil
}

func (s *qrService) StatsByFarm(ctx context.Context, farmID uuid.UUID) (*FarmQRStats, error) {
	farm, err := s.referenceRepo.GetFarm(ctx, nil, farmID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if farm == nil {
		return nil, apperr.NotFound("farm %s not found", farmID)
	}
	units, err := s.qrRepo.ListByFarm(ctx, nil, farmID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}

	stats := &FarmQRStats{Distributors: []DistributorStats{}}
	// Per-distributor buckets keep the order distributors first appear in
	// the issued units.
	position := map[uuid.UUID]int{}
	for _, u := range units {
		stats.Total++
		if u.IsScanned {
			stats.Scanned++
		}
		pos, ok := position[u.DistributorID]
		if !ok {
			pos = len(stats.Distributors)
			position[u.DistributorID] = pos
			name := ""
			if u.Distributor != nil {
				name = u.Distributor.Name
			}
			stats.Distributors = append(stats.Distributors, DistributorStats{
				DistributorID: u.DistributorID,
				Name:          name,
			})
		}
		stats.Distributors[pos].Total++
		if u.IsScanned {
			stats.Distributors[pos].Scanned++
		}
	}
	return stats, nil
}

func buildProvenanceNote(project *types.Project, unit *types.QRUnit, client *types.Client, at time.Time) string {
	farmName := ""
	if project.Farm != nil {
		farmName = project.Farm.Name
	}
	distributorName := ""
	if unit.Distributor != nil {
		distributorName = unit.Distributor.Name
	}
	return fmt.Sprintf(
		"client %s redeemed a unit of lot %d from distributor %s, farm %s at %s",
		client.Name, project.ProjectIndex, distributorName, farmName, at.UTC().Format(time.RFC3339),
	)
}
