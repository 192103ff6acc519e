package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/apperr"
	"github.com/agritrace/agritrace-backend/internal/logger"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/types"
)

type ClientService interface {
	GetHistory(ctx context.Context, clientID uuid.UUID) ([]*types.ClientPurchase, error)

	// RetryPurchaseAppend re-creates a missing history entry for a unit the
	// client already redeemed. Never touches the ledger.
	RetryPurchaseAppend(ctx context.Context, clientID, qrUnitID uuid.UUID) (*types.ClientPurchase, error)
}

type clientService struct {
	db         *gorm.DB
	log        *logger.Logger
	clientRepo repos.ClientRepo
	qrRepo     repos.QRRepo
}

func NewClientService(
	db *gorm.DB,
	baseLog *logger.Logger,
	clientRepo repos.ClientRepo,
	qrRepo repos.QRRepo,
) ClientService {
	serviceLog := baseLog.With("service", "ClientService")
	return &clientService{
		db:         db,
		log:        serviceLog,
		clientRepo: clientRepo,
		qrRepo:     qrRepo,
	}
}

func (s *clientService) GetHistory(ctx context.Context, clientID uuid.UUID) ([]*types.ClientPurchase, error) {
	client, err := s.clientRepo.GetByID(ctx, nil, clientID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if client == nil {
		return nil, apperr.NotFound("client %s not found", clientID)
	}
	purchases, err := s.clientRepo.ListPurchasesByClient(ctx, nil, clientID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	return purchases, nil
}

func (s *clientService) RetryPurchaseAppend(ctx context.Context, clientID, qrUnitID uuid.UUID) (*types.ClientPurchase, error) {
	s.log.Info("RetryPurchaseAppend", "client_id", clientID, "qr_unit_id", qrUnitID)

	unit, err := s.qrRepo.GetByID(ctx, nil, qrUnitID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if unit == nil {
		return nil, apperr.NotFound("qr unit %s not found", qrUnitID)
	}
	if !unit.IsScanned || unit.ClientID == nil || *unit.ClientID != clientID {
		return nil, apperr.InvalidInput("qr unit %s was not redeemed by client %s", qrUnitID, clientID)
	}

	existing, err := s.clientRepo.GetPurchaseByQRUnit(ctx, nil, clientID, qrUnitID)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	if existing != nil {
		return existing, nil
	}

	at := time.Now()
	if unit.ScannedAt != nil {
		at = *unit.ScannedAt
	}
	purchase := &types.ClientPurchase{
		ClientID:     clientID,
		QRUnitID:     qrUnitID,
		Time:         at,
		PurchaseInfo: unit.ProvenanceNote,
	}
	created, err := s.clientRepo.CreatePurchase(ctx, nil, purchase)
	if err != nil {
		return nil, apperr.PersistenceFailure(err)
	}
	return created, nil
}
