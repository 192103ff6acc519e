package repos_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/repos/testutil"
	"github.com/agritrace/agritrace-backend/internal/types"
)

func seedUnit(t *testing.T, tx *gorm.DB, project *types.Project, raw string) *types.QRUnit {
	t.Helper()
	distributor := &types.Distributor{Name: "Saigon Coop", Address: "HCMC"}
	if err := tx.Create(distributor).Error; err != nil {
		t.Fatalf("create distributor: %v", err)
	}
	unit := &types.QRUnit{
		ProjectID:       project.ID,
		OutputID:        uuid.New(),
		DistributorID:   distributor.ID,
		HashedPrivateID: types.HashPrivateID(raw),
		IssuedAt:        time.Now(),
		ExportTxRef:     "export-tx-1",
	}
	if err := tx.Create(unit).Error; err != nil {
		t.Fatalf("create qr unit: %v", err)
	}
	return unit
}

func TestQRMarkScannedIsFirstWriterWins(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	repo := repos.NewQRRepo(db, log)
	ctx := context.Background()

	project := seedProject(t, tx)
	unit := seedUnit(t, tx, project, "unit-001")

	client := &types.Client{Name: "First Buyer"}
	if err := tx.Create(client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}

	won, err := repo.MarkScanned(ctx, tx, unit.ID, client.ID, "scan-tx-1", "first redemption", time.Now())
	if err != nil {
		t.Fatalf("mark scanned: %v", err)
	}
	if !won {
		t.Fatalf("first scan must win")
	}

	lost, err := repo.MarkScanned(ctx, tx, unit.ID, uuid.New(), "scan-tx-2", "second redemption", time.Now())
	if err != nil {
		t.Fatalf("second mark scanned: %v", err)
	}
	if lost {
		t.Fatalf("second scan must report no rows updated")
	}

	got, err := repo.GetByID(ctx, tx, unit.ID)
	if err != nil {
		t.Fatalf("get unit: %v", err)
	}
	if !got.IsScanned || got.ClientID == nil || *got.ClientID != client.ID || got.ScanTxRef != "scan-tx-1" {
		t.Fatalf("losing writer overwrote the unit: %+v", got)
	}
}

func TestQRMarkScannedConcurrentRedeemersSingleWinner(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewQRRepo(db, log)
	ctx := context.Background()

	// Committed row on the pooled connection so both goroutines hit real
	// separate sessions, not savepoints on a shared transaction.
	unit := &types.QRUnit{
		ProjectID:       uuid.New(),
		OutputID:        uuid.New(),
		DistributorID:   uuid.New(),
		HashedPrivateID: types.HashPrivateID(uuid.NewString()),
		IssuedAt:        time.Now(),
		ExportTxRef:     "export-tx-race",
	}
	if err := db.Create(unit).Error; err != nil {
		t.Fatalf("create qr unit: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("id = ?", unit.ID).Delete(&types.QRUnit{})
	})

	var wins int32
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := repo.MarkScanned(ctx, nil, unit.ID, uuid.New(), fmt.Sprintf("scan-tx-%d", i), "concurrent redemption", time.Now())
			if err != nil {
				errs[i] = err
				return
			}
			if won {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("redeemer %d: %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning scan, got %d", wins)
	}
}

func TestQRUniquePerProjectAndHash(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	repo := repos.NewQRRepo(db, log)
	ctx := context.Background()

	project := seedProject(t, tx)
	unit := seedUnit(t, tx, project, "unit-dup")

	dup := &types.QRUnit{
		ProjectID:       project.ID,
		OutputID:        unit.OutputID,
		DistributorID:   unit.DistributorID,
		HashedPrivateID: unit.HashedPrivateID,
		IssuedAt:        time.Now(),
	}
	if _, err := repo.CreateBatch(ctx, tx, []*types.QRUnit{dup}); err == nil {
		t.Fatalf("duplicate (project, hashed id) must be rejected")
	}
}

func TestQRLookupAndListByFarm(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	repo := repos.NewQRRepo(db, log)
	ctx := context.Background()

	project := seedProject(t, tx)
	unit := seedUnit(t, tx, project, "unit-lookup")

	got, err := repo.GetByProjectAndHash(ctx, tx, project.ID, types.HashPrivateID("unit-lookup"))
	if err != nil {
		t.Fatalf("get by project and hash: %v", err)
	}
	if got == nil || got.ID != unit.ID {
		t.Fatalf("expected the issued unit back")
	}

	miss, err := repo.GetByProjectAndHash(ctx, tx, project.ID, types.HashPrivateID("never-issued"))
	if err != nil {
		t.Fatalf("lookup of unknown hash: %v", err)
	}
	if miss != nil {
		t.Fatalf("unknown hash must return nil")
	}

	byFarm, err := repo.ListByFarm(ctx, tx, project.FarmID)
	if err != nil {
		t.Fatalf("list by farm: %v", err)
	}
	if len(byFarm) != 1 || byFarm[0].ID != unit.ID {
		t.Fatalf("expected one unit for the farm, got %d", len(byFarm))
	}
	if byFarm[0].Distributor == nil {
		t.Fatalf("expected distributor preloaded for stats")
	}
}
