package services_test

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/ledger"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/repos/testutil"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/types"
)

// fixture wires the services over one rolled-back transaction with a fake
// ledger, plus the reference rows every scenario needs.
type fixture struct {
	tx       *gorm.DB
	ledger   *ledger.Fake
	projects services.ProjectService
	qr       services.QRService
	clients  services.ClientService

	farm         *types.Farm
	otherFarm    *types.Farm
	plant        *types.Plant
	seed         *types.Seed
	distributor  *types.Distributor
	distributor2 *types.Distributor
	client       *types.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)

	projectRepo := repos.NewProjectRepo(tx, log)
	qrRepo := repos.NewQRRepo(tx, log)
	clientRepo := repos.NewClientRepo(tx, log)
	referenceRepo := repos.NewReferenceRepo(tx, log)
	fakeLedger := ledger.NewFake()

	f := &fixture{
		tx:       tx,
		ledger:   fakeLedger,
		projects: services.NewProjectService(tx, log, projectRepo, referenceRepo),
		qr:       services.NewQRService(tx, log, qrRepo, projectRepo, clientRepo, referenceRepo, fakeLedger),
		clients:  services.NewClientService(tx, log, clientRepo, qrRepo),
	}

	f.farm = &types.Farm{Name: "Mekong Delta Farm", Address: "Can Tho"}
	f.otherFarm = &types.Farm{Name: "Highland Farm", Address: "Da Lat"}
	f.plant = &types.Plant{Name: "Rice"}
	for _, row := range []interface{}{f.farm, f.otherFarm, f.plant} {
		if err := tx.Create(row).Error; err != nil {
			t.Fatalf("seed reference row: %v", err)
		}
	}
	f.seed = &types.Seed{Name: "ST25", PlantID: f.plant.ID}
	f.distributor = &types.Distributor{Name: "Saigon Coop", Address: "HCMC"}
	f.distributor2 = &types.Distributor{Name: "Hanoi Fresh", Address: "Hanoi"}
	f.client = &types.Client{Name: "First Buyer", Address: "District 1"}
	for _, row := range []interface{}{f.seed, f.distributor, f.distributor2, f.client} {
		if err := tx.Create(row).Error; err != nil {
			t.Fatalf("seed reference row: %v", err)
		}
	}
	return f
}

func (f *fixture) newProject(t *testing.T) *types.Project {
	t.Helper()
	project, err := f.projects.InitiateProject(t.Context(), f.farm.ID, services.ProjectInput{
		PlantID:   f.plant.ID,
		SeedID:    f.seed.ID,
		StartDate: time.Now().AddDate(0, -3, 0),
		Square:    1.2,
	})
	if err != nil {
		t.Fatalf("initiate project: %v", err)
	}
	return project
}

func (f *fixture) newOutput(t *testing.T, project *types.Project, quantity int) *types.Output {
	t.Helper()
	output, err := f.projects.AddOutput(t.Context(), f.farm.ID, project.ID, services.OutputInput{
		Time:     time.Now(),
		Amount:   500,
		Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("add output: %v", err)
	}
	return output
}
