package repos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/repos/testutil"
	"github.com/agritrace/agritrace-backend/internal/types"
)

func seedProject(t *testing.T, tx *gorm.DB) *types.Project {
	t.Helper()
	farm := &types.Farm{Name: "Mekong Delta Farm", Address: "Can Tho"}
	if err := tx.Create(farm).Error; err != nil {
		t.Fatalf("create farm: %v", err)
	}
	plant := &types.Plant{Name: "Rice"}
	if err := tx.Create(plant).Error; err != nil {
		t.Fatalf("create plant: %v", err)
	}
	seed := &types.Seed{Name: "ST25", PlantID: plant.ID}
	if err := tx.Create(seed).Error; err != nil {
		t.Fatalf("create seed: %v", err)
	}
	project := &types.Project{
		FarmID:        farm.ID,
		PlantID:       plant.ID,
		SeedID:        seed.ID,
		StartDate:     time.Now().AddDate(0, -2, 0),
		Square:        1.5,
		Status:        types.StatusInProgress,
		CreatedAtTime: time.Now(),
	}
	if err := tx.Create(project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func TestProjectSaveSubResourcesRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	repo := repos.NewProjectRepo(db, log)
	ctx := context.Background()

	project := seedProject(t, tx)

	processes := datatypes.NewJSONSlice([]types.Process{
		{
			ID:          uuid.New(),
			Time:        time.Now(),
			Type:        types.ProcessCultivation,
			Cultivation: &types.CultivationActivity{Name: "weeding", Description: "manual weeding"},
		},
	})
	columns := map[string]interface{}{
		"processes": processes,
	}
	if err := repo.SaveSubResources(ctx, tx, project.ID, columns); err != nil {
		t.Fatalf("save sub-resources: %v", err)
	}
	if _, ok := columns["updated_at"]; ok {
		t.Fatalf("repo must not mutate the caller's column map")
	}

	got, err := repo.GetByID(ctx, tx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got == nil {
		t.Fatalf("project not found after save")
	}
	if len(got.Processes) != 1 {
		t.Fatalf("expected 1 process, got %d", len(got.Processes))
	}
	p := got.Processes[0]
	if p.Type != types.ProcessCultivation || p.Cultivation == nil || p.Cultivation.Name != "weeding" {
		t.Fatalf("process did not round-trip: %+v", p)
	}
	if len(got.Expectations) != 0 || len(got.Outputs) != 0 {
		t.Fatalf("untouched collections must stay empty")
	}
}

func TestProjectUpdateInfoAndSoftDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	repo := repos.NewProjectRepo(db, log)
	ctx := context.Background()

	project := seedProject(t, tx)

	history := datatypes.NewJSONSlice([]types.ProjectInfoSnapshot{project.InfoSnapshot(time.Now())})
	updates := map[string]interface{}{
		"description":    "late season lot",
		"square":         2.0,
		"is_info_edited": true,
		"info_history":   history,
	}
	if err := repo.UpdateInfo(ctx, tx, project.ID, updates); err != nil {
		t.Fatalf("update info: %v", err)
	}
	if _, ok := updates["updated_at"]; ok {
		t.Fatalf("repo must not mutate the caller's update map")
	}

	got, err := repo.GetByID(ctx, tx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Description != "late season lot" || got.Square != 2.0 || !got.IsInfoEdited {
		t.Fatalf("info update not applied: %+v", got)
	}
	if len(got.InfoHistory) != 1 {
		t.Fatalf("expected one info snapshot, got %d", len(got.InfoHistory))
	}

	if err := repo.SoftDelete(ctx, tx, project.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	gone, err := repo.GetByID(ctx, tx, project.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if gone != nil {
		t.Fatalf("soft-deleted project still readable")
	}
}

func TestProjectListByFarm(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	repo := repos.NewProjectRepo(db, log)
	ctx := context.Background()

	project := seedProject(t, tx)

	list, err := repo.ListByFarm(ctx, tx, project.FarmID, 10, 0)
	if err != nil {
		t.Fatalf("list by farm: %v", err)
	}
	if len(list) != 1 || list[0].ID != project.ID {
		t.Fatalf("expected the seeded project, got %d rows", len(list))
	}

	none, err := repo.ListByFarm(ctx, tx, uuid.New(), 10, 0)
	if err != nil {
		t.Fatalf("list by other farm: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no projects for unknown farm")
	}
}
