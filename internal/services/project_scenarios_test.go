package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agritrace/agritrace-backend/internal/apperr"
	"github.com/agritrace/agritrace-backend/internal/repos"
	"github.com/agritrace/agritrace-backend/internal/repos/testutil"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/types"
)

func TestUpdateProjectInfoAppendsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	project := f.newProject(t)

	desc1 := "first revision"
	updated, err := f.projects.UpdateProjectInfo(ctx, f.farm.ID, project.ID, services.ProjectInfoPatch{
		Description: &desc1,
	})
	if err != nil {
		t.Fatalf("first info update: %v", err)
	}
	if !updated.IsInfoEdited || len(updated.InfoHistory) != 1 {
		t.Fatalf("expected one info snapshot, got %d", len(updated.InfoHistory))
	}
	if updated.InfoHistory[0].Description != "" {
		t.Fatalf("snapshot must hold the pre-update description")
	}

	desc2 := "second revision"
	square := 3.5
	updated, err = f.projects.UpdateProjectInfo(ctx, f.farm.ID, project.ID, services.ProjectInfoPatch{
		Description: &desc2,
		Square:      &square,
	})
	if err != nil {
		t.Fatalf("second info update: %v", err)
	}
	if len(updated.InfoHistory) != 2 {
		t.Fatalf("expected two info snapshots, got %d", len(updated.InfoHistory))
	}
	if updated.InfoHistory[1].Description != desc1 {
		t.Fatalf("second snapshot must hold the first revision")
	}
	if updated.Description != desc2 || updated.Square != square {
		t.Fatalf("patch not applied: %+v", updated)
	}
}

func TestFinishingProjectStampsEndDateAndFreezesIt(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	project := f.newProject(t)

	finished := types.StatusFinished
	updated, err := f.projects.UpdateProjectInfo(ctx, f.farm.ID, project.ID, services.ProjectInfoPatch{
		Status: &finished,
	})
	if err != nil {
		t.Fatalf("finish project: %v", err)
	}
	if updated.Status != types.StatusFinished || updated.EndDate == nil {
		t.Fatalf("expected finished project with stamped end date")
	}

	desc := "after the fact"
	if _, err := f.projects.UpdateProjectInfo(ctx, f.farm.ID, project.ID, services.ProjectInfoPatch{
		Description: &desc,
	}); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid_input on finished project, got %v", err)
	}

	if _, err := f.projects.AddProcess(ctx, f.farm.ID, project.ID, services.ProcessInput{
		Time:  time.Now(),
		Type:  types.ProcessOther,
		Other: &types.OtherActivity{Description: "too late"},
	}); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid_input adding records to finished project, got %v", err)
	}
}

func TestProcessUpdateHistoryAndTombstone(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	project := f.newProject(t)

	process, err := f.projects.AddProcess(ctx, f.farm.ID, project.ID, services.ProcessInput{
		Time:        time.Now(),
		Type:        types.ProcessCultivation,
		Cultivation: &types.CultivationActivity{Name: "weeding", Description: "manual"},
	})
	if err != nil {
		t.Fatalf("add process: %v", err)
	}

	updated, err := f.projects.UpdateProcess(ctx, f.farm.ID, project.ID, process.ID, services.ProcessInput{
		Time:        time.Now(),
		Type:        types.ProcessCultivation,
		Cultivation: &types.CultivationActivity{Name: "weeding", Description: "mechanical"},
	})
	if err != nil {
		t.Fatalf("update process: %v", err)
	}
	if !updated.IsEdited || len(updated.History) != 1 {
		t.Fatalf("expected one snapshot after first update, got %d", len(updated.History))
	}
	if updated.History[0].Cultivation.Description != "manual" {
		t.Fatalf("snapshot must hold the prior payload")
	}

	updated, err = f.projects.UpdateProcess(ctx, f.farm.ID, project.ID, process.ID, services.ProcessInput{
		Time:  time.Now(),
		Type:  types.ProcessOther,
		Other: &types.OtherActivity{Description: "reclassified"},
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if len(updated.History) != 2 {
		t.Fatalf("expected two snapshots, got %d", len(updated.History))
	}
	if updated.History[1].Cultivation == nil || updated.History[1].Cultivation.Description != "mechanical" {
		t.Fatalf("second snapshot must hold the second revision")
	}

	if err := f.projects.DeleteProcess(ctx, f.farm.ID, project.ID, process.ID); err != nil {
		t.Fatalf("delete process: %v", err)
	}

	live, err := f.projects.ListProcesses(ctx, project.ID)
	if err != nil {
		t.Fatalf("list processes: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("deleted process must not appear in live list")
	}

	deleted, err := f.projects.ListDeletedItems(ctx, f.farm.ID, project.ID)
	if err != nil {
		t.Fatalf("list deleted items: %v", err)
	}
	if len(deleted.Processes) != 1 {
		t.Fatalf("expected tombstoned process in deleted items")
	}
	if len(deleted.Processes[0].History) != 2 {
		t.Fatalf("tombstone must keep the full history")
	}

	if _, err := f.projects.UpdateProcess(ctx, f.farm.ID, project.ID, process.ID, services.ProcessInput{
		Time:  time.Now(),
		Type:  types.ProcessOther,
		Other: &types.OtherActivity{Description: "necromancy"},
	}); apperr.CodeOf(err) != apperr.CodeAlreadyDeleted {
		t.Fatalf("expected already_deleted, got %v", err)
	}
	if err := f.projects.DeleteProcess(ctx, f.farm.ID, project.ID, process.ID); apperr.CodeOf(err) != apperr.CodeAlreadyDeleted {
		t.Fatalf("expected already_deleted on repeat delete, got %v", err)
	}
}

func TestConcurrentProcessWritersBothPersist(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	projectRepo := repos.NewProjectRepo(db, log)
	referenceRepo := repos.NewReferenceRepo(db, log)
	svc := services.NewProjectService(db, log, projectRepo, referenceRepo)
	ctx := context.Background()

	// Committed rows on the pooled connection: the two writers must run on
	// separate sessions for the row lock to matter.
	farm := &types.Farm{Name: "Lockstep Farm", Address: "Ben Tre"}
	plant := &types.Plant{Name: "Mango"}
	for _, row := range []interface{}{farm, plant} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed reference row: %v", err)
		}
	}
	seed := &types.Seed{Name: "Cat Chu", PlantID: plant.ID}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed seed row: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("id = ?", seed.ID).Delete(&types.Seed{})
		db.Unscoped().Where("id = ?", plant.ID).Delete(&types.Plant{})
		db.Unscoped().Where("id = ?", farm.ID).Delete(&types.Farm{})
	})

	project, err := svc.InitiateProject(ctx, farm.ID, services.ProjectInput{
		PlantID:   plant.ID,
		SeedID:    seed.ID,
		StartDate: time.Now().AddDate(0, -1, 0),
		Square:    1.0,
	})
	if err != nil {
		t.Fatalf("initiate project: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("id = ?", project.ID).Delete(&types.Project{})
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddProcess(ctx, farm.ID, project.ID, services.ProcessInput{
				Time:  time.Now(),
				Type:  types.ProcessOther,
				Other: &types.OtherActivity{Description: fmt.Sprintf("writer %d", i)},
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	got, err := svc.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(got.Processes) != 2 {
		t.Fatalf("expected both concurrent processes persisted, got %d", len(got.Processes))
	}
}

func TestProjectOwnershipIsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	project := f.newProject(t)

	desc := "trespassing"
	if _, err := f.projects.UpdateProjectInfo(ctx, f.otherFarm.ID, project.ID, services.ProjectInfoPatch{
		Description: &desc,
	}); apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}
	if err := f.projects.DeleteProject(ctx, f.otherFarm.ID, project.ID); apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("expected permission_denied on delete, got %v", err)
	}
}

func TestExpectationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	project := f.newProject(t)

	expectation, err := f.projects.AddExpectation(ctx, f.farm.ID, project.ID, services.ExpectationInput{
		Time:   time.Now(),
		Amount: 1200,
		Note:   "optimistic",
	})
	if err != nil {
		t.Fatalf("add expectation: %v", err)
	}

	updated, err := f.projects.UpdateExpectation(ctx, f.farm.ID, project.ID, expectation.ID, services.ExpectationInput{
		Time:   time.Now(),
		Amount: 900,
		Note:   "revised after storm",
	})
	if err != nil {
		t.Fatalf("update expectation: %v", err)
	}
	if len(updated.History) != 1 || updated.History[0].Amount != 1200 {
		t.Fatalf("expected prior amount in history, got %+v", updated.History)
	}

	if _, err := f.projects.AddExpectation(ctx, f.farm.ID, project.ID, services.ExpectationInput{
		Amount: -5,
	}); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid_input for negative amount, got %v", err)
	}
}
