package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmatrix/matrix/pkg/models"
	"github.com/agentmatrix/matrix/pkg/persistence"
)

const testProject = "project-1"

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func saveRun(t *testing.T, p *Persistence, run *models.OvernightRun) {
	t.Helper()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	if run.ProjectID == "" {
		run.ProjectID = testProject
	}

	require.NoError(t, p.OvernightRunRepository().Save(t.Context(), run))
}

func TestRunRepository_SaveAndGet(t *testing.T) {
	p := newTestPersistence(t)

	run := &models.OvernightRun{
		ID:          "run-1",
		WorkflowIDs: []string{"w1", "w2"},
		Status:      models.RunStatusScheduled,
	}
	saveRun(t, p, run)

	stored, err := p.OvernightRunRepository().GetByID(t.Context(), testProject, "run-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, run.WorkflowIDs, stored.WorkflowIDs)
	assert.Equal(t, models.RunStatusScheduled, stored.Status)
}

func TestRunRepository_GetByID_Missing(t *testing.T) {
	p := newTestPersistence(t)

	stored, err := p.OvernightRunRepository().GetByID(t.Context(), testProject, "nope")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRunRepository_ProjectScoping(t *testing.T) {
	p := newTestPersistence(t)

	saveRun(t, p, &models.OvernightRun{ID: "run-1", ProjectID: "project-a", Status: models.RunStatusScheduled})

	stored, err := p.OvernightRunRepository().GetByID(t.Context(), "project-b", "run-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRunRepository_SoftDelete(t *testing.T) {
	p := newTestPersistence(t)
	repo := p.OvernightRunRepository()

	saveRun(t, p, &models.OvernightRun{ID: "run-1", Status: models.RunStatusScheduled})

	require.NoError(t, repo.Delete(t.Context(), testProject, "run-1"))

	stored, err := repo.GetByID(t.Context(), testProject, "run-1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	runs, err := repo.List(t.Context(), testProject, persistence.ListRunsOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)

	err = repo.Delete(t.Context(), testProject, "run-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrRunNotFound)
}

func TestRunRepository_List_FiltersAndOrder(t *testing.T) {
	p := newTestPersistence(t)
	repo := p.OvernightRunRepository()

	base := time.Now().UTC()
	early := base.Add(-2 * time.Hour)
	late := base.Add(2 * time.Hour)

	saveRun(t, p, &models.OvernightRun{
		ID: "run-old", Status: models.RunStatusCompleted,
		CreatedAt: base.Add(-time.Hour), ScheduledFor: &early,
	})
	saveRun(t, p, &models.OvernightRun{
		ID: "run-new", Status: models.RunStatusScheduled,
		CreatedAt: base, ScheduledFor: &late,
	})

	all, err := repo.List(t.Context(), testProject, persistence.ListRunsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "run-new", all[0].ID)
	assert.Equal(t, "run-old", all[1].ID)

	scheduled := models.RunStatusScheduled
	byStatus, err := repo.List(t.Context(), testProject, persistence.ListRunsOptions{Status: &scheduled})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "run-new", byStatus[0].ID)

	after, err := repo.List(t.Context(), testProject, persistence.ListRunsOptions{ScheduledAfter: &base})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "run-new", after[0].ID)

	paged, err := repo.List(t.Context(), testProject, persistence.ListRunsOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "run-old", paged[0].ID)
}

func TestRunRepository_ListDue(t *testing.T) {
	p := newTestPersistence(t)
	repo := p.OvernightRunRepository()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	earlier := now.Add(-2 * time.Hour)
	future := now.Add(time.Hour)

	saveRun(t, p, &models.OvernightRun{ID: "due-late", ProjectID: "project-a", Status: models.RunStatusScheduled, ScheduledFor: &past})
	saveRun(t, p, &models.OvernightRun{ID: "due-early", ProjectID: "project-b", Status: models.RunStatusScheduled, ScheduledFor: &earlier})
	saveRun(t, p, &models.OvernightRun{ID: "not-due", ProjectID: "project-a", Status: models.RunStatusScheduled, ScheduledFor: &future})
	saveRun(t, p, &models.OvernightRun{ID: "unscheduled", ProjectID: "project-a", Status: models.RunStatusScheduled})
	saveRun(t, p, &models.OvernightRun{ID: "already-running", ProjectID: "project-a", Status: models.RunStatusRunning, ScheduledFor: &past})

	due, err := repo.ListDue(t.Context(), now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "due-early", due[0].ID)
	assert.Equal(t, "due-late", due[1].ID)

	limited, err := repo.ListDue(t.Context(), now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "due-early", limited[0].ID)
}

func TestGateRepository_GetForStep(t *testing.T) {
	p := newTestPersistence(t)
	repo := p.GateRepository()

	gate := &models.Gate{
		ID:          "gate-1",
		ProjectID:   testProject,
		ExecutionID: "exec-1",
		StepID:      "deploy",
		GateType:    models.GateTypeApproval,
		Status:      models.GateStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(t.Context(), gate))

	found, err := repo.GetForStep(t.Context(), testProject, "exec-1", "deploy")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "gate-1", found.ID)

	missing, err := repo.GetForStep(t.Context(), testProject, "exec-1", "other-step")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.GetForStep(t.Context(), testProject, "exec-2", "deploy")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInterventionRepository_List_ArrivalOrder(t *testing.T) {
	p := newTestPersistence(t)
	repo := p.InterventionRepository()

	base := time.Now().UTC()

	for i, id := range []string{"i-c", "i-a", "i-b"} {
		require.NoError(t, repo.Save(t.Context(), &models.Intervention{
			ID:               id,
			ProjectID:        testProject,
			ExecutionID:      "exec-1",
			InterventionType: models.InterventionTypePause,
			Status:           models.InterventionStatusPending,
			CreatedAt:        base.Add(time.Duration(i) * time.Second),
		}))
	}

	listed, err := repo.List(t.Context(), testProject, persistence.ListInterventionsOptions{ExecutionID: "exec-1"})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "i-c", listed[0].ID)
	assert.Equal(t, "i-a", listed[1].ID)
	assert.Equal(t, "i-b", listed[2].ID)
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	repo := p.WorkflowRepository()

	workflow := &models.Workflow{
		ID:        "wf-1",
		ProjectID: testProject,
		Name:      "nightly batch",
		Steps:     []models.WorkflowStep{{ID: "s1", Name: "plan"}},
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Save(t.Context(), workflow))

	stored, err := repo.GetByID(t.Context(), testProject, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, workflow.Name, stored.Name)
	require.Len(t, stored.Steps, 1)
	assert.Equal(t, "s1", stored.Steps[0].ID)

	require.NoError(t, repo.Delete(t.Context(), testProject, "wf-1"))

	stored, err = repo.GetByID(t.Context(), testProject, "wf-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := newTestPersistence(t)

	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))
}
