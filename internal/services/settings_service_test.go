package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kliklens/studioops/internal/models"
)

func TestSettingsService_Values(t *testing.T) {
	env := newTestEnv(t, "testdb_settings_values")
	ctx := context.Background()

	err := env.settings.SetValue(ctx, "MAX_ACTIVE_PROJECTS", 25, false)
	require.NoError(t, err)
	assert.Equal(t, 25, env.settings.GetInt(ctx, "MAX_ACTIVE_PROJECTS", 10))
	assert.Equal(t, 10, env.settings.GetInt(ctx, "MISSING_KEY", 10))

	err = env.settings.SetValue(ctx, "STUDIO_NAME", "KlikLens", true)
	require.NoError(t, err)
	assert.Equal(t, "KlikLens", env.settings.GetString(ctx, "STUDIO_NAME", "fallback"))

	// Config-backed keys resolve without a stored entry.
	assert.Equal(t, "StudioOps", env.settings.GetString(ctx, "APP_NAME", "fallback"))

	public, err := env.settings.GetAllPublic(ctx)
	require.NoError(t, err)
	assert.Equal(t, "KlikLens", public["STUDIO_NAME"])
	assert.NotContains(t, public, "MAX_ACTIVE_PROJECTS")
	assert.Equal(t, "IDR", public["CURRENCY_CODE"])
}

func TestSettingsService_WorkflowConfig(t *testing.T) {
	env := newTestEnv(t, "testdb_settings_workflow")
	ctx := context.Background()

	// Without a stored pipeline the default applies.
	cfg := env.settings.GetWorkflowConfig(ctx)
	assert.NotEmpty(t, cfg.Statuses)

	custom := models.WorkflowConfig{Statuses: []models.WorkflowStatus{
		{Name: "Intake", Progress: 0},
		{Name: "Shoot", Progress: 50, SubStatuses: []string{"Gear packed"}},
		{Name: "Done", Progress: 100},
	}}
	err := env.settings.SetWorkflowConfig(ctx, custom)
	require.NoError(t, err)

	stored := env.settings.GetWorkflowConfig(ctx)
	require.Len(t, stored.Statuses, 3)
	assert.Equal(t, "Shoot", stored.Statuses[1].Name)
}

func TestSettingsService_WorkflowConfigValidation(t *testing.T) {
	env := newTestEnv(t, "testdb_settings_workflow_invalid")
	ctx := context.Background()

	err := env.settings.SetWorkflowConfig(ctx, models.WorkflowConfig{})
	assert.ErrorIs(t, err, ErrValidationFailed)

	err = env.settings.SetWorkflowConfig(ctx, models.WorkflowConfig{Statuses: []models.WorkflowStatus{
		{Name: "A", Progress: 10},
		{Name: "A", Progress: 20},
	}})
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Cancelled is built in and cannot be redefined.
	err = env.settings.SetWorkflowConfig(ctx, models.WorkflowConfig{Statuses: []models.WorkflowStatus{
		{Name: models.StatusCancelled, Progress: 0},
	}})
	assert.ErrorIs(t, err, ErrValidationFailed)

	err = env.settings.SetWorkflowConfig(ctx, models.WorkflowConfig{Statuses: []models.WorkflowStatus{
		{Name: "A", Progress: 120},
	}})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
