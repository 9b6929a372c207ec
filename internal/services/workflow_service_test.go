package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestWorkflowService_SetStatus(t *testing.T) {
	env := newTestEnv(t, "testdb_workflow_setstatus")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	assert.Equal(t, "Preparation", project.Status)
	assert.Equal(t, 0, project.Progress)

	// Tick a sub-status, then move on; the active set must reset with the
	// status in the same write.
	updated, err := env.workflow.ToggleSubStatus(ctx, project.ID, "Moodboard ready", true)
	require.NoError(t, err)
	assert.Contains(t, updated.ActiveSubStatuses, "Moodboard ready")

	updated, err = env.workflow.SetStatus(ctx, project.ID, "Editing")
	require.NoError(t, err)
	assert.Equal(t, "Editing", updated.Status)
	assert.Equal(t, 40, updated.Progress)
	assert.Empty(t, updated.ActiveSubStatuses)

	_, err = env.workflow.SetStatus(ctx, project.ID, "NoSuchStatus")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Cancelled is always reachable and carries no progress.
	updated, err = env.workflow.SetStatus(ctx, project.ID, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, "Cancelled", updated.Status)
	assert.Equal(t, 0, updated.Progress)
}

func TestWorkflowService_ToggleSubStatusChecklist(t *testing.T) {
	env := newTestEnv(t, "testdb_workflow_toggle")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	// "Culling done" belongs to Editing, not Preparation.
	_, err := env.workflow.ToggleSubStatus(ctx, project.ID, "Culling done", true)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.workflow.SetStatus(ctx, project.ID, "Editing")
	require.NoError(t, err)
	updated, err := env.workflow.ToggleSubStatus(ctx, project.ID, "Culling done", true)
	require.NoError(t, err)
	assert.Contains(t, updated.ActiveSubStatuses, "Culling done")

	updated, err = env.workflow.ToggleSubStatus(ctx, project.ID, "Culling done", false)
	require.NoError(t, err)
	assert.NotContains(t, updated.ActiveSubStatuses, "Culling done")
}

func TestWorkflowService_ConfirmationCycle(t *testing.T) {
	env := newTestEnv(t, "testdb_workflow_confirmation")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	_, err := env.workflow.SetStatus(ctx, project.ID, "Editing")
	require.NoError(t, err)

	_, err = env.workflow.RequestConfirmation(ctx, project.ID, "Preview shared", "")
	assert.ErrorIs(t, err, ErrValidationFailed)

	updated, err := env.workflow.RequestConfirmation(ctx, project.ID, "Preview shared", "siti@example.com")
	require.NoError(t, err)
	info := updated.SubStatusInfo["Preview shared"]
	require.NotNil(t, info.SentAt)
	assert.Equal(t, "siti@example.com", info.Recipient)

	updated, err = env.workflow.RecordClientConfirmation(ctx, project.ID, "Preview shared", "looks great")
	require.NoError(t, err)
	assert.Contains(t, updated.ConfirmedSubStatuses, "Preview shared")
	assert.Equal(t, "looks great", updated.SubStatusInfo["Preview shared"].ClientNote)

	// Confirming twice stays a single entry.
	updated, err = env.workflow.RecordClientConfirmation(ctx, project.ID, "Preview shared", "")
	require.NoError(t, err)
	assert.Len(t, updated.ConfirmedSubStatuses, 1)

	// Re-requesting a confirmed sub-status is refused.
	_, err = env.workflow.RequestConfirmation(ctx, project.ID, "Preview shared", "siti@example.com")
	assert.ErrorIs(t, err, ErrValidationFailed)

	// A later status move never retracts the confirmation.
	updated, err = env.workflow.SetStatus(ctx, project.ID, "Print")
	require.NoError(t, err)
	assert.Contains(t, updated.ConfirmedSubStatuses, "Preview shared")
}

func TestWorkflowService_PendingFollowUps(t *testing.T) {
	env := newTestEnv(t, "testdb_workflow_followups")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	_, err := env.workflow.SetStatus(ctx, project.ID, "Editing")
	require.NoError(t, err)
	_, err = env.workflow.RequestConfirmation(ctx, project.ID, "Preview shared", "siti@example.com")
	require.NoError(t, err)

	// Fresh request: nothing is overdue yet.
	items, err := env.workflow.PendingFollowUps(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Backdate the request to 25 hours ago.
	sentAt := time.Now().UTC().Add(-25 * time.Hour)
	_, err = env.db.Collection("projects").UpdateByID(ctx, project.ID,
		bson.M{"$set": bson.M{"sub_status_info.Preview shared.sent_at": sentAt}})
	require.NoError(t, err)

	items, err = env.workflow.PendingFollowUps(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, project.ID, items[0].ProjectID)
	assert.Equal(t, "Preview shared", items[0].SubStatus)
	assert.Equal(t, "siti@example.com", items[0].Recipient)

	// Confirmation clears the pending follow-up.
	_, err = env.workflow.RecordClientConfirmation(ctx, project.ID, "Preview shared", "")
	require.NoError(t, err)
	items, err = env.workflow.PendingFollowUps(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, items)
}
