package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

func recordFor(records []models.TeamPaymentRecord, memberID utils.SixID) *models.TeamPaymentRecord {
	for i := range records {
		if records[i].MemberID == memberID {
			return &records[i]
		}
	}
	return nil
}

func TestTeamPaymentService_Regenerate(t *testing.T) {
	env := newTestEnv(t, "testdb_teampay_regenerate")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	photographer := utils.NewSixID()
	editor := utils.NewSixID()

	records, err := env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: photographer, Role: "Photographer", Fee: 400_000, Reward: 50_000},
		{MemberID: editor, Role: "Editor", Fee: 300_000},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.TeamPaymentUnpaid, records[0].Status)

	// An unpaid record tracks the assignment on regeneration.
	records, err = env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: photographer, Role: "Lead Photographer", Fee: 500_000, Reward: 50_000},
		{MemberID: editor, Role: "Editor", Fee: 300_000},
	})
	require.NoError(t, err)
	got := recordFor(records, photographer)
	require.NotNil(t, got)
	assert.Equal(t, "Lead Photographer", got.Role)
	assert.Equal(t, int64(500_000), got.Fee)

	// Removing an unpaid member deletes the record.
	records, err = env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: photographer, Role: "Lead Photographer", Fee: 500_000, Reward: 50_000},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, recordFor(records, editor))
}

func TestTeamPaymentService_PaidRecordsAreHistory(t *testing.T) {
	env := newTestEnv(t, "testdb_teampay_paid")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	memberID := utils.NewSixID()

	records, err := env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: memberID, Role: "Photographer", Fee: 400_000, Reward: 50_000},
	})
	require.NoError(t, err)
	_, err = env.settlement.SettleTeamPayment(ctx, records[0].ID, source.ID)
	require.NoError(t, err)

	// A paid record keeps its settled amounts even if the assignment changes.
	records, err = env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: memberID, Role: "Photographer", Fee: 999_000, Reward: 0},
	})
	require.NoError(t, err)
	got := recordFor(records, memberID)
	require.NotNil(t, got)
	assert.Equal(t, models.TeamPaymentPaid, got.Status)
	assert.Equal(t, int64(400_000), got.Fee)
	assert.Equal(t, int64(50_000), got.Reward)

	// Removing a paid member orphans the record instead of deleting it.
	records, err = env.teamPay.RegenerateForProject(ctx, project.ID, nil)
	require.NoError(t, err)
	got = recordFor(records, memberID)
	require.NotNil(t, got)
	assert.True(t, got.Orphaned)
	assert.Equal(t, models.TeamPaymentPaid, got.Status)

	// Re-adding the member revives the record.
	records, err = env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: memberID, Role: "Photographer", Fee: 400_000, Reward: 50_000},
	})
	require.NoError(t, err)
	got = recordFor(records, memberID)
	require.NotNil(t, got)
	assert.False(t, got.Orphaned)
}

func TestTeamPaymentService_DeleteByProject(t *testing.T) {
	env := newTestEnv(t, "testdb_teampay_delete")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	records, err := env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: utils.NewSixID(), Role: "Photographer", Fee: 400_000},
	})
	require.NoError(t, err)

	err = env.teamPay.DeleteByProject(ctx, project.ID)
	require.NoError(t, err)
	_, err = env.teamPay.FindByID(ctx, records[0].ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}
