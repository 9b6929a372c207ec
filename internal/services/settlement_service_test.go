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

func TestSettlementService_Settle(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_settle")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	item, err := env.costs.AddItem(ctx, project.ID, "Album print", models.CostPrinting, 300_000)
	require.NoError(t, err)

	tx, err := env.settlement.Settle(ctx, project.ID, item.ID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-300_000), tx.Amount)
	assert.Equal(t, models.CategoryPrinting, tx.Category)
	require.NotNil(t, tx.CostItemID)
	assert.Equal(t, item.ID, *tx.CostItemID)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700_000), balance)

	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	got := updated.CostItem(item.ID)
	require.NotNil(t, got)
	assert.Equal(t, models.CostPaid, got.Status)
	require.NotNil(t, got.FundingSourceID)
	assert.Equal(t, source.ID, *got.FundingSourceID)
	require.NotNil(t, got.PaidAt)

	// Settlement never changes the project total, only the item status.
	assert.Equal(t, int64(2_300_000), updated.TotalCost)

	// Second settlement of the same item must be rejected.
	_, err = env.settlement.Settle(ctx, project.ID, item.ID, source.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestSettlementService_SettleAfterEdit(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_after_edit")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	item, err := env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 200_000)
	require.NoError(t, err)
	_, err = env.costs.EditItem(ctx, project.ID, item.ID, "", 500_000)
	require.NoError(t, err)

	// Settlement debits the edited amount, never the original one.
	tx, err := env.settlement.Settle(ctx, project.ID, item.ID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-500_000), tx.Amount)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), balance)

	// Exactly one transaction for the item.
	txs, err := env.ledger.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)

	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), updated.TotalCost)
}

func TestSettlementService_StaleAmountUndone(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_stale")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	created := env.createProject(t, "Wedding Ayu", 2_000_000)
	item, err := env.costs.AddItem(ctx, created.ID, "Album", models.CostPrinting, 200_000)
	require.NoError(t, err)

	svc := env.settlement.(*settlementService)
	project, stale, err := svc.loadItem(ctx, created.ID, item.ID)
	require.NoError(t, err)

	// The item is edited after the settlement loaded it.
	_, err = env.costs.EditItem(ctx, created.ID, item.ID, "", 500_000)
	require.NoError(t, err)

	// The flip guard misses the stale amount and the whole unit is undone.
	_, err = svc.settleItem(ctx, project, stale, source.ID)
	require.Error(t, err)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance)
	_, err = env.ledger.FindByCostItem(ctx, item.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	updated, err := env.projects.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CostUnpaid, updated.CostItem(item.ID).Status)
	assert.Equal(t, int64(500_000), updated.CostItem(item.ID).Amount)

	// A fresh settlement then pays the current amount.
	tx, err := env.settlement.Settle(ctx, created.ID, item.ID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-500_000), tx.Amount)
}

func TestSettlementService_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_insufficient")
	ctx := context.Background()

	source := env.createSource(t, "Cash", 100_000)
	project := env.createProject(t, "Engagement Dina", 1_000_000)
	item, err := env.costs.AddItem(ctx, project.ID, "Transport", models.CostTransport, 250_000)
	require.NoError(t, err)

	_, err = env.settlement.Settle(ctx, project.ID, item.ID, source.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Nothing may have been written: balance intact, item Unpaid, no ledger
	// entry for the item.
	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), balance)

	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CostUnpaid, updated.CostItem(item.ID).Status)

	_, err = env.ledger.FindByCostItem(ctx, item.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestSettlementService_SettleBatch(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_batch")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	itemA, err := env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 100_000)
	require.NoError(t, err)
	itemB, err := env.costs.AddItem(ctx, project.ID, "Frame", models.CostPrinting, 200_000)
	require.NoError(t, err)

	txs, err := env.settlement.SettleBatch(ctx, project.ID, []utils.SixID{itemA.ID, itemB.ID}, source.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700_000), balance)

	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CostPaid, updated.CostItem(itemA.ID).Status)
	assert.Equal(t, models.CostPaid, updated.CostItem(itemB.ID).Status)
}

func TestSettlementService_BatchPreValidation(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_batch_prevalidate")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 250_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	itemA, err := env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 100_000)
	require.NoError(t, err)
	itemB, err := env.costs.AddItem(ctx, project.ID, "Frame", models.CostPrinting, 200_000)
	require.NoError(t, err)

	// The batch sum exceeds the balance even though each item alone would
	// fit, so nothing settles.
	_, err = env.settlement.SettleBatch(ctx, project.ID, []utils.SixID{itemA.ID, itemB.ID}, source.ID)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250_000), balance)

	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CostUnpaid, updated.CostItem(itemA.ID).Status)
	assert.Equal(t, models.CostUnpaid, updated.CostItem(itemB.ID).Status)

	// A batch containing an already-paid item is rejected as a whole.
	_, err = env.settlement.Settle(ctx, project.ID, itemA.ID, source.ID)
	require.NoError(t, err)
	_, err = env.settlement.SettleBatch(ctx, project.ID, []utils.SixID{itemA.ID, itemB.ID}, source.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	_, err = env.settlement.SettleBatch(ctx, project.ID, nil, source.ID)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSettlementService_SettleTeamPayment(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_teampay")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	memberID := utils.NewSixID()
	records, err := env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: memberID, Role: "Photographer", Fee: 400_000, Reward: 50_000},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	tx, err := env.settlement.SettleTeamPayment(ctx, records[0].ID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-450_000), tx.Amount)
	assert.Equal(t, models.CategoryTeamFee, tx.Category)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(550_000), balance)

	record, err := env.teamPay.FindByID(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamPaymentPaid, record.Status)

	_, err = env.settlement.SettleTeamPayment(ctx, records[0].ID, source.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestSettlementService_OrphanedTeamPaymentRejected(t *testing.T) {
	env := newTestEnv(t, "testdb_settlement_orphaned")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	memberID := utils.NewSixID()
	records, err := env.teamPay.RegenerateForProject(ctx, project.ID, []models.TeamAssignment{
		{MemberID: memberID, Role: "Editor", Fee: 300_000},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Settle, then drop the member so the record goes orphaned.
	_, err = env.settlement.SettleTeamPayment(ctx, records[0].ID, source.ID)
	require.NoError(t, err)
	_, err = env.teamPay.RegenerateForProject(ctx, project.ID, nil)
	require.NoError(t, err)

	record, err := env.teamPay.FindByID(ctx, records[0].ID)
	require.NoError(t, err)
	assert.True(t, record.Orphaned)

	_, err = env.settlement.SettleTeamPayment(ctx, records[0].ID, source.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}
