package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kliklens/studioops/internal/models"
)

// The balance of a funding source must equal its opening balance plus the
// signed sum of its transactions after any sequence of operations.
func TestLedgerService_SourceReconciliation(t *testing.T) {
	env := newTestEnv(t, "testdb_ledger_reconciliation")
	ctx := context.Background()

	const opening = int64(2_000_000)
	source := env.createSource(t, "BCA", opening)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	item, err := env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 300_000)
	require.NoError(t, err)
	_, err = env.settlement.Settle(ctx, project.ID, item.ID, source.ID)
	require.NoError(t, err)

	err = env.recalc.CorrectSettledItem(ctx, project.ID, item.ID, 500_000)
	require.NoError(t, err)

	_, err = env.projects.RecordClientPayment(ctx, project.ID, 1_000_000, source.ID, "")
	require.NoError(t, err)

	_, err = env.recalc.AddSettledCost(ctx, project.ID, models.CostTransport, "Fuel", 150_000, source.ID)
	require.NoError(t, err)

	sum, err := env.ledger.SumBySource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(350_000), sum)

	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, opening+sum, balance)
	assert.Equal(t, int64(2_350_000), balance)
}

func TestLedgerService_FirstPaymentIsDeposit(t *testing.T) {
	env := newTestEnv(t, "testdb_ledger_deposit_category")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 0)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	first, err := env.projects.RecordClientPayment(ctx, project.ID, 500_000, source.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDeposit, first.Category)

	second, err := env.projects.RecordClientPayment(ctx, project.ID, 1_500_000, source.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPayment, second.Category)
}
