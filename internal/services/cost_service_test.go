package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kliklens/studioops/internal/models"
)

func TestCostService_AddEditRemove(t *testing.T) {
	env := newTestEnv(t, "testdb_cost_lifecycle")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	item, err := env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 300_000)
	require.NoError(t, err)
	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2_300_000), updated.TotalCost)

	_, err = env.costs.EditItem(ctx, project.ID, item.ID, "Album 30x30", 450_000)
	require.NoError(t, err)
	updated, err = env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "Album 30x30", updated.CostItem(item.ID).Label)
	assert.Equal(t, int64(450_000), updated.CostItem(item.ID).Amount)
	assert.Equal(t, int64(2_450_000), updated.TotalCost)

	err = env.costs.RemoveItem(ctx, project.ID, item.ID)
	require.NoError(t, err)
	updated, err = env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.CostItem(item.ID))
	assert.Equal(t, int64(2_000_000), updated.TotalCost)
}

func TestCostService_ConcurrentAddsKeepTotal(t *testing.T) {
	env := newTestEnv(t, "testdb_cost_concurrent")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	// 10 concurrent additions of 100_000 each; every delta must land.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.costs.AddItem(ctx, project.ID, "Print run", models.CostPrinting, 100_000)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, updated.CostItems, 10)
	assert.Equal(t, int64(3_000_000), updated.TotalCost)
}

func TestCostService_Validation(t *testing.T) {
	env := newTestEnv(t, "testdb_cost_validation")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)

	_, err := env.costs.AddItem(ctx, project.ID, "", models.CostPrinting, 100_000)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 0)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.costs.AddItem(ctx, project.ID, "Album", models.CostCategory("snacks"), 100_000)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCostService_PaidItemsAreLocked(t *testing.T) {
	env := newTestEnv(t, "testdb_cost_locked")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	item, err := env.costs.AddItem(ctx, project.ID, "Album", models.CostPrinting, 300_000)
	require.NoError(t, err)
	_, err = env.settlement.Settle(ctx, project.ID, item.ID, source.ID)
	require.NoError(t, err)

	_, err = env.costs.EditItem(ctx, project.ID, item.ID, "Album XL", 400_000)
	assert.ErrorIs(t, err, ErrItemLocked)

	err = env.costs.RemoveItem(ctx, project.ID, item.ID)
	assert.ErrorIs(t, err, ErrItemLocked)

	// The paid item and the total are untouched.
	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), updated.CostItem(item.ID).Amount)
	assert.Equal(t, int64(2_300_000), updated.TotalCost)
}

func TestCostService_SeedPrintingItems(t *testing.T) {
	env := newTestEnv(t, "testdb_cost_seed")
	ctx := context.Background()

	project := env.createProject(t, "Wedding Ayu", 2_000_000)
	pkg := &models.Package{PhysicalItems: []models.PhysicalItem{
		{Label: "Album 30x30", Cost: 250_000},
		{Label: "Digital gallery", Cost: 0},
		{Label: "Canvas 60x90", Cost: 400_000},
	}}

	err := env.costs.SeedPrintingItems(ctx, project.ID, pkg)
	require.NoError(t, err)

	// Zero-cost deliverables never become cost items.
	updated, err := env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, updated.CostItems, 2)
	for _, it := range updated.CostItems {
		assert.Equal(t, models.CostPrinting, it.Category)
		assert.Equal(t, models.CostUnpaid, it.Status)
	}
	assert.Equal(t, int64(2_650_000), updated.TotalCost)

	// Seeding with no billable items is a no-op.
	err = env.costs.SeedPrintingItems(ctx, project.ID, &models.Package{})
	require.NoError(t, err)
	err = env.costs.SeedPrintingItems(ctx, project.ID, nil)
	require.NoError(t, err)
	updated, err = env.projects.FindByID(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, updated.CostItems, 2)
}
