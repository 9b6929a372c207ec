package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kliklens/studioops/internal/models"
)

func TestFundingService_Create(t *testing.T) {
	env := newTestEnv(t, "testdb_funding_create")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)
	assert.Equal(t, "BCA", source.Label)
	assert.Equal(t, int64(1_000_000), source.Balance)

	found, err := env.funding.FindByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, source.ID, found.ID)

	_, err = env.funding.Create(ctx, "", models.FundingCard, 0)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.funding.Create(ctx, "Cash", models.FundingPocket, -100)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestFundingService_AdjustBalance(t *testing.T) {
	env := newTestEnv(t, "testdb_funding_adjust")
	ctx := context.Background()

	source := env.createSource(t, "BCA", 1_000_000)

	err := env.funding.AdjustBalance(ctx, source.ID, -300_000)
	require.NoError(t, err)
	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700_000), balance)

	// An uncovered debit fails and changes nothing.
	err = env.funding.AdjustBalance(ctx, source.ID, -800_000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	balance, err = env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(700_000), balance)

	err = env.funding.AdjustBalance(ctx, source.ID, 500_000)
	require.NoError(t, err)
	balance, err = env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_200_000), balance)
}

func TestFundingService_ConcurrentDebits(t *testing.T) {
	env := newTestEnv(t, "testdb_funding_concurrent")
	ctx := context.Background()

	// 10 workers each try to debit 200_000 from a 1_000_000 source. Exactly
	// 5 can succeed; the guard filter must stop the rest.
	source := env.createSource(t, "BCA", 1_000_000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := env.funding.LockSource(source.ID)
			defer unlock()
			if err := env.funding.AdjustBalance(ctx, source.ID, -200_000); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}
