package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kliklens/studioops/internal/models"
)

func TestPromoService_Create(t *testing.T) {
	env := newTestEnv(t, "testdb_promo_create")
	ctx := context.Background()
	promos := NewPromoService(env.db)

	promo, err := promos.Create(ctx, "  hemat10 ", models.DiscountPercent, 10, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, "HEMAT10", promo.Code)
	assert.True(t, promo.Active)

	_, err = promos.Create(ctx, "", models.DiscountPercent, 10, 0, nil)
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = promos.Create(ctx, "ZERO", models.DiscountFixed, 0, 0, nil)
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = promos.Create(ctx, "TOOMUCH", models.DiscountPercent, 150, 0, nil)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestPromoService_Validate(t *testing.T) {
	env := newTestEnv(t, "testdb_promo_validate")
	ctx := context.Background()
	promos := NewPromoService(env.db)

	promo, err := promos.Create(ctx, "HEMAT10", models.DiscountPercent, 10, 0, nil)
	require.NoError(t, err)

	// Lookup is case-insensitive on input.
	got, err := promos.Validate(ctx, "hemat10")
	require.NoError(t, err)
	assert.Equal(t, promo.ID, got.ID)

	_, err = promos.Validate(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrInvalidPromo)

	expired := time.Now().UTC().Add(-time.Hour)
	_, err = promos.Create(ctx, "OLD", models.DiscountFixed, 100_000, 0, &expired)
	require.NoError(t, err)
	_, err = promos.Validate(ctx, "OLD")
	assert.ErrorIs(t, err, ErrInvalidPromo)

	err = promos.Deactivate(ctx, promo.ID)
	require.NoError(t, err)
	_, err = promos.Validate(ctx, "HEMAT10")
	assert.ErrorIs(t, err, ErrInvalidPromo)
}

func TestPromoService_UsageCap(t *testing.T) {
	env := newTestEnv(t, "testdb_promo_usage")
	ctx := context.Background()
	promos := NewPromoService(env.db)

	promo, err := promos.Create(ctx, "LIMITED", models.DiscountFixed, 200_000, 2, nil)
	require.NoError(t, err)

	require.NoError(t, promos.IncrementUsage(ctx, promo.ID))
	require.NoError(t, promos.IncrementUsage(ctx, promo.ID))

	// The cap guard refuses a third redemption.
	err = promos.IncrementUsage(ctx, promo.ID)
	assert.ErrorIs(t, err, ErrInvalidPromo)

	stored, err := promos.FindByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsageCount)

	// An exhausted promo no longer validates.
	_, err = promos.Validate(ctx, "LIMITED")
	assert.ErrorIs(t, err, ErrInvalidPromo)

	// Zero maxUsage means unlimited.
	open, err := promos.Create(ctx, "OPEN", models.DiscountFixed, 50_000, 0, nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, promos.IncrementUsage(ctx, open.ID))
	}
}
