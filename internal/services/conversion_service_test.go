package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

type conversionEnv struct {
	*testEnv
	leads      ILeadService
	clients    IClientService
	packages   IPackageService
	promos     IPromoService
	conversion IConversionService
}

func newConversionEnv(t *testing.T, dbName string) *conversionEnv {
	env := newTestEnv(t, dbName)
	leads := NewLeadService(env.db)
	clients := NewClientService(env.db)
	packages := NewPackageService(env.db)
	promos := NewPromoService(env.db)
	return &conversionEnv{
		testEnv:    env,
		leads:      leads,
		clients:    clients,
		packages:   packages,
		promos:     promos,
		conversion: NewConversionService(leads, clients, packages, promos, env.projects, env.costs),
	}
}

func TestConversionService_Convert(t *testing.T) {
	env := newConversionEnv(t, "testdb_conversion_convert")
	ctx := context.Background()

	lead, err := env.leads.Create(ctx, "Siti", "whatsapp", "+62811111111", "asked about wedding package")
	require.NoError(t, err)
	pkg, err := env.packages.Create(ctx, "Wedding Gold", 5_000_000, "", []models.PhysicalItem{
		{Label: "Album 30x30", Cost: 250_000},
	})
	require.NoError(t, err)
	source := env.createSource(t, "BCA", 0)

	sourceID := source.ID
	result, err := env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:          lead.ID,
		PackageID:       pkg.ID,
		EventDate:       time.Now().AddDate(0, 2, 0),
		ClientEmail:     "siti@example.com",
		DepositAmount:   1_500_000,
		DepositSourceID: &sourceID,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, models.LeadConverted, result.Lead.Status)
	require.NotNil(t, result.Client)
	assert.Equal(t, "Siti", result.Client.Name)
	assert.Equal(t, "siti@example.com", result.Client.Email)

	project := result.Project
	require.NotNil(t, project)
	assert.Equal(t, int64(5_000_000), project.PackagePrice)
	// Package physical items land as Unpaid printing costs.
	require.Len(t, project.CostItems, 1)
	assert.Equal(t, models.CostPrinting, project.CostItems[0].Category)
	assert.Equal(t, int64(5_250_000), project.TotalCost)

	// The deposit was booked: source credited, payment status derived, and
	// the ledger entry classified as a deposit.
	assert.Equal(t, int64(1_500_000), project.AmountPaid)
	assert.Equal(t, models.PaymentPartiallyPaid, project.PaymentStatus)
	balance, err := env.funding.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), balance)
	txs, err := env.ledger.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.CategoryDeposit, txs[0].Category)

	// The lead is terminal now; a second conversion must fail.
	_, err = env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:    lead.ID,
		PackageID: pkg.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConversionService_PromoApplied(t *testing.T) {
	env := newConversionEnv(t, "testdb_conversion_promo")
	ctx := context.Background()

	lead, err := env.leads.Create(ctx, "Budi", "instagram", "", "")
	require.NoError(t, err)
	pkg, err := env.packages.Create(ctx, "Prewedding", 4_000_000, "", nil)
	require.NoError(t, err)
	promo, err := env.promos.Create(ctx, "HEMAT10", models.DiscountPercent, 10, 5, nil)
	require.NoError(t, err)

	result, err := env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:    lead.ID,
		PackageID: pkg.ID,
		PromoCode: "hemat10",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Promo)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, int64(400_000), result.Project.Discount)
	assert.Equal(t, int64(3_600_000), result.Project.TotalCost)
	require.NotNil(t, result.Project.PromoCodeID)
	assert.Equal(t, promo.ID, *result.Project.PromoCodeID)

	stored, err := env.promos.FindByCode(ctx, "HEMAT10")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestConversionService_InvalidPromoFailsForward(t *testing.T) {
	env := newConversionEnv(t, "testdb_conversion_bad_promo")
	ctx := context.Background()

	lead, err := env.leads.Create(ctx, "Rina", "whatsapp", "", "")
	require.NoError(t, err)
	pkg, err := env.packages.Create(ctx, "Family Session", 2_000_000, "", nil)
	require.NoError(t, err)

	// An unknown promo code yields a warning, not a failure.
	result, err := env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:    lead.ID,
		PackageID: pkg.ID,
		PromoCode: "NOPE",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Promo)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, int64(0), result.Project.Discount)
	assert.Equal(t, models.LeadConverted, result.Lead.Status)
}

func TestConversionService_DepositFailureSurfaces(t *testing.T) {
	env := newConversionEnv(t, "testdb_conversion_deposit_failure")
	ctx := context.Background()

	lead, err := env.leads.Create(ctx, "Siti", "whatsapp", "", "")
	require.NoError(t, err)
	pkg, err := env.packages.Create(ctx, "Wedding Gold", 5_000_000, "", nil)
	require.NoError(t, err)
	_, err = env.promos.Create(ctx, "HEMAT10", models.DiscountPercent, 10, 5, nil)
	require.NoError(t, err)

	// The deposit source does not exist, so the payment write fails. The
	// conversion stands but the call must not report success, and the promo
	// redemption must not be counted.
	missing := utils.NewSixID()
	result, err := env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:          lead.ID,
		PackageID:       pkg.ID,
		PromoCode:       "HEMAT10",
		DepositAmount:   1_500_000,
		DepositSourceID: &missing,
	})
	require.ErrorIs(t, err, ErrDepositFailed)

	require.NotNil(t, result)
	assert.Equal(t, models.LeadConverted, result.Lead.Status)
	require.NotNil(t, result.Client)
	require.NotNil(t, result.Project)
	assert.Equal(t, int64(0), result.Project.AmountPaid)
	assert.Equal(t, models.PaymentUnpaid, result.Project.PaymentStatus)

	stored, err := env.promos.FindByCode(ctx, "HEMAT10")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.UsageCount)
}

func TestConversionService_Validation(t *testing.T) {
	env := newConversionEnv(t, "testdb_conversion_validation")
	ctx := context.Background()

	lead, err := env.leads.Create(ctx, "Siti", "whatsapp", "", "")
	require.NoError(t, err)

	_, err = env.conversion.Convert(ctx, ConvertLeadRequest{LeadID: lead.ID})
	assert.ErrorIs(t, err, ErrPackageRequired)

	_, err = env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:    lead.ID,
		PackageID: utils.NewSixID(),
	})
	assert.ErrorIs(t, err, ErrPackageRequired)

	pkg, err := env.packages.Create(ctx, "Mini Session", 1_000_000, "", nil)
	require.NoError(t, err)
	_, err = env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:        lead.ID,
		PackageID:     pkg.ID,
		DepositAmount: 100_000,
	})
	assert.ErrorIs(t, err, ErrValidationFailed)

	// A rejected lead cannot convert.
	_, err = env.leads.Transition(ctx, lead.ID, models.LeadRejected)
	require.NoError(t, err)
	_, err = env.conversion.Convert(ctx, ConvertLeadRequest{
		LeadID:    lead.ID,
		PackageID: pkg.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
