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

type bookingEnv struct {
	*testEnv
	clients  IClientService
	packages IPackageService
	booking  IBookingService
}

func newBookingEnv(t *testing.T, dbName string) *bookingEnv {
	env := newTestEnv(t, dbName)
	clients := NewClientService(env.db)
	packages := NewPackageService(env.db)
	return &bookingEnv{
		testEnv:  env,
		clients:  clients,
		packages: packages,
		booking:  NewBookingService(env.db, clients, packages, env.projects, env.costs),
	}
}

func TestBookingService_Submit(t *testing.T) {
	env := newBookingEnv(t, "testdb_booking_submit")
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, "Wedding Gold", 5_000_000, "", []models.PhysicalItem{
		{Label: "Album 30x30", Cost: 250_000},
	})
	require.NoError(t, err)

	project, err := env.booking.Submit(ctx, BookingRequest{
		Name:      "Siti",
		Phone:     "+62811111111",
		Email:     "siti@example.com",
		PackageID: pkg.ID,
		EventDate: time.Now().AddDate(0, 2, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingNew, project.BookingStatus)
	assert.True(t, project.PublicOrigin)
	assert.Equal(t, int64(5_000_000), project.PackagePrice)
	// Printing costs wait for staff confirmation.
	assert.Empty(t, project.CostItems)

	client, err := env.clients.FindByID(ctx, project.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "Siti", client.Name)
	assert.Equal(t, "siti@example.com", client.Email)
}

func TestBookingService_SubmitValidation(t *testing.T) {
	env := newBookingEnv(t, "testdb_booking_validation")
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, "Mini Session", 1_000_000, "", nil)
	require.NoError(t, err)
	eventDate := time.Now().AddDate(0, 1, 0)

	_, err = env.booking.Submit(ctx, BookingRequest{Phone: "+62811", PackageID: pkg.ID, EventDate: eventDate})
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = env.booking.Submit(ctx, BookingRequest{Name: "Siti", PackageID: pkg.ID, EventDate: eventDate})
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = env.booking.Submit(ctx, BookingRequest{Name: "Siti", Phone: "+62811", PackageID: pkg.ID})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = env.booking.Submit(ctx, BookingRequest{
		Name: "Siti", Phone: "+62811", PackageID: utils.NewSixID(), EventDate: eventDate,
	})
	assert.ErrorIs(t, err, ErrPackageRequired)

	// A retired package is not bookable from the public form.
	_, err = env.packages.Update(ctx, pkg.ID, pkg.Name, pkg.Price, "", nil, false)
	require.NoError(t, err)
	_, err = env.booking.Submit(ctx, BookingRequest{
		Name: "Siti", Phone: "+62811", PackageID: pkg.ID, EventDate: eventDate,
	})
	assert.ErrorIs(t, err, ErrPackageRequired)
}

func TestBookingService_ConfirmAndReject(t *testing.T) {
	env := newBookingEnv(t, "testdb_booking_gate")
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, "Wedding Gold", 5_000_000, "", []models.PhysicalItem{
		{Label: "Album 30x30", Cost: 250_000},
	})
	require.NoError(t, err)

	submit := func(name string) *models.Project {
		p, submitErr := env.booking.Submit(ctx, BookingRequest{
			Name: name, Phone: "+62811", PackageID: pkg.ID,
			EventDate: time.Now().AddDate(0, 2, 0),
		})
		require.NoError(t, submitErr)
		return p
	}
	first := submit("Siti")
	second := submit("Budi")

	pending, err := env.booking.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	confirmed, err := env.booking.Confirm(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, confirmed.BookingStatus)
	// Confirmation seeds the package deliverables as printing costs.
	require.Len(t, confirmed.CostItems, 1)
	assert.Equal(t, models.CostPrinting, confirmed.CostItems[0].Category)
	assert.Equal(t, int64(5_250_000), confirmed.TotalCost)

	rejected, err := env.booking.Reject(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRejected, rejected.BookingStatus)

	pending, err = env.booking.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The gate moves once.
	_, err = env.booking.Confirm(ctx, first.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.booking.Confirm(ctx, second.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.booking.Reject(ctx, first.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
