package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/config"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// testEnv bundles the service graph against a clean test database.
type testEnv struct {
	db         *mongo.Database
	settings   ISettingsService
	funding    IFundingService
	ledger     ILedgerService
	teamPay    ITeamPaymentService
	projects   IProjectService
	costs      ICostService
	settlement ISettlementService
	recalc     IRecalcService
	workflow   IWorkflowService
}

func newTestEnv(t *testing.T, dbName string) *testEnv {
	db := utils.SetupTestDB(t, dbName,
		"projects", "funding_sources", "transactions", "team_payments",
		"leads", "clients", "packages", "promo_codes",
		"settings", "workflow_config")

	cfg := &config.Config{AppName: "StudioOps", CurrencyCode: "IDR"}
	settings := NewSettingsService(db, cfg, nil)
	funding := NewFundingService(db)
	ledger := NewLedgerService(db)
	teamPay := NewTeamPaymentService(db)
	projects := NewProjectService(db, funding, ledger, teamPay, settings)
	costs := NewCostService(db, projects)

	return &testEnv{
		db:         db,
		settings:   settings,
		funding:    funding,
		ledger:     ledger,
		teamPay:    teamPay,
		projects:   projects,
		costs:      costs,
		settlement: NewSettlementService(db, funding, ledger),
		recalc:     NewRecalcService(db, funding, ledger, projects),
		workflow:   NewWorkflowService(db, settings),
	}
}

func (e *testEnv) createSource(t *testing.T, label string, balance int64) *models.FundingSource {
	source, err := e.funding.Create(context.Background(), label, models.FundingCard, balance)
	require.NoError(t, err)
	return source
}

func (e *testEnv) createProject(t *testing.T, name string, packagePrice int64) *models.Project {
	project, err := e.projects.Create(context.Background(), CreateProjectRequest{
		Name:         name,
		ClientID:     utils.NewSixID(),
		PackagePrice: packagePrice,
	})
	require.NoError(t, err)
	return project
}
