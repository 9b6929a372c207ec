package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/db"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// CreateProjectRequest carries the validated inputs for direct staff
// project creation.
type CreateProjectRequest struct {
	Name         string
	ClientID     utils.SixID
	PackageID    *utils.SixID
	PackagePrice int64
	AddOns       []models.AddOn
	Discount     int64
	EventDate    time.Time
	Team         []models.TeamAssignment
	PublicOrigin bool
	Status       string
}

// IProjectService owns the project aggregate: creation, queries, team
// assignment and client payments. Cost line item mutation lives in the cost
// service; settlement in the settlement service.
type IProjectService interface {
	Create(ctx context.Context, req CreateProjectRequest) (*models.Project, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.Project, error)
	List(ctx context.Context, status *string, limit int) ([]models.Project, error)
	Delete(ctx context.Context, id utils.SixID) error
	UpdateTeam(ctx context.Context, id utils.SixID, team []models.TeamAssignment) (*models.Project, error)
	RecordClientPayment(ctx context.Context, id utils.SixID, amount int64, sourceID utils.SixID, evidenceURL string) (*models.Transaction, error)
	ApplyTotalDelta(ctx context.Context, id utils.SixID, delta int64) error
	SetPromoCode(ctx context.Context, id, promoID utils.SixID) error
}

const projectsCollection = "projects"

type projectService struct {
	db       *mongo.Database
	funding  IFundingService
	ledger   ILedgerService
	teamPay  ITeamPaymentService
	settings ISettingsService
}

// NewProjectService creates a new ProjectService.
func NewProjectService(database *mongo.Database, funding IFundingService, ledger ILedgerService, teamPay ITeamPaymentService, settings ISettingsService) IProjectService {
	return &projectService{
		db:       database,
		funding:  funding,
		ledger:   ledger,
		teamPay:  teamPay,
		settings: settings,
	}
}

func (s *projectService) Create(ctx context.Context, req CreateProjectRequest) (*models.Project, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidationFailed)
	}
	if req.ClientID == (utils.SixID{}) {
		return nil, fmt.Errorf("%w: client is required", ErrValidationFailed)
	}

	workflow := s.settings.GetWorkflowConfig(ctx)
	status := req.Status
	if status == "" && len(workflow.Statuses) > 0 {
		status = workflow.Statuses[0].Name
	}
	if !workflow.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, status)
	}

	now := time.Now().UTC()
	collection := s.db.Collection(projectsCollection)

	var project *models.Project
	operation := func() error {
		project = &models.Project{
			Base:                 models.NewBase(),
			Name:                 req.Name,
			ClientID:             req.ClientID,
			PackageID:            req.PackageID,
			PackagePrice:         req.PackagePrice,
			AddOns:               req.AddOns,
			Discount:             req.Discount,
			EventDate:            req.EventDate,
			Status:               status,
			Progress:             workflow.ProgressFor(status),
			ActiveSubStatuses:    []string{},
			ConfirmedSubStatuses: []string{},
			CostItems:            []models.CostLineItem{},
			Team:                 req.Team,
			PublicOrigin:         req.PublicOrigin,
			PaymentStatus:        models.PaymentUnpaid,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if req.PublicOrigin {
			project.BookingStatus = models.BookingNew
		}
		project.TotalCost = project.ComputeTotalCost()
		_, insertErr := collection.InsertOne(ctx, project)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert project %q: %w", req.Name, err)
	}

	if len(req.Team) > 0 {
		if _, err := s.teamPay.RegenerateForProject(ctx, project.ID, req.Team); err != nil {
			log.Printf("WARN: project %s created but team payment generation failed: %v", project.ID.String(), err)
		}
	}
	return project, nil
}

func (s *projectService) FindByID(ctx context.Context, id utils.SixID) (*models.Project, error) {
	var project models.Project
	filter := bson.M{"_id": id, "deleted": false}
	err := s.db.Collection(projectsCollection).FindOne(ctx, filter).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding project %s: %w", id.String(), err)
	}
	return &project, nil
}

func (s *projectService) List(ctx context.Context, status *string, limit int) ([]models.Project, error) {
	filter := bson.M{"deleted": false}
	if status != nil && *status != "" {
		filter["status"] = *status
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "event_date", Value: -1}})
	cursor, err := s.db.Collection(projectsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []models.Project
	if err = cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

// Delete soft-deletes a project and cascades to its transactions and team
// payment records.
func (s *projectService) Delete(ctx context.Context, id utils.SixID) error {
	now := time.Now().UTC()
	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": now}})
	if err != nil {
		return fmt.Errorf("db error deleting project %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("project %s not found", id.String())
	}

	if _, err := s.ledger.DeleteByProject(ctx, id); err != nil {
		log.Printf("WARN: project %s deleted but transaction cascade failed: %v", id.String(), err)
	}
	if err := s.teamPay.DeleteByProject(ctx, id); err != nil {
		log.Printf("WARN: project %s deleted but team payment cascade failed: %v", id.String(), err)
	}
	return nil
}

// UpdateTeam replaces the assignment list and regenerates the project's team
// payment records.
func (s *projectService) UpdateTeam(ctx context.Context, id utils.SixID, team []models.TeamAssignment) (*models.Project, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var project models.Project
	err := s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"team": team, "updated_at": time.Now().UTC()}},
		opts).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update team of project %s: %w", id.String(), err)
	}

	if _, err := s.teamPay.RegenerateForProject(ctx, id, team); err != nil {
		return nil, fmt.Errorf("team updated but payment regeneration failed for project %s: %w", id.String(), err)
	}
	return &project, nil
}

// RecordClientPayment books an income transaction against the project,
// credits the funding source and advances amountPaid. Same
// one-transaction-one-delta discipline as settlement, opposite sign. The
// first payment on a project is the deposit; later ones are plain payments.
func (s *projectService) RecordClientPayment(ctx context.Context, id utils.SixID, amount int64, sourceID utils.SixID, evidenceURL string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrValidationFailed)
	}
	project, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	category := models.CategoryPayment
	if project.AmountPaid == 0 {
		category = models.CategoryDeposit
	}

	unlock := s.funding.LockSource(sourceID)
	defer unlock()

	tx, err := s.ledger.Record(ctx, &models.Transaction{
		Description:     fmt.Sprintf("Client payment for %s", project.Name),
		Amount:          amount,
		Category:        category,
		ProjectID:       &id,
		FundingSourceID: &sourceID,
		EvidenceURL:     evidenceURL,
	})
	if err != nil {
		return nil, err
	}
	if err := s.funding.AdjustBalance(ctx, sourceID, amount); err != nil {
		return nil, fmt.Errorf("payment transaction %s recorded but balance credit failed: %w", tx.ID.String(), err)
	}

	newPaid := project.AmountPaid + amount
	update := bson.M{"$set": bson.M{
		"amount_paid":    newPaid,
		"payment_status": models.DerivePaymentStatus(newPaid, project.TotalCost),
		"updated_at":     time.Now().UTC(),
	}}
	if _, err := s.db.Collection(projectsCollection).UpdateByID(ctx, id, update); err != nil {
		return nil, fmt.Errorf("payment recorded but project %s update failed: %w", id.String(), err)
	}
	return tx, nil
}

func (s *projectService) SetPromoCode(ctx context.Context, id, promoID utils.SixID) error {
	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"promo_code_id": promoID, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error setting promo code on project %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ApplyTotalDelta shifts totalCost by a signed delta and re-derives the
// payment status. Used by the cost tracker and the recalculator. The shift
// is an $inc so concurrent cost mutations never lose a delta.
func (s *projectService) ApplyTotalDelta(ctx context.Context, id utils.SixID, delta int64) error {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var project models.Project
	err := s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{
			"$inc": bson.M{"total_cost": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		}, opts).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return mongo.ErrNoDocuments
		}
		return fmt.Errorf("failed to apply total delta %d to project %s: %w", delta, id.String(), err)
	}

	update := bson.M{"$set": bson.M{
		"payment_status": models.DerivePaymentStatus(project.AmountPaid, project.TotalCost),
	}}
	if _, err := s.db.Collection(projectsCollection).UpdateByID(ctx, id, update); err != nil {
		return fmt.Errorf("failed to derive payment status of project %s: %w", id.String(), err)
	}
	return nil
}
