package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// IRecalcService is the correction path for settled history. Where the cost
// service refuses to touch a Paid item, the recalculator reconciles the
// item, its ledger transaction, the funding source balance and the project
// total with one signed delta, never by re-deriving state.
type IRecalcService interface {
	// CorrectSettledItem rewrites the amount of a Paid item. A newAmount of
	// zero voids the settlement: transaction deleted, full refund, item
	// removed.
	CorrectSettledItem(ctx context.Context, projectID, itemID utils.SixID, newAmount int64) error

	// AddSettledCost backfills a cost that was already paid outside the
	// system: the item lands as Paid with its transaction and debit applied
	// in the same unit.
	AddSettledCost(ctx context.Context, projectID utils.SixID, category models.CostCategory, label string, amount int64, sourceID utils.SixID) (*models.CostLineItem, error)

	// SyncTotals recomputes totalCost from scratch and re-derives the
	// payment status. Recovery tool for a project whose delta chain was
	// broken by a partial failure.
	SyncTotals(ctx context.Context, projectID utils.SixID) (*models.Project, error)
}

type recalcService struct {
	db       *mongo.Database
	funding  IFundingService
	ledger   ILedgerService
	projects IProjectService
}

// NewRecalcService creates a new RecalcService.
func NewRecalcService(database *mongo.Database, funding IFundingService, ledger ILedgerService, projects IProjectService) IRecalcService {
	return &recalcService{db: database, funding: funding, ledger: ledger, projects: projects}
}

func (s *recalcService) CorrectSettledItem(ctx context.Context, projectID, itemID utils.SixID, newAmount int64) error {
	if newAmount < 0 {
		return fmt.Errorf("%w: corrected amount cannot be negative", ErrValidationFailed)
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	item := project.CostItem(itemID)
	if item == nil {
		return fmt.Errorf("cost item %s not found on project %s", itemID.String(), projectID.String())
	}
	if item.Status != models.CostPaid {
		return fmt.Errorf("%w: item %q is not settled, edit it directly", ErrValidationFailed, item.Label)
	}
	if item.FundingSourceID == nil {
		return fmt.Errorf("%w: settled item %q has no funding source", ErrValidationFailed, item.Label)
	}
	sourceID := *item.FundingSourceID
	delta := newAmount - item.Amount

	unlock := s.funding.LockSource(sourceID)
	defer unlock()

	tx, err := s.ledger.FindByCostItem(ctx, itemID)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}

	if newAmount == 0 {
		if tx != nil {
			if err := s.ledger.Delete(ctx, tx.ID); err != nil {
				return err
			}
		}
		if err := s.funding.AdjustBalance(ctx, sourceID, item.Amount); err != nil {
			return fmt.Errorf("refund of voided item %q failed: %w", item.Label, err)
		}
		_, err = s.db.Collection(projectsCollection).UpdateOne(ctx,
			bson.M{"_id": projectID, "deleted": false},
			bson.M{
				"$pull": bson.M{"cost_items": bson.M{"id": itemID}},
				"$set":  bson.M{"updated_at": time.Now().UTC()},
			})
		if err != nil {
			return fmt.Errorf("db error removing voided item %s: %w", itemID.String(), err)
		}
		return s.projects.ApplyTotalDelta(ctx, projectID, -item.Amount)
	}

	if tx != nil {
		if err := s.ledger.ReplaceAmount(ctx, tx.ID, -newAmount); err != nil {
			return err
		}
	} else {
		// Settled item without a ledger entry: backfill one so the source's
		// transaction sum matches its balance again.
		_, err := s.ledger.Record(ctx, &models.Transaction{
			Description:     fmt.Sprintf("%s (%s)", item.Label, project.Name),
			Amount:          -newAmount,
			Category:        categoryForCost(item.Category),
			ProjectID:       &projectID,
			FundingSourceID: &sourceID,
			CostItemID:      &itemID,
		})
		if err != nil {
			return err
		}
	}

	if delta != 0 {
		if err := s.funding.AdjustBalance(ctx, sourceID, -delta); err != nil {
			return err
		}
	}

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"it.id": itemID}},
	})
	_, err = s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{"$set": bson.M{
			"cost_items.$[it].amount": newAmount,
			"updated_at":              time.Now().UTC(),
		}}, opts)
	if err != nil {
		return fmt.Errorf("db error correcting item %s: %w", itemID.String(), err)
	}
	if delta != 0 {
		return s.projects.ApplyTotalDelta(ctx, projectID, delta)
	}
	return nil
}

func (s *recalcService) AddSettledCost(ctx context.Context, projectID utils.SixID, category models.CostCategory, label string, amount int64, sourceID utils.SixID) (*models.CostLineItem, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: cost item label is required", ErrValidationFailed)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: cost item amount must be positive", ErrValidationFailed)
	}
	if !validCostCategory(category) {
		return nil, fmt.Errorf("%w: unknown cost category %q", ErrValidationFailed, category)
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	unlock := s.funding.LockSource(sourceID)
	defer unlock()

	if err := s.funding.AdjustBalance(ctx, sourceID, -amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	item := models.CostLineItem{
		ID:              utils.NewSixID(),
		Label:           label,
		Category:        category,
		Amount:          amount,
		Status:          models.CostPaid,
		PaidAt:          &now,
		FundingSourceID: &sourceID,
	}
	itemID := item.ID
	if _, err := s.ledger.Record(ctx, &models.Transaction{
		Description:     fmt.Sprintf("%s (%s)", label, project.Name),
		Amount:          -amount,
		Category:        categoryForCost(category),
		ProjectID:       &projectID,
		FundingSourceID: &sourceID,
		CostItemID:      &itemID,
	}); err != nil {
		return nil, err
	}

	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{
			"$push": bson.M{"cost_items": item},
			"$set":  bson.M{"updated_at": now},
		})
	if err != nil {
		return nil, fmt.Errorf("db error adding settled cost to project %s: %w", projectID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	if err := s.projects.ApplyTotalDelta(ctx, projectID, amount); err != nil {
		return nil, fmt.Errorf("settled cost %s added but total update failed: %w", itemID.String(), err)
	}
	return &item, nil
}

func (s *recalcService) SyncTotals(ctx context.Context, projectID utils.SixID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	newTotal := project.ComputeTotalCost()
	update := bson.M{"$set": bson.M{
		"total_cost":     newTotal,
		"payment_status": models.DerivePaymentStatus(project.AmountPaid, newTotal),
		"updated_at":     time.Now().UTC(),
	}}
	if _, err := s.db.Collection(projectsCollection).UpdateByID(ctx, projectID, update); err != nil {
		return nil, fmt.Errorf("failed to sync totals of project %s: %w", projectID.String(), err)
	}
	project.TotalCost = newTotal
	project.PaymentStatus = models.DerivePaymentStatus(project.AmountPaid, newTotal)
	return project, nil
}
