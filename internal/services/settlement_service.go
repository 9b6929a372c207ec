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

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// ISettlementService pays Unpaid obligations out of funding sources. Each
// settlement is one unit: ledger transaction, balance debit and status flip
// happen under the source lock, and an uncovered debit aborts before
// anything is written.
type ISettlementService interface {
	Settle(ctx context.Context, projectID, itemID, sourceID utils.SixID) (*models.Transaction, error)
	SettleBatch(ctx context.Context, projectID utils.SixID, itemIDs []utils.SixID, sourceID utils.SixID) ([]models.Transaction, error)
	SettleTeamPayment(ctx context.Context, recordID, sourceID utils.SixID) (*models.Transaction, error)
}

type settlementService struct {
	db      *mongo.Database
	funding IFundingService
	ledger  ILedgerService
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(database *mongo.Database, funding IFundingService, ledger ILedgerService) ISettlementService {
	return &settlementService{db: database, funding: funding, ledger: ledger}
}

func (s *settlementService) findProject(ctx context.Context, projectID utils.SixID) (*models.Project, error) {
	var project models.Project
	err := s.db.Collection(projectsCollection).
		FindOne(ctx, bson.M{"_id": projectID, "deleted": false}).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding project %s: %w", projectID.String(), err)
	}
	return &project, nil
}

func (s *settlementService) loadItem(ctx context.Context, projectID, itemID utils.SixID) (*models.Project, *models.CostLineItem, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	item := project.CostItem(itemID)
	if item == nil {
		return nil, nil, fmt.Errorf("cost item %s not found on project %s", itemID.String(), projectID.String())
	}
	return project, item, nil
}

func categoryForCost(c models.CostCategory) models.TransactionCategory {
	switch c {
	case models.CostPrinting:
		return models.CategoryPrinting
	case models.CostTransport:
		return models.CategoryTransport
	default:
		return models.CategoryCustom
	}
}

// Settle pays one cost line item from a funding source.
func (s *settlementService) Settle(ctx context.Context, projectID, itemID, sourceID utils.SixID) (*models.Transaction, error) {
	unlock := s.funding.LockSource(sourceID)
	defer unlock()

	project, item, err := s.loadItem(ctx, projectID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status == models.CostPaid {
		return nil, fmt.Errorf("%w: item %q", ErrAlreadySettled, item.Label)
	}

	tx, err := s.settleItem(ctx, project, item, sourceID)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// SettleBatch pays several items of one project from one source. The batch
// is pre-validated as a whole: if any item is already Paid or the source
// cannot cover the sum, no item settles.
func (s *settlementService) SettleBatch(ctx context.Context, projectID utils.SixID, itemIDs []utils.SixID, sourceID utils.SixID) ([]models.Transaction, error) {
	if len(itemIDs) == 0 {
		return nil, fmt.Errorf("%w: empty settlement batch", ErrValidationFailed)
	}

	unlock := s.funding.LockSource(sourceID)
	defer unlock()

	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	items := make([]*models.CostLineItem, 0, len(itemIDs))
	var sum int64
	for _, id := range itemIDs {
		item := project.CostItem(id)
		if item == nil {
			return nil, fmt.Errorf("cost item %s not found on project %s", id.String(), projectID.String())
		}
		if item.Status == models.CostPaid {
			return nil, fmt.Errorf("%w: item %q", ErrAlreadySettled, item.Label)
		}
		items = append(items, item)
		sum += item.Amount
	}

	balance, err := s.funding.GetBalance(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if balance < sum {
		return nil, fmt.Errorf("%w: batch of %d needs %d, balance is %d", ErrInsufficientFunds, len(items), sum, balance)
	}

	txs := make([]models.Transaction, 0, len(items))
	for _, item := range items {
		tx, err := s.settleItem(ctx, project, item, sourceID)
		if err != nil {
			// The batch was pre-validated under the source lock, so a failure
			// here is a persistence fault mid-batch. Earlier items stay
			// settled; each was a complete unit.
			return txs, fmt.Errorf("batch stopped at item %q: %w", item.Label, err)
		}
		txs = append(txs, *tx)
	}
	return txs, nil
}

// settleItem performs one settlement unit. Caller holds the source lock and
// has verified the item is Unpaid.
func (s *settlementService) settleItem(ctx context.Context, project *models.Project, item *models.CostLineItem, sourceID utils.SixID) (*models.Transaction, error) {
	if err := s.funding.AdjustBalance(ctx, sourceID, -item.Amount); err != nil {
		return nil, err
	}

	itemID := item.ID
	tx, err := s.ledger.Record(ctx, &models.Transaction{
		Description:     fmt.Sprintf("%s (%s)", item.Label, project.Name),
		Amount:          -item.Amount,
		Category:        categoryForCost(item.Category),
		ProjectID:       &project.ID,
		FundingSourceID: &sourceID,
		CostItemID:      &itemID,
	})
	if err != nil {
		if refundErr := s.funding.AdjustBalance(ctx, sourceID, item.Amount); refundErr != nil {
			log.Printf("CRITICAL: settlement of item %s debited %d but refund after failure also failed: %v",
				item.ID.String(), item.Amount, refundErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"cost_items.$[it].status":            models.CostPaid,
			"cost_items.$[it].paid_at":           now,
			"cost_items.$[it].funding_source_id": sourceID,
			"updated_at":                         now,
		},
	}
	// The amount is part of the guard: if the item was edited after load,
	// the flip misses and the unit is undone instead of settling stale.
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"it.id": item.ID, "it.status": models.CostUnpaid, "it.amount": item.Amount}},
	})
	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": project.ID, "deleted": false}, update, opts)
	if err != nil {
		return nil, fmt.Errorf("item %s debited and recorded but status flip failed: %w", item.ID.String(), err)
	}
	if result.ModifiedCount == 0 {
		if delErr := s.ledger.Delete(ctx, tx.ID); delErr != nil {
			log.Printf("CRITICAL: settlement of item %s aborted but transaction %s could not be deleted: %v",
				item.ID.String(), tx.ID.String(), delErr)
		}
		if refundErr := s.funding.AdjustBalance(ctx, sourceID, item.Amount); refundErr != nil {
			log.Printf("CRITICAL: settlement of item %s aborted but refund of %d failed: %v",
				item.ID.String(), item.Amount, refundErr)
		}
		return nil, fmt.Errorf("item %s changed while settling, settlement undone", item.ID.String())
	}

	item.Status = models.CostPaid
	item.PaidAt = &now
	item.FundingSourceID = &sourceID
	return tx, nil
}

// SettleTeamPayment pays a member's fee plus reward for a project.
func (s *settlementService) SettleTeamPayment(ctx context.Context, recordID, sourceID utils.SixID) (*models.Transaction, error) {
	collection := s.db.Collection(teamPaymentsCollection)

	var record models.TeamPaymentRecord
	err := collection.FindOne(ctx, bson.M{"_id": recordID, "deleted": false}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding team payment record %s: %w", recordID.String(), err)
	}
	if record.Status == models.TeamPaymentPaid {
		return nil, fmt.Errorf("%w: team payment for member %s", ErrAlreadySettled, record.MemberID.String())
	}
	if record.Orphaned {
		return nil, fmt.Errorf("%w: team payment record %s is orphaned", ErrValidationFailed, recordID.String())
	}
	total := record.Total()
	if total <= 0 {
		return nil, fmt.Errorf("%w: team payment total must be positive", ErrValidationFailed)
	}

	unlock := s.funding.LockSource(sourceID)
	defer unlock()

	if err := s.funding.AdjustBalance(ctx, sourceID, -total); err != nil {
		return nil, err
	}

	tx, err := s.ledger.Record(ctx, &models.Transaction{
		Description:     fmt.Sprintf("Team payment (%s)", record.Role),
		Amount:          -total,
		Category:        models.CategoryTeamFee,
		ProjectID:       &record.ProjectID,
		FundingSourceID: &sourceID,
		TeamMemberID:    &record.MemberID,
	})
	if err != nil {
		if refundErr := s.funding.AdjustBalance(ctx, sourceID, total); refundErr != nil {
			log.Printf("CRITICAL: team payment %s debited %d but refund after failure also failed: %v",
				recordID.String(), total, refundErr)
		}
		return nil, err
	}

	now := time.Now().UTC()
	result, err := collection.UpdateOne(ctx,
		bson.M{"_id": recordID, "status": models.TeamPaymentUnpaid, "deleted": false},
		bson.M{"$set": bson.M{
			"status":            models.TeamPaymentPaid,
			"paid_at":           now,
			"funding_source_id": sourceID,
			"updated_at":        now,
		}})
	if err != nil {
		return nil, fmt.Errorf("team payment %s debited and recorded but status flip failed: %w", recordID.String(), err)
	}
	if result.ModifiedCount == 0 {
		return nil, fmt.Errorf("team payment %s debited and recorded but was no longer Unpaid", recordID.String())
	}
	return tx, nil
}
