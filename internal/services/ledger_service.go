package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/db"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// ILedgerService owns the durable transaction records that funding source
// balances are reconciled against.
type ILedgerService interface {
	Record(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.Transaction, error)
	FindByCostItem(ctx context.Context, costItemID utils.SixID) (*models.Transaction, error)
	FindTeamFee(ctx context.Context, projectID, memberID utils.SixID) (*models.Transaction, error)
	ListByProject(ctx context.Context, projectID utils.SixID) ([]models.Transaction, error)
	ListBySource(ctx context.Context, sourceID utils.SixID) ([]models.Transaction, error)
	SumBySource(ctx context.Context, sourceID utils.SixID) (int64, error)
	ReplaceAmount(ctx context.Context, id utils.SixID, newAmount int64) error
	Delete(ctx context.Context, id utils.SixID) error
	DeleteByProject(ctx context.Context, projectID utils.SixID) (int64, error)
}

const transactionsCollection = "transactions"

type ledgerService struct {
	db *mongo.Database
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(database *mongo.Database) ILedgerService {
	return &ledgerService{db: database}
}

func (s *ledgerService) Record(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.Amount == 0 {
		return nil, fmt.Errorf("%w: transaction amount cannot be zero", ErrValidationFailed)
	}
	collection := s.db.Collection(transactionsCollection)

	operation := func() error {
		tx.GenID()
		if tx.Date.IsZero() {
			tx.Date = time.Now().UTC()
		}
		tx.CreatedAt = time.Now().UTC()
		_, insertErr := collection.InsertOne(ctx, tx)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert transaction (%s, %d): %w", tx.Category, tx.Amount, err)
	}
	return tx, nil
}

func (s *ledgerService) FindByID(ctx context.Context, id utils.SixID) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.Collection(transactionsCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding transaction %s: %w", id.String(), err)
	}
	return &tx, nil
}

func (s *ledgerService) FindByCostItem(ctx context.Context, costItemID utils.SixID) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.Collection(transactionsCollection).
		FindOne(ctx, bson.M{"cost_item_id": costItemID, "deleted": false}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding transaction for cost item %s: %w", costItemID.String(), err)
	}
	return &tx, nil
}

func (s *ledgerService) FindTeamFee(ctx context.Context, projectID, memberID utils.SixID) (*models.Transaction, error) {
	var tx models.Transaction
	filter := bson.M{
		"project_id":     projectID,
		"team_member_id": memberID,
		"category":       models.CategoryTeamFee,
		"deleted":        false,
	}
	err := s.db.Collection(transactionsCollection).FindOne(ctx, filter).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding team fee transaction for project %s member %s: %w",
			projectID.String(), memberID.String(), err)
	}
	return &tx, nil
}

func (s *ledgerService) list(ctx context.Context, filter bson.M) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.db.Collection(transactionsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []models.Transaction
	if err = cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txs, nil
}

func (s *ledgerService) ListByProject(ctx context.Context, projectID utils.SixID) ([]models.Transaction, error) {
	return s.list(ctx, bson.M{"project_id": projectID, "deleted": false})
}

func (s *ledgerService) ListBySource(ctx context.Context, sourceID utils.SixID) ([]models.Transaction, error) {
	return s.list(ctx, bson.M{"funding_source_id": sourceID, "deleted": false})
}

// SumBySource returns the signed sum of a source's transactions, the figure
// its balance is reconciled against.
func (s *ledgerService) SumBySource(ctx context.Context, sourceID utils.SixID) (int64, error) {
	txs, err := s.ListBySource(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, tx := range txs {
		sum += tx.Amount
	}
	return sum, nil
}

func (s *ledgerService) ReplaceAmount(ctx context.Context, id utils.SixID, newAmount int64) error {
	if newAmount == 0 {
		return fmt.Errorf("%w: use Delete for a zeroed transaction", ErrValidationFailed)
	}
	result, err := s.db.Collection(transactionsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"amount": newAmount}})
	if err != nil {
		return fmt.Errorf("db error replacing amount of transaction %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("transaction %s not found", id.String())
	}
	return nil
}

func (s *ledgerService) Delete(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(transactionsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return fmt.Errorf("db error deleting transaction %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("transaction %s not found", id.String())
	}
	return nil
}

// DeleteByProject soft-deletes all of a project's transactions; used by the
// project deletion cascade.
func (s *ledgerService) DeleteByProject(ctx context.Context, projectID utils.SixID) (int64, error) {
	result, err := s.db.Collection(transactionsCollection).UpdateMany(ctx,
		bson.M{"project_id": projectID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true}})
	if err != nil {
		return 0, fmt.Errorf("db error deleting transactions of project %s: %w", projectID.String(), err)
	}
	return result.ModifiedCount, nil
}
