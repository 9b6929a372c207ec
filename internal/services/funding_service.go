package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/db"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// IFundingService owns funding source balance state. Balances are only
// mutated through AdjustBalance so reconciliation always applies one signed
// corrective delta instead of re-deriving state.
type IFundingService interface {
	Create(ctx context.Context, label string, kind models.FundingKind, openingBalance int64) (*models.FundingSource, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.FundingSource, error)
	List(ctx context.Context) ([]models.FundingSource, error)
	GetBalance(ctx context.Context, id utils.SixID) (int64, error)
	AdjustBalance(ctx context.Context, id utils.SixID, delta int64) error
	// LockSource serializes balance-affecting operations per source. The
	// returned function releases the lock; callers hold it across the whole
	// transaction-plus-balance unit.
	LockSource(id utils.SixID) func()
}

const fundingSourcesCollection = "funding_sources"

type fundingService struct {
	db *mongo.Database

	mu    sync.Mutex
	locks map[utils.SixID]*sync.Mutex
}

// NewFundingService creates a new FundingService.
func NewFundingService(database *mongo.Database) IFundingService {
	return &fundingService{
		db:    database,
		locks: make(map[utils.SixID]*sync.Mutex),
	}
}

func (s *fundingService) Create(ctx context.Context, label string, kind models.FundingKind, openingBalance int64) (*models.FundingSource, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: funding source label is required", ErrValidationFailed)
	}
	if openingBalance < 0 {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", ErrValidationFailed)
	}
	collection := s.db.Collection(fundingSourcesCollection)
	now := time.Now().UTC()

	var source *models.FundingSource
	operation := func() error {
		source = &models.FundingSource{
			Base:      models.NewBase(),
			Label:     label,
			Kind:      kind,
			Balance:   openingBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := collection.InsertOne(ctx, source)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert funding source %q: %w", label, err)
	}
	return source, nil
}

func (s *fundingService) FindByID(ctx context.Context, id utils.SixID) (*models.FundingSource, error) {
	var source models.FundingSource
	filter := bson.M{"_id": id, "deleted": false}
	err := s.db.Collection(fundingSourcesCollection).FindOne(ctx, filter).Decode(&source)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding funding source %s: %w", id.String(), err)
	}
	return &source, nil
}

func (s *fundingService) List(ctx context.Context) ([]models.FundingSource, error) {
	cursor, err := s.db.Collection(fundingSourcesCollection).Find(ctx, bson.M{"deleted": false})
	if err != nil {
		return nil, fmt.Errorf("failed to query funding sources: %w", err)
	}
	defer cursor.Close(ctx)

	var sources []models.FundingSource
	if err = cursor.All(ctx, &sources); err != nil {
		return nil, fmt.Errorf("failed to decode funding sources: %w", err)
	}
	return sources, nil
}

func (s *fundingService) GetBalance(ctx context.Context, id utils.SixID) (int64, error) {
	source, err := s.FindByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return source.Balance, nil
}

// AdjustBalance applies one signed delta. For debits the guard filter
// requires the current balance to cover the delta, so a concurrent writer
// can never push the balance negative even without the source lock.
func (s *fundingService) AdjustBalance(ctx context.Context, id utils.SixID, delta int64) error {
	collection := s.db.Collection(fundingSourcesCollection)

	filter := bson.M{"_id": id, "deleted": false}
	if delta < 0 {
		filter["balance"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"balance": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adjusting balance of %s by %d: %w", id.String(), delta, err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing source from an uncovered debit.
		var source models.FundingSource
		checkErr := collection.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&source)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("funding source %s not found", id.String())
		}
		if checkErr != nil {
			return fmt.Errorf("db error checking funding source %s: %w", id.String(), checkErr)
		}
		return fmt.Errorf("%w: source %q balance %d cannot cover %d", ErrInsufficientFunds, source.Label, source.Balance, -delta)
	}
	return nil
}

func (s *fundingService) LockSource(id utils.SixID) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
