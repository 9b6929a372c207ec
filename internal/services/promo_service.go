package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/db"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// IPromoService manages promo codes and their usage accounting.
type IPromoService interface {
	Create(ctx context.Context, code string, discountType models.DiscountType, discountValue int64, maxUsage int, expiresAt *time.Time) (*models.PromoCode, error)
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	// Validate returns the promo if it is usable right now, ErrInvalidPromo
	// otherwise.
	Validate(ctx context.Context, code string) (*models.PromoCode, error)
	// IncrementUsage counts one redemption, guarded against exceeding
	// maxUsage under concurrency.
	IncrementUsage(ctx context.Context, id utils.SixID) error
	Deactivate(ctx context.Context, id utils.SixID) error
}

const promoCodesCollection = "promo_codes"

type promoService struct {
	db *mongo.Database
}

// NewPromoService creates a new PromoService.
func NewPromoService(database *mongo.Database) IPromoService {
	return &promoService{db: database}
}

func (s *promoService) Create(ctx context.Context, code string, discountType models.DiscountType, discountValue int64, maxUsage int, expiresAt *time.Time) (*models.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: promo code is required", ErrValidationFailed)
	}
	if discountValue <= 0 {
		return nil, fmt.Errorf("%w: discount value must be positive", ErrValidationFailed)
	}
	if discountType == models.DiscountPercent && discountValue > 100 {
		return nil, fmt.Errorf("%w: percent discount cannot exceed 100", ErrValidationFailed)
	}
	collection := s.db.Collection(promoCodesCollection)

	var promo *models.PromoCode
	operation := func() error {
		promo = &models.PromoCode{
			Base:          models.NewBase(),
			Code:          code,
			DiscountType:  discountType,
			DiscountValue: discountValue,
			MaxUsage:      maxUsage,
			ExpiresAt:     expiresAt,
			Active:        true,
			CreatedAt:     time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, promo)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert promo code %q: %w", code, err)
	}
	return promo, nil
}

func (s *promoService) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var promo models.PromoCode
	err := s.db.Collection(promoCodesCollection).
		FindOne(ctx, bson.M{"code": code, "deleted": false}).Decode(&promo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding promo code %q: %w", code, err)
	}
	return &promo, nil
}

func (s *promoService) List(ctx context.Context) ([]models.PromoCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(promoCodesCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query promo codes: %w", err)
	}
	defer cursor.Close(ctx)

	var promos []models.PromoCode
	if err = cursor.All(ctx, &promos); err != nil {
		return nil, fmt.Errorf("failed to decode promo codes: %w", err)
	}
	return promos, nil
}

func (s *promoService) Validate(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, err := s.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %q not found", ErrInvalidPromo, code)
		}
		return nil, err
	}
	if !promo.Usable(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: %q is inactive, expired or exhausted", ErrInvalidPromo, promo.Code)
	}
	return promo, nil
}

func (s *promoService) IncrementUsage(ctx context.Context, id utils.SixID) error {
	filter := bson.M{"_id": id, "active": true, "deleted": false}
	// A zero maxUsage means unlimited; otherwise the guard keeps concurrent
	// redemptions from pushing usage past the cap.
	filter["$or"] = bson.A{
		bson.M{"max_usage": 0},
		bson.M{"$expr": bson.M{"$lt": bson.A{"$usage_count", "$max_usage"}}},
	}
	result, err := s.db.Collection(promoCodesCollection).UpdateOne(ctx, filter,
		bson.M{"$inc": bson.M{"usage_count": 1}})
	if err != nil {
		return fmt.Errorf("db error incrementing usage of promo %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: promo %s can no longer be redeemed", ErrInvalidPromo, id.String())
	}
	return nil
}

func (s *promoService) Deactivate(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(promoCodesCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return fmt.Errorf("db error deactivating promo %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
