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

// IPackageService manages the service package catalog, including the
// physical item lists that seed printing costs at conversion.
type IPackageService interface {
	Create(ctx context.Context, name string, price int64, description string, physicalItems []models.PhysicalItem) (*models.Package, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.Package, error)
	List(ctx context.Context, activeOnly bool) ([]models.Package, error)
	Update(ctx context.Context, id utils.SixID, name string, price int64, description string, physicalItems []models.PhysicalItem, active bool) (*models.Package, error)
	Delete(ctx context.Context, id utils.SixID) error
}

const packagesCollection = "packages"

type packageService struct {
	db *mongo.Database
}

// NewPackageService creates a new PackageService.
func NewPackageService(database *mongo.Database) IPackageService {
	return &packageService{db: database}
}

func (s *packageService) Create(ctx context.Context, name string, price int64, description string, physicalItems []models.PhysicalItem) (*models.Package, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: package name is required", ErrValidationFailed)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: package price cannot be negative", ErrValidationFailed)
	}
	collection := s.db.Collection(packagesCollection)

	var pkg *models.Package
	operation := func() error {
		pkg = &models.Package{
			Base:          models.NewBase(),
			Name:          name,
			Price:         price,
			Description:   description,
			PhysicalItems: physicalItems,
			Active:        true,
			CreatedAt:     time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, pkg)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert package %q: %w", name, err)
	}
	return pkg, nil
}

func (s *packageService) FindByID(ctx context.Context, id utils.SixID) (*models.Package, error) {
	var pkg models.Package
	err := s.db.Collection(packagesCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&pkg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding package %s: %w", id.String(), err)
	}
	return &pkg, nil
}

func (s *packageService) List(ctx context.Context, activeOnly bool) ([]models.Package, error) {
	filter := bson.M{"deleted": false}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "price", Value: 1}})
	cursor, err := s.db.Collection(packagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}
	defer cursor.Close(ctx)

	var packages []models.Package
	if err = cursor.All(ctx, &packages); err != nil {
		return nil, fmt.Errorf("failed to decode packages: %w", err)
	}
	return packages, nil
}

func (s *packageService) Update(ctx context.Context, id utils.SixID, name string, price int64, description string, physicalItems []models.PhysicalItem, active bool) (*models.Package, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: package name is required", ErrValidationFailed)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: package price cannot be negative", ErrValidationFailed)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var pkg models.Package
	err := s.db.Collection(packagesCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{
			"name":           name,
			"price":          price,
			"description":    description,
			"physical_items": physicalItems,
			"active":         active,
		}},
		opts).Decode(&pkg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update package %s: %w", id.String(), err)
	}
	return &pkg, nil
}

func (s *packageService) Delete(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(packagesCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "active": false}})
	if err != nil {
		return fmt.Errorf("db error deleting package %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
