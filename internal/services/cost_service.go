package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// ICostService mutates the cost line items embedded in a project. Every
// mutation keeps the project cost identity intact by shifting totalCost by
// the same delta. Once an item is Paid it is locked here; corrections to
// settled items go through the recalculator.
type ICostService interface {
	AddItem(ctx context.Context, projectID utils.SixID, label string, category models.CostCategory, amount int64) (*models.CostLineItem, error)
	EditItem(ctx context.Context, projectID, itemID utils.SixID, label string, amount int64) (*models.CostLineItem, error)
	RemoveItem(ctx context.Context, projectID, itemID utils.SixID) error
	SeedPrintingItems(ctx context.Context, projectID utils.SixID, pkg *models.Package) error
}

type costService struct {
	db       *mongo.Database
	projects IProjectService
}

// NewCostService creates a new CostService.
func NewCostService(database *mongo.Database, projects IProjectService) ICostService {
	return &costService{db: database, projects: projects}
}

func validCostCategory(c models.CostCategory) bool {
	switch c {
	case models.CostPrinting, models.CostTransport, models.CostCustom:
		return true
	}
	return false
}

func (s *costService) AddItem(ctx context.Context, projectID utils.SixID, label string, category models.CostCategory, amount int64) (*models.CostLineItem, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: cost item label is required", ErrValidationFailed)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: cost item amount must be positive", ErrValidationFailed)
	}
	if !validCostCategory(category) {
		return nil, fmt.Errorf("%w: unknown cost category %q", ErrValidationFailed, category)
	}

	item := models.CostLineItem{
		ID:       utils.NewSixID(),
		Label:    label,
		Category: category,
		Amount:   amount,
		Status:   models.CostUnpaid,
	}
	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{
			"$push": bson.M{"cost_items": item},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return nil, fmt.Errorf("db error adding cost item to project %s: %w", projectID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}

	if err := s.projects.ApplyTotalDelta(ctx, projectID, amount); err != nil {
		return nil, fmt.Errorf("cost item %s added but total update failed: %w", item.ID.String(), err)
	}
	return &item, nil
}

// EditItem rewrites label and amount of an Unpaid item. The guard filter
// matches only while the item is still Unpaid, so a concurrent settlement
// makes the edit fail with ErrItemLocked instead of mutating a paid item.
func (s *costService) EditItem(ctx context.Context, projectID, itemID utils.SixID, label string, amount int64) (*models.CostLineItem, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: cost item amount must be positive", ErrValidationFailed)
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	item := project.CostItem(itemID)
	if item == nil {
		return nil, fmt.Errorf("cost item %s not found on project %s", itemID.String(), projectID.String())
	}
	if item.Status == models.CostPaid {
		return nil, fmt.Errorf("%w: item %q", ErrItemLocked, item.Label)
	}
	if label == "" {
		label = item.Label
	}
	delta := amount - item.Amount

	filter := bson.M{"_id": projectID, "deleted": false}
	update := bson.M{
		"$set": bson.M{
			"cost_items.$[it].label":  label,
			"cost_items.$[it].amount": amount,
			"updated_at":              time.Now().UTC(),
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"it.id": itemID, "it.status": models.CostUnpaid}},
	})
	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return nil, fmt.Errorf("db error editing cost item %s: %w", itemID.String(), err)
	}
	if result.ModifiedCount == 0 {
		return nil, fmt.Errorf("%w: item %q", ErrItemLocked, item.Label)
	}

	if delta != 0 {
		if err := s.projects.ApplyTotalDelta(ctx, projectID, delta); err != nil {
			return nil, fmt.Errorf("cost item %s edited but total update failed: %w", itemID.String(), err)
		}
	}
	item.Label = label
	item.Amount = amount
	return item, nil
}

func (s *costService) RemoveItem(ctx context.Context, projectID, itemID utils.SixID) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	item := project.CostItem(itemID)
	if item == nil {
		return fmt.Errorf("cost item %s not found on project %s", itemID.String(), projectID.String())
	}
	if item.Status == models.CostPaid {
		return fmt.Errorf("%w: item %q", ErrItemLocked, item.Label)
	}

	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{
			"$pull": bson.M{"cost_items": bson.M{"id": itemID, "status": models.CostUnpaid}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("db error removing cost item %s: %w", itemID.String(), err)
	}
	if result.ModifiedCount == 0 {
		return fmt.Errorf("%w: item %q", ErrItemLocked, item.Label)
	}
	return s.projects.ApplyTotalDelta(ctx, projectID, -item.Amount)
}

// SeedPrintingItems copies the package's physical item catalog onto the
// project as Unpaid printing costs. Conversion calls this once per project.
func (s *costService) SeedPrintingItems(ctx context.Context, projectID utils.SixID, pkg *models.Package) error {
	if pkg == nil || len(pkg.PhysicalItems) == 0 {
		return nil
	}
	items := make([]models.CostLineItem, 0, len(pkg.PhysicalItems))
	var sum int64
	for _, pi := range pkg.PhysicalItems {
		if pi.Cost <= 0 {
			continue
		}
		items = append(items, models.CostLineItem{
			ID:       utils.NewSixID(),
			Label:    pi.Label,
			Category: models.CostPrinting,
			Amount:   pi.Cost,
			Status:   models.CostUnpaid,
		})
		sum += pi.Cost
	}
	if len(items) == 0 {
		return nil
	}

	result, err := s.db.Collection(projectsCollection).UpdateOne(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{
			"$push": bson.M{"cost_items": bson.M{"$each": items}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("db error seeding printing items on project %s: %w", projectID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return s.projects.ApplyTotalDelta(ctx, projectID, sum)
}
