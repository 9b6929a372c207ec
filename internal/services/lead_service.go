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

// ILeadService manages the pre-sales pipeline up to the point conversion
// takes over.
type ILeadService interface {
	Create(ctx context.Context, name, channel, phone, notes string) (*models.Lead, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.Lead, error)
	List(ctx context.Context, status *models.LeadStatus) ([]models.Lead, error)
	Transition(ctx context.Context, id utils.SixID, to models.LeadStatus) (*models.Lead, error)
	// MarkConverted flips the lead into Converted, guarded so only a
	// convertible lead passes. The conversion pipeline calls this first.
	MarkConverted(ctx context.Context, id utils.SixID) error
	UpdateNotes(ctx context.Context, id utils.SixID, notes string) error
	Delete(ctx context.Context, id utils.SixID) error
}

const leadsCollection = "leads"

type leadService struct {
	db *mongo.Database
}

// NewLeadService creates a new LeadService.
func NewLeadService(database *mongo.Database) ILeadService {
	return &leadService{db: database}
}

func (s *leadService) Create(ctx context.Context, name, channel, phone, notes string) (*models.Lead, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: lead name is required", ErrValidationFailed)
	}
	collection := s.db.Collection(leadsCollection)
	now := time.Now().UTC()

	var lead *models.Lead
	operation := func() error {
		lead = &models.Lead{
			Base:      models.NewBase(),
			Name:      name,
			Channel:   channel,
			Phone:     phone,
			Notes:     notes,
			Status:    models.LeadDiscussion,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := collection.InsertOne(ctx, lead)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert lead %q: %w", name, err)
	}
	return lead, nil
}

func (s *leadService) FindByID(ctx context.Context, id utils.SixID) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.Collection(leadsCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&lead)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding lead %s: %w", id.String(), err)
	}
	return &lead, nil
}

func (s *leadService) List(ctx context.Context, status *models.LeadStatus) ([]models.Lead, error) {
	filter := bson.M{"deleted": false}
	if status != nil {
		filter["status"] = *status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(leadsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer cursor.Close(ctx)

	var leads []models.Lead
	if err = cursor.All(ctx, &leads); err != nil {
		return nil, fmt.Errorf("failed to decode leads: %w", err)
	}
	return leads, nil
}

func (s *leadService) Transition(ctx context.Context, id utils.SixID, to models.LeadStatus) (*models.Lead, error) {
	lead, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lead.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, lead.Status, to)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Lead
	err = s.db.Collection(leadsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": lead.Status, "deleted": false},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}},
		opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Raced with another transition; the from-status no longer holds.
			return nil, fmt.Errorf("%w: lead %s changed concurrently", ErrInvalidTransition, id.String())
		}
		return nil, fmt.Errorf("failed to transition lead %s: %w", id.String(), err)
	}
	return &updated, nil
}

func (s *leadService) MarkConverted(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(leadsCollection).UpdateOne(ctx,
		bson.M{
			"_id":     id,
			"status":  bson.M{"$in": []models.LeadStatus{models.LeadDiscussion, models.LeadFollowUp}},
			"deleted": false,
		},
		bson.M{"$set": bson.M{"status": models.LeadConverted, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error converting lead %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		lead, findErr := s.FindByID(ctx, id)
		if findErr != nil {
			return findErr
		}
		return fmt.Errorf("%w: lead %s is %s", ErrInvalidTransition, id.String(), lead.Status)
	}
	return nil
}

func (s *leadService) UpdateNotes(ctx context.Context, id utils.SixID, notes string) error {
	result, err := s.db.Collection(leadsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"notes": notes, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error updating notes of lead %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *leadService) Delete(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(leadsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error deleting lead %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
