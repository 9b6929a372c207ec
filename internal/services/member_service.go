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

// IMemberService manages the roster of freelancers and staff assignable to
// project teams.
type IMemberService interface {
	Create(ctx context.Context, name, role, phone string, defaultFee int64) (*models.TeamMember, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.TeamMember, error)
	List(ctx context.Context, activeOnly bool) ([]models.TeamMember, error)
	Update(ctx context.Context, id utils.SixID, name, role, phone string, defaultFee int64, active bool) (*models.TeamMember, error)
	Delete(ctx context.Context, id utils.SixID) error
}

const teamMembersCollection = "team_members"

type memberService struct {
	db *mongo.Database
}

// NewMemberService creates a new MemberService.
func NewMemberService(database *mongo.Database) IMemberService {
	return &memberService{db: database}
}

func (s *memberService) Create(ctx context.Context, name, role, phone string, defaultFee int64) (*models.TeamMember, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: member name is required", ErrValidationFailed)
	}
	if defaultFee < 0 {
		return nil, fmt.Errorf("%w: default fee cannot be negative", ErrValidationFailed)
	}
	collection := s.db.Collection(teamMembersCollection)

	var member *models.TeamMember
	operation := func() error {
		member = &models.TeamMember{
			Base:       models.NewBase(),
			Name:       name,
			Role:       role,
			Phone:      phone,
			DefaultFee: defaultFee,
			Active:     true,
			CreatedAt:  time.Now().UTC(),
		}
		_, insertErr := collection.InsertOne(ctx, member)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert team member %q: %w", name, err)
	}
	return member, nil
}

func (s *memberService) FindByID(ctx context.Context, id utils.SixID) (*models.TeamMember, error) {
	var member models.TeamMember
	err := s.db.Collection(teamMembersCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding team member %s: %w", id.String(), err)
	}
	return &member, nil
}

func (s *memberService) List(ctx context.Context, activeOnly bool) ([]models.TeamMember, error) {
	filter := bson.M{"deleted": false}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(teamMembersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer cursor.Close(ctx)

	var members []models.TeamMember
	if err = cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode team members: %w", err)
	}
	return members, nil
}

func (s *memberService) Update(ctx context.Context, id utils.SixID, name, role, phone string, defaultFee int64, active bool) (*models.TeamMember, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: member name is required", ErrValidationFailed)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var member models.TeamMember
	err := s.db.Collection(teamMembersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{
			"name":        name,
			"role":        role,
			"phone":       phone,
			"default_fee": defaultFee,
			"active":      active,
		}},
		opts).Decode(&member)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update team member %s: %w", id.String(), err)
	}
	return &member, nil
}

func (s *memberService) Delete(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(teamMembersCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "active": false}})
	if err != nil {
		return fmt.Errorf("db error deleting team member %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
