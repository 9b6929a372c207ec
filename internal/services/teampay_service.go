package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/db"
	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// ITeamPaymentService maintains the per-member payment records derived from
// a project's team assignments.
type ITeamPaymentService interface {
	// RegenerateForProject reconciles payment records against the current
	// team. Unpaid records track the assignments; Paid records are immutable
	// history and get orphaned instead of deleted when their member leaves.
	RegenerateForProject(ctx context.Context, projectID utils.SixID, team []models.TeamAssignment) ([]models.TeamPaymentRecord, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.TeamPaymentRecord, error)
	ListByProject(ctx context.Context, projectID utils.SixID) ([]models.TeamPaymentRecord, error)
	DeleteByProject(ctx context.Context, projectID utils.SixID) error
}

const teamPaymentsCollection = "team_payments"

type teamPaymentService struct {
	db *mongo.Database
}

// NewTeamPaymentService creates a new TeamPaymentService.
func NewTeamPaymentService(database *mongo.Database) ITeamPaymentService {
	return &teamPaymentService{db: database}
}

func (s *teamPaymentService) RegenerateForProject(ctx context.Context, projectID utils.SixID, team []models.TeamAssignment) ([]models.TeamPaymentRecord, error) {
	collection := s.db.Collection(teamPaymentsCollection)
	now := time.Now().UTC()

	existing, err := s.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byMember := make(map[utils.SixID]*models.TeamPaymentRecord, len(existing))
	for i := range existing {
		byMember[existing[i].MemberID] = &existing[i]
	}

	assigned := make(map[utils.SixID]bool, len(team))
	for _, a := range team {
		assigned[a.MemberID] = true
		record, ok := byMember[a.MemberID]
		if !ok {
			var fresh *models.TeamPaymentRecord
			operation := func() error {
				fresh = &models.TeamPaymentRecord{
					Base:      models.NewBase(),
					ProjectID: projectID,
					MemberID:  a.MemberID,
					Role:      a.Role,
					Fee:       a.Fee,
					Reward:    a.Reward,
					Status:    models.TeamPaymentUnpaid,
					CreatedAt: now,
					UpdatedAt: now,
				}
				_, insertErr := collection.InsertOne(ctx, fresh)
				return insertErr
			}
			if err := db.Try(operation); err != nil {
				return nil, fmt.Errorf("failed to insert team payment record for member %s: %w", a.MemberID.String(), err)
			}
			continue
		}

		// A Paid record keeps its settled amounts; only role and the orphan
		// flag are refreshed. Unpaid records track the assignment.
		set := bson.M{"role": a.Role, "orphaned": false, "updated_at": now}
		if record.Status != models.TeamPaymentPaid {
			set["fee"] = a.Fee
			set["reward"] = a.Reward
		}
		if _, err := collection.UpdateByID(ctx, record.ID, bson.M{"$set": set}); err != nil {
			return nil, fmt.Errorf("failed to update team payment record %s: %w", record.ID.String(), err)
		}
	}

	for _, record := range existing {
		if assigned[record.MemberID] {
			continue
		}
		update := bson.M{"$set": bson.M{"deleted": true, "updated_at": now}}
		if record.Status == models.TeamPaymentPaid {
			update = bson.M{"$set": bson.M{"orphaned": true, "updated_at": now}}
		}
		if _, err := collection.UpdateByID(ctx, record.ID, update); err != nil {
			return nil, fmt.Errorf("failed to retire team payment record %s: %w", record.ID.String(), err)
		}
	}

	return s.ListByProject(ctx, projectID)
}

func (s *teamPaymentService) FindByID(ctx context.Context, id utils.SixID) (*models.TeamPaymentRecord, error) {
	var record models.TeamPaymentRecord
	err := s.db.Collection(teamPaymentsCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding team payment record %s: %w", id.String(), err)
	}
	return &record, nil
}

func (s *teamPaymentService) ListByProject(ctx context.Context, projectID utils.SixID) ([]models.TeamPaymentRecord, error) {
	cursor, err := s.db.Collection(teamPaymentsCollection).
		Find(ctx, bson.M{"project_id": projectID, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("failed to query team payment records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.TeamPaymentRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode team payment records: %w", err)
	}
	return records, nil
}

func (s *teamPaymentService) DeleteByProject(ctx context.Context, projectID utils.SixID) error {
	_, err := s.db.Collection(teamPaymentsCollection).UpdateMany(ctx,
		bson.M{"project_id": projectID, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error deleting team payment records of project %s: %w", projectID.String(), err)
	}
	return nil
}
