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

// FollowUpItem is one overdue confirmation found by the sweep.
type FollowUpItem struct {
	ProjectID   utils.SixID `json:"project_id"`
	ProjectName string      `json:"project_name"`
	SubStatus   string      `json:"sub_status"`
	Recipient   string      `json:"recipient"`
	SentAt      time.Time   `json:"sent_at"`
}

// IWorkflowService moves projects through the tenant's status pipeline and
// runs the sub-status confirmation cycle with the client.
type IWorkflowService interface {
	// SetStatus moves the project to a new status. Progress and the active
	// sub-status set change in the same write, so no reader ever sees the
	// new status with the old checklist state.
	SetStatus(ctx context.Context, projectID utils.SixID, status string) (*models.Project, error)
	ToggleSubStatus(ctx context.Context, projectID utils.SixID, subStatus string, active bool) (*models.Project, error)
	// RequestConfirmation stamps the sub-status as sent to the client. The
	// caller enqueues the outbound message after this returns.
	RequestConfirmation(ctx context.Context, projectID utils.SixID, subStatus, recipient string) (*models.Project, error)
	// RecordClientConfirmation is monotonic: confirming twice is a no-op and
	// a confirmation is never retracted by later status moves.
	RecordClientConfirmation(ctx context.Context, projectID utils.SixID, subStatus, clientNote string) (*models.Project, error)
	// PendingFollowUps lists confirmations sent more than maxAge ago that
	// the client has not answered.
	PendingFollowUps(ctx context.Context, maxAge time.Duration) ([]FollowUpItem, error)
}

type workflowService struct {
	db       *mongo.Database
	settings ISettingsService
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(database *mongo.Database, settings ISettingsService) IWorkflowService {
	return &workflowService{db: database, settings: settings}
}

func (s *workflowService) findProject(ctx context.Context, projectID utils.SixID) (*models.Project, error) {
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

func (s *workflowService) SetStatus(ctx context.Context, projectID utils.SixID, status string) (*models.Project, error) {
	workflow := s.settings.GetWorkflowConfig(ctx)
	if !workflow.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var project models.Project
	err := s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{"$set": bson.M{
			"status":              status,
			"progress":            workflow.ProgressFor(status),
			"active_sub_statuses": []string{},
			"updated_at":          time.Now().UTC(),
		}},
		opts).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to set status of project %s: %w", projectID.String(), err)
	}
	return &project, nil
}

func (s *workflowService) ToggleSubStatus(ctx context.Context, projectID utils.SixID, subStatus string, active bool) (*models.Project, error) {
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubStatus(ctx, project, subStatus); err != nil {
		return nil, err
	}

	update := bson.M{
		"$addToSet": bson.M{"active_sub_statuses": subStatus},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	if !active {
		update = bson.M{
			"$pull": bson.M{"active_sub_statuses": subStatus},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Project
	err = s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": projectID, "deleted": false}, update, opts).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle sub-status %q on project %s: %w", subStatus, projectID.String(), err)
	}
	return &updated, nil
}

func (s *workflowService) checkSubStatus(ctx context.Context, project *models.Project, subStatus string) error {
	workflow := s.settings.GetWorkflowConfig(ctx)
	for _, name := range workflow.ChecklistFor(project.Status, project.ChecklistOverride) {
		if name == subStatus {
			return nil
		}
	}
	return fmt.Errorf("%w: sub-status %q is not on the checklist of %q", ErrValidationFailed, subStatus, project.Status)
}

func (s *workflowService) RequestConfirmation(ctx context.Context, projectID utils.SixID, subStatus, recipient string) (*models.Project, error) {
	if recipient == "" {
		return nil, fmt.Errorf("%w: confirmation recipient is required", ErrValidationFailed)
	}
	project, err := s.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.checkSubStatus(ctx, project, subStatus); err != nil {
		return nil, err
	}
	if project.IsConfirmed(subStatus) {
		return nil, fmt.Errorf("%w: sub-status %q already confirmed", ErrValidationFailed, subStatus)
	}

	now := time.Now().UTC()
	field := "sub_status_info." + subStatus
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Project
	err = s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{"$set": bson.M{
			field + ".sent_at":   now,
			field + ".recipient": recipient,
			"updated_at":         now,
		}},
		opts).Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to record confirmation request for %q on project %s: %w", subStatus, projectID.String(), err)
	}
	return &updated, nil
}

func (s *workflowService) RecordClientConfirmation(ctx context.Context, projectID utils.SixID, subStatus, clientNote string) (*models.Project, error) {
	now := time.Now().UTC()
	set := bson.M{"updated_at": now}
	if clientNote != "" {
		set["sub_status_info."+subStatus+".client_note"] = clientNote
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Project
	err := s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": projectID, "deleted": false},
		bson.M{
			"$addToSet": bson.M{"confirmed_sub_statuses": subStatus},
			"$set":      set,
		},
		opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to record client confirmation of %q on project %s: %w", subStatus, projectID.String(), err)
	}
	return &updated, nil
}

func (s *workflowService) PendingFollowUps(ctx context.Context, maxAge time.Duration) ([]FollowUpItem, error) {
	filter := bson.M{
		"deleted":         false,
		"sub_status_info": bson.M{"$exists": true, "$ne": bson.M{}},
	}
	cursor, err := s.db.Collection(projectsCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects for follow-up sweep: %w", err)
	}
	defer cursor.Close(ctx)

	now := time.Now().UTC()
	var items []FollowUpItem
	for cursor.Next(ctx) {
		var project models.Project
		if err := cursor.Decode(&project); err != nil {
			continue
		}
		for subStatus, info := range project.SubStatusInfo {
			if !project.NeedsFollowUp(subStatus, maxAge, now) {
				continue
			}
			items = append(items, FollowUpItem{
				ProjectID:   project.ID,
				ProjectName: project.Name,
				SubStatus:   subStatus,
				Recipient:   info.Recipient,
				SentAt:      *info.SentAt,
			})
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow-up cursor: %w", err)
	}
	return items, nil
}
