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

// BookingRequest is the public intake form payload.
type BookingRequest struct {
	Name      string
	Phone     string
	Email     string
	PackageID utils.SixID
	EventDate time.Time
	Notes     string
}

// IBookingService is the intake gate for publicly submitted bookings. A
// submission lands as a BookingNew project that staff confirm or reject
// before it enters the normal workflow.
type IBookingService interface {
	Submit(ctx context.Context, req BookingRequest) (*models.Project, error)
	ListPending(ctx context.Context) ([]models.Project, error)
	Confirm(ctx context.Context, projectID utils.SixID) (*models.Project, error)
	Reject(ctx context.Context, projectID utils.SixID) (*models.Project, error)
}

type bookingService struct {
	db       *mongo.Database
	clients  IClientService
	packages IPackageService
	projects IProjectService
	costs    ICostService
}

// NewBookingService creates a new BookingService.
func NewBookingService(database *mongo.Database, clients IClientService, packages IPackageService, projects IProjectService, costs ICostService) IBookingService {
	return &bookingService{
		db:       database,
		clients:  clients,
		packages: packages,
		projects: projects,
		costs:    costs,
	}
}

func (s *bookingService) Submit(ctx context.Context, req BookingRequest) (*models.Project, error) {
	if req.Name == "" || req.Phone == "" {
		return nil, fmt.Errorf("%w: name and phone are required", ErrValidationFailed)
	}
	if req.EventDate.IsZero() {
		return nil, fmt.Errorf("%w: event date is required", ErrValidationFailed)
	}

	pkg, err := s.packages.FindByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: package %s not found", ErrPackageRequired, req.PackageID.String())
		}
		return nil, err
	}
	if !pkg.Active {
		return nil, fmt.Errorf("%w: package %q is no longer offered", ErrPackageRequired, pkg.Name)
	}

	client, err := s.clients.Create(ctx, req.Name, req.Phone, req.Email, "", nil)
	if err != nil {
		return nil, err
	}

	pkgID := pkg.ID
	project, err := s.projects.Create(ctx, CreateProjectRequest{
		Name:         fmt.Sprintf("%s - %s", req.Name, pkg.Name),
		ClientID:     client.ID,
		PackageID:    &pkgID,
		PackagePrice: pkg.Price,
		EventDate:    req.EventDate,
		PublicOrigin: true,
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *bookingService) ListPending(ctx context.Context) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(projectsCollection).Find(ctx,
		bson.M{"booking_status": models.BookingNew, "deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var projects []models.Project
	if err = cursor.All(ctx, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode pending bookings: %w", err)
	}
	return projects, nil
}

// gate flips the booking status, guarded so only a BookingNew project moves.
func (s *bookingService) gate(ctx context.Context, projectID utils.SixID, to models.BookingStatus) (*models.Project, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var project models.Project
	err := s.db.Collection(projectsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": projectID, "booking_status": models.BookingNew, "deleted": false},
		bson.M{"$set": bson.M{"booking_status": to, "updated_at": time.Now().UTC()}},
		opts).Decode(&project)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: project %s is not awaiting booking review", ErrInvalidTransition, projectID.String())
		}
		return nil, fmt.Errorf("failed to update booking status of project %s: %w", projectID.String(), err)
	}
	return &project, nil
}

// Confirm admits the booking into the workflow and seeds its printing costs
// from the package catalog.
func (s *bookingService) Confirm(ctx context.Context, projectID utils.SixID) (*models.Project, error) {
	project, err := s.gate(ctx, projectID, models.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	if project.PackageID != nil {
		pkg, pkgErr := s.packages.FindByID(ctx, *project.PackageID)
		if pkgErr == nil {
			if seedErr := s.costs.SeedPrintingItems(ctx, projectID, pkg); seedErr != nil {
				return nil, fmt.Errorf("booking confirmed but printing cost seeding failed: %w", seedErr)
			}
		}
	}
	return s.projects.FindByID(ctx, projectID)
}

func (s *bookingService) Reject(ctx context.Context, projectID utils.SixID) (*models.Project, error) {
	return s.gate(ctx, projectID, models.BookingRejected)
}
