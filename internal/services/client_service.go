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

// IClientService manages client records.
type IClientService interface {
	Create(ctx context.Context, name, phone, email, address string, leadID *utils.SixID) (*models.Client, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.Client, error)
	FindByLead(ctx context.Context, leadID utils.SixID) (*models.Client, error)
	List(ctx context.Context) ([]models.Client, error)
	Update(ctx context.Context, id utils.SixID, name, phone, email, address string) (*models.Client, error)
	Delete(ctx context.Context, id utils.SixID) error
}

const clientsCollection = "clients"

type clientService struct {
	db *mongo.Database
}

// NewClientService creates a new ClientService.
func NewClientService(database *mongo.Database) IClientService {
	return &clientService{db: database}
}

func (s *clientService) Create(ctx context.Context, name, phone, email, address string, leadID *utils.SixID) (*models.Client, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidationFailed)
	}
	collection := s.db.Collection(clientsCollection)
	now := time.Now().UTC()

	var client *models.Client
	operation := func() error {
		client = &models.Client{
			Base:      models.NewBase(),
			Name:      name,
			Phone:     phone,
			Email:     email,
			Address:   address,
			LeadID:    leadID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, insertErr := collection.InsertOne(ctx, client)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert client %q: %w", name, err)
	}
	return client, nil
}

func (s *clientService) FindByID(ctx context.Context, id utils.SixID) (*models.Client, error) {
	var client models.Client
	err := s.db.Collection(clientsCollection).
		FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding client %s: %w", id.String(), err)
	}
	return &client, nil
}

func (s *clientService) FindByLead(ctx context.Context, leadID utils.SixID) (*models.Client, error) {
	var client models.Client
	err := s.db.Collection(clientsCollection).
		FindOne(ctx, bson.M{"lead_id": leadID, "deleted": false}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding client by lead %s: %w", leadID.String(), err)
	}
	return &client, nil
}

func (s *clientService) List(ctx context.Context) ([]models.Client, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(clientsCollection).Find(ctx, bson.M{"deleted": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer cursor.Close(ctx)

	var clients []models.Client
	if err = cursor.All(ctx, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) Update(ctx context.Context, id utils.SixID, name, phone, email, address string) (*models.Client, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: client name is required", ErrValidationFailed)
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var client models.Client
	err := s.db.Collection(clientsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{
			"name":       name,
			"phone":      phone,
			"email":      email,
			"address":    address,
			"updated_at": time.Now().UTC(),
		}},
		opts).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update client %s: %w", id.String(), err)
	}
	return &client, nil
}

func (s *clientService) Delete(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(clientsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("db error deleting client %s: %w", id.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
