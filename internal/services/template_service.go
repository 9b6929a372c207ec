package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kliklens/studioops/internal/models"
)

// Default message templates used as fallback when not customized in database
var defaultMessageTemplates = map[string]models.MessageTemplate{
	"confirmation_request": {
		TemplateID: "confirmation_request",
		Locale:     "id-ID",
		Subject:    "Mohon konfirmasi: {{.sub_status}}",
		Body:       "Halo {{.client_name}}, proyek {{.project_name}} sudah mencapai tahap \"{{.sub_status}}\". Mohon balas pesan ini untuk konfirmasi.",
	},
	"follow_up": {
		TemplateID: "follow_up",
		Locale:     "id-ID",
		Subject:    "Pengingat konfirmasi: {{.sub_status}}",
		Body:       "Halo {{.client_name}}, kami masih menunggu konfirmasi Anda untuk tahap \"{{.sub_status}}\" pada proyek {{.project_name}}.",
	},
	"booking_ack": {
		TemplateID: "booking_ack",
		Locale:     "id-ID",
		Subject:    "Booking diterima",
		Body:       "Halo {{.client_name}}, permintaan booking Anda untuk {{.package_name}} sudah kami terima dan sedang ditinjau.",
	},
	"payment_receipt": {
		TemplateID: "payment_receipt",
		Locale:     "id-ID",
		Subject:    "Pembayaran diterima",
		Body:       "Halo {{.client_name}}, pembayaran sebesar {{.amount}} untuk proyek {{.project_name}} sudah kami catat. Terima kasih.",
	},
}

// ITemplateService defines the interface for message template operations.
type ITemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.MessageTemplate, error)
	SaveTemplate(ctx context.Context, template *models.MessageTemplate) error
	DeleteTemplate(ctx context.Context, templateID, locale string) error
}

const messageTemplatesCollection = "message_templates"

// TemplateService handles operations related to message templates
type TemplateService struct {
	db *mongo.Database
}

// NewTemplateService creates a new instance of TemplateService
func NewTemplateService(db *mongo.Database) *TemplateService {
	return &TemplateService{db: db}
}

// GetTemplate retrieves a message template by ID and locale
func (s *TemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.MessageTemplate, error) {
	collection := s.db.Collection(messageTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	var template models.MessageTemplate
	err := collection.FindOne(ctx, filter).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if defaultTemplate, ok := defaultMessageTemplates[templateID]; ok {
				return &defaultTemplate, nil
			}
			return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
		}
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}

	return &template, nil
}

// SaveTemplate saves a message template to the database
func (s *TemplateService) SaveTemplate(ctx context.Context, template *models.MessageTemplate) error {
	collection := s.db.Collection(messageTemplatesCollection)
	filter := bson.M{
		"template_id": template.TemplateID,
		"locale":      template.Locale,
	}

	update := bson.M{"$set": template}
	opts := options.Update().SetUpsert(true)

	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

// DeleteTemplate deletes a message template from the database
func (s *TemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	collection := s.db.Collection(messageTemplatesCollection)
	filter := bson.M{
		"template_id": templateID,
		"locale":      locale,
	}

	if _, err := collection.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}
