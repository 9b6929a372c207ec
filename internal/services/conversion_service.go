package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/models"
	"kliklens/studioops/internal/utils"
)

// ConvertLeadRequest carries everything needed to turn a lead into a client
// with a live project.
type ConvertLeadRequest struct {
	LeadID          utils.SixID
	ProjectName     string
	PackageID       utils.SixID
	AddOns          []models.AddOn
	PromoCode       string
	EventDate       time.Time
	Team            []models.TeamAssignment
	ClientEmail     string
	ClientAddress   string
	DepositAmount   int64
	DepositSourceID *utils.SixID
}

// ConversionResult reports what the pipeline produced. Warnings collect the
// fail-forward steps that did not complete; the conversion itself stands.
type ConversionResult struct {
	Lead     *models.Lead      `json:"lead"`
	Client   *models.Client    `json:"client"`
	Project  *models.Project   `json:"project"`
	Warnings []string          `json:"warnings,omitempty"`
	Promo    *models.PromoCode `json:"promo,omitempty"`
}

// IConversionService runs the lead-to-project pipeline. The lead status flip
// is the commit point: once the lead is Converted, later step failures are
// reported as warnings rather than rolling the conversion back. The deposit
// is the exception: its failure returns ErrDepositFailed (with the created
// records still in the result) and skips the promo usage increment.
type IConversionService interface {
	Convert(ctx context.Context, req ConvertLeadRequest) (*ConversionResult, error)
}

type conversionService struct {
	leads    ILeadService
	clients  IClientService
	packages IPackageService
	promos   IPromoService
	projects IProjectService
	costs    ICostService
}

// NewConversionService creates a new ConversionService.
func NewConversionService(leads ILeadService, clients IClientService, packages IPackageService, promos IPromoService, projects IProjectService, costs ICostService) IConversionService {
	return &conversionService{
		leads:    leads,
		clients:  clients,
		packages: packages,
		promos:   promos,
		projects: projects,
		costs:    costs,
	}
}

func (s *conversionService) Convert(ctx context.Context, req ConvertLeadRequest) (*ConversionResult, error) {
	if req.PackageID == (utils.SixID{}) {
		return nil, ErrPackageRequired
	}
	if req.DepositAmount < 0 {
		return nil, fmt.Errorf("%w: deposit cannot be negative", ErrValidationFailed)
	}
	if req.DepositAmount > 0 && req.DepositSourceID == nil {
		return nil, fmt.Errorf("%w: deposit needs a funding source", ErrValidationFailed)
	}

	lead, err := s.leads.FindByID(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}
	if !lead.Status.Convertible() {
		return nil, fmt.Errorf("%w: lead %s is %s", ErrInvalidTransition, lead.ID.String(), lead.Status)
	}

	pkg, err := s.packages.FindByID(ctx, req.PackageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: package %s not found", ErrPackageRequired, req.PackageID.String())
		}
		return nil, err
	}

	result := &ConversionResult{}

	// An unusable promo does not block the conversion; it just yields no
	// discount.
	var discount int64
	var promoID *utils.SixID
	if req.PromoCode != "" {
		promo, promoErr := s.promos.Validate(ctx, req.PromoCode)
		if promoErr != nil {
			if !errors.Is(promoErr, ErrInvalidPromo) {
				return nil, promoErr
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("promo code %q not applied: %v", req.PromoCode, promoErr))
		} else {
			discount = promo.DiscountFor(pkg.Price)
			id := promo.ID
			promoID = &id
			result.Promo = promo
		}
	}

	// Commit point. The guard filter inside MarkConverted makes sure two
	// concurrent conversions of the same lead cannot both pass.
	if err := s.leads.MarkConverted(ctx, req.LeadID); err != nil {
		return nil, err
	}
	lead.Status = models.LeadConverted
	result.Lead = lead

	leadID := lead.ID
	client, err := s.clients.Create(ctx, lead.Name, lead.Phone, req.ClientEmail, req.ClientAddress, &leadID)
	if err != nil {
		return nil, fmt.Errorf("lead %s converted but client creation failed: %w", lead.ID.String(), err)
	}
	result.Client = client

	projectName := req.ProjectName
	if projectName == "" {
		projectName = fmt.Sprintf("%s - %s", lead.Name, pkg.Name)
	}
	pkgID := pkg.ID
	project, err := s.projects.Create(ctx, CreateProjectRequest{
		Name:         projectName,
		ClientID:     client.ID,
		PackageID:    &pkgID,
		PackagePrice: pkg.Price,
		AddOns:       req.AddOns,
		Discount:     discount,
		EventDate:    req.EventDate,
		Team:         req.Team,
	})
	if err != nil {
		return nil, fmt.Errorf("lead %s converted but project creation failed: %w", lead.ID.String(), err)
	}
	if promoID != nil {
		if err := s.projects.SetPromoCode(ctx, project.ID, *promoID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("promo reference not stored: %v", err))
		}
	}

	if err := s.costs.SeedPrintingItems(ctx, project.ID, pkg); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("printing costs not seeded: %v", err))
		log.Printf("WARN: conversion of lead %s: printing cost seeding failed: %v", lead.ID.String(), err)
	}

	// The conversion stands even when the deposit write fails, but the
	// caller must not see success for money that was never booked, and the
	// promo redemption is not burned for it.
	if req.DepositAmount > 0 {
		if _, payErr := s.projects.RecordClientPayment(ctx, project.ID, req.DepositAmount, *req.DepositSourceID, ""); payErr != nil {
			log.Printf("WARN: conversion of lead %s: deposit recording failed: %v", lead.ID.String(), payErr)
			if fetched, fetchErr := s.projects.FindByID(ctx, project.ID); fetchErr == nil {
				project = fetched
			}
			result.Project = project
			return result, fmt.Errorf("%w: project %s created but deposit of %d was not booked: %v",
				ErrDepositFailed, project.ID.String(), req.DepositAmount, payErr)
		}
	}

	if promoID != nil {
		if err := s.promos.IncrementUsage(ctx, *promoID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("promo usage not counted: %v", err))
			log.Printf("WARN: conversion of lead %s: promo usage increment failed: %v", lead.ID.String(), err)
		}
	}

	project, err = s.projects.FindByID(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("conversion finished but project re-fetch failed: %w", err)
	}
	result.Project = project
	return result, nil
}
