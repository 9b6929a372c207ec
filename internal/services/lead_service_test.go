package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"kliklens/studioops/internal/models"
)

func TestLeadService_Lifecycle(t *testing.T) {
	env := newTestEnv(t, "testdb_lead_lifecycle")
	ctx := context.Background()
	leads := NewLeadService(env.db)

	lead, err := leads.Create(ctx, "Siti", "whatsapp", "+62811111111", "asked about prewedding")
	require.NoError(t, err)
	assert.Equal(t, models.LeadDiscussion, lead.Status)

	_, err = leads.Create(ctx, "", "whatsapp", "", "")
	assert.ErrorIs(t, err, ErrValidationFailed)

	err = leads.UpdateNotes(ctx, lead.ID, "prefers outdoor shoot")
	require.NoError(t, err)
	found, err := leads.FindByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "prefers outdoor shoot", found.Notes)

	listed, err := leads.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	err = leads.Delete(ctx, lead.ID)
	require.NoError(t, err)
	_, err = leads.FindByID(ctx, lead.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	err = leads.Delete(ctx, lead.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestLeadService_Transitions(t *testing.T) {
	env := newTestEnv(t, "testdb_lead_transitions")
	ctx := context.Background()
	leads := NewLeadService(env.db)

	lead, err := leads.Create(ctx, "Budi", "instagram", "", "")
	require.NoError(t, err)

	// Discussion and FollowUp swing both ways.
	updated, err := leads.Transition(ctx, lead.ID, models.LeadFollowUp)
	require.NoError(t, err)
	assert.Equal(t, models.LeadFollowUp, updated.Status)
	updated, err = leads.Transition(ctx, lead.ID, models.LeadDiscussion)
	require.NoError(t, err)
	assert.Equal(t, models.LeadDiscussion, updated.Status)

	// Converted is reserved for the conversion pipeline.
	_, err = leads.Transition(ctx, lead.ID, models.LeadConverted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = leads.MarkConverted(ctx, lead.ID)
	require.NoError(t, err)

	// Converted is terminal.
	_, err = leads.Transition(ctx, lead.ID, models.LeadFollowUp)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = leads.MarkConverted(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLeadService_RejectedIsTerminal(t *testing.T) {
	env := newTestEnv(t, "testdb_lead_rejected")
	ctx := context.Background()
	leads := NewLeadService(env.db)

	lead, err := leads.Create(ctx, "Rina", "referral", "", "")
	require.NoError(t, err)
	_, err = leads.Transition(ctx, lead.ID, models.LeadRejected)
	require.NoError(t, err)

	_, err = leads.Transition(ctx, lead.ID, models.LeadDiscussion)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = leads.MarkConverted(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Status filter on List.
	status := models.LeadRejected
	rejected, err := leads.List(ctx, &status)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, lead.ID, rejected[0].ID)
}
