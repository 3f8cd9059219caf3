package memory

import (
	"context"

	"agent-backoffice/internal/domain"
)

// LeadRepository serves a fixed lead list (demos, tests).
type LeadRepository struct {
	leads []domain.Lead
}

func NewLeadRepository(leads []domain.Lead) *LeadRepository {
	return &LeadRepository{leads: append([]domain.Lead(nil), leads...)}
}

func (r *LeadRepository) ListLeads(_ context.Context) ([]domain.Lead, error) {
	return append([]domain.Lead(nil), r.leads...), nil
}
