package postgres

import (
	"context"
	"fmt"
	"time"

	"agent-backoffice/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// LeadRepository reads the lead table maintained by the CRM side.
type LeadRepository struct {
	pool *pgxpool.Pool
}

func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

func (r *LeadRepository) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, phone, status, created_at, last_contact_at,
		       COALESCE(product, ''), COALESCE(agent_id, '')
		FROM leads
		ORDER BY created_at NULLS FIRST, id`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := []domain.Lead{}
	for rows.Next() {
		var (
			l           domain.Lead
			status      string
			created     *time.Time
			lastContact *time.Time
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &status, &created, &lastContact, &l.Product, &l.AgentID); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.Status = domain.LeadStatus(status)
		l.CreatedDate = created
		l.LastContactDate = lastContact
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}
