package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agent-backoffice/internal/app"
	"agent-backoffice/internal/domain"
	"agent-backoffice/internal/infra/memory"
)

func TestPipelineServiceSummary(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	ago := func(d int) *time.Time { ts := now.AddDate(0, 0, -d); return &ts }

	repo := memory.NewLeadRepository([]domain.Lead{
		{ID: "n1", Status: domain.LeadNew, CreatedDate: ago(1), AgentID: "ana"},
		{ID: "n2", Status: domain.LeadNew, CreatedDate: ago(2), AgentID: "ben"},
		{ID: "c1", Status: domain.LeadContacted, CreatedDate: ago(10), LastContactDate: ago(10), AgentID: "ana"},
	})
	service := app.NewPipelineServiceWithClock(repo, app.DefaultPipelineModel(), func() time.Time { return now })

	summary, err := service.Summary(context.Background(), 7, 7)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalLeads != 2 || summary.Stages[0].Count != 2 || summary.Stages[1].Count != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	summary, _ = service.Summary(context.Background(), 30, 7)
	if len(summary.AtRisk) != 1 || summary.AtRisk[0].ID != "c1" {
		t.Fatalf("expected c1 at risk in wider window, got %+v", summary.AtRisk)
	}

	service.SetModel(app.StaticPipelineModel{DealValue: 10, Rates: map[domain.LeadStatus]float64{}})
	summary, _ = service.Summary(context.Background(), 30, 7)
	if summary.TotalValue != 30 {
		t.Fatalf("expected reloaded deal value applied, got %v", summary.TotalValue)
	}
}

func TestPipelineServiceStageLeads(t *testing.T) {
	repo := memory.NewLeadRepository([]domain.Lead{
		{ID: "q1", Status: domain.LeadQualified},
		{ID: "p1", Status: domain.LeadProposal},
		{ID: "q2", Status: domain.LeadQualified},
	})
	service := app.NewPipelineService(repo, nil, nil)

	leads, err := service.StageLeads(context.Background(), domain.LeadQualified, 0)
	if err != nil {
		t.Fatalf("stage leads: %v", err)
	}
	if len(leads) != 2 || leads[0].ID != "q1" || leads[1].ID != "q2" {
		t.Fatalf("unexpected stage leads %+v", leads)
	}

	if _, err := service.StageLeads(context.Background(), "archived", 0); !errors.Is(err, domain.ErrUnknownStage) {
		t.Fatalf("expected unknown stage, got %v", err)
	}
}
