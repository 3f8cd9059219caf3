package app

import (
	"context"
	"sync"
	"time"

	"agent-backoffice/internal/domain"
	"go.uber.org/zap"
)

// LeadRepository lists the leads visible to the back office.
type LeadRepository interface {
	ListLeads(ctx context.Context) ([]domain.Lead, error)
}

// PipelineService serves pipeline dashboards from the lead store.
type PipelineService struct {
	leads  LeadRepository
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	model PipelineModel
}

func NewPipelineService(leads LeadRepository, model PipelineModel, logger *zap.Logger) *PipelineService {
	if model == nil {
		model = DefaultPipelineModel()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{leads: leads, model: model, logger: logger, now: time.Now}
}

// NewPipelineServiceWithClock is test-only for deterministic windows.
func NewPipelineServiceWithClock(leads LeadRepository, model PipelineModel, now func() time.Time) *PipelineService {
	s := NewPipelineService(leads, model, nil)
	s.now = now
	return s
}

// SetModel swaps the valuation model, e.g. after a config reload.
func (s *PipelineService) SetModel(model PipelineModel) {
	if model == nil {
		return
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	s.logger.Info("pipeline model updated", zap.Float64("average_deal_value", model.AverageDealValue()))
}

func (s *PipelineService) currentModel() PipelineModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Summary builds the dashboard for the given window and stale threshold.
func (s *PipelineService) Summary(ctx context.Context, windowDays, staleDays int) (domain.PipelineSummary, error) {
	leads, err := s.leads.ListLeads(ctx)
	if err != nil {
		return domain.PipelineSummary{}, err
	}
	return Summarize(leads, SummaryOptions{WindowDays: windowDays, StaleDays: staleDays}, s.currentModel(), s.now()), nil
}

// StageLeads lists the windowed leads sitting in one funnel stage.
func (s *PipelineService) StageLeads(ctx context.Context, stage domain.LeadStatus, windowDays int) ([]domain.Lead, error) {
	if _, err := domain.ParseLeadStatus(string(stage)); err != nil {
		return nil, err
	}
	leads, err := s.leads.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	return LeadsInStage(FilterByWindow(leads, windowDays, s.now()), stage), nil
}
