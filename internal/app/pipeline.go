package app

import (
	"sort"
	"time"

	"agent-backoffice/internal/domain"
)

// MaxAtRiskLeads caps FindAtRiskLeads for dashboard display.
const MaxAtRiskLeads = 5

// Defaults used when no pipeline configuration is supplied.
const (
	DefaultAverageDealValue = 2500.0
	DefaultWindowDays       = 30
	DefaultStaleDays        = 7
)

// PipelineModel supplies the valuation inputs for stage metrics. The static
// implementation stands in for historical conversion data.
type PipelineModel interface {
	AverageDealValue() float64
	ConversionRate(stage domain.LeadStatus) float64
}

// StaticPipelineModel is a fixed lookup table.
type StaticPipelineModel struct {
	DealValue float64
	Rates     map[domain.LeadStatus]float64
}

func (m StaticPipelineModel) AverageDealValue() float64 {
	return m.DealValue
}

func (m StaticPipelineModel) ConversionRate(stage domain.LeadStatus) float64 {
	return m.Rates[stage]
}

// DefaultPipelineModel returns the built-in deal value and conversion table.
func DefaultPipelineModel() StaticPipelineModel {
	return StaticPipelineModel{
		DealValue: DefaultAverageDealValue,
		Rates: map[domain.LeadStatus]float64{
			domain.LeadNew:       100,
			domain.LeadContacted: 65,
			domain.LeadQualified: 40,
			domain.LeadProposal:  25,
			domain.LeadClosed:    15,
		},
	}
}

// daysSince counts calendar days between t and now in now's location.
func daysSince(t, now time.Time) int {
	y1, m1, d1 := t.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// FilterByWindow keeps leads created within windowDays of now. Leads without a
// created date are always kept; windowDays <= 0 disables filtering.
func FilterByWindow(leads []domain.Lead, windowDays int, now time.Time) []domain.Lead {
	out := make([]domain.Lead, 0, len(leads))
	for _, l := range leads {
		if windowDays <= 0 || l.CreatedDate == nil || daysSince(*l.CreatedDate, now) <= windowDays {
			out = append(out, l)
		}
	}
	return out
}

// AggregateStages buckets leads into funnel stages in funnel order. Lost leads
// and unknown statuses are not counted.
func AggregateStages(leads []domain.Lead, model PipelineModel) []domain.StageMetric {
	if model == nil {
		model = DefaultPipelineModel()
	}
	buckets := make(map[domain.LeadStatus][]domain.Lead, len(domain.FunnelStages))
	for _, l := range leads {
		buckets[l.Status] = append(buckets[l.Status], l)
	}

	metrics := make([]domain.StageMetric, 0, len(domain.FunnelStages))
	for _, stage := range domain.FunnelStages {
		stageLeads := buckets[stage]
		if stageLeads == nil {
			stageLeads = []domain.Lead{}
		}
		metrics = append(metrics, domain.StageMetric{
			Stage:          stage,
			StageName:      stage.Label(),
			Count:          len(stageLeads),
			AggregateValue: float64(len(stageLeads)) * model.AverageDealValue(),
			ConversionRate: model.ConversionRate(stage),
			Leads:          stageLeads,
		})
	}
	return metrics
}

// LeadsInStage returns the leads with the given status in input order.
func LeadsInStage(leads []domain.Lead, stage domain.LeadStatus) []domain.Lead {
	out := []domain.Lead{}
	for _, l := range leads {
		if l.Status == stage {
			out = append(out, l)
		}
	}
	return out
}

// StaleLeads returns every open, already-contacted lead that has gone more
// than staleDays without contact.
func StaleLeads(leads []domain.Lead, staleDays int, now time.Time) []domain.Lead {
	out := []domain.Lead{}
	for _, l := range leads {
		if isAtRisk(l, staleDays, now) {
			out = append(out, l)
		}
	}
	return out
}

// FindAtRiskLeads is StaleLeads capped at MaxAtRiskLeads.
func FindAtRiskLeads(leads []domain.Lead, staleDays int, now time.Time) []domain.Lead {
	out := []domain.Lead{}
	for _, l := range leads {
		if len(out) == MaxAtRiskLeads {
			break
		}
		if isAtRisk(l, staleDays, now) {
			out = append(out, l)
		}
	}
	return out
}

func isAtRisk(l domain.Lead, staleDays int, now time.Time) bool {
	switch l.Status {
	case domain.LeadNew, domain.LeadClosed, domain.LeadLost:
		return false
	}
	return l.LastContactDate == nil || daysSince(*l.LastContactDate, now) > staleDays
}

// RankAgents builds the agent leaderboard: most closed deals first, then most
// active deals, then agent id. Leads without an agent are skipped.
func RankAgents(leads []domain.Lead) []domain.AgentStanding {
	byAgent := make(map[string]*domain.AgentStanding)
	for _, l := range leads {
		if l.AgentID == "" {
			continue
		}
		standing, ok := byAgent[l.AgentID]
		if !ok {
			standing = &domain.AgentStanding{AgentID: l.AgentID}
			byAgent[l.AgentID] = standing
		}
		switch l.Status {
		case domain.LeadClosed:
			standing.ClosedDeals++
		case domain.LeadLost:
		default:
			standing.ActiveDeals++
		}
	}

	entries := make([]domain.AgentStanding, 0, len(byAgent))
	for _, s := range byAgent {
		entries = append(entries, *s)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ClosedDeals != entries[j].ClosedDeals {
			return entries[i].ClosedDeals > entries[j].ClosedDeals
		}
		if entries[i].ActiveDeals != entries[j].ActiveDeals {
			return entries[i].ActiveDeals > entries[j].ActiveDeals
		}
		return entries[i].AgentID < entries[j].AgentID
	})
	return entries
}

// SummaryOptions selects the reporting window and stale threshold.
type SummaryOptions struct {
	WindowDays int
	StaleDays  int
}

// Summarize produces the pipeline dashboard for leads created inside the window.
func Summarize(leads []domain.Lead, opts SummaryOptions, model PipelineModel, now time.Time) domain.PipelineSummary {
	windowed := FilterByWindow(leads, opts.WindowDays, now)
	stages := AggregateStages(windowed, model)

	summary := domain.PipelineSummary{
		WindowDays:  opts.WindowDays,
		StaleDays:   opts.StaleDays,
		TotalLeads:  len(windowed),
		Stages:      stages,
		AtRisk:      FindAtRiskLeads(windowed, opts.StaleDays, now),
		Leaderboard: RankAgents(windowed),
		GeneratedAt: now,
	}
	for _, m := range stages {
		summary.TotalValue += m.AggregateValue
	}
	for _, l := range windowed {
		if l.Status == domain.LeadLost {
			summary.LostLeads++
		}
	}
	return summary
}
