package domain

import "time"

// LeadStatus is the sales-funnel position of a lead.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadProposal  LeadStatus = "proposal"
	LeadClosed    LeadStatus = "closed"
	LeadLost      LeadStatus = "lost"
)

// FunnelStages lists the displayed stages in funnel order. Lost leads are excluded.
var FunnelStages = []LeadStatus{LeadNew, LeadContacted, LeadQualified, LeadProposal, LeadClosed}

// Label is the display name of a stage.
func (s LeadStatus) Label() string {
	switch s {
	case LeadNew:
		return "New"
	case LeadContacted:
		return "Contacted"
	case LeadQualified:
		return "Qualified"
	case LeadProposal:
		return "Proposal"
	case LeadClosed:
		return "Closed"
	case LeadLost:
		return "Lost"
	}
	return string(s)
}

// ParseLeadStatus validates a status string.
func ParseLeadStatus(raw string) (LeadStatus, error) {
	switch s := LeadStatus(raw); s {
	case LeadNew, LeadContacted, LeadQualified, LeadProposal, LeadClosed, LeadLost:
		return s, nil
	}
	return "", ErrUnknownStage
}

// Lead is a prospective policyholder tracked by an agent.
type Lead struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Status          LeadStatus `json:"status"`
	CreatedDate     *time.Time `json:"createdDate,omitempty"`
	LastContactDate *time.Time `json:"lastContactDate,omitempty"`
	Product         string     `json:"product,omitempty"`
	AgentID         string     `json:"agentId,omitempty"`
}

// StageMetric is the derived view of one funnel stage.
type StageMetric struct {
	Stage          LeadStatus `json:"stage"`
	StageName      string     `json:"stageName"`
	Count          int        `json:"count"`
	AggregateValue float64    `json:"aggregateValue"`
	ConversionRate float64    `json:"conversionRate"`
	Leads          []Lead     `json:"leads"`
}

// AgentStanding is one row of the agent leaderboard.
type AgentStanding struct {
	AgentID     string `json:"agentId"`
	ClosedDeals int    `json:"closedDeals"`
	ActiveDeals int    `json:"activeDeals"`
}

// PipelineSummary is the full dashboard payload for one time window.
type PipelineSummary struct {
	WindowDays  int             `json:"windowDays"`
	StaleDays   int             `json:"staleDays"`
	TotalLeads  int             `json:"totalLeads"`
	LostLeads   int             `json:"lostLeads"`
	TotalValue  float64         `json:"totalValue"`
	Stages      []StageMetric   `json:"stages"`
	AtRisk      []Lead          `json:"atRisk"`
	Leaderboard []AgentStanding `json:"leaderboard"`
	GeneratedAt time.Time       `json:"generatedAt"`
}
