package memory

import (
	"context"
	"errors"
	"testing"

	"agent-backoffice/internal/domain"
)

func TestAttemptStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	attempt := domain.Attempt{
		ID:        "att-1",
		State:     domain.AttemptInProgress,
		Order:     []string{"q1"},
		Responses: domain.Responses{"q1": {QuestionID: "q1", SelectedOptionIDs: []string{"a"}}},
	}
	if err := store.Save(ctx, attempt); err != nil {
		t.Fatalf("save: %v", err)
	}

	// mutating the caller's copy must not leak into the store
	attempt.Responses["q1"].SelectedOptionIDs[0] = "b"

	got, err := store.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Responses["q1"].SelectedOptionIDs[0] != "a" {
		t.Fatalf("expected stored selection a, got %v", got.Responses["q1"].SelectedOptionIDs)
	}

	if err := store.Delete(ctx, "att-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "att-1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt removed, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestResultLogRecords(t *testing.T) {
	log := NewResultLog()
	_ = log.RecordResult(context.Background(), domain.CompletedAttempt{AttemptID: "att-1"})
	results := log.Results()
	if len(results) != 1 || results[0].AttemptID != "att-1" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestLeadRepositoryReturnsCopy(t *testing.T) {
	repo := NewLeadRepository([]domain.Lead{{ID: "l1", Status: domain.LeadNew}})
	leads, _ := repo.ListLeads(context.Background())
	leads[0].Status = domain.LeadLost

	again, _ := repo.ListLeads(context.Background())
	if again[0].Status != domain.LeadNew {
		t.Fatalf("expected stored lead untouched, got %s", again[0].Status)
	}
}

func TestResultLogUserResults(t *testing.T) {
	log := NewResultLog()
	ctx := context.Background()
	for _, c := range []domain.CompletedAttempt{
		{AttemptID: "a1", AssessmentID: "life-101", UserID: "u1", Number: 1},
		{AttemptID: "a2", AssessmentID: "life-101", UserID: "u2", Number: 1},
		{AttemptID: "a3", AssessmentID: "annuity", UserID: "u1", Number: 1},
		{AttemptID: "a4", AssessmentID: "life-101", UserID: "u1", Number: 2},
	} {
		_ = log.RecordResult(ctx, c)
	}

	got, err := log.UserResults(ctx, "life-101", "u1")
	if err != nil {
		t.Fatalf("user results: %v", err)
	}
	if len(got) != 2 || got[0].AttemptID != "a1" || got[1].AttemptID != "a4" {
		t.Fatalf("unexpected user results %+v", got)
	}
	if none, _ := log.UserResults(ctx, "life-101", "u9"); len(none) != 0 {
		t.Fatalf("expected no results for unknown user, got %+v", none)
	}
}
