package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agent-backoffice/internal/app"
	"agent-backoffice/internal/domain"
	"agent-backoffice/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketAssessmentFlow(t *testing.T) {
	attempts := memory.NewAttemptStore()
	results := memory.NewResultLog()
	repo := memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(sampleAssessments()), time.Minute)
	service := app.NewAssessmentService(repo, attempts, results)
	handler := NewAssessmentHandler(service, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/assessment", handler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server, "/ws/assessment?assessmentId=life-101&userId=agent-7")
	defer conn.Close()

	// Expect started event first.
	_, started := readNext(conn, t, "started")
	if started["attemptId"] == "" || started["number"] != float64(1) {
		t.Fatalf("unexpected started payload %+v", started)
	}
	questions := started["questions"].([]any)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	for _, q := range questions {
		for _, opt := range q.(map[string]any)["options"].([]any) {
			if _, leaked := opt.(map[string]any)["isCorrect"]; leaked {
				t.Fatalf("correct flag leaked to client")
			}
		}
	}

	send(t, conn, "select", map[string]any{"questionId": "q1", "optionId": "b"})
	_, state := readNext(conn, t, "state")
	if got := state["responses"].(map[string]any)["q1"].([]any); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected q1 selection recorded, got %v", got)
	}

	send(t, conn, "select", map[string]any{"questionId": "q1", "optionId": "nope"})
	readNext(conn, t, "error")

	send(t, conn, "submit", nil)
	_, result := readNext(conn, t, "result")
	res := result["result"].(map[string]any)
	if res["score"] != float64(50) || res["passed"] != false {
		t.Fatalf("expected 50%% fail, got %+v", res)
	}
	if result["canRetry"] != true {
		t.Fatalf("expected retry allowed, got %+v", result)
	}
	if _, ok := result["review"]; !ok {
		t.Fatalf("expected review when answers are shown")
	}

	send(t, conn, "retry", nil)
	_, retried := readNext(conn, t, "started")
	if retried["number"] != float64(2) {
		t.Fatalf("expected second attempt, got %+v", retried)
	}

	send(t, conn, "bogus", nil)
	readNext(conn, t, "error")

	if len(results.Results()) != 1 {
		t.Fatalf("expected one recorded result")
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for attempts.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected attempt abandoned on disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	service := app.NewAssessmentService(
		memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(nil), time.Minute),
		memory.NewAttemptStore(), nil)
	handler := NewAssessmentHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws/assessment?userId=u1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebSocketUnknownAssessment(t *testing.T) {
	service := app.NewAssessmentService(
		memory.NewAssessmentRepository(memory.NewStaticAssessmentLoader(nil), time.Minute),
		memory.NewAttemptStore(), nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/assessment", NewAssessmentHandler(service, nil).ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server, "/ws/assessment?assessmentId=missing&userId=u1")
	defer conn.Close()
	_, payload := readNext(conn, t, "error")
	if payload["message"] != domain.ErrAssessmentNotFound.Error() {
		t.Fatalf("unexpected error payload %+v", payload)
	}
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg.Type, msg.Payload
}

func sampleAssessments() map[string]domain.Assessment {
	return map[string]domain.Assessment{
		"life-101": {
			ID:                 "life-101",
			Title:              "Term Life Basics",
			PassingScore:       75,
			MaxAttempts:        2,
			ShowCorrectAnswers: true,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Type: domain.SingleChoice,
					Text: "Which policy builds cash value?",
					Options: []domain.Option{
						{ID: "a", Text: "Term"},
						{ID: "b", Text: "Whole life", IsCorrect: true},
					},
				},
				{
					ID:   "q2",
					Type: domain.SelectAll,
					Text: "Which are riders?",
					Options: []domain.Option{
						{ID: "a", Text: "Waiver of premium", IsCorrect: true},
						{ID: "b", Text: "Roadside assistance"},
					},
				},
			},
		},
	}
}
