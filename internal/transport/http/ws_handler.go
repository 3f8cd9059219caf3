package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"agent-backoffice/internal/app"
	"agent-backoffice/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AssessmentHandler serves one assessment attempt per websocket connection.
type AssessmentHandler struct {
	service  *app.AssessmentService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewAssessmentHandler(service *app.AssessmentService, logger *zap.Logger) *AssessmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID              string              `json:"id"`
	Type            domain.QuestionType `json:"type"`
	Text            string              `json:"text"`
	Scenario        string              `json:"scenario,omitempty"`
	Category        string              `json:"category,omitempty"`
	DifficultyLevel string              `json:"difficultyLevel,omitempty"`
	Options         []optionView        `json:"options"`
}

type attemptView struct {
	AttemptID     string              `json:"attemptId"`
	AssessmentID  string              `json:"assessmentId"`
	Title         string              `json:"title"`
	Number        int                 `json:"number"`
	MaxAttempts   int                 `json:"maxAttempts"`
	TimeLimit     int                 `json:"timeLimit"`
	State         domain.AttemptState `json:"state"`
	QuestionIndex int                 `json:"questionIndex"`
	Questions     []questionView      `json:"questions"`
	Responses     map[string][]string `json:"responses"`
}

type resultPayload struct {
	AttemptID string                  `json:"attemptId"`
	Result    domain.AssessmentResult `json:"result"`
	Review    []domain.AnswerReview   `json:"review,omitempty"`
	CanRetry  bool                    `json:"canRetry"`
}

// ServeWS upgrades the request, starts an attempt and drives it from client
// messages. Closing the socket abandons the attempt.
func (h *AssessmentHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	assessmentID := r.URL.Query().Get("assessmentId")
	userID := r.URL.Query().Get("userId")
	if assessmentID == "" || userID == "" {
		http.Error(w, "missing assessmentId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	attempt, err := h.service.Start(ctx, assessmentID, userID)
	if err != nil {
		h.sendError(conn, err)
		return
	}
	attemptID := attempt.ID
	defer func() {
		h.service.Abandon(context.WithoutCancel(ctx), attemptID)
	}()

	if err := h.sendAttempt(ctx, conn, "started", attempt); err != nil {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws read ended", zap.String("attempt_id", attemptID), zap.Error(err))
			}
			return
		}

		var writeErr error
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				writeErr = h.sendError(conn, errors.New("invalid select payload"))
				break
			}
			updated, err := h.service.Select(ctx, attemptID, payload.QuestionID, payload.OptionID)
			if err != nil {
				writeErr = h.sendError(conn, err)
				break
			}
			writeErr = h.sendAttempt(ctx, conn, "state", updated)
		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				writeErr = h.sendError(conn, errors.New("invalid navigate payload"))
				break
			}
			updated, err := h.service.Navigate(ctx, attemptID, payload.Index)
			if err != nil {
				writeErr = h.sendError(conn, err)
				break
			}
			writeErr = h.sendAttempt(ctx, conn, "state", updated)
		case "submit":
			writeErr = h.submit(ctx, conn, attemptID)
		case "retry":
			next, err := h.service.Retry(ctx, attemptID)
			if err != nil {
				writeErr = h.sendError(conn, err)
				break
			}
			attemptID = next.ID
			writeErr = h.sendAttempt(ctx, conn, "started", next)
		default:
			writeErr = h.sendError(conn, errors.New("unsupported message type"))
		}
		if writeErr != nil {
			h.logger.Warn("ws write error", zap.String("attempt_id", attemptID), zap.Error(writeErr))
			return
		}
	}
}

func (h *AssessmentHandler) submit(ctx context.Context, conn *websocket.Conn, attemptID string) error {
	result, err := h.service.Submit(ctx, attemptID)
	if err != nil && !errors.Is(err, domain.ErrResultNotRecorded) {
		return h.sendError(conn, err)
	}
	recordErr := err

	attempt, err := h.service.Attempt(ctx, attemptID)
	if err != nil {
		return h.sendError(conn, err)
	}
	a, err := h.service.Assessment(ctx, attempt.AssessmentID)
	if err != nil {
		return h.sendError(conn, err)
	}
	payload := resultPayload{
		AttemptID: attemptID,
		Result:    result,
		Review:    app.ReviewAnswers(a, result),
		CanRetry:  !result.Passed && attempt.Number < a.MaxAttempts,
	}
	if err := conn.WriteJSON(outboundMessage[resultPayload]{Type: "result", Payload: payload}); err != nil {
		return err
	}
	if recordErr != nil {
		return h.sendError(conn, recordErr)
	}
	return nil
}

func (h *AssessmentHandler) sendAttempt(ctx context.Context, conn *websocket.Conn, msgType string, attempt domain.Attempt) error {
	a, err := h.service.Assessment(ctx, attempt.AssessmentID)
	if err != nil {
		return h.sendError(conn, err)
	}
	view, err := newAttemptView(a, attempt)
	if err != nil {
		return h.sendError(conn, err)
	}
	return conn.WriteJSON(outboundMessage[attemptView]{Type: msgType, Payload: view})
}

func (h *AssessmentHandler) sendError(conn *websocket.Conn, err error) error {
	return conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
}

func newAttemptView(a domain.Assessment, attempt domain.Attempt) (attemptView, error) {
	questions, err := app.OrderedQuestions(a, attempt)
	if err != nil {
		return attemptView{}, err
	}
	view := attemptView{
		AttemptID:     attempt.ID,
		AssessmentID:  a.ID,
		Title:         a.Title,
		Number:        attempt.Number,
		MaxAttempts:   a.MaxAttempts,
		TimeLimit:     a.TimeLimit,
		State:         attempt.State,
		QuestionIndex: attempt.QuestionIndex,
		Questions:     make([]questionView, 0, len(questions)),
		Responses:     make(map[string][]string, len(attempt.Responses)),
	}
	for _, q := range questions {
		qv := questionView{
			ID:              q.ID,
			Type:            q.Type,
			Text:            q.Text,
			Scenario:        q.Scenario,
			Category:        q.Category,
			DifficultyLevel: q.DifficultyLevel,
			Options:         make([]optionView, 0, len(q.Options)),
		}
		for _, opt := range q.Options {
			qv.Options = append(qv.Options, optionView{ID: opt.ID, Text: opt.Text})
		}
		view.Questions = append(view.Questions, qv)
	}
	for id, resp := range attempt.Responses {
		view.Responses[id] = append([]string{}, resp.SelectedOptionIDs...)
	}
	return view, nil
}
