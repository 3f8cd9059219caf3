package domain

import "time"

// QuestionType selects how a question is answered and scored.
type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	SelectAll    QuestionType = "select_all"
	Scenario     QuestionType = "scenario"
)

// MultiSelect reports whether more than one option may be selected.
func (t QuestionType) MultiSelect() bool {
	return t == SelectAll
}

// Option represents a possible answer for a question.
type Option struct {
	ID        string `json:"id" validate:"required"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question is a single assessment item. Scenario questions are scored like
// single-choice questions and carry a narrative in Scenario.
type Question struct {
	ID                  string       `json:"id" validate:"required"`
	Type                QuestionType `json:"type" validate:"required"`
	Text                string       `json:"text"`
	Scenario            string       `json:"scenario,omitempty"`
	Category            string       `json:"category,omitempty"`
	DifficultyLevel     string       `json:"difficultyLevel,omitempty"`
	IncorrectFeedback   string       `json:"incorrectFeedback,omitempty"`
	Options             []Option     `json:"options" validate:"required,min=1,dive"`
	AutoFailOnIncorrect bool         `json:"autoFailOnIncorrect"`
}

// CorrectOptionIDs returns the ids of options flagged correct, in option order.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, 1)
	for _, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// HasOption reports whether optionID belongs to the question.
func (q Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Assessment is a training assessment definition.
type Assessment struct {
	ID                 string     `json:"id" validate:"required"`
	Title              string     `json:"title" validate:"required"`
	Questions          []Question `json:"questions" validate:"required,min=1,dive"`
	ShuffleQuestions   bool       `json:"shuffleQuestions"`
	PassingScore       int        `json:"passingScore" validate:"min=0,max=100"`
	MaxAttempts        int        `json:"maxAttempts" validate:"min=1"`
	AutoFailQuestions  []string   `json:"autoFailQuestions,omitempty"`
	TimeLimit          int        `json:"timeLimit" validate:"min=0"` // minutes, advisory
	ShowCorrectAnswers bool       `json:"showCorrectAnswers"`
}

// Question looks up a question by id.
func (a Assessment) Question(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// IsAutoFail reports whether an incorrect answer to q forces failure.
func (a Assessment) IsAutoFail(q Question) bool {
	if q.AutoFailOnIncorrect {
		return true
	}
	for _, id := range a.AutoFailQuestions {
		if id == q.ID {
			return true
		}
	}
	return false
}

// QuestionResponse is the learner's current selection for one question.
type QuestionResponse struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
}

// Answered reports whether at least one option is selected.
func (r QuestionResponse) Answered() bool {
	return len(r.SelectedOptionIDs) > 0
}

// Responses maps question ids to the learner's selections.
type Responses map[string]QuestionResponse

// Clone returns a deep copy.
func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for id, resp := range r {
		out[id] = QuestionResponse{
			QuestionID:        resp.QuestionID,
			SelectedOptionIDs: append([]string(nil), resp.SelectedOptionIDs...),
		}
	}
	return out
}

// AnswerRecord is the per-question outcome stored on a result.
type AnswerRecord struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	Correct           bool     `json:"correct"`
}

// AssessmentResult summarizes a submitted attempt.
type AssessmentResult struct {
	Score            int            `json:"score"`
	Passed           bool           `json:"passed"`
	CorrectAnswers   int            `json:"correctAnswers"`
	TotalQuestions   int            `json:"totalQuestions"`
	AutoFailed       bool           `json:"autoFailed"`
	AutoFailQuestion string         `json:"autoFailQuestion,omitempty"`
	TimeSpentMinutes int            `json:"timeSpentMinutes"`
	Answers          []AnswerRecord `json:"answers"`
}

// AnswerReview is shown after submission when the assessment allows it.
type AnswerReview struct {
	QuestionID        string   `json:"questionId"`
	Correct           bool     `json:"correct"`
	CorrectOptionIDs  []string `json:"correctOptionIds"`
	IncorrectFeedback string   `json:"incorrectFeedback,omitempty"`
}

// AttemptState is the lifecycle position of an attempt.
type AttemptState string

const (
	AttemptInProgress AttemptState = "in_progress"
	AttemptSubmitted  AttemptState = "submitted"
)

// Attempt is one learner's pass through an assessment.
type Attempt struct {
	ID            string            `json:"id"`
	AssessmentID  string            `json:"assessmentId"`
	UserID        string            `json:"userId"`
	Number        int               `json:"number"`
	State         AttemptState      `json:"state"`
	QuestionIndex int               `json:"questionIndex"`
	Order         []string          `json:"order"`
	Responses     Responses         `json:"responses"`
	StartedAt     time.Time         `json:"startedAt"`
	Result        *AssessmentResult `json:"result,omitempty"`
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (a Attempt) Clone() Attempt {
	out := a
	out.Order = append([]string(nil), a.Order...)
	out.Responses = a.Responses.Clone()
	if a.Result != nil {
		res := *a.Result
		res.Answers = append([]AnswerRecord(nil), a.Result.Answers...)
		out.Result = &res
	}
	return out
}

// CompletedAttempt is handed to result recorders after submission.
type CompletedAttempt struct {
	AttemptID    string           `json:"attemptId"`
	AssessmentID string           `json:"assessmentId"`
	UserID       string           `json:"userId"`
	Number       int              `json:"number"`
	SubmittedAt  time.Time        `json:"submittedAt"`
	Result       AssessmentResult `json:"result"`
}
