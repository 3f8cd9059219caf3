package domain

import "errors"

var (
	// ErrAssessmentNotFound indicates the assessment definition could not be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrInvalidAssessment wraps field-level validation failures.
	ErrInvalidAssessment = errors.New("invalid assessment")
	// ErrNoQuestions is returned for assessments that cannot be scored.
	ErrNoQuestions = errors.New("assessment has no questions")
	// ErrNoCorrectOption indicates a question without any correct option.
	ErrNoCorrectOption = errors.New("question has no correct option")
	// ErrMultipleCorrectOptions indicates a single-answer question with more than one correct option.
	ErrMultipleCorrectOptions = errors.New("single-answer question has more than one correct option")
	// ErrDuplicateQuestion indicates two questions share an ID.
	ErrDuplicateQuestion = errors.New("duplicate question id")
	// ErrDuplicateOption indicates two options of one question share an ID.
	ErrDuplicateOption = errors.New("duplicate option id")
	// ErrInvalidQuestionType indicates an unknown question type.
	ErrInvalidQuestionType = errors.New("invalid question type")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")

	// ErrAttemptNotFound is returned when an attempt has expired or was never started.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptClosed is returned when a submitted attempt is modified.
	ErrAttemptClosed = errors.New("attempt already submitted")
	// ErrAttemptNotSubmitted is returned when retrying an attempt that is still in progress.
	ErrAttemptNotSubmitted = errors.New("attempt not submitted")
	// ErrAlreadyPassed is returned when retrying a passed attempt.
	ErrAlreadyPassed = errors.New("assessment already passed")
	// ErrAttemptsExhausted is returned when no attempts remain.
	ErrAttemptsExhausted = errors.New("no attempts remaining")
	// ErrResultNotRecorded is returned when scoring succeeded but the result recorder failed.
	ErrResultNotRecorded = errors.New("result not recorded")
	// ErrQuestionIndexOutOfRange is returned by navigation past either end.
	ErrQuestionIndexOutOfRange = errors.New("question index out of range")

	// ErrUnknownStage indicates a stage name outside the funnel.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)
