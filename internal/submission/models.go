package submission

import (
	"errors"
	"time"

	"github.com/cnpmnc/assignment/internal/grading"
)

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

var (
	ErrTestNotFound      = errors.New("test not found")
	ErrStudentNotFound   = errors.New("student not found")
	ErrNotFound          = errors.New("submission not found")
	ErrAlreadySubmitted  = errors.New("you have already submitted this test")
	ErrForbidden         = errors.New("you can only submit your own answers")
	ErrNotEnrolled       = errors.New("you are not enrolled in the class for this test")
	ErrEmptyTest         = errors.New("no questions found for this test")
	ErrTestNotOpen       = errors.New("test is not open")
	ErrInvalidPasscode   = errors.New("invalid passcode")
	ErrInvalidSubmission = errors.New("test_id and user_id are required")
)

// Request is a student's answer set for one test.
type Request struct {
	TestID  string
	UserID  string
	Answers []grading.Answer
}

// Receipt is returned to the student right after a successful submission.
type Receipt struct {
	SubmissionID   string  `json:"submissionId"`
	Score          float64 `json:"score"`
	MaxScore       float64 `json:"maxScore"`
	Percentage     float64 `json:"percentage"`
	CorrectCount   int     `json:"correctCount"`
	TotalQuestions int     `json:"totalQuestions"`
	Status         Status  `json:"status"`
}

type Submission struct {
	ID             string     `json:"id"`
	TestID         string     `json:"testId"`
	StudentID      string     `json:"studentId"`
	Status         Status     `json:"status"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"maxScore"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	CompletionTime *int       `json:"completionTime,omitempty"` // minutes
}

// AnswerRow is one persisted per-question outcome.
type AnswerRow struct {
	QuestionID string
	Selected   *string
	IsCorrect  bool
	Points     float64
}

type QuestionResult struct {
	ID             string  `json:"id"`
	QuestionText   string  `json:"questionText"`
	SelectedAnswer *string `json:"selectedAnswer"`
	CorrectAnswer  string  `json:"correctAnswer"`
}

// Result is the review view of one submission.
type Result struct {
	SubmissionID string           `json:"submissionId"`
	TestID       string           `json:"testId"`
	StudentID    string           `json:"studentId"`
	TotalScore   float64          `json:"totalScore"`
	MaxScore     float64          `json:"maxScore"`
	Percentage   float64          `json:"percentage"`
	CorrectCount int              `json:"correctCount"`
	WrongCount   int              `json:"wrongCount"`
	Questions    []QuestionResult `json:"questions"`
}

// Grade is a row of a student's own grade list.
type Grade struct {
	SubmissionID string     `json:"submissionId"`
	TestID       string     `json:"testId"`
	TestName     string     `json:"testName"`
	ClassID      string     `json:"classId"`
	ClassName    string     `json:"className"`
	Score        float64    `json:"score"`
	MaxScore     float64    `json:"maxScore"`
	Percentage   float64    `json:"percentage"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	Status       Status     `json:"status"`
}

// StudentSubmission is a row of the teacher's per-test result list.
type StudentSubmission struct {
	SubmissionID   string     `json:"submissionId"`
	StudentID      string     `json:"studentId"`
	StudentName    string     `json:"studentName"`
	StudentEmail   string     `json:"studentEmail"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"maxScore"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	CompletionTime *int       `json:"completionTime,omitempty"`
	Status         Status     `json:"status"`
}

type TestResults struct {
	TestID      string              `json:"testId"`
	TestName    string              `json:"testName"`
	Submissions []StudentSubmission `json:"submissions"`
	Summary     grading.Summary     `json:"summary"`
}
