package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/grading"
	"github.com/cnpmnc/assignment/internal/users"
)

// Tests resolves a test by id or passcode.
type Tests interface {
	GetExam(ctx context.Context, id string) (exam.Exam, error)
	GetExamByPasscode(ctx context.Context, passcode string) (exam.Exam, error)
}

// AnswerKeys returns the full question set of a test, answers included.
type AnswerKeys interface {
	ListQuestions(ctx context.Context, testID string) ([]exam.Question, error)
}

type Students interface {
	Get(ctx context.Context, id string) (users.User, error)
}

type Enrollment interface {
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	CountStudents(ctx context.Context, classID string) (int, error)
}

// Repository is the submission persistence used by the Service.
type Repository interface {
	HasCompleted(ctx context.Context, testID, studentID string) (bool, error)
	Start(ctx context.Context, testID, studentID string, at time.Time) error
	SaveCompleted(ctx context.Context, c Completed) (Submission, error)
	Get(ctx context.Context, id string) (Submission, error)
	ListAnswers(ctx context.Context, submissionID string) ([]AnswerRow, error)
	ListCompletedByTest(ctx context.Context, testID string) ([]StudentSubmission, error)
	ListGradesByStudent(ctx context.Context, studentID string) ([]Grade, error)
}

type Deps struct {
	Tests      Tests
	Keys       AnswerKeys
	Students   Students
	Enrollment Enrollment
	Repo       Repository
	Scorer     *grading.Scorer
	Now        func() time.Time
}

type Service struct {
	tests      Tests
	keys       AnswerKeys
	students   Students
	enrollment Enrollment
	repo       Repository
	scorer     *grading.Scorer
	now        func() time.Time
}

func NewService(d Deps) *Service {
	if d.Scorer == nil {
		d.Scorer = grading.NewScorer()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		tests:      d.Tests,
		keys:       d.Keys,
		students:   d.Students,
		enrollment: d.Enrollment,
		repo:       d.Repo,
		scorer:     d.Scorer,
		now:        d.Now,
	}
}

// Submit scores and stores a student's answers. callerID is the verified
// identity of the requester; req.UserID must name the same user, either by id
// or by the caller's email.
func (s *Service) Submit(ctx context.Context, callerID string, req Request) (Receipt, error) {
	req.TestID = strings.TrimSpace(req.TestID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.TestID == "" || req.UserID == "" {
		return Receipt{}, ErrInvalidSubmission
	}
	if callerID == "" {
		return Receipt{}, ErrForbidden
	}
	if req.UserID != callerID {
		u, err := s.students.Get(ctx, callerID)
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			return Receipt{}, err
		}
		if err != nil || u.Email == "" || !strings.EqualFold(u.Email, req.UserID) {
			return Receipt{}, ErrForbidden
		}
		req.UserID = u.ID
	}

	t, err := s.loadTest(ctx, req.TestID)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := s.students.Get(ctx, req.UserID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Receipt{}, ErrStudentNotFound
		}
		return Receipt{}, err
	}
	if err := s.checkEnrolled(ctx, t.ClassID, req.UserID); err != nil {
		return Receipt{}, err
	}

	// fast path; the unique index in SaveCompleted is what actually holds the line
	done, err := s.repo.HasCompleted(ctx, req.TestID, req.UserID)
	if err != nil {
		return Receipt{}, fmt.Errorf("submission guard: %w", err)
	}
	if done {
		return Receipt{}, ErrAlreadySubmitted
	}

	key, err := s.answerKey(ctx, req.TestID)
	if err != nil {
		return Receipt{}, err
	}
	out := s.scorer.Score(key, req.Answers)

	sub, err := s.repo.SaveCompleted(ctx, Completed{
		TestID:    req.TestID,
		StudentID: req.UserID,
		Outcome:   out,
		At:        s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return Receipt{}, err
		}
		return Receipt{}, fmt.Errorf("save submission: %w", err)
	}

	return Receipt{
		SubmissionID:   sub.ID,
		Score:          out.Score,
		MaxScore:       out.MaxScore,
		Percentage:     out.Percentage,
		CorrectCount:   out.CorrectCount,
		TotalQuestions: out.TotalQuestions,
		Status:         StatusCompleted,
	}, nil
}

// Join resolves a passcode for a student, checks access, marks the attempt
// IN_PROGRESS and returns the test with its answer-free questions.
func (s *Service) Join(ctx context.Context, studentID, passcode string) (exam.Exam, []exam.StudentQuestion, error) {
	t, err := s.tests.GetExamByPasscode(ctx, passcode)
	if err != nil {
		if errors.Is(err, exam.ErrNotFound) {
			return exam.Exam{}, nil, ErrInvalidPasscode
		}
		return exam.Exam{}, nil, err
	}
	if err := s.checkEnrolled(ctx, t.ClassID, studentID); err != nil {
		return exam.Exam{}, nil, err
	}
	if err := t.CheckOpen(s.now()); err != nil {
		return exam.Exam{}, nil, ErrTestNotOpen
	}
	done, err := s.repo.HasCompleted(ctx, t.ID, studentID)
	if err != nil {
		return exam.Exam{}, nil, err
	}
	if done {
		return exam.Exam{}, nil, ErrAlreadySubmitted
	}

	qs, err := s.keys.ListQuestions(ctx, t.ID)
	if err != nil {
		return exam.Exam{}, nil, err
	}
	if err := s.repo.Start(ctx, t.ID, studentID, s.now()); err != nil {
		return exam.Exam{}, nil, fmt.Errorf("start attempt: %w", err)
	}
	out := make([]exam.StudentQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ForStudent())
	}
	return t, out, nil
}

// Submission returns the stored submission record.
func (s *Service) Submission(ctx context.Context, id string) (Submission, error) {
	return s.repo.Get(ctx, id)
}

// Result rebuilds the review view of one submission: every question of the
// test, left-joined against what the student selected. Attempts still in
// progress have no result, since it would expose the answer key.
func (s *Service) Result(ctx context.Context, submissionID string) (Result, error) {
	sub, err := s.repo.Get(ctx, submissionID)
	if err != nil {
		return Result{}, err
	}
	if sub.Status != StatusCompleted {
		return Result{}, ErrNotFound
	}
	qs, err := s.keys.ListQuestions(ctx, sub.TestID)
	if err != nil {
		return Result{}, err
	}
	answers, err := s.repo.ListAnswers(ctx, sub.ID)
	if err != nil {
		return Result{}, err
	}
	byQuestion := make(map[string]AnswerRow, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	res := Result{
		SubmissionID: sub.ID,
		TestID:       sub.TestID,
		StudentID:    sub.StudentID,
		TotalScore:   sub.Score,
		MaxScore:     sub.MaxScore,
		Percentage:   grading.Percentage(sub.Score, sub.MaxScore),
		Questions:    make([]QuestionResult, 0, len(qs)),
	}
	for _, q := range qs {
		a, ok := byQuestion[q.ID]
		qr := QuestionResult{ID: q.ID, QuestionText: q.Content, CorrectAnswer: q.Answer}
		if ok {
			qr.SelectedAnswer = a.Selected
		}
		if ok && a.IsCorrect {
			res.CorrectCount++
		}
		res.Questions = append(res.Questions, qr)
	}
	res.WrongCount = len(res.Questions) - res.CorrectCount
	return res, nil
}

// TestResults aggregates the completed submissions of a test.
func (s *Service) TestResults(ctx context.Context, testID string) (TestResults, error) {
	t, err := s.loadTest(ctx, testID)
	if err != nil {
		return TestResults{}, err
	}
	subs, err := s.repo.ListCompletedByTest(ctx, testID)
	if err != nil {
		return TestResults{}, err
	}
	enrolled, err := s.enrollment.CountStudents(ctx, t.ClassID)
	if err != nil {
		return TestResults{}, err
	}

	var maxScore float64
	if len(subs) > 0 {
		maxScore = subs[0].MaxScore
	} else {
		qs, err := s.keys.ListQuestions(ctx, testID)
		if err != nil {
			return TestResults{}, err
		}
		maxScore = float64(len(qs)) * s.scorer.Weight()
	}
	scores := make([]float64, len(subs))
	for i, sub := range subs {
		scores[i] = sub.Score
	}
	return TestResults{
		TestID:      t.ID,
		TestName:    t.Title,
		Submissions: subs,
		Summary:     grading.Summarize(scores, maxScore, enrolled),
	}, nil
}

func (s *Service) Grades(ctx context.Context, studentID string) ([]Grade, error) {
	return s.repo.ListGradesByStudent(ctx, studentID)
}

func (s *Service) loadTest(ctx context.Context, id string) (exam.Exam, error) {
	t, err := s.tests.GetExam(ctx, id)
	if err != nil {
		if errors.Is(err, exam.ErrNotFound) {
			return exam.Exam{}, ErrTestNotFound
		}
		return exam.Exam{}, err
	}
	return t, nil
}

func (s *Service) answerKey(ctx context.Context, testID string) ([]grading.KeyItem, error) {
	qs, err := s.keys.ListQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("answer key: %w", err)
	}
	if len(qs) == 0 {
		return nil, ErrEmptyTest
	}
	key := make([]grading.KeyItem, len(qs))
	for i, q := range qs {
		key[i] = grading.KeyItem{QuestionID: q.ID, Correct: q.Answer}
	}
	return key, nil
}

func (s *Service) checkEnrolled(ctx context.Context, classID, studentID string) error {
	ok, err := s.enrollment.IsEnrolled(ctx, classID, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}
