package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cnpmnc/assignment/internal/db"
	"github.com/cnpmnc/assignment/internal/grading"
	syncx "github.com/cnpmnc/assignment/internal/sync"
)

// Completed is what the persister writes for one scored submission.
type Completed struct {
	TestID    string
	StudentID string
	Outcome   grading.Outcome
	At        time.Time
}

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
}

func NewSQLStore(dbh *sql.DB, events *syncx.EventRepo) *SQLStore {
	if events == nil {
		events = syncx.NewEventRepo("")
	}
	return &SQLStore{db: dbh, events: events}
}

func (s *SQLStore) HasCompleted(ctx context.Context, testID, studentID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(
		SELECT 1 FROM submissions WHERE test_id=$1 AND student_id=$2 AND status='COMPLETED')`,
		testID, studentID).Scan(&ok)
	return ok, err
}

// Start records an IN_PROGRESS submission unless one already exists.
func (s *SQLStore) Start(ctx context.Context, testID, studentID string, at time.Time) error {
	ts := at.Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions
		(id, test_id, student_id, status, started_at, created_at, updated_at)
		VALUES ($1,$2,$3,'IN_PROGRESS',$4,$4,$4)`,
		uuid.NewString(), testID, studentID, ts)
	if err != nil && !db.IsUniqueViolation(err) {
		return err
	}
	return nil
}

// SaveCompleted writes the submission, one answer row per question and a
// SubmissionCompleted event in a single transaction. An existing IN_PROGRESS
// row is promoted in place. A concurrent duplicate surfaces as
// ErrAlreadySubmitted through the completed-submission unique index.
func (s *SQLStore) SaveCompleted(ctx context.Context, c Completed) (Submission, error) {
	sub := Submission{
		TestID:    c.TestID,
		StudentID: c.StudentID,
		Status:    StatusCompleted,
		Score:     c.Outcome.Score,
		MaxScore:  c.Outcome.MaxScore,
	}
	at := c.At.UTC().Truncate(time.Second)
	sub.SubmittedAt = &at

	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var started sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT id, started_at FROM submissions
			WHERE test_id=$1 AND student_id=$2 AND status='IN_PROGRESS'`, c.TestID, c.StudentID).
			Scan(&sub.ID, &started)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			sub.ID = uuid.NewString()
			if _, err := tx.ExecContext(ctx, `INSERT INTO submissions
				(id, test_id, student_id, status, score, max_score, submitted_at, created_at, updated_at)
				VALUES ($1,$2,$3,'COMPLETED',$4,$5,$6,$6,$6)`,
				sub.ID, sub.TestID, sub.StudentID, sub.Score, sub.MaxScore, at.Unix()); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			var minutes sql.NullInt64
			if started.Valid {
				st := time.Unix(started.Int64, 0).UTC()
				sub.StartedAt = &st
				m := completionMinutes(st, at)
				sub.CompletionTime = &m
				minutes = sql.NullInt64{Int64: int64(m), Valid: true}
			}
			res, err := tx.ExecContext(ctx, `UPDATE submissions
				SET status='COMPLETED', score=$1, max_score=$2, submitted_at=$3, completion_time=$4, updated_at=$3
				WHERE id=$5 AND status='IN_PROGRESS'`,
				sub.Score, sub.MaxScore, at.Unix(), minutes, sub.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrAlreadySubmitted
			}
		}

		for _, item := range c.Outcome.Items {
			var selected sql.NullString
			if item.Answered {
				selected = sql.NullString{String: item.Selected, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO submission_answers
				(submission_id, question_id, selected_answer, is_correct, points_earned)
				VALUES ($1,$2,$3,$4,$5)`,
				sub.ID, item.QuestionID, selected, item.IsCorrect, item.Points); err != nil {
				return fmt.Errorf("insert answer %s: %w", item.QuestionID, err)
			}
		}

		return s.events.Append(ctx, tx, syncx.TypeSubmissionCompleted, sub.ID, map[string]any{
			"test_id":       sub.TestID,
			"student_id":    sub.StudentID,
			"score":         sub.Score,
			"max_score":     sub.MaxScore,
			"correct_count": c.Outcome.CorrectCount,
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Submission{}, ErrAlreadySubmitted
		}
		return Submission{}, err
	}
	return sub, nil
}

const submissionColumns = `id, test_id, student_id, status, score, max_score, started_at, submitted_at, completion_time`

func (s *SQLStore) Get(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) ListAnswers(ctx context.Context, submissionID string) ([]AnswerRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, selected_answer, is_correct, points_earned
		FROM submission_answers WHERE submission_id=$1`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerRow
	for rows.Next() {
		var a AnswerRow
		var sel sql.NullString
		if err := rows.Scan(&a.QuestionID, &sel, &a.IsCorrect, &a.Points); err != nil {
			return nil, err
		}
		if sel.Valid {
			v := sel.String
			a.Selected = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListCompletedByTest returns completed submissions of a test, best first.
func (s *SQLStore) ListCompletedByTest(ctx context.Context, testID string) ([]StudentSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.student_id, u.display_name, u.email, s.score, s.max_score,
		       s.submitted_at, s.completion_time, s.status
		  FROM submissions s
		  JOIN users u ON u.id = s.student_id
		 WHERE s.test_id=$1 AND s.status='COMPLETED'
		 ORDER BY s.score DESC, s.submitted_at`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StudentSubmission{}
	for rows.Next() {
		var (
			r         StudentSubmission
			submitted sql.NullInt64
			minutes   sql.NullInt64
			status    string
		)
		if err := rows.Scan(&r.SubmissionID, &r.StudentID, &r.StudentName, &r.StudentEmail, &r.Score, &r.MaxScore,
			&submitted, &minutes, &status); err != nil {
			return nil, err
		}
		if r.StudentName == "" {
			r.StudentName = r.StudentEmail
		}
		r.SubmittedAt = timeOrNil(submitted)
		r.CompletionTime = intOrNil(minutes)
		r.Status = Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListGradesByStudent(ctx context.Context, studentID string) ([]Grade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, t.id, t.title, c.id, c.name, s.score, s.max_score, s.submitted_at, s.status
		  FROM submissions s
		  JOIN tests t ON t.id = s.test_id
		  JOIN classes c ON c.id = t.class_id
		 WHERE s.student_id=$1 AND s.status='COMPLETED'
		 ORDER BY s.submitted_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Grade{}
	for rows.Next() {
		var (
			g         Grade
			submitted sql.NullInt64
			status    string
		)
		if err := rows.Scan(&g.SubmissionID, &g.TestID, &g.TestName, &g.ClassID, &g.ClassName,
			&g.Score, &g.MaxScore, &submitted, &status); err != nil {
			return nil, err
		}
		g.Percentage = grading.Percentage(g.Score, g.MaxScore)
		g.SubmittedAt = timeOrNil(submitted)
		g.Status = Status(status)
		out = append(out, g)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		sub                         Submission
		status                      string
		started, submitted, minutes sql.NullInt64
	)
	if err := row.Scan(&sub.ID, &sub.TestID, &sub.StudentID, &status, &sub.Score, &sub.MaxScore,
		&started, &submitted, &minutes); err != nil {
		return Submission{}, err
	}
	sub.Status = Status(status)
	sub.StartedAt = timeOrNil(started)
	sub.SubmittedAt = timeOrNil(submitted)
	sub.CompletionTime = intOrNil(minutes)
	return sub, nil
}

func completionMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func intOrNil(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
