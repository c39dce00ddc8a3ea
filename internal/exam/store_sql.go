package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cnpmnc/assignment/internal/db"
	"github.com/cnpmnc/assignment/internal/joincode"
)

const passcodeAttempts = 5

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh, now: time.Now}
}

const examColumns = `id, class_id, title, description, open_time, close_time, duration_min, passcode, status, created_at`

func (s *SQLStore) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	e.ID = uuid.NewString()
	if e.Status == "" {
		e.Status = StatusDraft
	}
	e.CreatedAt = s.now().UTC().Truncate(time.Second)

	// passcodes are short; retry on the rare collision
	for i := 0; i < passcodeAttempts; i++ {
		code, err := joincode.New()
		if err != nil {
			return Exam{}, err
		}
		e.Passcode = code
		_, err = s.db.ExecContext(ctx, `INSERT INTO tests (`+examColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			e.ID, e.ClassID, e.Title, e.Description, unixOrNull(e.OpenTime), unixOrNull(e.CloseTime),
			e.DurationMin, e.Passcode, string(e.Status), e.CreatedAt.Unix())
		if err == nil {
			return e, nil
		}
		if !db.IsUniqueViolation(err) {
			return Exam{}, err
		}
	}
	return Exam{}, errors.New("could not allocate a unique passcode")
}

func (s *SQLStore) UpdateExam(ctx context.Context, e Exam) (Exam, error) {
	if err := e.Validate(); err != nil {
		return Exam{}, err
	}
	if err := s.ensureNoResults(ctx, e.ID); err != nil {
		return Exam{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tests
		SET title=$1, description=$2, open_time=$3, close_time=$4, duration_min=$5, status=$6
		WHERE id=$7`,
		e.Title, e.Description, unixOrNull(e.OpenTime), unixOrNull(e.CloseTime), e.DurationMin, string(e.Status), e.ID)
	if err != nil {
		return Exam{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Exam{}, ErrNotFound
	}
	return s.GetExam(ctx, e.ID)
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	if err := s.ensureNoResults(ctx, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM tests WHERE id=$1`, id)
	return scanExam(row)
}

func (s *SQLStore) GetExamByPasscode(ctx context.Context, passcode string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM tests WHERE passcode=$1`, NormalizePasscode(passcode))
	return scanExam(row)
}

func (s *SQLStore) ListExamsByClass(ctx context.Context, classID string) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+examColumns+` FROM tests WHERE class_id=$1 ORDER BY created_at DESC`, classID)
	if err != nil {
		return nil, err
	}
	return scanExams(rows)
}

func (s *SQLStore) ListExamsForStudent(ctx context.Context, studentID string) ([]Exam, error) {
	cols := "t." + strings.ReplaceAll(examColumns, ", ", ", t.")
	rows, err := s.db.QueryContext(ctx, `SELECT `+cols+`
		  FROM tests t
		  JOIN class_students cs ON cs.class_id = t.class_id
		 WHERE cs.student_id=$1
		 ORDER BY t.created_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	return scanExams(rows)
}

func (s *SQLStore) AddQuestion(ctx context.Context, q Question) (Question, error) {
	if !ValidAnswer(q.Answer) {
		return Question{}, ErrInvalidAnswer
	}
	if _, err := s.GetExam(ctx, q.ExamID); err != nil {
		return Question{}, err
	}
	if err := s.ensureNoResults(ctx, q.ExamID); err != nil {
		return Question{}, err
	}
	q.ID = uuid.NewString()
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM questions WHERE test_id=$1`, q.ExamID).Scan(&q.Position); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO questions
			(id, test_id, position, content, choice_a, choice_b, choice_c, choice_d, answer, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			q.ID, q.ExamID, q.Position, q.Content, q.ChoiceA, q.ChoiceB, q.ChoiceC, q.ChoiceD, q.Answer, s.now().Unix())
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, test_id, position, content, choice_a, choice_b, choice_c, choice_d, answer
		FROM questions WHERE test_id=$1 ORDER BY position, id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Position, &q.Content, &q.ChoiceA, &q.ChoiceB, &q.ChoiceC, &q.ChoiceD, &q.Answer); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) ensureNoResults(ctx context.Context, examID string) error {
	var has bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM submissions WHERE test_id=$1 AND status='COMPLETED')`, examID).Scan(&has)
	if err != nil {
		return fmt.Errorf("check results: %w", err)
	}
	if has {
		return ErrHasResults
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (Exam, error) {
	var (
		e               Exam
		status          string
		openAt, closeAt sql.NullInt64
		created         int64
	)
	err := row.Scan(&e.ID, &e.ClassID, &e.Title, &e.Description, &openAt, &closeAt,
		&e.DurationMin, &e.Passcode, &status, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	e.Status = Status(status)
	e.OpenTime = timeOrNil(openAt)
	e.CloseTime = timeOrNil(closeAt)
	e.CreatedAt = time.Unix(created, 0).UTC()
	return e, nil
}

func scanExams(rows *sql.Rows) ([]Exam, error) {
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func unixOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
