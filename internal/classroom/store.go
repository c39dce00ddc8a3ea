package classroom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cnpmnc/assignment/internal/db"
	"github.com/cnpmnc/assignment/internal/joincode"
)

var (
	ErrNotFound        = errors.New("class not found")
	ErrCodeTaken       = errors.New("class code already exists")
	ErrAlreadyEnrolled = errors.New("student is already in this class")
	ErrHasResults      = errors.New("class has graded submissions")
)

const codeAttempts = 5

type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ClassCode    string    `json:"classCode"`
	TeacherID    string    `json:"teacherId"`
	StudentCount int       `json:"studentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Student is one row of a class roster.
type Student struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh, now: time.Now} }

const classColumns = `c.id, c.name, c.description, c.class_code, c.teacher_id, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM class_students cs WHERE cs.class_id = c.id)`

// Create stores a new class. An empty ClassCode gets a generated one; a
// supplied code is normalized and must be unused.
func (s *SQLStore) Create(ctx context.Context, c Class) (Class, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC().Truncate(time.Second)
	c.UpdatedAt = c.CreatedAt
	c.StudentCount = 0

	insert := func() error {
		_, err := s.db.ExecContext(ctx, `INSERT INTO classes
			(id, name, description, class_code, teacher_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$6)`,
			c.ID, c.Name, c.Description, c.ClassCode, c.TeacherID, c.CreatedAt.Unix())
		return err
	}

	if c.ClassCode = joincode.Normalize(c.ClassCode); c.ClassCode != "" {
		if err := insert(); err != nil {
			if db.IsUniqueViolation(err) {
				return Class{}, ErrCodeTaken
			}
			return Class{}, err
		}
		return c, nil
	}
	for i := 0; i < codeAttempts; i++ {
		code, err := joincode.New()
		if err != nil {
			return Class{}, err
		}
		c.ClassCode = code
		err = insert()
		if err == nil {
			return c, nil
		}
		if !db.IsUniqueViolation(err) {
			return Class{}, err
		}
	}
	return Class{}, errors.New("could not allocate a unique class code")
}

// Update changes name, description and, when set, the class code.
func (s *SQLStore) Update(ctx context.Context, c Class) (Class, error) {
	c.ClassCode = joincode.Normalize(c.ClassCode)
	res, err := s.db.ExecContext(ctx, `UPDATE classes
		   SET name=$2, description=$3,
		       class_code=CASE WHEN $4 = '' THEN class_code ELSE $4 END,
		       updated_at=$5
		 WHERE id=$1`,
		c.ID, c.Name, c.Description, c.ClassCode, s.now().Unix())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Class{}, ErrCodeTaken
		}
		return Class{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Class{}, ErrNotFound
	}
	return s.Get(ctx, c.ID)
}

// Delete removes a class with its tests and roster. Classes whose tests
// already hold completed submissions are kept.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var graded bool
		err := tx.QueryRowContext(ctx, `SELECT EXISTS(
			SELECT 1 FROM submissions sb JOIN tests t ON t.id = sb.test_id
			 WHERE t.class_id=$1 AND sb.status='COMPLETED')`, id).Scan(&graded)
		if err != nil {
			return fmt.Errorf("check results: %w", err)
		}
		if graded {
			return ErrHasResults
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) Get(ctx context.Context, id string) (Class, error) {
	return scanClass(s.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes c WHERE c.id=$1`, id))
}

func (s *SQLStore) GetByCode(ctx context.Context, code string) (Class, error) {
	return scanClass(s.db.QueryRowContext(ctx,
		`SELECT `+classColumns+` FROM classes c WHERE c.class_code=$1`, joincode.Normalize(code)))
}

// Enroll adds a student to a class; enrolling twice is a no-op.
func (s *SQLStore) Enroll(ctx context.Context, classID, studentID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO class_students (class_id, student_id, joined_at)
		VALUES ($1,$2,$3) ON CONFLICT (class_id, student_id) DO NOTHING`, classID, studentID, s.now().Unix())
	return err
}

// JoinByCode enrolls a student in the class holding code. Unlike Enroll,
// joining a class twice is reported.
func (s *SQLStore) JoinByCode(ctx context.Context, code, studentID string) (Class, error) {
	c, err := s.GetByCode(ctx, code)
	if err != nil {
		return Class{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO class_students (class_id, student_id, joined_at)
		VALUES ($1,$2,$3)`, c.ID, studentID, s.now().Unix())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Class{}, ErrAlreadyEnrolled
		}
		return Class{}, err
	}
	c.StudentCount++
	return c, nil
}

func (s *SQLStore) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM class_students WHERE class_id=$1 AND student_id=$2)`, classID, studentID).Scan(&ok)
	return ok, err
}

func (s *SQLStore) CountStudents(ctx context.Context, classID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM class_students WHERE class_id=$1`, classID).Scan(&n)
	return n, err
}

// ListStudents returns the roster ordered by username.
func (s *SQLStore) ListStudents(ctx context.Context, classID string) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.id, u.username, u.email, u.display_name, cs.joined_at
		  FROM class_students cs
		  JOIN users u ON u.id = cs.student_id
		 WHERE cs.class_id=$1
		 ORDER BY u.username`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Student{}
	for rows.Next() {
		var st Student
		var joined int64
		if err := rows.Scan(&st.ID, &st.Username, &st.Email, &st.DisplayName, &joined); err != nil {
			return nil, err
		}
		st.JoinedAt = time.Unix(joined, 0).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListForUser returns the classes a teacher owns or a student attends.
func (s *SQLStore) ListForUser(ctx context.Context, userID, role string) ([]Class, error) {
	q := `SELECT ` + classColumns + `
	        FROM classes c
	        JOIN class_students m ON m.class_id = c.id
	       WHERE m.student_id=$1
	       ORDER BY c.created_at DESC`
	if role == "teacher" {
		q = `SELECT ` + classColumns + ` FROM classes c WHERE c.teacher_id=$1 ORDER BY c.created_at DESC`
	}
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClass(row rowScanner) (Class, error) {
	var c Class
	var created, updated int64
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ClassCode, &c.TeacherID, &created, &updated, &c.StudentCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Class{}, ErrNotFound
		}
		return Class{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	return c, nil
}
