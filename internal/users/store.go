package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cnpmnc/assignment/internal/db"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrExists             = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const bcryptCost = 12

type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type SQLStore struct{ db *sql.DB }

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

// Create stores a user with a bcrypt hash of password.
func (s *SQLStore) Create(ctx context.Context, u User, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id, username, email, display_name, role, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.DisplayName, u.Role, string(hash), time.Now().Unix())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrExists
		}
		return User{}, err
	}
	return u, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	u, _, err := s.find(ctx, `WHERE id=$1`, id)
	return u, err
}

// Authenticate checks username/password and returns the user on success.
func (s *SQLStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, hash, err := s.find(ctx, `WHERE username=$1`, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// List returns users ordered by username, optionally filtered by role.
func (s *SQLStore) List(ctx context.Context, role string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username, email, display_name, role FROM users
		WHERE $1 = '' OR role = $1 ORDER BY username`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) find(ctx context.Context, where string, arg any) (User, string, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, username, email, display_name, role, password_hash FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Role, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, "", ErrNotFound
		}
		return User{}, "", err
	}
	return u, hash, nil
}

// EnsureAdmin inserts the bootstrap admin with a pre-computed bcrypt hash
// unless a user with that username already exists.
func (s *SQLStore) EnsureAdmin(ctx context.Context, username, passHash string) error {
	if username == "" || passHash == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, username, role, password_hash, created_at)
		VALUES ($1,$2,'admin',$3,$4) ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), username, passHash, time.Now().Unix())
	return err
}
