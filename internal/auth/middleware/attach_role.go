package auth

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// subject, so a demoted or deleted user loses access before the token expires.
// Must run after JWTMiddleware.
func AttachRoleFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, ok := IdentityFrom(ctx)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, id.Subject).Scan(&role)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "unknown user", http.StatusUnauthorized)
				return
			case err != nil:
				log.Printf("attach role %s: %v", id.Subject, err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			id.Role = role
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}
