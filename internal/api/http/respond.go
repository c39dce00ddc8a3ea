package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	auth "github.com/cnpmnc/assignment/internal/auth/middleware"
	"github.com/cnpmnc/assignment/internal/classroom"
	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/submission"
	"github.com/cnpmnc/assignment/internal/users"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the body into dst and runs its `validate` tags.
func decodeJSON(r *nethttp.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return fmt.Errorf("invalid request: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// writeError maps domain errors to a status code. Anything unrecognised is
// logged with the request id and reported as a generic 500.
func writeError(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	status := statusFor(err)
	if status == nethttp.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		nethttp.Error(w, "internal error", status)
		return
	}
	nethttp.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, submission.ErrTestNotFound),
		errors.Is(err, submission.ErrStudentNotFound),
		errors.Is(err, submission.ErrNotFound),
		errors.Is(err, exam.ErrNotFound),
		errors.Is(err, exam.ErrQuestionNotFound),
		errors.Is(err, classroom.ErrNotFound),
		errors.Is(err, users.ErrNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, submission.ErrAlreadySubmitted),
		errors.Is(err, exam.ErrHasResults),
		errors.Is(err, classroom.ErrCodeTaken),
		errors.Is(err, classroom.ErrAlreadyEnrolled),
		errors.Is(err, classroom.ErrHasResults),
		errors.Is(err, users.ErrExists):
		return nethttp.StatusConflict
	case errors.Is(err, submission.ErrForbidden),
		errors.Is(err, submission.ErrNotEnrolled),
		errors.Is(err, submission.ErrInvalidPasscode),
		errors.Is(err, submission.ErrTestNotOpen),
		errors.Is(err, exam.ErrNotOpen),
		errors.Is(err, errNotOwner),
		errors.Is(err, errReadForbidden):
		return nethttp.StatusForbidden
	case errors.Is(err, submission.ErrEmptyTest):
		return nethttp.StatusUnprocessableEntity
	case errors.Is(err, submission.ErrInvalidSubmission),
		errors.Is(err, exam.ErrInvalidAnswer),
		errors.Is(err, exam.ErrInvalidWindow):
		return nethttp.StatusBadRequest
	}
	return nethttp.StatusInternalServerError
}

var (
	errNotOwner      = errors.New("not the owner of this class")
	errReadForbidden = errors.New("you cannot view this submission")
)

// caller returns the identity attached by the auth middleware.
func caller(r *nethttp.Request) auth.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}
