package http

import (
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/grading"
	"github.com/cnpmnc/assignment/internal/rbac"
	"github.com/cnpmnc/assignment/internal/submission"
)

type submitRequest struct {
	TestID  string         `json:"test_id" validate:"required"`
	UserID  string         `json:"user_id" validate:"required"`
	Answers []submitAnswer `json:"answers"`
}

// Entries without a question id are dropped by the scorer, not rejected here.
type submitAnswer struct {
	QuestionID   string `json:"question_id"`
	SubmitAnswer string `json:"submit_answer"`
}

// POST /api/submissions
func SubmitHandler(svc *submission.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req submitRequest
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		answers := make([]grading.Answer, len(req.Answers))
		for i, a := range req.Answers {
			answers[i] = grading.Answer{QuestionID: a.QuestionID, Choice: a.SubmitAnswer}
		}
		rec, err := svc.Submit(r.Context(), caller(r).Subject, submission.Request{
			TestID:  req.TestID,
			UserID:  req.UserID,
			Answers: answers,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, rec)
	}
}

// GET /api/submissions/{submissionID}/result
// The student who submitted, the class teacher and admins may read it.
func ResultHandler(classes ClassStore, exams exam.Store, svc *submission.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := caller(r)
		sub, err := svc.Submission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if sub.StudentID != id.Subject {
			if !rbac.Can(r, rbac.PermResultViewAll) {
				writeError(w, r, errReadForbidden)
				return
			}
			t, err := exams.GetExam(r.Context(), sub.TestID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if err := checkClassOwner(r, classes, t.ClassID); err != nil {
				writeError(w, r, err)
				return
			}
		}
		res, err := svc.Result(r.Context(), sub.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, res)
	}
}

// GET /api/me/grades
func GradesHandler(svc *submission.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		grades, err := svc.Grades(r.Context(), caller(r).Subject)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, grades)
	}
}
