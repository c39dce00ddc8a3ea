package http

import (
	"errors"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/submission"
)

type testRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	OpenTime    *time.Time `json:"openTime"`
	CloseTime   *time.Time `json:"closeTime"`
	Duration    int        `json:"duration" validate:"required,min=1,max=1440"`
	Publish     bool       `json:"publish"`
}

func (t testRequest) apply(e *exam.Exam) {
	e.Title = t.Title
	e.Description = t.Description
	e.OpenTime = t.OpenTime
	e.CloseTime = t.CloseTime
	e.DurationMin = t.Duration
	if t.Publish {
		e.Status = exam.StatusPublished
	}
}

// ownedExam loads a test and checks the caller teaches its class.
func ownedExam(r *nethttp.Request, classes ClassStore, exams exam.Store) (exam.Exam, error) {
	e, err := exams.GetExam(r.Context(), chi.URLParam(r, "testID"))
	if err != nil {
		return exam.Exam{}, err
	}
	if err := checkClassOwner(r, classes, e.ClassID); err != nil {
		return exam.Exam{}, err
	}
	return e, nil
}

// studentView hides the passcode from anyone but the owner.
func studentView(list []exam.Exam) []exam.Exam {
	for i := range list {
		list[i].Passcode = ""
	}
	return list
}

// POST /api/classes/{classID}/tests
func CreateTestHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		classID := chi.URLParam(r, "classID")
		var req testRequest
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		if err := checkClassOwner(r, classes, classID); err != nil {
			writeError(w, r, err)
			return
		}
		e := exam.Exam{ClassID: classID, Status: exam.StatusDraft}
		req.apply(&e)
		created, err := exams.CreateExam(r.Context(), e)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, created)
	}
}

// GET /api/classes/{classID}/tests
func ListClassTestsHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		classID := chi.URLParam(r, "classID")
		err := checkClassOwner(r, classes, classID)
		if err != nil && !errors.Is(err, errNotOwner) {
			writeError(w, r, err)
			return
		}
		owner := err == nil
		if !owner {
			ok, err := classes.IsEnrolled(r.Context(), classID, caller(r).Subject)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !ok {
				writeError(w, r, submission.ErrNotEnrolled)
				return
			}
		}
		list, err := exams.ListExamsByClass(r.Context(), classID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !owner {
			list = studentView(list)
		}
		writeJSON(w, nethttp.StatusOK, list)
	}
}

// GET /api/tests/{testID}
func GetTestHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		e, err := ownedExam(r, classes, exams)
		if err == nil {
			writeJSON(w, nethttp.StatusOK, e)
			return
		}
		if !errors.Is(err, errNotOwner) {
			writeError(w, r, err)
			return
		}
		// not the owner: enrolled students get the passcode-free view
		e, err = exams.GetExam(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ok, err := classes.IsEnrolled(r.Context(), e.ClassID, caller(r).Subject)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, submission.ErrNotEnrolled)
			return
		}
		e.Passcode = ""
		writeJSON(w, nethttp.StatusOK, e)
	}
}

// PUT /api/tests/{testID}
func UpdateTestHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req testRequest
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		e, err := ownedExam(r, classes, exams)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.apply(&e)
		updated, err := exams.UpdateExam(r.Context(), e)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, updated)
	}
}

// POST /api/tests/{testID}/publish
func PublishTestHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		e, err := ownedExam(r, classes, exams)
		if err != nil {
			writeError(w, r, err)
			return
		}
		e.Status = exam.StatusPublished
		updated, err := exams.UpdateExam(r.Context(), e)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, updated)
	}
}

// DELETE /api/tests/{testID}
func DeleteTestHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		e, err := ownedExam(r, classes, exams)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := exams.DeleteExam(r.Context(), e.ID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// POST /api/tests/{testID}/questions
func AddQuestionHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Content string `json:"content" validate:"required"`
			ChoiceA string `json:"choiceA" validate:"required"`
			ChoiceB string `json:"choiceB" validate:"required"`
			ChoiceC string `json:"choiceC" validate:"required"`
			ChoiceD string `json:"choiceD" validate:"required"`
			Answer  string `json:"answer" validate:"required,oneof=A B C D"`
		}
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		e, err := ownedExam(r, classes, exams)
		if err != nil {
			writeError(w, r, err)
			return
		}
		q, err := exams.AddQuestion(r.Context(), exam.Question{
			ExamID:  e.ID,
			Content: req.Content,
			ChoiceA: req.ChoiceA,
			ChoiceB: req.ChoiceB,
			ChoiceC: req.ChoiceC,
			ChoiceD: req.ChoiceD,
			Answer:  req.Answer,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, q)
	}
}

// GET /api/tests/{testID}/questions  (answers included; owner only)
func ListQuestionsHandler(classes ClassStore, exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		e, err := ownedExam(r, classes, exams)
		if err != nil {
			writeError(w, r, err)
			return
		}
		qs, err := exams.ListQuestions(r.Context(), e.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if qs == nil {
			qs = []exam.Question{}
		}
		writeJSON(w, nethttp.StatusOK, qs)
	}
}

// POST /api/tests/join  { "passcode": "..." }
func JoinTestHandler(svc *submission.Service) nethttp.HandlerFunc {
	type response struct {
		TestID    string                 `json:"testId"`
		Title     string                 `json:"title"`
		Duration  int                    `json:"duration"`
		CloseTime *time.Time             `json:"closeTime,omitempty"`
		Questions []exam.StudentQuestion `json:"questions"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			Passcode string `json:"passcode" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		t, qs, err := svc.Join(r.Context(), caller(r).Subject, req.Passcode)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, response{
			TestID:    t.ID,
			Title:     t.Title,
			Duration:  t.DurationMin,
			CloseTime: t.CloseTime,
			Questions: qs,
		})
	}
}

// GET /api/me/tests
func StudentTestsHandler(exams exam.Store) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		list, err := exams.ListExamsForStudent(r.Context(), caller(r).Subject)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, studentView(list))
	}
}

// GET /api/tests/{testID}/results
func TestResultsHandler(classes ClassStore, exams exam.Store, svc *submission.Service) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		e, err := ownedExam(r, classes, exams)
		if err != nil {
			writeError(w, r, err)
			return
		}
		res, err := svc.TestResults(r.Context(), e.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, res)
	}
}
