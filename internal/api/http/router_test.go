package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	api "github.com/cnpmnc/assignment/internal/api/http"
	auth "github.com/cnpmnc/assignment/internal/auth/middleware"
	"github.com/cnpmnc/assignment/internal/classroom"
	"github.com/cnpmnc/assignment/internal/db/dbtest"
	"github.com/cnpmnc/assignment/internal/exam"
	"github.com/cnpmnc/assignment/internal/grading"
	"github.com/cnpmnc/assignment/internal/submission"
	syncx "github.com/cnpmnc/assignment/internal/sync"
	"github.com/cnpmnc/assignment/internal/users"
)

type harness struct {
	t      *testing.T
	h      http.Handler
	tokens map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dbh := dbtest.Open(t)
	for id, role := range map[string]string{
		"teacher-1": "teacher",
		"teacher-2": "teacher",
		"student-1": "student",
		"student-2": "student",
	} {
		dbtest.SeedUser(t, dbh, id, role)
	}

	a := auth.NewAuthService("test-secret")
	people := users.NewSQLStore(dbh)
	classes := classroom.NewSQLStore(dbh)
	exams := exam.NewSQLStore(dbh)
	svc := submission.NewService(submission.Deps{
		Tests:      exams,
		Keys:       exams,
		Students:   people,
		Enrollment: classes,
		Repo:       submission.NewSQLStore(dbh, syncx.NewEventRepo("")),
		Scorer:     grading.NewScorer(grading.WithWeight(10)),
	})

	hs := &harness{t: t, tokens: map[string]string{}}
	hs.h = api.NewRouter(api.RouterConfig{
		DB:              dbh,
		Auth:            a,
		Users:           people,
		Classes:         classes,
		Exams:           exams,
		Submissions:     svc,
		EnableLocalAuth: true,
		CORSOrigins:     []string{"http://localhost:3000"},
	})
	// the token role is deliberately wrong for teacher-2; the DB role wins
	for id, role := range map[string]string{"teacher-1": "teacher", "teacher-2": "admin", "student-1": "student", "student-2": "student"} {
		tok, err := a.IssueJWT(id, role)
		if err != nil {
			t.Fatal(err)
		}
		hs.tokens[id] = tok
	}
	return hs
}

func (hs *harness) do(method, path, who string, body any) *httptest.ResponseRecorder {
	hs.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			hs.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+hs.tokens[who])
	}
	rr := httptest.NewRecorder()
	hs.h.ServeHTTP(rr, req)
	return rr
}

func (hs *harness) decode(rr *httptest.ResponseRecorder, wantCode int, dst any) {
	hs.t.Helper()
	if rr.Code != wantCode {
		hs.t.Fatalf("code = %d, want %d; body=%s", rr.Code, wantCode, rr.Body.String())
	}
	if dst != nil {
		if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
			hs.t.Fatalf("decode: %v", err)
		}
	}
}

// setupTest creates a class with student-1 enrolled and a published test with
// two questions answered A and B.
func (hs *harness) setupTest() (testID, passcode string, questionIDs []string) {
	hs.t.Helper()
	var class classroom.Class
	hs.decode(hs.do("POST", "/api/classes", "teacher-1", map[string]string{"name": "Physics"}), http.StatusCreated, &class)
	hs.decode(hs.do("POST", "/api/classes/"+class.ID+"/students", "teacher-1", map[string]string{"student_id": "student-1"}), http.StatusNoContent, nil)

	var tst exam.Exam
	hs.decode(hs.do("POST", "/api/classes/"+class.ID+"/tests", "teacher-1",
		map[string]any{"title": "Quiz", "duration": 20, "publish": true}), http.StatusCreated, &tst)
	for _, ans := range []string{"A", "B"} {
		var q exam.Question
		hs.decode(hs.do("POST", "/api/tests/"+tst.ID+"/questions", "teacher-1", map[string]string{
			"content": "question " + ans, "choiceA": "1", "choiceB": "2", "choiceC": "3", "choiceD": "4", "answer": ans,
		}), http.StatusCreated, &q)
		questionIDs = append(questionIDs, q.ID)
	}
	return tst.ID, tst.Passcode, questionIDs
}

func TestSubmitAndReadResult(t *testing.T) {
	hs := newHarness(t)
	testID, passcode, qids := hs.setupTest()

	// join with a lower-cased passcode; questions come back without answers
	rr := hs.do("POST", "/api/tests/join", "student-1", map[string]string{"passcode": strings.ToLower(passcode)})
	if rr.Code != http.StatusOK {
		t.Fatalf("join code = %d body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), `"answer"`) {
		t.Fatalf("join leaked answers: %s", rr.Body.String())
	}

	body := map[string]any{
		"test_id": testID,
		"user_id": "student-1",
		"answers": []map[string]string{
			{"question_id": qids[0], "submit_answer": "A"},
			{"question_id": qids[1], "submit_answer": "C"},
		},
	}
	var rec struct {
		SubmissionID   string  `json:"submissionId"`
		Score          float64 `json:"score"`
		MaxScore       float64 `json:"maxScore"`
		Percentage     float64 `json:"percentage"`
		CorrectCount   int     `json:"correctCount"`
		TotalQuestions int     `json:"totalQuestions"`
		Status         string  `json:"status"`
	}
	hs.decode(hs.do("POST", "/api/submissions", "student-1", body), http.StatusCreated, &rec)
	if rec.Score != 10 || rec.MaxScore != 20 || rec.Percentage != 50 || rec.CorrectCount != 1 ||
		rec.TotalQuestions != 2 || rec.Status != "COMPLETED" {
		t.Fatalf("receipt = %+v", rec)
	}

	if rr := hs.do("POST", "/api/submissions", "student-1", body); rr.Code != http.StatusConflict {
		t.Fatalf("second submit code = %d", rr.Code)
	}

	var res struct {
		TotalScore   float64 `json:"totalScore"`
		CorrectCount int     `json:"correctCount"`
		WrongCount   int     `json:"wrongCount"`
		Questions    []struct {
			ID             string  `json:"id"`
			QuestionText   string  `json:"questionText"`
			SelectedAnswer *string `json:"selectedAnswer"`
			CorrectAnswer  string  `json:"correctAnswer"`
		} `json:"questions"`
	}
	hs.decode(hs.do("GET", "/api/submissions/"+rec.SubmissionID+"/result", "student-1", nil), http.StatusOK, &res)
	if res.TotalScore != 10 || res.CorrectCount != 1 || res.WrongCount != 1 || len(res.Questions) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if q := res.Questions[1]; q.ID != qids[1] || q.SelectedAnswer == nil || *q.SelectedAnswer != "C" || q.CorrectAnswer != "B" {
		t.Fatalf("question 2 = %+v", q)
	}

	// the class teacher can read it, another student and another teacher cannot
	if rr := hs.do("GET", "/api/submissions/"+rec.SubmissionID+"/result", "teacher-1", nil); rr.Code != http.StatusOK {
		t.Fatalf("teacher read code = %d", rr.Code)
	}
	if rr := hs.do("GET", "/api/submissions/"+rec.SubmissionID+"/result", "student-2", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("other student code = %d", rr.Code)
	}
	if rr := hs.do("GET", "/api/submissions/"+rec.SubmissionID+"/result", "teacher-2", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("other teacher code = %d", rr.Code)
	}
	if rr := hs.do("GET", "/api/submissions/missing/result", "student-1", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("missing code = %d", rr.Code)
	}

	var agg submission.TestResults
	hs.decode(hs.do("GET", "/api/tests/"+testID+"/results", "teacher-1", nil), http.StatusOK, &agg)
	if agg.Summary.TotalSubmissions != 1 || agg.Summary.HighestScore != 10 || agg.Summary.CompletionRate != 100 {
		t.Fatalf("summary = %+v", agg.Summary)
	}

	var grades []submission.Grade
	hs.decode(hs.do("GET", "/api/me/grades", "student-1", nil), http.StatusOK, &grades)
	if len(grades) != 1 || grades[0].SubmissionID != rec.SubmissionID || grades[0].Percentage != 50 {
		t.Fatalf("grades = %+v", grades)
	}

	// the test is frozen once results exist
	rr = hs.do("POST", "/api/tests/"+testID+"/questions", "teacher-1", map[string]string{
		"content": "late", "choiceA": "1", "choiceB": "2", "choiceC": "3", "choiceD": "4", "answer": "A",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("add after results code = %d", rr.Code)
	}
}

func TestSubmitRejections(t *testing.T) {
	hs := newHarness(t)
	testID, _, qids := hs.setupTest()
	answers := []map[string]string{{"question_id": qids[0], "submit_answer": "A"}}

	cases := []struct {
		name string
		who  string
		body any
		want int
	}{
		{"no token", "", map[string]any{"test_id": testID, "user_id": "student-1"}, http.StatusUnauthorized},
		{"teacher cannot submit", "teacher-1", map[string]any{"test_id": testID, "user_id": "teacher-1"}, http.StatusForbidden},
		{"bad json", "student-1", `{"test_id":`, http.StatusBadRequest},
		{"missing user_id", "student-1", map[string]any{"test_id": testID, "answers": answers}, http.StatusBadRequest},
		{"someone else's id", "student-1", map[string]any{"test_id": testID, "user_id": "student-2", "answers": answers}, http.StatusForbidden},
		{"unknown test", "student-1", map[string]any{"test_id": "nope", "user_id": "student-1"}, http.StatusNotFound},
		{"not enrolled", "student-2", map[string]any{"test_id": testID, "user_id": "student-2", "answers": answers}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rr := hs.do("POST", "/api/submissions", tc.who, tc.body); rr.Code != tc.want {
				t.Fatalf("code = %d, want %d; body=%s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
}

func TestEmptyTestIsUnprocessable(t *testing.T) {
	hs := newHarness(t)
	var class classroom.Class
	hs.decode(hs.do("POST", "/api/classes", "teacher-1", map[string]string{"name": "Chem"}), http.StatusCreated, &class)
	hs.decode(hs.do("POST", "/api/classes/"+class.ID+"/students", "teacher-1", map[string]string{"student_id": "student-1"}), http.StatusNoContent, nil)
	var tst exam.Exam
	hs.decode(hs.do("POST", "/api/classes/"+class.ID+"/tests", "teacher-1",
		map[string]any{"title": "Empty", "duration": 5, "publish": true}), http.StatusCreated, &tst)

	rr := hs.do("POST", "/api/submissions", "student-1", map[string]any{"test_id": tst.ID, "user_id": "student-1"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAuthoringAccess(t *testing.T) {
	hs := newHarness(t)
	testID, _, _ := hs.setupTest()

	// teacher-2's token says admin but the stored role is teacher
	if rr := hs.do("GET", "/api/tests/"+testID+"/questions", "teacher-2", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("foreign teacher code = %d", rr.Code)
	}
	if rr := hs.do("POST", "/api/users", "teacher-2", `[]`); rr.Code != http.StatusForbidden {
		t.Fatalf("teacher create users code = %d", rr.Code)
	}
	if rr := hs.do("POST", "/api/classes", "student-1", map[string]string{"name": "x"}); rr.Code != http.StatusForbidden {
		t.Fatalf("student create class code = %d", rr.Code)
	}

	// enrolled students see the test without its passcode
	var seen exam.Exam
	hs.decode(hs.do("GET", "/api/tests/"+testID, "student-1", nil), http.StatusOK, &seen)
	if seen.Passcode != "" {
		t.Fatalf("passcode leaked to student: %+v", seen)
	}
	if rr := hs.do("GET", "/api/tests/"+testID, "student-2", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("unenrolled student code = %d", rr.Code)
	}

	var mine []exam.Exam
	hs.decode(hs.do("GET", "/api/me/tests", "student-1", nil), http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].ID != testID || mine[0].Passcode != "" {
		t.Fatalf("student tests = %+v", mine)
	}

	rr := hs.do("POST", "/api/tests/"+testID+"/questions", "teacher-1", map[string]string{
		"content": "q", "choiceA": "1", "choiceB": "2", "choiceC": "3", "choiceD": "4", "answer": "E",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad marker code = %d", rr.Code)
	}
	if rr := hs.do("POST", "/api/tests/join", "student-2", map[string]string{"passcode": "NOPE99"}); rr.Code != http.StatusForbidden {
		t.Fatalf("bad passcode code = %d", rr.Code)
	}
	if rr := hs.do("DELETE", "/api/tests/"+testID, "teacher-1", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete code = %d", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	hs := newHarness(t)
	for _, p := range []string{"/healthz", "/readyz"} {
		if rr := hs.do("GET", p, "", nil); rr.Code != http.StatusOK {
			t.Fatalf("%s = %d", p, rr.Code)
		}
	}
}

func TestSubmitDropsEntriesWithoutQuestion(t *testing.T) {
	hs := newHarness(t)
	testID, _, qids := hs.setupTest()

	body := `{"test_id":"` + testID + `","user_id":"student-1","answers":[` +
		`{"question_id":"` + qids[0] + `","submit_answer":"A"},` +
		`{"question_id":null,"submit_answer":"B"},` +
		`{"submit_answer":"C"}]}`
	var rec struct {
		Score          float64 `json:"score"`
		CorrectCount   int     `json:"correctCount"`
		TotalQuestions int     `json:"totalQuestions"`
	}
	hs.decode(hs.do("POST", "/api/submissions", "student-1", body), http.StatusCreated, &rec)
	if rec.CorrectCount != 1 || rec.Score != 10 || rec.TotalQuestions != 2 {
		t.Fatalf("receipt = %+v", rec)
	}
}

func TestClassManagement(t *testing.T) {
	hs := newHarness(t)

	var class classroom.Class
	hs.decode(hs.do("POST", "/api/classes", "teacher-1",
		map[string]string{"name": "Algebra", "description": "period 2", "classCode": "alg2"}), http.StatusCreated, &class)
	if class.ClassCode != "ALG2" {
		t.Fatalf("class = %+v", class)
	}
	if rr := hs.do("POST", "/api/classes", "teacher-1", map[string]string{"name": "Dup", "classCode": "ALG2"}); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate code = %d", rr.Code)
	}

	// students join by code, once
	var joined classroom.Class
	hs.decode(hs.do("POST", "/api/classes/join", "student-1", map[string]string{"classCode": "alg2"}), http.StatusOK, &joined)
	if joined.ID != class.ID || joined.ClassCode != "" {
		t.Fatalf("joined = %+v", joined)
	}
	if rr := hs.do("POST", "/api/classes/join", "student-1", map[string]string{"classCode": "ALG2"}); rr.Code != http.StatusConflict {
		t.Fatalf("rejoin = %d", rr.Code)
	}
	if rr := hs.do("POST", "/api/classes/join", "student-2", map[string]string{"classCode": "ZZZZ"}); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown code = %d", rr.Code)
	}
	if rr := hs.do("POST", "/api/classes/join", "teacher-2", map[string]string{"classCode": "ALG2"}); rr.Code != http.StatusForbidden {
		t.Fatalf("teacher join = %d", rr.Code)
	}

	var got classroom.Class
	hs.decode(hs.do("GET", "/api/classes/"+class.ID, "teacher-1", nil), http.StatusOK, &got)
	if got.StudentCount != 1 || got.Description != "period 2" {
		t.Fatalf("class = %+v", got)
	}
	var roster []classroom.Student
	hs.decode(hs.do("GET", "/api/classes/"+class.ID+"/students", "teacher-1", nil), http.StatusOK, &roster)
	if len(roster) != 1 || roster[0].ID != "student-1" {
		t.Fatalf("roster = %+v", roster)
	}

	// only the owner manages the class
	for _, tc := range []struct{ method, path, who string }{
		{"GET", "/api/classes/" + class.ID, "teacher-2"},
		{"GET", "/api/classes/" + class.ID + "/students", "teacher-2"},
		{"PUT", "/api/classes/" + class.ID, "teacher-2"},
		{"DELETE", "/api/classes/" + class.ID, "teacher-2"},
		{"GET", "/api/classes/" + class.ID, "student-1"},
		{"DELETE", "/api/classes/" + class.ID, "student-1"},
	} {
		if rr := hs.do(tc.method, tc.path, tc.who, map[string]string{"name": "hijack"}); rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s as %s = %d", tc.method, tc.path, tc.who, rr.Code)
		}
	}

	var updated classroom.Class
	hs.decode(hs.do("PUT", "/api/classes/"+class.ID, "teacher-1", map[string]string{"name": "Algebra II"}), http.StatusOK, &updated)
	if updated.Name != "Algebra II" || updated.ClassCode != "ALG2" {
		t.Fatalf("updated = %+v", updated)
	}

	var mine []classroom.Class
	hs.decode(hs.do("GET", "/api/classes", "student-1", nil), http.StatusOK, &mine)
	if len(mine) != 1 || mine[0].ClassCode != "" {
		t.Fatalf("student classes = %+v", mine)
	}

	if rr := hs.do("DELETE", "/api/classes/"+class.ID, "teacher-1", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rr.Code)
	}
	if rr := hs.do("GET", "/api/classes/"+class.ID, "teacher-1", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d", rr.Code)
	}
}
