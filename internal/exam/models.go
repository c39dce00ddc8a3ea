package exam

import (
	"errors"
	"time"

	"github.com/cnpmnc/assignment/internal/joincode"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

var (
	ErrNotFound         = errors.New("test not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrHasResults       = errors.New("test already has submissions")
	ErrNotOpen          = errors.New("test is not open")
	ErrInvalidAnswer    = errors.New("answer must be one of A, B, C, D")
	ErrInvalidWindow    = errors.New("close time must be after open time")
)

// Exam is a test owned by a class. The wire format calls it a "test".
type Exam struct {
	ID          string     `json:"id"`
	ClassID     string     `json:"classId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	OpenTime    *time.Time `json:"openTime,omitempty"`
	CloseTime   *time.Time `json:"closeTime,omitempty"`
	DurationMin int        `json:"duration"` // minutes
	Passcode    string     `json:"passcode,omitempty"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Validate checks the fields a teacher can edit.
func (e Exam) Validate() error {
	if e.OpenTime != nil && e.CloseTime != nil && !e.CloseTime.After(*e.OpenTime) {
		return ErrInvalidWindow
	}
	return nil
}

// CheckOpen returns ErrNotOpen unless the test is published and now lies
// inside its (optional) window.
func (e Exam) CheckOpen(now time.Time) error {
	if e.Status != StatusPublished {
		return ErrNotOpen
	}
	if e.OpenTime != nil && now.Before(*e.OpenTime) {
		return ErrNotOpen
	}
	if e.CloseTime != nil && now.After(*e.CloseTime) {
		return ErrNotOpen
	}
	return nil
}

// Question is a four-choice question. Answer is the correct slot.
type Question struct {
	ID       string `json:"id"`
	ExamID   string `json:"testId"`
	Position int    `json:"position"`
	Content  string `json:"content"`
	ChoiceA  string `json:"choiceA"`
	ChoiceB  string `json:"choiceB"`
	ChoiceC  string `json:"choiceC"`
	ChoiceD  string `json:"choiceD"`
	Answer   string `json:"answer"`
}

// StudentQuestion is the answer-free view served while taking a test.
type StudentQuestion struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	ChoiceA string `json:"choiceA"`
	ChoiceB string `json:"choiceB"`
	ChoiceC string `json:"choiceC"`
	ChoiceD string `json:"choiceD"`
}

func (q Question) ForStudent() StudentQuestion {
	return StudentQuestion{
		ID:      q.ID,
		Content: q.Content,
		ChoiceA: q.ChoiceA,
		ChoiceB: q.ChoiceB,
		ChoiceC: q.ChoiceC,
		ChoiceD: q.ChoiceD,
	}
}

// ValidAnswer reports whether s names one of the four choice slots.
func ValidAnswer(s string) bool {
	switch s {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

// NormalizePasscode upper-cases and trims a user-typed passcode.
func NormalizePasscode(s string) string {
	return joincode.Normalize(s)
}
