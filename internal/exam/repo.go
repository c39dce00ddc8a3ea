package exam

import "context"

type Store interface {
	CreateExam(ctx context.Context, e Exam) (Exam, error)
	UpdateExam(ctx context.Context, e Exam) (Exam, error)
	DeleteExam(ctx context.Context, id string) error
	GetExam(ctx context.Context, id string) (Exam, error)
	GetExamByPasscode(ctx context.Context, passcode string) (Exam, error)
	ListExamsByClass(ctx context.Context, classID string) ([]Exam, error)
	ListExamsForStudent(ctx context.Context, studentID string) ([]Exam, error)

	AddQuestion(ctx context.Context, q Question) (Question, error)
	// ListQuestions returns the full question set, answers included, in position order.
	ListQuestions(ctx context.Context, examID string) ([]Question, error)
}
