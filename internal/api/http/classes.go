package http

import (
	"context"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cnpmnc/assignment/internal/classroom"
	"github.com/cnpmnc/assignment/internal/rbac"
	"github.com/cnpmnc/assignment/internal/users"
)

// ClassStore is the class persistence the handlers need.
type ClassStore interface {
	Create(ctx context.Context, c classroom.Class) (classroom.Class, error)
	Update(ctx context.Context, c classroom.Class) (classroom.Class, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (classroom.Class, error)
	Enroll(ctx context.Context, classID, studentID string) error
	JoinByCode(ctx context.Context, code, studentID string) (classroom.Class, error)
	IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	ListStudents(ctx context.Context, classID string) ([]classroom.Student, error)
	ListForUser(ctx context.Context, userID, role string) ([]classroom.Class, error)
}

type UserStore interface {
	Create(ctx context.Context, u users.User, password string) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
	List(ctx context.Context, role string) ([]users.User, error)
}

type classRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	ClassCode   string `json:"classCode" validate:"omitempty,alphanum,max=50"`
}

// ownedClass loads a class and checks the caller may manage it.
func ownedClass(r *nethttp.Request, classes ClassStore, classID string) (classroom.Class, error) {
	c, err := classes.Get(r.Context(), classID)
	if err != nil {
		return classroom.Class{}, err
	}
	if !rbac.Manages(caller(r), c.TeacherID) {
		return classroom.Class{}, errNotOwner
	}
	return c, nil
}

func checkClassOwner(r *nethttp.Request, classes ClassStore, classID string) error {
	_, err := ownedClass(r, classes, classID)
	return err
}

// POST /api/classes  { "name": "...", "description": "...", "classCode": "..." }
func CreateClassHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req classRequest
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		c, err := classes.Create(r.Context(), classroom.Class{
			Name:        req.Name,
			Description: req.Description,
			ClassCode:   req.ClassCode,
			TeacherID:   caller(r).Subject,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, c)
	}
}

// GET /api/classes
func ListClassesHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id := caller(r)
		list, err := classes.ListForUser(r.Context(), id.Subject, id.Role)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if id.Role == rbac.RoleStudent {
			for i := range list {
				list[i].ClassCode = ""
			}
		}
		writeJSON(w, nethttp.StatusOK, list)
	}
}

// GET /api/classes/{classID}
func GetClassHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := ownedClass(r, classes, chi.URLParam(r, "classID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, c)
	}
}

// PUT /api/classes/{classID}
func UpdateClassHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req classRequest
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		c, err := ownedClass(r, classes, chi.URLParam(r, "classID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		c.Name, c.Description, c.ClassCode = req.Name, req.Description, req.ClassCode
		updated, err := classes.Update(r.Context(), c)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, updated)
	}
}

// DELETE /api/classes/{classID}
func DeleteClassHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := ownedClass(r, classes, chi.URLParam(r, "classID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := classes.Delete(r.Context(), c.ID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// GET /api/classes/{classID}/students
func ListClassStudentsHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := ownedClass(r, classes, chi.URLParam(r, "classID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		roster, err := classes.ListStudents(r.Context(), c.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, roster)
	}
}

// POST /api/classes/{classID}/students  { "student_id": "..." }
func EnrollStudentHandler(classes ClassStore, people UserStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		classID := chi.URLParam(r, "classID")
		var req struct {
			StudentID string `json:"student_id" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		if err := checkClassOwner(r, classes, classID); err != nil {
			writeError(w, r, err)
			return
		}
		u, err := people.Get(r.Context(), req.StudentID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if u.Role != rbac.RoleStudent {
			nethttp.Error(w, "only students can be enrolled", nethttp.StatusBadRequest)
			return
		}
		if err := classes.Enroll(r.Context(), classID, u.ID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}
}

// POST /api/classes/join  { "classCode": "..." }
func JoinClassHandler(classes ClassStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req struct {
			ClassCode string `json:"classCode" validate:"required"`
		}
		if err := decodeJSON(r, &req); err != nil {
			nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		if caller(r).Role != rbac.RoleStudent {
			nethttp.Error(w, "only students can join a class", nethttp.StatusForbidden)
			return
		}
		c, err := classes.JoinByCode(r.Context(), req.ClassCode, caller(r).Subject)
		if err != nil {
			writeError(w, r, err)
			return
		}
		c.ClassCode = ""
		writeJSON(w, nethttp.StatusOK, c)
	}
}
