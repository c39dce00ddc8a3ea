package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/cnpmnc/assignment/internal/users"
)

type userRow struct {
	Username    string `json:"username" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName"`
}

// POST /api/users
// Accepts a JSON array of users or a multipart CSV file (field "file") with a
// username,password[,role,email,display_name] header. Existing usernames are skipped.
func CreateUsersHandler(people UserStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var rows []userRow
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				nethttp.Error(w, "file required", nethttp.StatusBadRequest)
				return
			}
			defer f.Close()
			if rows, err = parseUsersCSV(f); err != nil {
				nethttp.Error(w, "bad csv: "+err.Error(), nethttp.StatusBadRequest)
				return
			}
		} else if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			nethttp.Error(w, "expected JSON array or multipart file", nethttp.StatusBadRequest)
			return
		}
		for i := range rows {
			if rows[i].Role == "" {
				rows[i].Role = "student"
			}
			if err := validate.Struct(rows[i]); err != nil {
				nethttp.Error(w, fmt.Sprintf("row %d: %v", i+1, err), nethttp.StatusBadRequest)
				return
			}
		}

		created := []users.User{}
		skipped := []string{}
		for _, row := range rows {
			u, err := people.Create(r.Context(), users.User{
				Username:    row.Username,
				Email:       row.Email,
				DisplayName: row.DisplayName,
				Role:        row.Role,
			}, row.Password)
			if errors.Is(err, users.ErrExists) {
				skipped = append(skipped, row.Username)
				continue
			}
			if err != nil {
				writeError(w, r, err)
				return
			}
			created = append(created, u)
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{"created": created, "skipped": skipped})
	}
}

// GET /api/users?role=student
func ListUsersHandler(people UserStore) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		list, err := people.List(r.Context(), r.URL.Query().Get("role"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, list)
	}
}

func parseUsersCSV(r io.Reader) ([]userRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"username", "password"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	var rows []userRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, userRow{
			Username:    col(rec, "username"),
			Password:    col(rec, "password"),
			Role:        strings.ToLower(col(rec, "role")),
			Email:       col(rec, "email"),
			DisplayName: col(rec, "display_name"),
		})
	}
	return rows, nil
}
