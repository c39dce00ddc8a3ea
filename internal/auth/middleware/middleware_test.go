package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	auth "github.com/cnpmnc/assignment/internal/auth/middleware"
	"github.com/cnpmnc/assignment/internal/db/dbtest"
	"github.com/cnpmnc/assignment/internal/users"
)

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Error(w, "no identity", http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(id.Subject + "|" + id.Role))
}

func TestJWTMiddlewareAttachesIdentity(t *testing.T) {
	a := auth.NewAuthService("secret")
	tok, err := a.IssueJWT("u-1", "student")
	if err != nil {
		t.Fatal(err)
	}
	h := auth.JWTMiddleware(a)(http.HandlerFunc(echoIdentity))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "u-1|student" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := auth.NewAuthService("secret")
	other, _ := auth.NewAuthService("other").IssueJWT("u-1", "student")
	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "role": "admin", "iss": "assignment"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"missing":     "",
		"not bearer":  "Basic abc",
		"wrong key":   "Bearer " + other,
		"alg none":    "Bearer " + unsigned,
		"garbage jwt": "Bearer not.a.jwt",
	}
	h := auth.JWTMiddleware(a)(http.HandlerFunc(echoIdentity))
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("code = %d, want 401", rr.Code)
			}
		})
	}
}

func TestParseRejectsExpired(t *testing.T) {
	a := auth.NewAuthService("secret")
	tok, err := a.IssueJWT("u-1", "teacher")
	if err != nil {
		t.Fatal(err)
	}
	claims := &auth.Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	if err != nil {
		t.Fatal(err)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 8*time.Hour {
		t.Fatalf("ttl = %v", got)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Sub: "u-1", Role: "teacher",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "assignment",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, _ := expired.SignedString([]byte("secret"))
	if _, err := a.Parse(s); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestLoginHandler(t *testing.T) {
	dbh := dbtest.Open(t)
	st := users.NewSQLStore(dbh)
	u, err := st.Create(context.Background(), users.User{Username: "ana", Role: "student"}, "pa55word")
	if err != nil {
		t.Fatal(err)
	}
	a := auth.NewAuthService("secret")
	h := auth.LoginHandler(a, st)

	post := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		return rr
	}

	rr := post(`{"username":"ana","password":"pa55word"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
		Role        string `json:"role"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(out.AccessToken)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if c.Sub != u.ID || c.Role != "student" || out.UserID != u.ID {
		t.Fatalf("claims = %+v, out = %+v", c, out)
	}

	if rr := post(`{"username":"ana","password":"nope"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password code = %d", rr.Code)
	}
	if rr := post(`{"username":"bob","password":"x"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user code = %d", rr.Code)
	}
	if rr := post(`{`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json code = %d", rr.Code)
	}
}

func TestAttachRoleFromDB(t *testing.T) {
	dbh := dbtest.Open(t)
	dbtest.SeedUser(t, dbh, "u-1", "teacher")
	h := auth.AttachRoleFromDB(dbh)(http.HandlerFunc(echoIdentity))

	serve := func(id auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	// token claims admin, database says teacher
	if rr := serve(auth.Identity{Subject: "u-1", Role: "admin"}); rr.Body.String() != "u-1|teacher" {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
	if rr := serve(auth.Identity{Subject: "ghost", Role: "admin"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unknown subject code = %d", rr.Code)
	}
}
