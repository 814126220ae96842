package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-qtifix/internal/rbac"
)

func TestLoginAndMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAuthService("test-secret")
	login := LoginHandler(a, Account{Username: "ops", PasswordHash: string(hash), Role: rbac.RoleOperator})

	rec := httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ops","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ops","password":"s3cret"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: code=%d body=%s", rec.Code, rec.Body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Role != rbac.RoleOperator || out.AccessToken == "" {
		t.Fatalf("unexpected login response %+v", out)
	}

	var gotSub, gotRole string
	var gotPrincipal Principal
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
		gotPrincipal, _ = PrincipalFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+out.AccessToken)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotSub != "ops" || gotRole != rbac.RoleOperator {
		t.Fatalf("code=%d sub=%q role=%q", rec.Code, gotSub, gotRole)
	}
	if gotPrincipal != (Principal{Subject: "ops", Role: rbac.RoleOperator}) {
		t.Fatalf("principal=%+v", gotPrincipal)
	}

	stale, _ := a.IssueJWT("ops", "teacher")
	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+stale)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("role outside policy accepted: code=%d", rec.Code)
	}

	other := NewAuthService("other-secret")
	tok, _ := other.IssueJWT("ops", rbac.RoleAdmin)
	req = httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token accepted: code=%d", rec.Code)
	}
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	login := LoginHandler(NewAuthService("x"), Account{Username: "admin"})
	rec := httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":""}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code=%d", rec.Code)
	}
}
