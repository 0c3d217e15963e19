package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/tutorhub/internal/accounts"
	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/config"
	apphttp "github.com/geocoder89/tutorhub/internal/http"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/geocoder89/tutorhub/internal/repo/memory"
	"github.com/geocoder89/tutorhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router http.Handler
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	cfg := config.Config{
		Env:            "test",
		CookieName:     "token",
		EntryPage:      "/login",
		ProtectedPages: []string{"/dashboard", "/tutor", "/student"},
		AuthRateLimit:  100,
		AuthRateWindow: time.Minute,
		JWTTTL:         time.Hour,
	}

	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	signer, err := auth.NewHMACSigner("router-test-secret")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	tokens := auth.NewManager(signer, "tutorhub-test", cfg.JWTTTL).WithClock(func() time.Time { return ts.now })

	store := memory.NewUsersRepo()
	hasher := security.NewHasher(bcrypt.MinCost)
	prov := accounts.NewProvisioner(store, hasher, accounts.WithMetrics(prom), accounts.WithLogger(log))

	ts.router = apphttp.NewRouter(apphttp.Deps{
		Config:    cfg,
		Log:       log,
		Prom:      prom,
		Gatherer:  reg,
		Users:     store,
		Accounts:  prov,
		Passwords: hasher,
		Tokens:    tokens,
		Authn:     auth.NewAuthenticator(tokens, store, auth.DefaultExtractors(cfg.CookieName)...),
	})
	return ts
}

type reqOpt func(r *http.Request)

func bearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func cookie(token string) reqOpt {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) }
}

func (ts *testServer) do(t *testing.T, method, path, body string, opts ...reqOpt) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestScenario_RegisterLoginAuthenticateExpire(t *testing.T) {
	ts := newTestServer(t)
	registerBody := `{"email":"a@x.com","password":"p1","name":"A","role":"STUDENT"}`

	w, body := ts.do(t, http.MethodPost, "/api/auth/register", registerBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	if body["message"] != "User registered successfully" {
		t.Fatalf("register body: %v", body)
	}

	w, body = ts.do(t, http.MethodPost, "/api/auth/register", registerBody)
	if w.Code != http.StatusBadRequest || body["error"] != "User already exists" {
		t.Fatalf("duplicate register: %d %v", w.Code, body)
	}

	w, body = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"p1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}

	w, body = ts.do(t, http.MethodGet, "/api/me", "", bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d %s", w.Code, w.Body.String())
	}
	u, _ := body["user"].(map[string]any)
	if u["email"] != "a@x.com" || u["role"] != "STUDENT" {
		t.Fatalf("me user: %v", u)
	}

	// the same token through the cookie transport
	w, body = ts.do(t, http.MethodGet, "/api/auth/validate", "", cookie(token))
	if w.Code != http.StatusOK || body["valid"] != true {
		t.Fatalf("validate via cookie: %d %v", w.Code, body)
	}

	w, _ = ts.do(t, http.MethodGet, "/api/students/me/profile", "", bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("student profile: %d %s", w.Code, w.Body.String())
	}
	w, body = ts.do(t, http.MethodGet, "/api/tutors/me/profile", "", bearer(token))
	if w.Code != http.StatusForbidden || body["error"] != "Access denied" {
		t.Fatalf("tutor profile as student: %d %v", w.Code, body)
	}

	// past expiry
	ts.now = ts.now.Add(time.Hour)

	w, body = ts.do(t, http.MethodGet, "/api/me", "", bearer(token))
	if w.Code != http.StatusUnauthorized || body["error"] != "Unauthorized" {
		t.Fatalf("expired token on api: %d %v", w.Code, body)
	}
	w, body = ts.do(t, http.MethodGet, "/api/auth/validate", "", bearer(token))
	if w.Code != http.StatusUnauthorized || body["valid"] != false {
		t.Fatalf("expired token on validate: %d %v", w.Code, body)
	}
}

func TestScenario_GateAndLogout(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/api/me", "")
	if w.Code != http.StatusUnauthorized || body["error"] != "Unauthorized" {
		t.Fatalf("api without header: %d %v", w.Code, body)
	}

	w, _ = ts.do(t, http.MethodGet, "/dashboard", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login?next=%2Fdashboard" {
		t.Fatalf("page without cookie: %d %q", w.Code, w.Header().Get("Location"))
	}

	w, body = ts.do(t, http.MethodPost, "/api/auth/logout", "")
	if w.Code != http.StatusOK || body["message"] != "Logged out successfully" {
		t.Fatalf("logout: %d %v", w.Code, body)
	}
	if sc := w.Header().Get("Set-Cookie"); sc == "" {
		t.Fatalf("logout should clear the cookie")
	}

	w, _ = ts.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	w, _ = ts.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	w, _ = ts.do(t, http.MethodGet, "/.well-known/jwks.json", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("jwks on HS256: %d", w.Code)
	}
}

func TestScenario_TutorRegistrationAndLogin(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodPost, "/api/auth/register",
		`{"email":"t@x.com","password":"pw","name":"T","role":"TUTOR","bio":"maths","subjects":["math"],"hourlyRate":20}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register tutor: %d %s", w.Code, w.Body.String())
	}

	w, body := ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"T@X.com","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	token := body["token"].(string)

	w, body = ts.do(t, http.MethodGet, "/api/tutors/me/profile", "", bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("tutor profile: %d %s", w.Code, w.Body.String())
	}
	profile, _ := body["profile"].(map[string]any)
	if profile["bio"] != "maths" {
		t.Fatalf("profile: %v", profile)
	}

	w, body = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"t@x.com","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized || body["error"] != "Invalid credentials" {
		t.Fatalf("wrong password: %d %v", w.Code, body)
	}
}
