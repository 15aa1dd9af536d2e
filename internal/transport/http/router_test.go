package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/hospital_portal/internal/config"
	"github.com/Skotchmaster/hospital_portal/internal/db/dbtest"
	"github.com/Skotchmaster/hospital_portal/internal/google"
	"github.com/Skotchmaster/hospital_portal/internal/handlers"
	"github.com/Skotchmaster/hospital_portal/internal/metrics"
	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/mykafka"
	"github.com/Skotchmaster/hospital_portal/internal/repo"
	"github.com/Skotchmaster/hospital_portal/internal/service"
	"github.com/Skotchmaster/hospital_portal/internal/service/search"
	"github.com/Skotchmaster/hospital_portal/internal/tokens"
)

type testServer struct {
	e      http.Handler
	db     *gorm.DB
	issuer *tokens.Issuer
}

// googleClientID "-" leaves the client id unset.
type options struct {
	dev            bool
	rateLimit      config.RateLimitConfig
	googleURL      string
	googleClientID string
	esURL          string
}

func newTestServer(t *testing.T, opts options) *testServer {
	t.Helper()

	gdb := dbtest.New(t)
	r := repo.New(gdb)
	issuer, err := tokens.NewIssuer(config.JWTConfig{
		Secret:     "router-test-secret",
		Issuer:     "hospital-portal-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	var verifier service.GoogleVerifier
	if opts.googleURL != "" {
		clientID := "client-123"
		switch opts.googleClientID {
		case "":
		case "-":
			clientID = ""
		default:
			clientID = opts.googleClientID
		}
		verifier = google.NewVerifier(config.GoogleConfig{ClientID: clientID, TokenInfoURL: opts.googleURL})
	}

	var searchHandler *handlers.SearchHandler
	var indexer service.UserIndexer
	if opts.esURL != "" {
		client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{opts.esURL}})
		require.NoError(t, err)
		dir := search.NewDirectory(client, "users")
		searchHandler = handlers.NewSearchHandler(dir)
		indexer = dir
	}

	m := metrics.NewCollector("test", prometheus.NewRegistry())
	svc := service.NewAuthService(service.Deps{
		Users:   r,
		Tokens:  r,
		Issuer:  issuer,
		Google:  verifier,
		Events:  mykafka.Noop{},
		Index:   indexer,
		Metrics: m,
	})

	e := New(&Deps{
		DB:            gdb,
		AuthHandler:   &handlers.AuthHandler{Svc: svc, Cookies: handlers.CookieConfig{MaxAge: 7 * 24 * time.Hour}},
		UsersHandler:  &handlers.UsersHandler{Svc: svc},
		SearchHandler: searchHandler,
		Issuer:        issuer,
		Metrics:       m,
		Logger:        zerolog.Nop(),
		RateLimit:     opts.rateLimit,
		Dev:           opts.dev,
	})
	return &testServer{e: e, db: gdb, issuer: issuer}
}

type response struct {
	code    int
	body    map[string]any
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, method, path string, payload any, header map[string]string, cookies ...*http.Cookie) response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := response{code: rec.Code, cookies: rec.Result().Cookies()}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.body))
	}
	return out
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func registerPayload() map[string]string {
	return map[string]string{
		"firstName":       "John",
		"lastName":        "Doe",
		"email":           "john@example.com",
		"phone":           "+2348000000000",
		"password":        "StrongP@ss1",
		"confirmPassword": "StrongP@ss1",
		"gender":          "male",
	}
}

func loginPayload() map[string]string {
	return map[string]string{"email": "john@example.com", "password": "StrongP@ss1"}
}

func TestRegisterLoginMeScenario(t *testing.T) {
	s := newTestServer(t, options{})

	reg := s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil)
	require.Equal(t, http.StatusCreated, reg.code)
	user := reg.body["user"].(map[string]any)
	assert.Equal(t, "john@example.com", user["email"])
	assert.Equal(t, "patient", user["role"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "PasswordHash")

	login := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)
	require.Equal(t, http.StatusOK, login.code)
	assert.NotEmpty(t, login.body["accessToken"])
	assert.NotEmpty(t, login.body["refreshToken"])
	assert.Equal(t, float64(900), login.body["expiresIn"])

	ck := login.cookie(handlers.RefreshCookieName)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.Equal(t, 7*24*60*60, ck.MaxAge)
	assert.Equal(t, login.body["refreshToken"], ck.Value)

	me := s.do(t, http.MethodGet, "/users/me", nil, bearer(login.body["accessToken"].(string)))
	require.Equal(t, http.StatusOK, me.code)
	assert.Equal(t, "john@example.com", me.body["email"])
	assert.Equal(t, user["id"], me.body["id"])
	assert.NotContains(t, me.body, "user")
	assert.NotContains(t, me.body, "passwordHash")
}

func TestLoginFailuresAreIdentical(t *testing.T) {
	s := newTestServer(t, options{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)

	unknown := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "ghost@example.com", "password": "StrongP@ss1"}, nil)
	wrong := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "john@example.com", "password": "WrongP@ss1"}, nil)

	assert.Equal(t, http.StatusUnauthorized, unknown.code)
	assert.Equal(t, http.StatusUnauthorized, wrong.code)
	assert.Equal(t, unknown.body, wrong.body)
	assert.Equal(t, "Invalid credentials", wrong.body["message"])

	missing := s.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "john@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, missing.code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, options{})

	mismatch := registerPayload()
	mismatch["confirmPassword"] = "StrongP@ss2"
	res := s.do(t, http.MethodPost, "/auth/register", mismatch, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body["message"], "do not match")

	var count int64
	require.NoError(t, s.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	weak := registerPayload()
	weak["password"], weak["confirmPassword"] = "weakpassword", "weakpassword"
	res = s.do(t, http.MethodPost, "/auth/register", weak, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
	msg := res.body["message"].(string)
	assert.Contains(t, msg, "Password must contain")
	assert.Contains(t, msg, "one uppercase letter")
	assert.Contains(t, msg, "one number")
	assert.Contains(t, msg, "one special character")

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	dup := s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil)
	assert.Equal(t, http.StatusBadRequest, dup.code)
	assert.Equal(t, "Email is already in use", dup.body["message"])
}

func TestRefreshRotation(t *testing.T) {
	s := newTestServer(t, options{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	login := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)
	require.Equal(t, http.StatusOK, login.code)
	original := login.body["refreshToken"].(string)

	refreshed := s.do(t, http.MethodPost, "/auth/refresh-token", map[string]string{"refreshToken": original}, nil)
	require.Equal(t, http.StatusOK, refreshed.code)
	assert.NotEqual(t, original, refreshed.body["refreshToken"])
	assert.Equal(t, float64(900), refreshed.body["expiresIn"])
	require.NotNil(t, refreshed.cookie(handlers.RefreshCookieName))

	before, err := s.issuer.ParseAccess(login.body["accessToken"].(string))
	require.NoError(t, err)
	after, err := s.issuer.ParseAccess(refreshed.body["accessToken"].(string))
	require.NoError(t, err)
	assert.Equal(t, before.Subject, after.Subject)
	assert.Equal(t, before.Email, after.Email)
	assert.Equal(t, before.Role, after.Role)

	stale := s.do(t, http.MethodPost, "/auth/refresh-token", map[string]string{"refreshToken": original}, nil)
	assert.Equal(t, http.StatusUnauthorized, stale.code)
	assert.Equal(t, "Invalid or expired refresh token", stale.body["message"])

	viaCookie := s.do(t, http.MethodPost, "/auth/refresh-token", nil, nil, refreshed.cookie(handlers.RefreshCookieName))
	assert.Equal(t, http.StatusOK, viaCookie.code)

	missing := s.do(t, http.MethodPost, "/auth/refresh-token", nil, nil)
	assert.Equal(t, http.StatusBadRequest, missing.code)
}

func TestRefreshExpiredRecord(t *testing.T) {
	s := newTestServer(t, options{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	login := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)
	token := login.body["refreshToken"].(string)

	require.NoError(t, s.db.Model(&models.RefreshToken{}).Where("1 = 1").
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	res := s.do(t, http.MethodPost, "/auth/refresh-token", map[string]string{"refreshToken": token}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	var count int64
	require.NoError(t, s.db.Model(&models.RefreshToken{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, options{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	login := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)
	token := login.body["refreshToken"].(string)

	out := s.do(t, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": token}, nil)
	require.Equal(t, http.StatusOK, out.code)
	ck := out.cookie(handlers.RefreshCookieName)
	require.NotNil(t, ck)
	assert.Negative(t, ck.MaxAge)

	again := s.do(t, http.MethodPost, "/auth/refresh-token", map[string]string{"refreshToken": token}, nil)
	assert.Equal(t, http.StatusUnauthorized, again.code)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", nil, nil).code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": "never-issued"}, nil).code)
}

func TestLogoutAllAndSessions(t *testing.T) {
	s := newTestServer(t, options{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	first := s.do(t, http.MethodPost, "/auth/login", loginPayload(), map[string]string{"User-Agent": "phone"})
	second := s.do(t, http.MethodPost, "/auth/login", loginPayload(), map[string]string{"User-Agent": "laptop"})
	access := second.body["accessToken"].(string)

	sessions := s.do(t, http.MethodGet, "/users/me/sessions", nil, bearer(access))
	require.Equal(t, http.StatusOK, sessions.code)
	assert.Len(t, sessions.body["sessions"], 2)

	out := s.do(t, http.MethodPost, "/auth/logout-all", nil, bearer(access))
	require.Equal(t, http.StatusOK, out.code)
	assert.Equal(t, float64(2), out.body["revoked"])

	for _, tok := range []string{first.body["refreshToken"].(string), second.body["refreshToken"].(string)} {
		res := s.do(t, http.MethodPost, "/auth/refresh-token", map[string]string{"refreshToken": tok}, nil)
		assert.Equal(t, http.StatusUnauthorized, res.code)
	}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/auth/logout-all", nil, nil).code)
}

func TestMeRequiresAccessToken(t *testing.T) {
	s := newTestServer(t, options{})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	login := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users/me", nil, nil).code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users/me", nil, bearer(login.body["refreshToken"].(string))).code)

	require.NoError(t, s.db.Model(&models.User{}).Where("email = ?", "john@example.com").Update("is_active", false).Error)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/users/me", nil, bearer(login.body["accessToken"].(string))).code)
}

func TestGoogleLogin(t *testing.T) {
	var status = http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"aud":            "client-123",
			"iss":            "accounts.google.com",
			"email":          "jane@gmail.com",
			"email_verified": "true",
			"given_name":     "Jane",
			"family_name":    "Doe",
		})
	}))
	t.Cleanup(srv.Close)

	s := newTestServer(t, options{googleURL: srv.URL})

	res := s.do(t, http.MethodPost, "/auth/google-login", map[string]string{"credential": "id-token"}, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "jane@gmail.com", res.body["user"].(map[string]any)["email"])
	assert.Equal(t, "patient", res.body["user"].(map[string]any)["role"])
	assert.NotEmpty(t, res.body["refreshToken"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/auth/google-login", map[string]string{}, nil).code)

	status = http.StatusUnauthorized
	failed := s.do(t, http.MethodPost, "/auth/google-login", map[string]string{"credential": "bad"}, nil)
	assert.Equal(t, http.StatusInternalServerError, failed.code)
	assert.Equal(t, "Google authentication failed", failed.body["message"])
	assert.NotContains(t, failed.body, "error")
}

func TestGoogleLoginRejectsForeignAudienceWithoutClientID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"aud":            "other-app.apps.googleusercontent.com",
			"iss":            "accounts.google.com",
			"sub":            "1",
			"email":          "john@example.com",
			"email_verified": "true",
		})
	}))
	t.Cleanup(srv.Close)

	s := newTestServer(t, options{googleURL: srv.URL, googleClientID: "-"})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)

	res := s.do(t, http.MethodPost, "/auth/google-login", map[string]string{"credential": "foreign-token"}, nil)
	assert.Equal(t, http.StatusInternalServerError, res.code)
	assert.Equal(t, "Google authentication failed", res.body["message"])
	assert.Empty(t, res.body["accessToken"])

	var sessions int64
	require.NoError(t, s.db.Model(&models.RefreshToken{}).Count(&sessions).Error)
	assert.Zero(t, sessions)
}

func TestInternalErrorDetailOnlyInDev(t *testing.T) {
	for _, dev := range []bool{false, true} {
		s := newTestServer(t, options{dev: dev})
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)

		sqlDB, err := s.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		res := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)
		assert.Equal(t, http.StatusInternalServerError, res.code)
		assert.Equal(t, "Internal server error", res.body["message"])
		if dev {
			assert.NotEmpty(t, res.body["error"])
		} else {
			assert.NotContains(t, res.body, "error")
		}
	}
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, options{rateLimit: config.RateLimitConfig{AuthRPS: 0.001, AuthBurst: 2}})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil).code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, options{})

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil, nil).code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", nil, nil).code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestUserSearch(t *testing.T) {
	es := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/_search") {
			_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"1","email":"john@example.com","fullName":"John Doe","role":"patient","isActive":true}}]}}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	}))
	t.Cleanup(es.Close)

	s := newTestServer(t, options{esURL: es.URL})
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/auth/register", registerPayload(), nil).code)
	patient := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)

	forbidden := s.do(t, http.MethodGet, "/users/search?q=john", nil, bearer(patient.body["accessToken"].(string)))
	assert.Equal(t, http.StatusForbidden, forbidden.code)

	require.NoError(t, s.db.Model(&models.User{}).Where("email = ?", "john@example.com").Update("role", models.RoleDoctor).Error)
	doctor := s.do(t, http.MethodPost, "/auth/login", loginPayload(), nil)
	access := doctor.body["accessToken"].(string)

	res := s.do(t, http.MethodGet, "/users/search?q=john&page=1&size=5", nil, bearer(access))
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, float64(1), res.body["total"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/users/search", nil, bearer(access)).code)
}
