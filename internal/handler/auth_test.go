package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/foxshrine/shrine-api/internal/config"
	"github.com/foxshrine/shrine-api/internal/model"
	"github.com/foxshrine/shrine-api/internal/repository"
	"github.com/foxshrine/shrine-api/internal/token"
)

// ----- mocks -----

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Create(ctx context.Context, username, email, displayName, passwordHash string, roleID uint64) (uint64, error) {
	args := m.Called(ctx, username, email, displayName, passwordHash, roleID)
	return args.Get(0).(uint64), args.Error(1)
}
func (m *mockUsers) GetByLogin(ctx context.Context, login string) (model.User, error) {
	args := m.Called(ctx, login)
	u, _ := args.Get(0).(model.User)
	return u, args.Error(1)
}
func (m *mockUsers) ResolveAuthUser(ctx context.Context, id uint64) (*model.AuthUser, error) {
	args := m.Called(ctx, id)
	au, _ := args.Get(0).(*model.AuthUser)
	return au, args.Error(1)
}
func (m *mockUsers) RecordLoginFailure(ctx context.Context, id uint64, attempts int, lockedUntil sql.NullTime) error {
	args := m.Called(ctx, id, attempts, lockedUntil)
	return args.Error(0)
}
func (m *mockUsers) RecordLoginSuccess(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ UserStore = (*mockUsers)(nil)

type mockRoles struct{ mock.Mock }

func (m *mockRoles) GetByName(ctx context.Context, name string) (model.Role, error) {
	args := m.Called(ctx, name)
	r, _ := args.Get(0).(model.Role)
	return r, args.Error(1)
}

var _ RoleStore = (*mockRoles)(nil)

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Create(ctx context.Context, s *model.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}
func (m *mockSessions) Rotate(ctx context.Context, oldRefreshHash, tokenHash, refreshHash string, expiresAt time.Time) error {
	args := m.Called(ctx, oldRefreshHash, tokenHash, refreshHash, expiresAt)
	return args.Error(0)
}
func (m *mockSessions) Deactivate(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

var _ SessionStore = (*mockSessions)(nil)

type mockAudit struct{ mock.Mock }

func (m *mockAudit) FromRequest(c echo.Context, userID uint64, action, details string) {
	m.Called(c, userID, action, details)
}

var _ Auditor = (*mockAudit)(nil)

// ----- helpers -----

func testConfig() config.Config {
	return config.Config{
		Env:        "dev",
		JWTSecret:  "handler-test-secret",
		AccessTTL:  24 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

func postJSON(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func quickHash(t *testing.T, plain string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// ----- login -----

func TestLoginSuccess(t *testing.T) {
	users, sessions, auditor := new(mockUsers), new(mockSessions), new(mockAudit)
	u := model.User{ID: 3, Username: "hana", PasswordHash: quickHash(t, "password123"), IsActive: true}
	users.On("GetByLogin", mock.Anything, "hana").Return(u, nil)
	users.On("RecordLoginSuccess", mock.Anything, uint64(3)).Return(nil)
	users.On("ResolveAuthUser", mock.Anything, uint64(3)).
		Return(&model.AuthUser{ID: 3, Username: "hana", Role: "viewer"}, nil)
	sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	auditor.On("FromRequest", mock.Anything, uint64(3), mock.Anything, mock.Anything).Return()

	h := NewAuthHandler(testConfig(), users, nil, sessions, auditor)
	c, rec := postJSON("/auth/login", `{"username":"hana","password":"password123"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := jsonBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotNil(t, body["tokens"])
	users.AssertCalled(t, "RecordLoginSuccess", mock.Anything, uint64(3))
}

func TestLoginUnknownUserUniformMessage(t *testing.T) {
	users := new(mockUsers)
	users.On("GetByLogin", mock.Anything, "ghost").Return(model.User{}, sql.ErrNoRows)

	h := NewAuthHandler(testConfig(), users, nil, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/login", `{"username":"ghost","password":"whatever1"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", jsonBody(t, rec)["message"])
}

func TestLoginWrongPasswordUniformMessage(t *testing.T) {
	users := new(mockUsers)
	u := model.User{ID: 3, Username: "hana", PasswordHash: quickHash(t, "password123"), FailedAttempts: 1}
	users.On("GetByLogin", mock.Anything, "hana").Return(u, nil)
	users.On("RecordLoginFailure", mock.Anything, uint64(3), 2, sql.NullTime{}).Return(nil)

	h := NewAuthHandler(testConfig(), users, nil, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/login", `{"username":"hana","password":"nope nope"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", jsonBody(t, rec)["message"])
	users.AssertExpectations(t)
}

func TestLoginFifthFailureLocks(t *testing.T) {
	users := new(mockUsers)
	u := model.User{ID: 3, Username: "hana", PasswordHash: quickHash(t, "password123"), FailedAttempts: 4}
	users.On("GetByLogin", mock.Anything, "hana").Return(u, nil)
	users.On("RecordLoginFailure", mock.Anything, uint64(3), 5,
		mock.MatchedBy(func(lu sql.NullTime) bool {
			return lu.Valid && time.Until(lu.Time) > 29*time.Minute
		})).Return(nil)

	h := NewAuthHandler(testConfig(), users, nil, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/login", `{"username":"hana","password":"nope nope"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	users.AssertExpectations(t)
}

func TestLoginLockedRejectsEvenCorrectPassword(t *testing.T) {
	users := new(mockUsers)
	u := model.User{
		ID: 3, Username: "hana",
		PasswordHash:   quickHash(t, "password123"),
		FailedAttempts: 5,
		LockedUntil:    sql.NullTime{Time: time.Now().UTC().Add(10 * time.Minute), Valid: true},
	}
	users.On("GetByLogin", mock.Anything, "hana").Return(u, nil)

	h := NewAuthHandler(testConfig(), users, nil, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/login", `{"username":"hana","password":"password123"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusLocked, rec.Code)
	users.AssertNotCalled(t, "RecordLoginSuccess", mock.Anything, mock.Anything)
}

func TestLoginAfterLockExpiryResetsCounter(t *testing.T) {
	users, sessions, auditor := new(mockUsers), new(mockSessions), new(mockAudit)
	u := model.User{
		ID: 3, Username: "hana",
		PasswordHash:   quickHash(t, "password123"),
		FailedAttempts: 5,
		LockedUntil:    sql.NullTime{Time: time.Now().UTC().Add(-time.Minute), Valid: true},
	}
	users.On("GetByLogin", mock.Anything, "hana").Return(u, nil)
	users.On("RecordLoginSuccess", mock.Anything, uint64(3)).Return(nil)
	users.On("ResolveAuthUser", mock.Anything, uint64(3)).
		Return(&model.AuthUser{ID: 3, Username: "hana"}, nil)
	sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	auditor.On("FromRequest", mock.Anything, uint64(3), mock.Anything, mock.Anything).Return()

	h := NewAuthHandler(testConfig(), users, nil, sessions, auditor)
	c, rec := postJSON("/auth/login", `{"username":"hana","password":"password123"}`)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertCalled(t, "RecordLoginSuccess", mock.Anything, uint64(3))
}

// ----- refresh -----

func TestRefreshInvalidToken(t *testing.T) {
	h := NewAuthHandler(testConfig(), new(mockUsers), nil, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/refresh", `{"refreshToken":"garbage"}`)
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshAccessTokenRejected(t *testing.T) {
	cfg := testConfig()
	pair, err := token.NewPair(cfg.JWTSecret, 3, cfg.AccessTTL, cfg.RefreshTTL)
	require.NoError(t, err)

	h := NewAuthHandler(cfg, new(mockUsers), nil, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/refresh", `{"refreshToken":"`+pair.AccessToken+`"}`)
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotationLostRace(t *testing.T) {
	cfg := testConfig()
	pair, err := token.NewPair(cfg.JWTSecret, 3, cfg.AccessTTL, cfg.RefreshTTL)
	require.NoError(t, err)

	sessions := new(mockSessions)
	sessions.On("Rotate", mock.Anything, token.HashRaw(pair.RefreshToken),
		mock.Anything, mock.Anything, mock.Anything).Return(sql.ErrNoRows)

	h := NewAuthHandler(cfg, new(mockUsers), nil, sessions, new(mockAudit))
	c, rec := postJSON("/auth/refresh", `{"refreshToken":"`+pair.RefreshToken+`"}`)
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshSuccessRotates(t *testing.T) {
	cfg := testConfig()
	pair, err := token.NewPair(cfg.JWTSecret, 3, cfg.AccessTTL, cfg.RefreshTTL)
	require.NoError(t, err)

	sessions := new(mockSessions)
	sessions.On("Rotate", mock.Anything, token.HashRaw(pair.RefreshToken),
		mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := NewAuthHandler(cfg, new(mockUsers), nil, sessions, new(mockAudit))
	c, rec := postJSON("/auth/refresh", `{"refreshToken":"`+pair.RefreshToken+`"}`)
	require.NoError(t, h.Refresh(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := jsonBody(t, rec)
	tokens, ok := body["tokens"].(map[string]any)
	require.True(t, ok)
	assert.NotEqual(t, pair.RefreshToken, tokens["refreshToken"], "refresh token must rotate")
	sessions.AssertExpectations(t)
}

// ----- logout -----

func TestLogoutIdempotent(t *testing.T) {
	sessions := new(mockSessions)
	sessions.On("Deactivate", mock.Anything, mock.Anything).Return(nil)

	h := NewAuthHandler(testConfig(), new(mockUsers), nil, sessions, new(mockAudit))
	c, rec := postJSON("/auth/logout", "")
	c.Request().Header.Set("Authorization", "Bearer some-stale-token")
	require.NoError(t, h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, jsonBody(t, rec)["success"])
}

// ----- register -----

func TestRegisterValidation(t *testing.T) {
	h := NewAuthHandler(testConfig(), new(mockUsers), new(mockRoles), new(mockSessions), new(mockAudit))
	tests := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","email":"a@b.com","password":"password1"}`},
		{"bad email", `{"username":"hana","email":"nope","password":"password1"}`},
		{"weak password", `{"username":"hana","email":"a@b.com","password":"letters"}`},
		{"digits only password", `{"username":"hana","email":"a@b.com","password":"12345678"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := postJSON("/auth/register", tt.body)
			require.NoError(t, h.Register(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	users, roles := new(mockUsers), new(mockRoles)
	roles.On("GetByName", mock.Anything, model.DefaultRoleName).
		Return(model.Role{ID: 1, Name: model.DefaultRoleName}, nil)
	users.On("Create", mock.Anything, "hana", "a@b.com", "hana", mock.Anything, uint64(1)).
		Return(uint64(0), repository.ErrDuplicate)

	h := NewAuthHandler(testConfig(), users, roles, new(mockSessions), new(mockAudit))
	c, rec := postJSON("/auth/register", `{"username":"hana","email":"a@b.com","password":"password1"}`)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
