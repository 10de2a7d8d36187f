package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foxshrine/shrine-api/internal/model"
	"github.com/foxshrine/shrine-api/internal/token"
)

const testSecret = "mw-test-secret"

type mockResolver struct{ mock.Mock }

func (m *mockResolver) ResolveAuthUser(ctx context.Context, id uint64) (*model.AuthUser, error) {
	args := m.Called(ctx, id)
	au, _ := args.Get(0).(*model.AuthUser)
	return au, args.Error(1)
}

var _ UserResolver = (*mockResolver)(nil)

type errBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	h := mw(func(c echo.Context) error {
		reached = true
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	})
	require.NoError(t, h(c))
	return rec, reached
}

func accessToken(t *testing.T, userID uint64, ttl time.Duration) string {
	t.Helper()
	pair, err := token.NewPair(testSecret, userID, ttl, ttl)
	require.NoError(t, err)
	return pair.AccessToken
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errBody {
	t.Helper()
	var body errBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthenticateNoToken(t *testing.T) {
	resolver := new(mockResolver)
	rec, reached := doRequest(t, Authenticate(testSecret, resolver), "")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeNoToken, decodeErr(t, rec).Code)
	resolver.AssertNotCalled(t, "ResolveAuthUser", mock.Anything, mock.Anything)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	resolver := new(mockResolver)
	rec, reached := doRequest(t, Authenticate(testSecret, resolver),
		"Bearer "+accessToken(t, 1, -time.Minute))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeTokenExpired, decodeErr(t, rec).Code)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	resolver := new(mockResolver)
	rec, reached := doRequest(t, Authenticate(testSecret, resolver), "Bearer garbage")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeInvalidToken, decodeErr(t, rec).Code)
}

func TestAuthenticateUserNotFound(t *testing.T) {
	resolver := new(mockResolver)
	resolver.On("ResolveAuthUser", mock.Anything, uint64(7)).Return(nil, sql.ErrNoRows)

	rec, reached := doRequest(t, Authenticate(testSecret, resolver),
		"Bearer "+accessToken(t, 7, time.Hour))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUserNotFound, decodeErr(t, rec).Code)
}

func TestAuthenticateResolverFailure(t *testing.T) {
	resolver := new(mockResolver)
	resolver.On("ResolveAuthUser", mock.Anything, uint64(7)).Return(nil, errors.New("db down"))

	rec, reached := doRequest(t, Authenticate(testSecret, resolver),
		"Bearer "+accessToken(t, 7, time.Hour))

	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeAuthError, decodeErr(t, rec).Code)
}

func TestAuthenticateSuccess(t *testing.T) {
	au := &model.AuthUser{ID: 7, Username: "hana", Permissions: []string{model.PermConfigWrite}}
	resolver := new(mockResolver)
	resolver.On("ResolveAuthUser", mock.Anything, uint64(7)).Return(au, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, 7, time.Hour))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Authenticate(testSecret, resolver)(func(c echo.Context) error {
		assert.Equal(t, au, CurrentUser(c))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalAuthMissingToken(t *testing.T) {
	resolver := new(mockResolver)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := OptionalAuth(testSecret, resolver)(func(c echo.Context) error {
		assert.Nil(t, CurrentUser(c))
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	resolver.AssertNotCalled(t, "ResolveAuthUser", mock.Anything, mock.Anything)
}

func TestOptionalAuthInvalidTokenStillRejected(t *testing.T) {
	resolver := new(mockResolver)
	rec, reached := doRequest(t, OptionalAuth(testSecret, resolver), "Bearer junk")

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeInvalidToken, decodeErr(t, rec).Code)
}

func TestRequirePermissionDenied(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(AuthUserKey, &model.AuthUser{ID: 1, Permissions: []string{"users.read"}})

	reached := false
	h := RequirePermission(model.PermConfigWrite)(func(c echo.Context) error {
		reached = true
		return nil
	})
	require.NoError(t, h(c))

	assert.False(t, reached, "handler (and therefore the store) must not run")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Code        string   `json:"code"`
		Required    string   `json:"required"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeInsufficient, body.Code)
	assert.Equal(t, model.PermConfigWrite, body.Required)
	assert.Equal(t, []string{"users.read"}, body.Permissions)
}

func TestRequirePermissionGranted(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(AuthUserKey, &model.AuthUser{ID: 1, Permissions: []string{model.PermConfigWrite}})

	h := RequirePermission(model.PermConfigWrite)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
