package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/DigitalRoom/internal/app/orch"
	"github.com/dkeye/DigitalRoom/internal/config"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	registerErr error
	loginErr    error
	healthErr   error
}

func (fakeBackend) Connect(core.SessionID, core.SignalConnection, context.CancelFunc) {}
func (fakeBackend) Disconnect(core.SessionID)                                        {}
func (fakeBackend) Dispatch(core.SessionID, core.Request)                            {}

func (b fakeBackend) Register(_ context.Context, creds core.Credentials) (*domain.Account, error) {
	if b.registerErr != nil {
		return nil, b.registerErr
	}
	return &domain.Account{ID: "id", Username: creds.Username}, nil
}

func (b fakeBackend) Login(_ context.Context, creds core.Credentials) (string, *domain.Account, error) {
	if b.loginErr != nil {
		return "", nil, b.loginErr
	}
	return "tok", &domain.Account{ID: "id", Username: creds.Username}, nil
}

func (b fakeBackend) Health(context.Context) (orch.Health, error) {
	return orch.Health{Status: "ok", Users: 2}, b.healthErr
}

func newRouter(b Backend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", Secret: "s", StaticPath: ".", JWT: config.JWT{TTL: time.Hour}}
	return SetupRouter(context.Background(), cfg, b, http.NotFoundHandler())
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(fakeBackend{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"users":2`)

	rec = httptest.NewRecorder()
	newRouter(fakeBackend{healthErr: orch.ErrStopped}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	rec := post(newRouter(fakeBackend{}), "/api/auth/login", core.Credentials{Username: "alice", Password: "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res core.AckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "alice", res.User.Name)

	var names []string
	for _, c := range rec.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "RoomSessions")
	assert.Contains(t, names, "ct")
}

func TestAuthErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		b    fakeBackend
		path string
		code int
	}{
		{"bad credentials", fakeBackend{loginErr: orch.ErrInvalidCredentials}, "/api/auth/login", http.StatusUnauthorized},
		{"taken", fakeBackend{registerErr: orch.ErrUsernameTaken}, "/api/auth/register", http.StatusConflict},
		{"invalid name", fakeBackend{registerErr: domain.ErrUsernameInvalid}, "/api/auth/register", http.StatusBadRequest},
		{"store down", fakeBackend{registerErr: orch.ErrAccountsOffline}, "/api/auth/register", http.StatusServiceUnavailable},
		{"unexpected", fakeBackend{registerErr: errors.New("disk")}, "/api/auth/register", http.StatusInternalServerError},
		{"created", fakeBackend{}, "/api/auth/register", http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(newRouter(tt.b), tt.path, core.Credentials{Username: "alice", Password: "Passw0rdX"})
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRegisterRejectsBadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newRouter(fakeBackend{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
