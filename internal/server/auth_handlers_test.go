package server

import (
	"net/http"
	"testing"

	"charityfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid",
			body:       map[string]string{"email": "new@example.org", "password": "secret1"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate email",
			body:       map[string]string{"email": "UMA@example.org", "password": "secret1"},
			wantStatus: http.StatusConflict,
			wantCode:   models.CodeConflict,
		},
		{
			name:       "short password",
			body:       map[string]string{"email": "short@example.org", "password": "12345"},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.CodeValidation,
		},
		{
			name:       "bad email",
			body:       map[string]string{"email": "not-an-email", "password": "secret1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.CodeValidation,
		},
		{
			name:       "missing fields",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, resp))
				return
			}
			var session models.Session
			decode(t, resp, &session)
			assert.NotEmpty(t, session.Token)
			assert.Equal(t, models.RoleUser, session.User.Role)
		})
	}
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "uma@example.org", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthorized, errorCode(t, resp))

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "uma@example.org", "password": "reader-pass"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session models.Session
	decode(t, resp, &session)
	require.NotEmpty(t, session.Token)

	var current struct {
		Session    *models.Session `json:"session"`
		IsOperator bool            `json:"is_operator"`
	}
	resp = env.do(t, http.MethodGet, "/api/auth/session", session.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &current)
	require.NotNil(t, current.Session)
	assert.Equal(t, "uma@example.org", current.Session.User.Email)
	assert.False(t, current.IsOperator)

	resp = env.do(t, http.MethodGet, "/api/auth/session", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	current.Session = &models.Session{}
	decode(t, resp, &current)
	assert.Nil(t, current.Session)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/logout", env.readerToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/posts/liked", env.readerToken, map[string]any{"post_ids": []uint{1}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var current struct {
		Session *models.Session `json:"session"`
	}
	resp = env.do(t, http.MethodGet, "/api/auth/session", env.readerToken, nil)
	decode(t, resp, &current)
	assert.Nil(t, current.Session)

	resp = env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminSetupOnlyOnce(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/admin-setup", "",
		map[string]string{"email": "second@example.org", "password": "second-pass"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, errorCode(t, resp))
}

func TestFeatureFlags(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/admin/flags", env.readerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/admin/flags/operator_any_session", env.adminToken, map[string]string{"value": "on"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// readers now pass the operator gate, but still cannot change flags
	resp = env.do(t, http.MethodGet, "/api/admin/flags", env.readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var flags struct {
		Evaluated map[string]bool `json:"evaluated"`
	}
	decode(t, resp, &flags)
	assert.True(t, flags.Evaluated["operator_any_session"])

	resp = env.do(t, http.MethodPatch, "/api/admin/flags/operator_any_session", env.readerToken, map[string]string{"value": "off"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
