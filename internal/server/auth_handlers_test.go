package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthAPI mimics the REST API's /auth endpoints
type fakeAuthAPI struct {
	loginStatus  int
	loginToken   string
	loginCalls   int
	logoutStatus int
	logoutBearer string
}

func (f *fakeAuthAPI) start(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/auth/login":
			f.loginCalls++
			if f.loginStatus != http.StatusOK {
				w.WriteHeader(f.loginStatus)
				w.Write([]byte(`{"success":false,"message":"rejected"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data": map[string]any{
					"token": f.loginToken,
					"user": map[string]any{
						"id":       "ckuser1",
						"username": "budi_01",
						"name":     "Budi",
						"role":     "USER",
					},
				},
			})

		case "/auth/logout":
			f.logoutBearer = r.Header.Get("Authorization")
			w.WriteHeader(f.logoutStatus)
			w.Write([]byte(`{"success":true}`))

		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func jsonLogin(username, password string) *http.Request {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLogin_JSON(t *testing.T) {
	token := mintToken(t, "ADMIN", testNow.Add(24*time.Hour))
	api := &fakeAuthAPI{loginStatus: http.StatusOK, loginToken: token}
	srv := newTestServer(t, api.start(t).URL, "")

	rec := do(srv.Handler(), jsonLogin("budi_01", "secret"), "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Redirect string     `json:"redirect"`
		User     UserDetail `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/admin/dashboard", body.Redirect)
	assert.Equal(t, "ckuser1", body.User.ID)
	// The role comes from the token, not the user payload
	assert.Equal(t, "ADMIN", body.User.Role)

	cookie := findCookie(rec, "token")
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.False(t, cookie.Secure)
}

func TestLogin_Form(t *testing.T) {
	token := mintToken(t, "USER", testNow.Add(time.Hour))
	api := &fakeAuthAPI{loginStatus: http.StatusOK, loginToken: token}
	srv := newTestServer(t, api.start(t).URL, "")

	form := url.Values{"username": {"budi_01"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(srv.Handler(), req, "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/users/dashboard", rec.Header().Get("Location"))
	require.NotNil(t, findCookie(rec, "token"))
}

func TestLogin_SessionCookieFollowsConfig(t *testing.T) {
	token := mintToken(t, "USER", testNow.Add(time.Hour))
	api := &fakeAuthAPI{loginStatus: http.StatusOK, loginToken: token}
	srv := newTestServer(t, api.start(t).URL, "")
	srv.config.Session.Secure = true
	srv.config.Session.HTTPOnly = true
	srv.config.Session.MaxAge = time.Hour

	rec := do(srv.Handler(), jsonLogin("budi_01", "secret"), "")

	cookie := findCookie(rec, "token")
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestLogin_Validation(t *testing.T) {
	api := &fakeAuthAPI{loginStatus: http.StatusOK}
	srv := newTestServer(t, api.start(t).URL, "")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"missing username", "", "secret"},
		{"username too short", "ab", "secret"},
		{"username too long", strings.Repeat("a", 21), "secret"},
		{"username with symbols", "budi-01!", "secret"},
		{"username with space", "budi 01", "secret"},
		{"missing password", "budi_01", ""},
		{"password too short", "budi_01", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv.Handler(), jsonLogin(tt.username, tt.password), "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Zero(t, api.loginCalls, "invalid input must not reach the API")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name           string
		api            *fakeAuthAPI
		expectedStatus int
	}{
		{
			name:           "bad credentials",
			api:            &fakeAuthAPI{loginStatus: http.StatusUnauthorized},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "api error",
			api:            &fakeAuthAPI{loginStatus: http.StatusInternalServerError},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "unknown role in token",
			api:            &fakeAuthAPI{loginStatus: http.StatusOK, loginToken: mintToken(t, "AUDITOR", testNow.Add(time.Hour))},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "already expired token",
			api:            &fakeAuthAPI{loginStatus: http.StatusOK, loginToken: mintToken(t, "ADMIN", testNow.Add(-time.Minute))},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "undecodable token",
			api:            &fakeAuthAPI{loginStatus: http.StatusOK, loginToken: "opaque-session-id"},
			expectedStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.api.start(t).URL, "")

			rec := do(srv.Handler(), jsonLogin("budi_01", "secret"), "")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Nil(t, findCookie(rec, "token"), "no session cookie on failure")
		})
	}
}

func TestLogout(t *testing.T) {
	token := mintToken(t, "USER", testNow.Add(time.Hour))

	t.Run("revokes and clears", func(t *testing.T) {
		api := &fakeAuthAPI{logoutStatus: http.StatusOK}
		srv := newTestServer(t, api.start(t).URL, "")

		rec := do(srv.Handler(), httptest.NewRequest(http.MethodPost, "/auth/logout", nil), token)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"redirect":"/login"}`, rec.Body.String())
		assert.Equal(t, "Bearer "+token, api.logoutBearer)

		cookie := findCookie(rec, "token")
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.Equal(t, -1, cookie.MaxAge)
	})

	t.Run("clears even when the api fails", func(t *testing.T) {
		api := &fakeAuthAPI{logoutStatus: http.StatusInternalServerError}
		srv := newTestServer(t, api.start(t).URL, "")

		rec := do(srv.Handler(), httptest.NewRequest(http.MethodPost, "/auth/logout", nil), token)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, findCookie(rec, "token"))
	})

	t.Run("without a session skips the api", func(t *testing.T) {
		api := &fakeAuthAPI{logoutStatus: http.StatusOK}
		srv := newTestServer(t, api.start(t).URL, "")

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", strings.NewReader(""))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := do(srv.Handler(), req, "")

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		assert.Empty(t, api.logoutBearer)
	})
}
