package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/surveytrack/surveytrack/internal/config"
)

// testNow is the pinned clock every server test runs against
var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// unusedUpstream is never dialled by tests that don't exercise forwarding
const unusedUpstream = "http://127.0.0.1:1"

func init() {
	gin.SetMode(gin.TestMode)
}

func mintToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "ckuser1",
		"username": "budi",
		"role":     role,
		"exp":      exp.Unix(),
	}).SignedString([]byte("issuer-secret"))
	require.NoError(t, err)
	return token
}

func testConfig(apiURL, uiURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:     ":0",
			Environment: "development",
		},
		Upstream: config.UpstreamConfig{
			APIURL:      apiURL,
			APITimeout:  5 * time.Second,
			FrontendURL: uiURL,
		},
		Session: config.SessionConfig{
			MaxAge: 7 * 24 * time.Hour,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "json",
		},
	}
}

func newTestServer(t *testing.T, apiURL, uiURL string) *Server {
	t.Helper()

	srv, err := New(testConfig(apiURL, uiURL), zerolog.Nop(), "test")
	require.NoError(t, err)
	srv.now = func() time.Time { return testNow }
	return srv
}

// do sends a request through handler over a real connection, attaching the
// session cookie when token is non-empty. The reverse proxies need a writer
// that implements http.CloseNotifier, which a bare ResponseRecorder does not,
// so the response is served by httptest.Server and copied into a recorder.
func do(handler http.Handler, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}

	ts := httptest.NewServer(handler)
	defer ts.Close()

	target, err := url.Parse(ts.URL)
	if err != nil {
		panic(err)
	}
	req.RequestURI = ""
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	req.Host = target.Host

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	rec := httptest.NewRecorder()
	for key, values := range resp.Header {
		rec.Header()[key] = values
	}
	rec.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(rec, resp.Body); err != nil {
		panic(err)
	}
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
