package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/surveytrack/surveytrack/internal/gate"
)

const (
	sessionKey      = "session"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

func setSession(c *gin.Context, session *gate.Session) {
	c.Set(sessionKey, session)
}

// GetSession returns the authenticated session the access gate attached
// to the request. Unauthenticated requests have none.
func GetSession(c *gin.Context) (*gate.Session, bool) {
	value, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	session, ok := value.(*gate.Session)
	return session, ok
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// AccessGateMiddleware runs the access gate on every page request and
// turns redirect decisions into 307 responses.
func AccessGateMiddleware(policy *gate.Policy, now func() time.Time, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !policy.Applies(path) {
			c.Next()
			return
		}

		// A missing or undecodable cookie reads as the empty token
		raw, _ := c.Cookie(policy.CookieName)
		session := gate.Resolve(raw, now())

		decision := policy.Decide(path, session)
		if decision.IsRedirect() {
			event := log.Debug().
				Str("path", path).
				Str("location", decision.Location).
				Str("state", session.State.String())
			if session.Err != nil && !errors.Is(session.Err, gate.ErrMissingToken) {
				event = event.AnErr("reason", session.Err)
			}
			event.Msg("Access gate redirect")

			c.Redirect(http.StatusTemporaryRedirect, decision.Location)
			c.Abort()
			return
		}

		if session.Authenticated() {
			setSession(c, &session)
		}

		c.Next()
	}
}

// requestIDMiddleware tags every request with a ULID unless the caller
// already sent one. The ID is forwarded to upstreams.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = ulid.Make().String()
			c.Request.Header.Set(requestIDHeader, requestID)
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		event := s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(requestIDKey))

		if session, ok := GetSession(c); ok {
			event = event.Str("role", session.Role().String())
		}

		event.Msg("HTTP request")
	}
}
