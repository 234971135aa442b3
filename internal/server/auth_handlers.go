package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/surveytrack/surveytrack/internal/apiclient"
	"github.com/surveytrack/surveytrack/internal/gate"
)

// LoginRequest represents a login request, posted as JSON or as a form
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required,min=3,max=20,username"`
	Password string `json:"password" form:"password" binding:"required,min=3,max=100"`
}

// UserDetail represents user information returned after login
type UserDetail struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// login checks credentials against the REST API and stores the returned
// token in the session cookie.
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.api.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			respondWithError(c, s.logger, http.StatusUnauthorized, err, "Invalid username or password")
			return
		}
		s.logger.Error().Err(err).Str("username", req.Username).Msg("Login request to API failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Authentication service unavailable"})
		return
	}

	// Refuse tokens the gate would bounce straight back to the login page
	session := gate.Resolve(resp.Token, s.now())
	if !session.Authenticated() {
		if errors.Is(session.Err, gate.ErrUnknownRole) {
			respondWithError(c, s.logger, http.StatusForbidden, session.Err, "Account role is not allowed to sign in")
			return
		}
		s.logger.Error().Err(session.Err).Str("username", req.Username).Msg("API issued an unusable token")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Authentication service returned an invalid token"})
		return
	}

	home, _ := s.policy.HomeFor(session.Role())
	s.setSessionCookie(c, resp.Token)

	s.logger.Info().
		Str("user_id", resp.User.ID).
		Str("username", resp.User.Username).
		Str("role", session.Role().String()).
		Msg("User logged in")

	s.respondRedirect(c, home, gin.H{
		"user": UserDetail{
			ID:       resp.User.ID,
			Username: resp.User.Username,
			Name:     resp.User.Name,
			Role:     session.Role().String(),
		},
	})
}

// logout revokes the token upstream when possible and always clears the
// session cookie.
func (s *Server) logout(c *gin.Context) {
	if raw, err := c.Cookie(s.policy.CookieName); err == nil && raw != "" {
		if err := s.api.Logout(c.Request.Context(), raw); err != nil {
			s.logger.Warn().Err(err).Msg("API logout failed, clearing session anyway")
		}
	}

	s.clearSessionCookie(c)

	if session, ok := GetSession(c); ok {
		s.logger.Info().
			Str("user_id", session.Claims.Subject).
			Str("role", session.Role().String()).
			Msg("User logged out")
	}

	s.respondRedirect(c, s.policy.LoginPath, nil)
}

// respondRedirect sends browsers posting HTML forms to location with a
// 303; script callers get the location in a JSON body.
func (s *Server) respondRedirect(c *gin.Context, location string, extra gin.H) {
	if c.ContentType() == binding.MIMEPOSTForm {
		c.Redirect(http.StatusSeeOther, location)
		return
	}

	body := gin.H{"redirect": location}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		s.policy.CookieName,
		token,
		int(s.config.Session.MaxAge.Seconds()),
		"/",
		"",
		s.config.Session.Secure,
		s.config.Session.HTTPOnly,
	)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, s.expiredSessionCookie())
}

func (s *Server) expiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.policy.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   s.config.Session.Secure,
		HttpOnly: s.config.Session.HTTPOnly,
		SameSite: http.SameSiteLaxMode,
	}
}
