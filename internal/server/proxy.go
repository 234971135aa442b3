package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const apiPrefix = "/api"

// newAPIProxy forwards /api/* to the REST API with the prefix stripped.
// The session cookie becomes a bearer token, and a 401 from the API
// clears the cookie so the next page load lands on the login page.
func (s *Server) newAPIProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.Out.URL.Path = strings.TrimPrefix(r.In.URL.Path, apiPrefix)
			r.Out.URL.RawPath = ""
			r.SetURL(target)
			r.SetXForwarded()

			if r.Out.Header.Get("Authorization") != "" {
				return
			}
			if cookie, err := r.In.Cookie(s.policy.CookieName); err == nil && cookie.Value != "" {
				r.Out.Header.Set("Authorization", "Bearer "+cookie.Value)
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.StatusCode == http.StatusUnauthorized {
				resp.Header.Add("Set-Cookie", s.expiredSessionCookie().String())
			}
			return nil
		},
		ErrorHandler: s.proxyErrorHandler("api"),
	}
}

// newUIProxy forwards page requests to the dashboard UI unchanged
func (s *Server) newUIProxy(target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(target)
			r.SetXForwarded()
			r.Out.Host = r.In.Host
		},
		ErrorHandler: s.proxyErrorHandler("ui"),
	}
}

func (s *Server) proxyErrorHandler(upstream string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error().
			Err(err).
			Str("upstream", upstream).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Upstream request failed")

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"Upstream service unavailable"}`))
	}
}

func (s *Server) proxyAPI(c *gin.Context) {
	s.apiProxy.ServeHTTP(c.Writer, c.Request)
}

// serveUI handles every route the router does not know. Without a UI
// upstream there is nothing to serve.
func (s *Server) serveUI(c *gin.Context) {
	if s.uiProxy == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	s.uiProxy.ServeHTTP(c.Writer, c.Request)
}
