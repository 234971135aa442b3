package gate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the route table the gate decides against.
// A Policy is read-only once built and safe for concurrent use.
type Policy struct {
	CookieName  string   `yaml:"cookie_name"`
	LoginPath   string   `yaml:"login_path"`
	RootPath    string   `yaml:"root_path"`
	AdminPrefix string   `yaml:"admin_prefix"`
	UserPrefix  string   `yaml:"user_prefix"`
	AdminHome   string   `yaml:"admin_home"`
	UserHome    string   `yaml:"user_home"`
	Bypass      []string `yaml:"bypass"`
}

// DefaultPolicy returns the dashboard's route table
func DefaultPolicy() *Policy {
	return &Policy{
		CookieName:  "token",
		LoginPath:   "/login",
		RootPath:    "/",
		AdminPrefix: "/admin",
		UserPrefix:  "/users",
		AdminHome:   "/admin/dashboard",
		UserHome:    "/users/dashboard",
		Bypass:      []string{"api", "_next/static", "_next/image", "favicon.ico", "public"},
	}
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep
// their default values.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks that every route in the policy is an absolute path
func (p *Policy) Validate() error {
	if p.CookieName == "" {
		return fmt.Errorf("invalid policy: cookie_name is empty")
	}

	paths := map[string]string{
		"login_path":   p.LoginPath,
		"root_path":    p.RootPath,
		"admin_prefix": p.AdminPrefix,
		"user_prefix":  p.UserPrefix,
		"admin_home":   p.AdminHome,
		"user_home":    p.UserHome,
	}
	for key, value := range paths {
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("invalid policy: %s must start with /, got %q", key, value)
		}
	}

	for i, entry := range p.Bypass {
		if strings.TrimPrefix(entry, "/") == "" {
			return fmt.Errorf("invalid policy: bypass[%d] is empty", i)
		}
	}

	return nil
}

// HomeFor returns the landing page of a role
func (p *Policy) HomeFor(role Role) (string, bool) {
	switch role {
	case RoleAdmin:
		return p.AdminHome, true
	case RoleUser:
		return p.UserHome, true
	default:
		return "", false
	}
}

// Applies reports whether the gate runs for path at all. Paths whose first
// segment starts with a bypass entry (API calls, build assets, the favicon,
// public files) skip it.
func (p *Policy) Applies(path string) bool {
	rest := strings.TrimPrefix(path, "/")
	for _, entry := range p.Bypass {
		if strings.HasPrefix(rest, strings.TrimPrefix(entry, "/")) {
			return false
		}
	}
	return true
}

// Evaluate resolves the raw cookie value and decides the route
func (p *Policy) Evaluate(path, raw string, now time.Time) Decision {
	return p.Decide(path, Resolve(raw, now))
}

// Decide routes a request. The login route is checked before the
// protected prefixes, and the root route only after both.
func (p *Policy) Decide(path string, s Session) Decision {
	if path == p.LoginPath {
		if home, ok := p.homeOf(s); ok {
			return RedirectTo(home)
		}
		return Allow()
	}

	onAdmin := strings.HasPrefix(path, p.AdminPrefix)
	onUser := strings.HasPrefix(path, p.UserPrefix)
	if onAdmin || onUser {
		switch s.Role() {
		case RoleAdmin:
			if onUser {
				return RedirectTo(p.AdminHome)
			}
		case RoleUser:
			if onAdmin {
				return RedirectTo(p.UserHome)
			}
		default:
			return RedirectTo(p.LoginPath)
		}
		return Allow()
	}

	if path == p.RootPath {
		if home, ok := p.homeOf(s); ok {
			return RedirectTo(home)
		}
		return RedirectTo(p.LoginPath)
	}

	return Allow()
}

func (p *Policy) homeOf(s Session) (string, bool) {
	if !s.Authenticated() {
		return "", false
	}
	return p.HomeFor(s.Role())
}
