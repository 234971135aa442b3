package gate

import "time"

// State is the authentication state of a single request
type State int

const (
	StateUnauthenticated State = iota
	StateAdmin
	StateUser
)

func (s State) String() string {
	switch s {
	case StateAdmin:
		return "admin"
	case StateUser:
		return "user"
	default:
		return "unauthenticated"
	}
}

// Session is the per-request view of the token cookie.
// Err explains why a session is unauthenticated and is nil otherwise.
type Session struct {
	State  State
	Claims Claims
	Err    error
}

// Authenticated reports whether the session carries a valid, unexpired token
func (s Session) Authenticated() bool {
	return s.State != StateUnauthenticated
}

// Role returns RoleNone for unauthenticated sessions
func (s Session) Role() Role {
	switch s.State {
	case StateAdmin:
		return RoleAdmin
	case StateUser:
		return RoleUser
	default:
		return RoleNone
	}
}

// Resolve decodes raw and checks it against now. A token is valid only
// while its expiry is strictly after now.
func Resolve(raw string, now time.Time) Session {
	claims, err := Decode(raw)
	if err != nil {
		return Session{State: StateUnauthenticated, Err: err}
	}

	if !claims.ExpiresAt.After(now) {
		return Session{State: StateUnauthenticated, Err: ErrExpiredToken}
	}

	state := StateUser
	if claims.Role == RoleAdmin {
		state = StateAdmin
	}

	return Session{State: state, Claims: claims}
}
