package gate

// Role is the coarse permission class carried in the session token
type Role int

const (
	// RoleNone is the absent role. A decoded token never carries it.
	RoleNone Role = iota
	RoleAdmin
	RoleUser
)

// ParseRole maps the wire value of the role claim onto a Role.
// Matching is exact: "admin" is not "ADMIN".
func ParseRole(value string) (Role, bool) {
	switch value {
	case "ADMIN":
		return RoleAdmin, true
	case "USER":
		return RoleUser, true
	default:
		return RoleNone, false
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleUser:
		return "USER"
	default:
		return "NONE"
	}
}
