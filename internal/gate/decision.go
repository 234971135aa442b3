package gate

// Decision is the outcome of one gate evaluation: pass through, or
// redirect to Location.
type Decision struct {
	Location string
}

func Allow() Decision {
	return Decision{}
}

func RedirectTo(location string) Decision {
	return Decision{Location: location}
}

// IsRedirect reports whether the request must be sent elsewhere
func (d Decision) IsRedirect() bool {
	return d.Location != ""
}

func (d Decision) String() string {
	if d.IsRedirect() {
		return "redirect:" + d.Location
	}
	return "allow"
}
