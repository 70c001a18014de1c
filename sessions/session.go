package sessions

// UserInfo is the signed-in operator as reported by the identity claims.
type UserInfo struct {
	Subject  string   `json:"sub" yaml:"sub"`
	Email    string   `json:"email,omitempty" yaml:"email,omitempty"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Username string   `json:"preferred_username,omitempty" yaml:"username,omitempty"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Session is the client's authentication state. It starts logged out and
// lives as long as the process; nothing is persisted.
type Session struct {
	IsAuthenticated bool      `json:"is_authenticated" yaml:"is_authenticated"`
	User            *UserInfo `json:"user" yaml:"user"`
	PendingLogin    bool      `json:"pending_login" yaml:"pending_login"`
	LastError       string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// ChangeReason says why the session changed
type ChangeReason string

const (
	ReasonLoginStarted ChangeReason = "login_started"
	ReasonLoggedIn     ChangeReason = "logged_in"
	ReasonLoginFailed  ChangeReason = "login_failed"
	ReasonUserUpdated  ChangeReason = "user_updated"
	ReasonSignedOut    ChangeReason = "signed_out" // forced, after a terminal authorization failure
	ReasonLoggedOut    ChangeReason = "logged_out"
)

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		u.Roles = append([]string(nil), s.User.Roles...)
		s.User = &u
	}
	return s
}
