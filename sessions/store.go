package sessions

import (
	"sync"

	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
	"github.com/rs/zerolog/log"
)

// Listener observes session changes. It runs after the store lock is released.
type Listener func(s Session, reason ChangeReason)

// Store holds the current session. It is safe for concurrent use.
type Store struct {
	lock      sync.RWMutex
	session   Session
	listeners []Listener
}

func NewStore() *Store {
	return &Store{}
}

// OnChange registers a listener, e.g. to tell the operator they must sign in again.
func (s *Store) OnChange(l Listener) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.listeners = append(s.listeners, l)
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() Session {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.session.clone()
}

func (s *Store) BeginLogin() {
	s.update(ReasonLoginStarted, func(sess *Session) {
		sess.PendingLogin = true
		sess.LastError = ""
	})
}

func (s *Store) LoginSucceeded(user *UserInfo) {
	s.update(ReasonLoggedIn, func(sess *Session) {
		sess.IsAuthenticated = true
		sess.User = user
		sess.PendingLogin = false
		sess.LastError = ""
	})
}

func (s *Store) LoginFailed(err error) {
	s.update(ReasonLoginFailed, func(sess *Session) {
		sess.IsAuthenticated = false
		sess.User = nil
		sess.PendingLogin = false
		if err != nil {
			sess.LastError = err.Error()
		}
	})
}

// SetUser replaces the current user. A nil user signs the session out.
func (s *Store) SetUser(user *UserInfo) {
	if user == nil {
		s.SignOut()
		return
	}
	s.update(ReasonUserUpdated, func(sess *Session) {
		sess.User = user
		sess.IsAuthenticated = true
	})
}

// SignOut is the forced sign-out applied after a terminal authorization failure.
func (s *Store) SignOut() {
	s.update(ReasonSignedOut, func(sess *Session) {
		sess.IsAuthenticated = false
		sess.User = nil
		sess.PendingLogin = false
		sess.LastError = apperrors.ErrAuthorizationRequired.Error()
	})
}

// Logout is the explicit, operator-initiated sign-out.
func (s *Store) Logout() {
	s.update(ReasonLoggedOut, func(sess *Session) {
		*sess = Session{}
	})
}

func (s *Store) update(reason ChangeReason, mutate func(*Session)) {
	s.lock.Lock()
	mutate(&s.session)
	snapshot := s.session.clone()
	listeners := append([]Listener(nil), s.listeners...)
	s.lock.Unlock()

	log.Debug().Str("reason", string(reason)).Bool("authenticated", snapshot.IsAuthenticated).Msg("session changed")
	for _, l := range listeners {
		l(snapshot, reason)
	}
}
