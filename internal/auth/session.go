// Package auth tracks the signed-in state of the active session and fans the
// transitions out to subscribers. The OAuth dance itself happens elsewhere;
// this is only the boolean signal the rest of the service gates on.
package auth

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Session holds the current authentication state. The zero state is signed
// out.
type Session struct {
	mu        sync.RWMutex
	signedIn  bool
	userID    string
	observers []func(signedIn bool)
}

// NewSession creates a signed-out session.
func NewSession() *Session {
	return &Session{}
}

// SignedIn reports whether the session is authenticated.
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

// UserID returns the authenticated user's platform ID, empty when signed out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SignIn marks the session authenticated for the given user and notifies
// observers.
func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	s.signedIn = true
	s.userID = userID
	observers := append(([]func(bool))(nil), s.observers...)
	s.mu.Unlock()

	logrus.Infof("Session signed in for user %s", userID)
	for _, observe := range observers {
		observe(true)
	}
}

// SignOut marks the session unauthenticated and notifies observers.
func (s *Session) SignOut() {
	s.mu.Lock()
	s.signedIn = false
	s.userID = ""
	observers := append(([]func(bool))(nil), s.observers...)
	s.mu.Unlock()

	logrus.Info("Session signed out")
	for _, observe := range observers {
		observe(false)
	}
}

// Observe registers a callback invoked on every state transition. Callbacks
// run synchronously on the goroutine driving the transition.
func (s *Session) Observe(observe func(signedIn bool)) {
	s.mu.Lock()
	s.observers = append(s.observers, observe)
	s.mu.Unlock()
}
