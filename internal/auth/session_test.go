package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStartsSignedOut(t *testing.T) {
	session := NewSession()
	assert.False(t, session.SignedIn())
	assert.Empty(t, session.UserID())
}

func TestSignInAndOut(t *testing.T) {
	session := NewSession()

	session.SignIn("user-42")
	assert.True(t, session.SignedIn())
	assert.Equal(t, "user-42", session.UserID())

	session.SignOut()
	assert.False(t, session.SignedIn())
	assert.Empty(t, session.UserID())
}

func TestObserversSeeEveryTransition(t *testing.T) {
	session := NewSession()
	var transitions []bool
	session.Observe(func(signedIn bool) {
		transitions = append(transitions, signedIn)
	})

	session.SignIn("user-42")
	session.SignOut()
	session.SignIn("user-43")

	assert.Equal(t, []bool{true, false, true}, transitions)
}
