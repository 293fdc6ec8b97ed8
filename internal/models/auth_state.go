package models

import "fmt"

// AuthState is the sign-in state of a client session
type AuthState string

const (
	AuthAnonymous      AuthState = "anonymous"      // No user
	AuthAuthenticating AuthState = "authenticating" // Credentials sent, waiting for the identity provider
	AuthAuthenticated  AuthState = "authenticated"  // Signed in, user data loaded
)

// AuthEvent drives AuthState transitions
type AuthEvent string

const (
	EventSignInStarted   AuthEvent = "sign_in_started"
	EventSignInSucceeded AuthEvent = "sign_in_succeeded"
	EventSignInFailed    AuthEvent = "sign_in_failed"
	EventSignedOut       AuthEvent = "signed_out"
)

var authTransitions = map[AuthState]map[AuthEvent]AuthState{
	AuthAnonymous: {
		EventSignInStarted: AuthAuthenticating,
	},
	AuthAuthenticating: {
		EventSignInSucceeded: AuthAuthenticated,
		EventSignInFailed:    AuthAnonymous,
	},
	AuthAuthenticated: {
		EventSignedOut: AuthAnonymous,
	},
}

// Next returns the state reached from s on event
func (s AuthState) Next(event AuthEvent) (AuthState, error) {
	if next, ok := authTransitions[s][event]; ok {
		return next, nil
	}
	return s, fmt.Errorf("invalid auth transition: %s on %s", event, s)
}
