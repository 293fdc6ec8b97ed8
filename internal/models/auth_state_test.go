package models

import "testing"

func TestAuthStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    AuthState
		event   AuthEvent
		want    AuthState
		wantErr bool
	}{
		{"start sign in", AuthAnonymous, EventSignInStarted, AuthAuthenticating, false},
		{"sign in ok", AuthAuthenticating, EventSignInSucceeded, AuthAuthenticated, false},
		{"sign in failed", AuthAuthenticating, EventSignInFailed, AuthAnonymous, false},
		{"sign out", AuthAuthenticated, EventSignedOut, AuthAnonymous, false},
		{"sign out while anonymous", AuthAnonymous, EventSignedOut, AuthAnonymous, true},
		{"double sign in", AuthAuthenticated, EventSignInStarted, AuthAuthenticated, true},
		{"success without start", AuthAnonymous, EventSignInSucceeded, AuthAnonymous, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Next(tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Next() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
		})
	}
}
