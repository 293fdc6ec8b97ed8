package live

import (
	"context"
	"errors"
	"time"
)

// EventKind says what changed for a user
type EventKind string

const (
	EventCourses        EventKind = "courses"
	EventProfile        EventKind = "profile"
	EventAccountDeleted EventKind = "account_deleted"
	// EventSignedOut is published when one of the user's sessions is
	// revoked. Live connections re-check their own token on it.
	EventSignedOut EventKind = "signed_out"
)

// Event notifies subscribers that a user's data changed
type Event struct {
	UserID string    `json:"user_id"`
	Kind   EventKind `json:"kind"`
	At     time.Time `json:"at"`
}

// ErrClosed is returned when subscribing to a closed broker
var ErrClosed = errors.New("broker closed")

// Broker fans change events out to every open dashboard of a user
type Broker interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of the user's events. The channel is
	// closed once cancel is called or ctx is done.
	Subscribe(ctx context.Context, userID string) (events <-chan Event, cancel func(), err error)
	Close() error
}

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped for it. Dropping is safe: every event triggers a full reload.
const subscriberBuffer = 16
