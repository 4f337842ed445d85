// Package session holds the server-side half of a login session.
//
// The browser only ever sees a signed, opaque session id (see
// auth.SessionManager). Everything the server remembers about that id lives
// in a Store: the id of the signed-in user, if any, and the flash messages
// waiting to be shown on the next page.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when the id is unknown or the record
// has expired.
var ErrNotFound = errors.New("session: not found")

// Data is one session record.
//
// Only the user id is kept. The full user row is loaded again on every
// request, so a profile change or a deleted account takes effect at once.
type Data struct {
	UserID    int64     `json:"user_id,omitempty"`
	Flash     []string  `json:"flash,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticated reports whether a user is signed in on this session.
func (d *Data) Authenticated() bool {
	return d.UserID != 0
}

// Expired reports whether the record is past its deadline at now.
func (d *Data) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Store persists session records by id. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data) error
	Delete(ctx context.Context, id string) error
}
