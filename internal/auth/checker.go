package auth

import "context"

// Checker tells whether a browser token belongs to a live admin
// session. Both the auth middleware and the live fix stream gate
// on it.
type Checker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}
