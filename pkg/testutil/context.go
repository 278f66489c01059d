// Package testutil holds helpers shared by handler and service tests.
package testutil

import (
	"net/http"
	"time"

	id "labcert/pkg/domain"
	"labcert/pkg/platform/middleware/auth"
	"labcert/pkg/requestcontext"
)

// WithActor stamps an acting staff ID into the request context,
// simulating the auth middleware. Invalid IDs are silently ignored.
func WithActor(req *http.Request, userID string) *http.Request {
	actor, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), actor))
}

// WithRole stamps a staff role into the request context.
func WithRole(req *http.Request, role string) *http.Request {
	return req.WithContext(auth.WithRole(req.Context(), role))
}

// WithPinnedTime fixes the request-scoped clock.
func WithPinnedTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
