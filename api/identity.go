/*
identity.go - Athlete identity resolution

PURPOSE:
  The engine treats athlete identity as an opaque stable string produced
  by a resolver at the HTTP boundary. Real authentication lives outside
  this repository; the resolvers here define the seam it plugs into.

RESOLVERS:
  HeaderIdentity: reads X-Athlete-ID, fails with an auth error when
                  absent. What a gateway that terminates auth would set.
  RouteIdentity:  trusts the {athleteID} route parameter. Development
                  and demo use only.

SEE ALSO:
  - handlers.go: Uses the configured resolver per request
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hristiyan90/momentom/adapt"
)

// AthleteIDHeader carries the authenticated athlete's identifier.
const AthleteIDHeader = "X-Athlete-ID"

// ErrUnauthenticated is returned when no athlete identity can be resolved.
var ErrUnauthenticated = errors.New("no athlete identity")

// IdentityResolver turns an inbound request into an athlete identifier.
type IdentityResolver interface {
	ResolveAthlete(r *http.Request) (adapt.AthleteID, error)
}

// HeaderIdentity resolves identity from the X-Athlete-ID header.
type HeaderIdentity struct{}

func (HeaderIdentity) ResolveAthlete(r *http.Request) (adapt.AthleteID, error) {
	id := r.Header.Get(AthleteIDHeader)
	if id == "" {
		return "", ErrUnauthenticated
	}
	return adapt.AthleteID(id), nil
}

// RouteIdentity trusts the {athleteID} route parameter, falling back to
// the header for routes that carry no parameter. Development/demo only.
type RouteIdentity struct{}

func (RouteIdentity) ResolveAthlete(r *http.Request) (adapt.AthleteID, error) {
	if id := chi.URLParam(r, "athleteID"); id != "" {
		return adapt.AthleteID(id), nil
	}
	if id := r.Header.Get(AthleteIDHeader); id != "" {
		return adapt.AthleteID(id), nil
	}
	return "", ErrUnauthenticated
}
