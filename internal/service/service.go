// Package service contains the business rules of the tracker.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)    → parses requests, writes responses
//	Service (rules)   → validates input, checks ownership, orchestrates
//	Repository (data) → reads and writes the key-value store
//
// Services take repository interfaces and plain values, never HTTP types,
// so the admin CLI calls the same code the API does. Failures are
// apperror values; handlers turn them into status codes.
package service

import (
	"fmt"

	"github.com/sakif/tasktracker/internal/apperror"
)

// OwnerPolicy decides how a request for someone else's project or task is
// answered. Every service applies the same policy.
type OwnerPolicy string

const (
	// ConcealForeign answers as if the entity did not exist (404).
	ConcealForeign OwnerPolicy = "conceal"
	// ForbidForeign admits the entity exists but refuses access (403).
	ForbidForeign OwnerPolicy = "forbid"
)

// ParseOwnerPolicy maps a config value to a policy. Empty means conceal.
func ParseOwnerPolicy(s string) (OwnerPolicy, error) {
	switch OwnerPolicy(s) {
	case "", ConcealForeign:
		return ConcealForeign, nil
	case ForbidForeign:
		return ForbidForeign, nil
	}
	return "", fmt.Errorf("service: unknown owner policy %q", s)
}

func (p OwnerPolicy) foreign(resource, id string) error {
	if p == ForbidForeign {
		return apperror.Forbidden(fmt.Sprintf("You do not have access to this %s", resource))
	}
	return apperror.NotFound(resource, id)
}
