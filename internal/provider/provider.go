// Package provider defines the contract shared by the upstream data
// sources (World Bank commodity prices, USGS production tables) and the
// dataset-level error taxonomy the rest of the pipeline keys on.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider is the interface every upstream source implements. Sources
// are fixed at wiring time; there is no runtime registry.
type Provider interface {
	// Name returns a short stable identifier, e.g. "worldbank".
	Name() string

	// Describe returns a human-readable description of the source.
	Describe() string

	// Ping verifies the source is reachable. It does not validate the
	// payload shape, only connectivity.
	Ping(ctx context.Context) error
}

// ErrAllSourcesUnavailable is returned when every candidate URL for a
// dataset failed at the transport level (connection errors, timeouts,
// non-2xx responses). The per-URL causes are retained for diagnostics.
type ErrAllSourcesUnavailable struct {
	Source string
	Causes []error
}

func (e *ErrAllSourcesUnavailable) Error() string {
	return fmt.Sprintf("%s: all %d candidate sources unavailable: %s",
		e.Source, len(e.Causes), joinCauses(e.Causes))
}

// Unwrap exposes the per-URL causes to errors.Is/As.
func (e *ErrAllSourcesUnavailable) Unwrap() []error { return e.Causes }

// ErrSchemaDrift is returned when at least one candidate was fetched
// but its structure matched no known shape (missing sheet or row,
// missing columns, unrecognizable layout). It is distinct from
// ErrAllSourcesUnavailable so operators can tell "upstream is down"
// from "upstream changed format".
type ErrSchemaDrift struct {
	Source string
	Detail string
	Causes []error
}

func (e *ErrSchemaDrift) Error() string {
	msg := fmt.Sprintf("%s: schema drift: %s", e.Source, e.Detail)
	if len(e.Causes) > 0 {
		msg += ": " + joinCauses(e.Causes)
	}
	return msg
}

// Unwrap exposes the per-candidate causes to errors.Is/As.
func (e *ErrSchemaDrift) Unwrap() []error { return e.Causes }

// IsUnavailable reports whether err is a dataset-level unavailability.
func IsUnavailable(err error) bool {
	var target *ErrAllSourcesUnavailable
	return errors.As(err, &target)
}

// IsSchemaDrift reports whether err is a dataset-level schema mismatch.
func IsSchemaDrift(err error) bool {
	var target *ErrSchemaDrift
	return errors.As(err, &target)
}

func joinCauses(causes []error) string {
	parts := make([]string, 0, len(causes))
	for _, c := range causes {
		parts = append(parts, c.Error())
	}
	return strings.Join(parts, "; ")
}
