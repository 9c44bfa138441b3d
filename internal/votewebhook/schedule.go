// Package votewebhook supplements the excluded monthly-leaderboard task
// with just enough scheduling machinery to validate the
// rollover cron expression an operator configures — the rollover job
// itself (aggregation + posting) stays out of scope.
package votewebhook

import (
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultRolloverExpr runs at 00:05 UTC on the first of each month, the
// original project's monthly-leaderboard rollover cadence.
const DefaultRolloverExpr = "5 0 1 * *"

// ValidateRolloverExpr reports whether expr is a valid cron expression for
// the monthly rollover schedule (operator config validation only; the
// leaderboard aggregation and posting task itself is out of scope here, so
// nothing actually gets scheduled by the core).
func ValidateRolloverExpr(expr string) error {
	if expr == "" {
		expr = DefaultRolloverExpr
	}
	g := gronx.New()
	if !g.IsValid(expr) {
		return fmt.Errorf("votewebhook: invalid rollover expression %q", expr)
	}
	return nil
}

// NextRollover returns the next time expr will fire after now. An empty
// expr uses DefaultRolloverExpr.
func NextRollover(expr string, now time.Time) (time.Time, error) {
	if expr == "" {
		expr = DefaultRolloverExpr
	}
	next, err := gronx.NextTickAfter(expr, now, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("votewebhook: compute next rollover: %w", err)
	}
	return next, nil
}
