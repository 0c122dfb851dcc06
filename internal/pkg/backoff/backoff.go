// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package backoff provides an attempt-bounded retry with a linearly
// increasing sleep between attempts. The volume wait, tag propagation and
// coordinator probe all share this primitive; the exhaustion policy
// (continue degraded vs abort) stays with the caller.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is wrapped around the last attempt error when the
// retry budget runs out.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Linear retries up to Attempts times, sleeping attempt*Unit between
// attempts (no sleep after the final one).
type Linear struct {
	Attempts int
	Unit     time.Duration

	// Sleep is overridable for tests; nil means a context-aware
	// time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// TotalSleep returns the wall-clock sleep bound of the full budget.
func (l Linear) TotalSleep() time.Duration {
	var total time.Duration

	for attempt := 1; attempt < l.Attempts; attempt++ {
		total += time.Duration(attempt) * l.Unit
	}

	return total
}

// Run invokes f until it succeeds or the budget is exhausted. The returned
// error wraps ErrAttemptsExhausted together with the last attempt error.
func (l Linear) Run(ctx context.Context, f func(ctx context.Context) error) error {
	sleep := l.Sleep
	if sleep == nil {
		sleep = defaultSleep
	}

	var lastErr error

	for attempt := 1; attempt <= l.Attempts; attempt++ {
		if lastErr = f(ctx); lastErr == nil {
			return nil
		}

		if attempt == l.Attempts {
			break
		}

		if err := sleep(ctx, time.Duration(attempt)*l.Unit); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, l.Attempts, lastErr)
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
