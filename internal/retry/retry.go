// Package retry re-runs operations that fail for reasons expected to pass:
// throttled cloud API reads and SSH dials to hosts that are still booting.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Backoff bounds a retry loop. Delays double from Initial up to Max, with
// full jitter.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

var (
	// API suits idempotent provider reads.
	API = Backoff{Attempts: 3, Initial: 500 * time.Millisecond, Max: 5 * time.Second}

	// Boot suits waiting for sshd on a host that was just created.
	Boot = Backoff{Attempts: 20, Initial: 2 * time.Second, Max: 10 * time.Second}

	// Immediate retries without sleeping. Tests use it.
	Immediate = Backoff{Attempts: 3}
)

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err so Do returns it at once, whatever the classifier says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. A nil retryable means Transient. The last error is
// returned unwrapped from any Permanent marker.
func Do(ctx context.Context, b Backoff, retryable func(error) bool, fn func() error) error {
	if b.Attempts < 1 {
		b.Attempts = 1
	}
	if retryable == nil {
		retryable = Transient
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn()
		if err == nil {
			return nil
		}
		var p permanent
		if errors.As(err, &p) {
			return p.err
		}
		if attempt >= b.Attempts || !retryable(err) {
			return err
		}

		d := b.delay(attempt)
		log.Debug().Err(err).Int("attempt", attempt).Dur("wait", d).Msg("retrying")
		if !wait(ctx, d) {
			return err
		}
	}
}

// Transient reports whether err looks like a network hiccup: a timeout, a
// refused or reset connection, or an expired per-request deadline.
// Cancellation never is.
func Transient(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (b Backoff) delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	d := b.Initial << (attempt - 1)
	if d <= 0 || (b.Max > 0 && d > b.Max) {
		d = b.Max
	}
	return rand.N(d + 1)
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
