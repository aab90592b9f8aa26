// Package browser defines the automation capability the rate scraper
// drives: a runtime (one headless browser process tree), sessions
// (isolated browsing contexts), and pages. Everything here is fallible
// and failures are reported through a closed set of fault categories so
// core code never inspects driver error text.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type FaultCategory int

const (
	FaultNone FaultCategory = iota
	// operation exceeded its deadline, the session is still usable
	FaultTimeout
	// navigation failed outright (dns, connection reset, bad response)
	FaultNavigation
	// the session/runtime handle was torn down mid-operation; local
	// retries are pointless, the session controller must rebuild
	FaultCorrupted
)

func (c FaultCategory) String() string {
	switch c {
	case FaultNone:
		return "none"
	case FaultTimeout:
		return "timeout"
	case FaultNavigation:
		return "navigation"
	case FaultCorrupted:
		return "corrupted"
	}
	return fmt.Sprintf("unknown(%d)", int(c))
}

// ErrSessionCorrupted marks errors whose fault category is
// FaultCorrupted. Wrapped so callers can use errors.Is without
// re-classifying.
var ErrSessionCorrupted = errors.New("browser session corrupted")

// Corrupted wraps err as a session-corruption condition.
func Corrupted(err error) error {
	return fmt.Errorf("%w: %w", ErrSessionCorrupted, err)
}

func IsCorruption(err error) bool {
	return errors.Is(err, ErrSessionCorrupted) || Classify(err) == FaultCorrupted
}

// Driver acquires automation runtimes. There is exactly one driver per
// process.
type Driver interface {
	Launch(ctx context.Context) (Runtime, error)
	Stop() error
}

// Runtime is one browser process tree.
type Runtime interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	// reports whether the underlying process is still responsive
	Alive() bool
	Close() error
}

// SessionOptions carries the anti-detection posture applied once per
// session.
type SessionOptions struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	Locale         string
	TimezoneID     string
}

// Session is one isolated browsing context with a single page.
type Session interface {
	Page() Page
	Close() error
}

// Page is the navigation surface a single fetch cycle uses. All waits
// take hard per-operation timeouts.
type Page interface {
	// navigate and wait until minimally loaded; returns the HTTP
	// status of the main document response, or 0 when unavailable
	Goto(ctx context.Context, url string, timeout time.Duration) (int, error)
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	// result-card handles in document order
	Cards(ctx context.Context) ([]Card, error)
	BodyText(ctx context.Context, timeout time.Duration) (string, error)
	// raw page HTML, diagnostics only
	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	URL() string
	// best-effort click used for popup dismissal
	Click(ctx context.Context, selector string, timeout time.Duration) error
}

type Card interface {
	InnerText(ctx context.Context, timeout time.Duration) (string, error)
}
