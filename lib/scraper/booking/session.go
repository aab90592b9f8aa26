package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pitchprice-backend/lib/browser"
	"pitchprice-backend/lib/telemetry"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/codes"
)

type ControllerState int

const (
	StateNoSession ControllerState = iota
	StateReady
	StateRefreshing
	StateCorrupted
	StateShutdown
)

func (s ControllerState) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateReady:
		return "ready"
	case StateRefreshing:
		return "refreshing"
	case StateCorrupted:
		return "corrupted"
	case StateShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

const (
	// hotel batches a session serves before a preventive refresh; the
	// target site profiles long-lived contexts, and browser memory
	// creeps on top of that
	hotelsPerSession = 3
	// rebuilds Execute will attempt for one request before giving up
	maxCorruptionRecoveries = 2

	stabilizationDelay = 2 * time.Second
)

// DefaultSessionOptions is the anti-detection posture applied to every
// fresh session.
func DefaultSessionOptions() browser.SessionOptions {
	return browser.SessionOptions{
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Locale:     "en-CA",
		TimezoneID: "America/Toronto",
	}
}

// Controller owns the one live browser session a scrape run uses and
// keeps it healthy: preventive refresh every few hotel batches, full
// rebuild on corruption, runtime relaunch when the browser process dies
// underneath it. Not safe for concurrent use; the run loop is serial by
// design since pacing is the whole point.
type Controller struct {
	driver      browser.Driver
	client      *Client
	settings    Settings
	sessionOpts browser.SessionOptions

	runtime browser.Runtime
	session browser.Session
	state   ControllerState

	hotelsServed int

	sleep func(time.Duration)
}

type ControllerOptions struct {
	Driver   browser.Driver
	Client   *Client
	Settings Settings

	// zero value takes DefaultSessionOptions
	SessionOptions browser.SessionOptions
	// overridable in tests
	Sleep func(time.Duration)
}

func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		driver:      opts.Driver,
		client:      opts.Client,
		settings:    opts.Settings,
		sessionOpts: opts.SessionOptions,
		state:       StateNoSession,
		sleep:       opts.Sleep,
	}
	if c.sessionOpts == (browser.SessionOptions{}) {
		c.sessionOpts = DefaultSessionOptions()
	}
	if c.settings.DelayMaxSeconds <= 0 {
		c.settings.DelayMinSeconds = DefaultSettings().DelayMinSeconds
		c.settings.DelayMaxSeconds = DefaultSettings().DelayMaxSeconds
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	return c
}

func (c *Controller) State() ControllerState {
	return c.state
}

// Start launches the browser runtime and opens the first session.
func (c *Controller) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:Start")
	defer span.End()

	runtime, err := c.driver.Launch(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("launch browser runtime: %w", err)
	}
	c.runtime = runtime

	if err := c.openSession(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.InfoContext(ctx, "browser session ready", "browser_rss_mb", telemetry.BrowserRSS())
	return nil
}

func (c *Controller) openSession(ctx context.Context) error {
	session, err := c.runtime.NewSession(ctx, c.sessionOpts)
	if err != nil {
		c.state = StateNoSession
		return fmt.Errorf("open browser session: %w", err)
	}
	c.session = session
	c.state = StateReady
	return nil
}

// BeginHotel marks the start of one hotel's batch of date lookups and
// preventively refreshes the session when the current one has served
// its quota. Call once per hotel, before the first Execute for it.
func (c *Controller) BeginHotel(ctx context.Context, hotelName string) error {
	if c.state == StateShutdown {
		return fmt.Errorf("session controller is shut down")
	}
	if c.hotelsServed >= hotelsPerSession {
		slog.InfoContext(ctx, "refreshing session between hotel batches",
			"hotels_served", c.hotelsServed,
			"next_hotel", hotelName,
			"browser_rss_mb", telemetry.BrowserRSS(),
		)
		if err := c.refresh(ctx); err != nil {
			return err
		}
		c.hotelsServed = 0
	}
	c.hotelsServed++
	return nil
}

// Execute runs one fetch through the live session with a randomized
// politeness delay in front of it. Corruption reported by the fetch
// triggers a bounded number of full session rebuilds; any other outcome
// is returned as-is. The returned error means the request could not be
// served even after rebuilding.
func (c *Controller) Execute(ctx context.Context, req RateRequest) (ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "session:Execute")
	defer span.End()

	if c.state == StateShutdown {
		return ExtractionResult{}, fmt.Errorf("session controller is shut down")
	}
	if c.state != StateReady {
		if err := c.refresh(ctx); err != nil {
			return ExtractionResult{}, err
		}
	}

	for recovery := 0; ; recovery++ {
		c.sleep(c.requestDelay())

		result, err := c.client.Fetch(ctx, c.session.Page(), req)
		if err == nil {
			return result, nil
		}
		if !browser.IsCorruption(err) {
			span.SetStatus(codes.Error, err.Error())
			return ExtractionResult{}, err
		}

		c.state = StateCorrupted
		if recovery >= maxCorruptionRecoveries {
			span.SetStatus(codes.Error, "corruption recoveries exhausted")
			return ExtractionResult{}, fmt.Errorf(
				"session corrupted %d times serving %q: %w",
				recovery+1, req.HotelName, err,
			)
		}
		slog.WarnContext(ctx, "session corrupted mid-request, rebuilding",
			"hotel", req.HotelName, "recovery", recovery+1, "err", err)
		if err := c.refresh(ctx); err != nil {
			return ExtractionResult{}, err
		}
	}
}

// Fetcher adapts the controller into the date-range fetch closure the
// inference solver consumes, fixing the hotel identity.
func (c *Controller) Fetcher(hotelID, hotelName, city string) FetchFunc {
	return func(ctx context.Context, checkIn, checkOut time.Time) (ExtractionResult, error) {
		req, err := NewRateRequest(hotelID, hotelName, city, checkIn, checkOut)
		if err != nil {
			return ExtractionResult{}, err
		}
		return c.Execute(ctx, req)
	}
}

// refresh tears down the current session and opens a fresh one,
// relaunching the whole runtime when the browser process is gone.
// Teardown is best-effort: a corrupted session often cannot close
// cleanly and that must not block the rebuild.
func (c *Controller) refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session:refresh")
	defer span.End()
	c.state = StateRefreshing

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			slog.DebugContext(ctx, "old session did not close cleanly", "err", err)
		}
		c.session = nil
	}

	if c.runtime == nil || !c.runtime.Alive() {
		slog.WarnContext(ctx, "browser runtime is gone, relaunching")
		if c.runtime != nil {
			if err := c.runtime.Close(); err != nil {
				slog.DebugContext(ctx, "dead runtime did not close cleanly", "err", err)
			}
		}
		runtime, err := c.driver.Launch(ctx)
		if err != nil {
			c.state = StateNoSession
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("relaunch browser runtime: %w", err)
		}
		c.runtime = runtime
	}

	c.sleep(stabilizationDelay)

	if err := c.openSession(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.InfoContext(ctx, "session refreshed", "browser_rss_mb", telemetry.BrowserRSS())
	return nil
}

func (c *Controller) requestDelay() time.Duration {
	minMs := int(c.settings.DelayMinSeconds * 1000)
	maxMs := int(c.settings.DelayMaxSeconds * 1000)
	if maxMs <= minMs {
		return time.Duration(minMs) * time.Millisecond
	}
	ms, err := random.IntRange(minMs, maxMs)
	if err != nil {
		ms = minMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Close tears everything down. Safe to call more than once.
func (c *Controller) Close() error {
	if c.state == StateShutdown {
		return nil
	}
	c.state = StateShutdown

	var firstErr error
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			firstErr = err
		}
		c.session = nil
	}
	if c.runtime != nil {
		if err := c.runtime.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.runtime = nil
	}
	if c.driver != nil {
		if err := c.driver.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
