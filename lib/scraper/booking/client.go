package booking

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"pitchprice-backend/lib/browser"
	"pitchprice-backend/lib/htmlutil"
	"pitchprice-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scraper/booking")

const searchBaseURL = "https://www.booking.com/searchresults.html"

// fixed party so amounts stay comparable across every request
const (
	searchAdults   = 2
	searchChildren = 0
	searchRooms    = 1
)

var cookieSelectors = []string{
	`button:has-text("Accept")`,
	`button:has-text("OK")`,
	`#onetrust-accept-btn-handler`,
	`[data-testid="accept-btn"]`,
}

// Client runs one page-load + wait + extraction cycle with bounded
// retry. It holds no session state; the page handle is an opaque
// capability lent to it for the duration of one call.
type Client struct {
	settings Settings

	navTimeout  time.Duration
	idleTimeout time.Duration
	settleLong  time.Duration
	settleShort time.Duration
	cardTimeout time.Duration

	sleep func(time.Duration)
}

type ClientOptions struct {
	Settings Settings

	// overridable in tests; zero values take the production defaults
	NavTimeout  time.Duration
	IdleTimeout time.Duration
	SettleLong  time.Duration
	SettleShort time.Duration
	CardTimeout time.Duration
	Sleep       func(time.Duration)
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		settings:    opts.Settings,
		navTimeout:  opts.NavTimeout,
		idleTimeout: opts.IdleTimeout,
		settleLong:  opts.SettleLong,
		settleShort: opts.SettleShort,
		cardTimeout: opts.CardTimeout,
		sleep:       opts.Sleep,
	}
	if c.settings.MaxRetries <= 0 {
		c.settings.MaxRetries = DefaultSettings().MaxRetries
	}
	if c.settings.Plausibility == (PlausibilityConfig{}) {
		c.settings.Plausibility = DefaultPlausibility()
	}
	if c.navTimeout == 0 {
		c.navTimeout = time.Minute
	}
	if c.idleTimeout == 0 {
		c.idleTimeout = 30 * time.Second
	}
	if c.settleLong == 0 {
		c.settleLong = 4 * time.Second
	}
	if c.settleShort == 0 {
		c.settleShort = time.Second
	}
	if c.cardTimeout == 0 {
		c.cardTimeout = 2 * time.Second
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	return c
}

// SearchURL builds the deterministic search URL for one request.
func SearchURL(hotelName, city string, checkIn, checkOut time.Time) string {
	q := url.Values{}
	q.Set("ss", fmt.Sprintf("%s %s", hotelName, city))
	q.Set("checkin", checkIn.Format(time.DateOnly))
	q.Set("checkout", checkOut.Format(time.DateOnly))
	q.Set("group_adults", fmt.Sprint(searchAdults))
	q.Set("no_rooms", fmt.Sprint(searchRooms))
	q.Set("group_children", fmt.Sprint(searchChildren))
	q.Set("selected_currency", Currency)
	return searchBaseURL + "?" + q.Encode()
}

// Fetch performs the full navigate/wait/extract cycle for one request,
// retrying transport and extraction failures with linear backoff.
// Definitive outcomes (available, sold_out, not_found) return immediately. The
// returned error is non-nil only for session corruption, which must not
// be retried here: it propagates untouched so the session controller can
// rebuild the session.
func (c *Client) Fetch(ctx context.Context, page browser.Page, req RateRequest) (ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("hotel", req.HotelName),
		attribute.String("check_in", req.CheckIn.Format(time.DateOnly)),
		attribute.Int("nights", req.Nights()),
	)

	target := SearchURL(req.HotelName, req.City, req.CheckIn, req.CheckOut)

	var lastErr error
	for attempt := 1; attempt <= c.settings.MaxRetries; attempt++ {
		slog.DebugContext(ctx, "fetch attempt",
			"attempt", attempt,
			"max", c.settings.MaxRetries,
			"hotel", req.HotelName,
			"check_in", req.CheckIn.Format(time.DateOnly),
		)

		result, err := c.attempt(ctx, page, target, req)
		if err == nil && result.Definitive() {
			if attempt > 1 {
				slog.InfoContext(ctx, "fetch succeeded after retry",
					"attempt", attempt, "hotel", req.HotelName)
			}
			return result, nil
		}

		if err != nil {
			if browser.IsCorruption(err) {
				span.SetStatus(codes.Error, "session corrupted")
				return ExtractionResult{}, browser.Corrupted(err)
			}
			lastErr = err
		} else {
			lastErr = fmt.Errorf("extraction: %s", result.Error)
		}
		slog.WarnContext(ctx, "fetch attempt failed",
			"attempt", attempt, "hotel", req.HotelName, "err", lastErr)
		if attempt < c.settings.MaxRetries {
			backoff := time.Duration(2*attempt) * time.Second
			slog.DebugContext(ctx, "backing off before retry", "backoff", backoff)
			c.sleep(backoff)
		}
	}

	span.SetStatus(codes.Error, "retries exhausted")
	result := ExtractionResult{
		Currency: Currency,
		Status:   StatusError,
		Error: fmt.Sprintf(
			"failed after %d attempts: %s",
			c.settings.MaxRetries, lastErr,
		),
	}
	return result, nil
}

// attempt runs a single navigate/wait/extract cycle. A returned error
// is a transport failure; a non-definitive result is an extraction
// failure. Both are eligible for retry, except corruption which the
// caller classifies.
func (c *Client) attempt(ctx context.Context, page browser.Page, target string, req RateRequest) (ExtractionResult, error) {
	status, err := page.Goto(ctx, target, c.navTimeout)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("navigate: %w", err)
	}
	if status >= 400 {
		slog.WarnContext(ctx, "search returned http error status",
			"status", status, "hotel", req.HotelName)
	}

	c.sleep(c.settleLong)
	if err := page.WaitNetworkIdle(ctx, c.idleTimeout); err != nil {
		return ExtractionResult{}, fmt.Errorf("wait for network idle: %w", err)
	}
	c.sleep(c.settleShort)

	c.dismissCookiePopup(ctx, page)

	return c.extract(ctx, page, req)
}

func (c *Client) dismissCookiePopup(ctx context.Context, page browser.Page) {
	for _, selector := range cookieSelectors {
		err := page.Click(ctx, selector, 2*time.Second)
		if err == nil {
			slog.DebugContext(ctx, "dismissed cookie popup", "selector", selector)
			c.sleep(c.settleShort / 2)
			return
		}
	}
}

// extract locates the target hotel's card and disambiguates its rate.
// Ambiguity is not a fault: no-match and sold-out come back as statuses.
func (c *Client) extract(ctx context.Context, page browser.Page, req RateRequest) (ExtractionResult, error) {
	ctx, span := tracer.Start(ctx, "client:extract")
	defer span.End()

	cards, err := page.Cards(ctx)
	if err != nil {
		if browser.IsCorruption(err) {
			return ExtractionResult{}, err
		}
		result := ExtractionResult{Currency: Currency, Status: StatusError}
		result.Error = fmt.Sprintf("query result cards: %s", err)
		result.Diagnostics = c.captureDiagnostics(ctx, page, req.HotelName, "extraction_error")
		return result, nil
	}

	limit := len(cards)
	if limit > maxCardsScanned {
		limit = maxCardsScanned
	}
	cardTexts := make([]string, limit)
	for i := 0; i < limit; i++ {
		text, err := cards[i].InnerText(ctx, c.cardTimeout)
		if err != nil {
			if browser.IsCorruption(err) {
				return ExtractionResult{}, err
			}
			// a single unreadable card should not sink the scan
			continue
		}
		cardTexts[i] = text
	}

	idx := MatchCard(cardTexts, req.HotelName)
	if idx >= 0 {
		result := ExtractRate(cardTexts[idx], req.Nights(), c.settings.Plausibility)
		span.SetAttributes(
			attribute.String("status", string(result.Status)),
			attribute.Int("rate", result.Rate),
		)
		return result, nil
	}

	bodyText, err := page.BodyText(ctx, 5*time.Second)
	if err != nil {
		if browser.IsCorruption(err) {
			return ExtractionResult{}, err
		}
		result := ExtractionResult{Currency: Currency, Status: StatusError}
		result.Error = fmt.Sprintf("read page text: %s", err)
		result.Diagnostics = c.captureDiagnostics(ctx, page, req.HotelName, "extraction_error")
		return result, nil
	}

	result := PageFallback(bodyText)
	if result.Status == StatusNotFound {
		diag := c.captureDiagnostics(ctx, page, req.HotelName, "hotel_not_found")
		// closest near-miss, to make "why didn't it match" triage cheap
		for _, text := range cardTexts {
			if text == "" {
				continue
			}
			if conf := MatchConfidence(req.HotelName, text); conf > diag.MatchConfidence {
				diag.MatchConfidence = conf
			}
		}
		result.Diagnostics = diag
	}
	span.SetAttributes(attribute.String("status", string(result.Status)))
	return result, nil
}

// captureDiagnostics snapshots page state for offline triage. Every
// probe is best-effort; a failing probe just leaves its field zero.
func (c *Client) captureDiagnostics(ctx context.Context, page browser.Page, hotelName, stage string) *Diagnostics {
	diag := &Diagnostics{
		Context:   stage,
		Hotel:     hotelName,
		Timestamp: timezone.Now().UTC(),
		CardCount: -1,
	}

	if title, err := page.Title(ctx); err == nil {
		diag.PageTitle = title
	}
	diag.PageURL = page.URL()

	if cards, err := page.Cards(ctx); err == nil {
		diag.CardCount = len(cards)
	}

	if html, err := page.Content(ctx); err == nil {
		diag.VisiblePrices = htmlutil.VisiblePrices(html, 20)
	}

	if body, err := page.BodyText(ctx, 5*time.Second); err == nil {
		diag.NoAvailability = containsSoldOutPhrase(body, []string{"no availability"})
		diag.SoldOut = containsSoldOutPhrase(body, []string{"sold out"})
		diag.Captcha = containsSoldOutPhrase(body, []string{"captcha", "verify"})
	}

	return diag
}
