package browser

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"
)

// chromium hardening flags; the heap cap and single-process flag keep
// the long-lived scrape process from ballooning between session
// refreshes
var launchArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--disable-gpu",
	"--single-process",
	"--disable-extensions",
	"--js-flags=--max-old-space-size=512",
}

const webdriverMaskScript = `() => {
	Object.defineProperty(navigator, 'webdriver', {
		get: () => false,
	});
}`

type playwrightDriver struct {
	pw *playwright.Playwright
}

// NewPlaywrightDriver starts the playwright driver process. Callers own
// the returned Driver and must Stop it on shutdown.
func NewPlaywrightDriver() (Driver, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	return &playwrightDriver{pw: pw}, nil
}

func (d *playwrightDriver) Launch(ctx context.Context) (Runtime, error) {
	b, err := d.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     launchArgs,
	})
	if err != nil {
		return nil, err
	}
	return &playwrightRuntime{browser: b}, nil
}

func (d *playwrightDriver) Stop() error {
	return d.pw.Stop()
}

type playwrightRuntime struct {
	browser playwright.Browser
}

func (r *playwrightRuntime) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	bctx, err := r.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		UserAgent:  playwright.String(opts.UserAgent),
		Locale:     playwright.String(opts.Locale),
		TimezoneId: playwright.String(opts.TimezoneID),
	})
	if err != nil {
		return nil, err
	}
	err = bctx.AddInitScript(playwright.Script{
		Content: playwright.String(webdriverMaskScript),
	})
	if err != nil {
		bctx.Close()
		return nil, err
	}
	pg, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, err
	}
	return &playwrightSession{bctx: bctx, page: &playwrightPage{page: pg}}, nil
}

func (r *playwrightRuntime) Alive() bool {
	return r.browser.IsConnected()
}

func (r *playwrightRuntime) Close() error {
	return r.browser.Close()
}

type playwrightSession struct {
	bctx playwright.BrowserContext
	page *playwrightPage
}

func (s *playwrightSession) Page() Page {
	return s.page
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *playwrightPage) Goto(ctx context.Context, url string, timeout time.Duration) (int, error) {
	res, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   millis(timeout),
	})
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	return res.Status(), nil
}

func (p *playwrightPage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: millis(timeout),
	})
}

const propertyCardSelector = `div[data-testid="property-card"]`

func (p *playwrightPage) Cards(ctx context.Context) ([]Card, error) {
	locators, err := p.page.Locator(propertyCardSelector).All()
	if err != nil {
		return nil, err
	}
	cards := make([]Card, len(locators))
	for i, loc := range locators {
		cards[i] = &playwrightCard{loc: loc}
	}
	return cards, nil
}

func (p *playwrightPage) BodyText(ctx context.Context, timeout time.Duration) (string, error) {
	return p.page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{
		Timeout: millis(timeout),
	})
}

func (p *playwrightPage) Content(ctx context.Context) (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Title(ctx context.Context) (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	})
}

type playwrightCard struct {
	loc playwright.Locator
}

func (c *playwrightCard) InnerText(ctx context.Context, timeout time.Duration) (string, error) {
	return c.loc.InnerText(playwright.LocatorInnerTextOptions{
		Timeout: millis(timeout),
	})
}
