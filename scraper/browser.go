package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
	"rental_scrooper/config"
)

// ErrWaitTimeout is returned by Page.WaitForVisible when the selector did not
// become visible in time.
var ErrWaitTimeout = errors.New("timed out waiting for selector")

// Session hands out pages. Each caller gets its own page; pages are never
// shared between concurrent scrapes.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
}

// Page is one browser tab.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitForVisible(selector string, timeout time.Duration) error
	QueryAll(selector string) ([]Element, error)
	Content() (string, error)
	Close() error
}

// Element is a node of the loaded page.
type Element interface {
	QueryOne(selector string) (Element, bool)
	QueryAll(selector string) []Element
	Attr(name string) (string, bool)
	Text() string
}

// PlaywrightSession owns one headless Chromium. Every NewPage call opens a
// fresh browser context with its own user agent.
type PlaywrightSession struct {
	cfg     config.BrowserConfig
	log     zerolog.Logger
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightSession(cfg config.BrowserConfig, log zerolog.Logger) *PlaywrightSession {
	return &PlaywrightSession{cfg: cfg, log: log}
}

func (s *PlaywrightSession) ensureBrowser() (playwright.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil && s.browser.IsConnected() {
		return s.browser, nil
	}

	if s.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
		s.pw = pw
	}

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if s.cfg.ProxyURL != "" {
		opts.Proxy = &playwright.Proxy{Server: s.cfg.ProxyURL}
	}

	browser, err := s.pw.Chromium.Launch(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	s.browser = browser
	s.log.Info().Bool("headless", s.cfg.Headless).Msg("Browser launched")
	return browser, nil
}

func (s *PlaywrightSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := s.ensureBrowser()
	if err != nil {
		return nil, err
	}

	ua := userAgents[rand.Intn(len(userAgents))]
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(ua),
		Locale:    playwright.String("de-DE"),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	s.log.Debug().Str("user_agent", ua).Msg("Page created")
	return &playwrightPage{context: bctx, page: page}, nil
}

func (s *PlaywrightSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		s.pw.Stop()
		s.pw = nil
	}
}

type playwrightPage struct {
	context playwright.BrowserContext
	page    playwright.Page
}

func (p *playwrightPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout, err := navigationTimeout(ctx, timeout)
	if err != nil {
		return err
	}

	_, err = p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return err
	}

	p.dismissConsent()
	return nil
}

// navigationTimeout caps timeout at the context deadline. Playwright reads a
// zero timeout as "wait forever", so less than a millisecond left counts as
// an expired deadline.
func navigationTimeout(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		return 0, context.DeadlineExceeded
	}
	return timeout, nil
}

var consentSelectors = []string{
	"#gdpr-banner-accept",
	"button[data-testid='gdpr-banner-accept']",
	"button:has-text('Alle akzeptieren')",
	"button:has-text('Einverstanden')",
}

// dismissConsent clicks away the cookie banner, which otherwise covers the
// result list on the first visit of a fresh context.
func (p *playwrightPage) dismissConsent() {
	for _, selector := range consentSelectors {
		btn := p.page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			btn.Click()
			return
		}
	}
}

func (p *playwrightPage) WaitForVisible(selector string, timeout time.Duration) error {
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
	}
	return err
}

// QueryAll snapshots the rendered HTML once and answers all further element
// queries from that snapshot instead of one browser round trip per field.
func (p *playwrightPage) QueryAll(selector string) ([]Element, error) {
	html, err := p.page.Content()
	if err != nil {
		return nil, fmt.Errorf("read page content: %w", err)
	}
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return doc.QueryAll(selector), nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Close() error {
	pageErr := p.page.Close()
	ctxErr := p.context.Close()
	return errors.Join(pageErr, ctxErr)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}
