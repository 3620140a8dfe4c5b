package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rental_scrooper/config"
	"rental_scrooper/models"
)

type fakeSession struct {
	pages   map[string]string
	navErr  map[string]error
	waitErr error
	openErr error

	mu      sync.Mutex
	opened  int
	closed  int
	visited []string
}

func (s *fakeSession) NewPage(ctx context.Context) (Page, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &fakePage{session: s}, nil
}

type fakePage struct {
	session *fakeSession
	html    string
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s := p.session
	s.mu.Lock()
	s.visited = append(s.visited, url)
	s.mu.Unlock()
	if err := s.navErr[url]; err != nil {
		return err
	}
	p.html = s.pages[url]
	return nil
}

func (p *fakePage) WaitForVisible(selector string, timeout time.Duration) error {
	return p.session.waitErr
}

func (p *fakePage) QueryAll(selector string) ([]Element, error) {
	doc, err := ParseDocument(p.html)
	if err != nil {
		return nil, err
	}
	return doc.QueryAll(selector), nil
}

func (p *fakePage) Content() (string, error) { return p.html, nil }

func (p *fakePage) Close() error {
	p.session.mu.Lock()
	p.session.closed++
	p.session.mu.Unlock()
	return nil
}

type memArchiver struct {
	names []string
}

func (a *memArchiver) Archive(ctx context.Context, name string, html []byte) error {
	a.names = append(a.names, name)
	return nil
}

func newTestScraper() *Scraper {
	cfg := &config.Config{
		BaseURL: testBaseURL,
		Browser: config.BrowserConfig{NavTimeout: time.Second, WaitTimeout: time.Second},
	}
	return New(cfg, zerolog.Nop())
}

func testFilter(pages int) models.SearchFilter {
	return models.SearchFilter{
		PostalCode: "74072",
		Category:   "c203",
		Radius:     5,
		MaxPrice:   models.IntPtr(1000),
		PageCount:  pages,
	}
}

func TestScrape_PaginatesOnOnePage(t *testing.T) {
	s := newTestScraper()
	filter := testFilter(2)
	page1 := BuildSearchURL(testBaseURL, filter, 1)
	page2 := BuildSearchURL(testBaseURL, filter, 2)
	session := &fakeSession{pages: map[string]string{
		page1: loadFixture(t, "search_results.html"),
		page2: `<ul><li class="ad-listitem"><article data-adid="9" data-href="/s-anzeige/x/9-203-1"></article></li></ul>`,
	}}

	records, err := s.Scrape(context.Background(), session, filter)
	require.NoError(t, err)

	assert.Equal(t, 1, session.opened)
	assert.Equal(t, 1, session.closed)
	assert.Equal(t, []string{page1, page2}, session.visited)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ExternalID)
	}
	assert.Equal(t, []string{"2876543210", "4444444444", "9"}, ids)
}

func TestScrape_NavigationErrorReleasesPage(t *testing.T) {
	s := newTestScraper()
	filter := testFilter(3)
	page2 := BuildSearchURL(testBaseURL, filter, 2)
	navErr := errors.New("net::ERR_CONNECTION_RESET")
	session := &fakeSession{navErr: map[string]error{page2: navErr}}

	records, err := s.Scrape(context.Background(), session, filter)
	require.Error(t, err)
	assert.Nil(t, records)

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Equal(t, 2, scrapeErr.Page)
	assert.Equal(t, page2, scrapeErr.URL)
	assert.ErrorIs(t, err, navErr)

	assert.Equal(t, 1, session.closed)
	assert.Len(t, session.visited, 2)
}

func TestScrape_WaitTimeoutIsSoft(t *testing.T) {
	s := newTestScraper()
	archiver := &memArchiver{}
	s.SetArchiver(archiver)
	filter := testFilter(1)
	session := &fakeSession{
		pages:   map[string]string{BuildSearchURL(testBaseURL, filter, 1): loadFixture(t, "empty_results.html")},
		waitErr: ErrWaitTimeout,
	}

	records, err := s.Scrape(context.Background(), session, filter)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, session.closed)
	require.Len(t, archiver.names, 1)
	assert.Contains(t, archiver.names[0], "74072_c203_p1_")
}

func TestScrape_OtherWaitErrorIsFatal(t *testing.T) {
	s := newTestScraper()
	session := &fakeSession{waitErr: errors.New("target closed")}

	_, err := s.Scrape(context.Background(), session, testFilter(1))

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Equal(t, 1, session.closed)
}

func TestScrape_CancelledContextReleasesPage(t *testing.T) {
	s := newTestScraper()
	session := &fakeSession{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scrape(ctx, session, testFilter(2))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, session.visited)
	assert.Equal(t, 1, session.closed)
}

func TestScrape_OpenPageError(t *testing.T) {
	s := newTestScraper()
	session := &fakeSession{openErr: errors.New("browser crashed")}

	_, err := s.Scrape(context.Background(), session, testFilter(1))

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Equal(t, 0, session.closed)
}
