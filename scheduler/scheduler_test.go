package scheduler

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
	"rental_scrooper/services"
)

type fakeRefresher struct {
	mu      sync.Mutex
	calls   []string
	block   chan struct{}
	started chan struct{}
	fail    map[string]error
}

func (f *fakeRefresher) Refresh(ctx context.Context, name string, filter models.SearchFilter) (*services.SearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if err := f.fail[name]; err != nil {
		return nil, err
	}
	return &services.SearchResult{}, nil
}

func testConfig(names ...string) *config.Config {
	cfg := &config.Config{Searches: map[string]*config.SearchConfig{}}
	for _, name := range names {
		cfg.Searches[name] = &config.SearchConfig{
			Name:   name,
			Filter: models.SearchFilter{PostalCode: "74072"}.WithDefaults(),
		}
	}
	return cfg
}

func TestRunAll_RefreshesEverySearchInOrder(t *testing.T) {
	r := &fakeRefresher{fail: map[string]error{"berlin": errors.New("scrape failed")}}
	s := New(testConfig("stuttgart", "berlin", "heilbronn"), r, zerolog.Nop())

	s.RunAll(context.Background())

	assert.Equal(t, []string{"berlin", "heilbronn", "stuttgart"}, r.calls)
}

func TestRunSearch_UnknownSearch(t *testing.T) {
	s := New(testConfig("heilbronn"), &fakeRefresher{}, zerolog.Nop())

	err := s.RunSearch(context.Background(), "munich")
	assert.Error(t, err)
}

func TestRunSearch_SkipsOverlappingRun(t *testing.T) {
	r := &fakeRefresher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(testConfig("heilbronn"), r, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.RunSearch(context.Background(), "heilbronn") }()

	select {
	case <-r.started:
	case <-time.After(time.Second):
		t.Fatal("first run did not start")
	}

	err := s.RunSearch(context.Background(), "heilbronn")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(r.block)
	require.NoError(t, <-done)

	r.block = nil
	assert.NoError(t, s.RunSearch(context.Background(), "heilbronn"))
	assert.Len(t, r.calls, 2)
}

func TestStart_InvalidCron(t *testing.T) {
	cfg := testConfig("heilbronn")
	cfg.Scheduler.Cron = "not a cron"
	s := New(cfg, &fakeRefresher{}, zerolog.Nop())

	assert.Error(t, s.Start(context.Background()))
	s.Stop()
}

func TestStart_IntervalTriggersRuns(t *testing.T) {
	cfg := testConfig("heilbronn")
	cfg.Scheduler.Interval = 10 * time.Millisecond
	r := &fakeRefresher{started: make(chan struct{}, 10)}
	s := New(cfg, r, zerolog.Nop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("interval run did not fire")
	}
}
