package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/creditpulse"
	"github.com/jpalmerr/creditpulse/analytics"
	"github.com/jpalmerr/creditpulse/config"
	"github.com/jpalmerr/creditpulse/internal/store"
)

const analyticsPayload = `{
	"totalCreditsOwned": 120.5,
	"creditsTraded": {"today": 4, "thisWeek": 31},
	"marketPrice": {"current": 52.5, "change24h": 2.4, "trend": []},
	"emissionsOffset": {"total": 105, "thisMonth": 250, "target": 1000}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(url string, port int) *config.Config {
	retries := 0
	return &config.Config{
		Title: "Test",
		Port:  port,
		Source: config.SourceConfig{
			URL:       url,
			Method:    "GET",
			RateBurst: 1,
		},
		Sync: config.SyncConfig{
			CacheTTL:       config.Duration(time.Minute),
			PollInterval:   config.Duration(time.Minute),
			FetchTimeout:   config.Duration(time.Second),
			RetryBaseDelay: config.Duration(10 * time.Millisecond),
			MaxRetries:     &retries,
		},
	}
}

func analyticsServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestNew_InvalidOptions(t *testing.T) {
	cfg := testConfig("http://localhost", 0)
	_, err := New(cfg, testLogger(), creditpulse.WithLogger(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create synchronizer")
}

func TestApp_PublishesIntoStore(t *testing.T) {
	ts := analyticsServer(t, analyticsPayload, nil)

	a, err := New(testConfig(ts.URL, 0), testLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	handle, err := a.Synchronizer().Subscribe()
	require.NoError(t, err)
	defer handle.Unsubscribe()

	require.Eventually(t, func() bool {
		return a.Store().Get().Data != nil
	}, 2*time.Second, 5*time.Millisecond)

	snap := a.Store().Get()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Error)
	assert.Equal(t, 120.5, snap.Data.TotalCreditsOwned)
	assert.Equal(t, 25.0, snap.MonthlyProgressPercent)
	require.NotNil(t, snap.FetchedAt)
	assert.Greater(t, snap.Version, uint64(1), "loading and data are separate updates")
}

func TestApp_InvalidPayloadSurfacesValidationError(t *testing.T) {
	ts := analyticsServer(t, `{"totalCreditsOwned": "lots"}`, nil)

	a, err := New(testConfig(ts.URL, 0), testLogger())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	handle, err := a.Synchronizer().Subscribe()
	require.NoError(t, err)
	defer handle.Unsubscribe()

	require.Eventually(t, func() bool {
		return a.Store().Get().Error != nil
	}, 2*time.Second, 5*time.Millisecond)

	snap := a.Store().Get()
	assert.Nil(t, snap.Data)
	assert.False(t, snap.Loading)
	assert.Equal(t, "validation", snap.Error.Kind)
}

func TestApp_StoreConvergesUnderConcurrentChanges(t *testing.T) {
	ts := analyticsServer(t, analyticsPayload, nil)

	// a tiny TTL makes every success race its own stale flip
	a, err := New(testConfig(ts.URL, 0), testLogger(), creditpulse.WithCacheTTL(500*time.Nanosecond))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	handle, err := a.Synchronizer().Subscribe()
	require.NoError(t, err)
	defer handle.Unsubscribe()

	matches := func() bool {
		st := a.Synchronizer().GetState()
		snap := a.Store().Get()
		return !st.Loading &&
			snap.Loading == st.Loading &&
			snap.IsStale == st.IsStale &&
			(snap.Data != nil) == (st.Data != nil)
	}

	for trial := 0; trial < 30; trial++ {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = a.Synchronizer().Refetch(context.Background())
			}()
		}
		wg.Wait()

		require.Eventually(t, matches, 2*time.Second, time.Millisecond, "trial %d", trial)
		time.Sleep(5 * time.Millisecond)
		require.True(t, matches(), "trial %d: store regressed after settling", trial)
	}
}

func TestSnapshotOf(t *testing.T) {
	fetched := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	d := analytics.Dashboard{TotalCreditsOwned: 3}
	d.EmissionsOffset.MonthlyProgress = 50
	d.EmissionsOffset.Target = 100

	snap := SnapshotOf(creditpulse.State[analytics.Dashboard]{
		Data:      &d,
		IsStale:   true,
		FetchedAt: fetched,
	})
	require.NotNil(t, snap.Data)
	assert.True(t, snap.IsStale)
	assert.Equal(t, fetched, *snap.FetchedAt)
	assert.Equal(t, 50.0, snap.MonthlyProgressPercent)
	assert.Nil(t, snap.Error)

	snap = SnapshotOf(creditpulse.State[analytics.Dashboard]{
		Err: &creditpulse.TimeoutError{After: time.Second},
	})
	assert.Nil(t, snap.Data)
	assert.Nil(t, snap.FetchedAt)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "timeout", snap.Error.Kind)

	snap = SnapshotOf(creditpulse.State[analytics.Dashboard]{Err: errors.New("boom")})
	assert.Equal(t, "unknown", snap.Error.Kind)
	assert.Equal(t, "boom", snap.Error.Message)
}

func TestRun_ServesStateAndRefetch(t *testing.T) {
	var hits atomic.Int32
	ts := analyticsServer(t, analyticsPayload, &hits)

	const port = 19301
	a, err := New(testConfig(ts.URL, port), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	base := fmt.Sprintf("http://localhost:%d", port)

	var snap store.Snapshot
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/state")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Data != nil
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 120.5, snap.Data.TotalCreditsOwned)

	before := hits.Load()
	resp, err := http.Post(base+"/api/refetch?blocking=true", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, hits.Load(), before)

	resp, err = http.Get(base + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "<title>Test</title>")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}

	// closed on return
	_, err = a.Synchronizer().Subscribe()
	assert.ErrorIs(t, err, creditpulse.ErrClosed)
}

func TestRun_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	var hits atomic.Int32
	ts := analyticsServer(t, analyticsPayload, &hits)

	a, err := New(testConfig(ts.URL, 19302), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, a.Run(ctx))
	assert.Equal(t, int32(0), hits.Load())
}
