// Library usage demo: keeps the mock analytics API in sync and prints every
// state change.
//
//	go run ./example/cmd/mockserver --fail-rate 0.3 &
//	go run ./example
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/creditpulse"
	"github.com/jpalmerr/creditpulse/analytics"
)

const analyticsURL = "http://localhost:8000/api/dashboard/analytics/"

func fetchAnalytics(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, analyticsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var sync *creditpulse.Synchronizer[analytics.Dashboard]
	printState := func() {
		st := sync.GetState()
		switch {
		case st.Err != nil:
			fmt.Printf("error (%s): %v\n", creditpulse.ErrorKind(st.Err), st.Err)
		case st.Data == nil:
			fmt.Println("loading...")
		default:
			stale := ""
			if st.IsStale {
				stale = " [stale]"
			}
			fmt.Printf("owned=%.1f price=%.2f (%s%%) month=%.0f%%%s\n",
				st.Data.TotalCreditsOwned, st.Data.MarketPrice.Current, st.Data.MarketPrice.Change24h,
				st.Data.MonthlyProgressPercent(), stale)
		}
	}

	var err error
	sync, err = creditpulse.NewSynchronizer(
		creditpulse.FetchFunc(fetchAnalytics),
		analytics.Validate,
		creditpulse.WithCacheTTL(10*time.Second),
		creditpulse.WithPollInterval(5*time.Second),
		creditpulse.WithRetryBaseDelay(500*time.Millisecond),
		creditpulse.WithLogger(logger),
		creditpulse.WithChangeHook(printState),
	)
	if err != nil {
		slog.Error("failed to create synchronizer", "error", err)
		os.Exit(1)
	}
	defer sync.Close()

	handle, err := sync.Subscribe()
	if err != nil {
		slog.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	defer handle.Unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
