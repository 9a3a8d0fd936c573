// Standalone mock analytics API for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver --fail-rate 0.2 --delay 500ms
//
// Then in another terminal:
//
//	go run ./cmd/creditpulse serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const analyticsPath = "/api/dashboard/analytics/"

var rootCmd = &cobra.Command{
	Use:   "mockserver",
	Short: "Serve simulated dashboard analytics",
	RunE:  run,
}

func init() {
	f := rootCmd.Flags()
	f.String("addr", ":8000", "listen address")
	f.Float64("fail-rate", 0, "fraction of requests answered with HTTP 500 (0-1)")
	f.Float64("malformed-rate", 0, "fraction of requests answered with an invalid payload (0-1)")
	f.Duration("delay", 0, "added latency per request")
	f.String("token", "", "require this bearer token")
	f.Int64("seed", time.Now().UnixNano(), "price simulation seed")
}

func run(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	addr, _ := f.GetString("addr")
	seed, _ := f.GetInt64("seed")

	var flt faults
	flt.failRate, _ = f.GetFloat64("fail-rate")
	flt.malformedRate, _ = f.GetFloat64("malformed-rate")
	flt.delay, _ = f.GetDuration("delay")
	flt.token, _ = f.GetString("token")

	for name, rate := range map[string]float64{"fail-rate": flt.failRate, "malformed-rate": flt.malformedRate} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("--%s must be between 0 and 1, got %v", name, rate)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mux := http.NewServeMux()
	mux.Handle(analyticsPath, newHandler(newMarket(seed), flt, logger))

	fmt.Printf("Mock analytics API on %s%s\n", addr, analyticsPath)
	fmt.Printf("  fail rate %.0f%%, malformed rate %.0f%%, delay %s\n",
		flt.failRate*100, flt.malformedRate*100, flt.delay)
	fmt.Println("Press Ctrl+C to stop")

	return http.ListenAndServe(addr, mux)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
