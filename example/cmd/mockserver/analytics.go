package main

import (
	"encoding/json"
	"log/slog"
	"math"
	"math/rand"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	basePrice     = 50.0
	monthlyTarget = 1000.0
	trendDays     = 7
)

// market holds the simulated account and price history. Each request moves
// the current price by a small random step.
type market struct {
	mu      sync.Mutex
	rng     *rand.Rand
	prices  []float64 // last trendDays daily averages, oldest first
	current float64
	owned   float64
	today   float64
	week    float64
	offset  float64
	month   float64
	txCount int
}

func newMarket(seed int64) *market {
	m := &market{
		rng:     rand.New(rand.NewSource(seed)),
		current: basePrice,
		owned:   120,
		offset:  1200,
		month:   150,
	}
	price := basePrice
	for i := 0; i < trendDays; i++ {
		price = round2(price * (1 + (m.rng.Float64()-0.5)*0.04))
		m.prices = append(m.prices, price)
	}
	return m
}

// step advances the simulation by one request.
func (m *market) step() {
	m.current = round2(math.Max(1, m.current*(1+(m.rng.Float64()-0.5)*0.02)))
	m.prices[len(m.prices)-1] = m.current

	if m.rng.Intn(3) == 0 {
		traded := float64(1 + m.rng.Intn(5))
		m.today += traded
		m.week += traded
		m.owned += traded
		m.txCount++
		m.offset += traded * 10
		m.month = math.Min(m.month+traded*10, monthlyTarget*1.2)
	}
}

// document returns the analytics payload in the API's wire shape.
func (m *market) document(now time.Time) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step()

	trend := make([]any, 0, len(m.prices))
	for i, p := range m.prices {
		day := now.AddDate(0, 0, i-(len(m.prices)-1))
		trend = append(trend, map[string]any{
			"date":  day.Format(time.DateOnly),
			"price": p,
		})
	}

	change := 0.0
	if yesterday := m.prices[len(m.prices)-2]; yesterday > 0 {
		change = round2((m.current - yesterday) / yesterday * 100)
	}

	return map[string]any{
		"totalCreditsOwned": m.owned,
		"creditsTraded": map[string]any{
			"today":    m.today,
			"thisWeek": m.week,
		},
		"marketPrice": map[string]any{
			"current":   m.current,
			"change24h": change,
			"trend":     trend,
		},
		"emissionsOffset": map[string]any{
			"total":     m.offset,
			"thisMonth": m.month,
			"target":    monthlyTarget,
		},
		"additional_metrics": map[string]any{
			"batches_produced":   3,
			"total_transactions": m.txCount,
			"active_orders":      m.rng.Intn(4),
		},
	}
}

// faults controls error injection.
type faults struct {
	failRate      float64
	malformedRate float64
	delay         time.Duration
	token         string
}

type handler struct {
	market *market
	faults faults
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func newHandler(m *market, f faults, logger *slog.Logger) *handler {
	return &handler{
		market: m,
		faults: f,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *handler) roll() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.faults.token != "" && r.Header.Get("Authorization") != "Bearer "+h.faults.token {
		http.Error(w, `{"detail":"Authentication credentials were not provided."}`, http.StatusUnauthorized)
		return
	}

	if h.faults.delay > 0 {
		select {
		case <-time.After(h.faults.delay):
		case <-r.Context().Done():
			return
		}
	}

	if h.roll() < h.faults.failRate {
		h.logger.Info("injecting failure", "remote", r.RemoteAddr)
		http.Error(w, `{"error":"Failed to load analytics"}`, http.StatusInternalServerError)
		return
	}

	doc := h.market.document(time.Now())
	if h.roll() < h.faults.malformedRate {
		h.logger.Info("injecting malformed payload", "remote", r.RemoteAddr)
		doc["totalCreditsOwned"] = "not-a-number"
		delete(doc, "emissionsOffset")
	}

	if wantsCBOR(r.Header.Get("Accept")) {
		body, err := cbor.Marshal(doc)
		if err != nil {
			h.logger.Error("failed to encode CBOR", "error", err)
			http.Error(w, "encode error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/cbor")
		_, _ = w.Write(body)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// wantsCBOR reports whether the Accept header lists application/cbor before
// any JSON type.
func wantsCBOR(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case "application/cbor":
			return true
		case "application/json":
			return false
		}
	}
	return false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
