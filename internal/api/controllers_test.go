package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dca-core/internal/engine"
	"dca-core/internal/events"
	"dca-core/internal/monitor"
	"dca-core/pkg/db"
	"dca-core/pkg/exchange"

	"github.com/shopspring/decimal"
)

// idleExchange returns one flat candle series so the engine loop stays
// quiet during API tests.
type idleExchange struct{}

func (idleExchange) FetchCandles(_ context.Context, _, _ string, limit int) ([]exchange.Candle, error) {
	out := make([]exchange.Candle, limit)
	for i := range out {
		px := decimal.NewFromInt(1000)
		out[i] = exchange.Candle{Timestamp: int64(i), Open: px, High: px, Low: px, Close: px}
	}
	return out, nil
}

func (idleExchange) FetchBalances(context.Context) ([]exchange.Balance, error) { return nil, nil }

func (idleExchange) SubmitOrder(context.Context, exchange.OrderRequest) (*exchange.Order, error) {
	return nil, nil
}

func (idleExchange) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	cfg := engine.DefaultConfig()
	cfg.LoopInterval = 5 * time.Millisecond
	cfg.PausedInterval = 2 * time.Millisecond
	cfg.ErrorBackoff = 2 * time.Millisecond

	client := idleExchange{}
	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	eng := engine.New(cfg, client, bus, metrics, database)
	t.Cleanup(func() { eng.Stop() })

	meta := SystemMeta{
		Symbol:          "BTC-CLP",
		Timeframe:       "1h",
		UseSimExchange:  true,
		DefaultStrategy: "smart_dca",
		Version:         "test",
	}
	return NewServer(eng, bus, database, client, metrics, meta, "test-secret")
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func authToken(t *testing.T, s *Server) string {
	t.Helper()

	creds := map[string]string{"email": "trader@example.com", "password": "hunter22"}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("register: status %d: %s", w.Code, w.Body.String())
	}

	w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	return resp.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/bot/status", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}

	w = doJSON(t, s, http.MethodGet, "/api/bot/status", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", w.Code)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/bot/status", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status with token = %d: %s", w.Code, w.Body.String())
	}

	// Duplicate registration conflicts.
	creds := map[string]string{"email": "trader@example.com", "password": "other"}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status = %d, want 409", w.Code)
	}

	// Wrong password.
	bad := map[string]string{"email": "trader@example.com", "password": "wrong"}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status = %d, want 401", w.Code)
	}
}

func TestStartRealTradingDisabled(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	paper := false
	w := doJSON(t, s, http.MethodPost, "/api/bot/start", token, map[string]any{
		"strategy":      "smart_dca",
		"paper_trading": &paper,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, http.MethodGet, "/api/bot/status", token, nil)
	var status engine.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.State != engine.StateStopped {
		t.Fatalf("state = %s, want stopped", status.State)
	}
}

func TestBotLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/api/bot/start", token, map[string]any{"strategy": "smart_dca"})
	if w.Code != http.StatusOK {
		t.Fatalf("start: status = %d: %s", w.Code, w.Body.String())
	}

	// Second start conflicts.
	if w := doJSON(t, s, http.MethodPost, "/api/bot/start", token, nil); w.Code != http.StatusConflict {
		t.Fatalf("double start: status = %d, want 409", w.Code)
	}

	if w := doJSON(t, s, http.MethodPost, "/api/bot/pause", token, nil); w.Code != http.StatusOK {
		t.Fatalf("pause: status = %d", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/bot/pause", token, nil); w.Code != http.StatusConflict {
		t.Fatalf("double pause: status = %d, want 409", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/bot/resume", token, nil); w.Code != http.StatusOK {
		t.Fatalf("resume: status = %d", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/api/bot/stop", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stop: status = %d", w.Code)
	}
	var status engine.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.State != engine.StateStopped {
		t.Fatalf("state = %s, want stopped", status.State)
	}
}

func TestStartUnknownStrategy(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	w := doJSON(t, s, http.MethodPost, "/api/bot/start", token, map[string]any{"strategy": "martingale"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestListStrategies(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/bot/strategies", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Strategies []struct {
			ID string `json:"id"`
		} `json:"strategies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Strategies) != 2 {
		t.Fatalf("strategies = %d, want 2", len(resp.Strategies))
	}
}

func TestPerformanceWithoutSession(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	if w := doJSON(t, s, http.MethodGet, "/api/portfolio/performance", token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	// Trades fall back to the (empty) audit log.
	w := doJSON(t, s, http.MethodGet, "/api/trades", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trades: status = %d", w.Code)
	}
}

func TestMarketCandles(t *testing.T) {
	s := newTestServer(t)
	token := authToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/market/candles?limit=10", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Candles []exchange.Candle `json:"candles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Candles) != 10 {
		t.Fatalf("candles = %d, want 10", len(resp.Candles))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap monitor.MetricsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
