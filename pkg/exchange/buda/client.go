// Package buda implements exchange.Client against the Buda.com REST API.
package buda

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dca-core/pkg/exchange"
)

const defaultBaseURL = "https://www.buda.com/api/v2"

// Client talks to Buda. Public endpoints work without credentials;
// balances and orders require an API key/secret pair.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	nonce     func() string
}

// New creates a Buda client. Key and secret may be empty for market-data-only use.
func New(apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 10 * time.Second},
		nonce:     func() string { return strconv.FormatInt(time.Now().UnixNano()/1000, 10) },
	}
}

// marketID converts "BTC-CLP" to Buda's lowercase market id "btc-clp".
func marketID(symbol string) string {
	return strings.ToLower(symbol)
}

// timeframeMinutes maps common timeframe strings to Buda's period parameter.
func timeframeMinutes(tf string) int {
	switch strings.ToLower(tf) {
	case "1m":
		return 1
	case "5m":
		return 5
	case "15m":
		return 15
	case "1h":
		return 60
	case "4h":
		return 240
	case "1d":
		return 1440
	default:
		return 60
	}
}

// pair is Buda's ["value", "CURRENCY"] amount encoding.
type pair struct {
	Value decimal.Decimal
}

func (p *pair) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("buda: empty amount pair")
	}
	v, err := decimal.NewFromString(raw[0])
	if err != nil {
		return fmt.Errorf("buda: parse amount %q: %w", raw[0], err)
	}
	p.Value = v
	return nil
}

// FetchCandles pulls OHLC bars for the market, oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]exchange.Candle, error) {
	q := url.Values{}
	q.Set("period", strconv.Itoa(timeframeMinutes(timeframe)))
	q.Set("limit", strconv.Itoa(limit))
	path := fmt.Sprintf("/markets/%s/ohlc", marketID(symbol))

	var resp struct {
		Candles []struct {
			Timestamp int64  `json:"timestamp"`
			Open      string `json:"open"`
			High      string `json:"high"`
			Low       string `json:"low"`
			Close     string `json:"close"`
			Volume    string `json:"volume"`
		} `json:"candles"`
	}
	if err := c.public(ctx, path, q, &resp); err != nil {
		return nil, err
	}

	candles := make([]exchange.Candle, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		candle, err := parseCandle(raw.Timestamp, raw.Open, raw.High, raw.Low, raw.Close, raw.Volume)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandle(ts int64, open, high, low, closePx, volume string) (exchange.Candle, error) {
	fields := [5]string{open, high, low, closePx, volume}
	parsed := [5]decimal.Decimal{}
	for i, s := range fields {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return exchange.Candle{}, fmt.Errorf("buda: parse candle field %q: %w", s, err)
		}
		parsed[i] = v
	}
	return exchange.Candle{
		Timestamp: ts,
		Open:      parsed[0],
		High:      parsed[1],
		Low:       parsed[2],
		Close:     parsed[3],
		Volume:    parsed[4],
	}, nil
}

// FetchBalances lists account balances. Requires credentials.
func (c *Client) FetchBalances(ctx context.Context) ([]exchange.Balance, error) {
	var resp struct {
		Balances []struct {
			ID              string `json:"id"`
			Amount          pair   `json:"amount"`
			AvailableAmount pair   `json:"available_amount"`
			FrozenAmount    pair   `json:"frozen_amount"`
		} `json:"balances"`
	}
	if err := c.private(ctx, http.MethodGet, "/balances", nil, &resp); err != nil {
		return nil, err
	}

	balances := make([]exchange.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		balances = append(balances, exchange.Balance{
			Currency:  strings.ToUpper(b.ID),
			Available: b.AvailableAmount.Value,
			Frozen:    b.FrozenAmount.Value,
			Total:     b.Amount.Value,
		})
	}
	return balances, nil
}

// SubmitOrder places an order on the market. Requires credentials.
func (c *Client) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	body := map[string]any{
		"type":       orderSide(req.Side),
		"price_type": string(req.Type),
		"amount":     req.Amount.String(),
	}
	if req.Type == exchange.OrderTypeLimit {
		body["limit"] = req.Price.String()
	}
	path := fmt.Sprintf("/markets/%s/orders", marketID(req.Symbol))

	var resp struct {
		Order struct {
			ID     int64  `json:"id"`
			State  string `json:"state"`
			Amount pair   `json:"amount"`
			Limit  *pair  `json:"limit"`
		} `json:"order"`
	}
	if err := c.private(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	order := &exchange.Order{
		ID:     strconv.FormatInt(resp.Order.ID, 10),
		Symbol: req.Symbol,
		Side:   req.Side,
		Amount: resp.Order.Amount.Value,
		Status: resp.Order.State,
	}
	if resp.Order.Limit != nil {
		order.Price = resp.Order.Limit.Value
	}
	return order, nil
}

// Close is a no-op; the client holds no persistent connection.
func (c *Client) Close() error { return nil }

// orderSide maps buy/sell to Buda's Bid/Ask vocabulary.
func orderSide(s exchange.Side) string {
	if s == exchange.SideSell {
		return "Ask"
	}
	return "Bid"
}

func (c *Client) public(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) private(ctx context.Context, method, path string, body map[string]any, out any) error {
	if c.apiKey == "" || c.apiSecret == "" {
		return fmt.Errorf("buda: %s %s requires API credentials", method, path)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("buda: encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	nonce := c.nonce()
	req.Header.Set("X-SBTC-APIKEY", c.apiKey)
	req.Header.Set("X-SBTC-NONCE", nonce)
	req.Header.Set("X-SBTC-SIGNATURE", c.sign(method, "/api/v2"+path, payload, nonce))

	return c.do(req, out)
}

// sign computes the HMAC-SHA384 request signature Buda expects:
// "{method} {path} {base64 body} {nonce}" with the body segment omitted
// when there is no body.
func (c *Client) sign(method, path string, body []byte, nonce string) string {
	parts := []string{method, path}
	if len(body) > 0 {
		parts = append(parts, base64.StdEncoding.EncodeToString(body))
	}
	parts = append(parts, nonce)

	mac := hmac.New(sha512.New384, []byte(c.apiSecret))
	mac.Write([]byte(strings.Join(parts, " ")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("buda: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("buda: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("buda: decode response: %w", err)
	}
	return nil
}
