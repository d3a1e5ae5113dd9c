// Package huay is the REST client for the lottery backend's member API: open
// periods, payout configs, per-number rate checks and bulk bet placement.
package huay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/lottobet/internal/crypto"
	"github.com/alanyoungcy/lottobet/internal/domain"
)

// Client talks to the backend on behalf of a member. The member's bearer
// token is passed on every call; the client never stores it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       *crypto.HMACAuth
	checkLimit *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHMAC signs every request with the agent credentials.
func WithHMAC(auth *crypto.HMACAuth) Option {
	return func(c *Client) { c.auth = auth }
}

// WithCheckRate caps outbound rate checks to rps with the given burst.
func WithCheckRate(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.checkLimit = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// NewClient creates a client for baseURL, e.g.
// "https://api.example.com/api/v1/member".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CheckMultiply resolves the effective payout for one number.
func (c *Client) CheckMultiply(ctx context.Context, token string, rc domain.RateCheck) (domain.RateQuote, error) {
	if c.checkLimit != nil {
		if err := c.checkLimit.Wait(ctx); err != nil {
			return domain.RateQuote{}, fmt.Errorf("huay: check multiply: %w", err)
		}
	}

	req := checkMultiplyRequest{
		HuayID:     rc.HuayID,
		StockType:  rc.StockType,
		HuayOption: rc.HuayOption,
		PoyNumber:  rc.PoyNumber,
		Multiply:   rc.Multiply,
		Value:      rc.Value,
	}
	body, err := c.do(ctx, token, http.MethodPost, "/lottery/check-multiply", req)
	if err != nil {
		return domain.RateQuote{}, fmt.Errorf("huay: check multiply %s: %w", rc.PoyNumber, err)
	}

	var resp checkMultiplyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.RateQuote{}, fmt.Errorf("huay: decode check multiply: %w", err)
	}
	if resp.Multiply == nil || *resp.Multiply <= 0 {
		return domain.RateQuote{}, fmt.Errorf("huay: check multiply %s: malformed response: missing multiply", rc.PoyNumber)
	}
	return resp.toQuote(), nil
}

// PlaceBulkBets submits every bet of a poy in one request and returns the
// backend's poy id. The id may be empty when the backend omits it.
func (c *Client) PlaceBulkBets(ctx context.Context, token string, b domain.BulkBet) (string, error) {
	req := bulkBetRequest{
		StockID: stockIDValue(b.StockID),
		Bets:    b.Bets,
		Note:    b.Note,
	}
	body, err := c.do(ctx, token, http.MethodPost, "/lottery/bet/bulk", req)
	if err != nil {
		return "", fmt.Errorf("huay: place bulk bets: %w", err)
	}

	var resp bulkBetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("huay: decode bulk bets: %w", err)
	}
	return idString(resp.PoyID), nil
}

// OpenPeriods lists the periods currently accepting bets, optionally for a
// single lottery code.
func (c *Client) OpenPeriods(ctx context.Context, token, lotteryCode string) ([]domain.Period, error) {
	path := "/lottery/periods"
	if lotteryCode != "" {
		path += "?" + url.Values{"lottery_code": {lotteryCode}}.Encode()
	}

	body, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("huay: get periods: %w", err)
	}

	var rows []openPeriod
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("huay: decode periods: %w", err)
	}
	out := make([]domain.Period, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Period finds one open period by id.
func (c *Client) Period(ctx context.Context, token, periodID string) (domain.Period, error) {
	periods, err := c.OpenPeriods(ctx, token, "")
	if err != nil {
		return domain.Period{}, err
	}
	for _, p := range periods {
		if p.ID == periodID {
			return p, nil
		}
	}
	return domain.Period{}, fmt.Errorf("huay: period %s: %w", periodID, domain.ErrNotFound)
}

// Rates returns the default, active payout configs of a lottery.
func (c *Client) Rates(ctx context.Context, token string, lotteryID int64) ([]domain.LotteryRate, error) {
	path := fmt.Sprintf("/lottery/huay-config/%d?type=1", lotteryID)

	body, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("huay: get rates %d: %w", lotteryID, err)
	}

	var rows []huayConfig
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("huay: decode rates: %w", err)
	}
	out := make([]domain.LotteryRate, 0, len(rows))
	for _, r := range rows {
		if r.Default == 1 && r.Status == 1 {
			out = append(out, r.toRate())
		}
	}
	return out, nil
}

// MyBets returns a page of the member's bet history and the total count.
func (c *Client) MyBets(ctx context.Context, token string, q domain.BetQuery) ([]domain.MyBet, int64, error) {
	params := url.Values{}
	if q.LotteryCode != "" {
		params.Set("lottery_code", q.LotteryCode)
	}
	if q.PeriodID != "" {
		params.Set("period_id", q.PeriodID)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/lottery/my-bets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("huay: get my bets: %w", err)
	}

	var resp struct {
		Bets  []myBet `json:"bets"`
		Total int64   `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("huay: decode my bets: %w", err)
	}
	out := make([]domain.MyBet, 0, len(resp.Bets))
	for _, b := range resp.Bets {
		out = append(out, b.toDomain())
	}
	return out, resp.Total, nil
}

// CancelBet cancels one pending bet and returns the backend's message.
func (c *Client) CancelBet(ctx context.Context, token, betID string) (string, error) {
	path := fmt.Sprintf("/lottery/bet/%s/cancel", url.PathEscape(betID))

	body, err := c.do(ctx, token, http.MethodPost, path, nil)
	if err != nil {
		return "", fmt.Errorf("huay: cancel bet %s: %w", betID, err)
	}
	return gjson.GetBytes(body, "message").String(), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do builds, signs, sends and reads a request, returning the unwrapped
// "data" member of the backend envelope (or the whole body when there is no
// envelope).
func (c *Client) do(ctx context.Context, token, method, path string, reqBody any) ([]byte, error) {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.auth.Enabled() {
		for k, v := range c.auth.Headers(method, path, string(payload)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return unwrapData(respBody), nil
}

// unwrapData strips the {"success":..,"data":..} envelope when present.
func unwrapData(body []byte) []byte {
	if data := gjson.GetBytes(body, "data"); data.Exists() {
		return []byte(data.Raw)
	}
	return body
}
