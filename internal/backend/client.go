// Package backend is the typed client for the fleet backend's REST API. All
// upstream HTTP lives here; consumers only see domain types and raw events.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/wanfrev/machinehub-agent/internal/domain"
	"github.com/wanfrev/machinehub-agent/internal/event"
)

var (
	ErrUnauthorized = errors.New("backend rejected credentials")
	ErrUnavailable  = errors.New("backend unavailable")
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EventsQuery mirrors the backend's history filters. Zero time values mean
// "no bound".
type EventsQuery struct {
	Page      int
	PageSize  int
	StartDate time.Time
	EndDate   time.Time
}

type EventsPage struct {
	Events     []event.RawEvent `json:"events"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

func (c *Client) Events(ctx context.Context, q EventsQuery) (*EventsPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if !q.StartDate.IsZero() {
		params.Set("startDate", q.StartDate.UTC().Format(time.RFC3339))
	}
	if !q.EndDate.IsZero() {
		params.Set("endDate", q.EndDate.UTC().Format(time.RFC3339))
	}

	var page EventsPage
	if err := c.do(ctx, http.MethodGet, "/api/iot/events", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// LatestEvent returns the single most recent event, or nil when the backend
// has none. Used only as the push fallback.
func (c *Client) LatestEvent(ctx context.Context) (*event.RawEvent, error) {
	var resp struct {
		Event  *event.RawEvent  `json:"event"`
		Events []event.RawEvent `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/iot/events/latest", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Event != nil {
		return resp.Event, nil
	}
	if len(resp.Events) > 0 {
		return &resp.Events[0], nil
	}
	return nil, nil
}

func (c *Client) Machines(ctx context.Context) ([]domain.Machine, error) {
	var machines []domain.Machine
	if err := c.do(ctx, http.MethodGet, "/api/machines", nil, nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// PowerLogs fetches a machine's on/off history for a local-day range
// (YYYY-MM-DD bounds, inclusive).
func (c *Client) PowerLogs(ctx context.Context, machineID, startDate, endDate string) ([]domain.PowerLog, error) {
	params := url.Values{}
	if startDate != "" {
		params.Set("startDate", startDate)
	}
	if endDate != "" {
		params.Set("endDate", endDate)
	}

	var logs []domain.PowerLog
	path := fmt.Sprintf("/api/machines/%s/power-logs", url.PathEscape(machineID))
	if err := c.do(ctx, http.MethodGet, path, params, nil, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *Client) CoinValues(ctx context.Context) (map[string]float64, error) {
	var values map[string]float64
	if err := c.do(ctx, http.MethodGet, "/api/coin-values", nil, nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Client) SetCoinValue(ctx context.Context, coinType string, value float64) error {
	body := map[string]any{"type": coinType, "value": value}
	path := fmt.Sprintf("/api/coin-values/%s", url.PathEscape(coinType))
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

func (c *Client) VapidPublicKey(ctx context.Context) (string, error) {
	var resp struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/push/vapid-public", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Key, nil
}

func (c *Client) SaveSubscription(ctx context.Context, sub domain.PushSubscription) error {
	return c.do(ctx, http.MethodPost, "/api/push/subscribe", nil, sub, nil)
}

func (c *Client) DeleteSubscription(ctx context.Context, sub domain.PushSubscription) error {
	return c.do(ctx, http.MethodPost, "/api/push/unsubscribe", nil, sub, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s %s returned %d", ErrUnavailable, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
