package publicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"public-order-engine/internal/menu"
	"public-order-engine/internal/order"
)

const (
	DefaultOrderTimeout = 15 * time.Second
	DefaultMenuTimeout  = 10 * time.Second

	maxBodyBytes = 4 << 20
)

// Client talks to the public ordering endpoints of one upstream API.
type Client struct {
	baseURL      string
	http         *http.Client
	stream       *http.Client
	orderTimeout time.Duration
	menuTimeout  time.Duration
	flavorMarker string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithStreamClient(c *http.Client) Option {
	return func(cl *Client) { cl.stream = c }
}

func WithOrderTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.orderTimeout = d
		}
	}
}

func WithMenuTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.menuTimeout = d
		}
	}
}

func WithFlavorMarker(marker string) Option {
	return func(cl *Client) { cl.flavorMarker = marker }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{},
		stream:       &http.Client{},
		orderTimeout: DefaultOrderTimeout,
		menuTimeout:  DefaultMenuTimeout,
		flavorMarker: menu.DefaultFlavorMarker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(slug string, parts ...string) string {
	return c.baseURL + "/public/" + url.PathEscape(slug) + "/" + strings.Join(parts, "/")
}

func (c *Client) FetchMenu(ctx context.Context, slug string) (menu.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.menuTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(slug, "menu"), nil)
	if err != nil {
		return menu.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return menu.Snapshot{}, transportError("fetch menu", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return menu.Snapshot{}, transportError("fetch menu", 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return menu.Snapshot{}, transportError("fetch menu", resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}

	snap, err := menu.Decode(unwrapData(body), c.flavorMarker)
	if err != nil {
		return menu.Snapshot{}, fmt.Errorf("decode menu: %w", err)
	}
	return snap, nil
}

// OpenMenuStream opens the server-sent event stream announcing menu
// changes. The caller owns the returned body.
func (c *Client) OpenMenuStream(ctx context.Context, slug string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(slug, "menu", "stream"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, transportError("open menu stream", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, transportError("open menu stream", resp.StatusCode, errors.New(resp.Status))
	}
	return resp.Body, nil
}

// CreateOrder posts one submission attempt. The request is cancelled after
// the order timeout. Errors are either *BusinessError or *TransportError.
func (c *Client) CreateOrder(ctx context.Context, slug string, payload order.Payload) (order.ServerOrder, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return order.ServerOrder{}, fmt.Errorf("encode order: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.orderTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(slug, "orders"), bytes.NewReader(body))
	if err != nil {
		return order.ServerOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", payload.ClientOrderID)

	resp, err := c.http.Do(req)
	if err != nil {
		return order.ServerOrder{}, transportError("create order", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return order.ServerOrder{}, transportError("create order", 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var rejection struct {
			Message string `json:"message"`
			Error   any    `json:"error"`
		}
		if jerr := json.Unmarshal(raw, &rejection); jerr != nil {
			return order.ServerOrder{}, transportError("create order", resp.StatusCode, jerr)
		}
		msg := strings.TrimSpace(rejection.Message)
		if msg == "" {
			msg = "The store could not accept this order"
		}
		code, _ := rejection.Error.(string)
		return order.ServerOrder{}, &BusinessError{StatusCode: resp.StatusCode, Code: code, Message: msg}
	}

	var created order.ServerOrder
	if err := json.Unmarshal(unwrapData(raw), &created); err != nil {
		return order.ServerOrder{}, transportError("create order", resp.StatusCode, err)
	}
	return created, nil
}

// unwrapData accepts both bare payloads and the {success, data} envelope.
func unwrapData(body []byte) []byte {
	var envelope struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Success != nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return body
}

func transportError(op string, status int, err error) *TransportError {
	te := &TransportError{Op: op, StatusCode: status, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		te.Timeout = true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		te.Timeout = true
	}
	return te
}
