// Package client is a typed HTTP client for the machine API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// HasCode reports whether err is an APIError with the given code.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type Item struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

func (i Item) String() string {
	return fmt.Sprintf("%s/%d", i.Collection, i.TokenID)
}

type Tier struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Params struct {
	Price        string `json:"price"`
	ActivateAt   int    `json:"activateAt"`
	DeactivateAt int    `json:"deactivateAt"`
	BufferBlocks uint64 `json:"bufferBlocks"`
	MaxBlocks    uint64 `json:"maxBlocks"`
	Tiers        []Tier `json:"tiers"`
	Custodian    string `json:"custodian"`
}

type Status struct {
	Active        bool   `json:"active"`
	ReservoirSize int    `json:"reservoirSize"`
	Height        uint64 `json:"height"`
	TotalSupply   string `json:"totalSupply"`
	Params        Params `json:"params"`
}

type Session struct {
	Account     string `json:"account"`
	Phase       string `json:"phase"`
	CommitBlock uint64 `json:"commitBlock,omitempty"`
	LastDraw    *Item  `json:"lastDraw,omitempty"`
}

type Balance struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type Credits struct {
	Account string `json:"account"`
	Minted  string `json:"minted"`
	Balance string `json:"balance"`
}

type Allowance struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type Draw struct {
	Account string `json:"account"`
	Item    Item   `json:"item"`
}

type idempotencyKey struct{}

// WithIdempotencyKey makes the next mutating call on ctx carry key in the
// Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the server at baseURL. A nil httpClient uses
// one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/machine", nil, &out)
	return out, err
}

func (c *Client) Items(ctx context.Context, offset, limit int) ([]Item, error) {
	var out struct {
		Items []Item `json:"items"`
	}

	path := fmt.Sprintf("/machine/items?offset=%d&limit=%d", offset, limit)
	err := c.do(ctx, http.MethodGet, path, nil, &out)

	return out.Items, err
}

func (c *Client) AcquireCredits(ctx context.Context, account, amount string) (Credits, error) {
	var out Credits
	err := c.do(ctx, http.MethodPost, accountPath(account, "credits"), map[string]string{"amount": amount}, &out)
	return out, err
}

func (c *Client) Contribute(ctx context.Context, account string, item Item) error {
	return c.do(ctx, http.MethodPost, accountPath(account, "items"), item, nil)
}

func (c *Client) Insert(ctx context.Context, account string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, accountPath(account, "insert"), nil, &out)
	return out, err
}

func (c *Client) Crank(ctx context.Context, account string) (uint64, error) {
	var out struct {
		CommitBlock uint64 `json:"commitBlock"`
	}

	err := c.do(ctx, http.MethodPost, accountPath(account, "crank"), nil, &out)

	return out.CommitBlock, err
}

func (c *Client) Reveal(ctx context.Context, account string) (Item, error) {
	var out Draw
	err := c.do(ctx, http.MethodPost, accountPath(account, "reveal"), nil, &out)
	return out.Item, err
}

func (c *Client) Session(ctx context.Context, account string) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodGet, accountPath(account, "session"), nil, &out)
	return out, err
}

func (c *Client) LastDraw(ctx context.Context, account string) (Item, error) {
	var out Draw
	err := c.do(ctx, http.MethodGet, accountPath(account, "last-draw"), nil, &out)
	return out.Item, err
}

func (c *Client) Balance(ctx context.Context, account string) (Balance, error) {
	var out Balance
	err := c.do(ctx, http.MethodGet, accountPath(account, "balance"), nil, &out)
	return out, err
}

func (c *Client) Approve(ctx context.Context, owner, spender, amount string) (Allowance, error) {
	var out Allowance

	body := map[string]string{"spender": spender, "amount": amount}
	err := c.do(ctx, http.MethodPost, accountPath(owner, "approve"), body, &out)

	return out, err
}

func (c *Client) Transfer(ctx context.Context, from, to, amount string) (Balance, error) {
	var out Balance

	body := map[string]string{"to": to, "amount": amount}
	err := c.do(ctx, http.MethodPost, accountPath(from, "transfer"), body, &out)

	return out, err
}

// DevFund mints amount reference tokens to account and approves the
// machine to pull them. Only served by DEV deployments.
func (c *Client) DevFund(ctx context.Context, account, amount string) error {
	body := map[string]string{"account": account, "amount": amount}

	err := c.do(ctx, http.MethodPost, "/dev/reference/mint", body, nil)
	if err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, "/dev/reference/approve", body, nil)
}

// DevMintItem mints a fresh item in collection to account and lets the
// machine move all of the account's items. Only served by DEV deployments.
func (c *Client) DevMintItem(ctx context.Context, account, collection string) (Item, error) {
	err := c.do(ctx, http.MethodPost, "/dev/items/approve-all", map[string]string{"account": account}, nil)
	if err != nil {
		return Item{}, err
	}

	var out Item
	err = c.do(ctx, http.MethodPost, "/dev/items/mint",
		map[string]string{"account": account, "collection": collection}, &out)

	return out, err
}

// Play runs insert, crank and reveal, polling every interval while the
// reveal is too early.
func (c *Client) Play(ctx context.Context, account string, interval time.Duration) (Item, error) {
	_, err := c.Insert(ctx, account)
	if err != nil {
		return Item{}, fmt.Errorf("insert: %w", err)
	}

	_, err = c.Crank(ctx, account)
	if err != nil {
		return Item{}, fmt.Errorf("crank: %w", err)
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		item, err := c.Reveal(ctx, account)
		if err == nil {
			return item, nil
		}

		if !HasCode(err, "too_early") {
			return Item{}, fmt.Errorf("reveal: %w", err)
		}

		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-t.C:
		}
	}
}

func accountPath(account, action string) string {
	return "/accounts/" + url.PathEscape(account) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if key, ok := ctx.Value(idempotencyKey{}).(string); ok && key != "" && method != http.MethodGet {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}

		var e struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}

		if json.Unmarshal(raw, &e) == nil {
			apiErr.Code = e.Code
			apiErr.Message = e.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}

		return apiErr
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
