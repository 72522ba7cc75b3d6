package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Order is an order as returned by the orders api.
type Order map[string]any

func (o Order) ID() string {
	id, _ := o["id"].(string)
	return id
}

// Field formats an attribute for display. Missing attributes are blank.
func (o Order) Field(name string) string {
	v, ok := o[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// DeletePath is the frontend form action that deletes the order.
func (o Order) DeletePath() string {
	return "/orders/" + url.PathEscape(o.ID()) + "/delete"
}

// Client talks to the orders api at a base url such as
// https://abc123.execute-api.us-east-1.amazonaws.com.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

func (c *Client) List(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Put(ctx context.Context, order Order) (Order, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	var out Order
	if err := c.do(ctx, http.MethodPut, "/orders", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
