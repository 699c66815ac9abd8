// Package backend calls the remote attendance verification service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendclient/internal/fault"
	"attendclient/internal/metrics"
	"attendclient/internal/session"
)

const maxResponseBytes = 4 << 20

// Client talks to the verification backend on behalf of the session in Sessions.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	Sessions *session.Store
	Metrics  *metrics.Metrics
}

// New creates a client. A zero timeout leaves requests bounded only by their context.
func New(baseURL string, sessions *session.Store, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Sessions: sessions,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type requestIDKey struct{}

// WithRequestID makes calls made with ctx carry id as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d", e.Code)
}

type call struct {
	op          string
	method      string
	path        string
	query       url.Values
	contentType string
	body        []byte
	auth        bool
}

// do performs one request and returns the response body. Authenticated calls
// fail before any network I/O when no credential is held.
func (c *Client) do(ctx context.Context, r call) ([]byte, error) {
	op := "backend." + r.op
	var credential string
	if r.auth {
		cred, err := c.Sessions.Credential()
		if err != nil {
			return nil, err
		}
		credential = cred
	}

	u := c.BaseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fault.Wrap(fault.TransportError, op, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID(ctx))
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Metrics.ObserveRequest(r.op, 0)
		return nil, fault.Wrap(fault.TransportError, op, fmt.Errorf("backend request failed: %w", err))
	}
	defer resp.Body.Close()
	c.Metrics.ObserveRequest(r.op, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fault.Wrap(fault.TransportError, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 300 {
		detail := detailOf(data)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		serr := &StatusError{Code: resp.StatusCode, Detail: detail}
		if resp.StatusCode == http.StatusUnauthorized && r.auth {
			c.Sessions.Clear()
			return data, &fault.Error{Kind: fault.Unauthenticated, Op: op, Message: detail, Err: serr}
		}
		return data, &fault.Error{Kind: fault.TransportError, Op: op, Message: detail, Err: serr}
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, r call, in, out any) error {
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fault.Wrap(fault.Other, "backend."+r.op, err)
		}
		r.body = data
		r.contentType = "application/json"
	}
	data, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fault.Wrap(fault.TransportError, "backend."+r.op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// detailOf extracts the "detail" message of an error body. Validation errors
// that carry a list of objects yield the first "msg".
func detailOf(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &list); err == nil && len(list) > 0 && list[0].Msg != "" {
		return list[0].Msg
	}
	return string(body.Detail)
}
