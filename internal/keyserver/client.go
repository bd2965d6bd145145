// Package keyserver talks to the key and message exchange server.
package keyserver

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

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/user/securemsg/internal/observability/logger"
)

const maxBody = 1 << 20

var (
	// ErrNotFound is returned when the server has no key or message for an address.
	ErrNotFound = errors.New("keyserver: not found")
	// ErrUnexpectedStatus is returned for non-2xx responses other than 404.
	ErrUnexpectedStatus = errors.New("keyserver: unexpected status")
)

// Client is safe for concurrent use.
type Client struct {
	base  *url.URL
	http  *http.Client
	cache *gocache.Cache
	group singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCacheTTL caches fetched keys for ttl. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = gocache.New(ttl, 2*ttl)
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:  u,
		http:  &http.Client{Timeout: 30 * time.Second},
		cache: gocache.New(5*time.Minute, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PutKey publishes a public key for email.
func (c *Client) PutKey(ctx context.Context, email string, rec KeyRecord) error {
	if err := c.put(ctx, "Key", email, rec); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Delete(email)
	}
	return nil
}

// GetKey fetches the public key published for email.
func (c *Client) GetKey(ctx context.Context, email string) (KeyRecord, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(email); ok {
			return v.(KeyRecord), nil
		}
	}

	v, err, shared := c.group.Do(email, func() (any, error) {
		var rec KeyRecord
		if err := c.get(ctx, "Key", email, &rec); err != nil {
			return nil, err
		}
		if rec.Key == "" {
			return nil, fmt.Errorf("%w: key for %s", ErrNotFound, email)
		}
		if c.cache != nil {
			c.cache.SetDefault(email, rec)
		}
		return rec, nil
	})
	if err != nil {
		return KeyRecord{}, err
	}
	if shared {
		logger.Named("keyserver").Debug("shared key lookup", logger.Email(email))
	}
	return v.(KeyRecord), nil
}

// PutMessage stores a message for email.
func (c *Client) PutMessage(ctx context.Context, email string, msg Message) error {
	return c.put(ctx, "Message", email, msg)
}

// GetMessage fetches the message waiting for email.
func (c *Client) GetMessage(ctx context.Context, email string) (Message, error) {
	var msg Message
	if err := c.get(ctx, "Message", email, &msg); err != nil {
		return Message{}, err
	}
	if msg.Content == "" {
		return Message{}, fmt.Errorf("%w: message for %s", ErrNotFound, email)
	}
	return msg, nil
}

func (c *Client) endpoint(resource, email string) string {
	return c.base.JoinPath(resource, email).String()
}

func (c *Client) put(ctx context.Context, resource, email string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", strings.ToLower(resource), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(resource, email), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: PUT %s/%s: %d", ErrUnexpectedStatus, resource, email, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, resource, email string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(resource, email), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s for %s", ErrNotFound, strings.ToLower(resource), email)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: GET %s/%s: %d", ErrUnexpectedStatus, resource, email, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read %s response: %w", strings.ToLower(resource), err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: %s for %s", ErrNotFound, strings.ToLower(resource), email)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", strings.ToLower(resource), err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	log := logger.From(req.Context()).Named("keyserver")
	if err != nil {
		log.Warn("request failed", logger.Op(req.Method), logger.Path(req.URL.Path), logger.Err(err))
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	log.Debug("request done",
		logger.Op(req.Method),
		logger.Path(req.URL.Path),
		logger.Duration(time.Since(start)),
	)
	return resp, nil
}
