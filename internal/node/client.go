// Package node is the HTTP client for the remote execution platform.
//
// It wraps the platform API at its interface boundary: pipes and their
// output, system (agent) lifecycle, status and log retrieval, bulk
// configuration and environment replace, and dataset management.
package node

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/pipesync/internal/logging"
)

const defaultTimeout = 10 * time.Minute

// Client talks to a single platform node using a bearer token.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     *slog.Logger

	// VerifyPollInterval is the sleep between polls when verifying a
	// posted system config or waiting for a microservice to start.
	VerifyPollInterval time.Duration
}

// New creates a client for the node API rooted at baseURL.
func New(baseURL, token string, skipTLSVerify bool, log *slog.Logger) *Client {
	httpc := &http.Client{Timeout: defaultTimeout}
	if skipTLSVerify {
		httpc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		token:              token,
		httpc:              httpc,
		log:                log,
		VerifyPollInterval: 5 * time.Second,
	}
}

// URL returns the API base URL the client talks to.
func (c *Client) URL() string {
	return c.baseURL
}

// RequestError is a non-2xx platform response.
type RequestError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

// IsNotFound reports whether err is a 404 platform response.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body []byte, contentType, accept string) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	c.log.Log(ctx, logging.LevelTrace, "platform request", "method", method, "url", u)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Method: method,
			URL:    u,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, params, nil, "", "application/json")
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
