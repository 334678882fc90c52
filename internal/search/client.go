// Package search is the cluster collaborator: it executes profiled
// queries against an OpenSearch/Elasticsearch endpoint and hands the raw
// response text to the analysis pipeline. It performs no analysis itself.
package search

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
)

const (
	defaultTimeout    = 30 * time.Second
	bodyExcerptLimit  = 512
	maxResponseLength = 32 << 20
)

var defaultTransport http.RoundTripper = &http.Transport{
	MaxIdleConnsPerHost:   10,
	ResponseHeaderTimeout: 10 * time.Second,
	DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
}

// FetchError reports a failed cluster exchange: transport errors carry a
// zero status code, non-200 responses carry the status and a bounded body
// excerpt.
type FetchError struct {
	StatusCode  int
	BodyExcerpt string
	Err         error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("cluster returned HTTP %d: %s", e.StatusCode, e.BodyExcerpt)
	}
	return fmt.Sprintf("cluster request failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config carries the connection settings for one cluster.
type Config struct {
	Endpoint           string
	Index              string
	Username           string
	Password           string
	Timeout            time.Duration
	InsecureSkipVerify bool

	// Transport overrides the default HTTP transport, used for
	// instrumentation wrapping and tests.
	Transport http.RoundTripper
}

// Client executes profiled searches against one cluster.
type Client struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("cluster endpoint is required")
	}

	transport := cfg.Transport
	if transport == nil {
		transport = defaultTransport
	}
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 10 * time.Second,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		}
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{endpoint},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("new cluster client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		es:      es,
		index:   strings.TrimSpace(cfg.Index),
		timeout: timeout,
	}, nil
}

// ProfileSearch executes the caller's query document against index with
// profiling forced on and per-phase timing requested, returning the raw
// response body. The caller's query is parsed so the profile flag always
// wins; an unparseable query fails before any network traffic.
func (c *Client) ProfileSearch(ctx context.Context, index, query string) (string, error) {
	if strings.TrimSpace(index) == "" {
		index = c.index
	}
	if strings.TrimSpace(index) == "" {
		return "", fmt.Errorf("search index is required")
	}

	body, err := forceProfile(query)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		"/"+index+"/_search?phase_took=true",
		strings.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.es.Perform(req)
	if err != nil {
		return "", &FetchError{Err: err}
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseLength))
	if err != nil {
		return "", &FetchError{StatusCode: res.StatusCode, Err: err}
	}

	if res.StatusCode != http.StatusOK {
		return "", &FetchError{
			StatusCode:  res.StatusCode,
			BodyExcerpt: bodyExcerpt(payload),
		}
	}
	return string(payload), nil
}

// forceProfile parses the caller-supplied query document and sets the
// profile flag, preserving everything else.
func forceProfile(query string) (string, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		trimmed = "{}"
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return "", fmt.Errorf("query body is not valid JSON: %w", err)
	}
	doc["profile"] = true

	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode query body: %w", err)
	}
	return string(encoded), nil
}

func bodyExcerpt(body []byte) string {
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > bodyExcerptLimit {
		excerpt = excerpt[:bodyExcerptLimit]
	}
	return excerpt
}
