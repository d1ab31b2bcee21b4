package api

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type Connection interface {
	Request(ctx context.Context, endpoint *url.URL) (*http.Response, error)
}

type ClientHost struct {
	client *http.Client
	scheme string
	host   string
}

type Client struct {
	connection Connection
	apiKey     string
}

func (conn *ClientHost) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	endpoint.Scheme = conn.scheme
	endpoint.Host = conn.host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn.client.Do(req)
}

func ClientFactory(host string, apiKey string, timeout time.Duration) *Client {
	return NewClient(&ClientHost{
		client: &http.Client{Timeout: timeout},
		scheme: schemeHttps,
		host:   host,
	}, apiKey)
}

// NewClient wraps an existing connection, e.g. one pointed at a local test server.
func NewClient(connection Connection, apiKey string) *Client {
	return &Client{
		connection: connection,
		apiKey:     apiKey,
	}
}
