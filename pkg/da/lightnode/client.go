// Package lightnode speaks the celestia-node JSON-RPC blob and header modules, and ships an
// in-memory light node for development and tests.
package lightnode

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"golang.org/x/net/http2"
)

// Transport selects the HTTP wire variant of the JSON-RPC connection.
type Transport int

const (
	// TransportHTTP1 posts every call over HTTP/1.1.
	TransportHTTP1 Transport = iota
	// TransportHTTP2 multiplexes calls over a single cleartext HTTP/2 (h2c) connection.
	TransportHTTP2
)

func (t Transport) String() string {
	if t == TransportHTTP1 {
		return "http1"
	}
	return "http2"
}

// Client dials the light node "blob" and "header" namespaces.
type Client struct {
	Blob   BlobAPI
	Header HeaderAPI

	transport Transport
	closer    multiClientCloser
}

// Transport returns the wire variant the client was built with.
func (c *Client) Transport() Transport {
	return c.transport
}

// Close closes the underlying JSON-RPC connections.
func (c *Client) Close() {
	if c != nil {
		c.closer.closeAll()
	}
}

// multiClientCloser closes clients across multiple namespaces.
type multiClientCloser struct {
	closers []jsonrpc.ClientCloser
}

func (m *multiClientCloser) register(closer jsonrpc.ClientCloser) {
	m.closers = append(m.closers, closer)
}

func (m *multiClientCloser) closeAll() {
	for _, closer := range m.closers {
		closer()
	}
	m.closers = nil
}

// NewClient connects to the light node RPC endpoint at addr using the given transport.
// requestTimeout bounds every single RPC call; zero means no bound.
func NewClient(ctx context.Context, addr, token string, transport Transport, requestTimeout time.Duration) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	httpClient := newHTTPClient(transport, requestTimeout)

	cl := &Client{transport: transport}
	modules := map[string]interface{}{
		"blob":   &cl.Blob.Internal,
		"header": &cl.Header.Internal,
	}
	for name, module := range modules {
		closer, err := jsonrpc.NewMergeClient(ctx, addr, name, []interface{}{module}, header,
			jsonrpc.WithHTTPClient(httpClient),
		)
		if err != nil {
			cl.closer.closeAll()
			return nil, fmt.Errorf("failed to connect to %s namespace: %w", name, err)
		}
		cl.closer.register(closer)
	}

	return cl, nil
}

func newHTTPClient(transport Transport, timeout time.Duration) *http.Client {
	if transport == TransportHTTP1 {
		return &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
