package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

const DefaultTimeout = 120 * time.Second

// NewClient returns an HTTP client that dials through the SOCKS5 proxy at
// socksAddr, or directly when socksAddr is empty.
func NewClient(socksAddr string) (*http.Client, error) {
	if socksAddr == "" {
		return &http.Client{Timeout: DefaultTimeout}, nil
	}

	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 %s: %w", socksAddr, err)
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		dial = cd.DialContext
	}

	return &http.Client{
		Transport: &http.Transport{DialContext: dial},
		Timeout:   DefaultTimeout,
	}, nil
}
