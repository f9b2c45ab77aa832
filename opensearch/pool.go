package opensearch

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

type poolKey struct {
	timeout  time.Duration
	insecure bool
}

type httpClientPool struct {
	mu      sync.Mutex
	clients map[poolKey]*http.Client
}

var sharedClientPool = &httpClientPool{
	clients: map[poolKey]*http.Client{},
}

func (p *httpClientPool) client(timeout time.Duration, insecure bool) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := poolKey{timeout: timeout, insecure: insecure}
	if existing, ok := p.clients[key]; ok {
		return existing
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if insecure {
		// #nosec G402 -- opt-in via OPENSEARCH_SSL_VERIFY=false for self-signed dev clusters.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
	p.clients[key] = client
	return client
}
