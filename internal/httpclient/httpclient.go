// Package httpclient constructs the outbound HTTP clients used for card
// delivery. It can build clients that either validate TLS certificates or
// bypass validation entirely for test environments with self-signed
// certificates.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Fixed transport configuration baked into every client.
// Request-level timeouts and cancellation are the caller's responsibility.
const (
	connectTimeout      = 10 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
	maxIdleConns        = 100
	maxIdleConnsPerHost = 10
	idleConnTimeout     = 90 * time.Second
)

// ProxyFunc selects the proxy (if any) for a given outbound request.
// A nil ProxyFunc means the process-wide default proxy configuration
// (HTTP_PROXY / HTTPS_PROXY / NO_PROXY environment variables).
type ProxyFunc func(*http.Request) (*url.URL, error)

// systemCertPool is swapped in tests to simulate an unavailable trust store.
var systemCertPool = x509.SystemCertPool

// BuildError reports a failure to assemble the transport security context.
// It is fatal and non-retryable: the runtime environment is broken, so the
// caller must abort rather than treat it as a transient network failure.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("httpclient: build transport security context: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// New returns a client with standard certificate validation enabled.
// proxy may be nil to use the process-wide default proxy configuration.
func New(proxy ProxyFunc) (*http.Client, error) {
	return NewWithOptions(proxy, false)
}

// NewWithOptions returns a client configured per the given options. When
// bypassVerification is true the client accepts any certificate chain from
// any peer without validation.
//
// Bypassing verification is unsafe for production. It exists solely for test
// environments where the webhook endpoint presents a self-signed or otherwise
// untrusted certificate.
//
// Every client speaks HTTP/1.1, dials with a 10 second connect timeout, and
// follows redirects normally. The returned client is safe for concurrent use
// and is intended to be built once and reused across requests.
func NewWithOptions(proxy ProxyFunc, bypassVerification bool) (*http.Client, error) {
	tlsCfg, err := newTLSConfig(bypassVerification)
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	transport := &http.Transport{
		Proxy: proxyOrDefault(proxy),
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,

		// Pin HTTP/1.1: a non-nil empty TLSNextProto disables the
		// transport's automatic h2 upgrade.
		ForceAttemptHTTP2: false,
		TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	// http.Client's default CheckRedirect follows up to 10 redirects,
	// which is the standard behaviour we want.
	return &http.Client{Transport: transport}, nil
}

// newTLSConfig builds the TLS configuration for the transport. With
// bypassVerification false it loads the system trust store; any failure to
// do so is surfaced to the caller as a BuildError.
func newTLSConfig(bypassVerification bool) (*tls.Config, error) {
	if bypassVerification {
		return insecureTLSConfig(AcceptAllTrustPolicy{}), nil
	}

	pool, err := systemCertPool()
	if err != nil {
		return nil, fmt.Errorf("load system trust store: %w", err)
	}
	return &tls.Config{RootCAs: pool}, nil
}

func proxyOrDefault(proxy ProxyFunc) func(*http.Request) (*url.URL, error) {
	if proxy == nil {
		return http.ProxyFromEnvironment
	}
	return proxy
}
