package client

import (
	"crypto/tls"
	"net/http"
	"time"
)

// Options configures the HTTP client used to talk to the scan server
type Options struct {
	APIKey   string
	Insecure bool
	Timeout  time.Duration
}

// DefaultTimeout bounds every request to the scan server
const DefaultTimeout = 15 * time.Second

// New creates an HTTP client adding the api key header to every request
func New(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	if opts.APIKey == "" {
		return client
	}

	client.Transport = roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		req = req.Clone(req.Context())
		req.Header.Set("X-Api-Key", opts.APIKey)
		return transport.RoundTrip(req)
	})
	return client
}

// Header returns the headers to attach to non-HTTP transports (websocket handshake)
func Header(opts Options) http.Header {
	header := http.Header{}
	if opts.APIKey != "" {
		header.Set("X-Api-Key", opts.APIKey)
	}
	return header
}

// TLSConfig returns the TLS configuration matching opts
func TLSConfig(opts Options) *tls.Config {
	if !opts.Insecure {
		return nil
	}
	return &tls.Config{InsecureSkipVerify: true}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (rf roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return rf(req)
}
