// Package castatus queries the status endpoint of a Dogtag certificate
// authority.
package castatus

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
)

const (
	// StatusPath is the CA status check endpoint.
	StatusPath = "/ca/admin/ca/getStatus"

	// StatusRunning is the status reported by a CA that serves requests.
	StatusRunning = "running"

	// ProxyPort is used when httpd proxies the CA, BackendPort otherwise.
	ProxyPort   = 443
	BackendPort = 8443

	// maxResponseSize bounds the status document.
	maxResponseSize = 64 * 1024

	userAgent = "platctl"
)

// StatusURL returns the status endpoint URL of the CA on host:port.
// IPv6 literals are bracketed.
func StatusURL(host string, port int) string {
	return "https://" + net.JoinHostPort(host, strconv.Itoa(port)) + StatusPath
}

// Client fetches CA status documents.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client with the given configuration.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With("component", "castatus")

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !cfg.VerifiesTLS(),
	}
	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("castatus: read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("castatus: ca bundle %s: no certificates found", cfg.CABundle)
		}
		tlsConfig.RootCAs = pool
	}
	if tlsConfig.InsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled for CA status checks")
	}

	transport := &http.Transport{
		TLSClientConfig:   tlsConfig,
		DisableKeepAlives: true,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		logger: logger,
	}, nil
}

type xmlResponse struct {
	XMLName xml.Name `xml:"XMLResponse"`
	State   string   `xml:"State"`
	Status  string   `xml:"Status"`
}

// Status fetches url and returns the CA status string, e.g. "running".
// A non-2xx answer is a *StatusError; a body without a Status element is
// a *ParseError.
func (c *Client) Status(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("castatus: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("castatus: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errorFromResponse(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("castatus: read response: %w", err)
	}
	status, err := ParseStatus(body)
	if err != nil {
		return "", err
	}
	c.logger.Debug("CA status", "url", url, "status", status)
	return status, nil
}

// ParseStatus extracts the Status element of an XMLResponse document.
func ParseStatus(body []byte) (string, error) {
	var doc xmlResponse
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", &ParseError{Err: err}
	}
	if doc.Status == "" {
		return "", &ParseError{}
	}
	return doc.Status, nil
}
