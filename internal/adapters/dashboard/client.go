package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultBaseURL        = "https://mlab.com"
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 4 << 20
)

type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// Client hands out dashboard sessions, each with its own cookie jar.
type Client struct {
	baseURL   *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	log       zerolog.Logger
}

var _ ports.Dashboard = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	rawURL := cfg.BaseURL
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("dashboard base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("dashboard base url host is required")
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:   parsed,
		timeout:   timeout,
		transport: transport,
		log:       cfg.Logger,
	}, nil
}

func (c *Client) NewSession() (ports.DashboardSession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Session{
		baseURL: c.baseURL,
		http: &http.Client{
			Jar:       jar,
			Timeout:   c.timeout,
			Transport: c.transport,
			// Success of a form post is decided by where the dashboard redirects,
			// so redirects are surfaced instead of followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: c.log,
	}, nil
}
