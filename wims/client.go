package wims

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ansel1/merry"
)

const DefaultService = "moodle"

// Config is the session descriptor of one client. It is copied on NewClient.
type Config struct {
	BaseURL       string
	Secret        string
	Service       string
	TrustAllCerts bool
	Debug         bool
}

// Client talks to the adm/raw module of one WIMS server.
type Client struct {
	cfg        Config
	secure     bool
	httpClient *http.Client
	sessions   *sessionURLCache
	newCode    func() string
}

func NewClient(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		return nil, ErrBadConfig.Here().Append("base URL is empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, merry.Prependf(err, "wims: base URL %q", cfg.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrBadConfig.Here().Appendf("unsupported scheme %q", u.Scheme)
	}
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	return &Client{
		cfg:        cfg,
		secure:     u.Scheme == "https",
		httpClient: newHTTPClient(cfg.TrustAllCerts),
		sessions:   newSessionURLCache(),
		newCode:    newCorrelationCode,
	}, nil
}

// CheckConnection verifies both response formats accept our identity.
func (c *Client) CheckConnection() error {
	res := c.callLines("checkident")
	if !res.OK() {
		return merry.Prepend(res.Err(), "line check failed")
	}
	res, err := c.callJSON("checkident", false)
	if err != nil {
		return merry.Prepend(err, "json check failed")
	}
	if !res.OK() {
		return merry.Prepend(res.Err(), "json check failed")
	}
	return nil
}
