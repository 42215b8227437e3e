package wims

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"wims_connector/utils"

	"github.com/ansel1/merry"
	"github.com/rs/zerolog/log"
)

const userAgent = "wims-connector/1.0"

func newHTTPClient(trustAllCerts bool) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: trustAllCerts},
		},
	}
}

// fetch performs a single GET. It never retries; the body is always closed.
func (c *Client) fetch(res *Result, fullURL, loggedURL string) {
	res.Status = StatusOK

	req, err := http.NewRequest("GET", fullURL, nil)
	if err != nil {
		c.transportFailure(res, loggedURL, merry.Wrap(err))
		return
	}
	req.Header.Set("User-Agent", userAgent)

	resp, buf, err := utils.GetHTTPBody(c.httpClient, req)
	if err != nil {
		c.transportFailure(res, loggedURL, err)
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := utils.ErrUnexpectedHttpStatus.Here().Append(resp.Status)
		c.transportFailure(res, loggedURL, err)
		return
	}

	res.Raw = normalizeBody(buf)
	if c.cfg.Debug {
		log.Debug().
			Int("code", resp.StatusCode).Str("job", res.Job).Str("wims_code", res.Code).
			Str("url", loggedURL).Str("data", string(res.Raw)).
			Msg("wims: response")
	}
}

// redactError returns the message of err with the request URL replaced by loggedURL.
func (c *Client) redactError(err error, loggedURL string) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = &url.Error{Op: uerr.Op, URL: loggedURL, Err: uerr.Err}
	}
	msg := err.Error()
	if c.cfg.Secret != "" {
		msg = strings.ReplaceAll(msg, "passwd="+url.QueryEscape(c.cfg.Secret), "passwd=***")
	}
	return msg
}

func (c *Client) transportFailure(res *Result, loggedURL string, err error) {
	errMsg := c.redactError(err, loggedURL)
	res.Status = StatusTransportFailure
	res.Diagnostic = []string{
		"can not reach WIMS server",
		"url: " + loggedURL,
		"error: " + errMsg,
	}
	if c.cfg.Debug {
		log.Debug().Str("error", errMsg).Str("job", res.Job).Str("url", loggedURL).Msg("wims: transport failure")
	}
}
