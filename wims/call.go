package wims

import (
	"math/rand"
	"net/url"
	"strconv"
	"strings"
)

type format int

const (
	formatLines format = iota
	formatJSON
)

type param struct {
	name  string
	value string
}

func p(name, value string) param {
	return param{name: name, value: value}
}

func classParams(class Class) []param {
	return []param{p("qclass", class.ID), p("rclass", class.Binding)}
}

// call is the context of one outgoing request. It lives only as long as the request.
type call struct {
	job    string
	code   string
	format format
	params []param
}

func newCorrelationCode() string {
	return strconv.Itoa(100 + rand.Intn(900))
}

func (c *Client) newCall(job string, f format, params []param) *call {
	return &call{job: job, code: c.newCode(), format: f, params: params}
}

// serviceIdent gives the "ident" value. Only JSON jobs care about TLS:
// line jobs always use the bare service name.
func (c *Client) serviceIdent(f format) string {
	if f == formatLines {
		return c.cfg.Service
	}
	if c.secure {
		return c.cfg.Service + "jsonhttps"
	}
	return c.cfg.Service + "json"
}

// buildURL keeps parameter order stable, url.Values would sort it.
// With redact set the shared secret is masked for logs and diagnostics.
func (c *Client) buildURL(cl *call, redact bool) string {
	var sb strings.Builder
	sb.WriteString(c.cfg.BaseURL)
	if strings.Contains(c.cfg.BaseURL, "?") {
		sb.WriteByte('&')
	} else {
		sb.WriteByte('?')
	}
	sb.WriteString("module=adm/raw")
	add := func(name, value string) {
		sb.WriteByte('&')
		sb.WriteString(url.QueryEscape(name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(value))
	}
	add("job", cl.job)
	add("code", cl.code)
	add("ident", c.serviceIdent(cl.format))
	if redact {
		add("passwd", "***")
	} else {
		add("passwd", c.cfg.Secret)
	}
	for _, prm := range cl.params {
		add(prm.name, legacyParam(prm.value))
	}
	return sb.String()
}

func (c *Client) dispatch(cl *call) *Result {
	res := &Result{Job: cl.job, Code: cl.code, Status: StatusOK}
	c.fetch(res, c.buildURL(cl, false), c.buildURL(cl, true))
	return res
}
