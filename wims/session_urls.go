package wims

import (
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// The server rejects authuser with "IP (<expected> != <seen>)" when the
// origin we sent differs from the one it expects. The message may carry a prefix.
var ipMismatchRe = regexp.MustCompile(`IP \(\s*([^\s()!=]+)\s*!=`)

type sessionKey struct {
	classID string
	binding string
	login   string
}

// sessionURLCache keeps home URLs for the lifetime of a client. Entries are never evicted.
type sessionURLCache struct {
	mutex sync.Mutex
	urls  map[sessionKey]string
}

func newSessionURLCache() *sessionURLCache {
	return &sessionURLCache{urls: make(map[sessionKey]string)}
}

func (s *sessionURLCache) get(key sessionKey) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	u, ok := s.urls[key]
	return u, ok
}

func (s *sessionURLCache) put(key sessionKey, homeURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.urls[key] = homeURL
}

func keyOf(class Class, login string) sessionKey {
	return sessionKey{classID: class.ID, binding: class.Binding, login: login}
}

// HasSessionURL reports whether a session was already opened for login in this
// client. It never touches the network.
func (c *Client) HasSessionURL(class Class, login string) bool {
	_, ok := c.sessions.get(keyOf(class, login))
	return ok
}

// HomeURL returns the home page session URL of login, authenticating at most
// twice: the second attempt is made only when the server tells which origin
// address it expects.
func (c *Client) HomeURL(class Class, login, origin, lang string) (string, error) {
	key := keyOf(class, login)
	if homeURL, ok := c.sessions.get(key); ok {
		return withLang(homeURL, lang), nil
	}

	res, err := c.authenticate(class, login, origin)
	if err != nil {
		return "", err
	}
	if res.Status == StatusServiceFailure {
		if expected, ok := expectedOrigin(res.Message); ok {
			log.Info().Str("login", login).Str("origin", origin).Str("expected", expected).
				Msg("wims: origin mismatch, retrying authentication")
			res, err = c.authenticate(class, login, expected)
			if err != nil {
				return "", err
			}
		}
	}
	if !res.OK() {
		return "", res.Err()
	}

	var auth authResponse
	if err := decodeField(res, "home_url", &auth.HomeURL, true); err != nil {
		return "", err
	}
	if auth.HomeURL == nil || *auth.HomeURL == "" {
		return "", ErrProtocolViolation.Here().Appendf("job %s: empty home_url", res.Job)
	}
	c.sessions.put(key, *auth.HomeURL)
	return withLang(*auth.HomeURL, lang), nil
}

func (c *Client) authenticate(class Class, login, origin string) (*Result, error) {
	params := append(classParams(class), p("quser", login), p("data1", origin))
	return c.callJSON("authuser", true, params...)
}

func expectedOrigin(message string) (string, bool) {
	m := ipMismatchRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func withLang(homeURL, lang string) string {
	if lang == "" {
		return homeURL
	}
	return appendQuery(homeURL, "lang="+url.QueryEscape(lang))
}

// appendQuery adds an already escaped query fragment to rawURL.
func appendQuery(rawURL, fragment string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + fragment
	}
	return rawURL + "?" + fragment
}

func (c *Client) ScoresURL(class Class, login, origin, lang string) (string, error) {
	homeURL, err := c.HomeURL(class, login, origin, lang)
	if err != nil {
		return "", err
	}
	return appendQuery(homeURL, "module=adm%2Fclass%2Fuserscore"), nil
}

func (c *Client) WorksheetURL(class Class, login, origin, lang, sheetID string) (string, error) {
	homeURL, err := c.HomeURL(class, login, origin, lang)
	if err != nil {
		return "", err
	}
	return appendQuery(homeURL, "module=adm%2Fsheet&sh="+url.QueryEscape(sheetID)), nil
}

func (c *Client) ExamURL(class Class, login, origin, lang, examID string) (string, error) {
	homeURL, err := c.HomeURL(class, login, origin, lang)
	if err != nil {
		return "", err
	}
	return appendQuery(homeURL, "module=adm%2Fclass%2Fexam&exam="+url.QueryEscape(examID)), nil
}
