package wims

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

type fakeWIMS struct {
	server *httptest.Server
	mutex  sync.Mutex
	calls  []url.Values
}

func (f *fakeWIMS) Calls() []url.Values {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]url.Values(nil), f.calls...)
}

// newFakeWIMS starts a server answering every request with reply(query).
func newFakeWIMS(t *testing.T, reply func(q url.Values) string) (*Client, *fakeWIMS) {
	t.Helper()
	fake := &fakeWIMS{}
	fake.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		fake.mutex.Lock()
		fake.calls = append(fake.calls, q)
		fake.mutex.Unlock()
		w.Write([]byte(reply(q)))
	}))
	t.Cleanup(fake.server.Close)

	client, err := NewClient(Config{BaseURL: fake.server.URL + "/wims/wims.cgi", Secret: "s3cret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, fake
}

func jsonReply(q url.Values, status string, fields map[string]interface{}) string {
	doc := map[string]interface{}{"status": status, "code": q.Get("code")}
	for k, v := range fields {
		doc[k] = v
	}
	buf, _ := json.Marshal(doc)
	return string(buf)
}

func isJSONJob(q url.Values) bool {
	return q.Get("ident") == "moodlejson" || q.Get("ident") == "moodlejsonhttps"
}

func codeSequence(codes ...string) func() string {
	i := 0
	return func() string {
		code := codes[i%len(codes)]
		i++
		return code
	}
}
