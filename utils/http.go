package utils

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ansel1/merry"
)

var ErrUnexpectedHttpStatus = merry.New("unexpected HTTP status")

// GetHTTPBody sends req and reads the whole body. The body is closed on every path.
func GetHTTPBody(client *http.Client, req *http.Request) (*http.Response, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, merry.Wrap(err)
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, merry.Wrap(err)
	}
	return resp, buf, nil
}

type ValueFieldErr struct {
	Name      string
	ValueStr  string
	IsMissing bool
}

func (e ValueFieldErr) Error() string {
	var s string
	if e.IsMissing {
		s = "missing"
	} else {
		s = "wrong"
	}
	s += " " + e.Name
	if e.ValueStr != "" {
		s += "=" + e.ValueStr
	}
	return s
}

func ReadString(values url.Values, name string) (string, error) {
	if _, ok := values[name]; !ok {
		return "", ValueFieldErr{Name: name, ValueStr: "", IsMissing: true}
	}
	return values.Get(name), nil
}

func ReadInt64(values url.Values, name string) (int64, error) {
	valueStr, err := ReadString(values, name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, ValueFieldErr{Name: name, ValueStr: valueStr}
	}
	return value, nil
}
