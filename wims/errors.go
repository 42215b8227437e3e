package wims

import "github.com/ansel1/merry"

var ErrTransportFailure = merry.New("wims: transport failure")
var ErrServiceFailure = merry.New("wims: service failure")

// ErrProtocolViolation means the server answered with something that does not
// follow the adm/raw contract at all (non-JSON body for a JSON job, missing
// required field). It is never reported through a Result status.
var ErrProtocolViolation = merry.New("wims: protocol violation")

var ErrBadConfig = merry.New("wims: bad config")

type ctxValueKey string

const resultValueKey = ctxValueKey("result")

// ResultOf extracts the call result attached to a transport or service failure.
func ResultOf(err error) (*Result, bool) {
	res, ok := merry.Value(err, resultValueKey).(*Result)
	return res, ok
}

// IsProtocolViolation reports whether the caller must stop instead of treating
// err as an ordinary failed call.
func IsProtocolViolation(err error) bool {
	return merry.Is(err, ErrProtocolViolation)
}
