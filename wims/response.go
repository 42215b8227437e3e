package wims

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const nothingDone = "nothing done"

// callLines runs a line-format job. Any outcome is reported through the Result.
func (c *Client) callLines(job string, params ...param) *Result {
	cl := c.newCall(job, formatLines, params)
	res := c.dispatch(cl)
	if res.Status != StatusOK {
		return res
	}
	classifyLines(res)
	return res
}

func classifyLines(res *Result) {
	lines := strings.Split(string(res.Raw), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	res.Lines = lines

	first := 0
	for first < len(lines) && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	if first < len(lines) {
		head := strings.TrimSpace(lines[first])
		if head == "OK "+res.Code {
			return
		}
		if head == "ERROR" && first+1 < len(lines) && strings.TrimSpace(lines[first+1]) == nothingDone {
			return
		}
	}
	res.Status = StatusServiceFailure
	res.Diagnostic = lines
	if first+1 < len(lines) {
		res.Message = strings.TrimSpace(lines[first+1])
	}
}

type envelope struct {
	Status  flexString `json:"status"`
	Code    flexString `json:"code"`
	Message flexString `json:"message"`
}

// callJSON runs a JSON job. The error is non-nil only on a protocol violation;
// ordinary failures are reported through the Result. With quiet set, a rejected
// document is not logged.
func (c *Client) callJSON(job string, quiet bool, params ...param) (*Result, error) {
	cl := c.newCall(job, formatJSON, params)
	res := c.dispatch(cl)
	if res.Status != StatusOK {
		return res, nil
	}
	if err := classifyJSON(res); err != nil {
		return res, err
	}
	if res.Status != StatusOK && !quiet {
		log.Warn().Str("job", job).Str("code", res.Code).RawJSON("doc", res.Raw).Msg("wims: call rejected")
	}
	return res, nil
}

func classifyJSON(res *Result) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(res.Raw, &doc); err != nil {
		return ErrProtocolViolation.Here().Appendf("job %s: body is not a JSON object: %s", res.Job, err)
	}
	if doc == nil {
		return ErrProtocolViolation.Here().Appendf("job %s: body is null", res.Job)
	}
	res.Doc = doc

	var env envelope
	if err := json.Unmarshal(res.Raw, &env); err != nil {
		return ErrProtocolViolation.Here().Appendf("job %s: bad envelope: %s", res.Job, err)
	}
	res.Message = string(env.Message)

	codeOK := string(env.Code) == res.Code
	switch {
	case env.Status == "OK" && codeOK:
		return nil
	case env.Status == "ERROR" && codeOK && env.Message == nothingDone:
		return nil
	}
	res.Status = StatusServiceFailure
	res.Diagnostic = []string{
		"status=" + string(env.Status) + " code=" + string(env.Code) + " expected_code=" + res.Code,
		"message=" + string(env.Message),
		string(res.Raw),
	}
	return nil
}
