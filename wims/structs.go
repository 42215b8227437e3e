package wims

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/ansel1/merry"
	"github.com/elliotchance/orderedmap/v2"
)

// Class identifies a WIMS class: numeric id (qclass) and owner binding (rclass).
type Class struct {
	ID      string
	Binding string
}

// Fields are caller-supplied values for mutation jobs.
type Fields map[string]string

// ConfigValues is a class or user configuration with server bookkeeping removed.
type ConfigValues map[string]interface{}

type ItemDescriptor struct {
	Title string `json:"title"`
	State string `json:"state"`
}

// ItemList maps worksheet/exam id to its descriptor, in server order.
type ItemList = *orderedmap.OrderedMap[string, ItemDescriptor]

// Properties is a flat projection of a worksheet/exam detail record, in
// declaration order of its field specs.
type Properties = *orderedmap.OrderedMap[string, string]

type ScoreRecord struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}

// flexString accepts JSON strings, numbers, booleans and null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*s = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return merry.Wrap(err)
		}
		*s = flexString(str)
	case string(b) == "true" || string(b) == "false":
		*s = flexString(b)
	default:
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return merry.Wrap(err)
		}
		*s = flexString(num.String())
	}
	return nil
}

type listResponse struct {
	Count  *flexString
	IDs    []flexString
	Titles []flexString
}

// listShape names the count, id and title fields of one list job.
type listShape struct {
	job    string
	count  string
	ids    string
	titles string
}

var worksheetListShape = listShape{job: "listsheets", count: "nbsheet", ids: "sheetlist", titles: "sheettitlelist"}
var examListShape = listShape{job: "listexams", count: "nbexam", ids: "examlist", titles: "examtitlelist"}

type authResponse struct {
	HomeURL *string `json:"home_url"`
}

type scoresResponse struct {
	Scores *[]struct {
		ID    *flexString `json:"id"`
		Score *flexString `json:"score"`
	} `json:"data_scores"`
}

// fieldSpec projects one output field. Aliases are tried in order, the first
// key present in the document wins.
type fieldSpec struct {
	name     string
	aliases  []string
	required bool
}

var worksheetFieldSpecs = []fieldSpec{
	{name: "title", aliases: []string{"sheet_title", "title"}, required: true},
	{name: "description", aliases: []string{"sheet_description", "description"}},
	{name: "status", aliases: []string{"sheet_status"}, required: true},
	{name: "expiration", aliases: []string{"sheet_expiration", "expiration"}},
	{name: "weight", aliases: []string{"sheet_weight", "weight"}},
}

var examFieldSpecs = []fieldSpec{
	{name: "title", aliases: []string{"exam_title", "title"}, required: true},
	{name: "description", aliases: []string{"exam_description", "description"}},
	{name: "status", aliases: []string{"exam_status"}, required: true},
	// older servers emit the key with a trailing space
	{name: "expiration", aliases: []string{"exam_expiration", "exam_expiration "}},
	{name: "duration", aliases: []string{"exam_duration", "duration"}},
	{name: "attempts", aliases: []string{"exam_attempts", "attempts"}},
	{name: "cut_hours", aliases: []string{"exam_cut_hours", "cut_hours"}},
	{name: "opening", aliases: []string{"exam_opening", "opening"}},
}

func parseTitle(raw string) ItemDescriptor {
	parts := strings.Split(raw, ":")
	var d ItemDescriptor
	if len(parts) > 1 {
		d.Title = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		d.State = strings.TrimSpace(parts[2])
	}
	return d
}
