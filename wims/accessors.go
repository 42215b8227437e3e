package wims

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ansel1/merry"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/rs/zerolog/log"
)

var classConfigDenylist = []string{"status", "code", "job", "qclass", "rclass", "password"}
var userConfigDenylist = []string{"status", "code", "job", "qclass", "rclass", "quser", "password"}

// CheckClass reports whether the class exists on the server.
func (c *Client) CheckClass(class Class) error {
	return c.callLines("checkclass", classParams(class)...).Err()
}

func (c *Client) CheckUser(class Class, login string) error {
	params := append(classParams(class), p("quser", login))
	return c.callLines("checkuser", params...).Err()
}

func (c *Client) ClassConfig(class Class) (ConfigValues, error) {
	return c.fetchConfig("getclass", classConfigDenylist, classParams(class))
}

func (c *Client) UserConfig(class Class, login string) (ConfigValues, error) {
	params := append(classParams(class), p("quser", login))
	return c.fetchConfig("getuser", userConfigDenylist, params)
}

func (c *Client) fetchConfig(job string, denylist []string, params []param) (ConfigValues, error) {
	res, err := c.callJSON(job, false, params...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}
	dec := json.NewDecoder(bytes.NewReader(res.Raw))
	dec.UseNumber()
	values := ConfigValues{}
	if err := dec.Decode(&values); err != nil {
		return nil, ErrProtocolViolation.Here().Appendf("job %s: %s", job, err)
	}
	for _, key := range denylist {
		delete(values, key)
	}
	return values, nil
}

func (c *Client) Worksheets(class Class) (ItemList, error) {
	return c.fetchList(worksheetListShape, class)
}

func (c *Client) Exams(class Class) (ItemList, error) {
	return c.fetchList(examListShape, class)
}

func (c *Client) fetchList(shape listShape, class Class) (ItemList, error) {
	res, err := c.callJSON(shape.job, false, classParams(class)...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}
	return decodeList(res, shape)
}

// decodeList zips the parallel count/id/title fields of a list job.
func decodeList(res *Result, shape listShape) (ItemList, error) {
	var lr listResponse
	if err := decodeField(res, shape.count, &lr.Count, true); err != nil {
		return nil, err
	}
	if lr.Count == nil {
		return nil, ErrProtocolViolation.Here().Appendf("job %s: %s is null", res.Job, shape.count)
	}
	count, err := strconv.Atoi(string(*lr.Count))
	if err != nil || count < 0 {
		return nil, ErrProtocolViolation.Here().Appendf("job %s: bad %s %q", res.Job, shape.count, string(*lr.Count))
	}
	items := orderedmap.NewOrderedMap[string, ItemDescriptor]()
	if count == 0 {
		return items, nil
	}
	if err := decodeField(res, shape.ids, &lr.IDs, true); err != nil {
		return nil, err
	}
	if err := decodeField(res, shape.titles, &lr.Titles, true); err != nil {
		return nil, err
	}
	if len(lr.IDs) < count || len(lr.Titles) < count {
		return nil, ErrProtocolViolation.Here().Appendf("job %s: %s=%d but got %d ids and %d titles",
			res.Job, shape.count, count, len(lr.IDs), len(lr.Titles))
	}
	for i := 0; i < count; i++ {
		items.Set(string(lr.IDs[i]), parseTitle(string(lr.Titles[i])))
	}
	return items, nil
}

func decodeField(res *Result, key string, dst interface{}, required bool) error {
	raw, ok := res.Doc[key]
	if !ok {
		if required {
			return ErrProtocolViolation.Here().Appendf("job %s: missing field %q", res.Job, key)
		}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrProtocolViolation.Here().Appendf("job %s: field %q: %s", res.Job, key, err)
	}
	return nil
}

func (c *Client) WorksheetProperties(class Class, sheetID string) (Properties, error) {
	params := append(classParams(class), p("qsheet", sheetID))
	return c.fetchProperties("getsheet", worksheetFieldSpecs, params)
}

func (c *Client) ExamProperties(class Class, examID string) (Properties, error) {
	params := append(classParams(class), p("qexam", examID))
	return c.fetchProperties("getexam", examFieldSpecs, params)
}

func (c *Client) fetchProperties(job string, specs []fieldSpec, params []param) (Properties, error) {
	res, err := c.callJSON(job, false, params...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}
	return projectFields(res, specs)
}

func projectFields(res *Result, specs []fieldSpec) (Properties, error) {
	props := orderedmap.NewOrderedMap[string, string]()
	for _, spec := range specs {
		found := false
		for _, alias := range spec.aliases {
			raw, ok := res.Doc[alias]
			if !ok {
				continue
			}
			var value flexString
			if err := json.Unmarshal(raw, &value); err != nil {
				return nil, ErrProtocolViolation.Here().Appendf("job %s: field %q: %s", res.Job, alias, err)
			}
			props.Set(spec.name, string(value))
			found = true
			break
		}
		if !found && spec.required {
			return nil, ErrProtocolViolation.Here().Appendf("job %s: missing field %q", res.Job, spec.aliases[0])
		}
	}
	return props, nil
}

// ItemWithProperties is one entry of a list-then-detail fetch.
type ItemWithProperties struct {
	ID         string
	Descriptor ItemDescriptor
	Properties Properties
}

// WorksheetsWithProperties lists worksheets and fetches each one's properties (N+1 calls).
func (c *Client) WorksheetsWithProperties(class Class) ([]ItemWithProperties, error) {
	return c.listWithProperties(class, c.Worksheets, c.WorksheetProperties)
}

func (c *Client) ExamsWithProperties(class Class) ([]ItemWithProperties, error) {
	return c.listWithProperties(class, c.Exams, c.ExamProperties)
}

func (c *Client) listWithProperties(
	class Class,
	list func(Class) (ItemList, error),
	details func(Class, string) (Properties, error),
) ([]ItemWithProperties, error) {
	items, err := list(class)
	if err != nil {
		return nil, err
	}
	out := make([]ItemWithProperties, 0, items.Len())
	for el := items.Front(); el != nil; el = el.Next() {
		props, err := details(class, el.Key)
		if err != nil {
			return nil, merry.Prependf(err, "item %s", el.Key)
		}
		out = append(out, ItemWithProperties{ID: el.Key, Descriptor: el.Value, Properties: props})
	}
	return out, nil
}

// WorksheetScores returns scores in server units (the server stores worksheet
// scores as tenths of a percent, converting them is up to the caller).
func (c *Client) WorksheetScores(class Class, sheetID string) ([]ScoreRecord, error) {
	params := append(classParams(class), p("qsheet", sheetID))
	return c.fetchScores("getsheetscores", params)
}

func (c *Client) ExamScores(class Class, examID string) ([]ScoreRecord, error) {
	params := append(classParams(class), p("qexam", examID))
	return c.fetchScores("getexamscores", params)
}

func (c *Client) fetchScores(job string, params []param) ([]ScoreRecord, error) {
	res, err := c.callJSON(job, false, params...)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}
	var sr scoresResponse
	if err := json.Unmarshal(res.Raw, &sr); err != nil {
		return nil, ErrProtocolViolation.Here().Appendf("job %s: %s", job, err)
	}
	if sr.Scores == nil {
		return nil, ErrProtocolViolation.Here().Appendf("job %s: missing field %q", job, "data_scores")
	}
	records := make([]ScoreRecord, 0, len(*sr.Scores))
	for i, item := range *sr.Scores {
		if item.ID == nil || item.Score == nil {
			return nil, ErrProtocolViolation.Here().Appendf("job %s: score #%d lacks id or score", job, i)
		}
		score, err := strconv.ParseFloat(string(*item.Score), 64)
		if err != nil {
			return nil, ErrProtocolViolation.Here().Appendf("job %s: score #%d: %q is not a number", job, i, string(*item.Score))
		}
		records = append(records, ScoreRecord{UserID: string(*item.ID), Score: score})
	}
	if c.cfg.Debug {
		log.Debug().Str("job", job).Int("count", len(records)).Msg("wims: scores")
	}
	return records, nil
}
