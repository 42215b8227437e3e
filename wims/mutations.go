package wims

import "strings"

// Declared field orders of the key=value blocks sent as data1/data2.
var (
	classFieldOrder = []string{
		"description", "institution", "supervisor", "email", "password", "lang",
		"expiration", "limit", "level", "secure", "bgcolor", "refcolor", "css",
	}
	userFieldOrder = []string{
		"lastname", "firstname", "password", "email", "comments", "regnum", "photourl",
	}
	worksheetFieldOrder = []string{"status", "title", "description", "expiration", "weight"}
	examFieldOrder      = []string{
		"status", "title", "description", "expiration", "duration", "attempts", "cut_hours", "opening",
	}
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// buildDataBlock writes "key=value\n" for every field of order present in fields.
// Unknown keys are dropped; newlines inside values would split the block and
// are replaced with spaces.
func buildDataBlock(order []string, fields Fields) string {
	var sb strings.Builder
	for _, key := range order {
		value, ok := fields[key]
		if !ok {
			continue
		}
		value = lineBreaks.Replace(value)
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(value)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// AddClass creates the class together with its supervisor account.
func (c *Client) AddClass(class Class, classFields, supervisorFields Fields) error {
	params := append(classParams(class),
		p("data1", buildDataBlock(classFieldOrder, classFields)),
		p("data2", buildDataBlock(userFieldOrder, supervisorFields)))
	return c.callLines("addclass", params...).Err()
}

func (c *Client) ModifyClass(class Class, fields Fields) error {
	params := append(classParams(class), p("data1", buildDataBlock(classFieldOrder, fields)))
	return c.callLines("modclass", params...).Err()
}

func (c *Client) ModifySupervisor(class Class, fields Fields) error {
	params := append(classParams(class),
		p("quser", "supervisor"),
		p("data1", buildDataBlock(userFieldOrder, fields)))
	return c.callLines("moduser", params...).Err()
}

func (c *Client) AddUser(class Class, login string, fields Fields) error {
	params := append(classParams(class),
		p("quser", login),
		p("data1", buildDataBlock(userFieldOrder, fields)))
	return c.callLines("adduser", params...).Err()
}

func (c *Client) ModifyWorksheet(class Class, sheetID string, fields Fields) error {
	params := append(classParams(class),
		p("qsheet", sheetID),
		p("data1", buildDataBlock(worksheetFieldOrder, fields)))
	return c.callLines("modsheet", params...).Err()
}

func (c *Client) ModifyExam(class Class, examID string, fields Fields) error {
	params := append(classParams(class),
		p("qexam", examID),
		p("data1", buildDataBlock(examFieldOrder, fields)))
	return c.callLines("modexam", params...).Err()
}
