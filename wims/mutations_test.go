package wims

import (
	"net/url"
	"testing"

	"github.com/ansel1/merry"
)

func TestBuildDataBlock(t *testing.T) {
	tests := []struct {
		order  []string
		fields Fields
		want   string
	}{
		{[]string{"a", "b"}, Fields{"b": "2", "a": "1"}, "a=1\nb=2\n"},
		{[]string{"a", "b"}, Fields{"b": "2", "zzz": "x"}, "b=2\n"},
		{[]string{"a"}, Fields{"a": "two\nlines\r\nhere"}, "a=two lines here\n"},
		{[]string{"a"}, Fields{}, ""},
	}
	for _, tt := range tests {
		if got := buildDataBlock(tt.order, tt.fields); got != tt.want {
			t.Errorf("buildDataBlock(%v, %v) = %q, want %q", tt.order, tt.fields, got, tt.want)
		}
	}
}

func TestModifyWorksheet(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string { return "OK " + q.Get("code") + "\n" })
	err := client.ModifyWorksheet(testClass, "3", Fields{"title": "Intro", "status": "1", "color": "red"})
	if err != nil {
		t.Fatalf("ModifyWorksheet() error = %v", err)
	}
	q := fake.Calls()[0]
	if q.Get("job") != "modsheet" || q.Get("qsheet") != "3" || q.Get("ident") != "moodle" {
		t.Errorf("query = %v", q)
	}
	if want := "status=1\ntitle=Intro\n"; q.Get("data1") != want {
		t.Errorf("data1 = %q, want %q", q.Get("data1"), want)
	}
}

func TestAddClassSendsBothBlocks(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string { return "OK " + q.Get("code") })
	err := client.AddClass(testClass,
		Fields{"description": "Algebra", "institution": "Uni", "lang": "en"},
		Fields{"firstname": "Ada", "lastname": "Lovelace", "password": "pw"})
	if err != nil {
		t.Fatalf("AddClass() error = %v", err)
	}
	q := fake.Calls()[0]
	if want := "description=Algebra\ninstitution=Uni\nlang=en\n"; q.Get("data1") != want {
		t.Errorf("data1 = %q, want %q", q.Get("data1"), want)
	}
	if want := "lastname=Lovelace\nfirstname=Ada\npassword=pw\n"; q.Get("data2") != want {
		t.Errorf("data2 = %q, want %q", q.Get("data2"), want)
	}
}

func TestMutationOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		reply   func(q url.Values) string
		wantErr error
	}{
		{"ok", func(q url.Values) string { return "OK " + q.Get("code") }, nil},
		{"nothing done", func(q url.Values) string { return "ERROR\nnothing done\n" }, nil},
		{"rejected", func(q url.Values) string { return "ERROR\nuser exists\n" }, ErrServiceFailure},
		{"wrong code", func(q url.Values) string { return "OK 000" }, ErrServiceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, fake := newFakeWIMS(t, tt.reply)
			err := client.AddUser(testClass, "jdoe", Fields{"lastname": "Doe", "firstname": "John"})
			if tt.wantErr == nil && err != nil {
				t.Errorf("AddUser() error = %v", err)
			}
			if tt.wantErr != nil && !merry.Is(err, tt.wantErr) {
				t.Errorf("AddUser() error = %v, want %v", err, tt.wantErr)
			}
			if q := fake.Calls()[0]; q.Get("job") != "adduser" || q.Get("quser") != "jdoe" {
				t.Errorf("query = %v", q)
			}
		})
	}
}

func TestModifySupervisorAndClass(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string { return "OK " + q.Get("code") })
	if err := client.ModifySupervisor(testClass, Fields{"email": "ada@example.org"}); err != nil {
		t.Fatalf("ModifySupervisor() error = %v", err)
	}
	if err := client.ModifyClass(testClass, Fields{"expiration": "20271231"}); err != nil {
		t.Fatalf("ModifyClass() error = %v", err)
	}
	if err := client.ModifyExam(testClass, "4", Fields{"duration": "30", "title": "Final"}); err != nil {
		t.Fatalf("ModifyExam() error = %v", err)
	}
	calls := fake.Calls()
	if calls[0].Get("job") != "moduser" || calls[0].Get("quser") != "supervisor" {
		t.Errorf("query = %v", calls[0])
	}
	if calls[1].Get("job") != "modclass" || calls[1].Get("data1") != "expiration=20271231\n" {
		t.Errorf("query = %v", calls[1])
	}
	if calls[2].Get("job") != "modexam" || calls[2].Get("data1") != "title=Final\nduration=30\n" {
		t.Errorf("query = %v", calls[2])
	}
}
