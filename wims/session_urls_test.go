package wims

import (
	"net/url"
	"testing"

	"github.com/ansel1/merry"
)

var testClass = Class{ID: "9001", Binding: "moodle_7"}

func TestHomeURLIsCached(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string {
		return jsonReply(q, "OK", map[string]interface{}{"home_url": "https://wims.test/wims.cgi?session=ABC"})
	})

	if client.HasSessionURL(testClass, "jdoe") {
		t.Errorf("HasSessionURL() = true before authentication")
	}
	for i := 0; i < 2; i++ {
		got, err := client.HomeURL(testClass, "jdoe", "198.51.100.2", "fr")
		if err != nil {
			t.Fatalf("HomeURL() error = %v", err)
		}
		if want := "https://wims.test/wims.cgi?session=ABC&lang=fr"; got != want {
			t.Errorf("HomeURL() =\n  %v\nwant:\n  %v", got, want)
		}
	}
	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	q := calls[0]
	if q.Get("job") != "authuser" || q.Get("quser") != "jdoe" || q.Get("data1") != "198.51.100.2" ||
		q.Get("qclass") != "9001" || q.Get("rclass") != "moodle_7" || q.Get("ident") != "moodlejson" {
		t.Errorf("query = %v", q)
	}
	if !client.HasSessionURL(testClass, "jdoe") {
		t.Errorf("HasSessionURL() = false after authentication")
	}
	if client.HasSessionURL(Class{ID: "9001", Binding: "other"}, "jdoe") {
		t.Errorf("HasSessionURL() = true for another binding")
	}
}

func TestHomeURLRecoversFromIPMismatch(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string {
		if q.Get("data1") != "203.0.113.9" {
			return jsonReply(q, "ERROR", map[string]interface{}{"message": "IP (203.0.113.9 != " + q.Get("data1") + ")"})
		}
		return jsonReply(q, "OK", map[string]interface{}{"home_url": "https://wims.test/wims.cgi?session=XYZ"})
	})
	client.newCode = codeSequence("501", "502")

	got, err := client.HomeURL(testClass, "jdoe", "198.51.100.2", "en")
	if err != nil {
		t.Fatalf("HomeURL() error = %v", err)
	}
	if want := "https://wims.test/wims.cgi?session=XYZ&lang=en"; got != want {
		t.Errorf("HomeURL() =\n  %v\nwant:\n  %v", got, want)
	}
	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].Get("code") != "501" || calls[1].Get("code") != "502" {
		t.Errorf("codes = %v, %v, want 501, 502", calls[0].Get("code"), calls[1].Get("code"))
	}
	if calls[1].Get("data1") != "203.0.113.9" {
		t.Errorf("retry origin = %v, want 203.0.113.9", calls[1].Get("data1"))
	}
	if !client.HasSessionURL(testClass, "jdoe") {
		t.Errorf("HasSessionURL() = false after recovered authentication")
	}
}

func TestHomeURLRetriesAtMostOnce(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string {
		return jsonReply(q, "ERROR", map[string]interface{}{"message": "IP (10.0.0." + q.Get("code") + " != 1.2.3.4)"})
	})

	_, err := client.HomeURL(testClass, "jdoe", "1.2.3.4", "en")
	if !merry.Is(err, ErrServiceFailure) {
		t.Errorf("HomeURL() error = %v, want ErrServiceFailure", err)
	}
	if n := len(fake.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
	if client.HasSessionURL(testClass, "jdoe") {
		t.Errorf("failed authentication was cached")
	}
}

func TestHomeURLDoesNotRetryOtherFailures(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string {
		return jsonReply(q, "ERROR", map[string]interface{}{"message": "user jdoe does not exist"})
	})
	_, err := client.HomeURL(testClass, "jdoe", "1.2.3.4", "en")
	if !merry.Is(err, ErrServiceFailure) {
		t.Errorf("HomeURL() error = %v, want ErrServiceFailure", err)
	}
	if n := len(fake.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestHomeURLMissingHomeURLIsProtocolViolation(t *testing.T) {
	client, _ := newFakeWIMS(t, func(q url.Values) string { return jsonReply(q, "OK", nil) })
	_, err := client.HomeURL(testClass, "jdoe", "1.2.3.4", "en")
	if !IsProtocolViolation(err) {
		t.Errorf("HomeURL() error = %v, want ErrProtocolViolation", err)
	}
}

func TestExpectedOrigin(t *testing.T) {
	tests := []struct {
		message string
		want    string
		wantOK  bool
	}{
		{"IP (203.0.113.9 != 198.51.100.2)", "203.0.113.9", true},
		{"IP (2001:db8::1 != 198.51.100.2)", "2001:db8::1", true},
		{"IP (203.0.113.9!=198.51.100.2)", "203.0.113.9", true},
		{"ERROR: IP (203.0.113.9 != 198.51.100.2)", "203.0.113.9", true},
		{"IP address unknown", "", false},
		{"user unknown", "", false},
	}
	for _, tt := range tests {
		got, ok := expectedOrigin(tt.message)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("expectedOrigin(%q) = %q, %v, want %q, %v", tt.message, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDerivedURLs(t *testing.T) {
	client, fake := newFakeWIMS(t, func(q url.Values) string {
		return jsonReply(q, "OK", map[string]interface{}{"home_url": "https://wims.test/wims.cgi?session=S1"})
	})

	scores, err := client.ScoresURL(testClass, "jdoe", "1.2.3.4", "en")
	if err != nil {
		t.Fatalf("ScoresURL() error = %v", err)
	}
	sheet, err := client.WorksheetURL(testClass, "jdoe", "1.2.3.4", "en", "3")
	if err != nil {
		t.Fatalf("WorksheetURL() error = %v", err)
	}
	exam, err := client.ExamURL(testClass, "jdoe", "1.2.3.4", "en", "2")
	if err != nil {
		t.Fatalf("ExamURL() error = %v", err)
	}

	home := "https://wims.test/wims.cgi?session=S1&lang=en"
	tests := []struct{ got, want string }{
		{scores, home + "&module=adm%2Fclass%2Fuserscore"},
		{sheet, home + "&module=adm%2Fsheet&sh=3"},
		{exam, home + "&module=adm%2Fclass%2Fexam&exam=2"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("url =\n  %v\nwant:\n  %v", tt.got, tt.want)
		}
	}
	if n := len(fake.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestWithLang(t *testing.T) {
	tests := []struct {
		homeURL string
		lang    string
		want    string
	}{
		{"https://wims.test/wims.cgi?session=S1", "fr", "https://wims.test/wims.cgi?session=S1&lang=fr"},
		{"https://wims.test/wims.cgi", "fr", "https://wims.test/wims.cgi?lang=fr"},
		{"https://wims.test/wims.cgi?session=S1", "", "https://wims.test/wims.cgi?session=S1"},
	}
	for _, tt := range tests {
		if got := withLang(tt.homeURL, tt.lang); got != tt.want {
			t.Errorf("withLang(%q, %q) = %q, want %q", tt.homeURL, tt.lang, got, tt.want)
		}
	}
	if got, want := appendQuery("https://wims.test/wims.cgi", "module=adm%2Fsheet&sh=3"),
		"https://wims.test/wims.cgi?module=adm%2Fsheet&sh=3"; got != want {
		t.Errorf("appendQuery() = %q, want %q", got, want)
	}
}

func TestDerivedURLPropagatesFailure(t *testing.T) {
	client, _ := newFakeWIMS(t, func(q url.Values) string {
		return jsonReply(q, "ERROR", map[string]interface{}{"message": "class closed"})
	})
	if u, err := client.ExamURL(testClass, "jdoe", "1.2.3.4", "en", "2"); err == nil {
		t.Errorf("ExamURL() = %v, want error", u)
	}
}
