package daemon

import "testing"

func TestParseReply_Kinds(t *testing.T) {
	cases := map[string]Kind{
		`{"a":1}`: KindObject,
		`[1,2]`:   KindArray,
		`"x"`:     KindString,
		`12.5`:    KindNumber,
		`true`:    KindBool,
		`null`:    KindNull,
		``:        KindAbsent,
	}
	for body, want := range cases {
		r, err := ParseReply([]byte(body))
		if err != nil {
			t.Fatalf("ParseReply(%q): %v", body, err)
		}
		if r.Kind() != want {
			t.Fatalf("ParseReply(%q).Kind()=%s want %s", body, r.Kind(), want)
		}
	}
}

func TestParseReply_Invalid(t *testing.T) {
	if _, err := ParseReply([]byte(`{"a":`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
}

func TestReply_FieldAccessNeverPanics(t *testing.T) {
	for _, body := range []string{`null`, `"s"`, `7`, `[]`, `[{"message":{"content":"x"}}]`, `{"message":null}`, ``} {
		r, _ := ParseReply([]byte(body))
		if r.Has("message") {
			t.Fatalf("%q: Has(message) should be false", body)
		}
		if _, ok := r.String("response"); ok {
			t.Fatalf("%q: String(response) should be absent", body)
		}
		if _, ok := r.MessageContent(); ok {
			t.Fatalf("%q: MessageContent should be absent", body)
		}
	}
}

func TestReply_MessageContent(t *testing.T) {
	r, err := ParseReply([]byte(`{"model":"m","message":{"role":"assistant","content":"hello"},"done":true}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, ok := r.MessageContent()
	if !ok || got != "hello" {
		t.Fatalf("content=%q ok=%v", got, ok)
	}
	if !r.Has("done") {
		t.Fatalf("expected done field")
	}
	if v, ok := r.String("model"); !ok || v != "m" {
		t.Fatalf("model=%q", v)
	}
}

func TestReply_DottedFieldNames(t *testing.T) {
	r, _ := ParseReply([]byte(`{"a.b":"flat","a":{"b":"nested"}}`))
	if v, _ := r.String("a.b"); v != "flat" {
		t.Fatalf("got %q", v)
	}
}
