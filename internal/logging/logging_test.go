package logging

import "testing"

func TestSetLevel(t *testing.T) {
	cases := map[string]slogLevelWant{
		"debug":   {"debug"},
		"DEBUG":   {"debug"},
		"warn":    {"warn"},
		"warning": {"warn"},
		"error":   {"error"},
		"":        {"info"},
		"bogus":   {"info"},
	}
	for in, want := range cases {
		SetLevel(in)
		got := level.Level().String()
		if !equalFold(got, want.level) {
			t.Errorf("SetLevel(%q): level = %s, want %s", in, got, want.level)
		}
	}
}

type slogLevelWant struct{ level string }

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func TestVerbosityToLevel(t *testing.T) {
	if VerbosityToLevel(0) != "info" {
		t.Error("expected info at verbosity 0")
	}
	if VerbosityToLevel(1) != "debug" {
		t.Error("expected debug at verbosity 1")
	}
	if VerbosityToLevel(3) != "debug" {
		t.Error("expected debug at verbosity 3")
	}
}
