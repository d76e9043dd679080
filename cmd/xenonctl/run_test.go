package main

import "testing"

func TestParseEnv(t *testing.T) {
	got := parseEnv([]string{"FOO=bar", "EMPTY=", "NOVALUE"})
	want := map[string]string{"FOO": "bar", "EMPTY": "", "NOVALUE": ""}
	if len(got) != len(want) {
		t.Fatalf("parseEnv() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("parseEnv()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseEnvEmpty(t *testing.T) {
	if got := parseEnv(nil); got != nil {
		t.Fatalf("parseEnv(nil) = %v, want nil", got)
	}
}

func TestSplitPair(t *testing.T) {
	cases := []struct {
		in                    string
		wantName, wantValue   string
		wantOK                bool
	}{
		{"FOO=bar", "FOO", "bar", true},
		{"FOO=", "FOO", "", true},
		{"FOO", "FOO", "", false},
		{"A=B=C", "A", "B=C", true},
	}
	for _, c := range cases {
		name, value, ok := splitPair(c.in)
		if name != c.wantName || value != c.wantValue || ok != c.wantOK {
			t.Fatalf("splitPair(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.in, name, value, ok, c.wantName, c.wantValue, c.wantOK)
		}
	}
}

func TestExitCodeErrorMessage(t *testing.T) {
	err := exitCodeError(7)
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}
