package env

import "testing"

func TestGetPrefersPrefixedKey(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("CASHSTORE_LOG_FORMAT", "console")
	if got := Get("LOG_FORMAT", "x"); got != "console" {
		t.Fatalf("expected prefixed value, got %q", got)
	}

	t.Setenv("CASHSTORE_LOG_FORMAT", "")
	if got := Get("LOG_FORMAT", "x"); got != "json" {
		t.Fatalf("expected bare value, got %q", got)
	}
	if got := Get("UNSET_FOR_TEST", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("CASHSTORE_FLAG_FOR_TEST", "true")
	if !Bool("FLAG_FOR_TEST", false) {
		t.Fatal("expected true")
	}
	t.Setenv("CASHSTORE_FLAG_FOR_TEST", "maybe")
	if !Bool("FLAG_FOR_TEST", true) {
		t.Fatal("expected fallback on unparsable value")
	}
}
