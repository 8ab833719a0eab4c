package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("DROPSHIP_TEST_VALUE", "  console ")
	if got := Get("DROPSHIP_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("DROPSHIP_TEST_VALUE", "   ")
	if got := Get("DROPSHIP_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank, got %q", got)
	}
	if got := Get("DROPSHIP_TEST_UNSET", "json"); got != "json" {
		t.Fatalf("expected fallback for unset, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("DROPSHIP_TEST_FLAG", "true")
	if !Bool("DROPSHIP_TEST_FLAG", false) {
		t.Fatalf("expected true")
	}
	t.Setenv("DROPSHIP_TEST_FLAG", "maybe")
	if !Bool("DROPSHIP_TEST_FLAG", true) {
		t.Fatalf("expected fallback on garbage")
	}
}
