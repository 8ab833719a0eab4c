package codes

import (
	"regexp"
	"testing"
	"time"
)

func TestNewFormat(t *testing.T) {
	now := time.Date(2026, 7, 9, 23, 0, 0, 0, time.FixedZone("X", -3*3600))
	code := New(PrefixOrder, now)
	if !regexp.MustCompile(`^ORD-260710-[0-9A-F]{8}$`).MatchString(code) {
		t.Fatalf("unexpected code %q", code)
	}
	if New(PrefixOrder, now) == code {
		t.Fatalf("codes should differ between calls")
	}
}

func TestSubOrder(t *testing.T) {
	if got := SubOrder("ORD-260710-ABCDEF12", 2); got != "ORD-260710-ABCDEF12-2" {
		t.Fatalf("unexpected sub-order code %q", got)
	}
}
