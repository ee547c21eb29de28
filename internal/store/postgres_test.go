package store

import (
	"encoding/hex"
	"testing"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := computeDedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := computeDedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
}

func TestColumnHelpers(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty string -> nil expected")
	}
	if v := floatOrNil(nil); v != nil {
		t.Fatalf("nil float -> nil expected")
	}
	f := 1.5
	if v := floatOrNil(&f); v != 1.5 {
		t.Fatalf("floatOrNil = %v", v)
	}
	if v := nonNil(nil); v == nil || len(v) != 0 {
		t.Fatalf("nil slice -> empty slice expected")
	}
	if statusOrOpen("") != "open" || statusOrOpen("scheduled") != "scheduled" {
		t.Fatalf("statusOrOpen")
	}
}
