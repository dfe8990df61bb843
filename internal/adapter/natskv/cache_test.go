package natskv

import "testing"

func TestEncodeKey(t *testing.T) {
	got := EncodeKey("analytics:student:42:progress")
	if got != "analytics.student.42.progress" {
		t.Fatalf("unexpected encoding %s", got)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	keys := []string{
		"analytics:student:42",
		"analytics:assignment:7:stats",
		"analytics:engagement:tutor-9:weekly",
	}
	for _, k := range keys {
		if DecodeKey(EncodeKey(k)) != k {
			t.Fatalf("round trip changed key %s", k)
		}
	}
}

func TestEncodeKeyInjective(t *testing.T) {
	// The key grammar forbids '.' in segments, so distinct keys can
	// never encode to the same subject.
	a := EncodeKey("analytics:student:4")
	b := EncodeKey("analytics:student:42")
	if a == b {
		t.Fatal("distinct keys collided after encoding")
	}
}
