package store

import "testing"

func TestEncodeKeyRoundTrip(t *testing.T) {
	inputs := []string{
		"https://example.com/article?id=1&ref=2",
		"mastodon.social/@someone/113144...",
		"plain",
		"",
		"with spaces and . dots",
	}

	for _, in := range inputs {
		encoded := EncodeKey(in)
		decoded, err := DecodeKey(encoded)
		if err != nil {
			t.Fatalf("DecodeKey(%q) failed: %v", encoded, err)
		}
		if decoded != in {
			t.Errorf("round trip of %q gave %q", in, decoded)
		}
	}
}

func TestEncodeKeyIsKVSafe(t *testing.T) {
	// NATS KV keys cannot contain slashes, spaces or wildcards.
	encoded := EncodeKey("https://a.b/c d*e>f")
	for _, r := range encoded {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			t.Fatalf("encoded key contains unsafe character %q", r)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" {
			t.Fatal("NewID returned empty string")
		}
		if seen[id] {
			t.Fatalf("NewID returned duplicate %s", id)
		}
		seen[id] = true
	}
}
