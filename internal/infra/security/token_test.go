package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestSecureTokenGeneratorProducesURLSafeTokens(t *testing.T) {
	gen := NewSecureTokenGenerator(0)

	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		token, err := gen.NewToken()
		if err != nil {
			t.Fatalf("NewToken returned error: %v", err)
		}
		if strings.ContainsAny(token, "+/=") {
			t.Fatalf("token is not URL-safe or carries padding: %q", token)
		}
		raw, err := base64.RawURLEncoding.DecodeString(token)
		if err != nil {
			t.Fatalf("token does not decode: %v", err)
		}
		if len(raw) < DefaultTokenBytes {
			t.Fatalf("expected at least %d bytes of entropy, got %d", DefaultTokenBytes, len(raw))
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token generated")
		}
		seen[token] = struct{}{}
	}
}

func TestHashTokenIsDeterministic(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatalf("expected deterministic hash")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatalf("expected different hashes for different inputs")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("expected hex-encoded sha256")
	}
}
