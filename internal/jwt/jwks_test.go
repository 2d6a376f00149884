package jwt_test

import (
	"encoding/json"
	"strings"
	"testing"

	jwtx "github.com/wpdrift/worker/internal/jwt"
)

func TestJWKSJSON_Shape(t *testing.T) {
	key, err := jwtx.GenerateRSA(2048)
	if err != nil {
		t.Fatal(err)
	}
	raw := jwtx.JWKSJSON(&key.PublicKey, "kid-1")

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("jwks is not valid JSON: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(doc.Keys))
	}
	k := doc.Keys[0]
	if k["kty"] != "RSA" || k["alg"] != "RS256" || k["use"] != "sig" {
		t.Fatalf("unexpected key header fields: %v", k)
	}
	for _, f := range []string{"n", "e"} {
		v := k[f]
		if v == "" {
			t.Fatalf("missing %q", f)
		}
		// base64url without padding
		if strings.ContainsAny(v, "+/=") {
			t.Fatalf("%q must be base64url without padding, got %q", f, v)
		}
	}
}
