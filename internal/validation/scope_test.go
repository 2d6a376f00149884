package validation_test

import (
	"strings"
	"testing"

	"github.com/wpdrift/worker/internal/validation"
)

func TestValidScopeName_Valid(t *testing.T) {
	valids := []string{
		"a",
		"basic",
		"openid",
		"profile:read",
		"email:read:e2e123",
		"a_b-c.d:scope2",
		"a" + strings.Repeat("a", 62) + "b", // 64 chars, start/end alnum
	}
	for _, v := range valids {
		if !validation.ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidScopeName_Invalid(t *testing.T) {
	invalids := []string{
		"",               // empty
		":lead",          // starts with non-alnum
		"trail:",         // ends with non-alnum
		"bad space",      // space
		"UPPER",          // uppercase
		"semicolon;hack", // semicolon
		strings.Repeat("a", 65),  // > 64 chars
		strings.Repeat("a", 100), // way too long
	}
	for _, v := range invalids {
		if validation.ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}
