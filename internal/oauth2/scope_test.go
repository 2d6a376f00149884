package oauth2

import "testing"

func TestNewScopeUtilRejectsBadNames(t *testing.T) {
	if _, err := NewScopeUtil("basic", []string{"OK-Not"}); err == nil {
		t.Fatal("scope con mayúsculas debería rechazarse")
	}
	if _, err := NewScopeUtil("-bad", []string{"basic"}); err == nil {
		t.Fatal("default scope inválido debería rechazarse")
	}
}

func TestCheckScopeSubsetLaw(t *testing.T) {
	su, err := NewScopeUtil("basic", []string{"openid", "profile", "email"})
	if err != nil {
		t.Fatalf("NewScopeUtil: %v", err)
	}

	cases := []struct {
		requested, available string
		want                 bool
	}{
		{"", "openid", true},
		{"openid", "openid profile", true},
		{"openid profile", "openid", false},
		{"openid", "", false},
		{"openid  profile", "profile openid", true}, // whitespace múltiple
	}
	for _, c := range cases {
		if got := su.CheckScope(c.requested, c.available); got != c.want {
			t.Errorf("CheckScope(%q, %q) = %v, esperaba %v", c.requested, c.available, got, c.want)
		}
	}
}

func TestScopeSupported(t *testing.T) {
	su, _ := NewScopeUtil("basic", []string{"openid"})
	if !su.ScopeSupported("openid basic") {
		t.Fatal("el default también cuenta como soportado")
	}
	if su.ScopeSupported("openid admin") {
		t.Fatal("un token desconocido invalida todo el scope pedido")
	}
}

func TestResolveScope(t *testing.T) {
	su, _ := NewScopeUtil("basic", []string{"openid"})
	if got := su.DefaultScope(); got != "basic" {
		t.Fatalf("DefaultScope: vino %q", got)
	}
	if got := su.ResolveScope(""); got != "basic" {
		t.Fatalf("vacío debería resolver al default, vino %q", got)
	}
	if got := su.ResolveScope("  openid   basic "); got != "openid basic" {
		t.Fatalf("esperaba normalización de whitespace, vino %q", got)
	}
}
