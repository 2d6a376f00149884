package oauth2

import (
	"fmt"
	"strings"

	"github.com/wpdrift/worker/internal/validation"
)

// ScopeUtil negocia scopes: valida que lo pedido sea subconjunto de lo
// disponible y resuelve el default cuando el request no trae scope.
type ScopeUtil struct {
	defaultScope string
	supported    map[string]bool
}

// NewScopeUtil valida la sintaxis de cada scope soportado y del default.
func NewScopeUtil(defaultScope string, supported []string) (*ScopeUtil, error) {
	set := make(map[string]bool, len(supported)+1)
	for _, s := range supported {
		if !validation.ValidScopeName(s) {
			return nil, fmt.Errorf("scope soportado inválido: %q", s)
		}
		set[s] = true
	}
	if defaultScope != "" {
		for _, s := range strings.Fields(defaultScope) {
			if !validation.ValidScopeName(s) {
				return nil, fmt.Errorf("default scope inválido: %q", s)
			}
			set[s] = true
		}
	}
	return &ScopeUtil{defaultScope: defaultScope, supported: set}, nil
}

// DefaultScope devuelve el scope configurado para requests sin scope.
func (s *ScopeUtil) DefaultScope() string { return s.defaultScope }

// SupportedScopes lista los scopes soportados (orden no garantizado).
func (s *ScopeUtil) SupportedScopes() []string {
	out := make([]string, 0, len(s.supported))
	for k := range s.supported {
		out = append(out, k)
	}
	return out
}

// CheckScope devuelve true sii cada token (split por whitespace) de requested
// aparece en available. requested vacío es válido (lo resuelve ResolveScope);
// available vacío no permite nada.
func (s *ScopeUtil) CheckScope(requested, available string) bool {
	return checkScopeSubset(requested, available)
}

// checkScopeSubset es la ley de subconjunto pelada, sin estado del server.
func checkScopeSubset(requested, available string) bool {
	want := strings.Fields(requested)
	if len(want) == 0 {
		return true
	}
	have := map[string]bool{}
	for _, t := range strings.Fields(available) {
		have[t] = true
	}
	for _, t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}

// ScopeSupported indica si cada token pedido es un scope soportado por el
// servidor. Tokens desconocidos son violación de política (invalid_scope),
// nunca se descartan en silencio.
func (s *ScopeUtil) ScopeSupported(requested string) bool {
	for _, t := range strings.Fields(requested) {
		if !s.supported[t] {
			return false
		}
	}
	return true
}

// ResolveScope sustituye el default cuando el request no trae scope.
func (s *ScopeUtil) ResolveScope(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return s.defaultScope
	}
	return strings.Join(strings.Fields(requested), " ")
}
