package jwt

import (
	"crypto/rsa"
	"errors"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid_jwt")
	ErrClaimsType   = errors.New("claims_type")
)

// RS256 encodea/decodea una bolsa de claims como JWT compacto firmado con
// RSA-SHA256. Es el único algoritmo soportado: un token con otro `alg` en el
// header falla la verificación (incluido `none`).
type RS256 struct{}

// Encode firma las claims con la clave privada y devuelve el JWT compacto.
// No inyecta claims estándar (iss/exp): la bolsa viaja tal cual.
func (RS256) Encode(claims map[string]any, key *rsa.PrivateKey) (string, error) {
	if key == nil {
		return "", errors.New("nil_private_key")
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims(claims))
	tk.Header["typ"] = "JWT"
	return tk.SignedString(key)
}

// Decode verifica firma y estructura contra la clave pública y devuelve las
// claims. Firma inválida, payload manipulado o estructura malformada: todos
// devuelven ErrInvalidToken; la expiración la valida el caller (la bolsa usa
// el claim "expires" del formato original, no "exp").
func (RS256) Decode(token string, key *rsa.PublicKey) (map[string]any, error) {
	if key == nil {
		return nil, errors.New("nil_public_key")
	}
	tok, err := jwtv5.Parse(token, func(t *jwtv5.Token) (any, error) {
		return key, nil
	}, jwtv5.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrClaimsType
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}
