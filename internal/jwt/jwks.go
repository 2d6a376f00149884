package jwt

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
)

// JWK es la representación publicable de una clave RSA de firma.
type JWK struct {
	Kty string `json:"kty"` // "RSA"
	Alg string `json:"alg"` // "RS256"
	Use string `json:"use"` // "sig"
	KID string `json:"kid,omitempty"`
	N   string `json:"n"` // modulus, base64url sin padding
	E   string `json:"e"` // exponent, base64url sin padding
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWK exporta la clave pública como JWK (n/e en base64url sin padding).
func PublicJWK(pub *rsa.PublicKey, kid string) JWK {
	return JWK{
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		KID: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// JWKSJSON devuelve el documento JWKS (solo la pública) en JSON.
func JWKSJSON(pub *rsa.PublicKey, kid string) []byte {
	b, _ := json.Marshal(JWKS{Keys: []JWK{PublicJWK(pub, kid)}})
	return b
}
