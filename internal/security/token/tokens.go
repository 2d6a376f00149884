package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

// Alfabeto de 62 símbolos para identificadores de token (RFC 6749 no exige
// formato; alfanumérico viaja sin escapes en query/fragment).
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultTokenLength es el mínimo de la política de referencia.
	DefaultTokenLength = 40
	// MaxTokenLength acota el identificador para no desbordar columnas de storage.
	MaxTokenLength = 255
)

// GenerateTokenID genera un identificador aleatorio de n caracteres sobre el
// alfabeto de 62 símbolos. n se normaliza a [DefaultTokenLength, MaxTokenLength].
func GenerateTokenID(n int) (string, error) {
	if n < DefaultTokenLength {
		n = DefaultTokenLength
	}
	if n > MaxTokenLength {
		n = MaxTokenLength
	}
	max := big.NewInt(int64(len(tokenAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding (para keys de storage).
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
