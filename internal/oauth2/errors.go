package oauth2

import (
	"errors"
	"fmt"
	"net/http"
)

// Códigos de error del protocolo (RFC 6749 §5.2, RFC 6750 §3.1, RFC 7009/7662).
const (
	ErrCodeInvalidRequest          = "invalid_request"
	ErrCodeInvalidClient           = "invalid_client"
	ErrCodeInvalidGrant            = "invalid_grant"
	ErrCodeInvalidScope            = "invalid_scope"
	ErrCodeInvalidToken            = "invalid_token"
	ErrCodeUnauthorizedClient      = "unauthorized_client"
	ErrCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrCodeUnsupportedResponseType = "unsupported_response_type"
	ErrCodeAccessDenied            = "access_denied"
	ErrCodeServerError             = "server_error"
)

// Referencias a la sección relevante de la especificación, expuestas como
// error_uri cuando aplica.
var errorURIs = map[string]string{
	ErrCodeInvalidRequest: "https://tools.ietf.org/html/rfc6749#section-5.2",
	ErrCodeInvalidClient:  "https://tools.ietf.org/html/rfc6749#section-5.2",
	ErrCodeInvalidGrant:   "https://tools.ietf.org/html/rfc6749#section-5.2",
	ErrCodeInvalidScope:   "https://tools.ietf.org/html/rfc6749#section-5.2",
	ErrCodeInvalidToken:   "https://tools.ietf.org/html/rfc6750#section-3.1",
	ErrCodeAccessDenied:   "https://tools.ietf.org/html/rfc6749#section-4.1.2.1",
}

// ErrorURI devuelve la referencia de especificación para un código, o "".
func ErrorURI(code string) string { return errorURIs[code] }

// Error es un error terminal del protocolo: status HTTP, código corto
// machine-readable, descripción humana y referencia opcional.
type Error struct {
	Status      int
	Code        string
	Description string
	URI         string
}

func (e *Error) Error() string {
	return fmt.Sprintf("oauth2: %d %s: %s", e.Status, e.Code, e.Description)
}

// NewError construye un *Error con el error_uri por defecto del código.
func NewError(status int, code, desc string) *Error {
	return &Error{Status: status, Code: code, Description: desc, URI: ErrorURI(code)}
}

// Sentinels de storage. Los adaptadores deben mapear sus "no rows" a
// ErrNotFound para que el engine distinga "no existe" de fallas reales.
var (
	ErrNotFound = errors.New("oauth2: not found")
	ErrConflict = errors.New("oauth2: conflict")
)

// asProtocolError normaliza cualquier error a un *Error del protocolo.
// Fallas de storage (u otras no tipadas) se vuelven server_error 500: el
// caller nunca recibe un éxito parcial ni un crash sin estructura.
func asProtocolError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
}
