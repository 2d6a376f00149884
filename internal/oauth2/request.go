package oauth2

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// Request normaliza los datos de entrada de una operación del servidor.
// Independiente del transporte: los handlers HTTP la construyen desde
// *http.Request; los tests la arman directo.
type Request struct {
	Method  string
	Query   url.Values
	Form    url.Values
	Headers http.Header
}

// NewRequest arma un Request desde un *http.Request, parseando el form
// (application/x-www-form-urlencoded) con un límite de 64KB.
func NewRequest(r *http.Request) *Request {
	r.Body = http.MaxBytesReader(nil, r.Body, 64<<10)
	_ = r.ParseForm()
	return &Request{
		Method:  r.Method,
		Query:   r.URL.Query(),
		Form:    r.PostForm,
		Headers: r.Header,
	}
}

// Param devuelve el parámetro pedido, priorizando el body sobre la query.
func (r *Request) Param(key string) string {
	if r.Form != nil {
		if v := strings.TrimSpace(r.Form.Get(key)); v != "" {
			return v
		}
	}
	if r.Query != nil {
		return strings.TrimSpace(r.Query.Get(key))
	}
	return ""
}

// BasicAuth extrae credenciales del header Authorization (Basic).
func (r *Request) BasicAuth() (user, pass string, ok bool) {
	if r.Headers == nil {
		return "", "", false
	}
	ah := strings.TrimSpace(r.Headers.Get("Authorization"))
	const prefix = "basic "
	if len(ah) < len(prefix) || !strings.EqualFold(ah[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ah[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	return user, pass, true
}

// BearerToken extrae el token del header Authorization (Bearer), o "" si no hay.
func (r *Request) BearerToken() string {
	if r.Headers == nil {
		return ""
	}
	ah := strings.TrimSpace(r.Headers.Get("Authorization"))
	const prefix = "bearer "
	if len(ah) < len(prefix) || !strings.EqualFold(ah[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(ah[len(prefix):])
}
