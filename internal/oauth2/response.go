package oauth2

import (
	"net/http"
	"net/url"
	"strings"
)

// Response es el sobre de salida de una operación: status, headers y
// parámetros de body, o bien un redirect con parámetros en query/fragment.
// El transporte (handlers HTTP) solo lo serializa; nunca decide semántica.
type Response struct {
	StatusCode int
	Headers    http.Header
	Params     map[string]any

	redirectURL      string
	redirectFragment bool
	isError          bool
	errorCode        string
}

func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    http.Header{},
		Params:     map[string]any{},
	}
}

// SetError marca la respuesta como error terminal del protocolo.
// desc y uri son opcionales; uri por defecto sale del código.
func (r *Response) SetError(status int, code, desc string) {
	r.SetErrorURI(status, code, desc, ErrorURI(code))
}

// SetErrorURI es SetError con referencia explícita a la especificación.
func (r *Response) SetErrorURI(status int, code, desc, uri string) {
	r.StatusCode = status
	r.isError = true
	r.errorCode = code
	r.Params = map[string]any{"error": code}
	if desc != "" {
		r.Params["error_description"] = desc
	}
	if uri != "" {
		r.Params["error_uri"] = uri
	}
}

// SetProtocolError aplica un *Error sobre la respuesta.
func (r *Response) SetProtocolError(e *Error) {
	r.SetErrorURI(e.Status, e.Code, e.Description, e.URI)
}

// SetRedirect arma un redirect hacia uri con params en la query o en el
// fragment según el response type. state (si no está vacío) siempre se
// propaga.
func (r *Response) SetRedirect(status int, uri string, params map[string]string, fragment bool, state string) {
	if state != "" {
		if params == nil {
			params = map[string]string{}
		}
		params["state"] = state
	}
	r.StatusCode = status
	r.redirectURL = buildRedirectURI(uri, params, fragment)
	r.redirectFragment = fragment
	r.Headers.Set("Location", r.redirectURL)
}

// SetRedirectError arma un redirect de error (error/error_description en la
// query del redirect_uri, más state).
func (r *Response) SetRedirectError(status int, uri, code, desc, state string) {
	params := map[string]string{"error": code}
	if desc != "" {
		params["error_description"] = desc
	}
	r.isError = true
	r.errorCode = code
	r.SetRedirect(status, uri, params, false, state)
}

func (r *Response) IsError() bool        { return r.isError }
func (r *Response) ErrorCode() string    { return r.errorCode }
func (r *Response) IsRedirect() bool     { return r.redirectURL != "" }
func (r *Response) RedirectURL() string  { return r.redirectURL }
func (r *Response) SetParam(k string, v any) { r.Params[k] = v }

// SetNoStore agrega los headers anti-cache obligatorios para respuestas con
// tokens (RFC 6749 §5.1).
func (r *Response) SetNoStore() {
	r.Headers.Set("Cache-Control", "no-store")
	r.Headers.Set("Pragma", "no-cache")
}

func buildRedirectURI(uri string, params map[string]string, fragment bool) string {
	if len(params) == 0 {
		return uri
	}
	vals := url.Values{}
	for k, v := range params {
		vals.Set(k, v)
	}
	if fragment {
		// El fragment reemplaza cualquier fragment previo del redirect_uri.
		base, _, _ := strings.Cut(uri, "#")
		return base + "#" + vals.Encode()
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return uri + sep + vals.Encode()
}
