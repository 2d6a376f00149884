package http

import (
	"encoding/json"
	"net/http"

	"github.com/wpdrift/worker/internal/oauth2"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
	ErrorCode        int    `json:"error_code,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		ErrorURI:         oauth2.ErrorURI(code),
		ErrorCode:        errCode,
		RequestID:        rid,
	})
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOAuthResponse serializa un oauth2.Response: copia headers, y según el
// caso redirige o escribe el body JSON con los params tal cual.
func WriteOAuthResponse(w http.ResponseWriter, r *http.Request, resp *oauth2.Response) {
	for k, vals := range resp.Headers {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	if resp.IsRedirect() {
		http.Redirect(w, r, resp.RedirectURL(), resp.StatusCode)
		return
	}
	WriteJSON(w, resp.StatusCode, resp.Params)
}
