// Package handlers expone los endpoints HTTP del authorization server.
// Cada handler serializa un oauth2.Response; la semántica vive en el engine.
package handlers

import "net/http"

// Authenticator resuelve el usuario con sesión en el host. El authorization
// server no maneja login propio: delega en quien lo embebe (un reverse proxy
// que setea un header, una sesión de la aplicación, etc.).
type Authenticator interface {
	CurrentUser(r *http.Request) (userID string, ok bool)
}

// HeaderAuthenticator lee el usuario de un header confiable. Pensado para
// correr detrás de un proxy autenticante que lo setea y lo limpia de los
// requests entrantes.
type HeaderAuthenticator struct {
	Header string // default X-Authenticated-User
}

func (a HeaderAuthenticator) CurrentUser(r *http.Request) (string, bool) {
	h := a.Header
	if h == "" {
		h = "X-Authenticated-User"
	}
	v := r.Header.Get(h)
	return v, v != ""
}
