package oauth2

import (
	"context"
	"net/http"

	"github.com/wpdrift/worker/internal/observability/logger"
)

// GrantType es la estrategia de un grant del token endpoint. Validate revisa
// parámetros y estado persistido y popula resp en fallo; Finish consume lo
// consumible y emite el token usando el issuer que recibe como argumento.
type GrantType interface {
	Identifier() string
	Validate(ctx context.Context, req *Request, resp *Response, client *Client) (*GrantData, bool)
	Finish(ctx context.Context, issuer AccessTokenIssuer, gd *GrantData) (map[string]any, error)
}

// GrantData es el resultado de un Validate exitoso: con quién y con qué
// alcance se emite.
type GrantData struct {
	ClientID string
	UserID   string // vacío en client_credentials
	Scope    string

	Code             string // authorization_code: código a consumir en Finish
	PrevRefreshToken string // refresh_token: token presentado, para rotación
	IncludeRefresh   bool
}

// AccessTokenIssuer emite el access token (y opcionalmente un refresh token)
// y lo persiste. Implementado por los response types de token.
type AccessTokenIssuer interface {
	CreateAccessToken(ctx context.Context, clientID, userID, scope string, includeRefresh bool) (map[string]any, error)
}

// HandleTokenRequest procesa POST /token de punta a punta: método, dispatch
// por grant_type, autenticación del client, restricción de grants por client,
// validación del grant, negociación final de scope y emisión.
func (s *Server) HandleTokenRequest(ctx context.Context, req *Request) *Response {
	resp := NewResponse()
	resp.SetNoStore()

	if req.Method != "" && req.Method != http.MethodPost {
		resp.Headers.Set("Allow", http.MethodPost)
		resp.SetError(http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "el token endpoint solo acepta POST")
		return resp
	}

	grantType := req.Param("grant_type")
	if grantType == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el parámetro grant_type")
		return resp
	}
	g, ok := s.grants[grantType]
	if !ok {
		resp.SetError(http.StatusBadRequest, ErrCodeUnsupportedGrantType, "grant_type no soportado")
		return resp
	}

	client, ok := s.authenticateClient(ctx, req, resp)
	if !ok {
		return resp
	}

	allowed, err := s.st.Clients.CheckRestrictedGrantType(ctx, client.ID, grantType)
	if err != nil {
		s.fail(resp, err, "check restricted grant type")
		return resp
	}
	if !allowed {
		resp.SetError(http.StatusBadRequest, ErrCodeUnauthorizedClient, "el client no está autorizado para este grant_type")
		return resp
	}

	gd, ok := g.Validate(ctx, req, resp, client)
	if !ok {
		return resp
	}

	// Chequeo final de scope, común a todos los grants.
	gd.Scope = s.scope.ResolveScope(gd.Scope)
	if gd.Scope == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidScope, "no se pidió scope y no hay scope default")
		return resp
	}
	// Client.Scope vacío = sin restricción propia del client.
	if !s.scope.ScopeSupported(gd.Scope) || (client.Scope != "" && !s.scope.CheckScope(gd.Scope, client.Scope)) {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidScope, "scope inválido o no autorizado para el client")
		return resp
	}

	token, err := g.Finish(ctx, s.issuer, gd)
	if err != nil {
		pe := asProtocolError(err)
		if pe.Status >= http.StatusInternalServerError {
			s.log.Error("token issuance failed",
				logger.GrantType(grantType),
				logger.ClientID(client.ID),
				logger.Err(err))
		}
		resp.SetProtocolError(pe)
		return resp
	}

	resp.StatusCode = http.StatusOK
	for k, v := range token {
		resp.SetParam(k, v)
	}
	return resp
}
