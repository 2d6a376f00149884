package oauth2

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wpdrift/worker/internal/observability/logger"
)

// Identificadores de response type en /authorize.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// Métodos PKCE soportados.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// AuthorizeRequest es el resultado de validar /authorize: parámetros ya
// verificados contra el client registrado y la política del server.
type AuthorizeRequest struct {
	ResponseType        string
	Client              *Client
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ResponseType produce los parámetros de respuesta de /authorize para un
// usuario ya autenticado y consentido. fragment indica si van en el fragment
// de la URI (implicit) o en el query string (code).
type ResponseType interface {
	GetAuthorizeResponse(ctx context.Context, ar *AuthorizeRequest, userID string) (params map[string]string, fragment bool, err error)
}

// ValidateAuthorizeRequest valida el request sin emitir nada. Pensado para
// la fase previa al consentimiento: el host decide si mostrar login o la
// pantalla de autorización solo si los parámetros son válidos.
func (s *Server) ValidateAuthorizeRequest(ctx context.Context, req *Request, resp *Response) bool {
	_, ok := s.validateAuthorize(ctx, req, resp)
	return ok
}

// HandleAuthorizeRequest ejecuta el flujo completo de /authorize. El host ya
// resolvió autenticación y consentimiento del usuario; isAuthorized=false
// termina en redirect con access_denied (nunca en emisión parcial).
func (s *Server) HandleAuthorizeRequest(ctx context.Context, req *Request, resp *Response, isAuthorized bool, userID string) {
	ar, ok := s.validateAuthorize(ctx, req, resp)
	if !ok {
		return
	}
	resp.SetNoStore()

	if !isAuthorized {
		resp.SetRedirectError(s.cfg.RedirectStatusCode, ar.RedirectURI, ErrCodeAccessDenied,
			"el usuario denegó la autorización", ar.State)
		return
	}

	rt := s.responseTypes[ar.ResponseType]
	params, fragment, err := rt.GetAuthorizeResponse(ctx, ar, userID)
	if err != nil {
		pe := asProtocolError(err)
		s.log.Error("authorize response failed",
			zap.String("response_type", ar.ResponseType),
			logger.ClientID(ar.Client.ID),
			logger.UserID(userID),
			logger.Err(err))
		resp.SetRedirectError(s.cfg.RedirectStatusCode, ar.RedirectURI, pe.Code, pe.Description, ar.State)
		return
	}
	resp.SetRedirect(s.cfg.RedirectStatusCode, ar.RedirectURI, params, fragment, ar.State)
}

// validateAuthorize aplica las reglas de /authorize en orden. Los errores
// anteriores a validar redirect_uri se responden directo (nunca se redirige
// a una URI no verificada); los posteriores van como redirect con
// error/error_description en el query.
func (s *Server) validateAuthorize(ctx context.Context, req *Request, resp *Response) (*AuthorizeRequest, bool) {
	clientID := req.Param("client_id")
	if clientID == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el parámetro client_id")
		return nil, false
	}

	cl, err := s.st.Clients.GetClientDetails(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			resp.SetError(http.StatusUnauthorized, ErrCodeInvalidClient, "client desconocido")
			return nil, false
		}
		s.fail(resp, err, "get client")
		return nil, false
	}

	redirectURI := req.Param("redirect_uri")
	switch {
	case redirectURI == "" && len(cl.RedirectURIs) == 1:
		// Única URI registrada: se asume sin ambigüedad.
		redirectURI = cl.RedirectURIs[0]
	case redirectURI == "":
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el parámetro redirect_uri")
		return nil, false
	default:
		ok, err := s.matchRedirectURI(ctx, cl, redirectURI)
		if err != nil {
			s.fail(resp, err, "check redirect uri")
			return nil, false
		}
		if !ok {
			resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "redirect_uri no registrada para el client")
			return nil, false
		}
	}

	// Desde acá la URI está verificada: los errores se redirigen.
	state := req.Param("state")

	responseType := req.Param("response_type")
	if responseType == "" {
		resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeInvalidRequest,
			"falta el parámetro response_type", state)
		return nil, false
	}
	if _, ok := s.responseTypes[responseType]; !ok {
		resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeUnsupportedResponseType,
			"response_type no soportado", state)
		return nil, false
	}

	if s.cfg.EnforceState && state == "" {
		resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeInvalidRequest,
			"el parámetro state es obligatorio", state)
		return nil, false
	}

	requested := req.Param("scope")
	if requested != "" {
		// Client.Scope vacío = sin restricción propia del client.
		if !s.scope.ScopeSupported(requested) || (cl.Scope != "" && !s.scope.CheckScope(requested, cl.Scope)) {
			resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeInvalidScope,
				"scope inválido o no autorizado para el client", state)
			return nil, false
		}
	}
	scope := s.scope.ResolveScope(requested)
	if scope == "" {
		resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeInvalidScope,
			"no se pidió scope y no hay scope default", state)
		return nil, false
	}

	challenge := req.Param("code_challenge")
	method := req.Param("code_challenge_method")
	if challenge == "" && method != "" {
		resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeInvalidRequest,
			"code_challenge_method sin code_challenge", state)
		return nil, false
	}
	if challenge != "" {
		if method == "" {
			method = CodeChallengePlain
		}
		if method != CodeChallengePlain && method != CodeChallengeS256 {
			resp.SetRedirectError(s.cfg.RedirectStatusCode, redirectURI, ErrCodeInvalidRequest,
				"code_challenge_method no soportado", state)
			return nil, false
		}
	}

	return &AuthorizeRequest{
		ResponseType:        responseType,
		Client:              cl,
		RedirectURI:         redirectURI,
		Scope:               scope,
		State:               state,
		Nonce:               req.Param("nonce"),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	}, true
}
