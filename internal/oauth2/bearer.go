package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// GetAccessTokenData autentica un request de recurso protegido: extrae el
// bearer token (header Authorization o el parámetro configurado, nunca
// ambos), lo valida y devuelve sus datos. En fallo popula resp con 400/401
// y WWW-Authenticate, y devuelve nil.
func (s *Server) GetAccessTokenData(ctx context.Context, req *Request, resp *Response) *AccessTokenData {
	fromHeader := req.BearerToken()
	fromParam := req.Param(s.cfg.TokenParamName)

	if fromHeader != "" && fromParam != "" {
		s.bearerError(resp, http.StatusBadRequest, ErrCodeInvalidRequest,
			"el token solo puede venir por un método a la vez")
		return nil
	}
	token := fromHeader
	if token == "" {
		token = fromParam
	}
	if token == "" {
		// Sin token no corresponde error en el challenge (RFC 6750 §3.1).
		resp.Headers.Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", s.cfg.WWWRealm))
		resp.SetError(http.StatusUnauthorized, ErrCodeInvalidRequest, "se requiere un access token")
		return nil
	}

	var (
		data *AccessTokenData
		pe   *Error
	)
	if s.cfg.UseCryptoTokens {
		data, pe = s.decodeCryptoToken(ctx, token)
	} else {
		data, pe = s.lookupAccessToken(ctx, token)
	}
	if pe != nil {
		if pe.Status >= http.StatusInternalServerError {
			resp.SetProtocolError(pe)
		} else {
			s.bearerError(resp, pe.Status, pe.Code, pe.Description)
		}
		return nil
	}
	return data
}

func (s *Server) bearerError(resp *Response, status int, code, desc string) {
	// RFC 6750 §3: el challenge acompaña todo fallo de autenticación bearer.
	resp.Headers.Set("WWW-Authenticate",
		fmt.Sprintf("Bearer realm=%q, error=%q, error_description=%q", s.cfg.WWWRealm, code, desc))
	resp.SetError(status, code, desc)
}

// lookupAccessToken resuelve un token opaco contra el storage.
func (s *Server) lookupAccessToken(ctx context.Context, token string) (*AccessTokenData, *Error) {
	data, err := s.st.AccessTokens.GetAccessToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "access token inválido o revocado")
		}
		return nil, NewError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
	}
	if !data.Expires.IsZero() && time.Now().After(data.Expires) {
		return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "access token expirado")
	}
	return data, nil
}

// decodeCryptoToken valida un token firmado: firma, estructura de claims,
// expiración, y presencia de la fila de revocación en storage. La key de la
// fila depende de store_encrypted_token_string (string completo vs id).
func (s *Server) decodeCryptoToken(ctx context.Context, token string) (*AccessTokenData, *Error) {
	pub, err := s.st.Keys.GetPublicKey(ctx)
	if err != nil {
		return nil, NewError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
	}
	claims, err := s.enc.Decode(token, pub)
	if err != nil {
		return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "firma inválida o token malformado")
	}

	expires, ok := claimInt64(claims, "expires")
	if !ok {
		return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "estructura de claims inválida")
	}
	if time.Now().Unix() >= expires {
		return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "access token expirado")
	}

	key := token
	if !s.cfg.StoreEncryptedTokenString {
		id, _ := claims["id"].(string)
		if id == "" {
			return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "estructura de claims inválida")
		}
		key = id
	}
	if _, err := s.st.AccessTokens.GetAccessToken(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewError(http.StatusUnauthorized, ErrCodeInvalidToken, "access token revocado")
		}
		return nil, NewError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
	}

	clientID, _ := claims["client_id"].(string)
	userID, _ := claims["user_id"].(string)
	scope, _ := claims["scope"].(string)
	tokenType, _ := claims["token_type"].(string)
	return &AccessTokenData{
		Token:     token,
		ClientID:  clientID,
		UserID:    userID,
		Expires:   time.Unix(expires, 0),
		Scope:     scope,
		TokenType: tokenType,
	}, nil
}

// claimInt64 tolera los números tal como los deja encoding/json (float64)
// además de enteros nativos.
func claimInt64(claims map[string]any, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// ─────────────────────────────────────────────────────────────────────
// introspección y revocación
// ─────────────────────────────────────────────────────────────────────

// HandleIntrospectRequest implementa la semántica de RFC 7662 §2.2: todo
// token inválido, expirado, revocado o desconocido responde 200 con
// active=false; solo un request malformado produce un error HTTP.
func (s *Server) HandleIntrospectRequest(ctx context.Context, req *Request) *Response {
	resp := NewResponse()
	resp.SetNoStore()

	if req.Method != "" && req.Method != http.MethodPost {
		resp.Headers.Set("Allow", http.MethodPost)
		resp.SetError(http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "la introspección solo acepta POST")
		return resp
	}
	token := req.Param("token")
	if token == "" {
		token = req.Param(s.cfg.TokenParamName)
	}
	if token == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el parámetro token")
		return resp
	}

	resp.StatusCode = http.StatusOK

	var (
		data *AccessTokenData
		pe   *Error
	)
	if s.cfg.UseCryptoTokens {
		data, pe = s.decodeCryptoToken(ctx, token)
	} else {
		data, pe = s.lookupAccessToken(ctx, token)
	}
	if pe == nil {
		resp.SetParam("active", true)
		resp.SetParam("scope", data.Scope)
		resp.SetParam("client_id", data.ClientID)
		if data.UserID != "" {
			resp.SetParam("user_id", data.UserID)
		}
		if !data.Expires.IsZero() {
			resp.SetParam("exp", data.Expires.Unix())
		}
		resp.SetParam("token_type", s.cfg.TokenType)
		return resp
	}
	if pe.Status >= http.StatusInternalServerError {
		resp.SetProtocolError(pe)
		return resp
	}

	// Segundo intento: puede ser un refresh token.
	if s.st.RefreshTokens != nil {
		rt, err := s.st.RefreshTokens.GetRefreshToken(ctx, token)
		if err == nil && (rt.Expires.IsZero() || time.Now().Before(rt.Expires)) {
			resp.SetParam("active", true)
			resp.SetParam("scope", rt.Scope)
			resp.SetParam("client_id", rt.ClientID)
			if rt.UserID != "" {
				resp.SetParam("user_id", rt.UserID)
			}
			if !rt.Expires.IsZero() {
				resp.SetParam("exp", rt.Expires.Unix())
			}
			resp.SetParam("token_type", "refresh_token")
			return resp
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			s.log.Error("introspect refresh lookup failed", zap.Error(err))
			resp.SetError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
			return resp
		}
	}

	resp.SetParam("active", false)
	return resp
}

// HandleRevokeRequest destruye tokens. Acepta access_token (o token, por
// compatibilidad RFC 7009) y opcionalmente refresh_token en el mismo request.
// Revocar un token inexistente es idempotente: también responde status=true.
func (s *Server) HandleRevokeRequest(ctx context.Context, req *Request) *Response {
	resp := NewResponse()
	resp.SetNoStore()

	if req.Method != "" && req.Method != http.MethodPost {
		resp.Headers.Set("Allow", http.MethodPost)
		resp.SetError(http.StatusMethodNotAllowed, ErrCodeInvalidRequest, "la revocación solo acepta POST")
		return resp
	}

	access := req.Param("access_token")
	if access == "" {
		access = req.Param("token")
	}
	refresh := req.Param("refresh_token")
	if access == "" && refresh == "" {
		resp.SetError(http.StatusBadRequest, ErrCodeInvalidRequest, "falta el token a revocar")
		return resp
	}

	if access != "" {
		key := access
		if s.cfg.UseCryptoTokens && !s.cfg.StoreEncryptedTokenString {
			// La fila se guardó por id interno: hay que abrir el token para
			// encontrarla. Un token indescifrable no tiene nada que borrar.
			if pub, err := s.st.Keys.GetPublicKey(ctx); err == nil {
				if claims, err := s.enc.Decode(access, pub); err == nil {
					if id, _ := claims["id"].(string); id != "" {
						key = id
					}
				}
			}
		}
		if err := s.st.AccessTokens.UnsetAccessToken(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			s.fail(resp, err, "unset access token")
			return resp
		}
	}
	if refresh != "" && s.st.RefreshTokens != nil {
		if err := s.st.RefreshTokens.UnsetRefreshToken(ctx, refresh); err != nil && !errors.Is(err, ErrNotFound) {
			s.fail(resp, err, "unset refresh token")
			return resp
		}
	}

	resp.StatusCode = http.StatusOK
	resp.SetParam("status", true)
	resp.SetParam("description", "token revocado")
	return resp
}
