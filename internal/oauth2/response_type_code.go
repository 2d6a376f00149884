package oauth2

import (
	"context"
	"time"

	tokens "github.com/wpdrift/worker/internal/security/token"
)

// AuthorizationCodeResponseType emite el authorization code del flujo con
// front channel: genera el identificador, lo persiste con todo el contexto
// del request (redirect, scope, PKCE, nonce) y lo devuelve como parámetro de
// query para el redirect.
type AuthorizationCodeResponseType struct {
	codes AuthorizationCodeStorage
	cfg   *Config
}

func NewAuthorizationCodeResponseType(codes AuthorizationCodeStorage, cfg *Config) *AuthorizationCodeResponseType {
	return &AuthorizationCodeResponseType{codes: codes, cfg: cfg}
}

func (rt *AuthorizationCodeResponseType) GetAuthorizeResponse(ctx context.Context, ar *AuthorizeRequest, userID string) (map[string]string, bool, error) {
	code, err := tokens.GenerateTokenID(rt.cfg.AccessTokenLength)
	if err != nil {
		return nil, false, err
	}
	data := &AuthorizationCodeData{
		Code:                code,
		ClientID:            ar.Client.ID,
		UserID:              userID,
		RedirectURI:         ar.RedirectURI,
		Expires:             time.Now().Add(rt.cfg.AuthCodeLifetime),
		Scope:               ar.Scope,
		CodeChallenge:       ar.CodeChallenge,
		CodeChallengeMethod: ar.CodeChallengeMethod,
		Nonce:               ar.Nonce,
	}
	if err := rt.codes.SetAuthorizationCode(ctx, data); err != nil {
		return nil, false, err
	}
	return map[string]string{"code": code}, false, nil
}
