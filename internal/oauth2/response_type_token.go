package oauth2

import (
	"context"
	"strconv"
	"time"

	tokens "github.com/wpdrift/worker/internal/security/token"
)

// AccessTokenResponseType emite tokens opacos: el string entregado al client
// es la key exacta de la fila persistida. Sirve de issuer para todos los
// grants y de response type del flujo implicit.
type AccessTokenResponseType struct {
	store        AccessTokenStorage
	refreshStore RefreshTokenStorage
	cfg          *Config
	now          func() time.Time
}

func NewAccessTokenResponseType(store AccessTokenStorage, refreshStore RefreshTokenStorage, cfg *Config) *AccessTokenResponseType {
	return &AccessTokenResponseType{store: store, refreshStore: refreshStore, cfg: cfg, now: time.Now}
}

func (rt *AccessTokenResponseType) CreateAccessToken(ctx context.Context, clientID, userID, scope string, includeRefresh bool) (map[string]any, error) {
	id, err := tokens.GenerateTokenID(rt.cfg.AccessTokenLength)
	if err != nil {
		return nil, err
	}
	expires := rt.now().Add(rt.cfg.AccessLifetime)
	if err := rt.store.SetAccessToken(ctx, id, clientID, userID, expires, scope); err != nil {
		return nil, err
	}

	out := map[string]any{
		"access_token": id,
		"token_type":   rt.cfg.TokenType,
		"expires_in":   int64(rt.cfg.AccessLifetime.Seconds()),
		"scope":        scope,
	}
	var refresh string
	if includeRefresh && rt.refreshStore != nil {
		refresh, err = issueRefreshToken(ctx, rt.refreshStore, rt.cfg, clientID, userID, scope, rt.now())
		if err != nil {
			// Sin emisión parcial: si el refresh no persiste, el access
			// recién guardado se revierte y el request entero falla.
			_ = rt.store.UnsetAccessToken(ctx, id)
			return nil, err
		}
		out["refresh_token"] = refresh
	}

	purgeOtherTokens(ctx, rt.store, rt.cfg, userID, id, refresh)
	return out, nil
}

// GetAuthorizeResponse implementa el flujo implicit: mismo mint pero los
// parámetros viajan en el fragment y nunca incluyen refresh token.
func (rt *AccessTokenResponseType) GetAuthorizeResponse(ctx context.Context, ar *AuthorizeRequest, userID string) (map[string]string, bool, error) {
	tok, err := rt.CreateAccessToken(ctx, ar.Client.ID, userID, ar.Scope, false)
	if err != nil {
		return nil, false, err
	}
	return implicitParams(tok), true, nil
}

// issueRefreshToken genera y persiste un refresh token opaco. Compartido por
// los dos issuers: los refresh tokens nunca son crypto tokens.
func issueRefreshToken(ctx context.Context, store RefreshTokenStorage, cfg *Config, clientID, userID, scope string, now time.Time) (string, error) {
	refresh, err := tokens.GenerateTokenID(cfg.AccessTokenLength)
	if err != nil {
		return "", err
	}
	var expires time.Time
	if cfg.RefreshLifetime > 0 {
		expires = now.Add(cfg.RefreshLifetime)
	}
	if err := store.SetRefreshToken(ctx, refresh, clientID, userID, expires, scope); err != nil {
		return "", err
	}
	return refresh, nil
}

// purgeOtherTokens aplica la política de sesión única: borra los demás
// tokens del usuario, access y refresh, dejando vivos los recién emitidos.
// Best effort, solo si el storage sabe purgar.
func purgeOtherTokens(ctx context.Context, store AccessTokenStorage, cfg *Config, userID, exceptAccess, exceptRefresh string) {
	if !cfg.LimitSingleToken || userID == "" {
		return
	}
	if p, ok := store.(UserTokenPurger); ok {
		_ = p.UnsetUserTokens(ctx, userID, exceptAccess, exceptRefresh)
	}
}

// implicitParams aplana la respuesta de token a strings de fragment.
func implicitParams(tok map[string]any) map[string]string {
	params := make(map[string]string, len(tok))
	for k, v := range tok {
		switch t := v.(type) {
		case string:
			params[k] = t
		case int64:
			params[k] = strconv.FormatInt(t, 10)
		case int:
			params[k] = strconv.Itoa(t)
		}
	}
	return params
}
