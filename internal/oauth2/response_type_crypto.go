package oauth2

import (
	"context"
	"crypto/rsa"
	"time"

	tokens "github.com/wpdrift/worker/internal/security/token"
)

// Encrypter firma y verifica el contenedor de claims de los crypto tokens.
// La implementación default es RS256 (internal/jwt).
type Encrypter interface {
	Encode(claims map[string]any, key *rsa.PrivateKey) (string, error)
	Decode(tokenString string, key *rsa.PublicKey) (map[string]any, error)
}

// CryptoTokenResponseType emite access tokens autocontenidos: un JWT RS256
// cuyo payload es la bolsa de claims {id, client_id, user_id, expires,
// token_type, scope}. Igual se persiste una fila por token para poder
// revocar; store_encrypted_token_string decide si la key de esa fila es el
// string firmado completo o el id interno.
type CryptoTokenResponseType struct {
	keys         PublicKeyStorage
	store        AccessTokenStorage
	refreshStore RefreshTokenStorage
	enc          Encrypter
	cfg          *Config
	now          func() time.Time
}

func NewCryptoTokenResponseType(keys PublicKeyStorage, store AccessTokenStorage, refreshStore RefreshTokenStorage, enc Encrypter, cfg *Config) *CryptoTokenResponseType {
	return &CryptoTokenResponseType{
		keys:         keys,
		store:        store,
		refreshStore: refreshStore,
		enc:          enc,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (rt *CryptoTokenResponseType) CreateAccessToken(ctx context.Context, clientID, userID, scope string, includeRefresh bool) (map[string]any, error) {
	id, err := tokens.GenerateTokenID(rt.cfg.AccessTokenLength)
	if err != nil {
		return nil, err
	}
	expires := rt.now().Add(rt.cfg.AccessLifetime)

	claims := map[string]any{
		"id":         id,
		"client_id":  clientID,
		"user_id":    userID,
		"expires":    expires.Unix(),
		"token_type": rt.cfg.TokenType,
		"scope":      scope,
	}
	priv, err := rt.keys.GetPrivateKey(ctx)
	if err != nil {
		return nil, err
	}
	encoded, err := rt.enc.Encode(claims, priv)
	if err != nil {
		return nil, err
	}

	storeKey := id
	if rt.cfg.StoreEncryptedTokenString {
		storeKey = encoded
	}
	if err := rt.store.SetAccessToken(ctx, storeKey, clientID, userID, expires, scope); err != nil {
		return nil, err
	}

	out := map[string]any{
		"access_token": encoded,
		"token_type":   rt.cfg.TokenType,
		"expires_in":   int64(rt.cfg.AccessLifetime.Seconds()),
		"scope":        scope,
	}
	var refresh string
	if includeRefresh && rt.refreshStore != nil {
		refresh, err = issueRefreshToken(ctx, rt.refreshStore, rt.cfg, clientID, userID, scope, rt.now())
		if err != nil {
			_ = rt.store.UnsetAccessToken(ctx, storeKey)
			return nil, err
		}
		out["refresh_token"] = refresh
	}

	purgeOtherTokens(ctx, rt.store, rt.cfg, userID, storeKey, refresh)
	return out, nil
}

// GetAuthorizeResponse habilita implicit también con crypto tokens.
func (rt *CryptoTokenResponseType) GetAuthorizeResponse(ctx context.Context, ar *AuthorizeRequest, userID string) (map[string]string, bool, error) {
	tok, err := rt.CreateAccessToken(ctx, ar.Client.ID, userID, ar.Scope, false)
	if err != nil {
		return nil, false, err
	}
	return implicitParams(tok), true, nil
}
