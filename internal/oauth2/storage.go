package oauth2

import (
	"context"
	"crypto/rsa"
	"time"
)

// Client es un cliente OAuth2 registrado. El secret se guarda hasheado en el
// storage; acá nunca viaja en claro.
type Client struct {
	ID           string
	GrantTypes   []string // vacío = sin restricción
	RedirectURIs []string
	UserID       string // dueño del client
	Scope        string // scopes permitidos, space-separated
	Public       bool   // client sin secret (solo si la config lo permite)
	Metadata     map[string]string
}

// AccessTokenData son las claims persistidas de un access token.
type AccessTokenData struct {
	Token     string
	ClientID  string
	UserID    string // vacío para grants estilo client_credentials
	Expires   time.Time
	Scope     string
	TokenType string
}

// RefreshTokenData es la fila persistida de un refresh token.
// Expires zero = no expira.
type RefreshTokenData struct {
	Token    string
	ClientID string
	UserID   string
	Expires  time.Time
	Scope    string
}

// AuthorizationCodeData es un code de autorización de un solo uso.
type AuthorizationCodeData struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string // bound en emisión; debe coincidir en el canje
	Expires             time.Time
	Scope               string
	CodeChallenge       string // PKCE, opcional
	CodeChallengeMethod string // "S256" | "plain"
	Nonce               string // OIDC, opcional
}

// ─────────────────────────────────────────────────────────────────────
// Contratos de storage. El engine los consume, nunca los implementa.
// Un deployment puede implementar un subconjunto: NewServer detecta las
// capacidades ausentes y deshabilita la feature correspondiente.
// ─────────────────────────────────────────────────────────────────────

type ClientStorage interface {
	// GetClientDetails devuelve el client o ErrNotFound.
	GetClientDetails(ctx context.Context, clientID string) (*Client, error)
	// CheckRestrictedGrantType indica si el client puede usar el grant.
	CheckRestrictedGrantType(ctx context.Context, clientID, grantType string) (bool, error)
	// CheckClientCredentials compara el secret contra el hash at-rest.
	CheckClientCredentials(ctx context.Context, clientID, secret string) (bool, error)
	// CheckRedirectURI indica si uri está registrada exacta para el client.
	CheckRedirectURI(ctx context.Context, clientID, uri string) (bool, error)
}

type AccessTokenStorage interface {
	GetAccessToken(ctx context.Context, token string) (*AccessTokenData, error)
	SetAccessToken(ctx context.Context, token, clientID, userID string, expires time.Time, scope string) error
	UnsetAccessToken(ctx context.Context, token string) error
}

type RefreshTokenStorage interface {
	GetRefreshToken(ctx context.Context, token string) (*RefreshTokenData, error)
	SetRefreshToken(ctx context.Context, token, clientID, userID string, expires time.Time, scope string) error
	UnsetRefreshToken(ctx context.Context, token string) error
}

type AuthorizationCodeStorage interface {
	GetAuthorizationCode(ctx context.Context, code string) (*AuthorizationCodeData, error)
	SetAuthorizationCode(ctx context.Context, data *AuthorizationCodeData) error
	// ExpireAuthorizationCode consume el code. Debe ser atómico frente a
	// canjes concurrentes: exactamente un caller recibe nil, el resto
	// ErrNotFound.
	ExpireAuthorizationCode(ctx context.Context, code string) error
}

// PublicKeyStorage entrega el material de firma. Rotación y multi-key (kid)
// quedan como punto de extensión de la implementación.
type PublicKeyStorage interface {
	GetPrivateKey(ctx context.Context) (*rsa.PrivateKey, error)
	GetPublicKey(ctx context.Context) (*rsa.PublicKey, error)
}

// UserTokenPurger es una capacidad opcional: revocar todos los tokens de un
// usuario, access y refresh, salvo los recién emitidos (política "una sesión
// por usuario"). Purgar solo los access dejaría sesiones refrescables.
type UserTokenPurger interface {
	UnsetUserTokens(ctx context.Context, userID, exceptAccess, exceptRefresh string) error
}

// Storages agrupa las capacidades de un deployment. Clients y AccessTokens
// son obligatorias; el resto es opcional.
type Storages struct {
	Clients       ClientStorage
	AccessTokens  AccessTokenStorage
	RefreshTokens RefreshTokenStorage
	Codes         AuthorizationCodeStorage
	Keys          PublicKeyStorage
}
