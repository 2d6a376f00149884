// Package oauth2 implementa el núcleo del authorization server: emisión,
// validación, introspección y revocación de tokens, flujos authorization_code
// e implicit, y negociación de scope/política de clients. El transporte HTTP
// y la persistencia quedan afuera (contratos en storage.go).
package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	jwtx "github.com/wpdrift/worker/internal/jwt"
	"github.com/wpdrift/worker/internal/observability/logger"
)

// Config agrupa toda la configuración del servidor. Se construye una vez y
// se pasa por referencia: ningún componente hace lookups ambientales.
type Config struct {
	Issuer         string
	TokenType      string // "Bearer"
	WWWRealm       string
	TokenParamName string // nombre del parámetro query/body para el bearer

	AccessLifetime    time.Duration
	RefreshLifetime   time.Duration // 0 = refresh tokens sin expiración
	AuthCodeLifetime  time.Duration
	AccessTokenLength int // caracteres del identificador (min 40, cap 255)

	EnforceState                  bool
	RequireExactRedirectURI       bool // false = permite prefix match
	AllowImplicit                 bool
	AllowCredentialsInRequestBody bool
	AllowPublicClients            bool
	AlwaysIssueNewRefreshToken    bool
	UnsetRefreshTokenAfterUse     bool
	RedirectStatusCode            int

	UseCryptoTokens           bool
	StoreEncryptedTokenString bool // key de storage: string firmado vs id interno
	LimitSingleToken          bool // política: una sesión por usuario
}

func (c Config) withDefaults() Config {
	if c.TokenType == "" {
		c.TokenType = "Bearer"
	}
	if c.WWWRealm == "" {
		c.WWWRealm = "Service"
	}
	if c.TokenParamName == "" {
		c.TokenParamName = "access_token"
	}
	if c.AccessLifetime <= 0 {
		c.AccessLifetime = time.Hour
	}
	if c.AuthCodeLifetime <= 0 {
		c.AuthCodeLifetime = 5 * time.Minute
	}
	if c.AccessTokenLength <= 0 {
		c.AccessTokenLength = 40
	}
	if c.RedirectStatusCode == 0 {
		c.RedirectStatusCode = http.StatusFound
	}
	return c
}

// Server orquesta las operaciones del protocolo. Stateless por request: todo
// estado compartido vive en los storages.
type Server struct {
	cfg Config
	st  Storages

	scope         *ScopeUtil
	grants        map[string]GrantType
	responseTypes map[string]ResponseType
	issuer        AccessTokenIssuer
	enc           Encrypter
	log           *zap.Logger
}

// Option configura el server en construcción.
type Option func(*Server)

// WithScopeUtil reemplaza el negociador de scopes.
func WithScopeUtil(su *ScopeUtil) Option { return func(s *Server) { s.scope = su } }

// WithEncrypter reemplaza el proveedor de firma (default: RS256).
func WithEncrypter(e Encrypter) Option { return func(s *Server) { s.enc = e } }

// WithLogger reemplaza el logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// NewServer valida capacidades y arma el orquestador. Clients y AccessTokens
// son obligatorios; lo demás habilita features:
//   - sin Codes: no hay grant ni response type authorization_code
//   - sin RefreshTokens: no se emiten refresh tokens ni existe el grant refresh_token
//   - sin Keys: use_crypto_tokens es un error de composición
func NewServer(st Storages, cfg Config, opts ...Option) (*Server, error) {
	cfg = cfg.withDefaults()
	if st.Clients == nil {
		return nil, errors.New("oauth2: ClientStorage es obligatorio")
	}
	if st.AccessTokens == nil {
		return nil, errors.New("oauth2: AccessTokenStorage es obligatorio")
	}

	s := &Server{
		cfg:           cfg,
		st:            st,
		grants:        map[string]GrantType{},
		responseTypes: map[string]ResponseType{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.Named("oauth2")
	}
	if s.enc == nil {
		s.enc = jwtx.RS256{}
	}
	if s.scope == nil {
		su, err := NewScopeUtil("basic", []string{"basic", "openid", "profile", "email"})
		if err != nil {
			return nil, err
		}
		s.scope = su
	}

	// Response type activo para mint de tokens (explícito: los grants lo
	// reciben como argumento, nunca lo referencian por convención).
	if cfg.UseCryptoTokens {
		if st.Keys == nil {
			return nil, errors.New("oauth2: use_crypto_tokens requiere PublicKeyStorage")
		}
		s.issuer = NewCryptoTokenResponseType(st.Keys, st.AccessTokens, st.RefreshTokens, s.enc, &s.cfg)
	} else {
		s.issuer = NewAccessTokenResponseType(st.AccessTokens, st.RefreshTokens, &s.cfg)
	}

	// Response types de /authorize según capacidades.
	if st.Codes != nil {
		s.responseTypes[ResponseTypeCode] = NewAuthorizationCodeResponseType(st.Codes, &s.cfg)
	}
	if cfg.AllowImplicit {
		if rt, ok := s.issuer.(ResponseType); ok {
			s.responseTypes[ResponseTypeToken] = rt
		}
	}

	// Grants default según capacidades.
	if st.Codes != nil {
		if err := s.AddGrantType(NewAuthorizationCodeGrant(st.Codes, &s.cfg)); err != nil {
			return nil, err
		}
	}
	if st.RefreshTokens != nil {
		if err := s.AddGrantType(NewRefreshTokenGrant(st.RefreshTokens, &s.cfg)); err != nil {
			return nil, err
		}
	}
	if err := s.AddGrantType(NewClientCredentialsGrant()); err != nil {
		return nil, err
	}
	return s, nil
}

// AddGrantType registra una estrategia de grant. Se valida acá, no en el
// dispatch: la última registración para una key dada gana.
func (s *Server) AddGrantType(g GrantType) error {
	if g == nil {
		return errors.New("oauth2: grant type nil")
	}
	id := strings.TrimSpace(g.Identifier())
	if id == "" {
		return errors.New("oauth2: grant type sin identificador")
	}
	s.grants[id] = g
	return nil
}

// SetScopeUtil reemplaza el negociador de scopes en runtime.
func (s *Server) SetScopeUtil(su *ScopeUtil) {
	if su != nil {
		s.scope = su
	}
}

// Config expone una copia de la configuración efectiva (con defaults).
func (s *Server) Config() Config { return s.cfg }

// ScopeUtil expone el negociador activo.
func (s *Server) ScopeUtil() *ScopeUtil { return s.scope }

// GrantTypes lista los identificadores de grant registrados.
func (s *Server) GrantTypes() []string {
	out := make([]string, 0, len(s.grants))
	for k := range s.grants {
		out = append(out, k)
	}
	return out
}

// ResponseTypes lista los response types habilitados para /authorize.
func (s *Server) ResponseTypes() []string {
	out := make([]string, 0, len(s.responseTypes))
	for k := range s.responseTypes {
		out = append(out, k)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────
// autenticación de client
// ─────────────────────────────────────────────────────────────────────

// authenticateClient resuelve y autentica el client del token request:
// HTTP Basic primero, credenciales en el body si la config lo permite.
// En fallo popula resp (invalid_client 401) y devuelve false.
func (s *Server) authenticateClient(ctx context.Context, req *Request, resp *Response) (*Client, bool) {
	id, secret, viaBasic := req.BasicAuth()
	if !viaBasic && s.cfg.AllowCredentialsInRequestBody {
		id = req.Param("client_id")
		secret = req.Param("client_secret")
	}
	if id == "" {
		s.unauthorizedClient(resp, "faltan credenciales de client")
		return nil, false
	}

	cl, err := s.st.Clients.GetClientDetails(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.unauthorizedClient(resp, "client desconocido")
			return nil, false
		}
		s.fail(resp, err, "get client")
		return nil, false
	}

	if secret == "" {
		// Public clients solo si la política lo permite.
		if !s.cfg.AllowPublicClients || !cl.Public {
			s.unauthorizedClient(resp, "el client requiere secret")
			return nil, false
		}
		return cl, true
	}

	ok, err := s.st.Clients.CheckClientCredentials(ctx, id, secret)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.fail(resp, err, "check client credentials")
		return nil, false
	}
	if !ok {
		s.unauthorizedClient(resp, "credenciales de client inválidas")
		return nil, false
	}
	return cl, true
}

func (s *Server) unauthorizedClient(resp *Response, desc string) {
	resp.Headers.Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.cfg.WWWRealm))
	resp.SetError(http.StatusUnauthorized, ErrCodeInvalidClient, desc)
}

// fail loguea la causa real y devuelve al caller un server_error opaco.
func (s *Server) fail(resp *Response, err error, op string) {
	s.log.Error("storage failure", zap.String("op", op), zap.Error(err))
	resp.SetError(http.StatusInternalServerError, ErrCodeServerError, "error interno del servidor")
}

// matchRedirectURI aplica la política de matching configurada.
func (s *Server) matchRedirectURI(ctx context.Context, cl *Client, uri string) (bool, error) {
	if s.cfg.RequireExactRedirectURI {
		return s.st.Clients.CheckRedirectURI(ctx, cl.ID, uri)
	}
	for _, reg := range cl.RedirectURIs {
		if reg != "" && strings.HasPrefix(uri, reg) {
			return true, nil
		}
	}
	return false, nil
}
