package oauth2_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jwtx "github.com/wpdrift/worker/internal/jwt"
	"github.com/wpdrift/worker/internal/oauth2"
	tokens "github.com/wpdrift/worker/internal/security/token"
	"github.com/wpdrift/worker/internal/store/memory"
)

type fixture struct {
	srv     *oauth2.Server
	clients *memory.ClientStore
	tokens  *memory.TokenStore
	codes   *memory.CodeStore
	keys    *memory.KeyStore
}

func newFixture(t *testing.T, mutate func(*oauth2.Config)) *fixture {
	t.Helper()
	f := &fixture{
		clients: memory.NewClientStore(),
		tokens:  memory.NewTokenStore(),
		codes:   memory.NewCodeStore(),
	}
	if err := f.clients.AddClient(&oauth2.Client{
		ID:           "app",
		RedirectURIs: []string{"https://app.example/cb"},
		Scope:        "basic openid profile email",
	}, "s3cret"); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	cfg := oauth2.Config{
		EnforceState:                  true,
		RequireExactRedirectURI:       true,
		AllowImplicit:                 true,
		AllowCredentialsInRequestBody: true,
		AlwaysIssueNewRefreshToken:    true,
		UnsetRefreshTokenAfterUse:     true,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	st := oauth2.Storages{
		Clients:       f.clients,
		AccessTokens:  f.tokens,
		RefreshTokens: f.tokens,
		Codes:         f.codes,
	}
	if cfg.UseCryptoTokens {
		priv, err := jwtx.GenerateRSA(2048)
		if err != nil {
			t.Fatalf("GenerateRSA: %v", err)
		}
		f.keys = memory.NewKeyStore(priv)
		st.Keys = f.keys
	}

	srv, err := oauth2.NewServer(st, cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	f.srv = srv
	return f
}

func authorizeRequest(params map[string]string) *oauth2.Request {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	return &oauth2.Request{Method: http.MethodGet, Query: q, Headers: http.Header{}}
}

func tokenRequest(params map[string]string) *oauth2.Request {
	form := url.Values{}
	form.Set("client_id", "app")
	form.Set("client_secret", "s3cret")
	for k, v := range params {
		form.Set(k, v)
	}
	return &oauth2.Request{Method: http.MethodPost, Form: form, Headers: http.Header{}}
}

// authorize corre el flujo de autorización y devuelve el code del redirect.
func (f *fixture) authorize(t *testing.T, extra map[string]string) string {
	t.Helper()
	params := map[string]string{
		"response_type": "code",
		"client_id":     "app",
		"redirect_uri":  "https://app.example/cb",
		"state":         "xyz",
	}
	for k, v := range extra {
		params[k] = v
	}
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(params), resp, true, "u1")
	if resp.IsError() {
		t.Fatalf("authorize falló: %v %v", resp.ErrorCode(), resp.Params)
	}
	u, err := url.Parse(resp.RedirectURL())
	if err != nil {
		t.Fatalf("redirect inválido: %v", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		t.Fatalf("el redirect no trae code: %s", resp.RedirectURL())
	}
	if got := u.Query().Get("state"); got != params["state"] {
		t.Fatalf("state no propagado: %q", got)
	}
	return code
}

// ─────────────────────────────────────────────────────────────────────
// /authorize
// ─────────────────────────────────────────────────────────────────────

func TestAuthorizeUnknownClient(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "code", "client_id": "ghost", "redirect_uri": "https://app.example/cb",
	}), resp, true, "u1")
	if resp.StatusCode != http.StatusUnauthorized || resp.ErrorCode() != "invalid_client" {
		t.Fatalf("esperaba 401 invalid_client, vino %d %s", resp.StatusCode, resp.ErrorCode())
	}
}

func TestAuthorizeUnregisteredRedirect(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "code", "client_id": "app", "redirect_uri": "https://evil.example/cb", "state": "x",
	}), resp, true, "u1")
	// Nunca se redirige a una URI no verificada.
	if resp.IsRedirect() {
		t.Fatalf("no debería redirigir: %s", resp.RedirectURL())
	}
	if resp.StatusCode != http.StatusBadRequest || resp.ErrorCode() != "invalid_request" {
		t.Fatalf("esperaba 400 invalid_request, vino %d %s", resp.StatusCode, resp.ErrorCode())
	}
}

func TestAuthorizePrefixRedirectWhenRelaxed(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) { c.RequireExactRedirectURI = false })
	code := f.authorize(t, map[string]string{"redirect_uri": "https://app.example/cb?next=/home"})
	if code == "" {
		t.Fatal("prefix match debería aceptarse en modo relajado")
	}
}

func TestAuthorizeEnforceState(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "code", "client_id": "app", "redirect_uri": "https://app.example/cb",
	}), resp, true, "u1")
	if !resp.IsRedirect() || resp.ErrorCode() != "invalid_request" {
		t.Fatalf("state faltante debería redirigir con invalid_request: %d %s", resp.StatusCode, resp.ErrorCode())
	}
}

func TestAuthorizeDenied(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "code", "client_id": "app", "redirect_uri": "https://app.example/cb", "state": "xyz",
	}), resp, false, "u1")
	if !resp.IsRedirect() {
		t.Fatal("la negación debería redirigir")
	}
	u, _ := url.Parse(resp.RedirectURL())
	if u.Query().Get("error") != "access_denied" || u.Query().Get("state") != "xyz" {
		t.Fatalf("redirect inesperado: %s", resp.RedirectURL())
	}
}

func TestAuthorizeUnsupportedScope(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "code", "client_id": "app", "redirect_uri": "https://app.example/cb",
		"state": "xyz", "scope": "admin",
	}), resp, true, "u1")
	if !resp.IsRedirect() || resp.ErrorCode() != "invalid_scope" {
		t.Fatalf("scope desconocido debería redirigir con invalid_scope: %s", resp.ErrorCode())
	}
}

func TestAuthorizeImplicitFragment(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	f.srv.HandleAuthorizeRequest(context.Background(), authorizeRequest(map[string]string{
		"response_type": "token", "client_id": "app", "redirect_uri": "https://app.example/cb", "state": "xyz",
	}), resp, true, "u1")
	if resp.IsError() {
		t.Fatalf("implicit falló: %v", resp.Params)
	}
	loc := resp.RedirectURL()
	_, frag, found := strings.Cut(loc, "#")
	if !found {
		t.Fatalf("implicit debería usar fragment: %s", loc)
	}
	vals, err := url.ParseQuery(frag)
	if err != nil {
		t.Fatalf("fragment ilegible: %v", err)
	}
	if vals.Get("access_token") == "" || vals.Get("token_type") != "Bearer" || vals.Get("state") != "xyz" {
		t.Fatalf("fragment incompleto: %s", frag)
	}
	if vals.Get("refresh_token") != "" {
		t.Fatal("implicit nunca emite refresh token")
	}
	if _, err := f.tokens.GetAccessToken(context.Background(), vals.Get("access_token")); err != nil {
		t.Fatalf("el token implicit debería estar persistido: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────
// /token
// ─────────────────────────────────────────────────────────────────────

func TestTokenRejectsNonPost(t *testing.T) {
	f := newFixture(t, nil)
	req := tokenRequest(map[string]string{"grant_type": "client_credentials"})
	req.Method = http.MethodGet
	resp := f.srv.HandleTokenRequest(context.Background(), req)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("esperaba 405, vino %d", resp.StatusCode)
	}
}

func TestTokenMissingGrantType(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(nil))
	if resp.StatusCode != http.StatusBadRequest || resp.ErrorCode() != "invalid_request" {
		t.Fatalf("esperaba 400 invalid_request, vino %d %s", resp.StatusCode, resp.ErrorCode())
	}
}

func TestTokenUnsupportedGrantType(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{"grant_type": "password"}))
	if resp.ErrorCode() != "unsupported_grant_type" {
		t.Fatalf("esperaba unsupported_grant_type, vino %s", resp.ErrorCode())
	}
}

func TestTokenBadClientCredentials(t *testing.T) {
	f := newFixture(t, nil)
	req := tokenRequest(map[string]string{"grant_type": "client_credentials", "client_secret": "wrong"})
	resp := f.srv.HandleTokenRequest(context.Background(), req)
	if resp.StatusCode != http.StatusUnauthorized || resp.ErrorCode() != "invalid_client" {
		t.Fatalf("esperaba 401 invalid_client, vino %d %s", resp.StatusCode, resp.ErrorCode())
	}
	if resp.Headers.Get("WWW-Authenticate") == "" {
		t.Fatal("falta el challenge WWW-Authenticate")
	}
}

func TestCodeExchangeHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	code := f.authorize(t, nil)

	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": "https://app.example/cb",
	}))
	if resp.IsError() {
		t.Fatalf("canje falló: %v", resp.Params)
	}
	if resp.Headers.Get("Cache-Control") != "no-store" {
		t.Fatal("falta Cache-Control: no-store")
	}
	at, _ := resp.Params["access_token"].(string)
	rt, _ := resp.Params["refresh_token"].(string)
	if at == "" || rt == "" {
		t.Fatalf("respuesta incompleta: %v", resp.Params)
	}
	if resp.Params["token_type"] != "Bearer" {
		t.Fatalf("token_type inesperado: %v", resp.Params["token_type"])
	}
	data, err := f.tokens.GetAccessToken(context.Background(), at)
	if err != nil {
		t.Fatalf("el access token debería estar persistido: %v", err)
	}
	if data.UserID != "u1" || data.ClientID != "app" {
		t.Fatalf("claims persistidas inesperadas: %+v", data)
	}
}

func TestCodeExchangeIsSingleUse(t *testing.T) {
	f := newFixture(t, nil)
	code := f.authorize(t, nil)
	params := map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}

	if resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(params)); resp.IsError() {
		t.Fatalf("primer canje falló: %v", resp.Params)
	}
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(params))
	if resp.ErrorCode() != "invalid_grant" {
		t.Fatalf("segundo canje debería dar invalid_grant, vino %s", resp.ErrorCode())
	}
}

func TestCodeExchangeConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, nil)
	code := f.authorize(t, nil)
	params := map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}

	const workers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(params)); !resp.IsError() {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var n int
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("esperaba exactamente un canje exitoso, hubo %d", n)
	}
}

func TestCodeExchangeRedirectMismatch(t *testing.T) {
	f := newFixture(t, nil)
	code := f.authorize(t, nil)
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/otro",
	}))
	if resp.ErrorCode() != "invalid_grant" {
		t.Fatalf("redirect distinto debería dar invalid_grant, vino %s", resp.ErrorCode())
	}
}

func TestCodeExchangePKCES256(t *testing.T) {
	f := newFixture(t, nil)
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := tokens.SHA256Base64URL(verifier)
	code := f.authorize(t, map[string]string{
		"code_challenge": challenge, "code_challenge_method": "S256",
	})

	// Sin verifier: invalid_request.
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}))
	if resp.ErrorCode() != "invalid_request" {
		t.Fatalf("canje sin verifier debería dar invalid_request, vino %s", resp.ErrorCode())
	}

	// Verifier equivocado: invalid_grant (el code sigue sin consumir).
	resp = f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code,
		"redirect_uri": "https://app.example/cb", "code_verifier": "nope",
	}))
	if resp.ErrorCode() != "invalid_grant" {
		t.Fatalf("verifier incorrecto debería dar invalid_grant, vino %s", resp.ErrorCode())
	}

	// Verifier correcto: éxito.
	resp = f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code,
		"redirect_uri": "https://app.example/cb", "code_verifier": verifier,
	}))
	if resp.IsError() {
		t.Fatalf("canje con verifier correcto falló: %v", resp.Params)
	}
}

func TestRefreshGrantRotation(t *testing.T) {
	f := newFixture(t, nil)
	code := f.authorize(t, nil)
	first := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}))
	oldRefresh, _ := first.Params["refresh_token"].(string)

	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "refresh_token", "refresh_token": oldRefresh,
	}))
	if resp.IsError() {
		t.Fatalf("refresh falló: %v", resp.Params)
	}
	newRefresh, _ := resp.Params["refresh_token"].(string)
	if newRefresh == "" || newRefresh == oldRefresh {
		t.Fatalf("esperaba un refresh token rotado, vino %q", newRefresh)
	}

	// El viejo quedó invalidado (unset_refresh_token_after_use).
	resp = f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "refresh_token", "refresh_token": oldRefresh,
	}))
	if resp.ErrorCode() != "invalid_grant" {
		t.Fatalf("el refresh usado debería dar invalid_grant, vino %s", resp.ErrorCode())
	}
}

func TestRefreshGrantWithoutRotation(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) {
		c.AlwaysIssueNewRefreshToken = false
		c.UnsetRefreshTokenAfterUse = false
	})
	code := f.authorize(t, nil)
	first := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}))
	refresh, _ := first.Params["refresh_token"].(string)

	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "refresh_token", "refresh_token": refresh,
	}))
	if resp.IsError() {
		t.Fatalf("refresh falló: %v", resp.Params)
	}
	if _, ok := resp.Params["refresh_token"]; ok {
		t.Fatal("sin rotación no debería venir refresh_token nuevo")
	}
	// Reutilizable mientras no expire.
	resp = f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "refresh_token", "refresh_token": refresh,
	}))
	if resp.IsError() {
		t.Fatalf("el refresh debería seguir vigente: %v", resp.Params)
	}
}

func TestRefreshGrantScopeEscalationRejected(t *testing.T) {
	f := newFixture(t, nil)
	code := f.authorize(t, map[string]string{"scope": "basic"})
	first := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}))
	refresh, _ := first.Params["refresh_token"].(string)

	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "refresh_token", "refresh_token": refresh, "scope": "basic openid",
	}))
	if resp.ErrorCode() != "invalid_scope" {
		t.Fatalf("ampliar scope debería dar invalid_scope, vino %s", resp.ErrorCode())
	}
}

func TestClientCredentialsGrant(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "client_credentials",
	}))
	if resp.IsError() {
		t.Fatalf("client_credentials falló: %v", resp.Params)
	}
	if _, ok := resp.Params["refresh_token"]; ok {
		t.Fatal("client_credentials nunca emite refresh token")
	}
	at, _ := resp.Params["access_token"].(string)
	data, err := f.tokens.GetAccessToken(context.Background(), at)
	if err != nil {
		t.Fatalf("token no persistido: %v", err)
	}
	if data.UserID != "" {
		t.Fatalf("client_credentials no tiene usuario, vino %q", data.UserID)
	}
}

func TestClientCredentialsRejectsPublicClient(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) { c.AllowPublicClients = true })
	_ = f.clients.AddClient(&oauth2.Client{ID: "spa", RedirectURIs: []string{"https://spa.example/cb"}}, "")

	form := url.Values{}
	form.Set("client_id", "spa")
	form.Set("grant_type", "client_credentials")
	resp := f.srv.HandleTokenRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
	if resp.ErrorCode() != "unauthorized_client" {
		t.Fatalf("public client debería rechazarse, vino %s", resp.ErrorCode())
	}
}

func TestRestrictedGrantTypeRejected(t *testing.T) {
	f := newFixture(t, nil)
	_ = f.clients.AddClient(&oauth2.Client{
		ID: "cc-only", GrantTypes: []string{"client_credentials"},
	}, "x")

	form := url.Values{}
	form.Set("client_id", "cc-only")
	form.Set("client_secret", "x")
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", "whatever")
	resp := f.srv.HandleTokenRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
	if resp.ErrorCode() != "unauthorized_client" {
		t.Fatalf("grant restringido debería dar unauthorized_client, vino %s", resp.ErrorCode())
	}
}

// ─────────────────────────────────────────────────────────────────────
// recursos protegidos, introspección, revocación
// ─────────────────────────────────────────────────────────────────────

func (f *fixture) issueToken(t *testing.T) string {
	t.Helper()
	code := f.authorize(t, nil)
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
	}))
	if resp.IsError() {
		t.Fatalf("emisión falló: %v", resp.Params)
	}
	at, _ := resp.Params["access_token"].(string)
	return at
}

func bearerRequest(tok string) *oauth2.Request {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok)
	return &oauth2.Request{Method: http.MethodGet, Headers: h}
}

func TestGetAccessTokenData(t *testing.T) {
	f := newFixture(t, nil)
	at := f.issueToken(t)

	resp := oauth2.NewResponse()
	data := f.srv.GetAccessTokenData(context.Background(), bearerRequest(at), resp)
	if data == nil {
		t.Fatalf("token válido rechazado: %v", resp.Params)
	}
	if data.UserID != "u1" || data.ClientID != "app" {
		t.Fatalf("datos inesperados: %+v", data)
	}
}

func TestGetAccessTokenDataViaParam(t *testing.T) {
	f := newFixture(t, nil)
	at := f.issueToken(t)

	q := url.Values{}
	q.Set("access_token", at)
	resp := oauth2.NewResponse()
	data := f.srv.GetAccessTokenData(context.Background(), &oauth2.Request{
		Method: http.MethodGet, Query: q, Headers: http.Header{},
	}, resp)
	if data == nil {
		t.Fatalf("token por parámetro rechazado: %v", resp.Params)
	}
}

func TestGetAccessTokenDataRejectsBothMethods(t *testing.T) {
	f := newFixture(t, nil)
	at := f.issueToken(t)

	q := url.Values{}
	q.Set("access_token", at)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+at)
	resp := oauth2.NewResponse()
	if data := f.srv.GetAccessTokenData(context.Background(), &oauth2.Request{
		Method: http.MethodGet, Query: q, Headers: h,
	}, resp); data != nil {
		t.Fatal("header y parámetro a la vez deberían rechazarse")
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("esperaba 400, vino %d", resp.StatusCode)
	}
}

func TestGetAccessTokenDataUnknownToken(t *testing.T) {
	f := newFixture(t, nil)
	resp := oauth2.NewResponse()
	if data := f.srv.GetAccessTokenData(context.Background(), bearerRequest("bogus"), resp); data != nil {
		t.Fatal("token desconocido aceptado")
	}
	if resp.StatusCode != http.StatusUnauthorized || resp.ErrorCode() != "invalid_token" {
		t.Fatalf("esperaba 401 invalid_token, vino %d %s", resp.StatusCode, resp.ErrorCode())
	}
	if !strings.Contains(resp.Headers.Get("WWW-Authenticate"), "invalid_token") {
		t.Fatalf("challenge incompleto: %q", resp.Headers.Get("WWW-Authenticate"))
	}
}

// retainingTokenStore guarda filas sin TTL, como el store de Postgres: una
// fila vencida sigue presente hasta la pasada de limpieza y el engine tiene
// que rechazarla por su propio chequeo de expiración.
type retainingTokenStore struct {
	mu   sync.Mutex
	rows map[string]oauth2.AccessTokenData
}

func (s *retainingTokenStore) GetAccessToken(_ context.Context, token string) (*oauth2.AccessTokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.rows[token]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	return &data, nil
}

func (s *retainingTokenStore) SetAccessToken(_ context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[token] = oauth2.AccessTokenData{
		Token: token, ClientID: clientID, UserID: userID, Expires: expires, Scope: scope,
	}
	return nil
}

func (s *retainingTokenStore) UnsetAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[token]; !ok {
		return oauth2.ErrNotFound
	}
	delete(s.rows, token)
	return nil
}

func TestExpiredTokenRowStillStoredIsRejected(t *testing.T) {
	clients := memory.NewClientStore()
	if err := clients.AddClient(&oauth2.Client{ID: "app"}, "s3cret"); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	store := &retainingTokenStore{rows: map[string]oauth2.AccessTokenData{}}
	srv, err := oauth2.NewServer(oauth2.Storages{Clients: clients, AccessTokens: store}, oauth2.Config{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := store.SetAccessToken(context.Background(), "stale", "app", "u1",
		time.Now().Add(-time.Minute), "basic"); err != nil {
		t.Fatalf("SetAccessToken: %v", err)
	}

	resp := oauth2.NewResponse()
	if data := srv.GetAccessTokenData(context.Background(), bearerRequest("stale"), resp); data != nil {
		t.Fatal("un token vencido pero todavía almacenado fue aceptado")
	}
	if resp.StatusCode != http.StatusUnauthorized || resp.ErrorCode() != "invalid_token" {
		t.Fatalf("esperaba 401 invalid_token, vino %d %s", resp.StatusCode, resp.ErrorCode())
	}

	// RFC 7662: para la introspección el mismo token es 200 active=false.
	form := url.Values{}
	form.Set("token", "stale")
	got := srv.HandleIntrospectRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
	if got.StatusCode != http.StatusOK || got.Params["active"] != false {
		t.Fatalf("esperaba 200 active=false, vino %d %v", got.StatusCode, got.Params)
	}
}

func introspect(f *fixture, tok string) *oauth2.Response {
	form := url.Values{}
	form.Set("token", tok)
	return f.srv.HandleIntrospectRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
}

func TestIntrospectActiveToken(t *testing.T) {
	f := newFixture(t, nil)
	at := f.issueToken(t)

	resp := introspect(f, at)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("esperaba 200, vino %d", resp.StatusCode)
	}
	if resp.Params["active"] != true || resp.Params["client_id"] != "app" {
		t.Fatalf("introspección inesperada: %v", resp.Params)
	}
}

func TestIntrospectUnknownTokenIs200Inactive(t *testing.T) {
	f := newFixture(t, nil)
	resp := introspect(f, "bogus")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("RFC 7662: siempre 200, vino %d", resp.StatusCode)
	}
	if resp.Params["active"] != false {
		t.Fatalf("esperaba active=false: %v", resp.Params)
	}
}

func TestIntrospectRejectsNonPost(t *testing.T) {
	f := newFixture(t, nil)
	q := url.Values{}
	q.Set("token", "x")
	resp := f.srv.HandleIntrospectRequest(context.Background(), &oauth2.Request{
		Method: http.MethodGet, Query: q, Headers: http.Header{},
	})
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("esperaba 405, vino %d", resp.StatusCode)
	}
}

func TestRevokeThenIntrospectInactive(t *testing.T) {
	f := newFixture(t, nil)
	at := f.issueToken(t)

	form := url.Values{}
	form.Set("access_token", at)
	resp := f.srv.HandleRevokeRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
	if resp.StatusCode != http.StatusOK || resp.Params["status"] != true {
		t.Fatalf("revocación falló: %d %v", resp.StatusCode, resp.Params)
	}

	if got := introspect(f, at); got.Params["active"] != false {
		t.Fatalf("el token revocado debería estar inactivo: %v", got.Params)
	}

	// Idempotente.
	resp = f.srv.HandleRevokeRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
	if resp.StatusCode != http.StatusOK || resp.Params["status"] != true {
		t.Fatalf("segunda revocación debería seguir con status=true: %v", resp.Params)
	}
}

// ─────────────────────────────────────────────────────────────────────
// crypto tokens
// ─────────────────────────────────────────────────────────────────────

func TestCryptoTokenRoundtrip(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) { c.UseCryptoTokens = true })
	at := f.issueToken(t)
	if strings.Count(at, ".") != 2 {
		t.Fatalf("esperaba un JWT, vino %q", at)
	}

	resp := oauth2.NewResponse()
	data := f.srv.GetAccessTokenData(context.Background(), bearerRequest(at), resp)
	if data == nil {
		t.Fatalf("crypto token rechazado: %v", resp.Params)
	}
	if data.UserID != "u1" || data.ClientID != "app" || data.TokenType != "Bearer" {
		t.Fatalf("claims inesperadas: %+v", data)
	}
}

func TestCryptoTokenRevocationById(t *testing.T) {
	// store_encrypted_token_string=false: la fila se indexa por el id interno.
	f := newFixture(t, func(c *oauth2.Config) { c.UseCryptoTokens = true })
	at := f.issueToken(t)

	form := url.Values{}
	form.Set("access_token", at)
	resp := f.srv.HandleRevokeRequest(context.Background(), &oauth2.Request{
		Method: http.MethodPost, Form: form, Headers: http.Header{},
	})
	if resp.Params["status"] != true {
		t.Fatalf("revocación falló: %v", resp.Params)
	}

	check := oauth2.NewResponse()
	if data := f.srv.GetAccessTokenData(context.Background(), bearerRequest(at), check); data != nil {
		t.Fatal("el crypto token revocado debería rechazarse")
	}
	if check.ErrorCode() != "invalid_token" {
		t.Fatalf("esperaba invalid_token, vino %s", check.ErrorCode())
	}
}

func TestCryptoTokenStoredAsFullString(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) {
		c.UseCryptoTokens = true
		c.StoreEncryptedTokenString = true
	})
	at := f.issueToken(t)

	// La key de storage es el string firmado completo.
	if _, err := f.tokens.GetAccessToken(context.Background(), at); err != nil {
		t.Fatalf("la fila debería indexarse por el JWT completo: %v", err)
	}

	resp := oauth2.NewResponse()
	if data := f.srv.GetAccessTokenData(context.Background(), bearerRequest(at), resp); data == nil {
		t.Fatalf("crypto token rechazado: %v", resp.Params)
	}
}

func TestCryptoTokenTamperRejected(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) { c.UseCryptoTokens = true })
	at := f.issueToken(t)

	parts := strings.Split(at, ".")
	tampered := parts[0] + ".eyJpZCI6ImZvcmdlZCJ9." + parts[2]
	resp := oauth2.NewResponse()
	if data := f.srv.GetAccessTokenData(context.Background(), bearerRequest(tampered), resp); data != nil {
		t.Fatal("token adulterado aceptado")
	}
	if resp.ErrorCode() != "invalid_token" {
		t.Fatalf("esperaba invalid_token, vino %s", resp.ErrorCode())
	}
}

func TestLimitSingleToken(t *testing.T) {
	f := newFixture(t, func(c *oauth2.Config) { c.LimitSingleToken = true })

	issue := func() (string, string) {
		code := f.authorize(t, nil)
		resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
			"grant_type": "authorization_code", "code": code, "redirect_uri": "https://app.example/cb",
		}))
		if resp.IsError() {
			t.Fatalf("emisión falló: %v", resp.Params)
		}
		at, _ := resp.Params["access_token"].(string)
		rt, _ := resp.Params["refresh_token"].(string)
		return at, rt
	}
	firstAT, firstRT := issue()
	secondAT, _ := issue()

	if _, err := f.tokens.GetAccessToken(context.Background(), firstAT); err == nil {
		t.Fatal("el token anterior del usuario debería haberse purgado")
	}
	if _, err := f.tokens.GetAccessToken(context.Background(), secondAT); err != nil {
		t.Fatalf("el token nuevo debería sobrevivir: %v", err)
	}

	// El refresh de la sesión purgada tampoco revive nada.
	resp := f.srv.HandleTokenRequest(context.Background(), tokenRequest(map[string]string{
		"grant_type": "refresh_token", "refresh_token": firstRT,
	}))
	if resp.ErrorCode() != "invalid_grant" {
		t.Fatalf("el refresh purgado debería dar invalid_grant, vino %s", resp.ErrorCode())
	}
}
