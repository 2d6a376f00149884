package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wpdrift/worker/internal/config"
)

// Flujo completo con rotación de refresh tokens sobre HTTP real.
func TestRefreshRotationOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	code := authorizeCode(t, ts)

	res, body := postForm(t, ts.URL+"/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example/cb"},
		"client_id":     {"app"},
		"client_secret": {"s3cret"},
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	oldRefresh, _ := body["refresh_token"].(string)
	require.NotEmpty(t, oldRefresh)

	refreshForm := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {oldRefresh},
		"client_id":     {"app"},
		"client_secret": {"s3cret"},
	}
	res, body = postForm(t, ts.URL+"/oauth/token", refreshForm)
	require.Equal(t, http.StatusOK, res.StatusCode)
	newRefresh, _ := body["refresh_token"].(string)
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, oldRefresh, newRefresh, "el refresh debe rotar")
	require.NotEmpty(t, body["access_token"])

	// El refresh viejo quedó invalidado.
	res, body = postForm(t, ts.URL+"/oauth/token", refreshForm)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "invalid_grant", body["error"])
}

// Con crypto tokens el flujo HTTP es el mismo pero el access token es un JWT
// y la revocación sigue funcionando vía la fila de respaldo.
func TestCryptoTokenFlowOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.OAuth.UseCryptoTokens = true
	})
	code := authorizeCode(t, ts)

	res, body := postForm(t, ts.URL+"/oauth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example/cb"},
		"client_id":     {"app"},
		"client_secret": {"s3cret"},
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	access, _ := body["access_token"].(string)
	require.Regexp(t, `^[^.]+\.[^.]+\.[^.]+$`, access, "esperaba un JWT")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/oauth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+access)
	meRes, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer meRes.Body.Close()
	require.Equal(t, http.StatusOK, meRes.StatusCode)

	_, rev := postForm(t, ts.URL+"/oauth/revoke", url.Values{"access_token": {access}})
	require.Equal(t, true, rev["status"])

	_, intro := postForm(t, ts.URL+"/oauth/introspect", url.Values{"token": {access}})
	require.Equal(t, false, intro["active"])
}
