// Package config carga la configuración del servicio: YAML como base y
// variables de entorno como override. Los nombres de las opciones OAuth
// siguen la nomenclatura clásica (enforce_state, use_crypto_tokens, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wpdrift/worker/internal/oauth2"
)

type Config struct {
	Env     string `yaml:"env"`     // dev | prod
	Enabled bool   `yaml:"enabled"` // false = 503 en todos los endpoints OAuth

	HTTP struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Store struct {
		// Driver de clients y keys: "memory" | "postgres".
		Driver      string `yaml:"driver"`
		PostgresDSN string `yaml:"postgres_dsn"`
		// Tokens y codes pueden ir a Redis aunque los clients estén en
		// Postgres. Vacío = mismo driver que el resto.
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Keys struct {
		PrivateFile string `yaml:"private_file"` // PEM RSA; vacío = generar al vuelo (solo dev)
		KeyID       string `yaml:"key_id"`
	} `yaml:"keys"`

	RateLimit struct {
		Enabled bool          `yaml:"enabled"`
		Max     int           `yaml:"max"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`

	OAuth OAuthSection `yaml:"oauth"`
}

// OAuthSection mapea 1:1 a oauth2.Config.
type OAuthSection struct {
	Issuer         string `yaml:"issuer"`
	TokenParamName string `yaml:"token_param_name"`
	Realm          string `yaml:"realm"`

	AccessLifetime    time.Duration `yaml:"access_lifetime"`
	RefreshLifetime   time.Duration `yaml:"refresh_token_lifetime"` // negativo = no expira
	AuthCodeLifetime  time.Duration `yaml:"auth_code_lifetime"`
	AccessTokenLength int           `yaml:"access_token_length"`

	EnforceState bool `yaml:"enforce_state"`
	// Puntero para distinguir ausente de false: el default es exact match.
	RequireExactRedirectURI       *bool `yaml:"require_exact_redirect_uri"`
	AllowImplicit                 bool  `yaml:"allow_implicit"`
	AllowCredentialsInRequestBody bool  `yaml:"allow_credentials_in_request_body"`
	AllowPublicClients            bool  `yaml:"allow_public_clients"`
	AlwaysIssueNewRefreshToken    bool  `yaml:"always_issue_new_refresh_token"`
	UnsetRefreshTokenAfterUse     bool  `yaml:"unset_refresh_token_after_use"`

	UseCryptoTokens           bool `yaml:"use_crypto_tokens"`
	StoreEncryptedTokenString bool `yaml:"store_encrypted_token_string"`
	LimitSingleToken          bool `yaml:"limit_single_token"`

	DefaultScope    string   `yaml:"default_scope"`
	SupportedScopes []string `yaml:"supported_scopes"`
	LoginURL        string   `yaml:"login_url"` // a dónde mandar usuarios sin sesión
}

// Load lee el YAML (opcional), aplica overrides de entorno y defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Enabled = true

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: leyendo %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parseando %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Env, "WORKER_ENV")
	setStr(&c.HTTP.Addr, "WORKER_HTTP_ADDR")
	setStr(&c.Log.Level, "WORKER_LOG_LEVEL")
	setStr(&c.Store.Driver, "WORKER_STORE_DRIVER")
	setStr(&c.Store.PostgresDSN, "WORKER_POSTGRES_DSN")
	setStr(&c.Store.Redis.Addr, "WORKER_REDIS_ADDR")
	setStr(&c.Store.Redis.Password, "WORKER_REDIS_PASSWORD")
	setStr(&c.Keys.PrivateFile, "WORKER_PRIVATE_KEY_FILE")
	setStr(&c.OAuth.Issuer, "WORKER_ISSUER")

	if v := os.Getenv("WORKER_ENABLED"); v != "" {
		c.Enabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("WORKER_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 120
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.OAuth.Issuer == "" {
		c.OAuth.Issuer = "http://localhost:8080"
	}
	if c.OAuth.AccessLifetime == 0 {
		c.OAuth.AccessLifetime = time.Hour
	}
	if c.OAuth.AuthCodeLifetime == 0 {
		c.OAuth.AuthCodeLifetime = 5 * time.Minute
	}
	if c.OAuth.RefreshLifetime == 0 {
		c.OAuth.RefreshLifetime = 14 * 24 * time.Hour
	}
	if c.OAuth.DefaultScope == "" {
		c.OAuth.DefaultScope = "basic"
	}
	if len(c.OAuth.SupportedScopes) == 0 {
		c.OAuth.SupportedScopes = []string{"basic", "openid", "profile", "email"}
	}
	if c.Keys.KeyID == "" {
		c.Keys.KeyID = "default"
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("config: store.driver=postgres requiere postgres_dsn")
		}
	default:
		return fmt.Errorf("config: store.driver desconocido %q", c.Store.Driver)
	}
	if c.Env == "prod" && c.Keys.PrivateFile == "" && c.Store.Driver == "memory" {
		return fmt.Errorf("config: en prod la clave de firma debe persistirse (keys.private_file)")
	}
	return nil
}

// ToOAuth2 traduce la sección oauth al Config del engine. Un
// refresh_token_lifetime negativo significa "sin expiración" (el engine usa
// cero para eso).
func (c *Config) ToOAuth2() oauth2.Config {
	o := c.OAuth
	if o.RefreshLifetime < 0 {
		o.RefreshLifetime = 0
	}
	exactRedirect := true
	if o.RequireExactRedirectURI != nil {
		exactRedirect = *o.RequireExactRedirectURI
	}
	return oauth2.Config{
		Issuer:                        o.Issuer,
		WWWRealm:                      o.Realm,
		TokenParamName:                o.TokenParamName,
		AccessLifetime:                o.AccessLifetime,
		RefreshLifetime:               o.RefreshLifetime,
		AuthCodeLifetime:              o.AuthCodeLifetime,
		AccessTokenLength:             o.AccessTokenLength,
		EnforceState:                  o.EnforceState,
		RequireExactRedirectURI:       exactRedirect,
		AllowImplicit:                 o.AllowImplicit,
		AllowCredentialsInRequestBody: o.AllowCredentialsInRequestBody,
		AllowPublicClients:            o.AllowPublicClients,
		AlwaysIssueNewRefreshToken:    o.AlwaysIssueNewRefreshToken,
		UnsetRefreshTokenAfterUse:     o.UnsetRefreshTokenAfterUse,
		UseCryptoTokens:               o.UseCryptoTokens,
		StoreEncryptedTokenString:     o.StoreEncryptedTokenString,
		LimitSingleToken:              o.LimitSingleToken,
	}
}
