// Package app arma el contenedor de dependencias del servicio: config,
// logger, storages según driver, engine OAuth2 y rate limiter.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wpdrift/worker/internal/config"
	jwtx "github.com/wpdrift/worker/internal/jwt"
	"github.com/wpdrift/worker/internal/oauth2"
	"github.com/wpdrift/worker/internal/observability/logger"
	"github.com/wpdrift/worker/internal/rate"
	"github.com/wpdrift/worker/internal/store/memory"
	"github.com/wpdrift/worker/internal/store/pg"
	redisstore "github.com/wpdrift/worker/internal/store/redis"
)

// Container agrupa todo lo que los handlers necesitan.
type Container struct {
	Cfg   *config.Config
	Log   *zap.Logger
	OAuth *oauth2.Server

	Storages oauth2.Storages
	Limiter  rate.Limiter

	// Infra subyacente, para health checks y métricas. Nil según driver.
	Pool  *pgxpool.Pool
	Redis *goredis.Client

	// Solo con driver memory: para registrar clients de prueba.
	MemClients *memory.ClientStore
}

// New construye el contenedor completo. El caller es dueño del ciclo de
// vida: Close() libera pools y conexiones.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Cfg: cfg, Log: logger.Named("app")}

	if err := c.buildStorages(ctx); err != nil {
		return nil, err
	}

	su, err := oauth2.NewScopeUtil(cfg.OAuth.DefaultScope, cfg.OAuth.SupportedScopes)
	if err != nil {
		return nil, err
	}
	srv, err := oauth2.NewServer(c.Storages, cfg.ToOAuth2(), oauth2.WithScopeUtil(su))
	if err != nil {
		return nil, err
	}
	c.OAuth = srv

	if cfg.RateLimit.Enabled {
		if c.Redis != nil {
			c.Limiter = rate.NewRedisLimiter(c.Redis, "rl:", cfg.RateLimit.Max, cfg.RateLimit.Window)
		} else {
			c.Limiter = rate.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		}
	}
	return c, nil
}

func (c *Container) buildStorages(ctx context.Context) error {
	cfg := c.Cfg

	switch cfg.Store.Driver {
	case "memory":
		clients := memory.NewClientStore()
		tokens := memory.NewTokenStore()
		codes := memory.NewCodeStore()
		c.MemClients = clients
		c.Storages = oauth2.Storages{
			Clients:       clients,
			AccessTokens:  tokens,
			RefreshTokens: tokens,
			Codes:         codes,
		}
		keys, err := c.loadOrGenerateKeys()
		if err != nil {
			return err
		}
		c.Storages.Keys = keys

	case "postgres":
		pool, err := pg.Connect(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return fmt.Errorf("app: conectando a postgres: %w", err)
		}
		c.Pool = pool
		stores := pg.New(pool)
		c.Storages = oauth2.Storages{
			Clients:       stores.Clients,
			AccessTokens:  stores.Tokens,
			RefreshTokens: stores.Tokens,
			Codes:         stores.Codes,
			Keys:          stores.Keys,
		}
		// Con archivo de clave, el PEM local pisa a la tabla.
		if cfg.Keys.PrivateFile != "" {
			keys, err := c.loadOrGenerateKeys()
			if err != nil {
				return err
			}
			c.Storages.Keys = keys
		}

	default:
		return fmt.Errorf("app: driver desconocido %q", cfg.Store.Driver)
	}

	// Redis opcional: mueve tokens y codes a un storage compartido,
	// manteniendo clients (y keys) en el driver principal.
	if cfg.Store.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB)
		if err != nil {
			return fmt.Errorf("app: conectando a redis: %w", err)
		}
		c.Redis = rdb
		rs := redisstore.New(rdb)
		c.Storages.AccessTokens = rs
		c.Storages.RefreshTokens = rs
		c.Storages.Codes = rs
	}
	return nil
}

// loadOrGenerateKeys resuelve el par RSA: archivo PEM si está configurado,
// o uno efímero (los tokens firmados no sobreviven al proceso).
func (c *Container) loadOrGenerateKeys() (oauth2.PublicKeyStorage, error) {
	if c.Cfg.Keys.PrivateFile != "" {
		priv, err := jwtx.LoadPrivateKeyFile(c.Cfg.Keys.PrivateFile)
		if err != nil {
			return nil, fmt.Errorf("app: cargando clave de firma: %w", err)
		}
		return memory.NewKeyStore(priv), nil
	}
	c.Log.Warn("generando clave de firma efímera; configurá keys.private_file para persistirla")
	priv, err := jwtx.GenerateRSA(2048)
	if err != nil {
		return nil, err
	}
	return memory.NewKeyStore(priv), nil
}

// Close libera las conexiones del contenedor.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
