// Package redis implementa los storages de tokens y codes sobre Redis.
// Los valores son JSON con TTL igual a la vida del token; el consumo de
// authorization codes usa GETDEL, que garantiza un único ganador.
// No implementa ClientStorage: los clients viven en Postgres o en memoria.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wpdrift/worker/internal/oauth2"
)

const (
	accessPrefix  = "oauth:at:"
	refreshPrefix = "oauth:rt:"
	codePrefix    = "oauth:code:"
)

// Store implementa AccessTokenStorage, RefreshTokenStorage y
// AuthorizationCodeStorage.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Connect abre el cliente y verifica la conexión.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (s *Store) GetAccessToken(ctx context.Context, token string) (*oauth2.AccessTokenData, error) {
	var data oauth2.AccessTokenData
	if err := s.getJSON(ctx, accessPrefix+token, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *Store) SetAccessToken(ctx context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	return s.setJSON(ctx, accessPrefix+token, oauth2.AccessTokenData{
		Token:    token,
		ClientID: clientID,
		UserID:   userID,
		Expires:  expires,
		Scope:    scope,
	}, ttlUntil(expires))
}

func (s *Store) UnsetAccessToken(ctx context.Context, token string) error {
	return s.del(ctx, accessPrefix+token)
}

func (s *Store) GetRefreshToken(ctx context.Context, token string) (*oauth2.RefreshTokenData, error) {
	var data oauth2.RefreshTokenData
	if err := s.getJSON(ctx, refreshPrefix+token, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *Store) SetRefreshToken(ctx context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	return s.setJSON(ctx, refreshPrefix+token, oauth2.RefreshTokenData{
		Token:    token,
		ClientID: clientID,
		UserID:   userID,
		Expires:  expires,
		Scope:    scope,
	}, ttlUntil(expires))
}

func (s *Store) UnsetRefreshToken(ctx context.Context, token string) error {
	return s.del(ctx, refreshPrefix+token)
}

func (s *Store) GetAuthorizationCode(ctx context.Context, code string) (*oauth2.AuthorizationCodeData, error) {
	var data oauth2.AuthorizationCodeData
	if err := s.getJSON(ctx, codePrefix+code, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *Store) SetAuthorizationCode(ctx context.Context, data *oauth2.AuthorizationCodeData) error {
	return s.setJSON(ctx, codePrefix+data.Code, data, ttlUntil(data.Expires))
}

// ExpireAuthorizationCode consume el code con GETDEL: la operación es
// atómica en el server, así que exactamente un caller recibe el valor.
func (s *Store) ExpireAuthorizationCode(ctx context.Context, code string) error {
	err := s.rdb.GetDel(ctx, codePrefix+code).Err()
	if errors.Is(err, redis.Nil) {
		return oauth2.ErrNotFound
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────

func ttlUntil(expires time.Time) time.Duration {
	if expires.IsZero() {
		return 0 // sin TTL
	}
	return time.Until(expires)
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return oauth2.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) setJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if ttl < 0 {
		// Ya vencido: no persistir nada.
		return nil
	}
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}

func (s *Store) del(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return oauth2.ErrNotFound
	}
	return nil
}
