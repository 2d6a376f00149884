package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wpdrift/worker/internal/oauth2"
)

// TokenStore persiste access y refresh tokens sobre go-cache: la expiración
// de la fila es la expiración del token, así los vencidos desaparecen solos.
type TokenStore struct {
	access  *gocache.Cache
	refresh *gocache.Cache
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		access:  gocache.New(gocache.NoExpiration, 5*time.Minute),
		refresh: gocache.New(gocache.NoExpiration, 5*time.Minute),
	}
}

func (s *TokenStore) GetAccessToken(_ context.Context, token string) (*oauth2.AccessTokenData, error) {
	v, ok := s.access.Get(token)
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	data := v.(oauth2.AccessTokenData)
	return &data, nil
}

func (s *TokenStore) SetAccessToken(_ context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	ttl := gocache.NoExpiration
	if !expires.IsZero() {
		ttl = time.Until(expires)
		if ttl <= 0 {
			// Ya vencido: no hay nada que persistir.
			return nil
		}
	}
	s.access.Set(token, oauth2.AccessTokenData{
		Token:    token,
		ClientID: clientID,
		UserID:   userID,
		Expires:  expires,
		Scope:    scope,
	}, ttl)
	return nil
}

func (s *TokenStore) UnsetAccessToken(_ context.Context, token string) error {
	if _, ok := s.access.Get(token); !ok {
		return oauth2.ErrNotFound
	}
	s.access.Delete(token)
	return nil
}

// UnsetUserTokens implementa la política de sesión única: borra los access y
// refresh tokens del usuario salvo los recién emitidos. Si los refresh viejos
// quedaran, la sesión purgada se refresca de vuelta a la vida.
func (s *TokenStore) UnsetUserTokens(_ context.Context, userID, exceptAccess, exceptRefresh string) error {
	for key, item := range s.access.Items() {
		data, ok := item.Object.(oauth2.AccessTokenData)
		if !ok || data.UserID != userID || key == exceptAccess {
			continue
		}
		s.access.Delete(key)
	}
	for key, item := range s.refresh.Items() {
		data, ok := item.Object.(oauth2.RefreshTokenData)
		if !ok || data.UserID != userID || key == exceptRefresh {
			continue
		}
		s.refresh.Delete(key)
	}
	return nil
}

func (s *TokenStore) GetRefreshToken(_ context.Context, token string) (*oauth2.RefreshTokenData, error) {
	v, ok := s.refresh.Get(token)
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	data := v.(oauth2.RefreshTokenData)
	return &data, nil
}

func (s *TokenStore) SetRefreshToken(_ context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	ttl := gocache.NoExpiration
	if !expires.IsZero() {
		ttl = time.Until(expires)
		if ttl <= 0 {
			return nil
		}
	}
	s.refresh.Set(token, oauth2.RefreshTokenData{
		Token:    token,
		ClientID: clientID,
		UserID:   userID,
		Expires:  expires,
		Scope:    scope,
	}, ttl)
	return nil
}

func (s *TokenStore) UnsetRefreshToken(_ context.Context, token string) error {
	if _, ok := s.refresh.Get(token); !ok {
		return oauth2.ErrNotFound
	}
	s.refresh.Delete(token)
	return nil
}
