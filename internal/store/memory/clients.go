// Package memory implementa los storages del authorization server en
// proceso: go-cache para tokens con TTL, maps con mutex para clients y
// codes. Pensado para tests, demos y deployments de un solo nodo.
package memory

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/wpdrift/worker/internal/oauth2"
)

type clientRecord struct {
	client     oauth2.Client
	secretHash []byte // vacío para public clients
}

// ClientStore guarda clients registrados con el secret hasheado (bcrypt).
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*clientRecord
}

func NewClientStore() *ClientStore {
	return &ClientStore{clients: map[string]*clientRecord{}}
}

// AddClient registra un client nuevo; un client_id ya tomado devuelve
// ErrConflict. secret vacío implica un public client.
func (s *ClientStore) AddClient(c *oauth2.Client, secret string) error {
	rec := &clientRecord{client: *c}
	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		rec.secretHash = hash
	} else {
		rec.client.Public = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return oauth2.ErrConflict
	}
	s.clients[c.ID] = rec
	return nil
}

func (s *ClientStore) GetClientDetails(_ context.Context, clientID string) (*oauth2.Client, error) {
	s.mu.RLock()
	rec, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	cl := rec.client
	return &cl, nil
}

func (s *ClientStore) CheckRestrictedGrantType(_ context.Context, clientID, grantType string) (bool, error) {
	s.mu.RLock()
	rec, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return false, oauth2.ErrNotFound
	}
	// Sin lista = sin restricción.
	if len(rec.client.GrantTypes) == 0 {
		return true, nil
	}
	return slices.Contains(rec.client.GrantTypes, grantType), nil
}

func (s *ClientStore) CheckClientCredentials(_ context.Context, clientID, secret string) (bool, error) {
	s.mu.RLock()
	rec, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return false, oauth2.ErrNotFound
	}
	if len(rec.secretHash) == 0 {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword(rec.secretHash, []byte(secret)) == nil, nil
}

func (s *ClientStore) CheckRedirectURI(_ context.Context, clientID, uri string) (bool, error) {
	s.mu.RLock()
	rec, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return false, oauth2.ErrNotFound
	}
	return slices.Contains(rec.client.RedirectURIs, uri), nil
}
