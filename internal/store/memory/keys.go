package memory

import (
	"context"
	"crypto/rsa"
	"errors"
	"sync"
)

// KeyStore mantiene el par RSA de firma en memoria. SetKeyPair permite
// rotarlo en caliente.
type KeyStore struct {
	mu   sync.RWMutex
	priv *rsa.PrivateKey
}

func NewKeyStore(priv *rsa.PrivateKey) *KeyStore {
	return &KeyStore{priv: priv}
}

func (s *KeyStore) SetKeyPair(priv *rsa.PrivateKey) {
	s.mu.Lock()
	s.priv = priv
	s.mu.Unlock()
}

func (s *KeyStore) GetPrivateKey(_ context.Context) (*rsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.priv == nil {
		return nil, errors.New("memory: no hay clave de firma configurada")
	}
	return s.priv, nil
}

func (s *KeyStore) GetPublicKey(_ context.Context) (*rsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.priv == nil {
		return nil, errors.New("memory: no hay clave de firma configurada")
	}
	return &s.priv.PublicKey, nil
}
