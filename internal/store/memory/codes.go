package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wpdrift/worker/internal/oauth2"
)

// CodeStore guarda authorization codes. El consumo borra la entrada bajo el
// mutex, así dos canjes concurrentes del mismo code tienen exactamente un
// ganador y los codes usados no se acumulan.
type CodeStore struct {
	mu    sync.Mutex
	codes map[string]oauth2.AuthorizationCodeData
}

func NewCodeStore() *CodeStore {
	return &CodeStore{codes: map[string]oauth2.AuthorizationCodeData{}}
}

func (s *CodeStore) GetAuthorizationCode(_ context.Context, code string) (*oauth2.AuthorizationCodeData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.codes[code]
	if !ok {
		return nil, oauth2.ErrNotFound
	}
	return &data, nil
}

func (s *CodeStore) SetAuthorizationCode(_ context.Context, data *oauth2.AuthorizationCodeData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Barrido oportunista: los codes vencidos que nadie canjeó se van acá.
	now := time.Now()
	for key, entry := range s.codes {
		if !entry.Expires.IsZero() && now.After(entry.Expires) {
			delete(s.codes, key)
		}
	}
	s.codes[data.Code] = *data
	return nil
}

func (s *CodeStore) ExpireAuthorizationCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; !ok {
		return oauth2.ErrNotFound
	}
	delete(s.codes, code)
	return nil
}
