// Package pg implementa los storages del authorization server sobre
// PostgreSQL (pgx v5). Cada repo mapea pgx.ErrNoRows a oauth2.ErrNotFound
// para que el engine distinga "no existe" de fallas reales.
package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores agrupa los repos de un pool compartido.
type Stores struct {
	Clients *ClientRepo
	Tokens  *TokenRepo
	Codes   *CodeRepo
	Keys    *KeyRepo
}

func New(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Clients: &ClientRepo{pool: pool},
		Tokens:  &TokenRepo{pool: pool},
		Codes:   &CodeRepo{pool: pool},
		Keys:    &KeyRepo{pool: pool},
	}
}

// Connect abre el pool y verifica la conexión.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
