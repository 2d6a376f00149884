package pg

import (
	"context"
	"crypto/rsa"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jwtx "github.com/wpdrift/worker/internal/jwt"
	"github.com/wpdrift/worker/internal/oauth2"
)

// KeyRepo implementa oauth2.PublicKeyStorage sobre una tabla de pares PEM.
// La fila activa más reciente es la clave de firma vigente.
type KeyRepo struct{ pool *pgxpool.Pool }

func (r *KeyRepo) GetPrivateKey(ctx context.Context) (*rsa.PrivateKey, error) {
	const query = `
		SELECT private_pem FROM oauth_signing_keys
		WHERE active = TRUE ORDER BY created_at DESC LIMIT 1
	`
	var pem []byte
	err := r.pool.QueryRow(ctx, query).Scan(&pem)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jwtx.ParsePrivatePEM(pem)
}

func (r *KeyRepo) GetPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	priv, err := r.GetPrivateKey(ctx)
	if err != nil {
		return nil, err
	}
	return &priv.PublicKey, nil
}

// RotateKey inserta un par nuevo como activo y desactiva los anteriores.
func (r *KeyRepo) RotateKey(ctx context.Context, priv *rsa.PrivateKey) error {
	privPEM := jwtx.EncodePrivatePEM(priv)
	pubPEM, err := jwtx.EncodePublicPEM(&priv.PublicKey)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE oauth_signing_keys SET active = FALSE WHERE active = TRUE`); err != nil {
		return err
	}
	const insert = `
		INSERT INTO oauth_signing_keys (id, private_pem, public_pem, active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
	`
	if _, err := tx.Exec(ctx, insert, uuid.NewString(), privPEM, pubPEM); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
