package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wpdrift/worker/internal/oauth2"
)

// CodeRepo implementa oauth2.AuthorizationCodeStorage. El consumo es un
// UPDATE condicional: bajo canjes concurrentes exactamente una transacción
// marca used y el resto ve cero filas afectadas.
type CodeRepo struct{ pool *pgxpool.Pool }

func (r *CodeRepo) GetAuthorizationCode(ctx context.Context, code string) (*oauth2.AuthorizationCodeData, error) {
	const query = `
		SELECT code, client_id, user_id, redirect_uri, expires_at, scope,
		       code_challenge, code_challenge_method, nonce
		FROM oauth_authorization_codes WHERE code = $1 AND used = FALSE
	`
	var data oauth2.AuthorizationCodeData
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&data.Code, &data.ClientID, &data.UserID, &data.RedirectURI, &data.Expires,
		&data.Scope, &data.CodeChallenge, &data.CodeChallengeMethod, &data.Nonce,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *CodeRepo) SetAuthorizationCode(ctx context.Context, data *oauth2.AuthorizationCodeData) error {
	const query = `
		INSERT INTO oauth_authorization_codes
			(code, client_id, user_id, redirect_uri, expires_at, scope,
			 code_challenge, code_challenge_method, nonce, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		data.Code, data.ClientID, data.UserID, data.RedirectURI, data.Expires,
		data.Scope, data.CodeChallenge, data.CodeChallengeMethod, data.Nonce)
	return err
}

func (r *CodeRepo) ExpireAuthorizationCode(ctx context.Context, code string) error {
	const query = `
		UPDATE oauth_authorization_codes SET used = TRUE, used_at = NOW()
		WHERE code = $1 AND used = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return oauth2.ErrNotFound
	}
	return nil
}

// PurgeExpired borra codes vencidos o ya usados.
func (r *CodeRepo) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM oauth_authorization_codes WHERE expires_at < NOW() OR used = TRUE`
	tag, err := r.pool.Exec(ctx, query)
	return tag.RowsAffected(), err
}
