package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wpdrift/worker/internal/oauth2"
)

// TokenRepo implementa oauth2.AccessTokenStorage, oauth2.RefreshTokenStorage
// y oauth2.UserTokenPurger.
type TokenRepo struct{ pool *pgxpool.Pool }

func (r *TokenRepo) GetAccessToken(ctx context.Context, token string) (*oauth2.AccessTokenData, error) {
	const query = `
		SELECT token, client_id, user_id, expires_at, scope
		FROM oauth_access_tokens WHERE token = $1
	`
	var data oauth2.AccessTokenData
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&data.Token, &data.ClientID, &data.UserID, &data.Expires, &data.Scope,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *TokenRepo) SetAccessToken(ctx context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	const query = `
		INSERT INTO oauth_access_tokens (token, client_id, user_id, expires_at, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.pool.Exec(ctx, query, token, clientID, userID, expires, scope)
	return err
}

func (r *TokenRepo) UnsetAccessToken(ctx context.Context, token string) error {
	const query = `DELETE FROM oauth_access_tokens WHERE token = $1`
	tag, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return oauth2.ErrNotFound
	}
	return nil
}

// UnsetUserTokens borra los access y refresh tokens del usuario salvo los
// recién emitidos (política de sesión única). Los refresh viejos también van:
// si quedaran, la sesión purgada se refresca de vuelta a la vida.
func (r *TokenRepo) UnsetUserTokens(ctx context.Context, userID, exceptAccess, exceptRefresh string) error {
	const query = `DELETE FROM oauth_access_tokens WHERE user_id = $1 AND token <> $2`
	if _, err := r.pool.Exec(ctx, query, userID, exceptAccess); err != nil {
		return err
	}
	const refreshQuery = `DELETE FROM oauth_refresh_tokens WHERE user_id = $1 AND token <> $2`
	_, err := r.pool.Exec(ctx, refreshQuery, userID, exceptRefresh)
	return err
}

func (r *TokenRepo) GetRefreshToken(ctx context.Context, token string) (*oauth2.RefreshTokenData, error) {
	const query = `
		SELECT token, client_id, user_id, COALESCE(expires_at, 'epoch'::timestamptz), scope
		FROM oauth_refresh_tokens WHERE token = $1
	`
	var data oauth2.RefreshTokenData
	var expires time.Time
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&data.Token, &data.ClientID, &data.UserID, &expires, &data.Scope,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// expires_at NULL = no expira; se representa con el zero value.
	if expires.Unix() > 0 {
		data.Expires = expires
	}
	return &data, nil
}

func (r *TokenRepo) SetRefreshToken(ctx context.Context, token, clientID, userID string, expires time.Time, scope string) error {
	const query = `
		INSERT INTO oauth_refresh_tokens (token, client_id, user_id, expires_at, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	var exp *time.Time
	if !expires.IsZero() {
		exp = &expires
	}
	_, err := r.pool.Exec(ctx, query, token, clientID, userID, exp, scope)
	return err
}

func (r *TokenRepo) UnsetRefreshToken(ctx context.Context, token string) error {
	const query = `DELETE FROM oauth_refresh_tokens WHERE token = $1`
	tag, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return oauth2.ErrNotFound
	}
	return nil
}

// PurgeExpired borra filas vencidas. Pensado para un cron o un ticker del
// proceso; el engine nunca depende de esto para la validez.
func (r *TokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_access_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return total, err
	}
	total += tag.RowsAffected()
	tag, err = r.pool.Exec(ctx, `DELETE FROM oauth_refresh_tokens WHERE expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return total, err
	}
	total += tag.RowsAffected()
	return total, nil
}
