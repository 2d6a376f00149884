package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/wpdrift/worker/internal/oauth2"
)

// ClientRepo implementa oauth2.ClientStorage.
type ClientRepo struct{ pool *pgxpool.Pool }

func (r *ClientRepo) GetClientDetails(ctx context.Context, clientID string) (*oauth2.Client, error) {
	const query = `
		SELECT client_id, grant_types, redirect_uris, user_id, scope, public
		FROM oauth_clients WHERE client_id = $1
	`
	var cl oauth2.Client
	err := r.pool.QueryRow(ctx, query, clientID).Scan(
		&cl.ID, &cl.GrantTypes, &cl.RedirectURIs, &cl.UserID, &cl.Scope, &cl.Public,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oauth2.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

func (r *ClientRepo) CheckRestrictedGrantType(ctx context.Context, clientID, grantType string) (bool, error) {
	const query = `
		SELECT grant_types = '{}' OR $2 = ANY(grant_types)
		FROM oauth_clients WHERE client_id = $1
	`
	var ok bool
	err := r.pool.QueryRow(ctx, query, clientID, grantType).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, oauth2.ErrNotFound
	}
	return ok, err
}

func (r *ClientRepo) CheckClientCredentials(ctx context.Context, clientID, secret string) (bool, error) {
	const query = `SELECT secret_hash FROM oauth_clients WHERE client_id = $1`
	var hash []byte
	err := r.pool.QueryRow(ctx, query, clientID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, oauth2.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if len(hash) == 0 {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(secret)) == nil, nil
}

func (r *ClientRepo) CheckRedirectURI(ctx context.Context, clientID, uri string) (bool, error) {
	const query = `SELECT $2 = ANY(redirect_uris) FROM oauth_clients WHERE client_id = $1`
	var ok bool
	err := r.pool.QueryRow(ctx, query, clientID, uri).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, oauth2.ErrNotFound
	}
	return ok, err
}

// CreateClient registra un client nuevo (lo usa el CLI). secret vacío
// registra un public client; un client_id ya tomado devuelve ErrConflict.
func (r *ClientRepo) CreateClient(ctx context.Context, c *oauth2.Client, secret string) error {
	var hash []byte
	if secret != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		hash = h
	}
	const query = `
		INSERT INTO oauth_clients (id, client_id, secret_hash, grant_types, redirect_uris, user_id, scope, public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		uuid.NewString(), c.ID, hash, c.GrantTypes, c.RedirectURIs, c.UserID, c.Scope, secret == "")
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return oauth2.ErrConflict
	}
	return err
}

// DeleteClient borra el registro del client. Los tokens vigentes expiran
// solos; no se revocan en cascada.
func (r *ClientRepo) DeleteClient(ctx context.Context, clientID string) error {
	const query = `DELETE FROM oauth_clients WHERE client_id = $1`
	tag, err := r.pool.Exec(ctx, query, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return oauth2.ErrNotFound
	}
	return nil
}
