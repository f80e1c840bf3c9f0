package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shaiso/Autopost/internal/domain"
)

// rowQuerier — часть pgxpool.Pool, нужная ConnectionRepo.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConnectionRepo читает подключения к WordPress.
//
// Таблица wordpress_connections заполняется сервисом подключений (OAuth),
// здесь только чтение по паре (user_id, connection_id).
type ConnectionRepo struct {
	db rowQuerier
}

// NewConnectionRepo создаёт новый ConnectionRepo. db — обычно *pgxpool.Pool.
func NewConnectionRepo(db rowQuerier) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

// GetCredentials возвращает данные активного подключения пользователя.
func (r *ConnectionRepo) GetCredentials(ctx context.Context, userID, connectionID string) (*domain.Credentials, error) {
	query := `
		SELECT id, site_url, username, application_password
		FROM wordpress_connections
		WHERE id = $1 AND user_id = $2 AND is_active = true
	`

	var creds domain.Credentials
	var username *string
	err := r.db.QueryRow(ctx, query, connectionID, userID).Scan(
		&creds.ConnectionID,
		&creds.SiteURL,
		&username,
		&creds.ApplicationPassword,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection credentials: %w", err)
	}

	if username != nil {
		creds.Username = *username
	}
	return &creds, nil
}
