package repo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shaiso/Autopost/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// execer — часть pgxpool.Pool, нужная Migrate.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// workflowDB — часть pgxpool.Pool, нужная WorkflowRepo.
type workflowDB interface {
	execer
	rowQuerier
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Migrate применяет SQL-миграции из migrations/ по порядку имён.
// Миграции идемпотентны (IF NOT EXISTS). db — обычно *pgxpool.Pool.
func Migrate(ctx context.Context, db execer) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// WorkflowRepo — WorkflowStore поверх PostgreSQL.
type WorkflowRepo struct {
	db workflowDB
}

// NewWorkflowRepo создаёт новый WorkflowRepo. db — обычно *pgxpool.Pool.
func NewWorkflowRepo(db workflowDB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

var _ WorkflowStore = (*WorkflowRepo)(nil)

const workflowColumns = `
	id, user_id, connection_id, title, content, content_type, tags, categories,
	publish_immediately, scheduled_publish_time, seo_title, seo_description,
	featured_image_url, status, external_id, link, error_message, retry_count,
	max_retries, manual_retries, created_at, updated_at, completed_at
`

// Create создаёт новый workflow.
func (r *WorkflowRepo) Create(ctx context.Context, w *domain.Workflow) error {
	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := r.db.Exec(ctx, query,
		w.ID,
		w.UserID,
		w.ConnectionID,
		w.Title,
		w.Content,
		string(w.ContentType),
		w.Tags,
		w.Categories,
		w.PublishImmediately,
		w.ScheduledPublishTime,
		nullString(w.SEOTitle),
		nullString(w.SEODescription),
		nullString(w.FeaturedImageURL),
		string(w.Status),
		w.ExternalID,
		nullString(w.Link),
		w.ErrorMessage,
		w.RetryCount,
		w.MaxRetries,
		w.ManualRetries,
		w.CreatedAt,
		w.UpdatedAt,
		w.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

// Get возвращает workflow по ID.
func (r *WorkflowRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`
	return scanWorkflow(r.db.QueryRow(ctx, query, id))
}

// List возвращает список workflows с фильтрацией.
// Limit <= 0 — без ограничения (LIMIT NULL).
func (r *WorkflowRepo) List(ctx context.Context, filter WorkflowFilter) ([]domain.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE ($1::text IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, listArgs(filter)...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	workflows := []domain.Workflow{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *w)
	}
	return workflows, rows.Err()
}

// Count возвращает количество workflows под фильтром.
func (r *WorkflowRepo) Count(ctx context.Context, filter WorkflowFilter) (int, error) {
	query := `
		SELECT count(*)
		FROM workflows
		WHERE ($1::text IS NULL OR user_id = $1)
		  AND ($2::text IS NULL OR status = $2)
	`
	var n int
	err := r.db.QueryRow(ctx, query, nullString(filter.UserID), nullString(string(filter.Status))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count workflows: %w", err)
	}
	return n, nil
}

// Update читает запись под FOR UPDATE, применяет mutate и сохраняет в той же транзакции.
func (r *WorkflowRepo) Update(ctx context.Context, id uuid.UUID, mutate func(w *domain.Workflow) error) (*domain.Workflow, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1 FOR UPDATE`
	w, err := scanWorkflow(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if err := mutate(w); err != nil {
		return nil, err
	}

	update := `
		UPDATE workflows
		SET status = $2, external_id = $3, link = $4, error_message = $5,
		    retry_count = $6, manual_retries = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, update,
		w.ID,
		string(w.Status),
		w.ExternalID,
		nullString(w.Link),
		w.ErrorMessage,
		w.RetryCount,
		w.ManualRetries,
		w.UpdatedAt,
		w.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return w, nil
}

// Cancel переводит workflow в CANCELLED, если это допустимо.
func (r *WorkflowRepo) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Workflow, bool, error) {
	w, err := r.Update(ctx, id, func(w *domain.Workflow) error {
		if !w.Status.IsCancellable() {
			return ErrInvalidState
		}
		w.MarkCancelled(at)
		return nil
	})
	if errors.Is(err, ErrInvalidState) {
		current, getErr := r.Get(ctx, id)
		return current, false, getErr
	}
	if err != nil {
		return nil, false, err
	}
	return w, true, nil
}

// CountByStatus возвращает количество workflows по статусам.
func (r *WorkflowRepo) CountByStatus(ctx context.Context) (map[domain.WorkflowStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM workflows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count workflows: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.WorkflowStatus]int, len(domain.AllStatuses()))
	for _, st := range domain.AllStatuses() {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.WorkflowStatus(status)] = n
	}
	return counts, rows.Err()
}

// --- Helpers ---

// scanWorkflow сканирует одну строку в Workflow. Подходит и для pgx.Row, и для pgx.Rows.
func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var w domain.Workflow
	var contentType, status string
	var seoTitle, seoDescription, featuredImage, link *string

	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.ConnectionID,
		&w.Title,
		&w.Content,
		&contentType,
		&w.Tags,
		&w.Categories,
		&w.PublishImmediately,
		&w.ScheduledPublishTime,
		&seoTitle,
		&seoDescription,
		&featuredImage,
		&status,
		&w.ExternalID,
		&link,
		&w.ErrorMessage,
		&w.RetryCount,
		&w.MaxRetries,
		&w.ManualRetries,
		&w.CreatedAt,
		&w.UpdatedAt,
		&w.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workflow: %w", err)
	}

	w.ContentType = domain.ContentType(contentType)
	w.Status = domain.WorkflowStatus(status)
	w.SEOTitle = derefString(seoTitle)
	w.SEODescription = derefString(seoDescription)
	w.FeaturedImageURL = derefString(featuredImage)
	w.Link = derefString(link)
	if w.Tags == nil {
		w.Tags = []string{}
	}
	if w.Categories == nil {
		w.Categories = []string{}
	}

	return &w, nil
}

// listArgs возвращает параметры запроса List. Пустой фильтр и Limit <= 0 дают NULL.
func listArgs(filter WorkflowFilter) []any {
	var limit *int
	if filter.Limit > 0 {
		l := filter.Limit
		limit = &l
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return []any{
		nullString(filter.UserID),
		nullString(string(filter.Status)),
		limit,
		offset,
	}
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
