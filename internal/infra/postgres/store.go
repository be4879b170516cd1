package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fitquiz-assignment-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store keeps users, quizzes and collections as JSONB documents.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.loadOne(ctx, `SELECT data FROM users WHERE id=$1`, id, &user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

func (s *Store) FindUsers(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM users
		WHERE ($1 = '' OR data->>'role' = $1)
		  AND ($2 = '' OR data->>'tenantId' = $2)
		ORDER BY id`, filter.Role, filter.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return scanAll[domain.User](rows)
}

// SaveUser merges the assignment sub-documents into the stored row. Other keys
// of the document are left as they are.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	pending, err := jsonArray(user.PendingQuizzes)
	if err != nil {
		return err
	}
	results, err := jsonArray(user.QuizResults)
	if err != nil {
		return err
	}
	skipped, err := jsonArray(user.SkippedQuizzes)
	if err != nil {
		return err
	}
	assigned, err := jsonArray(user.AssignedCollections)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET data = data || jsonb_build_object(
			'pendingQuizzes', $2::jsonb,
			'quizResults', $3::jsonb,
			'skippedQuizzes', $4::jsonb,
			'assignedCollections', $5::jsonb
		), updated_at = now()
		WHERE id=$1`, user.ID, pending, results, skipped, assigned)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AddPendingQuiz appends one pending entry in place. The guard runs in the
// same statement, so a result or skip written meanwhile wins.
func (s *Store) AddPendingQuiz(ctx context.Context, userID string, entry domain.PendingQuiz) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("marshal pending quiz: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET data = jsonb_set(
			data, '{pendingQuizzes}',
			CASE jsonb_typeof(data->'pendingQuizzes') WHEN 'array' THEN data->'pendingQuizzes' ELSE '[]'::jsonb END
				|| jsonb_build_array($2::jsonb)
		), updated_at = now()
		WHERE id=$1
		  AND NOT COALESCE(data->'pendingQuizzes', '[]'::jsonb) @> jsonb_build_array(jsonb_build_object('quizId', $3::text))
		  AND NOT COALESCE(data->'quizResults', '[]'::jsonb) @> jsonb_build_array(jsonb_build_object('quizId', $3::text))
		  AND NOT COALESCE(data->'skippedQuizzes', '[]'::jsonb) @> jsonb_build_array(jsonb_build_object('quizId', $3::text))`,
		userID, string(data), entry.QuizID)
	if err != nil {
		return false, fmt.Errorf("add pending quiz: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return false, domain.ErrUserNotFound
	}
	return false, nil
}

// PutUser inserts or fully replaces a user document.
func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	return s.upsert(ctx, `
		INSERT INTO users (id, data, created_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, user.ID, user, user.CreatedAt)
}

func (s *Store) FindQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	var quiz domain.Quiz
	if err := s.loadOne(ctx, `SELECT data FROM quizzes WHERE id=$1`, id, &quiz); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuizNotFound
		}
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return &quiz, nil
}

func (s *Store) FindQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM quizzes
		WHERE ($1::boolean IS NULL OR COALESCE((data->>'isActive')::boolean, false) = $1::boolean)
		  AND ($2 = '' OR data->>'triggerType' = $2)
		  AND ($3 = '' OR data->>'tenantId' = $3)
		ORDER BY created_at, id`, filter.IsActive, string(filter.TriggerType), filter.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return scanAll[domain.Quiz](rows)
}

func (s *Store) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	return s.upsert(ctx, `
		INSERT INTO quizzes (id, data, created_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, quiz.ID, quiz, quiz.CreatedAt)
}

func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quizzes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) FindCollectionByID(ctx context.Context, id string) (*domain.Collection, error) {
	var c domain.Collection
	if err := s.loadOne(ctx, `SELECT data FROM collections WHERE id=$1`, id, &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return &c, nil
}

// PutCollection inserts or replaces a collection.
func (s *Store) PutCollection(ctx context.Context, c domain.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO collections (id, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, c.ID, string(data))
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

func (s *Store) loadOne(ctx context.Context, query, id string, dst any) error {
	var raw []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, query, id string, doc any, createdAt any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", id, err)
	}
	if _, err := s.pool.Exec(ctx, query, id, string(data), createdAt); err != nil {
		return fmt.Errorf("save document %s: %w", id, err)
	}
	return nil
}

func scanAll[T any](rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// jsonArray encodes a slice, writing nil as [] so the stored document never
// holds null lists.
func jsonArray[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal user field: %w", err)
	}
	return string(data), nil
}
