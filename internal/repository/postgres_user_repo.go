package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tunetalk/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pqUniqueViolation = "23505"

// pqCheckViolation はPostgreSQLのCHECK制約違反のエラーコード。
const pqCheckViolation = "23514"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, privy_user_id, email, display_name, created_at, updated_at FROM users WHERE id = $1`,
		id,
	)
}

// FindByPrivyUserID は外部subjectでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByPrivyUserID(ctx context.Context, privyUserID string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, privy_user_id, email, display_name, created_at, updated_at FROM users WHERE privy_user_id = $1`,
		privyUserID,
	)
}

// findOne は1件取得クエリを実行する。
func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	var email, displayName sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.PrivyUserID, &email, &displayName, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.Email = email.String
	user.DisplayName = displayName.String
	return user, nil
}

// Create はユーザーを作成する。
// privy_user_idの一意制約に違反した場合はErrDuplicateKeyを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, privy_user_id, email, display_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.PrivyUserID, nullString(user.Email), nullString(user.DisplayName),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// UpdateEmail は指定ユーザーのemailとupdated_atを更新する。
func (r *PostgresUserRepo) UpdateEmail(ctx context.Context, id, email string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $1, updated_at = NOW() WHERE id = $2`,
		nullString(email), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update user email: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLとして格納するためのヘルパー。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
