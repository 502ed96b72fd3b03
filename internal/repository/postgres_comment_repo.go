package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tunetalk/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	comment := &model.Comment{}
	var trackURI, userID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, playlist_id, track_uri, text, user_id, created_at
		 FROM comments WHERE id = $1`,
		id,
	).Scan(&comment.ID, &comment.PlaylistID, &trackURI, &comment.Text, &userID, &comment.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	comment.TrackURI = nullableString(trackURI)
	comment.UserID = nullableString(userID)
	return comment, nil
}

// List はフィルタ条件に一致するコメントをcreated_at昇順で返す。
// TrackURIがnilの場合は明示的にtrack_uri IS NULLで絞り込む
// （「任意の楽曲」ではなく「プレイリスト直下のみ」の意味）。
func (r *PostgresCommentRepo) List(ctx context.Context, filter CommentFilter) ([]*model.Comment, error) {
	query := `SELECT id, playlist_id, track_uri, text, user_id, created_at
	          FROM comments WHERE playlist_id = $1`
	args := []any{filter.PlaylistID}

	if filter.TrackURI != nil {
		query += ` AND track_uri = $2`
		args = append(args, *filter.TrackURI)
	} else {
		query += ` AND track_uri IS NULL`
	}

	query += fmt.Sprintf(` ORDER BY created_at ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		comment := &model.Comment{}
		var trackURI, userID sql.NullString
		if err := rows.Scan(&comment.ID, &comment.PlaylistID, &trackURI, &comment.Text, &userID, &comment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comment.TrackURI = nullableString(trackURI)
		comment.UserID = nullableString(userID)
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return comments, nil
}

// Create はコメントを作成する。
// CHECK制約違反の場合はErrCheckViolationを返す。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	var trackURI, userID sql.NullString
	if comment.TrackURI != nil {
		trackURI = sql.NullString{String: *comment.TrackURI, Valid: true}
	}
	if comment.UserID != nil {
		userID = sql.NullString{String: *comment.UserID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO comments (id, playlist_id, track_uri, text, user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		comment.ID, comment.PlaylistID, trackURI, comment.Text, userID,
	).Scan(&comment.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqCheckViolation {
			return ErrCheckViolation
		}
		return fmt.Errorf("failed to insert comment: %w", err)
	}

	return nil
}

// CountByTrackURIs はプレイリスト内の指定楽曲ごとのコメント数を返す。
// コメントのない楽曲は結果に含まれない。
func (r *PostgresCommentRepo) CountByTrackURIs(ctx context.Context, playlistID string, trackURIs []string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT track_uri, COUNT(*) AS comment_count
		 FROM comments
		 WHERE playlist_id = $1 AND track_uri = ANY($2)
		 GROUP BY track_uri`,
		playlistID, pq.Array(trackURIs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var trackURI string
		var count int
		if err := rows.Scan(&trackURI, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[trackURI] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counts: %w", err)
	}

	return counts, nil
}

// Stats はプレイリスト単位のコメント統計を返す。
// コメントが1件もない場合はゼロ値の統計を返す（エラーにしない）。
func (r *PostgresCommentRepo) Stats(ctx context.Context, playlistID string) (*model.CommentStats, error) {
	stats := &model.CommentStats{}
	var first, latest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) AS total_comments,
		        COUNT(DISTINCT track_uri) AS tracks_with_comments,
		        MIN(created_at) AS first_comment,
		        MAX(created_at) AS latest_comment
		 FROM comments WHERE playlist_id = $1`,
		playlistID,
	).Scan(&stats.TotalComments, &stats.TracksWithComments, &first, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment stats: %w", err)
	}

	if first.Valid {
		stats.FirstComment = &first.Time
	}
	if latest.Valid {
		stats.LatestComment = &latest.Time
	}

	return stats, nil
}

// DeleteByID は指定IDのコメントを削除する。
// 削除対象が存在しない場合はfalseを返す。
func (r *PostgresCommentRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// nullableString はsql.NullStringを*stringに変換する。
func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
