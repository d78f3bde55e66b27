package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/pressroom/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresDigestRepo はPostgreSQLを使用したダイジェストリポジトリ。
// headlines_usedとinterests_includedはJSONBカラムで保存する。
type PostgresDigestRepo struct {
	db *sql.DB
}

// NewPostgresDigestRepo はPostgresDigestRepoを生成する。
func NewPostgresDigestRepo(db *sql.DB) *PostgresDigestRepo {
	return &PostgresDigestRepo{db: db}
}

const digestColumns = `id, user_id, digest_date, content, summary, headlines_used,
	   interests_included, word_count, generation_time_ms, status, error_message,
	   created_at, updated_at`

// Create はダイジェストを作成する。
// uq_user_digest_date制約違反はDIGEST_IN_PROGRESSエラーに変換する。
// 2つのトリガーが同時にべき等チェックを通過した場合の最終的な裁定者は
// この一意制約であり、後着はハード障害ではなく再試行可能な競合として扱われる。
func (r *PostgresDigestRepo) Create(ctx context.Context, digest *model.Digest) error {
	headlines, interests, err := marshalDigestJSON(digest)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	digest.CreatedAt = now
	digest.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO digests (id, user_id, digest_date, content, summary, headlines_used,
		                      interests_included, word_count, generation_time_ms, status,
		                      error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)`,
		digest.ID, digest.UserID, digest.DigestDate, digest.Content, digest.Summary,
		headlines, interests, digest.WordCount, digest.GenerationTimeMs,
		string(digest.Status), digest.ErrorMessage, digest.CreatedAt, digest.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.NewDigestInProgressError(digest.DigestDate.Format("2006-01-02"))
		}
		return fmt.Errorf("ダイジェストの作成に失敗しました: %w", err)
	}

	return nil
}

// Update は既存ダイジェストの生成結果フィールドを更新する。
func (r *PostgresDigestRepo) Update(ctx context.Context, digest *model.Digest) error {
	headlines, interests, err := marshalDigestJSON(digest)
	if err != nil {
		return err
	}

	digest.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`UPDATE digests
		 SET content = $1, summary = NULLIF($2, ''), headlines_used = $3,
		     interests_included = $4, word_count = $5, generation_time_ms = $6,
		     status = $7, error_message = NULLIF($8, ''), updated_at = $9
		 WHERE id = $10`,
		digest.Content, digest.Summary, headlines, interests,
		digest.WordCount, digest.GenerationTimeMs, string(digest.Status),
		digest.ErrorMessage, digest.UpdatedAt, digest.ID,
	)
	if err != nil {
		return fmt.Errorf("ダイジェストの更新に失敗しました: %w", err)
	}

	return nil
}

// FindByID は指定IDのダイジェストを取得する。
// userIDが空でない場合は所有者チェックを行う。見つからない場合はnilを返す。
func (r *PostgresDigestRepo) FindByID(ctx context.Context, id, userID string) (*model.Digest, error) {
	query := `SELECT ` + digestColumns + ` FROM digests WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	digest, err := scanDigest(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ダイジェストの取得に失敗しました: %w", err)
	}

	return digest, nil
}

// FindByUserAndDate は(user_id, digest_date)でダイジェストを取得する。
func (r *PostgresDigestRepo) FindByUserAndDate(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
	digest, err := scanDigest(r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests WHERE user_id = $1 AND digest_date = $2`,
		userID, digestDate,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("日付によるダイジェストの検索に失敗しました: %w", err)
	}

	return digest, nil
}

// CompletedExists は完了済みダイジェストの存在を軽量に確認する。
func (r *PostgresDigestRepo) CompletedExists(ctx context.Context, userID string, digestDate time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM digests
		   WHERE user_id = $1 AND digest_date = $2 AND status = $3
		 )`,
		userID, digestDate, string(model.DigestStatusCompleted),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("完了済みダイジェストの確認に失敗しました: %w", err)
	}

	return exists, nil
}

// ListByUser はユーザーのダイジェストをdigest_date降順でページネーションして返す。
func (r *PostgresDigestRepo) ListByUser(ctx context.Context, userID string, page, perPage int) ([]*model.Digest, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM digests WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ダイジェスト件数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+digestColumns+` FROM digests
		 WHERE user_id = $1
		 ORDER BY digest_date DESC
		 OFFSET $2 LIMIT $3`,
		userID, (page-1)*perPage, perPage,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ダイジェスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var digests []*model.Digest
	for rows.Next() {
		digest, err := scanDigest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ダイジェスト行のスキャンに失敗しました: %w", err)
		}
		digests = append(digests, digest)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ダイジェスト一覧の読み取りに失敗しました: %w", err)
	}

	return digests, total, nil
}

// Latest はユーザーの最新のダイジェストを返す。見つからない場合はnilを返す。
func (r *PostgresDigestRepo) Latest(ctx context.Context, userID string) (*model.Digest, error) {
	digest, err := scanDigest(r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests
		 WHERE user_id = $1
		 ORDER BY digest_date DESC
		 LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新ダイジェストの取得に失敗しました: %w", err)
	}

	return digest, nil
}

// DeleteByID は指定IDのダイジェストを削除する。削除した場合はtrueを返す。
func (r *PostgresDigestRepo) DeleteByID(ctx context.Context, id, userID string) (bool, error) {
	query := `DELETE FROM digests WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("ダイジェストの削除に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return n > 0, nil
}

// marshalDigestJSON はJSONBカラム用のペイロードを生成する。
// nilスライスは空のJSON配列として保存する。
func marshalDigestJSON(digest *model.Digest) ([]byte, []byte, error) {
	headlinesUsed := digest.HeadlinesUsed
	if headlinesUsed == nil {
		headlinesUsed = []model.Headline{}
	}
	headlines, err := json.Marshal(headlinesUsed)
	if err != nil {
		return nil, nil, fmt.Errorf("headlines_usedのJSON変換に失敗しました: %w", err)
	}

	interestsIncluded := digest.InterestsIncluded
	if interestsIncluded == nil {
		interestsIncluded = []string{}
	}
	interests, err := json.Marshal(interestsIncluded)
	if err != nil {
		return nil, nil, fmt.Errorf("interests_includedのJSON変換に失敗しました: %w", err)
	}

	return headlines, interests, nil
}

// scanDigest は1行をmodel.Digestにスキャンする。
func scanDigest(row rowScanner) (*model.Digest, error) {
	digest := &model.Digest{}
	var summary, errorMessage sql.NullString
	var wordCount, generationTimeMs sql.NullInt64
	var headlines, interests []byte
	var status string

	err := row.Scan(
		&digest.ID, &digest.UserID, &digest.DigestDate, &digest.Content, &summary,
		&headlines, &interests, &wordCount, &generationTimeMs, &status, &errorMessage,
		&digest.CreatedAt, &digest.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	digest.Summary = summary.String
	digest.ErrorMessage = errorMessage.String
	digest.WordCount = int(wordCount.Int64)
	digest.GenerationTimeMs = int(generationTimeMs.Int64)
	digest.Status = model.DigestStatus(status)

	if err := json.Unmarshal(headlines, &digest.HeadlinesUsed); err != nil {
		return nil, fmt.Errorf("headlines_usedのJSONパースに失敗しました: %w", err)
	}
	if err := json.Unmarshal(interests, &digest.InterestsIncluded); err != nil {
		return nil, fmt.Errorf("interests_includedのJSONパースに失敗しました: %w", err)
	}

	return digest, nil
}
