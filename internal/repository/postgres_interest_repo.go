package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/pressroom/internal/model"
)

// PostgresInterestRepo はPostgreSQLを使用したトピックリポジトリ。
type PostgresInterestRepo struct {
	db *sql.DB
}

// NewPostgresInterestRepo はPostgresInterestRepoを生成する。
func NewPostgresInterestRepo(db *sql.DB) *PostgresInterestRepo {
	return &PostgresInterestRepo{db: db}
}

const interestColumns = `id, name, slug, description, newsapi_category, feed_url,
	   is_active, display_order, created_at, updated_at`

// ListActive はアクティブなトピック一覧をdisplay_order順で返す。
func (r *PostgresInterestRepo) ListActive(ctx context.Context) ([]*model.Interest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+interestColumns+` FROM interests
		 WHERE is_active = TRUE
		 ORDER BY display_order, slug`,
	)
	if err != nil {
		return nil, fmt.Errorf("トピック一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectInterests(rows)
}

// ListByUserID はユーザーが購読しているトピック一覧を返す。
func (r *PostgresInterestRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Interest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.name, i.slug, i.description, i.newsapi_category, i.feed_url,
		        i.is_active, i.display_order, i.created_at, i.updated_at
		 FROM interests i
		 JOIN user_interests ui ON ui.interest_id = i.id
		 WHERE ui.user_id = $1 AND i.is_active = TRUE
		 ORDER BY i.display_order, i.slug`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("購読トピックの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectInterests(rows)
}

// CountByUserID はユーザーの購読トピック数を返す。
func (r *PostgresInterestRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM user_interests ui
		 JOIN interests i ON i.id = ui.interest_id
		 WHERE ui.user_id = $1 AND i.is_active = TRUE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読トピック数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Seed は定義済みトピックを冪等に登録し、新規作成された件数を返す。
// 既存のスラッグはスキップされる。
func (r *PostgresInterestRepo) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, interest := range model.PredefinedInterests {
		result, err := r.db.ExecContext(ctx,
			`INSERT INTO interests (id, name, slug, description, newsapi_category, feed_url, is_active, display_order)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), TRUE, $7)
			 ON CONFLICT (slug) DO NOTHING`,
			uuid.NewString(), interest.Name, interest.Slug, interest.Description,
			interest.NewsAPICategory, interest.FeedURL, interest.DisplayOrder,
		)
		if err != nil {
			return created, fmt.Errorf("トピックのシードに失敗しました (%s): %w", interest.Slug, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("シード件数の取得に失敗しました: %w", err)
		}
		created += int(n)
	}
	return created, nil
}

// collectInterests は結果セット全体をmodel.Interestのスライスに変換する。
func collectInterests(rows *sql.Rows) ([]*model.Interest, error) {
	var interests []*model.Interest
	for rows.Next() {
		interest := &model.Interest{}
		var description, category, feedURL sql.NullString

		err := rows.Scan(
			&interest.ID, &interest.Name, &interest.Slug, &description, &category, &feedURL,
			&interest.IsActive, &interest.DisplayOrder, &interest.CreatedAt, &interest.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("トピック行のスキャンに失敗しました: %w", err)
		}

		interest.Description = description.String
		interest.NewsAPICategory = category.String
		interest.FeedURL = feedURL.String
		interests = append(interests, interest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トピックの読み取りに失敗しました: %w", err)
	}

	return interests, nil
}
