package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/schedule"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, full_name, hashed_password, preferred_time, timezone,
	   is_active, created_at, updated_at`

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	return user, nil
}

// ListDueInWindow はpreferred_timeがウィンドウに含まれるアクティブユーザーを取得する。
// ウィンドウが0時をまたぐ場合（end < start）は
// preferred_time >= start OR preferred_time < end のOR条件で検索する。
func (r *PostgresUserRepo) ListDueInWindow(ctx context.Context, w schedule.Window) ([]*model.User, error) {
	timeCond := `preferred_time >= $1 AND preferred_time < $2`
	if w.CrossesMidnight() {
		timeCond = `(preferred_time >= $1 OR preferred_time < $2)`
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE is_active = TRUE AND `+timeCond+`
		 ORDER BY preferred_time, id`,
		w.Start, w.End,
	)
	if err != nil {
		return nil, fmt.Errorf("ウィンドウ内ユーザーの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行のスキャンに失敗しました: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ウィンドウ内ユーザーの読み取りに失敗しました: %w", err)
	}

	return users, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をmodel.Userにスキャンする。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var timezone sql.NullString

	err := row.Scan(
		&user.ID, &user.Email, &user.FullName, &user.HashedPassword,
		&user.PreferredTime, &timezone,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Timezone = timezone.String
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}

	return user, nil
}
