// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/schedule"
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーのCRUD自体は認証層が所有するため、コアが必要とする読み取りのみを定義する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListDueInWindow はpreferred_timeがウィンドウに含まれるアクティブユーザーを取得する。
	// ウィンドウが0時をまたぐ場合はOR条件で検索する。
	ListDueInWindow(ctx context.Context, w schedule.Window) ([]*model.User, error)
}

// InterestRepository はトピックデータの永続化インターフェース。
type InterestRepository interface {
	// ListActive はアクティブなトピック一覧をdisplay_order順で返す。
	ListActive(ctx context.Context) ([]*model.Interest, error)

	// ListByUserID はユーザーが購読しているトピック一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Interest, error)

	// CountByUserID はユーザーの購読トピック数を返す。
	// ダイジェスト生成前の軽量な事前チェックに使用する。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Seed は定義済みトピックを冪等に登録し、新規作成された件数を返す。
	Seed(ctx context.Context) (int, error)
}

// DigestRepository はダイジェストデータの永続化インターフェース。
// (user_id, digest_date)の一意制約を前提とする。
type DigestRepository interface {
	// Create はダイジェストを作成する。
	// (user_id, digest_date)の一意制約違反の場合はDIGEST_IN_PROGRESSエラーを返す。
	// 並行生成の競合はこのエラーで業務エラーと区別される。
	Create(ctx context.Context, digest *model.Digest) error

	// Update は既存ダイジェストの生成結果フィールドを更新する。
	Update(ctx context.Context, digest *model.Digest) error

	// FindByID は指定IDのダイジェストを取得する。
	// userIDが空でない場合は所有者チェックを行う。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, userID string) (*model.Digest, error)

	// FindByUserAndDate は(user_id, digest_date)でダイジェストを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndDate(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error)

	// CompletedExists は(user_id, digest_date)の完了済みダイジェストが存在するかを返す。
	// スケジューラのスキップ判定用の軽量クエリ。
	CompletedExists(ctx context.Context, userID string, digestDate time.Time) (bool, error)

	// ListByUser はユーザーのダイジェストをdigest_date降順でページネーションして返す。
	// 戻り値の2番目は総件数。
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]*model.Digest, int, error)

	// Latest はユーザーの最新のダイジェストを返す。見つからない場合はnilを返す。
	Latest(ctx context.Context, userID string) (*model.Digest, error)

	// DeleteByID は指定IDのダイジェストを削除する。
	// userIDが空でない場合は所有者チェックを行う。削除した場合はtrueを返す。
	DeleteByID(ctx context.Context, id, userID string) (bool, error)
}
