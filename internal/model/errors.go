package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, digest, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeHeadlineFetchFailed = "HEADLINE_FETCH_FAILED"
	ErrCodeGenerationFailed    = "GENERATION_FAILED"
	ErrCodeDigestInProgress    = "DIGEST_IN_PROGRESS"
	ErrCodeDigestNotFound      = "DIGEST_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidDate         = "INVALID_DATE"
)

// NewHeadlineFetchError は見出し取得失敗エラーを生成する。
func NewHeadlineFetchError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeHeadlineFetchFailed,
		Message:  fmt.Sprintf("見出しの取得に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewGenerationFailedError はダイジェスト生成失敗エラーを生成する。
// タイムアウトや不正なレスポンスもこのエラーに分類される。
func NewGenerationFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  fmt.Sprintf("ダイジェストの生成に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDigestInProgressError は同一(ユーザー, 日付)のダイジェストが
// 並行して生成中であることを示すエラーを生成する。
// ストアの一意制約違反から検出され、再試行可能な競合として扱われる。
func NewDigestInProgressError(digestDate string) *APIError {
	return &APIError{
		Code:     ErrCodeDigestInProgress,
		Message:  fmt.Sprintf("%s のダイジェストは現在生成中です。", digestDate),
		Category: "digest",
		Action:   "生成が完了するまで待ってから再度お試しください。",
	}
}

// NewDigestNotFoundError はダイジェスト未検出エラーを生成する。
func NewDigestNotFoundError(digestID string) *APIError {
	return &APIError{
		Code:     ErrCodeDigestNotFound,
		Message:  fmt.Sprintf("指定されたダイジェストが見つかりません: %s", digestID),
		Category: "digest",
		Action:   "ダイジェストIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidDateError は日付形式エラーを生成する。
func NewInvalidDateError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("日付の形式が不正です: %s", raw),
		Category: "validation",
		Action:   "YYYY-MM-DD形式で指定してください。",
	}
}

// IsDigestInProgress はエラーが生成中競合かどうかを判定する。
func IsDigestInProgress(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeDigestInProgress
}
