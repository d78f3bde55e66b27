package model

import "time"

// DigestStatus はダイジェスト生成の状態を表す。
type DigestStatus string

const (
	// DigestStatusPending は生成処理中を示す。
	DigestStatusPending DigestStatus = "pending"
	// DigestStatusCompleted は生成完了を示す。
	DigestStatusCompleted DigestStatus = "completed"
	// DigestStatusFailed は生成失敗を示す。
	DigestStatusFailed DigestStatus = "failed"
)

// Digest は1ユーザー・1コンテンツ日付に対して生成されるダイジェストを表す。
// (user_id, digest_date) の組はストアの一意制約で保証される。
type Digest struct {
	ID     string
	UserID string
	// DigestDate はニュースコンテンツの日付（生成日ではない）。
	// UTCの日付のみが意味を持ち、時刻部分は常に0時。
	DigestDate time.Time
	Content    string
	Summary    string
	// HeadlinesUsed は生成に使用した見出しの順序付きリスト。JSONBで永続化される。
	HeadlinesUsed []Headline
	// InterestsIncluded は生成時に購読していたトピックのスラッグ一覧。
	InterestsIncluded []string
	WordCount         int
	GenerationTimeMs  int
	Status            DigestStatus
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ContentDate は指定時点のダイジェスト対象日（UTCの前日）を返す。
// NewsAPIの無料枠は前日分の見出ししか提供しないため、
// ダイジェストは常に「昨日のニュース」をまとめる。
func ContentDate(now time.Time) time.Time {
	y := now.UTC().AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDigestDate はダイジェストの日付を見出し用の英語表記にする（例: "November 30, 2025"）。
func FormatDigestDate(d time.Time) string {
	return d.UTC().Format("January 2, 2006")
}
