// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 認証・パスワード管理はCRUD層が所有し、コアからは読み取り専用。
type User struct {
	ID             string
	Email          string
	FullName       string
	HashedPassword string
	// PreferredTime はダイジェストを受け取りたい時刻（UTCで保存）。
	PreferredTime TimeOfDay
	// Timezone はユーザーの表示用タイムゾーンラベル。スケジューリングには使用しない。
	Timezone  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
