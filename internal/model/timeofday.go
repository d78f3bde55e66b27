// Package model はドメインモデルを定義する。
package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TimeOfDay は日付を持たない時刻（UTC）を表す。
// ユーザーのダイジェスト配信希望時刻（preferred_time）に使用する。
// PostgreSQLのTIME型と相互変換できる。
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay は時・分・秒からTimeOfDayを生成する。
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Second: second}
}

// TimeOfDayFrom はtime.TimeのUTC時刻部分からTimeOfDayを生成する。
func TimeOfDayFrom(t time.Time) TimeOfDay {
	u := t.UTC()
	return TimeOfDay{Hour: u.Hour(), Minute: u.Minute(), Second: u.Second()}
}

// ParseTimeOfDay は "15:04:05" または "15:04" 形式の文字列をパースする。
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayFrom(t), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("時刻のパースに失敗しました: %q", s)
}

// Seconds は0時からの経過秒数を返す。
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before はtがoより前の時刻かどうかを返す。
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Seconds() < o.Seconds()
}

// String は "HH:MM:SS" 形式の文字列を返す。
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Scan はdatabase/sqlのスキャンを実装する。
// lib/pqはTIME型をtime.Timeまたは[]byteで返すため、両方を受け付ける。
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = TimeOfDay{Hour: v.Hour(), Minute: v.Minute(), Second: v.Second()}
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	default:
		return fmt.Errorf("TimeOfDayに変換できない型です: %T", src)
	}
}

// Value はdatabase/sql/driverの値変換を実装する。
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// MarshalJSON は "HH:MM:SS" 形式でJSONに変換する。
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON は "HH:MM:SS" 形式のJSON文字列をパースする。
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("時刻のJSON形式が不正です: %s", s)
	}
	parsed, err := ParseTimeOfDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
