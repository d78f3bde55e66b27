// Package schedule はダイジェスト配信のスケジューリングウィンドウ計算を提供する。
// ウィンドウ判定は純粋な時刻演算であり、状態やリトライを持たない。
package schedule

import (
	"time"

	"github.com/hitoshi/pressroom/internal/model"
)

// DefaultWindowLength はスケジューラのデフォルトのウィンドウ長。
const DefaultWindowLength = 15 * time.Minute

// Window は [Start, End) の半開区間で表されるスケジューリングウィンドウ。
// EndがStartより小さい場合、ウィンドウは深夜0時をまたぐ。
type Window struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

// Compute は現在時刻（UTC）とウィンドウ長からウィンドウを計算する。
// Startは現在の時刻部分、EndはStart+lengthの時刻部分。
func Compute(now time.Time, length time.Duration) Window {
	return Window{
		Start: model.TimeOfDayFrom(now),
		End:   model.TimeOfDayFrom(now.Add(length)),
	}
}

// CrossesMidnight はウィンドウが深夜0時をまたぐかどうかを返す。
func (w Window) CrossesMidnight() bool {
	return w.End.Before(w.Start)
}

// Contains は時刻tがウィンドウに含まれるかどうかを返す。
// 0時をまたがない場合: Start <= t < End。
// 0時をまたぐ場合（例: 23:50-00:05）は t >= Start または t < End のOR判定になる。
// ANDで判定すると深夜帯のウィンドウが常に空になるため、ORでなければならない。
func (w Window) Contains(t model.TimeOfDay) bool {
	if w.CrossesMidnight() {
		return !t.Before(w.Start) || t.Before(w.End)
	}
	return !t.Before(w.Start) && t.Before(w.End)
}
