package app

import "time"

// LoadEvent 描述一次（重新）加载的结果。
type LoadEvent struct {
	Location    string
	Format      string
	Fingerprint string
	Records     int
	Wards       int
	RowErrors   int
	FromCache   bool
	// Reload=true 表示加载前已有可用快照。
	Reload bool
	// Kept=true 表示加载失败但保留了旧快照。
	Kept bool
	Err  error
	Dur  time.Duration
}

// Observer 用于把“加载结果”从核心流程中解耦出来（日志之外的指标、TUI 状态栏等）。
//
// 约束：
// - app 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：watcher 会在后台 goroutine 中触发加载。
type Observer interface {
	OnLoadDone(ev LoadEvent)
}

// ObserverFunc 让普通函数满足 Observer。
type ObserverFunc func(ev LoadEvent)

func (f ObserverFunc) OnLoadDone(ev LoadEvent) { f(ev) }
