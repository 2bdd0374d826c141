package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/John-Robertt/SortCode/internal/source"
)

// DefaultDebounce 合并编辑器连续保存产生的多次事件。
const DefaultDebounce = 500 * time.Millisecond

// Watcher 监视本地数据集（文件或目录），变化稳定后触发 Service.Load。
//
// 文件来源监视其所在目录（编辑器常用“写临时文件 + rename”替换），按文件名过滤事件；
// 目录来源监视整棵目录树（cache/ 与隐藏文件除外）。
type Watcher struct {
	svc      *Service
	target   string
	isDir    bool
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending time.Time // 零值表示没有待处理的变化
}

// NewWatcher 为 svc 的数据集位置构造 Watcher；远程数据集不支持监视。
func NewWatcher(svc *Service, debounce time.Duration) (*Watcher, error) {
	if source.IsRemote(svc.location) {
		return nil, errors.New("远程数据集不支持 watch")
	}
	target, err := filepath.Abs(svc.location)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		svc:      svc,
		target:   filepath.Clean(target),
		isDir:    info.IsDir(),
		debounce: debounce,
		logger:   svc.logger,
	}, nil
}

// Run 阻塞直到 ctx 结束；返回前关闭底层 fsnotify watcher。
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if w.isDir {
		err = w.addTree(fw, w.target)
	} else {
		err = fw.Add(filepath.Dir(w.target))
	}
	if err != nil {
		return err
	}
	w.logger.Info("开始监视数据集", zap.String("target", w.target), zap.Duration("debounce", w.debounce))

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("停止监视数据集", zap.String("target", w.target))
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("数据集监视出错", zap.Error(err))

		case <-ticker.C:
			if w.settled(time.Now()) {
				_ = w.svc.Load(ctx)
			}
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return // 忽略 chmod
	}
	name := filepath.Clean(ev.Name)
	if !w.relevant(name) {
		return
	}
	if w.isDir && ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.addTree(fw, name); err != nil {
				w.logger.Warn("无法监视新目录", zap.String("dir", name), zap.Error(err))
			}
		}
	}

	w.logger.Debug("数据集变化", zap.String("path", name), zap.String("op", ev.Op.String()))
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

// settled 在最后一次变化后安静了 debounce 时长时返回 true（并清除待处理标记）。
func (w *Watcher) settled(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || now.Sub(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

func (w *Watcher) relevant(name string) bool {
	if !w.isDir {
		return name == w.target
	}
	rel, err := filepath.Rel(w.target, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return !isUnder(name, filepath.Join(w.target, "cache"))
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.target && !w.relevant(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func isUnder(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
