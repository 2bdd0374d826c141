// Package app 把 source（加载）与 lookup（查询）组装成可运行的服务：
// 启动加载、重新加载、check 报告与文件监视。
package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/infra/cache"
	"github.com/John-Robertt/SortCode/internal/infra/httpx"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/source"
)

// Service 持有 Engine 以及“从哪里、按什么格式”加载数据。
type Service struct {
	engine   *lookup.Engine
	loader   source.Loader
	location string
	format   string
	logger   *zap.Logger

	// mu 串行化加载：watcher 与手动 reload 不会并发安装快照。
	mu        sync.Mutex
	observers []Observer
	now       func() time.Time
}

// New 按最终配置构造 Service（尚未加载数据）。
func New(eff config.EffectiveConfig, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine, err := lookup.New(eff.Policy)
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err}
	}

	var client *http.Client
	if source.IsRemote(eff.Dataset) {
		client, err = httpx.NewClient(eff.ProxyURL)
		if err != nil {
			return nil, &config.Error{Code: config.ErrCodeInvalid, Path: eff.ConfigPath, Err: err}
		}
	}
	store := cache.New(eff.CacheDir, false)

	loader := source.Loader{
		Registry:      source.DefaultRegistry(),
		Client:        client,
		Cache:         &store,
		CacheFallback: eff.CacheFallback,
		Options: source.Options{
			DefaultWard: eff.DefaultWard,
			SQLiteTable: eff.SQLiteTable,
		},
		Logger: logger,
	}
	return NewWithLoader(engine, loader, eff.Dataset, eff.Format, logger), nil
}

// NewWithLoader 用显式的 Engine/Loader 构造 Service（测试与嵌入场景）。
func NewWithLoader(engine *lookup.Engine, loader source.Loader, location, format string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader.Logger == nil {
		loader.Logger = logger
	}
	return &Service{
		engine:   engine,
		loader:   loader,
		location: location,
		format:   format,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Engine() *lookup.Engine { return s.engine }

func (s *Service) Location() string { return s.location }

// Observe 注册 Observer；应在第一次 Load 之前调用。
func (s *Service) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Load 加载数据并安装快照。
//
// 失败处理：
// - 尚无可用快照（启动加载）：Engine 进入“加载失败”状态，查询返回 dataset_load_failed
// - 已有快照（重新加载）：保留旧快照，只记录错误
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	reload := s.engine.Snapshot() != nil
	out, err := s.loader.Load(ctx, s.location, s.format)
	ev := LoadEvent{Location: s.location, Reload: reload, Err: err}

	if err != nil {
		if reload {
			ev.Kept = true
			s.logger.Warn("重新加载数据集失败，保留当前快照", zap.String("source", s.location), zap.Error(err))
		} else {
			s.engine.Disable(err)
			s.logger.Error("加载数据集失败", zap.String("source", s.location), zap.Error(err))
		}
		ev.Dur = time.Since(started)
		s.notify(ev)
		return err
	}

	snap := lookup.NewSnapshot(out.Dataset, s.now())
	s.engine.Install(snap)

	ev.Format = snap.Format
	ev.Fingerprint = snap.Fingerprint
	ev.Records = snap.Len()
	ev.Wards = len(snap.Wards())
	ev.FromCache = out.FromCache
	if out.RowErrors != nil {
		ev.RowErrors = len(out.RowErrors.Errors)
	}
	ev.Dur = time.Since(started)

	s.logger.Info("数据集已加载",
		zap.String("source", s.location),
		zap.String("format", ev.Format),
		zap.String("fingerprint", ev.Fingerprint),
		zap.Int("records", ev.Records),
		zap.Int("wards", ev.Wards),
		zap.Bool("from_cache", ev.FromCache),
		zap.Bool("reload", reload),
		zap.Duration("dur", ev.Dur),
	)
	if ev.RowErrors > 0 {
		s.logger.Warn("部分数据行被跳过", zap.Int("row_errors", ev.RowErrors), zap.Error(out.RowErrors.ErrorOrNil()))
	}
	s.notify(ev)
	return nil
}

func (s *Service) notify(ev LoadEvent) {
	for _, o := range s.observers {
		o.OnLoadDone(ev)
	}
}
