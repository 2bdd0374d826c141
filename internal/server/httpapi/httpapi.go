// Package httpapi 提供只读的 HTTP/JSON 查询接口。
//
// 约束：查询问题（未命中、需要选区等）不是 HTTP 错误：统一返回 200 + Result；
// 只有请求本身不合法（400）或数据未就绪（503）才使用非 2xx 状态码。
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/metrics"
)

const (
	HeaderRequestID = "X-Request-Id"

	ErrCodeBadRequest  = "bad_request"
	ErrCodeUnknownWard = "unknown_ward"
)

type Server struct {
	engine  *lookup.Engine
	metrics *metrics.Metrics
	logger  *zap.Logger
	policy  string
}

// New 构造 Server；m 可以为 nil（不暴露 /metrics）。
func New(engine *lookup.Engine, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, metrics: m, logger: logger}
}

// WithPolicyName 设置 /v1/status 中展示的策略名。
func (s *Server) WithPolicyName(name string) *Server {
	s.policy = name
	return s
}

// Handler 返回带 request-id 与访问日志的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/lookup", s.handleLookup)
	mux.HandleFunc("GET /v1/wards", s.handleWards)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s.withRequestID(mux)
}

// ListenAndServe 监听 addr，直到 ctx 结束后优雅关闭。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("HTTP 服务已启动", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if e := <-errCh; e != nil && !errors.Is(e, http.ErrServerClosed) && err == nil {
		err = e
	}
	s.logger.Info("HTTP 服务已停止")
	return err
}

type errorBody struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	mode, err := domain.ParseMode(q.Get("mode"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{ErrorCode: ErrCodeBadRequest, ErrorMsg: err.Error()})
		return
	}
	ward := strings.TrimSpace(q.Get("ward"))
	if ward != "" {
		if err := s.engine.CheckWard(ward); errors.Is(err, lookup.ErrUnknownWard) {
			writeJSON(w, http.StatusBadRequest, errorBody{ErrorCode: ErrCodeUnknownWard, ErrorMsg: err.Error()})
			return
		}
	}

	res := s.engine.Match(domain.Query{Raw: q.Get("q"), Mode: mode, Ward: ward})
	if pick := strings.TrimSpace(q.Get("pick")); pick != "" {
		picked, err := res.Pick(pick)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{ErrorCode: ErrCodeBadRequest, ErrorMsg: err.Error()})
			return
		}
		res = picked
	}
	s.metrics.ObserveLookup("http", res, start)

	status := http.StatusOK
	if res.Problem == domain.ErrCodeNotReady || res.Problem == domain.ErrCodeDatasetLoadFailed {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (s *Server) handleWards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"wards": s.engine.Wards()})
}

type statusBody struct {
	lookup.Status
	Policy string `json:"policy"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	code := http.StatusOK
	if !st.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, statusBody{Status: st, Policy: s.policy})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID 透传（或生成）X-Request-Id，并输出一行访问日志。
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("dur", time.Since(start)),
		)
	})
}
