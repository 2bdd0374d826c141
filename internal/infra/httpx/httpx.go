package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryMax   = 2
	defaultRetryDelay = 300 * time.Millisecond

	UserAgent = "sortcode/1.0 (+https://github.com/John-Robertt/SortCode)"
)

// Transport 把“固定 UA + 代理 + 有界重试”固化为统一策略。
//
// 数据集加载只负责“取字节 + 解析”，不关心网络策略细节。
type Transport struct {
	Base http.RoundTripper

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int
	// RetryDelay 是两次尝试之间的固定间隔。
	RetryDelay time.Duration
}

// statusError 只在重试循环内部使用：5xx 视为可重试，但最终仍把响应交还调用方。
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var resp *http.Response
	err := retry.Do(
		func() error {
			if resp != nil {
				discard(resp)
				resp = nil
			}
			r := req.Clone(req.Context())
			if r.Header.Get("User-Agent") == "" {
				r.Header.Set("User-Agent", UserAgent)
			}
			got, err := t.Base.RoundTrip(r)
			if err != nil {
				return err
			}
			resp = got
			if got.StatusCode >= 500 {
				return &statusError{code: got.StatusCode}
			}
			return nil
		},
		retry.Attempts(uint(max+1)),
		retry.Delay(t.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(req.Context()),
		retry.LastErrorOnly(true),
	)

	var se *statusError
	if resp != nil && (err == nil || errors.As(err, &se)) {
		return resp, nil
	}
	if resp != nil {
		discard(resp)
	}
	return nil, err
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// NewClient 构造用于远程数据集下载的 HTTP client。
//
// 规则：
// - proxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - 固定 UA
// - 有界重试（网络错误与 5xx）+ 总超时
func NewClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy.url 非法：%q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
	}

	return &http.Client{
		Transport: &Transport{
			Base:       base,
			RetryMax:   defaultRetryMax,
			RetryDelay: defaultRetryDelay,
		},
		Timeout: defaultTimeout,
	}, nil
}
