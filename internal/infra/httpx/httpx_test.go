package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	base := tr.Base.(*http.Transport)
	if base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !base.DisableKeepAlives {
		t.Fatalf("期望禁用 keep-alive，但 DisableKeepAlives=false")
	}
}

func TestNewClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	base := c.Transport.(*Transport).Base.(*http.Transport)
	if base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
}

func TestNewClient_InvalidProxy(t *testing.T) {
	if _, err := NewClient("not a url"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_Retries5xxThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("UA 不一致：%q", r.Header.Get("User-Agent"))
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := &http.Client{Transport: &Transport{Base: http.DefaultTransport, RetryMax: 2}}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("期望 200 ok，实际 %d %q", resp.StatusCode, string(b))
	}
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("期望 3 次尝试，实际 %d", n)
	}
}

func TestTransport_ReturnsLast5xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &http.Client{Transport: &Transport{Base: http.DefaultTransport, RetryMax: 1}}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("5xx 用尽重试后应返回响应而非错误：%v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("期望 503，实际 %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("期望 2 次尝试，实际 %d", n)
	}
}

func TestTransport_NoRetryOn4xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := &http.Client{Transport: &Transport{Base: http.DefaultTransport, RetryMax: 3}}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("4xx 不应重试，实际尝试 %d 次", n)
	}
}
