package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/John-Robertt/SortCode/internal/config"
)

func TestCLI_Serve_AllListenersOffIsUsageError(t *testing.T) {
	ds := writeFixture(t, fixtureCSV)

	start := time.Now()
	code, stdout, stderr := runCLI(t, "serve", "--dataset", ds, "--http-addr", "off", "--grpc-addr", "off")
	assert.Equal(t, 2, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "都已关闭")
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("两个监听都关闭时应立即返回，实际耗时 %s", d)
	}
}

func TestServe_GRPCOffStartsOnlyHTTP(t *testing.T) {
	ds := writeFixture(t, fixtureCSV)
	eff, err := config.LoadEffective(t.TempDir(), config.CLIArgs{
		Dataset:  ds,
		HTTPAddr: "127.0.0.1:0",
		GRPCAddr: "OFF",
	})
	require.NoError(t, err)
	require.Equal(t, "", eff.GRPCAddr)

	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, serve(ctx, eff, zap.New(core)))

	assert.Equal(t, 1, logs.FilterMessage("HTTP 服务已启动").Len())
	assert.Equal(t, 1, logs.FilterMessage("gRPC 服务已关闭").Len())
	assert.Zero(t, logs.FilterMessage("gRPC 服务已启动").Len())
}

func TestServe_HTTPOffStartsOnlyGRPC(t *testing.T) {
	ds := writeFixture(t, fixtureCSV)
	eff, err := config.LoadEffective(t.TempDir(), config.CLIArgs{
		Dataset:  ds,
		HTTPAddr: "off",
		GRPCAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, serve(ctx, eff, zap.New(core)))

	assert.Equal(t, 1, logs.FilterMessage("gRPC 服务已启动").Len())
	assert.Equal(t, 1, logs.FilterMessage("HTTP 服务已关闭").Len())
	assert.Zero(t, logs.FilterMessage("HTTP 服务已启动").Len())
}
