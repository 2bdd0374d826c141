package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/metrics"
	"github.com/John-Robertt/SortCode/internal/server/grpcapi"
	"github.com/John-Robertt/SortCode/internal/server/httpapi"
)

var (
	serveHTTPAddr string
	serveGRPCAddr string
	serveWatch    bool
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP / gRPC 查询服务",
		Long: `加载数据集并启动查询服务，直到收到 SIGINT / SIGTERM。

--http-addr 或 --grpc-addr 为 "off" 时不启动对应服务；--watch 在本地数据集变化后自动重新加载。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadEffective(config.CLIArgs{
				HTTPAddr: serveHTTPAddr,
				GRPCAddr: serveGRPCAddr,
				Watch:    serveWatch,
				WatchSet: cmd.Flags().Changed("watch"),
			})
			if err != nil {
				return configErr(err)
			}
			logger, err := newLogger(eff)
			if err != nil {
				return configErr(err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, eff, logger)
		},
	}
	cmd.Flags().StringVar(&serveHTTPAddr, "http-addr", "", "HTTP 监听地址（默认 :8080；off 关闭）")
	cmd.Flags().StringVar(&serveGRPCAddr, "grpc-addr", "", "gRPC 监听地址（默认 :9090；off 关闭）")
	cmd.Flags().BoolVar(&serveWatch, "watch", false, "监视本地数据集并自动重新加载")
	return cmd
}

// serve 启动监听直到 ctx 结束。eff 中的地址为空表示该监听已关闭（配置层把 "off" 解析为空）。
func serve(ctx context.Context, eff config.EffectiveConfig, logger *zap.Logger) error {
	if eff.HTTPAddr == "" && eff.GRPCAddr == "" {
		return usageErr("HTTP 与 gRPC 都已关闭，没有可启动的服务")
	}
	svc, err := app.New(eff, logger)
	if err != nil {
		return configErr(err)
	}
	m := metrics.New()
	svc.Observe(m)

	// 启动加载失败时服务照常启动：/v1/status 报告错误，watch 或修复后可恢复。
	_ = svc.Load(ctx)

	logger.Info("sortcode serve",
		zap.String("dataset", eff.Dataset),
		zap.String("policy", eff.PolicyName),
		zap.String("http", eff.HTTPAddr),
		zap.String("grpc", eff.GRPCAddr),
		zap.Bool("watch", eff.Watch),
	)

	g, gctx := errgroup.WithContext(ctx)
	if eff.HTTPAddr != "" {
		hs := httpapi.New(svc.Engine(), m, logger).WithPolicyName(eff.PolicyName)
		g.Go(func() error { return hs.ListenAndServe(gctx, eff.HTTPAddr) })
	} else {
		logger.Info("HTTP 服务已关闭")
	}
	if eff.GRPCAddr != "" {
		gs := &grpcapi.Server{Engine: svc.Engine(), Metrics: m}
		g.Go(func() error { return grpcapi.ListenAndServe(gctx, eff.GRPCAddr, gs, logger) })
	} else {
		logger.Info("gRPC 服务已关闭")
	}
	if eff.Watch {
		w, err := app.NewWatcher(svc, app.DefaultDebounce)
		if err != nil {
			logger.Warn("无法启用 watch", zap.Error(err))
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
