package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/server/grpcapi"
)

var (
	lookupMode   string
	lookupWard   string
	lookupPick   string
	lookupServer string
)

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup QUERY",
		Short: "查询一个郵便番号 / 仕分けコード / 住所",
		Long: `查询并输出结果。

stdout 是 TTY 时输出可读文本；否则只输出一个 Result JSON（日志走 stderr）。
退出码：ONE / MANY_SAME_CODE 为 0，其他结果为 1，参数或配置错误为 2。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseMode(lookupMode)
			if err != nil {
				return usageErr("%v", err)
			}
			q := domain.Query{Raw: args[0], Mode: mode, Ward: strings.TrimSpace(lookupWard)}
			pick := strings.TrimSpace(lookupPick)

			var res domain.Result
			if strings.TrimSpace(lookupServer) != "" {
				res, err = remoteLookup(cmd.Context(), lookupServer, q, pick)
			} else {
				res, err = localLookup(cmd.Context(), q, pick)
			}
			if err != nil {
				return err
			}
			return emitResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&lookupMode, "mode", "postal", "查询模式：postal|code|address")
	cmd.Flags().StringVar(&lookupWard, "ward", "", "选择的区（必须是数据集中的区名）")
	cmd.Flags().StringVar(&lookupPick, "pick", "", "多候选时选定的仕分けコード")
	cmd.Flags().StringVar(&lookupServer, "server", "", "通过 gRPC 查询远端服务（host:port），不在本地加载数据")
	return cmd
}

func localLookup(ctx context.Context, q domain.Query, pick string) (domain.Result, error) {
	svc, _, logger, err := openService(ctx, config.CLIArgs{Ward: q.Ward})
	if err != nil {
		return domain.Result{}, err
	}
	defer func() { _ = logger.Sync() }()

	sess := lookup.NewSession(svc.Engine())
	if q.Ward != "" {
		// 未就绪时保留空选择，结果会带上加载失败的问题码。
		if err := sess.SelectWard(q.Ward); err != nil && !errors.Is(err, lookup.ErrNotReady) {
			return domain.Result{}, usageErr("%v", err)
		}
	}
	res := sess.Lookup(q.Raw, q.Mode)
	if pick != "" {
		picked, err := res.Pick(pick)
		if err != nil {
			return domain.Result{}, usageErr("%v", err)
		}
		res = picked
	}
	return res, nil
}

func remoteLookup(ctx context.Context, target string, q domain.Query, pick string) (domain.Result, error) {
	c, err := grpcapi.Dial(target, grpcapi.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		return domain.Result{}, fmt.Errorf("连接 %s 失败：%w", target, err)
	}
	defer c.Close()
	c.Timeout = 10 * time.Second

	res, err := c.Lookup(ctx, q, pick)
	if err != nil {
		return domain.Result{}, fmt.Errorf("远程查询失败：%w", err)
	}
	return res, nil
}

func emitResult(cmd *cobra.Command, res domain.Result) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if isTTY(out) {
		writeResultText(out, res)
	} else {
		if err := emitJSON(out, res); err != nil {
			return err
		}
		fmt.Fprintf(errw, "结果：kind=%s code=%s\n", res.Kind, res.Code)
	}
	if !res.Kind.Resolved() {
		return errUnresolved
	}
	return nil
}
