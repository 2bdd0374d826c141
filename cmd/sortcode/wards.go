package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/server/grpcapi"
)

var wardsServer string

func wardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wards",
		Short: "列出数据集中的区",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var wards []string
			if strings.TrimSpace(wardsServer) != "" {
				c, err := grpcapi.Dial(wardsServer, grpcapi.DialOptions{Timeout: 5 * time.Second})
				if err != nil {
					return fmt.Errorf("连接 %s 失败：%w", wardsServer, err)
				}
				defer c.Close()
				if wards, err = c.Wards(cmd.Context()); err != nil {
					return fmt.Errorf("远程查询失败：%w", err)
				}
			} else {
				svc, _, logger, err := openService(cmd.Context(), config.CLIArgs{})
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				if st := svc.Engine().Status(); !st.Ready {
					return fmt.Errorf("数据集不可用：%s", st.Error)
				}
				wards = svc.Engine().Wards()
			}

			out := cmd.OutOrStdout()
			if isTTY(out) {
				for _, w := range wards {
					fmt.Fprintln(out, w)
				}
				return nil
			}
			return emitJSON(out, wards)
		},
	}
	cmd.Flags().StringVar(&wardsServer, "server", "", "通过 gRPC 查询远端服务（host:port）")
	return cmd
}
