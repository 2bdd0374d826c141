package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/domain"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "加载并审查数据集（不启动服务）",
		Long: `加载数据集并输出 CheckReport：格式尝试、指纹、记录数与数据质量问题。

stdout 非 TTY 时只输出一个 CheckReport JSON；摘要写到 stderr。
加载失败或存在行错误时退出码为 1。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()

			var rep domain.CheckReport
			if eff, err := loadEffective(config.CLIArgs{}); err != nil {
				rep = reportForConfigError(err)
			} else {
				rep = runCheck(cmd.Context(), eff)
			}
			emitCheckReport(out, errw, rep)
			if !rep.OK() {
				return errUnresolved
			}
			return nil
		},
	}
}

// runCheck 构造 Service 并审查数据集；logger 或 Service 构造失败也记入报告。
func runCheck(ctx context.Context, eff config.EffectiveConfig) domain.CheckReport {
	logger, err := newLogger(eff)
	if err != nil {
		return reportForConfigError(err)
	}
	defer func() { _ = logger.Sync() }()
	svc, err := app.New(eff, logger)
	if err != nil {
		return reportForConfigError(err)
	}
	return svc.Check(ctx)
}

func emitCheckReport(out, errw io.Writer, rep domain.CheckReport) {
	if isTTY(out) {
		writeCheckSummary(out, rep)
		for _, is := range rep.Issues {
			key := is.Postal
			if key == "" {
				key = "<row>"
			}
			fmt.Fprintf(errw, "%s %s: %s\n", key, is.Kind, truncate(is.Message, 160))
		}
		return
	}

	// stdout 非 TTY：只输出一个 CheckReport JSON（摘要走 stderr）。
	_ = emitJSON(out, rep)
	writeCheckSummary(errw, rep)
}

func writeCheckSummary(w io.Writer, rep domain.CheckReport) {
	if rep.ErrorCode != "" {
		fmt.Fprintf(w, "失败：%s: %s\n", rep.ErrorCode, truncate(rep.ErrorMsg, 200))
		for _, a := range rep.Attempts {
			if a.Error == "" {
				continue
			}
			fmt.Fprintf(w, "  %s %s %s: %s\n", a.File, a.Format, a.Stage, truncate(a.Error, 120))
		}
		return
	}
	s := rep.Summary
	fmt.Fprintf(w, "完成：format=%s records=%d wards=%d row_errors=%d malformed=%d duplicates=%d postal_conflicts=%d cache=%s (%s)\n",
		rep.Format, s.Records, s.Wards, s.RowErrors, s.Malformed, s.Duplicates, s.PostalConflicts,
		onOff(rep.FromCache), formatShortDuration(rep.FinishedAt.Sub(rep.StartedAt)),
	)
	fmt.Fprintf(w, "fingerprint: %s\n", rep.Fingerprint)
}

func reportForConfigError(err error) domain.CheckReport {
	now := time.Now().UTC()
	cwd, _ := os.Getwd()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rep := domain.CheckReport{
		Source:     cwd,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rep.Finalize()
	return rep
}
