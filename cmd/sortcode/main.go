package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/logging"
)

// 全局参数（所有子命令共享）。
var (
	configPath string
	datasetArg string
	formatArg  string
	policyArg  string
	logLevel   string
)

// exitError 携带退出码；msg 为空时不再额外打印（结果已经输出）。
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func usageErr(format string, a ...any) error {
	return &exitError{code: 2, msg: fmt.Sprintf(format, a...)}
}

// errUnresolved 表示查询已输出但没有得到唯一的仕分けコード。
var errUnresolved = &exitError{code: 1}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintf(stderr, "错误：%s\n", ee.msg)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "错误：%v\n", err)
	return 1
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sortcode",
		Short:         "郵便番号 -> 仕分けコード 查询",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认 ./sortcode.yaml）")
	root.PersistentFlags().StringVar(&datasetArg, "dataset", "", "数据集位置：文件、目录或 http(s) URL")
	root.PersistentFlags().StringVar(&formatArg, "format", "", "数据格式：auto|records|legacy|sorting|html|csv|sqlite")
	root.PersistentFlags().StringVar(&policyArg, "policy", "", "查询策略预设：standard|ward-first")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别：debug|info|warn|error")

	root.AddCommand(lookupCmd(), wardsCmd(), checkCmd(), serveCmd(), tuiCmd())
	return root
}

// loadEffective 合并全局参数与子命令参数，得到最终配置。
func loadEffective(cli config.CLIArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}
	cli.ConfigPath = configPath
	cli.Dataset = datasetArg
	cli.Format = formatArg
	cli.Policy = policyArg
	cli.LogLevel = logLevel
	return config.LoadEffective(cwd, cli)
}

// configErr 把配置错误转成退出码 2（*config.Error 的文本已带 error_code）。
func configErr(err error) error {
	return usageErr("%v", err)
}

func newLogger(eff config.EffectiveConfig) (*zap.Logger, error) {
	return logging.New(eff.LogLevel, eff.LogFormat)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// emitJSON 输出单个 JSON 文档（stdout 非 TTY 时的唯一输出）。
func emitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// openService 读取配置、构造 logger 并完成启动加载。
//
// 加载失败不返回错误：Engine 已进入“加载失败”状态，查询会得到 dataset_load_failed。
func openService(ctx context.Context, cli config.CLIArgs) (*app.Service, config.EffectiveConfig, *zap.Logger, error) {
	eff, err := loadEffective(cli)
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, configErr(err)
	}
	logger, err := newLogger(eff)
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, configErr(err)
	}
	svc, err := app.New(eff, logger)
	if err != nil {
		return nil, config.EffectiveConfig{}, nil, configErr(err)
	}
	_ = svc.Load(ctx)
	return svc, eff, logger, nil
}
