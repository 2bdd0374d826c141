package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/SortCode/internal/lookup"
)

func TestLoadEffective_MissingDataset(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingDataset {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingDataset, err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "nope.yaml", Dataset: "data.csv"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Dataset: "data/sorting.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("不应读取配置文件，实际 %q", eff.ConfigPath)
	}
	if want := filepath.Join(cwd, "data", "sorting.json"); eff.Dataset != want {
		t.Fatalf("期望 dataset=%q，实际=%q", want, eff.Dataset)
	}
	if eff.Format != DefaultFormat || eff.SQLiteTable != DefaultSQLiteTable {
		t.Fatalf("format/sqlite_table 默认值不正确：%+v", eff)
	}
	if eff.PolicyName != lookup.PresetStandard || eff.Policy.ExactLength != 7 {
		t.Fatalf("默认 policy 应为 standard：%+v", eff.Policy)
	}
	if eff.CacheDir != filepath.Join(cwd, "cache") || !eff.CacheFallback {
		t.Fatalf("cache 默认值不正确：%q %v", eff.CacheDir, eff.CacheFallback)
	}
	if eff.HTTPAddr != DefaultHTTPAddr || eff.GRPCAddr != DefaultGRPCAddr {
		t.Fatalf("监听地址默认值不正确：%q %q", eff.HTTPAddr, eff.GRPCAddr)
	}
	if eff.LogLevel != DefaultLogLevel || eff.LogFormat != DefaultLogFormat || eff.Watch {
		t.Fatalf("日志/watch 默认值不正确：%+v", eff)
	}
}

func TestLoadEffective_YAMLAndCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "sortcode.yaml"), []byte(`
dataset: https://example.test/sorting.json
format: sorting
default_ward: 中京区
watch: true
grpc_addr: "off"
log_level: debug
log_format: json
cache_fallback: false
policy:
  preset: ward-first
  suffix_fallback: false
proxy:
  url: http://127.0.0.1:7890
`))

	eff, err := LoadEffective(cwd, CLIArgs{
		Format:   "html",
		LogLevel: "warn",
		Watch:    false,
		WatchSet: true, // --watch=false
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, "sortcode.yaml") {
		t.Fatalf("应读取 sortcode.yaml，实际 %q", eff.ConfigPath)
	}
	if eff.Dataset != "https://example.test/sorting.json" {
		t.Fatalf("URL 应原样保留，实际 %q", eff.Dataset)
	}
	if eff.Format != "html" || eff.LogLevel != "warn" || eff.Watch {
		t.Fatalf("CLI 应覆盖配置文件：%+v", eff)
	}
	if eff.GRPCAddr != "" {
		t.Fatalf("grpc_addr=off 应关闭监听，实际 %q", eff.GRPCAddr)
	}
	if eff.LogFormat != "json" || eff.CacheFallback || eff.DefaultWard != "中京区" {
		t.Fatalf("配置文件字段未生效：%+v", eff)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("proxy.url 未生效：%q", eff.ProxyURL)
	}
	if eff.PolicyName != lookup.PresetWardFirst || !eff.Policy.RequireWard || eff.Policy.SuffixFallback {
		t.Fatalf("policy 预设 + 覆盖不正确：%+v", eff.Policy)
	}
}

func TestLoadEffective_CLIPolicyWinsOverConfigPreset(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "sortcode.yaml"), []byte("dataset: d.csv\npolicy:\n  preset: ward-first\n"))

	eff, err := LoadEffective(cwd, CLIArgs{Policy: "standard"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.PolicyName != lookup.PresetStandard || eff.Policy.RequireWard {
		t.Fatalf("期望 CLI 的 standard 生效：%s %+v", eff.PolicyName, eff.Policy)
	}
}

func TestLoadEffective_ExplicitConfigRelativePaths(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, "etc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "site.json"), []byte(`{"dataset":"data.db","cache_dir":"tmp"}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "etc/site.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Dataset != filepath.Join(dir, "data.db") {
		t.Fatalf("相对路径应以配置文件目录为基准，实际 %q", eff.Dataset)
	}
	if eff.CacheDir != filepath.Join(dir, "tmp") {
		t.Fatalf("cache_dir 应以配置文件目录为基准，实际 %q", eff.CacheDir)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"yaml":        "dataset: [",
		"preset":      "dataset: d.csv\npolicy:\n  preset: nope\n",
		"scope":       "dataset: d.csv\npolicy:\n  prefix_scope: city\n",
		"suffix":      "dataset: d.csv\npolicy:\n  ward_suffix_lengths: [7]\n",
		"log_level":   "dataset: d.csv\nlog_level: loud\n",
		"log_format":  "dataset: d.csv\nlog_format: xml\n",
		"proxy":       "dataset: d.csv\nproxy:\n  url: \"http://[::1\"\n",
		"proxy_shape": "dataset: d.csv\nproxy:\n  url: localhost\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, "sortcode.yaml"), []byte(body))

			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
