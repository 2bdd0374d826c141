package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/SortCode/internal/lookup"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingDataset 表示 CLI 与配置文件都没有给出 dataset。
	ErrCodeMissingDataset = "config_missing_dataset"
)

const (
	DefaultFormat      = "auto"
	DefaultSQLiteTable = "records"
	DefaultHTTPAddr    = ":8080"
	DefaultGRPCAddr    = ":9090"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"

	// AddrOff 用于关闭某个监听（http_addr / grpc_addr）。
	AddrOff = "off"
)

// 在 cwd 下按顺序查找的配置文件名。
var fileNames = []string{"sortcode.yaml", "sortcode.yml", "sortcode.json"}

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --watch=false 必须能覆盖 config.watch=true。
type CLIArgs struct {
	ConfigPath string

	Dataset string
	Format  string
	Policy  string
	Ward    string

	LogLevel string

	HTTPAddr string
	GRPCAddr string

	Watch    bool
	WatchSet bool
}

// FileConfig 对应 sortcode.yaml（或 .json）的解析结构。
type FileConfig struct {
	Dataset       string        `yaml:"dataset" json:"dataset"`
	Format        string        `yaml:"format" json:"format"`
	SQLiteTable   string        `yaml:"sqlite_table" json:"sqlite_table"`
	DefaultWard   string        `yaml:"default_ward" json:"default_ward"`
	Policy        *PolicyConfig `yaml:"policy" json:"policy"`
	CacheDir      string        `yaml:"cache_dir" json:"cache_dir"`
	CacheFallback *bool         `yaml:"cache_fallback" json:"cache_fallback"`
	Watch         *bool         `yaml:"watch" json:"watch"`
	HTTPAddr      string        `yaml:"http_addr" json:"http_addr"`
	GRPCAddr      string        `yaml:"grpc_addr" json:"grpc_addr"`
	LogLevel      string        `yaml:"log_level" json:"log_level"`
	LogFormat     string        `yaml:"log_format" json:"log_format"`
	Proxy         *ProxyConfig  `yaml:"proxy" json:"proxy"`
}

type ProxyConfig struct {
	URL string `yaml:"url" json:"url"`
}

// PolicyConfig 是“预设 + 逐项覆盖”；未出现的字段沿用预设值。
type PolicyConfig struct {
	Preset            string `yaml:"preset" json:"preset"`
	ExactLength       *int   `yaml:"exact_length" json:"exact_length"`
	WardSuffixLengths []int  `yaml:"ward_suffix_lengths" json:"ward_suffix_lengths"`
	TrimToSuffix      *bool  `yaml:"trim_to_suffix" json:"trim_to_suffix"`
	SuffixFallback    *bool  `yaml:"suffix_fallback" json:"suffix_fallback"`
	FallbackPrefix    *bool  `yaml:"fallback_prefix" json:"fallback_prefix"`
	PrefixScope       string `yaml:"prefix_scope" json:"prefix_scope"`
	RequireWard       *bool  `yaml:"require_ward" json:"require_ward"`
	CodeLength        *int   `yaml:"code_length" json:"code_length"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未使用配置文件时为空。
	ConfigPath string

	// Dataset 是数据集位置：本地路径已转为绝对路径，URL 原样保留。
	Dataset     string
	Format      string
	SQLiteTable string
	DefaultWard string
	Policy      lookup.Policy
	PolicyName  string

	// Ward 是启动时预选的区（仅 CLI）。
	Ward string

	CacheDir      string
	CacheFallback bool
	Watch         bool

	// HTTPAddr/GRPCAddr 为空表示不监听。
	HTTPAddr string
	GRPCAddr string

	LogLevel  string
	LogFormat string
	ProxyURL  string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingDataset:
		return fmt.Sprintf("%s：未指定数据集（--dataset 或配置文件 %q 的 dataset 字段）", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则依次尝试 <cwd>/sortcode.yaml、sortcode.yml、sortcode.json（可选）
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认值。
// 配置文件里的相对路径以配置文件所在目录为基准；CLI 的相对路径以 cwd 为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		var exists bool
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		for _, name := range fileNames {
			p := filepath.Join(cwdAbs, name)
			f, exists, err := readFileConfig(p)
			if err != nil {
				return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
			}
			if exists {
				cfgPath, fc = p, f
				break
			}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	cfgDir := cwdAbs
	if cfgPath != "" {
		cfgDir = filepath.Dir(cfgPath)
	}

	// dataset：CLI > config；两者都没有则报错。
	dataset := ""
	switch {
	case strings.TrimSpace(cli.Dataset) != "":
		dataset = resolveLocation(cwdAbs, cli.Dataset)
	case strings.TrimSpace(fc.Dataset) != "":
		dataset = resolveLocation(cfgDir, fc.Dataset)
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingDataset, Path: cfgPath}
	}

	format := firstNonEmpty(cli.Format, fc.Format, DefaultFormat)
	sqliteTable := firstNonEmpty(fc.SQLiteTable, DefaultSQLiteTable)

	policy, name, err := buildPolicy(cli.Policy, fc.Policy)
	if err != nil {
		return invalid(err)
	}

	cacheDir := filepath.Join(cfgDir, "cache")
	if strings.TrimSpace(fc.CacheDir) != "" {
		cacheDir = absCleanFrom(cfgDir, fc.CacheDir)
	}
	cacheFallback := true
	if fc.CacheFallback != nil {
		cacheFallback = *fc.CacheFallback
	}

	// watch：CLI --watch/--watch=false > config > 默认 false
	watch := false
	if cli.WatchSet {
		watch = cli.Watch
	} else if fc.Watch != nil {
		watch = *fc.Watch
	}

	logLevel := strings.ToLower(firstNonEmpty(cli.LogLevel, fc.LogLevel, DefaultLogLevel))
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Errorf("log_level 只能是 debug/info/warn/error，实际是 %q", logLevel))
	}
	logFormat := strings.ToLower(firstNonEmpty(fc.LogFormat, DefaultLogFormat))
	if logFormat != "console" && logFormat != "json" {
		return invalid(fmt.Errorf("log_format 只能是 console 或 json，实际是 %q", logFormat))
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
		if u.Scheme == "" || u.Host == "" {
			return invalid(fmt.Errorf("proxy.url 无效：%q", proxyURL))
		}
	}

	return EffectiveConfig{
		ConfigPath:    cfgPath,
		Dataset:       dataset,
		Format:        strings.ToLower(format),
		SQLiteTable:   sqliteTable,
		DefaultWard:   strings.TrimSpace(fc.DefaultWard),
		Policy:        policy,
		PolicyName:    name,
		Ward:          strings.TrimSpace(cli.Ward),
		CacheDir:      cacheDir,
		CacheFallback: cacheFallback,
		Watch:         watch,
		HTTPAddr:      addr(cli.HTTPAddr, fc.HTTPAddr, DefaultHTTPAddr),
		GRPCAddr:      addr(cli.GRPCAddr, fc.GRPCAddr, DefaultGRPCAddr),
		LogLevel:      logLevel,
		LogFormat:     logFormat,
		ProxyURL:      proxyURL,
	}, nil
}

// buildPolicy：预设（CLI > config > standard）+ 配置文件中的逐项覆盖。
func buildPolicy(cliPreset string, pc *PolicyConfig) (lookup.Policy, string, error) {
	name := strings.TrimSpace(cliPreset)
	if name == "" && pc != nil {
		name = strings.TrimSpace(pc.Preset)
	}
	if name == "" {
		name = lookup.PresetStandard
	}
	p, err := lookup.PresetPolicy(name)
	if err != nil {
		return lookup.Policy{}, "", err
	}

	if pc != nil {
		if pc.ExactLength != nil {
			p.ExactLength = *pc.ExactLength
		}
		if pc.WardSuffixLengths != nil {
			p.WardSuffixLengths = append([]int(nil), pc.WardSuffixLengths...)
		}
		if pc.TrimToSuffix != nil {
			p.TrimToSuffix = *pc.TrimToSuffix
		}
		if pc.SuffixFallback != nil {
			p.SuffixFallback = *pc.SuffixFallback
		}
		if pc.FallbackPrefix != nil {
			p.FallbackPrefix = *pc.FallbackPrefix
		}
		if s := strings.TrimSpace(pc.PrefixScope); s != "" {
			p.PrefixScope = lookup.PrefixScope(strings.ToLower(s))
		}
		if pc.RequireWard != nil {
			p.RequireWard = *pc.RequireWard
		}
		if pc.CodeLength != nil {
			p.CodeLength = *pc.CodeLength
		}
	}

	p, err = p.Normalize()
	if err != nil {
		return lookup.Policy{}, "", fmt.Errorf("policy 无效：%w", err)
	}
	return p, strings.ToLower(name), nil
}

func addr(cli, file, def string) string {
	a := firstNonEmpty(cli, file, def)
	if strings.EqualFold(a, AddrOff) {
		return ""
	}
	return a
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// resolveLocation：URL 原样返回，本地路径转为相对 base 的绝对路径。
func resolveLocation(base, loc string) string {
	loc = strings.TrimSpace(loc)
	lower := strings.ToLower(loc)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return loc
	}
	return absCleanFrom(base, loc)
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件（.json 用 encoding/json，其余按 YAML）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(b, &fc)
	} else {
		err = yaml.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
