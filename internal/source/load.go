package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/infra/cache"
)

const maxRemoteBytes = 64 << 20

// Attempt 记录一次格式尝试（用于解释自动识别的回退原因）。
type Attempt struct {
	File   string // 目录来源时为相对路径，否则为位置本身
	Format string
	Stage  string // "parse" / "ok"
	Err    error  // nil when Stage=="ok"
}

// Error 是加载阶段的可追溯错误。
type Error struct {
	Location string
	Format   string // 可为空（读取/下载阶段还没有格式）
	Stage    string // "read" / "fetch" / "parse"
	Err      error
}

func (e *Error) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("source=%s stage=%s: %v", e.Location, e.Stage, e.Err)
	}
	return fmt.Sprintf("source=%s stage=%s format=%s: %v", e.Location, e.Stage, e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatusError 表示远程数据集返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Loaded 是一次成功加载的结果。
type Loaded struct {
	Dataset  domain.Dataset
	Attempts []Attempt
	// RowErrors 汇总所有被跳过的行；全部有效时为 nil。
	RowErrors *multierror.Error
	// FromCache=true 表示远程下载失败，使用了本地缓存副本。
	FromCache bool
}

// Loader 把“位置（文件 / 目录 / URL）”加载为 Dataset。
type Loader struct {
	Registry Registry
	// Client 用于 http(s) 位置；nil 时使用 http.DefaultClient。
	Client *http.Client
	// Cache 为 nil 时不读写缓存。
	Cache         *cache.Store
	CacheFallback bool
	Options       Options
	Logger        *zap.Logger
}

// Load 加载 location。format 为空或 "auto" 时自动识别。
func (l Loader) Load(ctx context.Context, location, format string) (Loaded, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Loaded{}, &Error{Location: location, Stage: "read", Err: errors.New("未配置数据集位置（dataset）")}
	}
	if IsRemote(location) {
		return l.loadRemote(ctx, location, format)
	}

	info, err := os.Stat(location)
	if err != nil {
		return Loaded{}, &Error{Location: location, Stage: "read", Err: err}
	}
	if info.IsDir() {
		return l.loadDir(ctx, location, format)
	}
	b, err := os.ReadFile(location)
	if err != nil {
		return Loaded{}, &Error{Location: location, Stage: "read", Err: err}
	}
	return l.loadBytes(location, filepath.Base(location), b, format)
}

// IsRemote 判断 location 是否是 http(s) URL。
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (l Loader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l Loader) loadBytes(location, name string, b []byte, format string) (Loaded, error) {
	p, used, attempts, err := l.parse(location, name, b, format)
	if err != nil {
		return Loaded{Attempts: attempts}, err
	}
	return Loaded{
		Dataset: domain.Dataset{
			Records:     p.Records,
			Wards:       p.Wards,
			Fingerprint: Fingerprint(b),
			Source:      location,
			Format:      used,
		},
		Attempts:  attempts,
		RowErrors: p.RowErrors,
	}, nil
}

// parse 按候选顺序逐个尝试格式，记录每次尝试；全部失败时返回最后一个错误。
func (l Loader) parse(location, name string, b []byte, format string) (Parsed, string, []Attempt, error) {
	order, err := l.Registry.candidates(format, name, b)
	if err != nil {
		return Parsed{}, "", nil, &Error{Location: location, Format: format, Stage: "parse", Err: err}
	}

	var attempts []Attempt
	var lastErr error
	for _, n := range order {
		f, _ := l.Registry.Get(n)
		p, perr := f.Parse(b, l.Options)
		if perr != nil {
			lastErr = &Error{Location: location, Format: n, Stage: "parse", Err: perr}
			attempts = append(attempts, Attempt{File: name, Format: n, Stage: "parse", Err: perr})
			continue
		}
		attempts = append(attempts, Attempt{File: name, Format: n, Stage: "ok"})
		return p, n, attempts, nil
	}
	if lastErr == nil {
		lastErr = &Error{Location: location, Stage: "parse", Err: errors.New("无可用 format")}
	}
	return Parsed{}, "", attempts, lastErr
}

func (l Loader) loadRemote(ctx context.Context, location, format string) (Loaded, error) {
	name := location
	if u, err := url.Parse(location); err == nil {
		name = u.Path
	}

	b, ferr := l.fetch(ctx, location)
	if ferr == nil {
		if l.Cache != nil && !l.Cache.ReadOnly {
			if err := l.Cache.WriteDataset(location, b); err != nil {
				l.logger().Warn("写入数据集缓存失败", zap.String("source", location), zap.Error(err))
			}
		}
		return l.loadBytes(location, name, b, format)
	}

	if !l.CacheFallback || l.Cache == nil {
		return Loaded{}, ferr
	}
	cached, ok, err := l.Cache.ReadDataset(location)
	if err != nil || !ok {
		return Loaded{}, ferr
	}
	l.logger().Warn("下载数据集失败，使用缓存副本", zap.String("source", location), zap.Error(ferr))
	out, err := l.loadBytes(location, name, cached, format)
	if err != nil {
		return out, err
	}
	out.FromCache = true
	return out, nil
}

func (l Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	c := l.Client
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &Error{Location: location, Stage: "fetch", Err: err}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, &Error{Location: location, Stage: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Location: location, Stage: "fetch", Err: &HTTPStatusError{URL: location, StatusCode: resp.StatusCode}}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes+1))
	if err != nil {
		return nil, &Error{Location: location, Stage: "fetch", Err: err}
	}
	if len(b) > maxRemoteBytes {
		return nil, &Error{Location: location, Stage: "fetch", Err: fmt.Errorf("数据集超过 %d 字节", maxRemoteBytes)}
	}
	return b, nil
}

var dataExts = map[string]bool{
	".json": true, ".js": true,
	".html": true, ".htm": true,
	".csv": true, ".txt": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

// scanDataFiles 列出 root 下的数据文件（按相对路径排序）。
//
// 规则：
// - 永久排除：<root>/cache/ 与隐藏文件/目录
// - 只收录已知扩展名
func scanDataFiles(root string) ([]string, error) {
	root = filepath.Clean(root)
	cacheDir := filepath.Join(root, "cache")

	var rels []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || filepath.Clean(path) == cacheDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !dataExts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Strings(rels)
	return rels, nil
}

// loadDir 合并目录下所有数据文件；任一文件解析失败即整体失败（不做部分加载）。
func (l Loader) loadDir(ctx context.Context, root, format string) (Loaded, error) {
	rels, err := scanDataFiles(root)
	if err != nil {
		return Loaded{}, &Error{Location: root, Stage: "read", Err: err}
	}
	if len(rels) == 0 {
		return Loaded{}, &Error{Location: root, Stage: "read", Err: errors.New("目录下没有可识别的数据文件")}
	}

	var (
		out      Loaded
		cids     = make([]string, 0, len(rels))
		seenWard = map[string]bool{}
		formats  = map[string]bool{}
	)
	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return Loaded{}, err
		}
		path := filepath.Join(root, rel)
		b, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, &Error{Location: path, Stage: "read", Err: err}
		}
		p, used, attempts, err := l.parse(path, rel, b, format)
		out.Attempts = append(out.Attempts, attempts...)
		if err != nil {
			return Loaded{Attempts: out.Attempts}, err
		}
		formats[used] = true
		cids = append(cids, Fingerprint(b))

		out.Dataset.Records = append(out.Dataset.Records, p.Records...)
		for _, w := range p.Wards {
			if !seenWard[w] {
				seenWard[w] = true
				out.Dataset.Wards = append(out.Dataset.Wards, w)
			}
		}
		if p.RowErrors != nil {
			for _, e := range p.RowErrors.Errors {
				out.RowErrors = multierror.Append(out.RowErrors, fmt.Errorf("%s: %w", rel, e))
			}
		}
	}

	out.Dataset.Source = root
	out.Dataset.Fingerprint = dirFingerprint(rels, cids)
	out.Dataset.Format = "dir"
	if len(formats) == 1 {
		for f := range formats {
			out.Dataset.Format = f
		}
	}
	return out, nil
}
