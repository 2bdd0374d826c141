package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/multiformats/go-multihash"

	"github.com/John-Robertt/SortCode/internal/infra/fsx"
)

// Store 提供 <root>/dataset/ 下的数据集字节缓存（远程数据集最后一次成功获取的副本）。
//
// 约束：
// - 只缓存原始字节，不缓存解析结果（解析规则升级后缓存仍然可用）
// - ReadOnly=true 时只允许读
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

var unsafeNameRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DatasetPath 返回某个数据集位置对应的缓存文件绝对路径。
func (s Store) DatasetPath(location string) (string, error) {
	name, err := cacheName(location)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "dataset", name), nil
}

func (s Store) ReadDataset(location string) ([]byte, bool, error) {
	path, err := s.DatasetPath(location)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WriteDataset(location string, b []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.DatasetPath(location)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), b)
}

// cacheName 把 URL 变成稳定且安全的文件名：可读的 host + path，再加完整 URL 的短哈希，
// 保证仅 query 不同或 "/" 与 "_" 折叠后相同的 URL 不共用缓存；扩展名保留以便格式识别。
func cacheName(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("location 不能为空")
	}
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("只缓存 http/https 数据集：%q", location)
	}
	u.Fragment = ""
	sum, err := multihash.Sum([]byte(u.String()), multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	dec, err := multihash.Decode(sum)
	if err != nil {
		return "", err
	}
	tag := hex.EncodeToString(dec.Digest[:4])

	ext := path.Ext(u.Path)
	if unsafeNameRE.MatchString(ext) || len(ext) > 10 {
		ext = ""
	}
	name := unsafeNameRE.ReplaceAllString(u.Host+strings.TrimSuffix(u.Path, ext), "_")
	name = strings.Trim(name, "._")
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	if name == "" {
		name = "dataset"
	}
	return name + "-" + tag + ext, nil
}
