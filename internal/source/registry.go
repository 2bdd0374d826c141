package source

import (
	"fmt"
	"strings"
)

// Registry 是格式的只读注册表（按 name 索引，并保留注册顺序用于回退）。
type Registry struct {
	byName map[string]Format
	order  []string
}

func NewRegistry(formats ...Format) (Registry, error) {
	byName := make(map[string]Format, len(formats))
	order := make([]string, 0, len(formats))
	for _, f := range formats {
		if f == nil {
			return Registry{}, fmt.Errorf("format 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(f.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("format.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 format：%q", name)
		}
		byName[name] = f
		order = append(order, name)
	}
	return Registry{byName: byName, order: order}, nil
}

// DefaultRegistry 注册全部内置格式；顺序即自动识别时的回退顺序。
func DefaultRegistry() Registry {
	reg, err := NewRegistry(
		RecordsJSON{},
		LegacyJSON{},
		SortingJSON{},
		HTMLTable{},
		CSV{},
		SQLite{},
	)
	if err != nil {
		panic(err)
	}
	return reg
}

func (r Registry) Get(name string) (Format, bool) {
	if r.byName == nil {
		return nil, false
	}
	f, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Names 按注册顺序返回格式名。
func (r Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// candidates 给出尝试顺序：显式指定的格式 > Detect 命中的格式 > 其余格式。
func (r Registry) candidates(requested, name string, b []byte) ([]string, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	out := make([]string, 0, len(r.order))
	seen := make(map[string]bool, len(r.order))
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	if requested != "" && requested != "auto" {
		if _, ok := r.byName[requested]; !ok {
			return nil, fmt.Errorf("未知 format：%q（可选 auto / %s）", requested, strings.Join(r.order, " / "))
		}
		add(requested)
	}
	for _, n := range r.order {
		if r.byName[n].Detect(name, b) {
			add(n)
		}
	}
	for _, n := range r.order {
		add(n)
	}
	return out, nil
}
