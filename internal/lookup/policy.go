package lookup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/John-Robertt/SortCode/internal/domain"
)

// PrefixScope 决定中间长度（介于后缀长度与完整长度之间）的前缀匹配是否受区限制。
type PrefixScope string

const (
	// PrefixScopeSelected：选了区就限定在该区，没选就全局。
	PrefixScopeSelected PrefixScope = "selected"
	// PrefixScopeWard：必须选区（未选区视为 WARD_REQUIRED）。
	PrefixScopeWard PrefixScope = "ward"
	// PrefixScopeGlobal：忽略已选的区。
	PrefixScopeGlobal PrefixScope = "global"
)

const (
	PresetStandard  = "standard"
	PresetWardFirst = "ward-first"
)

// Policy 把各部署之间的长度/区规则差异表达为配置，而不是复制代码。
type Policy struct {
	// ExactLength：输入位数 >= ExactLength 时取前 ExactLength 位做完全一致匹配；0 表示禁用。
	ExactLength int `yaml:"exact_length" json:"exact_length"`
	// WardSuffixLengths：这些位数按“区内后缀一致”匹配，且必须先选区。
	WardSuffixLengths []int `yaml:"ward_suffix_lengths" json:"ward_suffix_lengths"`
	// TrimToSuffix：超过最长后缀长度（且未走完全一致）的输入，取末尾最长后缀位数。
	TrimToSuffix bool `yaml:"trim_to_suffix" json:"trim_to_suffix"`
	// SuffixFallback：长后缀无结果时依次退到更短的后缀长度（例如 5 -> 4）。
	SuffixFallback bool `yaml:"suffix_fallback" json:"suffix_fallback"`
	// FallbackPrefix：介于最短后缀与 ExactLength 之间的其他位数走前缀匹配。
	FallbackPrefix bool        `yaml:"fallback_prefix" json:"fallback_prefix"`
	PrefixScope    PrefixScope `yaml:"prefix_scope" json:"prefix_scope"`
	// RequireWard：任何 postal 查询都必须先选区，完全一致匹配也限定在区内。
	RequireWard bool `yaml:"require_ward" json:"require_ward"`
	// CodeLength：code 模式下 >= CodeLength 位时完全一致，否则前缀。
	CodeLength int `yaml:"code_length" json:"code_length"`
}

// StandardPolicy：7 位全局完全一致，4 位区内后缀，5–6 位前缀。
func StandardPolicy() Policy {
	return Policy{
		ExactLength:       domain.PostalLen,
		WardSuffixLengths: []int{4},
		FallbackPrefix:    true,
		PrefixScope:       PrefixScopeSelected,
		CodeLength:        domain.CodeLen,
	}
}

// WardFirstPolicy：先选区；4/5 位后缀（5 位无结果退到 4 位），6 位以上取末尾 5 位。
func WardFirstPolicy() Policy {
	return Policy{
		WardSuffixLengths: []int{4, 5},
		TrimToSuffix:      true,
		SuffixFallback:    true,
		PrefixScope:       PrefixScopeWard,
		RequireWard:       true,
		CodeLength:        domain.CodeLen,
	}
}

// PresetPolicy 按名字返回预设策略。
func PresetPolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetStandard:
		return StandardPolicy(), nil
	case PresetWardFirst:
		return WardFirstPolicy(), nil
	default:
		return Policy{}, fmt.Errorf("未知 policy 预设：%q（可选 %s / %s）", name, PresetStandard, PresetWardFirst)
	}
}

// Normalize 排序去重后缀长度并补默认值；不合法时返回错误。
func (p Policy) Normalize() (Policy, error) {
	if p.CodeLength == 0 {
		p.CodeLength = domain.CodeLen
	}
	if p.PrefixScope == "" {
		p.PrefixScope = PrefixScopeSelected
	}
	switch p.PrefixScope {
	case PrefixScopeSelected, PrefixScopeWard, PrefixScopeGlobal:
	default:
		return Policy{}, fmt.Errorf("prefix_scope 只能是 selected、ward 或 global，实际是 %q", p.PrefixScope)
	}
	if p.ExactLength < 0 || p.CodeLength < 0 {
		return Policy{}, fmt.Errorf("长度不能为负数")
	}

	seen := make(map[int]struct{}, len(p.WardSuffixLengths))
	lens := make([]int, 0, len(p.WardSuffixLengths))
	for _, n := range p.WardSuffixLengths {
		if n <= 0 {
			return Policy{}, fmt.Errorf("ward_suffix_lengths 必须为正数，实际包含 %d", n)
		}
		if p.ExactLength > 0 && n >= p.ExactLength {
			return Policy{}, fmt.Errorf("后缀长度 %d 必须小于 exact_length %d", n, p.ExactLength)
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		lens = append(lens, n)
	}
	sort.Ints(lens)
	p.WardSuffixLengths = lens

	if p.ExactLength == 0 && len(lens) == 0 {
		return Policy{}, fmt.Errorf("exact_length 与 ward_suffix_lengths 不能同时为空")
	}
	return p, nil
}

func (p Policy) isSuffixLen(n int) bool {
	for _, x := range p.WardSuffixLengths {
		if x == n {
			return true
		}
	}
	return false
}

func (p Policy) minSuffix() int {
	if len(p.WardSuffixLengths) == 0 {
		return 0
	}
	return p.WardSuffixLengths[0]
}

func (p Policy) maxSuffix() int {
	if len(p.WardSuffixLengths) == 0 {
		return 0
	}
	return p.WardSuffixLengths[len(p.WardSuffixLengths)-1]
}

// upperBound 是“中间长度”的上界（不含）。
func (p Policy) upperBound() int {
	if p.ExactLength > 0 {
		return p.ExactLength
	}
	return domain.PostalLen
}

// acceptsLength 报告 postal 模式下 n 位输入是否有对应规则。
func (p Policy) acceptsLength(n int) bool {
	switch {
	case n <= 0:
		return false
	case p.ExactLength > 0 && n >= p.ExactLength:
		return true
	case p.isSuffixLen(n):
		return true
	case p.TrimToSuffix && len(p.WardSuffixLengths) > 0 && n > p.maxSuffix():
		return true
	case p.FallbackPrefix && n > p.minSuffix() && n < p.upperBound():
		return true
	}
	return false
}

// LengthHint 生成输入位数提示（例如 "4・5・6・7"）。
func (p Policy) LengthHint() string {
	hi := p.upperBound()
	if p.maxSuffix() >= hi {
		hi = p.maxSuffix() + 1
	}
	parts := make([]string, 0, hi)
	for n := 1; n <= hi; n++ {
		if p.acceptsLength(n) {
			parts = append(parts, strconv.Itoa(n))
		}
	}
	return strings.Join(parts, "・")
}
