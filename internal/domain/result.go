package domain

import (
	"fmt"
	"sort"
)

// Kind 是查询结果的分类。
type Kind string

const (
	KindNone               Kind = "NONE"
	KindOne                Kind = "ONE"
	KindWardRequired       Kind = "WARD_REQUIRED"
	KindManySameCode       Kind = "MANY_SAME_CODE"
	KindManyDifferentCodes Kind = "MANY_DIFFERENT_CODES"
)

// Resolved 表示该结果能直接给出一个仕分けコード。
func (k Kind) Resolved() bool {
	return k == KindOne || k == KindManySameCode
}

const (
	ErrCodeDatasetLoadFailed  = "dataset_load_failed"
	ErrCodeInvalidQueryLength = "invalid_query_length"
	ErrCodeWardRequired       = "ward_required"
	ErrCodeNoMatch            = "no_match"
	ErrCodeNotReady           = "not_ready"
)

const (
	BasisExact       = "exact"
	BasisSuffix      = "suffix"
	BasisPrefix      = "prefix"
	BasisCodeExact   = "code_exact"
	BasisCodePrefix  = "code_prefix"
	BasisAddressAll  = "address_all_tokens"
	maxGroupExamples = 5
)

// CodeGroup 是同一仕分けコード下的候选记录（用于多候选时的人工选择）。
type CodeGroup struct {
	Code     string   `json:"code"`
	Records  []Record `json:"records"`
	Examples []string `json:"examples"`
}

// Result 是对外稳定的查询结果（CLI JSON / HTTP / gRPC 共用）。
//
// 约束：
// - 切片字段永远非 nil（JSON 输出 [] 而不是 null）
// - Code 仅在 ONE / MANY_SAME_CODE 时非空
// - Problem 为空表示“不是问题”（例如输入为空）
type Result struct {
	Kind Kind   `json:"kind"`
	Mode Mode   `json:"mode"`
	Ward string `json:"ward"`

	// Input 是规范化后的输入（数字串或以空格连接的 token）。
	Input string `json:"input"`
	// Basis/Key 说明实际采用的匹配规则与键（例如 suffix + "40911"）。
	Basis string `json:"basis"`
	Key   string `json:"key"`

	Code    string      `json:"code"`
	Codes   []string    `json:"codes"`
	Records []Record    `json:"records"`
	Groups  []CodeGroup `json:"groups"`

	Problem string `json:"problem"`
	Message string `json:"message"`
}

// Classify 根据匹配到的记录集合给出分类；records 的顺序会被保留在 Records 中。
func Classify(records []Record) (Kind, []string, []CodeGroup) {
	switch len(records) {
	case 0:
		return KindNone, []string{}, []CodeGroup{}
	case 1:
		return KindOne, []string{records[0].Code}, []CodeGroup{}
	}

	groups := GroupByCode(records)
	codes := make([]string, 0, len(groups))
	for _, g := range groups {
		codes = append(codes, g.Code)
	}
	if len(groups) == 1 {
		return KindManySameCode, codes, groups
	}
	return KindManyDifferentCodes, codes, groups
}

// GroupByCode 把记录按仕分けコード分组。
//
// - groups 稳定排序：按 Code 字典序
// - group 内记录稳定排序：按 Address 字典序
// - Examples 取前 5 个地址
func GroupByCode(records []Record) []CodeGroup {
	index := make(map[string]int, 8)
	groups := make([]CodeGroup, 0, 8)
	for _, r := range records {
		if idx, ok := index[r.Code]; ok {
			groups[idx].Records = append(groups[idx].Records, r)
			continue
		}
		index[r.Code] = len(groups)
		groups = append(groups, CodeGroup{Code: r.Code, Records: []Record{r}})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Code < groups[j].Code })
	for i := range groups {
		rs := groups[i].Records
		sort.SliceStable(rs, func(a, b int) bool { return rs[a].Address < rs[b].Address })
		ex := make([]string, 0, maxGroupExamples)
		for _, r := range rs {
			if len(ex) == maxGroupExamples {
				break
			}
			if r.Address != "" {
				ex = append(ex, r.Address)
			}
		}
		groups[i].Examples = ex
	}
	return groups
}

// Pick 在多候选结果中选定一个仕分けコード（对应界面上点击候选）。
func (r Result) Pick(code string) (Result, error) {
	if r.Kind != KindManySameCode && r.Kind != KindManyDifferentCodes {
		return Result{}, fmt.Errorf("只有多候选结果可以选择，当前是 %s", r.Kind)
	}
	for _, g := range r.Groups {
		if g.Code != code {
			continue
		}
		out := r
		out.Code = g.Code
		out.Codes = []string{g.Code}
		out.Records = append([]Record(nil), g.Records...)
		out.Groups = []CodeGroup{g}
		out.Problem = ""
		out.Message = ""
		out.Kind = KindManySameCode
		if len(g.Records) == 1 {
			out.Kind = KindOne
			out.Groups = []CodeGroup{}
		}
		return out, nil
	}
	return Result{}, fmt.Errorf("候选中没有仕分けコード %q", code)
}
