package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	IssueRowError       = "row_error"
	IssueMalformed      = "malformed"
	IssueDuplicate      = "duplicate"
	IssuePostalConflict = "postal_conflict"
)

const (
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// CheckReport 是 `sortcode check` 的对外稳定输出（stdout JSON）。
type CheckReport struct {
	Source      string `json:"source"`
	Format      string `json:"format"`
	Fingerprint string `json:"fingerprint"`
	FromCache   bool   `json:"from_cache"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// ErrorCode/ErrorMsg 非空表示加载失败（此时 Summary 为零值）。
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary  CheckSummary    `json:"summary"`
	Attempts []AttemptResult `json:"attempts"`
	Issues   []Issue         `json:"issues"`
}

type CheckSummary struct {
	Records         int `json:"records"`
	Wards           int `json:"wards"`
	RowErrors       int `json:"row_errors"`
	Malformed       int `json:"malformed"`
	Duplicates      int `json:"duplicates"`
	PostalConflicts int `json:"postal_conflicts"`
}

// AttemptResult 是一次格式尝试的可序列化形式。
type AttemptResult struct {
	File   string `json:"file"`
	Format string `json:"format"`
	Stage  string `json:"stage"`
	Error  string `json:"error"`
}

// Issue 是一条数据质量问题；都不致命，只用于提示数据维护者。
type Issue struct {
	Kind    string `json:"kind"`
	Postal  string `json:"postal"`
	Message string `json:"message"`
}

// OK 表示数据集加载成功且没有任何问题。
func (r CheckReport) OK() bool {
	return r.ErrorCode == "" && len(r.Issues) == 0
}

// Audit 检查已加载的记录：
// - malformed：郵便番号不是 7 位或仕分けコード不是 4 位
// - duplicate：四个字段完全相同的记录重复出现
// - postal_conflict：同一个 7 位郵便番号对应多个仕分けコード（7 桁检索会得到多候选）
//
// suffixKeys 为 true 时数据集的郵便番号本来就是后缀键（sorting 格式），
// 此时只要求非空且不超过 7 位。
func Audit(records []Record, suffixKeys bool) []Issue {
	var out []Issue
	seen := make(map[Record]int, len(records))
	codes := make(map[string]map[string]bool)
	for _, r := range records {
		if !postalLenOK(r.Postal, suffixKeys) || len(r.Code) != CodeLen {
			out = append(out, Issue{
				Kind:    IssueMalformed,
				Postal:  r.Postal,
				Message: fmt.Sprintf("郵便番号 %q / 仕分けコード %q 长度异常（%s）", r.Postal, r.Code, r.Address),
			})
		}
		seen[r]++
		if seen[r] == 2 {
			out = append(out, Issue{
				Kind:    IssueDuplicate,
				Postal:  r.Postal,
				Message: fmt.Sprintf("重复记录：%s %s %s", r.Code, r.Ward, r.Address),
			})
		}
		if len(r.Postal) == PostalLen {
			if codes[r.Postal] == nil {
				codes[r.Postal] = make(map[string]bool)
			}
			codes[r.Postal][r.Code] = true
		}
	}
	for postal, set := range codes {
		if len(set) < 2 {
			continue
		}
		cs := make([]string, 0, len(set))
		for c := range set {
			cs = append(cs, c)
		}
		sort.Strings(cs)
		out = append(out, Issue{
			Kind:    IssuePostalConflict,
			Postal:  postal,
			Message: fmt.Sprintf("同一郵便番号对应多个仕分けコード：%s", strings.Join(cs, ", ")),
		})
	}
	return out
}

func postalLenOK(p string, suffixKeys bool) bool {
	if suffixKeys {
		return p != "" && len(p) <= PostalLen
	}
	return len(p) == PostalLen
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) issues 稳定排序：按 postal 字典序；postal=="" 的条目（行错误等）排在最后
// 3) summary 的问题计数由 issues 计算得出（Records/Wards 由调用方填写）
func (r *CheckReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Attempts == nil {
		r.Attempts = []AttemptResult{}
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}

	sort.SliceStable(r.Issues, func(i, j int) bool {
		a := r.Issues[i].Postal
		b := r.Issues[j].Postal
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a < b
	})

	s := r.Summary
	s.RowErrors, s.Malformed, s.Duplicates, s.PostalConflicts = 0, 0, 0, 0
	for _, it := range r.Issues {
		switch it.Kind {
		case IssueRowError:
			s.RowErrors++
		case IssueMalformed:
			s.Malformed++
		case IssueDuplicate:
			s.Duplicates++
		case IssuePostalConflict:
			s.PostalConflicts++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r CheckReport) MarshalJSON() ([]byte, error) {
	type Alias CheckReport
	return json.Marshal(Alias(r))
}
