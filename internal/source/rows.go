package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/normalize"
)

// RowError 描述一条被跳过的数据行。
type RowError struct {
	Row int // 1-based；含表头的格式按文件行号计
	Msg string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("第 %d 行：%s", e.Row, e.Msg)
}

// cell 是原始字段值；Num 表示来自数值类型（需要按 zfill 语义补零）。
type cell struct {
	S   string
	Num bool
}

func textCell(s string) cell { return cell{S: s} }

func intCell(v int64) cell { return cell{S: strconv.FormatInt(v, 10), Num: true} }

type rawRow struct {
	Row     int
	Postal  cell
	Code    cell
	Address string
	Ward    string
}

// buildRecords 把原始行规范化为 Record：
// - 字符串：只保留数字（不补零，短值交给匹配层按前缀/后缀容忍）
// - 数值：补零到 7 / 4 位
// - 区：行内字段 > 从地址推导 > DefaultWard
func buildRecords(rows []rawRow, opt Options) ([]domain.Record, *multierror.Error) {
	var errs *multierror.Error
	out := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		postal := digitsOf(r.Postal, domain.PostalLen)
		code := digitsOf(r.Code, domain.CodeLen)
		switch {
		case postal == "" && code == "":
			errs = multierror.Append(errs, &RowError{Row: r.Row, Msg: "缺少郵便番号与仕分けコード"})
			continue
		case postal == "":
			errs = multierror.Append(errs, &RowError{Row: r.Row, Msg: "缺少郵便番号"})
			continue
		case code == "":
			errs = multierror.Append(errs, &RowError{Row: r.Row, Msg: "缺少仕分けコード"})
			continue
		}

		addr := strings.TrimSpace(normalize.Width(r.Address))
		ward := strings.TrimSpace(normalize.Width(r.Ward))
		if ward == "" {
			ward = normalize.Ward(addr)
		}
		if ward == "" {
			ward = opt.DefaultWard
		}
		out = append(out, domain.Record{Postal: postal, Code: code, Address: addr, Ward: ward})
	}
	return out, errs
}

func digitsOf(c cell, width int) string {
	d := normalize.Digits(c.S)
	if c.Num && d != "" {
		return normalize.ZeroPad(d, width)
	}
	return d
}

// 表头别名（经 normalize.Text 比较）。
var columnAliases = map[string][]string{
	"postal":  {"郵便番号", "〒", "postal", "postal_code", "postcode", "zip", "zip7"},
	"code":    {"仕分けコード", "仕分けcd", "仕分け番号", "code", "code4", "sorting_code"},
	"address": {"住所", "address", "addr"},
	"ward":    {"区", "区名", "ward"},
}

// columnIndex 从表头推导列位置；缺少 postal 或 code 列时返回错误。
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, 4)
	for i, h := range header {
		h = normalize.Text(h)
		for field, aliases := range columnAliases {
			if _, done := idx[field]; done {
				continue
			}
			for _, a := range aliases {
				if h == normalize.Text(a) {
					idx[field] = i
					break
				}
			}
		}
	}
	if _, ok := idx["postal"]; !ok {
		return nil, fmt.Errorf("表头缺少郵便番号列：%q", header)
	}
	if _, ok := idx["code"]; !ok {
		return nil, fmt.Errorf("表头缺少仕分けコード列：%q", header)
	}
	return idx, nil
}

func at(cols []string, idx map[string]int, field string) string {
	i, ok := idx[field]
	if !ok || i >= len(cols) {
		return ""
	}
	return cols[i]
}
