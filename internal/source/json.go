package source

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

var (
	keyRecords    = []byte(`"records"`)
	keySuffixMaps = []byte(`"suffixMaps"`)
)

// RecordsJSON：记录数组 [{postal, code, address, ward}]，或 {"records": [...]}。
type RecordsJSON struct{}

func (RecordsJSON) Name() string { return "records" }

func (RecordsJSON) Detect(_ string, b []byte) bool {
	t := bytes.TrimSpace(b)
	if len(t) == 0 {
		return false
	}
	return t[0] == '[' || (t[0] == '{' && bytes.Contains(t, keyRecords))
}

func (RecordsJSON) Parse(b []byte, opt Options) (Parsed, error) {
	if !gjson.ValidBytes(b) {
		return Parsed{}, errors.New("不是合法的 JSON")
	}
	root := gjson.ParseBytes(b)
	if root.IsObject() {
		root = root.Get("records")
	}
	if !root.IsArray() {
		return Parsed{}, errors.New("records 格式要求顶层为数组或含 records 数组")
	}

	var rows []rawRow
	var shapeErr error
	i := 0
	root.ForEach(func(_, item gjson.Result) bool {
		i++
		if !item.IsObject() {
			shapeErr = fmt.Errorf("第 %d 个元素不是对象", i)
			return false
		}
		rows = append(rows, rawRow{
			Row:     i,
			Postal:  jsonCell(item, "postal", "zip7", "zip", "postal_code", "郵便番号"),
			Code:    jsonCell(item, "code", "code4", "sorting_code", "仕分けコード"),
			Address: jsonCell(item, "address", "addr", "住所").S,
			Ward:    jsonCell(item, "ward", "区").S,
		})
		return true
	})
	if shapeErr != nil {
		return Parsed{}, shapeErr
	}
	recs, errs := buildRecords(rows, opt)
	return Parsed{Records: recs, RowErrors: errs}, nil
}

// LegacyJSON：数据生成脚本的输出 {"<下5桁>": [{address, code, zip7}]}。
type LegacyJSON struct{}

func (LegacyJSON) Name() string { return "legacy" }

func (LegacyJSON) Detect(_ string, b []byte) bool {
	t := bytes.TrimSpace(b)
	return len(t) > 0 && t[0] == '{' && !bytes.Contains(t, keyRecords) && !bytes.Contains(t, keySuffixMaps)
}

func (LegacyJSON) Parse(b []byte, opt Options) (Parsed, error) {
	if !gjson.ValidBytes(b) {
		return Parsed{}, errors.New("不是合法的 JSON")
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return Parsed{}, errors.New("legacy 格式要求顶层为对象")
	}

	var rows []rawRow
	var shapeErr error
	n := 0
	root.ForEach(func(key, list gjson.Result) bool {
		if !list.IsArray() {
			shapeErr = fmt.Errorf("键 %q 的值不是数组", key.String())
			return false
		}
		list.ForEach(func(_, item gjson.Result) bool {
			n++
			postal := jsonCell(item, "zip7", "postal")
			if postal.S == "" {
				// 老数据只有下 5 桁键时，以键作为（不完整的）郵便番号。
				postal = textCell(key.String())
			}
			rows = append(rows, rawRow{
				Row:     n,
				Postal:  postal,
				Code:    jsonCell(item, "code", "code4"),
				Address: jsonCell(item, "address").S,
				Ward:    jsonCell(item, "ward").S,
			})
			return true
		})
		return true
	})
	if shapeErr != nil {
		return Parsed{}, shapeErr
	}
	recs, errs := buildRecords(rows, opt)
	return Parsed{Records: recs, RowErrors: errs}, nil
}

// SortingJSON：浏览器版使用的 SORTING_DATA：
//
//	{ "wards": [{"name": "中京区"}], "suffixMaps": {"5": {"中京区": {"40911": [{"code": "1234", "examples": [...]}]}}, "4": {...}} }
//
// 允许外面包一层 "window.SORTING_DATA = …;"。
// 每个 example 地址成为一条记录，郵便番号取后缀键（不完整值，由匹配层按后缀容忍）。
// 同一个区只取最长后缀长度的映射，避免 4/5 桁两张表重复。
type SortingJSON struct{}

func (SortingJSON) Name() string { return "sorting" }

func (SortingJSON) Detect(_ string, b []byte) bool {
	return bytes.Contains(b, keySuffixMaps)
}

func (SortingJSON) Parse(b []byte, opt Options) (Parsed, error) {
	b = unwrapJS(b)
	if !gjson.ValidBytes(b) {
		return Parsed{}, errors.New("不是合法的 JSON（或 SORTING_DATA 脚本）")
	}
	root := gjson.ParseBytes(b)
	maps := root.Get("suffixMaps")
	if !maps.IsObject() {
		return Parsed{}, errors.New("sorting 格式缺少 suffixMaps")
	}

	var wards []string
	root.Get("wards").ForEach(func(_, w gjson.Result) bool {
		name := w.String()
		if w.IsObject() {
			name = w.Get("name").String()
		}
		if name != "" {
			wards = append(wards, name)
		}
		return true
	})

	type lenMap struct {
		n int
		m gjson.Result
	}
	var lens []lenMap
	maps.ForEach(func(key, m gjson.Result) bool {
		if n, err := strconv.Atoi(key.String()); err == nil && m.IsObject() {
			lens = append(lens, lenMap{n: n, m: m})
		}
		return true
	})
	if len(lens) == 0 {
		return Parsed{}, errors.New("suffixMaps 中没有数字长度键")
	}
	sort.Slice(lens, func(i, j int) bool { return lens[i].n > lens[j].n })

	covered := make(map[string]bool)
	var rows []rawRow
	line := 0
	for _, lm := range lens {
		done := make(map[string]bool)
		lm.m.ForEach(func(wk, byKey gjson.Result) bool {
			ward := wk.String()
			if covered[ward] {
				return true
			}
			done[ward] = true
			byKey.ForEach(func(suffix, entries gjson.Result) bool {
				entries.ForEach(func(_, e gjson.Result) bool {
					code := jsonCell(e, "code")
					examples := e.Get("examples").Array()
					if len(examples) == 0 {
						line++
						rows = append(rows, rawRow{Row: line, Postal: textCell(suffix.String()), Code: code, Ward: ward})
						return true
					}
					for _, ex := range examples {
						line++
						rows = append(rows, rawRow{Row: line, Postal: textCell(suffix.String()), Code: code, Address: ex.String(), Ward: ward})
					}
					return true
				})
				return true
			})
			return true
		})
		for w := range done {
			covered[w] = true
		}
	}

	recs, errs := buildRecords(rows, opt)
	return Parsed{Records: recs, Wards: wards, RowErrors: errs}, nil
}

func unwrapJS(b []byte) []byte {
	t := bytes.TrimSpace(b)
	if len(t) > 0 && t[0] == '{' {
		return t
	}
	i := bytes.IndexByte(t, '{')
	j := bytes.LastIndexByte(t, '}')
	if i < 0 || j <= i {
		return t
	}
	return t[i : j+1]
}

// jsonCell 取第一个存在且非 null 的字段；数值字段标记为 Num（需要补零）。
func jsonCell(item gjson.Result, names ...string) cell {
	for _, n := range names {
		v := item.Get(n)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.Number {
			return intCell(v.Int())
		}
		return textCell(v.String())
	}
	return cell{}
}
