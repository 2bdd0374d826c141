// Package normalize 把操作员输入与数据源字段规范化为可比较的形态。
//
// 所有函数都是纯函数，不返回错误：无法识别的字符直接丢弃。
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// 不可见字符：零宽空格/连接符与 BOM，复制粘贴的地址里经常混入。
func isInvisible(r rune) bool {
	return r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF'
}

// newFold 每次新建：transform.Transformer 带状态，不能跨 goroutine 共享。
func newFold() transform.Transformer {
	return transform.Chain(runes.Remove(runes.Predicate(isInvisible)), norm.NFKC)
}

// Width 做 NFKC 兼容分解（全角数字/字母 -> 半角，半角カナ -> 全角）并去掉不可见字符。
func Width(s string) string {
	out, _, err := transform.String(newFold(), s)
	if err != nil {
		return norm.NFKC.String(s)
	}
	return out
}

// Digits 只保留 ASCII 数字；全角数字先经 NFKC 折叠，因此 "６０４－０９１１" -> "6040911"。
func Digits(s string) string {
	s = Width(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Text 用于地址比较：宽度折叠 + 大小写折叠 + 去首尾空白。
func Text(s string) string {
	return strings.TrimSpace(cases.Fold().String(Width(s)))
}

// Tokens 把地址查询切分为去重后的 token（保持首次出现顺序）。
// 全角空格 U+3000 经 NFKC 变为普通空格，因此同样作为分隔符。
func Tokens(s string) []string {
	fields := strings.FieldsFunc(Text(s), unicode.IsSpace)
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// ZeroPad 把纯数字左侧补零到 n 位（对应数据生成脚本里的 zfill）；超长原样返回。
func ZeroPad(digits string, n int) string {
	if len(digits) >= n {
		return digits
	}
	return strings.Repeat("0", n-len(digits)) + digits
}

// 区名：可选的都道府県与市前缀之后，第一个以“区”结尾的片段。
// 都道府県写成显式列表：否则 "京都市" 里的“都”会被误当成都道府県后缀。
var wardRE = regexp.MustCompile(`^(?:東京都|北海道|(?:京都|大阪)府|\S{2,3}?県)?(?:\S+?市)?(\S+?区)`)

// Ward 从地址推导区名（例如 "京都市中京区烏丸通…" -> "中京区"）；推导不出返回空串。
func Ward(address string) string {
	m := wardRE.FindStringSubmatch(Width(strings.TrimSpace(address)))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
