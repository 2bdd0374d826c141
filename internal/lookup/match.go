package lookup

import (
	"strings"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/normalize"
)

// outcome 是单次匹配的中间结果（分类之前）。
type outcome struct {
	input   string
	basis   string
	key     string
	records []domain.Record

	wardRequired bool
	invalidLen   bool
}

func matchQuery(p Policy, s *Snapshot, q domain.Query) outcome {
	switch q.Mode {
	case domain.ModeCode:
		return matchCode(p, s, normalize.Digits(q.Raw))
	case domain.ModeAddress:
		return matchAddress(s, normalize.Tokens(q.Raw))
	default:
		return matchPostal(p, s, normalize.Digits(q.Raw), q.Ward)
	}
}

func matchPostal(p Policy, s *Snapshot, digits, ward string) outcome {
	o := outcome{input: digits}
	n := len(digits)
	if n == 0 {
		return o
	}
	if p.RequireWard && ward == "" {
		o.wardRequired = true
		return o
	}

	inWard := func(r domain.Record) bool { return !p.RequireWard || r.Ward == ward }

	// 1) 完全一致：取前 ExactLength 位。
	if p.ExactLength > 0 && n >= p.ExactLength {
		key := digits[:p.ExactLength]
		o.basis, o.key = domain.BasisExact, key
		o.records = s.filter(func(_ int, r domain.Record) bool {
			return r.Postal == key && inWard(r)
		})
		return o
	}

	// 2) 区内后缀。
	suffixLen := 0
	switch {
	case p.isSuffixLen(n):
		suffixLen = n
	case p.TrimToSuffix && len(p.WardSuffixLengths) > 0 && n > p.maxSuffix():
		suffixLen = p.maxSuffix()
	}
	if suffixLen > 0 {
		if ward == "" {
			o.wardRequired = true
			return o
		}
		for _, l := range suffixTries(p, suffixLen) {
			key := digits[n-l:]
			o.basis, o.key = domain.BasisSuffix, key
			o.records = s.filter(func(_ int, r domain.Record) bool {
				return r.Ward == ward && strings.HasSuffix(r.Postal, key)
			})
			if len(o.records) > 0 {
				break
			}
		}
		// 全部落空时，Key 回报最初（最长）的键，便于提示用户实际用了什么。
		if len(o.records) == 0 {
			o.key = digits[n-suffixLen:]
		}
		return o
	}

	// 3) 中间长度：前缀匹配。
	if p.FallbackPrefix && n > p.minSuffix() && n < p.upperBound() {
		scope := ward
		switch p.PrefixScope {
		case PrefixScopeGlobal:
			scope = ""
		case PrefixScopeWard:
			if ward == "" {
				o.wardRequired = true
				return o
			}
		}
		o.basis, o.key = domain.BasisPrefix, digits
		o.records = s.filter(func(_ int, r domain.Record) bool {
			return (scope == "" || r.Ward == scope) && strings.HasPrefix(r.Postal, digits)
		})
		return o
	}

	o.invalidLen = true
	return o
}

// suffixTries 返回从 first 开始、按 SuffixFallback 依次变短的后缀长度序列。
func suffixTries(p Policy, first int) []int {
	tries := []int{first}
	if !p.SuffixFallback {
		return tries
	}
	for i := len(p.WardSuffixLengths) - 1; i >= 0; i-- {
		if l := p.WardSuffixLengths[i]; l < first {
			tries = append(tries, l)
		}
	}
	return tries
}

func matchCode(p Policy, s *Snapshot, digits string) outcome {
	o := outcome{input: digits}
	if digits == "" {
		return o
	}
	if len(digits) >= p.CodeLength {
		key := digits[:p.CodeLength]
		o.basis, o.key = domain.BasisCodeExact, key
		o.records = s.filter(func(_ int, r domain.Record) bool { return r.Code == key })
		return o
	}
	o.basis, o.key = domain.BasisCodePrefix, digits
	o.records = s.filter(func(_ int, r domain.Record) bool { return strings.HasPrefix(r.Code, digits) })
	return o
}

func matchAddress(s *Snapshot, tokens []string) outcome {
	o := outcome{input: strings.Join(tokens, " ")}
	if len(tokens) == 0 {
		return o
	}
	o.basis, o.key = domain.BasisAddressAll, o.input
	o.records = s.filter(func(i int, _ domain.Record) bool {
		addr := s.addrNorm[i]
		for _, t := range tokens {
			if !strings.Contains(addr, t) {
				return false
			}
		}
		return true
	})
	return o
}
