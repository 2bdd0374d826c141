package domain

import (
	"fmt"
	"strings"
)

// Mode 决定输入按哪种规则解释。
type Mode string

const (
	ModePostal  Mode = "postal"
	ModeCode    Mode = "code"
	ModeAddress Mode = "address"
)

// Modes 按界面上的切换顺序列出全部模式。
var Modes = []Mode{ModePostal, ModeCode, ModeAddress}

// ParseMode 解析模式名（大小写不敏感）；空串视为 postal。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postal", "zip":
		return ModePostal, nil
	case "code":
		return ModeCode, nil
	case "address", "addr":
		return ModeAddress, nil
	default:
		return "", fmt.Errorf("mode 只能是 postal、code 或 address，实际是 %q", s)
	}
}

// Next 返回循环切换的下一个模式。
func (m Mode) Next() Mode {
	for i, x := range Modes {
		if x == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModePostal
}

// Query 是一次查询的上下文：每次输入变化都重新构造。
type Query struct {
	Raw  string
	Mode Mode
	// Ward 为空表示未选择区。
	Ward string
}
