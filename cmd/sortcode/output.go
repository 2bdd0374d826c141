package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/John-Robertt/SortCode/internal/domain"
)

// writeResultText 输出给操作员看的结果文本（TTY）。
func writeResultText(w io.Writer, res domain.Result) {
	head := string(res.Kind)
	if res.Ward != "" {
		head += " [" + res.Ward + "]"
	}
	if res.Basis != "" {
		head += fmt.Sprintf(" (%s %s)", res.Basis, res.Key)
	}
	fmt.Fprintln(w, head)

	switch res.Kind {
	case domain.KindOne:
		fmt.Fprintf(w, "仕分けコード: %s\n", res.Code)
		for _, r := range res.Records {
			fmt.Fprintf(w, "  %s\n", recordLine(r))
		}
	case domain.KindManySameCode, domain.KindManyDifferentCodes:
		if res.Code != "" {
			fmt.Fprintf(w, "仕分けコード: %s\n", res.Code)
		}
		for _, g := range res.Groups {
			fmt.Fprintf(w, "  %s (%d件)\n", g.Code, len(g.Records))
			for _, ex := range g.Examples {
				fmt.Fprintf(w, "    %s\n", truncate(ex, 80))
			}
		}
	}
	if res.Message != "" {
		fmt.Fprintln(w, res.Message)
	}
}

func recordLine(r domain.Record) string {
	parts := []string{domain.FormatPostal(r.Postal)}
	if r.Ward != "" {
		parts = append(parts, r.Ward)
	}
	if r.Address != "" {
		parts = append(parts, truncate(r.Address, 80))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if max <= 0 || len(rs) <= max {
		return s
	}
	if max <= 3 {
		return string(rs[:max])
	}
	return string(rs[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
