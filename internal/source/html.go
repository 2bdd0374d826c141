package source

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLTable：导出为 HTML 的表格（例如 Excel “名前を付けて保存 -> Web ページ”）。
// 取第一个表头含郵便番号列与仕分けコード列的 <table>。
type HTMLTable struct{}

func (HTMLTable) Name() string { return "html" }

func (HTMLTable) Detect(name string, b []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	head := bytes.ToLower(b[:min(len(b), 2048)])
	return bytes.Contains(head, []byte("<table")) || bytes.Contains(head, []byte("<!doctype html")) || bytes.Contains(head, []byte("<html"))
}

func (HTMLTable) Parse(b []byte, opt Options) (Parsed, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return Parsed{}, err
	}

	var (
		rows     []rawRow
		found    bool
		firstErr error
	)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		trs := table.Find("tr")
		if trs.Length() == 0 {
			return true
		}
		idx, err := columnIndex(cellTexts(trs.First()))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return true
		}
		found = true
		trs.Slice(1, goquery.ToEnd).Each(func(i int, tr *goquery.Selection) {
			cols := cellTexts(tr)
			if isBlank(cols) {
				return
			}
			rows = append(rows, rawRow{
				Row:     i + 2,
				Postal:  textCell(at(cols, idx, "postal")),
				Code:    textCell(at(cols, idx, "code")),
				Address: at(cols, idx, "address"),
				Ward:    at(cols, idx, "ward"),
			})
		})
		return false
	})
	if !found {
		if firstErr != nil {
			return Parsed{}, firstErr
		}
		return Parsed{}, errors.New("HTML 中没有 <table>")
	}

	recs, errs := buildRecords(rows, opt)
	return Parsed{Records: recs, RowErrors: errs}, nil
}

func cellTexts(tr *goquery.Selection) []string {
	cells := tr.Find("th, td")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
