package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// CSV：带表头的逗号分隔文件（Excel 的 CSV 导出）。
type CSV struct{}

func (CSV) Name() string { return "csv" }

func (CSV) Detect(name string, _ []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return true
	}
	return false
}

func (CSV) Parse(b []byte, opt Options) (Parsed, error) {
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Parsed{}, errors.New("CSV 为空")
	}
	if err != nil {
		return Parsed{}, err
	}
	idx, err := columnIndex(header)
	if err != nil {
		return Parsed{}, err
	}

	var rows []rawRow
	for line := 2; ; line++ {
		cols, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Parsed{}, err
		}
		if isBlank(cols) {
			continue
		}
		rows = append(rows, rawRow{
			Row:     line,
			Postal:  textCell(at(cols, idx, "postal")),
			Code:    textCell(at(cols, idx, "code")),
			Address: at(cols, idx, "address"),
			Ward:    at(cols, idx, "ward"),
		})
	}

	recs, errs := buildRecords(rows, opt)
	return Parsed{Records: recs, RowErrors: errs}, nil
}
