package source

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite" // 注册 "sqlite" 驱动（纯 Go，无 cgo）
)

var sqliteMagic = []byte("SQLite format 3\x00")

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLite：单表数据库，列名与 CSV 表头使用同一套别名。
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Detect(name string, b []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return bytes.HasPrefix(b, sqliteMagic)
}

func (SQLite) Parse(b []byte, opt Options) (Parsed, error) {
	if !bytes.HasPrefix(b, sqliteMagic) {
		return Parsed{}, fmt.Errorf("不是 SQLite 数据库文件")
	}
	table := strings.TrimSpace(opt.SQLiteTable)
	if table == "" {
		table = "records"
	}
	if !tableNameRE.MatchString(table) {
		return Parsed{}, fmt.Errorf("非法表名：%q", table)
	}

	// 驱动只能打开文件：先落到临时文件（数据集可能来自 HTTP）。
	dir, err := os.MkdirTemp("", "sortcode-sqlite-*")
	if err != nil {
		return Parsed{}, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "dataset.db")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return Parsed{}, err
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return Parsed{}, err
	}
	defer db.Close()

	rs, err := db.Query(`SELECT * FROM "` + table + `"`)
	if err != nil {
		return Parsed{}, err
	}
	defer rs.Close()

	names, err := rs.Columns()
	if err != nil {
		return Parsed{}, err
	}
	idx, err := columnIndex(names)
	if err != nil {
		return Parsed{}, err
	}

	var rows []rawRow
	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	line := 0
	for rs.Next() {
		line++
		if err := rs.Scan(ptrs...); err != nil {
			return Parsed{}, err
		}
		rows = append(rows, rawRow{
			Row:     line,
			Postal:  sqlCell(vals, idx, "postal"),
			Code:    sqlCell(vals, idx, "code"),
			Address: sqlCell(vals, idx, "address").S,
			Ward:    sqlCell(vals, idx, "ward").S,
		})
	}
	if err := rs.Err(); err != nil {
		return Parsed{}, err
	}

	recs, errs := buildRecords(rows, opt)
	return Parsed{Records: recs, RowErrors: errs}, nil
}

func sqlCell(vals []any, idx map[string]int, field string) cell {
	i, ok := idx[field]
	if !ok {
		return cell{}
	}
	switch v := vals[i].(type) {
	case nil:
		return cell{}
	case int64:
		return intCell(v)
	case float64:
		return intCell(int64(v))
	case []byte:
		return textCell(string(v))
	case string:
		return textCell(v)
	default:
		return textCell(fmt.Sprint(v))
	}
}
