package domain

import "strings"

const (
	// PostalLen 是规范化后的郵便番号长度（ハイフンなし 7 桁）。
	PostalLen = 7
	// CodeLen 是规范化后的仕分けコード长度。
	CodeLen = 4
)

// Record 是一条地址记录：郵便番号 -> 仕分けコード。
//
// 不变量：
// - 加载后不可变（快照整体替换，不做单条更新）
// - Postal/Code 只含 ASCII 数字；格式良好的数据分别为 7/4 位，但匹配逻辑必须容忍短值
type Record struct {
	Postal  string `json:"postal"`
	Code    string `json:"code"`
	Address string `json:"address"`
	Ward    string `json:"ward"`
}

// FormatPostal 把 7 位郵便番号格式化为 "604-0911"；其他长度原样返回。
func FormatPostal(p string) string {
	p = strings.TrimSpace(p)
	if len(p) != PostalLen {
		return p
	}
	return p[:3] + "-" + p[3:]
}

// Dataset 是一次加载得到的完整数据集（尚未建立索引）。
type Dataset struct {
	Records []Record
	// Wards 是数据源显式给出的区顺序（可为空；为空时按首次出现顺序推导）。
	Wards []string
	// Fingerprint 是原始字节的内容标识（CIDv1），用于判断线上数据版本。
	Fingerprint string
	// Source 是数据来源位置（文件路径 / 目录 / URL）。
	Source string
	// Format 是最终成功解析的格式名；目录内格式不一致时为 "dir"。
	Format string
}
