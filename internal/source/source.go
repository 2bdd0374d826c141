// Package source 负责把数据集字节解析为有序的 Record 序列。
//
// 约束：
// - Parse 必须是纯函数：相同输入 => 相同输出（顺序也相同）
// - 形状不符时必须返回错误（自动识别依赖这一点回退到下一个格式）
// - 单行问题不算失败：汇总为 RowErrors，由上层决定如何呈现
package source

import (
	"github.com/hashicorp/go-multierror"

	"github.com/John-Robertt/SortCode/internal/domain"
)

// Options 是所有格式共享的解析选项。
type Options struct {
	// DefaultWard 用于既没有区字段、也无法从地址推导区名的行。
	DefaultWard string
	// SQLiteTable 是 sqlite 格式读取的表名（默认 records）。
	SQLiteTable string
}

// Parsed 是单个格式的解析结果。
type Parsed struct {
	Records []domain.Record
	// Wards 是数据源显式给出的区顺序（可为空）。
	Wards []string
	// RowErrors 汇总被跳过的行；全部有效时为 nil。
	RowErrors *multierror.Error
}

// Format 把“数据格式差异”限制在 source 包内部；上层只依赖 Record。
type Format interface {
	Name() string
	// Detect 只做廉价的特征判断（扩展名/魔数/关键字），不做完整解析。
	Detect(name string, b []byte) bool
	Parse(b []byte, opt Options) (Parsed, error)
}
