// Package lookup 实现查询核心：规范化 -> 匹配 -> 分类。
//
// Engine 持有不可变快照；Match 是 (快照, 查询, 策略) 的纯函数，可并发调用。
package lookup

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/John-Robertt/SortCode/internal/domain"
)

// 面向操作员的提示文案（日文）。
const (
	msgWardRequired    = "まず区を選択してください。"
	msgNoMatch         = "該当なし（データにない郵便番号、または区が違う可能性があります）。"
	msgManyCodes       = "仕分けコードが複数あります。7桁の郵便番号または住所検索で絞り込んでください。"
	msgNotReady        = "データを読み込み中です。"
	msgLoadFailed      = "データの読み込みに失敗しました。再読み込みしてください。"
	msgInvalidLenFmt   = "郵便番号は%s桁で入力してください。"
	msgAddressNoResult = "該当なし（住所の語句を減らすか、表記を確認してください）。"
)

// ErrUnknownWard 表示选择了快照中不存在的区。
var ErrUnknownWard = errors.New("未知的区")

// ErrNotReady 表示数据尚未加载完成（或加载失败）。
var ErrNotReady = errors.New("数据未就绪")

// Engine 是查询核心。零值不可用，请使用 New。
type Engine struct {
	policy Policy

	snap    atomic.Pointer[Snapshot]
	loadErr atomic.Error
}

// New 以规范化后的策略创建 Engine；初始状态为“未就绪”。
func New(p Policy) (*Engine, error) {
	np, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	return &Engine{policy: np}, nil
}

// Policy 返回生效的策略。
func (e *Engine) Policy() Policy { return e.policy }

// Install 原子替换快照并清除加载错误（加载/重新加载成功）。
func (e *Engine) Install(s *Snapshot) {
	e.snap.Store(s)
	e.loadErr.Store(nil)
}

// Disable 进入“加载失败”状态：丢弃当前快照，直到下一次 Install。
func (e *Engine) Disable(err error) {
	if err == nil {
		err = errors.New("unknown load failure")
	}
	e.snap.Store(nil)
	e.loadErr.Store(err)
}

// Snapshot 返回当前快照；未就绪时为 nil。
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

// Wards 返回当前快照的区列表；未就绪时返回空列表。
func (e *Engine) Wards() []string {
	s := e.snap.Load()
	if s == nil {
		return []string{}
	}
	return s.Wards()
}

// CheckWard 校验 w 是否是当前快照中的区。
func (e *Engine) CheckWard(w string) error {
	s := e.snap.Load()
	if s == nil {
		return ErrNotReady
	}
	if !s.HasWard(w) {
		return fmt.Errorf("%w：%q", ErrUnknownWard, w)
	}
	return nil
}

// Status 是 Engine 的运行状态（用于 /v1/status 与 check 命令）。
type Status struct {
	Ready       bool      `json:"ready"`
	Error       string    `json:"error"`
	Records     int       `json:"records"`
	Wards       int       `json:"wards"`
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	Format      string    `json:"format"`
	LoadedAt    time.Time `json:"loaded_at"`
}

func (e *Engine) Status() Status {
	st := Status{}
	if err := e.loadErr.Load(); err != nil {
		st.Error = err.Error()
	}
	s := e.snap.Load()
	if s == nil {
		return st
	}
	st.Ready = true
	st.Records = s.Len()
	st.Wards = len(s.wards)
	st.Fingerprint = s.Fingerprint
	st.Source = s.Source
	st.Format = s.Format
	st.LoadedAt = s.LoadedAt
	return st
}

// Match 执行一次查询并分类。对同一快照与查询，结果确定（幂等）。
func (e *Engine) Match(q domain.Query) domain.Result {
	if q.Mode == "" {
		q.Mode = domain.ModePostal
	}
	res := domain.Result{
		Kind:    domain.KindNone,
		Mode:    q.Mode,
		Ward:    q.Ward,
		Codes:   []string{},
		Records: []domain.Record{},
		Groups:  []domain.CodeGroup{},
	}

	s := e.snap.Load()
	if s == nil {
		if e.loadErr.Load() != nil {
			res.Problem, res.Message = domain.ErrCodeDatasetLoadFailed, msgLoadFailed
		} else {
			res.Problem, res.Message = domain.ErrCodeNotReady, msgNotReady
		}
		return res
	}

	o := matchQuery(e.policy, s, q)
	res.Input, res.Basis, res.Key = o.input, o.basis, o.key

	switch {
	case o.input == "":
		return res
	case o.wardRequired:
		res.Kind = domain.KindWardRequired
		res.Problem, res.Message = domain.ErrCodeWardRequired, msgWardRequired
		return res
	case o.invalidLen:
		res.Problem = domain.ErrCodeInvalidQueryLength
		res.Message = fmt.Sprintf(msgInvalidLenFmt, e.policy.LengthHint())
		return res
	}

	kind, codes, groups := domain.Classify(o.records)
	res.Kind, res.Codes, res.Groups = kind, codes, groups
	res.Records = o.records
	switch kind {
	case domain.KindNone:
		res.Problem, res.Message = domain.ErrCodeNoMatch, msgNoMatch
		if q.Mode == domain.ModeAddress {
			res.Message = msgAddressNoResult
		}
	case domain.KindOne, domain.KindManySameCode:
		res.Code = codes[0]
	case domain.KindManyDifferentCodes:
		res.Message = msgManyCodes
	}
	return res
}
