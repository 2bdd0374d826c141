package lookup

import (
	"sync"

	"github.com/John-Robertt/SortCode/internal/domain"
)

// Session 保存一个操作员的“当前选择的区”，并把它显式传入 Match。
// 多个 Session 可共享同一个 Engine。
type Session struct {
	engine *Engine

	mu   sync.Mutex
	ward string
}

func NewSession(e *Engine) *Session {
	return &Session{engine: e}
}

// SelectWard 选择区；区必须存在于当前快照。
func (s *Session) SelectWard(w string) error {
	if err := s.engine.CheckWard(w); err != nil {
		return err
	}
	s.mu.Lock()
	s.ward = w
	s.mu.Unlock()
	return nil
}

func (s *Session) ClearWard() {
	s.mu.Lock()
	s.ward = ""
	s.mu.Unlock()
}

func (s *Session) Ward() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ward
}

// Lookup 用当前选择的区执行查询。
func (s *Session) Lookup(raw string, mode domain.Mode) domain.Result {
	return s.engine.Match(domain.Query{Raw: raw, Mode: mode, Ward: s.Ward()})
}
