package lookup

import (
	"time"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/normalize"
)

// Snapshot 是一次加载的不可变数据快照（带预计算的地址规范化结果）。
//
// 快照创建后不再修改；重新加载时整体替换。
type Snapshot struct {
	records  []domain.Record
	addrNorm []string
	wards    []string
	wardSet  map[string]struct{}

	Fingerprint string
	Source      string
	Format      string
	LoadedAt    time.Time
}

// NewSnapshot 从 Dataset 建立快照。
// 区的顺序：优先使用数据源显式给出的顺序，其余按首次出现顺序追加在后面。
func NewSnapshot(ds domain.Dataset, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		records:     append([]domain.Record(nil), ds.Records...),
		addrNorm:    make([]string, len(ds.Records)),
		wardSet:     make(map[string]struct{}, len(ds.Wards)+8),
		Fingerprint: ds.Fingerprint,
		Source:      ds.Source,
		Format:      ds.Format,
		LoadedAt:    loadedAt.UTC(),
	}
	addWard := func(w string) {
		if w == "" {
			return
		}
		if _, ok := s.wardSet[w]; ok {
			return
		}
		s.wardSet[w] = struct{}{}
		s.wards = append(s.wards, w)
	}
	for _, w := range ds.Wards {
		addWard(w)
	}
	for i, r := range s.records {
		s.addrNorm[i] = normalize.Text(r.Address)
		addWard(r.Ward)
	}
	return s
}

// Len 返回记录条数。
func (s *Snapshot) Len() int { return len(s.records) }

// Records 返回记录副本（保持数据源顺序）。
func (s *Snapshot) Records() []domain.Record {
	return append([]domain.Record(nil), s.records...)
}

// Wards 返回区列表副本。
func (s *Snapshot) Wards() []string {
	return append([]string{}, s.wards...)
}

// HasWard 报告 w 是否出现在快照中。
func (s *Snapshot) HasWard(w string) bool {
	_, ok := s.wardSet[w]
	return ok
}

// filter 按数据源顺序返回满足 keep 的记录。
func (s *Snapshot) filter(keep func(i int, r domain.Record) bool) []domain.Record {
	out := make([]domain.Record, 0, 8)
	for i, r := range s.records {
		if keep(i, r) {
			out = append(out, r)
		}
	}
	return out
}
