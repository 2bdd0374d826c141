package app

import (
	"context"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/source"
)

// Check 加载并审查数据集，不安装快照（不影响正在服务的 Engine）。
// 该函数把所有失败都“降级”为报告字段，调用方只需输出报告。
func (s *Service) Check(ctx context.Context) domain.CheckReport {
	rep := domain.CheckReport{
		Source:    s.location,
		StartedAt: s.now(),
	}

	out, err := s.loader.Load(ctx, s.location, s.format)
	rep.Attempts = attemptResults(out.Attempts)
	if err != nil {
		rep.ErrorCode = domain.ErrCodeDatasetLoadFailed
		rep.ErrorMsg = err.Error()
		rep.FinishedAt = s.now()
		rep.Finalize()
		return rep
	}

	ds := out.Dataset
	snap := lookup.NewSnapshot(ds, rep.StartedAt)
	rep.Format = ds.Format
	rep.Fingerprint = ds.Fingerprint
	rep.FromCache = out.FromCache
	rep.Summary.Records = snap.Len()
	rep.Summary.Wards = len(snap.Wards())

	if out.RowErrors != nil {
		for _, e := range out.RowErrors.Errors {
			rep.Issues = append(rep.Issues, domain.Issue{Kind: domain.IssueRowError, Message: e.Error()})
		}
	}
	suffixKeys := ds.Format == source.SortingJSON{}.Name()
	rep.Issues = append(rep.Issues, domain.Audit(ds.Records, suffixKeys)...)

	rep.FinishedAt = s.now()
	rep.Finalize()
	return rep
}

func attemptResults(as []source.Attempt) []domain.AttemptResult {
	out := make([]domain.AttemptResult, 0, len(as))
	for _, a := range as {
		r := domain.AttemptResult{File: a.File, Format: a.Format, Stage: a.Stage}
		if a.Err != nil {
			r.Error = a.Err.Error()
		}
		out = append(out, r)
	}
	return out
}
