package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/SortCode/internal/config"
	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
)

const fixtureCSV = "郵便番号,仕分けコード,住所,区\n" +
	"6040911,1234,京都市中京区丸太町,中京区\n" +
	"6040912,1234,京都市中京区竹屋町,中京区\n" +
	"6008001,2001,京都市下京区四条通,下京区\n"

// eventLog 收集 LoadEvent（并发安全）。
type eventLog struct {
	mu  sync.Mutex
	evs []LoadEvent
}

func (l *eventLog) OnLoadDone(ev LoadEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evs = append(l.evs, ev)
}

func (l *eventLog) all() []LoadEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LoadEvent(nil), l.evs...)
}

func writeDataset(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func newService(t *testing.T, dataset string) *Service {
	t.Helper()
	eff, err := config.LoadEffective(t.TempDir(), config.CLIArgs{Dataset: dataset})
	require.NoError(t, err)
	svc, err := New(eff, nil)
	require.NoError(t, err)
	return svc
}

func TestService_LoadInstallsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	writeDataset(t, path, fixtureCSV)

	svc := newService(t, path)
	log := &eventLog{}
	svc.Observe(log)

	require.NoError(t, svc.Load(context.Background()))

	st := svc.Engine().Status()
	assert.True(t, st.Ready)
	assert.Equal(t, 3, st.Records)
	assert.Equal(t, "csv", st.Format)
	assert.Equal(t, []string{"中京区", "下京区"}, svc.Engine().Wards())

	r := svc.Engine().Match(domain.Query{Raw: "0911", Mode: domain.ModePostal, Ward: "中京区"})
	assert.Equal(t, domain.KindOne, r.Kind)
	assert.Equal(t, "1234", r.Code)

	evs := log.all()
	require.Len(t, evs, 1)
	assert.NoError(t, evs[0].Err)
	assert.False(t, evs[0].Reload)
	assert.Equal(t, 3, evs[0].Records)
}

func TestService_StartupFailureDisablesEngine(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "missing.csv"))

	require.Error(t, svc.Load(context.Background()))

	st := svc.Engine().Status()
	assert.False(t, st.Ready)
	assert.NotEmpty(t, st.Error)

	r := svc.Engine().Match(domain.Query{Raw: "6040911", Mode: domain.ModePostal})
	assert.Equal(t, domain.KindNone, r.Kind)
	assert.Equal(t, domain.ErrCodeDatasetLoadFailed, r.Problem)
}

func TestService_FailedReloadKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	writeDataset(t, path, fixtureCSV)

	svc := newService(t, path)
	log := &eventLog{}
	svc.Observe(log)
	require.NoError(t, svc.Load(context.Background()))
	fp := svc.Engine().Status().Fingerprint

	writeDataset(t, path, "完全不是数据集")
	require.Error(t, svc.Load(context.Background()))

	st := svc.Engine().Status()
	assert.True(t, st.Ready)
	assert.Equal(t, fp, st.Fingerprint)

	evs := log.all()
	require.Len(t, evs, 2)
	assert.True(t, evs[1].Reload)
	assert.True(t, evs[1].Kept)

	// 修复后重新加载：恢复正常并换上新快照。
	writeDataset(t, path, fixtureCSV+"6050911,3001,京都市東山区三条通,東山区\n")
	require.NoError(t, svc.Load(context.Background()))
	assert.Equal(t, 4, svc.Engine().Status().Records)
	assert.NotEqual(t, fp, svc.Engine().Status().Fingerprint)
}

func TestService_SuccessfulLoadReenablesEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	svc := newService(t, path)

	require.Error(t, svc.Load(context.Background()))
	assert.False(t, svc.Engine().Status().Ready)

	writeDataset(t, path, fixtureCSV)
	require.NoError(t, svc.Load(context.Background()))
	st := svc.Engine().Status()
	assert.True(t, st.Ready)
	assert.Empty(t, st.Error)
}

func TestService_Check(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	writeDataset(t, path, fixtureCSV+
		"6040911,1299,京都市中京区丸太町,中京区\n"+
		"6040913,,京都市中京区,中京区\n")

	svc := newService(t, path)
	rep := svc.Check(context.Background())

	assert.Empty(t, rep.ErrorCode)
	assert.Equal(t, "csv", rep.Format)
	assert.NotEmpty(t, rep.Fingerprint)
	assert.Equal(t, 4, rep.Summary.Records)
	assert.Equal(t, 2, rep.Summary.Wards)
	assert.Equal(t, 1, rep.Summary.RowErrors)
	assert.Equal(t, 1, rep.Summary.PostalConflicts)
	assert.False(t, rep.OK())

	// check 不影响 Engine。
	assert.False(t, svc.Engine().Status().Ready)
}

func TestService_CheckSortingDataIsClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorting.js")
	writeDataset(t, path, `window.SORTING_DATA = {
  "wards": [{"name": "中京区"}],
  "suffixMaps": {
    "5": {"中京区": {"40911": [{"code": "1234", "examples": ["京都市中京区丸太町"]}]}},
    "4": {"中京区": {"0911": [{"code": "1234", "examples": ["京都市中京区丸太町"]}]}}
  }
};`)

	svc := newService(t, path)
	rep := svc.Check(context.Background())

	require.Empty(t, rep.ErrorCode, rep.ErrorMsg)
	assert.Equal(t, "sorting", rep.Format)
	assert.Equal(t, 1, rep.Summary.Records)
	assert.Equal(t, 0, rep.Summary.Malformed)
	if !rep.OK() {
		t.Fatalf("sorting 数据的后缀键不应算作问题：%+v", rep.Issues)
	}
}

func TestService_CheckLoadFailure(t *testing.T) {
	svc := newService(t, filepath.Join(t.TempDir(), "missing.csv"))
	rep := svc.Check(context.Background())
	assert.Equal(t, domain.ErrCodeDatasetLoadFailed, rep.ErrorCode)
	assert.NotEmpty(t, rep.ErrorMsg)
	assert.False(t, rep.OK())
}

func TestNewWithLoader_UsesPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	writeDataset(t, path, fixtureCSV)

	eng, err := lookup.New(lookup.WardFirstPolicy())
	require.NoError(t, err)
	eff, err := config.LoadEffective(t.TempDir(), config.CLIArgs{Dataset: path})
	require.NoError(t, err)
	base, err := New(eff, nil)
	require.NoError(t, err)

	svc := NewWithLoader(eng, base.loader, path, "auto", nil)
	require.NoError(t, svc.Load(context.Background()))

	r := svc.Engine().Match(domain.Query{Raw: "6040911", Mode: domain.ModePostal})
	assert.Equal(t, domain.KindWardRequired, r.Kind)
}
