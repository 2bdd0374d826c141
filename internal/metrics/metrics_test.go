package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/John-Robertt/SortCode/internal/app"
	"github.com/John-Robertt/SortCode/internal/domain"
)

func TestMetrics_Lookups(t *testing.T) {
	m := New()
	r := domain.Result{Mode: domain.ModePostal, Kind: domain.KindOne}
	m.ObserveLookup("http", r, time.Now())
	m.ObserveLookup("http", r, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("http", "postal", "ONE")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lookupLatency))
}

func TestMetrics_Loads(t *testing.T) {
	m := New()
	var _ app.Observer = m

	m.OnLoadDone(app.LoadEvent{Records: 42})
	assert.Equal(t, 42.0, testutil.ToFloat64(m.records))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready))

	m.OnLoadDone(app.LoadEvent{Err: errors.New("boom"), Kept: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready))

	m.OnLoadDone(app.LoadEvent{Err: errors.New("boom")})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ready))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLookup("cli", domain.Result{}, time.Now())
	m.OnLoadDone(app.LoadEvent{})
}
