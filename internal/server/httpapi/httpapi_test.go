package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/SortCode/internal/domain"
	"github.com/John-Robertt/SortCode/internal/lookup"
	"github.com/John-Robertt/SortCode/internal/metrics"
)

func newTestServer(t *testing.T, install bool) (*httptest.Server, *lookup.Engine) {
	t.Helper()
	e, err := lookup.New(lookup.StandardPolicy())
	require.NoError(t, err)
	if install {
		e.Install(lookup.NewSnapshot(domain.Dataset{
			Records: []domain.Record{
				{Postal: "6040911", Code: "1234", Address: "京都市中京区丸太町", Ward: "中京区"},
				{Postal: "6040912", Code: "1234", Address: "京都市中京区竹屋町", Ward: "中京区"},
				{Postal: "6048001", Code: "1300", Address: "京都市中京区河原町三条", Ward: "中京区"},
				{Postal: "6048001", Code: "1301", Address: "京都市中京区河原町蛸薬師", Ward: "中京区"},
				{Postal: "6008001", Code: "2001", Address: "京都市下京区四条通", Ward: "下京区"},
			},
			Fingerprint: "bafkreitest",
		}, time.Unix(0, 0)))
	}
	srv := httptest.NewServer(New(e, metrics.New(), nil).WithPolicyName("standard").Handler())
	t.Cleanup(srv.Close)
	return srv, e
}

func get(t *testing.T, srv *httptest.Server, path string, q url.Values) (*http.Response, []byte) {
	t.Helper()
	u := srv.URL + path
	if q != nil {
		u += "?" + q.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decodeResult(t *testing.T, b []byte) domain.Result {
	t.Helper()
	var r domain.Result
	require.NoError(t, json.Unmarshal(b, &r), string(b))
	return r
}

func TestLookup_SuffixWithWard(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, b := get(t, srv, "/v1/lookup", url.Values{"q": {"0911"}, "ward": {"中京区"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	r := decodeResult(t, b)
	assert.Equal(t, domain.KindOne, r.Kind)
	assert.Equal(t, "1234", r.Code)
}

func TestLookup_WardRequiredIsNotAnHTTPError(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, b := get(t, srv, "/v1/lookup", url.Values{"q": {"0911"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	r := decodeResult(t, b)
	assert.Equal(t, domain.KindWardRequired, r.Kind)
	assert.Equal(t, domain.ErrCodeWardRequired, r.Problem)
}

func TestLookup_PickResolvesAmbiguity(t *testing.T) {
	srv, _ := newTestServer(t, true)

	_, b := get(t, srv, "/v1/lookup", url.Values{"q": {"6048001"}})
	r := decodeResult(t, b)
	assert.Equal(t, domain.KindManyDifferentCodes, r.Kind)
	assert.Equal(t, []string{"1300", "1301"}, r.Codes)

	resp, b := get(t, srv, "/v1/lookup", url.Values{"q": {"6048001"}, "pick": {"1301"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	r = decodeResult(t, b)
	assert.Equal(t, domain.KindOne, r.Kind)
	assert.Equal(t, "1301", r.Code)

	resp, _ = get(t, srv, "/v1/lookup", url.Values{"q": {"6048001"}, "pick": {"9999"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLookup_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp, b := get(t, srv, "/v1/lookup", url.Values{"q": {"1"}, "mode": {"phone"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(b), ErrCodeBadRequest)

	resp, b = get(t, srv, "/v1/lookup", url.Values{"q": {"0911"}, "ward": {"北区"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(b), ErrCodeUnknownWard)
}

func TestLookup_CodeAndAddressModes(t *testing.T) {
	srv, _ := newTestServer(t, true)

	_, b := get(t, srv, "/v1/lookup", url.Values{"q": {"2001"}, "mode": {"code"}})
	r := decodeResult(t, b)
	assert.Equal(t, domain.KindOne, r.Kind)
	assert.Equal(t, "6008001", r.Records[0].Postal)

	_, b = get(t, srv, "/v1/lookup", url.Values{"q": {"中京区　河原町"}, "mode": {"address"}})
	r = decodeResult(t, b)
	assert.Equal(t, domain.KindManyDifferentCodes, r.Kind)
	assert.Len(t, r.Records, 2)
}

func TestNotReady(t *testing.T) {
	srv, e := newTestServer(t, false)

	resp, b := get(t, srv, "/v1/lookup", url.Values{"q": {"6040911"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeNotReady, decodeResult(t, b).Problem)

	resp, _ = get(t, srv, "/v1/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	e.Disable(errors.New("boom"))
	resp, b = get(t, srv, "/v1/lookup", url.Values{"q": {"6040911"}})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, domain.ErrCodeDatasetLoadFailed, decodeResult(t, b).Problem)

	resp, _ = get(t, srv, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWardsAndStatus(t *testing.T) {
	srv, _ := newTestServer(t, true)

	_, b := get(t, srv, "/v1/wards", nil)
	assert.JSONEq(t, `{"wards":["中京区","下京区"]}`, string(b))

	resp, b := get(t, srv, "/v1/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st map[string]any
	require.NoError(t, json.Unmarshal(b, &st))
	assert.Equal(t, true, st["ready"])
	assert.Equal(t, 5.0, st["records"])
	assert.Equal(t, "bafkreitest", st["fingerprint"])
	assert.Equal(t, "standard", st["policy"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newTestServer(t, true)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(HeaderRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true)
	get(t, srv, "/v1/lookup", url.Values{"q": {"6040911"}})

	resp, b := get(t, srv, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(b), `sortcode_lookups_total{kind="ONE",mode="postal",surface="http"} 1`), string(b))
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, true)
	resp, err := http.Post(srv.URL+"/v1/lookup", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	e, err := lookup.New(lookup.StandardPolicy())
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(e, nil, nil).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve 未在超时内返回")
	}
}
