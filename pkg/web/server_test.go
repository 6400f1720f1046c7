package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/mfa-dashboard/pkg/dashboard"
	"github.com/ritzau/mfa-dashboard/pkg/metrics"
	"github.com/ritzau/mfa-dashboard/pkg/pubsub"
	"github.com/ritzau/mfa-dashboard/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, loaded bool) (*Server, *dashboard.Runner, *metrics.Registry) {
	t.Helper()

	pub := pubsub.NewSSEPublisher()
	t.Cleanup(func() { pub.Close() })
	reg := metrics.NewRegistry()

	runner := dashboard.NewRunner(dashboard.Options{
		Workbook: "sample.xlsx",
		Factor:   0.5,
		Baseline: 0.5,
		Sectors:  []string{"government", "industry"},
	}, pub, reg)
	s := NewServer(runner, pub, reg)
	if loaded {
		require.NoError(t, runner.Use(context.Background(), workbook.Sample(), "sample"))
	}
	return s, runner, reg
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestRenderDefaultFactor(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/render")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var model dashboard.RenderModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, 0.5, model.Factor)
	assert.Equal(t, "MFA", model.Sankey.Title)
	assert.Equal(t, 15, model.Sankey.Node.Pad)
	assert.Equal(t, 20, model.Sankey.Node.Thickness)
	require.Len(t, model.Sectors, 2)
	assert.Equal(t, "Government Emissions", model.Sectors[0].Histogram.Title)
	assert.Equal(t, "group", model.Sectors[0].Histogram.BarMode)
}

func TestRenderExplicitFactor(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/render?factor=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var model dashboard.RenderModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, 1.0, model.Factor)
	assert.InDelta(t, 100, model.Sankey.Link.Value[0], 1e-9)
}

func TestRenderInvalidFactor(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	for _, raw := range []string{"abc", "NaN", "-0.5", "1.5"} {
		rec := get(t, s, "/api/render?factor="+raw)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "factor %s", raw)

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Error, "factor")
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, httptest.NewRequest(http.MethodGet, "/api/render", nil), map[string]float64{"value": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "unsupported value")
}

func TestRenderNotANumberCell(t *testing.T) {
	s, runner, _ := newTestServer(t, false)

	tables := workbook.Sample()
	tables.Inputs[0].Value = math.NaN()
	require.NoError(t, runner.Use(context.Background(), tables, "nan value"))

	rec := get(t, s, "/api/render")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestRenderNotLoaded(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	rec := get(t, s, "/api/render")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLinks(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/links?factor=0.25")
	require.Equal(t, http.StatusOK, rec.Code)

	var view dashboard.LinksView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Len(t, view.Links, 11)
	assert.Len(t, view.Labels, 12)
	assert.InDelta(t, 25, view.Links[0].Value, 1e-9)
}

func TestEmissions(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/emissions/industry?factor=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 12)
	assert.Equal(t, "input", records[0]["type"])
	assert.Equal(t, "original", records[0]["emission_type"])

	rec = get(t, s, "/api/emissions/households")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChartPNG(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/charts/government.png?factor=0.3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)

	rec = get(t, s, "/api/charts/nowhere.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status pubsub.WorkbookStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.State)
	assert.Equal(t, 11, status.Links)
	assert.Equal(t, 12, status.Nodes)
}

func TestIndexPage(t *testing.T) {
	s, _, _ := newTestServer(t, false)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Efficiency Factor")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	get(t, s, "/api/render?factor=0.4")
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `mfa_http_requests_total{method="GET",path="/api/render",status="200"} 1`)
	assert.Contains(t, body, "mfa_recomputes_total")
	assert.Contains(t, body, "mfa_links 11")
}

func TestSubscribeUnknownTopic(t *testing.T) {
	s, _, _ := newTestServer(t, true)

	rec := get(t, s, "/api/subscribe/everything")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribeDashboardStream(t *testing.T) {
	s, runner, _ := newTestServer(t, true)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/subscribe/dashboard", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan pubsub.Event, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev pubsub.Event
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				frames <- ev
			}
		}
		close(frames)
	}()

	// The latest revision is replayed on connect
	select {
	case ev := <-frames:
		assert.Equal(t, pubsub.TopicDashboard, ev.Topic)
		assert.Equal(t, "reloaded", ev.Type)
	case <-ctx.Done():
		t.Fatal("timeout waiting for replayed event")
	}

	require.NoError(t, runner.Use(context.Background(), workbook.Sample(), "workbook changed"))

	select {
	case ev := <-frames:
		var update pubsub.DashboardUpdate
		require.NoError(t, json.Unmarshal(ev.Data, &update))
		assert.Equal(t, 2, update.Revision)
		assert.Equal(t, "workbook changed", update.Reason)
	case <-ctx.Done():
		t.Fatal("timeout waiting for reload event")
	}
}
